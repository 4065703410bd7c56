// record-seeder generates realistic financial report batches and submits
// them to a running engine, for demos and load checks. A configurable slice
// of the records carries deliberate defects so the quarantine path gets
// exercised too.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
)

var (
	engineURL  = flag.String("engine-url", "http://localhost:8090", "Engine API base URL")
	token      = flag.String("token", "", "Bearer token (optional)")
	kind       = flag.String("kind", "financial_report", "Schema kind")
	batches    = flag.Int("batches", 1, "Number of batches to submit")
	records    = flag.Int("records", 50, "Records per batch")
	dirtyRate  = flag.Float64("dirty-rate", 0.1, "Fraction of records with injected defects")
	interval   = flag.Duration("interval", 500*time.Millisecond, "Interval between batches")
	sourceID   = flag.String("source", "seeder", "Source ID stamped on batches")
	seed       = flag.Int64("seed", 0, "Random seed (0 = time-based)")
	printsOnly = flag.Bool("dry-run", false, "Print envelopes instead of submitting")
)

type recordEnvelope struct {
	RecordID   string         `json:"record_id"`
	IngestedAt time.Time      `json:"ingested_at"`
	Fields     map[string]any `json:"fields"`
}

type batchEnvelope struct {
	BatchID  string           `json:"batch_id"`
	SourceID string           `json:"source_id"`
	Schema   map[string]any   `json:"schema"`
	Records  []recordEnvelope `json:"records"`
}

func main() {
	flag.Parse()

	s := *seed
	if s == 0 {
		s = time.Now().UnixNano()
	}
	gofakeit.Seed(s)
	rng := rand.New(rand.NewSource(s))

	log.Printf("Starting record seeder:")
	log.Printf("  Engine URL: %s", *engineURL)
	log.Printf("  Batches: %d x %d records", *batches, *records)
	log.Printf("  Dirty rate: %.2f", *dirtyRate)

	client := &http.Client{Timeout: 60 * time.Second}

	for b := 0; b < *batches; b++ {
		envelope := generateBatch(rng)
		if *printsOnly {
			data, _ := json.MarshalIndent(envelope, "", "  ")
			fmt.Println(string(data))
		} else if err := submit(client, envelope); err != nil {
			log.Printf("Batch %s failed: %v", envelope.BatchID, err)
		} else {
			log.Printf("Batch %s submitted (%d records)", envelope.BatchID, len(envelope.Records))
		}
		if b < *batches-1 && *interval > 0 {
			time.Sleep(*interval)
		}
	}
}

func generateBatch(rng *rand.Rand) *batchEnvelope {
	envelope := &batchEnvelope{
		BatchID:  uuid.New().String(),
		SourceID: *sourceID,
		Schema:   map[string]any{"kind": *kind},
	}

	now := time.Now().UTC()
	for i := 0; i < *records; i++ {
		rec := generateReport(rng, now, i)
		if rng.Float64() < *dirtyRate {
			corrupt(rng, rec)
		}
		envelope.Records = append(envelope.Records, recordEnvelope{
			RecordID:   uuid.New().String(),
			IngestedAt: now.Add(time.Duration(i) * time.Millisecond),
			Fields:     rec,
		})
	}
	return envelope
}

func generateReport(rng *rand.Rand, now time.Time, i int) map[string]any {
	periodStart := now.AddDate(0, -1, 0).Format("2006-01-02")
	periodEnd := now.AddDate(0, 0, -1).Format("2006-01-02")

	net := float64(rng.Intn(900_000)+1000) / 100
	tax := net * 0.19
	gross := net + tax

	return map[string]any{
		"report_id":    fmt.Sprintf("RPT-%06d", rng.Intn(1_000_000)),
		"client_id":    gofakeit.Company(),
		"period_start": periodStart,
		"period_end":   periodEnd,
		"currency":     gofakeit.RandomString([]string{"EUR", "USD", "GBP"}),
		"gross_amount": fmt.Sprintf("%.2f", gross),
		"net_amount":   fmt.Sprintf("%.2f", net),
		"tax_amount":   fmt.Sprintf("%.2f", tax),
		"line_count":   rng.Intn(200) + 1,
		"submitted_at": now.Format(time.RFC3339),
		"notes":        gofakeit.Sentence(6),
	}
}

// corrupt injects one of the defect shapes the engine is expected to catch.
func corrupt(rng *rand.Rand, rec map[string]any) {
	switch rng.Intn(6) {
	case 0:
		rec["gross_amount"] = nil
	case 1:
		rec["gross_amount"] = "not-a-number"
	case 2:
		rec["currency"] = "DOGE"
	case 3:
		rec["net_amount"] = "-1.00"
	case 4:
		// German decimal notation, should be normalized, not rejected
		rec["gross_amount"] = "1.234,56"
		rec["net_amount"] = "1.037,45"
		rec["tax_amount"] = "197,11"
	case 5:
		rec["period_end"], rec["period_start"] = rec["period_start"], rec["period_end"]
	}
}

func submit(client *http.Client, envelope *batchEnvelope) error {
	data, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodPost, *engineURL+"/api/v1/batches", bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if *token != "" {
		req.Header.Set("Authorization", "Bearer "+*token)
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("engine returned %d", resp.StatusCode)
	}

	var result struct {
		Clean        int `json:"clean"`
		Quarantined  int `json:"quarantined"`
		Deduplicated int `json:"deduplicated"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil {
		log.Printf("  clean=%d quarantined=%d deduplicated=%d",
			result.Clean, result.Quarantined, result.Deduplicated)
	}
	return nil
}

package sink

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/opensearch-project/opensearch-go/v2"
	"github.com/opensearch-project/opensearch-go/v2/opensearchutil"

	"github.com/clearline-systems/clearline-engine/engine/internal/model"
	"github.com/clearline-systems/clearline-engine/engine/internal/outcome"
	"github.com/clearline-systems/clearline-engine/engine/internal/rules"
	"github.com/clearline-systems/clearline-engine/engine/internal/schema"
)

// OpenSearchConfig holds connection and index settings for the quarantine
// diagnostics store.
type OpenSearchConfig struct {
	URL           string
	Username      string
	Password      string
	TLSSkipVerify bool
	IndexPrefix   string
}

func DefaultOpenSearchConfig() OpenSearchConfig {
	return OpenSearchConfig{
		URL:           "https://localhost:9200",
		Username:      "admin",
		Password:      "admin",
		TLSSkipVerify: true,
		IndexPrefix:   "clearline-quarantine",
	}
}

// OpenSearchSink indexes one diagnostic document per quarantined record so
// operators can search rejections by batch, rule, or field.
type OpenSearchSink struct {
	osClient    *opensearch.Client
	config      OpenSearchConfig
	initialized bool
}

func NewOpenSearchSink(cfg OpenSearchConfig) (*OpenSearchSink, error) {
	httpClient := &http.Client{
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: cfg.TLSSkipVerify,
			},
		},
	}

	client, err := opensearch.NewClient(opensearch.Config{
		Addresses: []string{cfg.URL},
		Username:  cfg.Username,
		Password:  cfg.Password,
		Transport: httpClient.Transport,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create opensearch client: %w", err)
	}

	return &OpenSearchSink{osClient: client, config: cfg}, nil
}

func (s *OpenSearchSink) Name() string {
	return "opensearch"
}

// Initialize verifies connectivity and installs the diagnostics index
// template. Safe to call more than once.
func (s *OpenSearchSink) Initialize(ctx context.Context) error {
	if s.initialized {
		return nil
	}

	info, err := s.osClient.Info()
	if err != nil {
		return fmt.Errorf("failed to connect to opensearch: %w", err)
	}
	defer info.Body.Close()
	if info.IsError() {
		return fmt.Errorf("opensearch returned error: %s", info.Status())
	}

	if err := s.createIndexTemplate(ctx); err != nil {
		return fmt.Errorf("failed to create index template: %w", err)
	}

	s.initialized = true
	return nil
}

func (s *OpenSearchSink) Write(ctx context.Context, batch *model.BatchResult, def *schema.Definition, streams outcome.Streams) error {
	if len(streams.Quarantine) == 0 {
		return nil
	}

	indexName := fmt.Sprintf("%s-%s", s.config.IndexPrefix, time.Now().UTC().Format("2006.01.02"))

	bi, err := opensearchutil.NewBulkIndexer(opensearchutil.BulkIndexerConfig{
		Client: s.osClient,
		Index:  indexName,
	})
	if err != nil {
		return fmt.Errorf("failed to create bulk indexer: %w", err)
	}

	// OnFailure callbacks run on indexer worker goroutines.
	var failed atomic.Int64
	for _, rec := range streams.Quarantine {
		doc := quarantineDoc(rec, batch)
		data, err := json.Marshal(doc)
		if err != nil {
			failed.Add(1)
			continue
		}
		err = bi.Add(ctx, opensearchutil.BulkIndexerItem{
			Action:     "index",
			DocumentID: rec.Raw.RecordID,
			Body:       bytes.NewReader(data),
			OnFailure: func(ctx context.Context, item opensearchutil.BulkIndexerItem, res opensearchutil.BulkIndexerResponseItem, err error) {
				failed.Add(1)
			},
		})
		if err != nil {
			failed.Add(1)
		}
	}

	if err := bi.Close(ctx); err != nil {
		return fmt.Errorf("bulk indexer close error: %w", err)
	}
	if n := failed.Load(); n > 0 {
		return fmt.Errorf("failed to index %d of %d diagnostics", n, len(streams.Quarantine))
	}
	return nil
}

func quarantineDoc(rec *model.ValidatedRecord, batch *model.BatchResult) map[string]any {
	verdicts := make([]map[string]any, 0, len(rec.Verdicts))
	for _, v := range rec.Verdicts {
		verdicts = append(verdicts, map[string]any{
			"rule":     v.Rule,
			"field":    v.Field,
			"code":     string(v.Code),
			"severity": string(v.Severity),
			"message":  v.Message,
		})
	}
	fields := make(map[string]any, len(rec.Typed))
	for name, v := range rec.Typed {
		if v == nil {
			fields[name] = nil
			continue
		}
		fields[name] = rules.CanonicalString(v)
	}
	return map[string]any{
		"@timestamp":     time.Now().UTC().Format(time.RFC3339Nano),
		"record_id":      rec.Raw.RecordID,
		"batch_id":       batch.BatchID,
		"source_id":      batch.SourceID,
		"kind":           batch.Kind,
		"schema_version": batch.SchemaVersion,
		"ingested_at":    rec.Raw.IngestedAt.UTC().Format(time.RFC3339Nano),
		"verdicts":       verdicts,
		"fields":         fields,
		"raw":            rec.Raw.Fields,
	}
}

func (s *OpenSearchSink) createIndexTemplate(ctx context.Context) error {
	template := map[string]any{
		"index_patterns": []string{s.config.IndexPrefix + "-*"},
		"template": map[string]any{
			"settings": map[string]any{
				"number_of_shards":   1,
				"number_of_replicas": 0,
				"codec":              "best_compression",
			},
			"mappings": map[string]any{
				"dynamic": true,
				"properties": map[string]any{
					"@timestamp":     map[string]any{"type": "date"},
					"record_id":      map[string]any{"type": "keyword"},
					"batch_id":       map[string]any{"type": "keyword"},
					"source_id":      map[string]any{"type": "keyword"},
					"kind":           map[string]any{"type": "keyword"},
					"schema_version": map[string]any{"type": "integer"},
					"ingested_at":    map[string]any{"type": "date"},
					"verdicts": map[string]any{
						"type": "nested",
						"properties": map[string]any{
							"rule":     map[string]any{"type": "keyword"},
							"field":    map[string]any{"type": "keyword"},
							"code":     map[string]any{"type": "keyword"},
							"severity": map[string]any{"type": "keyword"},
							"message":  map[string]any{"type": "text"},
						},
					},
					"fields": map[string]any{"type": "object"},
					"raw":    map[string]any{"type": "object", "enabled": false},
				},
			},
		},
		"priority": 100,
	}

	body, err := json.Marshal(template)
	if err != nil {
		return err
	}

	res, err := s.osClient.Indices.PutIndexTemplate(
		s.config.IndexPrefix+"-template",
		bytes.NewReader(body),
	)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() {
		bodyBytes, _ := io.ReadAll(res.Body)
		return fmt.Errorf("failed to create index template: %s - %s", res.Status(), string(bodyBytes))
	}
	return nil
}

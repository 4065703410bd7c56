package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/shopspring/decimal"
	writerfile "github.com/xitongsys/parquet-go-source/writerfile"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/clearline-systems/clearline-engine/engine/internal/model"
	"github.com/clearline-systems/clearline-engine/engine/internal/outcome"
	"github.com/clearline-systems/clearline-engine/engine/internal/rules"
	"github.com/clearline-systems/clearline-engine/engine/internal/schema"
)

// ParquetConfig holds object store connection and layout settings for the
// clean tier.
type ParquetConfig struct {
	EndpointURL     string
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	UseSSL          bool
	Bucket          string
	BasePrefix      string
}

// ParquetSink writes the clean stream of each batch as a Snappy-compressed
// Parquet file, partitioned by source, kind, and load date:
//
//	<prefix>/<source>/<kind>/dt=<date>/run=<batch>/part-000000.parquet
type ParquetSink struct {
	client *minio.Client
	config ParquetConfig
}

func NewParquetSink(cfg ParquetConfig) (*ParquetSink, error) {
	if cfg.EndpointURL == "" {
		return nil, fmt.Errorf("endpoint URL is required")
	}
	if cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" {
		return nil, fmt.Errorf("credentials are required")
	}

	u, err := url.Parse(cfg.EndpointURL)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint URL: %w", err)
	}
	endpoint := u.Host
	if endpoint == "" {
		endpoint = cfg.EndpointURL
	}
	useSSL := cfg.UseSSL
	if u.Scheme == "https" {
		useSSL = true
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: useSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	return &ParquetSink{client: client, config: cfg}, nil
}

func (s *ParquetSink) Name() string {
	return "parquet"
}

func (s *ParquetSink) Write(ctx context.Context, batch *model.BatchResult, def *schema.Definition, streams outcome.Streams) error {
	if len(streams.Clean) == 0 {
		return nil
	}

	exists, err := s.client.BucketExists(ctx, s.config.Bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket: %w", err)
	}
	if !exists {
		return fmt.Errorf("bucket %s not found", s.config.Bucket)
	}

	buf := &bytes.Buffer{}
	pfw := writerfile.NewWriterFile(buf)
	pw, err := writer.NewJSONWriter(buildParquetSchema(def), pfw, 4)
	if err != nil {
		return fmt.Errorf("failed to create parquet writer: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for _, rec := range streams.Clean {
		if err := pw.Write(parquetRow(rec, def)); err != nil {
			_ = pw.WriteStop()
			_ = pfw.Close()
			return fmt.Errorf("failed to write parquet row: %w", err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		_ = pfw.Close()
		return fmt.Errorf("failed to finalize parquet file: %w", err)
	}
	_ = pfw.Close()

	key := joinPath(
		s.config.BasePrefix,
		batch.SourceID,
		batch.Kind,
		fmt.Sprintf("dt=%s", batch.StartedAt.UTC().Format("2006-01-02")),
		fmt.Sprintf("run=%s", batch.BatchID),
		fmt.Sprintf("part-%06d.parquet", 0),
	)

	_, err = s.client.PutObject(ctx, s.config.Bucket, key,
		bytes.NewReader(buf.Bytes()), int64(buf.Len()),
		minio.PutObjectOptions{ContentType: "application/octet-stream"})
	if err != nil {
		return fmt.Errorf("failed to put object %s: %w", key, err)
	}
	return nil
}

func buildParquetSchema(def *schema.Definition) string {
	fields := make([]map[string]string, 0, len(def.Fields)+2)
	fields = append(fields, map[string]string{
		"Tag": "name=record_id, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL",
	})
	fields = append(fields, map[string]string{
		"Tag": "name=ingested_at, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL",
	})
	for _, f := range def.Fields {
		fields = append(fields, map[string]string{
			"Tag": fmt.Sprintf("name=%s, type=%s, repetitiontype=OPTIONAL", f.Name, parquetPhysicalType(f.Type)),
		})
	}
	out := map[string]any{
		"Tag":    "name=parquet_go_root, repetitiontype=REQUIRED",
		"Fields": fields,
	}
	b, _ := json.Marshal(out)
	return string(b)
}

func parquetPhysicalType(ft schema.FieldType) string {
	switch ft {
	case schema.TypeBool:
		return "BOOLEAN"
	case schema.TypeInt:
		return "INT64"
	case schema.TypeDecimal:
		return "DOUBLE"
	default:
		return "BYTE_ARRAY"
	}
}

func parquetRow(rec *model.ValidatedRecord, def *schema.Definition) map[string]any {
	row := make(map[string]any, len(def.Fields)+2)
	row["record_id"] = rec.Raw.RecordID
	row["ingested_at"] = rec.Raw.IngestedAt.UTC().Format(time.RFC3339Nano)
	for _, f := range def.Fields {
		v, ok := rec.Typed[f.Name]
		if !ok || v == nil {
			row[f.Name] = nil
			continue
		}
		switch f.Type {
		case schema.TypeBool, schema.TypeInt:
			row[f.Name] = v
		case schema.TypeDecimal:
			if d, ok := v.(decimal.Decimal); ok {
				row[f.Name] = d.InexactFloat64()
			}
		default:
			row[f.Name] = rules.CanonicalString(v)
		}
	}
	return row
}

func joinPath(parts ...string) string {
	cleaned := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.Trim(p, "/")
		if p != "" {
			cleaned = append(cleaned, p)
		}
	}
	return strings.Join(cleaned, "/")
}

package lendee

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/redis/go-redis/v9"
)

// SnapshotSink receives the feature table after every full aggregation. Sinks
// are write-only; nothing reads a snapshot back as input.
type SnapshotSink interface {
	Name() string
	Write(ctx context.Context, rows []FeatureRow) error
}

var snapshotHeader = []string{
	"lendee_id",
	"lendee_count",
	"unpaid_amount",
	"unpaid_count",
	"total_loan_amount",
	"defaulted",
	"unpaid_rate",
	"avg_unpaid_amount_per",
	"avg_loan_per_lendee",
}

// CSVSnapshot overwrites a CSV file with the feature table.
type CSVSnapshot struct {
	Path string
}

func (s *CSVSnapshot) Name() string { return "csv" }

func (s *CSVSnapshot) Write(_ context.Context, rows []FeatureRow) error {
	return writeAtomically(s.Path, func(f *os.File) error {
		return WriteFeaturesCSV(f, rows)
	})
}

// WriteFeaturesCSV writes the header and one record per row. The defaulted
// column is written as 0 or 1.
func WriteFeaturesCSV(out io.Writer, rows []FeatureRow) error {
	w := csv.NewWriter(out)
	if err := w.Write(snapshotHeader); err != nil {
		return err
	}
	for _, r := range rows {
		defaulted := "0"
		if r.Defaulted {
			defaulted = "1"
		}
		record := []string{
			r.LendeeID,
			strconv.Itoa(r.LendeeCount),
			formatFloat(r.UnpaidAmount),
			strconv.Itoa(r.UnpaidCount),
			formatFloat(r.TotalLoanAmount),
			defaulted,
			formatFloat(r.UnpaidRate),
			formatFloat(r.AvgUnpaidAmountPer),
			formatFloat(r.AvgLoanPerLendee),
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// FeatureRecord is the Parquet layout of a feature row.
type FeatureRecord struct {
	LendeeID           string  `parquet:"lendee_id,snappy"`
	LendeeCount        int64   `parquet:"lendee_count,snappy"`
	UnpaidAmount       float64 `parquet:"unpaid_amount,snappy"`
	UnpaidCount        int64   `parquet:"unpaid_count,snappy"`
	TotalLoanAmount    float64 `parquet:"total_loan_amount,snappy"`
	Defaulted          bool    `parquet:"defaulted"`
	UnpaidRate         float64 `parquet:"unpaid_rate,snappy"`
	AvgUnpaidAmountPer float64 `parquet:"avg_unpaid_amount_per,snappy"`
	AvgLoanPerLendee   float64 `parquet:"avg_loan_per_lendee,snappy"`
	Score              float64 `parquet:"score,snappy"`
}

// ToRecords converts feature rows to Parquet records, computing each score.
func ToRecords(rows []FeatureRow) []FeatureRecord {
	out := make([]FeatureRecord, len(rows))
	for i, r := range rows {
		out[i] = FeatureRecord{
			LendeeID:           r.LendeeID,
			LendeeCount:        int64(r.LendeeCount),
			UnpaidAmount:       r.UnpaidAmount,
			UnpaidCount:        int64(r.UnpaidCount),
			TotalLoanAmount:    r.TotalLoanAmount,
			Defaulted:          r.Defaulted,
			UnpaidRate:         r.UnpaidRate,
			AvgUnpaidAmountPer: r.AvgUnpaidAmountPer,
			AvgLoanPerLendee:   r.AvgLoanPerLendee,
			Score:              Score(r.ScoreInput()),
		}
	}
	return out
}

// ParquetSnapshot overwrites a Parquet file with the feature table.
type ParquetSnapshot struct {
	Path string
}

func (s *ParquetSnapshot) Name() string { return "parquet" }

func (s *ParquetSnapshot) Write(_ context.Context, rows []FeatureRow) error {
	return writeAtomically(s.Path, func(f *os.File) error {
		return WriteFeaturesParquet(f, rows)
	})
}

func WriteFeaturesParquet(out io.Writer, rows []FeatureRow) error {
	writer := parquet.NewGenericWriter[FeatureRecord](out)
	if _, err := writer.Write(ToRecords(rows)); err != nil {
		_ = writer.Close()
		return fmt.Errorf("failed to write parquet rows: %w", err)
	}
	return writer.Close()
}

// RedisSnapshot replaces a Redis hash of lendee id to JSON feature row.
type RedisSnapshot struct {
	Client redis.Cmdable
	Key    string
	TTL    time.Duration
}

func (s *RedisSnapshot) Name() string { return "redis" }

func (s *RedisSnapshot) Write(ctx context.Context, rows []FeatureRow) error {
	values := make(map[string]interface{}, len(rows))
	for _, r := range rows {
		data, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("marshal feature row %s: %w", r.LendeeID, err)
		}
		values[r.LendeeID] = string(data)
	}

	pipe := s.Client.TxPipeline()
	pipe.Del(ctx, s.Key)
	if len(values) > 0 {
		pipe.HSet(ctx, s.Key, values)
		if s.TTL > 0 {
			pipe.Expire(ctx, s.Key, s.TTL)
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis snapshot %s: %w", s.Key, err)
	}
	return nil
}

// writeAtomically writes to a temporary file next to path and renames it into
// place, so readers never see a half-written snapshot.
func writeAtomically(path string, write func(f *os.File) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if err := write(tmp); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}

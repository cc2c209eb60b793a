package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"

	e "github.com/gartstein/companydir/internal/directory/errors"
	"github.com/gartstein/companydir/internal/directory/metrics"
	"github.com/gartstein/companydir/internal/directory/models"
	"go.uber.org/zap"
)

type Directory interface {
	IngestRecord(ctx context.Context, rec models.IndexRecord) (models.SID, bool, error)
}

// Summary counts the rows handled by one ingestion run.
type Summary struct {
	Processed int `json:"processed"`
	Created   int `json:"created"`
	Merged    int `json:"merged"`
	Failed    int `json:"failed"`
}

type Ingester struct {
	directory Directory
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

func NewIngester(directory Directory, m *metrics.Metrics, logger *zap.Logger) *Ingester {
	return &Ingester{
		directory: directory,
		metrics:   m,
		logger:    logger.Named("ingester"),
	}
}

// Ingest reads every row of r into the directory. Malformed rows and rows
// the directory rejects as invalid are logged and counted. Any other
// directory failure, a read failure or cancellation stops the run.
func (i *Ingester) Ingest(ctx context.Context, r io.Reader) (Summary, error) {
	var summary Summary
	reader := NewReader(r)
	for {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		rec, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if !errors.Is(err, ErrMalformedLine) {
				return summary, err
			}
			summary.Processed++
			summary.Failed++
			i.metrics.IncrementIngested("failed")
			i.logger.Warn("Skipping malformed index line", zap.Error(err))
			continue
		}

		summary.Processed++
		if err := i.Record(ctx, rec, &summary); err != nil {
			if ctx.Err() != nil {
				return summary, ctx.Err()
			}
			if !errors.Is(err, e.ErrInvalidInput) {
				return summary, fmt.Errorf("ingestion aborted at line %d: %w", reader.line, err)
			}
		}
	}

	i.logger.Info("Index ingestion finished",
		zap.Time("last_data_received", reader.LastDataReceived()),
		zap.Int("processed", summary.Processed),
		zap.Int("created", summary.Created),
		zap.Int("merged", summary.Merged),
		zap.Int("failed", summary.Failed),
	)
	return summary, nil
}

// Record ingests a single record and updates summary. It is also the
// handler for records arriving on the ingestion topic.
func (i *Ingester) Record(ctx context.Context, rec models.IndexRecord, summary *Summary) error {
	sid, created, err := i.directory.IngestRecord(ctx, rec)
	if err != nil {
		if summary != nil {
			summary.Failed++
		}
		i.metrics.IncrementIngested("failed")
		i.logger.Error("Failed to ingest index record",
			zap.Error(err),
			zap.Int64("cik", int64(rec.CIK)),
			zap.String("name", rec.Name),
		)
		return err
	}

	result := "merged"
	if created {
		result = "created"
	}
	if summary != nil {
		if created {
			summary.Created++
		} else {
			summary.Merged++
		}
	}
	i.metrics.IncrementIngested(result)
	i.logger.Debug("Index record ingested",
		zap.Int64("sid", int64(sid)),
		zap.Int64("cik", int64(rec.CIK)),
		zap.String("result", result),
	)
	return nil
}

package events

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"time"

	"github.com/cenkalti/backoff/v4"
	e "github.com/gartstein/companydir/internal/directory/errors"
	"github.com/gartstein/companydir/internal/directory/models"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const defaultFetchRetryDelay = time.Second

// RecordHandler processes one index record taken off the ingestion topic.
type RecordHandler func(context.Context, models.IndexRecord) error

type KafkaReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer reads EDGAR index records published by an external ingestion
// path and hands them to a RecordHandler.
type Consumer struct {
	reader  KafkaReader
	logger  *zap.Logger
	handler RecordHandler

	// newBackOff paces redelivery of a record whose handler failed.
	newBackOff      func() backoff.BackOff
	fetchRetryDelay time.Duration
}

func NewConsumer(brokers []string, groupID, topic string, logger *zap.Logger) *Consumer {
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers: brokers,
			GroupID: groupID,
			Topic:   topic,
			Dialer:  kafka.DefaultDialer,
		}),
		logger: logger.Named("kafka_consumer"),
	}
}

func (c *Consumer) RegisterHandler(fn RecordHandler) {
	c.handler = fn
}

// Run consumes until ctx is cancelled or the reader is closed.
//
// Offsets are committed in order, so a record is never skipped because of a
// transient failure: the handler is retried with backoff until it succeeds.
// Only unparseable records and records the handler rejects as invalid input
// are committed without being stored.
func (c *Consumer) Run(ctx context.Context) error {
	if c.handler == nil {
		return errors.New("kafka consumer: no handler registered")
	}
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) {
				c.logger.Info("Kafka reader closed, stopping consumer")
				return nil
			}
			c.logger.Error("Failed to fetch message", zap.Error(err))
			if err := sleep(ctx, c.retryDelay()); err != nil {
				return err
			}
			continue
		}

		var record models.IndexRecord
		if err := json.Unmarshal(msg.Value, &record); err != nil {
			c.logger.Error("Failed to parse index record",
				zap.Error(err),
				zap.ByteString("value", msg.Value),
			)
			c.commit(ctx, msg)
			continue
		}

		if err := c.handle(ctx, record); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Error("Skipping invalid index record",
				zap.Error(err),
				zap.Int64("cik", int64(record.CIK)),
				zap.Int64("offset", msg.Offset),
			)
		}

		c.commit(ctx, msg)
	}
}

// handle retries the handler until it succeeds, rejects the record as
// invalid input, or ctx is cancelled.
func (c *Consumer) handle(ctx context.Context, record models.IndexRecord) error {
	return backoff.Retry(func() error {
		err := c.handler(ctx, record)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, e.ErrInvalidInput):
			return backoff.Permanent(err)
		}
		c.logger.Warn("Failed to handle index record, retrying",
			zap.Error(err),
			zap.Int64("cik", int64(record.CIK)),
		)
		return err
	}, backoff.WithContext(c.backOff(), ctx))
}

func (c *Consumer) backOff() backoff.BackOff {
	if c.newBackOff != nil {
		return c.newBackOff()
	}
	exp := backoff.NewExponentialBackOff()
	exp.MaxInterval = time.Minute
	exp.MaxElapsedTime = 0
	return exp
}

func (c *Consumer) retryDelay() time.Duration {
	if c.fetchRetryDelay > 0 {
		return c.fetchRetryDelay
	}
	return defaultFetchRetryDelay
}

func (c *Consumer) commit(ctx context.Context, msg kafka.Message) {
	if err := c.reader.CommitMessages(ctx, msg); err != nil {
		c.logger.Error("Failed to commit message",
			zap.Error(err),
			zap.Int64("offset", msg.Offset),
		)
	}
}

func (c *Consumer) Close() {
	if err := c.reader.Close(); err != nil {
		c.logger.Error("Failed to close Kafka reader", zap.Error(err))
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

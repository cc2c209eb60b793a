package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gartstein/companydir/internal/directory/models"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

var jsonMarshal = json.Marshal

type EventType string

const (
	CompanyCreated    EventType = "company_created"
	CompanyUpdated    EventType = "company_updated"
	CompanyDiscovered EventType = "company_discovered"
	CompanyDeleted    EventType = "company_deleted"
)

// Event is a company lifecycle notification. Company carries the facts
// touched by the operation that produced the event, not a full snapshot.
type Event struct {
	ID         uuid.UUID           `json:"id"`
	Type       EventType           `json:"type"`
	Company    *models.CompanyView `json:"company"`
	OccurredAt time.Time           `json:"occurred_at"`
}

type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Producer struct {
	writer    KafkaWriter
	events    chan Event
	logger    *zap.Logger
	closeChan chan struct{}
}

func NewProducer(brokers []string, logger *zap.Logger, topic string) (*Producer, error) {
	// Create topic if it doesn't exist
	conn, err := kafka.Dial("tcp", brokers[0])
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	err = conn.CreateTopics(kafka.TopicConfig{
		Topic:             topic,
		NumPartitions:     3,
		ReplicationFactor: 1,
	})
	if err != nil {
		logger.Warn("failed to create topic (may already exist)", zap.Error(err))
	}

	p := newProducer(&kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Balancer: &kafka.Hash{},
		Topic:    topic,
	}, logger)
	go p.eventLoop()
	return p, nil
}

func newProducer(writer KafkaWriter, logger *zap.Logger) *Producer {
	return &Producer{
		writer:    writer,
		events:    make(chan Event, 1000),
		logger:    logger.Named("kafka_producer"),
		closeChan: make(chan struct{}),
	}
}

// Produce queues an event without blocking; events are dropped when the
// queue is full.
func (p *Producer) Produce(eventType EventType, company *models.CompanyView) {
	event := Event{
		ID:         uuid.New(),
		Type:       eventType,
		Company:    company,
		OccurredAt: time.Now().UTC(),
	}
	select {
	case p.events <- event:
	default:
		p.logger.Warn("Kafka producer queue full, dropping event",
			zap.String("event_type", string(eventType)),
			zap.Int64("sid", int64(company.SID)),
		)
	}
}

func (p *Producer) eventLoop() {
	for {
		select {
		case event := <-p.events:
			p.sendEvent(context.Background(), event)
		case <-p.closeChan:
			return
		}
	}
}

func (p *Producer) sendEvent(ctx context.Context, event Event) {
	value, err := jsonMarshal(event)
	if err != nil {
		p.logger.Error("Failed to serialize event",
			zap.Error(err),
			zap.Int64("sid", int64(event.Company.SID)),
		)
		return
	}
	// keyed by sid so every event of one company lands on one partition
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.Company.SID.String()),
		Value: value,
	})
	if err != nil {
		p.logger.Error("Failed to produce event",
			zap.Error(err),
			zap.String("event_type", string(event.Type)),
			zap.Int64("sid", int64(event.Company.SID)),
		)
	}
}

func (p *Producer) Close() {
	close(p.closeChan)
	if err := p.writer.Close(); err != nil {
		p.logger.Error("Failed to close Kafka writer", zap.Error(err))
	}
}

// NopProducer discards every event. It is used when no brokers are
// configured.
type NopProducer struct{}

func (NopProducer) Produce(EventType, *models.CompanyView) {}

package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/polkiloo/storefront/internal/domain/model"
)

const (
	producerName  = "storefront"
	eventVersion  = 1
	writeTimeout  = 5 * time.Second
	defaultBuffer = 256
)

// Envelope wraps every order event written to Kafka.
type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NewWriter creates a Kafka writer keyed by order id.
func NewWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		MaxAttempts:  5,
		WriteTimeout: writeTimeout,
		ReadTimeout:  writeTimeout,
		BatchTimeout: 50 * time.Millisecond,
	}
}

// Publisher delivers order events in the background.
// Notify never blocks: when the inbox is full the event is dropped and logged.
type Publisher struct {
	w      messageWriter
	logger *slog.Logger
	newID  func() string

	mu      sync.RWMutex
	closed  bool
	started bool
	inbox   chan kafka.Message
	done    chan struct{}
}

// NewPublisher creates a Publisher with an inbox of buffer messages.
func NewPublisher(w messageWriter, buffer int, logger *slog.Logger) *Publisher {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &Publisher{
		w:      w,
		logger: logger,
		newID:  uuid.NewString,
		inbox:  make(chan kafka.Message, buffer),
		done:   make(chan struct{}),
	}
}

// Notify enqueues event for delivery.
func (p *Publisher) Notify(_ context.Context, event model.OrderEvent) {
	msg, err := p.encode(event)
	if err != nil {
		p.logger.Error("order event encoding failed", slog.Int64("order_id", event.OrderID), slog.String("error", err.Error()))
		return
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		p.logger.Warn("order event dropped after shutdown", slog.Int64("order_id", event.OrderID), slog.String("type", string(event.Type)))
		return
	}
	select {
	case p.inbox <- msg:
	default:
		p.logger.Warn("order event dropped, inbox full", slog.Int64("order_id", event.OrderID), slog.String("type", string(event.Type)))
	}
}

// Start launches the delivery loop.
func (p *Publisher) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started || p.closed {
		return
	}
	p.started = true
	go p.run()
}

// Stop stops accepting events, flushes the inbox and closes the writer.
func (p *Publisher) Stop(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.inbox)
	started := p.started
	p.mu.Unlock()

	if started {
		select {
		case <-p.done:
		case <-ctx.Done():
			p.logger.Warn("order event flush interrupted", slog.Int("pending", len(p.inbox)))
		}
	}
	return p.w.Close()
}

func (p *Publisher) run() {
	defer close(p.done)
	for msg := range p.inbox {
		p.write(msg)
	}
}

func (p *Publisher) write(msg kafka.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := p.w.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("order event delivery failed", slog.String("key", string(msg.Key)), slog.String("error", err.Error()))
	}
}

func (p *Publisher) encode(event model.OrderEvent) (kafka.Message, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, err
	}
	orderID := strconv.FormatInt(event.OrderID, 10)
	occurred := event.OccurredAt
	if occurred.IsZero() {
		occurred = time.Now()
	}
	body, err := json.Marshal(Envelope{
		EventID:       p.newID(),
		EventType:     string(event.Type),
		EventVersion:  eventVersion,
		OccurredAt:    occurred.UTC(),
		Producer:      producerName,
		CorrelationID: orderID,
		Payload:       payload,
	})
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{
		Key:   []byte(orderID),
		Value: body,
		Time:  occurred,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
		},
	}, nil
}

package events

import (
	"encoding/json"
	"sync"
	"time"

	"quizhub_backend/pkg/logger"

	"github.com/streadway/amqp"
	"go.uber.org/zap"
)

const (
	AttemptStarted   = "attempt.started"
	AttemptCompleted = "attempt.completed"
	AttemptRegraded  = "attempt.regraded"
)

// Publisher emits domain events. Publishing is best-effort and never
// blocks the request that produced the event on broker availability.
type Publisher interface {
	Publish(eventType string, payload interface{}) error
	Close()
}

type envelope struct {
	Type       string      `json:"type"`
	OccurredAt time.Time   `json:"occurredAt"`
	Payload    interface{} `json:"payload"`
}

type AMQPPublisher struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
}

func NewAMQPPublisher(amqpURL, exchange string) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	err = ch.ExchangeDeclare(
		exchange,
		"topic",
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	return &AMQPPublisher{conn: conn, channel: ch, exchange: exchange}, nil
}

func (p *AMQPPublisher) Publish(eventType string, payload interface{}) error {
	body, err := json.Marshal(envelope{Type: eventType, OccurredAt: time.Now().UTC(), Payload: payload})
	if err != nil {
		return err
	}

	// amqp.Channel 不支持并发 Publish
	p.mu.Lock()
	defer p.mu.Unlock()

	// 事件类型作为 topic routing key
	return p.channel.Publish(
		p.exchange,
		eventType,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
}

func (p *AMQPPublisher) Close() {
	if p.channel != nil {
		_ = p.channel.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
}

// LogPublisher 未启用 AMQP 时使用，仅记录日志
type LogPublisher struct{}

func (LogPublisher) Publish(eventType string, payload interface{}) error {
	logger.Log.Debug("event", zap.String("type", eventType), zap.Any("payload", payload))
	return nil
}

func (LogPublisher) Close() {}

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	Events []Recorded
}

type Recorded struct {
	Type    string
	Payload interface{}
}

func (r *Recorder) Publish(eventType string, payload interface{}) error {
	r.mu.Lock()
	r.Events = append(r.Events, Recorded{Type: eventType, Payload: payload})
	r.mu.Unlock()
	return nil
}

func (r *Recorder) Close() {}

func (r *Recorder) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	types := make([]string, 0, len(r.Events))
	for _, e := range r.Events {
		types = append(types, e.Type)
	}
	return types
}

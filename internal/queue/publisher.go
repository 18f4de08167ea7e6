package queue

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
	"github.com/pkg/errors"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/texas38923/node-mongo-api/internal/models"
)

// Publisher sends audit events to a durable queue over a single long-lived
// connection. The channel is reopened on the next publish if the broker
// closed it.
type Publisher struct {
	url   string
	queue string

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

func NewPublisher(url, queue string) *Publisher {
	return &Publisher{url: url, queue: queue}
}

// Connect dials the broker and declares the queue.
func (p *Publisher) Connect() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connectLocked()
}

func (p *Publisher) connectLocked() error {
	if p.conn == nil || p.conn.IsClosed() {
		conn, err := amqp.Dial(p.url)
		if err != nil {
			return errors.Wrap(err, "dialing rabbitmq")
		}
		p.conn = conn
		p.ch = nil
	}

	if p.ch == nil || p.ch.IsClosed() {
		ch, err := p.conn.Channel()
		if err != nil {
			return errors.Wrap(err, "opening rabbitmq channel")
		}
		if _, err := ch.QueueDeclare(
			p.queue, // name
			true,    // durable
			false,   // autoDelete
			false,   // exclusive
			false,   // noWait
			nil,     // args
		); err != nil {
			_ = ch.Close()
			return errors.Wrapf(err, "declaring queue %s", p.queue)
		}
		p.ch = ch
	}
	return nil
}

func (p *Publisher) Publish(ctx context.Context, event AuditEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, "marshalling audit event")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.connectLocked(); err != nil {
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		MessageId:    event.AuditID,
		Type:         event.Entity + "." + event.Action,
		Body:         body,
	}
	return errors.Wrapf(
		p.ch.PublishWithContext(ctx, "", p.queue, false, false, pub),
		"publishing audit event %s", event.AuditID,
	)
}

// Export publishes each record in order and stops at the first failure, so
// that only records before it are reported as sent.
func (p *Publisher) Export(ctx context.Context, logs []models.AuditLog) (int, error) {
	for i, log := range logs {
		if err := p.Publish(ctx, NewAuditEvent(log)); err != nil {
			return i, err
		}
	}
	return len(logs), nil
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ch != nil {
		grip.Debug(message.WrapError(p.ch.Close(), message.Fields{"message": "closing rabbitmq channel"}))
		p.ch = nil
	}
	if p.conn == nil {
		return nil
	}
	err := p.conn.Close()
	p.conn = nil
	return errors.Wrap(err, "closing rabbitmq connection")
}

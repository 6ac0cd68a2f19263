// README: RabbitMQ notification publisher for customer and driver messages.
package notify

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Message is the envelope delivered to the notification workers. Kind is
// the event name ("reservation.confirmed", "driver.assigned", ...) and
// doubles as the queue suffix.
type Message struct {
	Kind      string    `json:"kind"`
	Recipient string    `json:"recipient"`
	Payload   any       `json:"payload,omitempty"`
	SentAt    time.Time `json:"sent_at"`
}

// Publisher sends notification messages to RabbitMQ, one durable queue per
// event kind ("notify.<kind>"). Messages are persistent so they survive a
// broker restart; delivery beyond the broker is the consumer's problem.
type Publisher struct {
	conn *amqp.Connection
	log  *zap.Logger

	mu       sync.Mutex
	declared map[string]bool
}

func NewPublisher(url string, log *zap.Logger) (*Publisher, error) {
	if log == nil {
		log = zap.NewNop()
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	return &Publisher{conn: conn, log: log, declared: make(map[string]bool)}, nil
}

func (p *Publisher) Close() error {
	return p.conn.Close()
}

// Send publishes one notification. A fresh channel per publish keeps the
// publisher safe for concurrent use without channel pooling.
func (p *Publisher) Send(ctx context.Context, kind, recipient string, payload any) error {
	queue := "notify." + kind

	ch, err := p.conn.Channel()
	if err != nil {
		return err
	}
	defer func() { _ = ch.Close() }()

	if err := p.ensureQueue(ch, queue); err != nil {
		return err
	}

	body, err := json.Marshal(Message{
		Kind:      kind,
		Recipient: recipient,
		Payload:   payload,
		SentAt:    time.Now().UTC(),
	})
	if err != nil {
		return err
	}

	return ch.PublishWithContext(ctx,
		"",    // default exchange
		queue, // routing key = queue name
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			Body:         body,
		})
}

func (p *Publisher) ensureQueue(ch *amqp.Channel, queue string) error {
	p.mu.Lock()
	done := p.declared[queue]
	p.mu.Unlock()
	if done {
		return nil
	}

	// Idempotent; durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return err
	}

	p.mu.Lock()
	p.declared[queue] = true
	p.mu.Unlock()
	return nil
}

// Nop drops every notification after logging it. Used when no broker is
// configured (dev mode) and as the test double.
type Nop struct {
	Log *zap.Logger
}

func (n Nop) Send(_ context.Context, kind, recipient string, _ any) error {
	if n.Log != nil {
		n.Log.Debug("notification dropped (no broker)",
			zap.String("kind", kind),
			zap.String("recipient", recipient))
	}
	return nil
}

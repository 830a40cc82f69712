// Package events wraps RabbitMQ for the catalog event flow.
//
// The catalog write path publishes lifecycle events to the "catalog.events"
// topic exchange with the event type as routing key. The indexer worker
// binds one durable queue to every catalog routing key and re-projects the
// affected documents.
//
// Durability guarantees:
//   - Exchange and queue are durable — survive broker restarts.
//   - Messages are marked Persistent — written to disk before ack.
//   - Consumer uses manual ack — a message leaves the queue only after its
//     handler has run.
//
// Handlers must not assume ordering between event types, and bursts for the
// same entity are not coalesced: every event triggers its own reindex.
// That is wasteful but safe, since every index write re-derives the full
// document (last write wins).
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	exchangeName = "catalog.events"
	queueName    = "search_indexer"
)

// Catalog event types. The routing key on the wire is the event type.
const (
	TypeProductCreated   = "product.created"
	TypeProductUpdated   = "product.updated"
	TypeProductDeleted   = "product.deleted"
	TypeVariantUpdated   = "variant.updated"
	TypePriceUpdated     = "price.updated"
	TypeInventoryUpdated = "inventory.updated"
	TypeCategoryUpdated  = "category.updated"
	TypeBrandUpdated     = "brand.updated"

	// Emitted by reindex runs so downstream consumers (analytics, cache
	// invalidation) can react. The indexer queue does not bind it.
	TypeReindexCompleted = "search.reindex.completed"
)

// bindings lists every routing-key pattern the indexer queue subscribes to.
var bindings = []string{
	"product.*", "variant.*", "price.*", "inventory.*", "category.*", "brand.*",
}

// Event is the envelope carried on the bus. EntityID refers to a product,
// category or brand depending on Type.
type Event struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	EntityID   string    `json:"entity_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewEvent stamps a fresh envelope.
func NewEvent(eventType, entityID string) Event {
	return Event{
		ID:         uuid.New().String(),
		Type:       eventType,
		EntityID:   entityID,
		OccurredAt: time.Now().UTC(),
	}
}

// declareExchange is shared between Publisher and Consumer so both sides
// always declare the same durable topic exchange (idempotent).
func declareExchange(ch *amqp.Channel) error {
	err := ch.ExchangeDeclare(
		exchangeName,
		"topic",
		true,  // durable — survives broker restart
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("events: declare exchange: %w", err)
	}
	return nil
}

// Publisher owns the AMQP connection for the emitting side.
type Publisher struct {
	conn    *amqp.Connection
	channel *amqp.Channel
}

// NewPublisher dials RabbitMQ and declares the catalog exchange.
func NewPublisher(url string) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("events: dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("events: open channel: %w", err)
	}

	if err := declareExchange(ch); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	return &Publisher{conn: conn, channel: ch}, nil
}

// Publish serialises the event and routes it by its type.
func (p *Publisher) Publish(ctx context.Context, evt Event) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return err
	}

	return p.channel.PublishWithContext(ctx,
		exchangeName,
		evt.Type, // routing key == event type
		false,    // mandatory
		false,    // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent, // survive broker restart
			Body:         body,
		},
	)
}

// Close releases the AMQP channel and connection.
func (p *Publisher) Close() {
	p.channel.Close()
	p.conn.Close()
}

// Consumer owns the AMQP connection for the indexer worker side.
type Consumer struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   amqp.Queue
}

// NewConsumer dials RabbitMQ, declares the exchange and the durable
// indexer queue, binds every catalog routing key, and sets QoS to process
// one message at a time.
func NewConsumer(url string) (*Consumer, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("events: dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("events: open channel: %w", err)
	}

	// One message at a time — reindexing the same entity twice in parallel
	// would just race on the same document.
	if err := ch.Qos(1, 0, false); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("events: set qos: %w", err)
	}

	if err := declareExchange(ch); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	q, err := ch.QueueDeclare(
		queueName,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("events: declare queue: %w", err)
	}

	for _, pattern := range bindings {
		if err := ch.QueueBind(q.Name, pattern, exchangeName, false, nil); err != nil {
			ch.Close()
			conn.Close()
			return nil, fmt.Errorf("events: bind %s: %w", pattern, err)
		}
	}

	return &Consumer{conn: conn, channel: ch, queue: q}, nil
}

// Delivery wraps amqp.Delivery to expose the decoded Event and ack helpers.
type Delivery struct {
	Event Event
	raw   amqp.Delivery
}

// Ack removes the message from RabbitMQ after processing.
func (d *Delivery) Ack() error { return d.raw.Ack(false) }

// Nack requeues the message so another worker can retry.
func (d *Delivery) Nack() error { return d.raw.Nack(false, true) }

// Discard permanently rejects a message (e.g. unparseable payload).
func (d *Delivery) Discard() error { return d.raw.Nack(false, false) }

// Consume returns a channel of Delivery values. Each value must be Ack'd,
// Nack'd or Discarded.
func (c *Consumer) Consume() (<-chan Delivery, error) {
	rawMsgs, err := c.channel.Consume(
		c.queue.Name,
		"",    // consumer tag — auto-generated
		false, // auto-ack disabled — we ack manually after the handler ran
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("events: consume: %w", err)
	}

	out := make(chan Delivery)
	go func() {
		defer close(out)
		for d := range rawMsgs {
			var evt Event
			if err := json.Unmarshal(d.Body, &evt); err != nil {
				// Discard unparseable messages — they will never be valid.
				d.Nack(false, false)
				continue
			}
			out <- Delivery{Event: evt, raw: d}
		}
	}()

	return out, nil
}

// Close releases the AMQP channel and connection.
func (c *Consumer) Close() {
	c.channel.Close()
	c.conn.Close()
}

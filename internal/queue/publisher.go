package queue

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	// dialTimeout caps the TCP dial plus the AMQP handshake.  A shorter
	// context deadline on Publish wins.
	dialTimeout = 3 * time.Second
	// redialBackoff is how long Publish fails fast after a failed dial.
	redialBackoff = 10 * time.Second
)

// ErrBrokerUnavailable is returned while the publisher is backing off after
// a failed dial.
var ErrBrokerUnavailable = errors.New("rabbitmq: broker unavailable")

// Publisher sends ReservationEvents to the reservation.events queue over one
// long-lived connection.  The connection is dialed on first use and again
// after it drops; a failed dial makes Publish fail fast for redialBackoff so
// an unreachable broker costs a request at most one bounded dial.
type Publisher struct {
	url     string
	dial    time.Duration
	backoff time.Duration

	mu      sync.Mutex
	conn    *amqp.Connection
	ch      *amqp.Channel
	retryAt time.Time
}

// NewPublisher returns a Publisher for the broker at url.  Nothing is dialed
// until the first Publish.
func NewPublisher(url string) *Publisher {
	return &Publisher{url: url, dial: dialTimeout, backoff: redialBackoff}
}

// Publish marshals ev and publishes it as a persistent message.
func (p *Publisher) Publish(ctx context.Context, ev ReservationEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	ch, err := p.channel(ctx)
	if err != nil {
		return err
	}
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    ev.EventID,
		Type:         ev.Type,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx,
		"",        // default exchange
		QueueName, // routing key = queue name
		false,     // mandatory
		false,     // immediate
		pub,
	); err != nil {
		log.Printf("rabbitmq: publish failed: %v", err)
		p.closeLocked()
		return err
	}
	return nil
}

// Close drops the broker connection.  A later Publish dials again.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closeLocked()
	return nil
}

// channel returns the open channel, dialing when there is none.  p.mu must
// be held.
func (p *Publisher) channel(ctx context.Context) (*amqp.Channel, error) {
	if p.ch != nil && !p.ch.IsClosed() && !p.conn.IsClosed() {
		return p.ch, nil
	}
	p.closeLocked()
	if time.Now().Before(p.retryAt) {
		return nil, ErrBrokerUnavailable
	}

	timeout := p.dial
	if deadline, ok := ctx.Deadline(); ok {
		timeout = min(timeout, time.Until(deadline))
	}
	if timeout <= 0 {
		return nil, context.DeadlineExceeded
	}

	conn, err := amqp.DialConfig(p.url, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(timeout),
	})
	if err != nil {
		p.retryAt = time.Now().Add(p.backoff)
		log.Printf("rabbitmq: dial failed, retry in %s: %v", p.backoff, err)
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		log.Printf("rabbitmq: channel open failed: %v", err)
		return nil, err
	}
	// Durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(
		QueueName, // name
		true,      // durable
		false,     // autoDelete
		false,     // exclusive
		false,     // noWait
		nil,       // args
	); err != nil {
		_ = conn.Close()
		log.Printf("rabbitmq: queue declare failed: %v", err)
		return nil, err
	}
	p.conn, p.ch = conn, ch
	return ch, nil
}

func (p *Publisher) closeLocked() {
	if p.conn != nil {
		_ = p.conn.Close()
	}
	p.conn, p.ch = nil, nil
}

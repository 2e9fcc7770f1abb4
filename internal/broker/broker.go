// Package broker is the AMQP adapter every listener and the Event
// Controller publish through. Unlike the teacher's messagebroker package,
// which abstracts over several broker backends, this system's topology is
// fixed: one durable topic exchange named "services", with one durable
// queue per (provider, service, source) pipeline bound to a routing key
// derived from that triple.
package broker

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/streadway/amqp"
)

// Error wraps a broker operation failure with enough context to log
// usefully, mirroring the shape the rest of this codebase's error types
// follow.
type Error struct {
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("broker: %s: %s: %v", e.Op, e.Message, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Config configures the connection and the fixed exchange topology.
type Config struct {
	URL               string
	Exchange          string
	ConnectionTimeout time.Duration
	HeartbeatInterval time.Duration
	PrefetchCount     int
	ConnectRetries    int
	ConnectBackoff    time.Duration
}

// Publisher is the publish-side surface a channel offers, satisfied by both
// Adapter's own channel and any per-listener Channel opened with
// NewChannel.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, body []byte) error
}

// Adapter owns one AMQP connection, declares the shared topic exchange on
// its own channel, and hands out further per-listener channels. It
// reconnects automatically on connection loss.
type Adapter struct {
	config Config

	mu      sync.RWMutex
	conn    *amqp.Connection
	channel *amqp.Channel
	closed  bool
	queues  map[string]bool
}

// Connect dials RabbitMQ, opens a channel with the configured prefetch, and
// declares the shared exchange. It retries ConnectRetries times with a
// fixed ConnectBackoff between attempts before giving up.
func Connect(cfg Config) (*Adapter, error) {
	a := &Adapter{config: cfg, queues: make(map[string]bool)}

	var lastErr error
	retries := cfg.ConnectRetries
	if retries <= 0 {
		retries = 1
	}
	for attempt := 0; attempt < retries; attempt++ {
		if err := a.connect(); err != nil {
			lastErr = err
			log.Printf("broker: connect attempt %d/%d failed: %v", attempt+1, retries, err)
			time.Sleep(cfg.ConnectBackoff)
			continue
		}
		return a, nil
	}
	return nil, &Error{Op: "connect", Message: a.config.URL, Err: lastErr}
}

func (a *Adapter) connect() error {
	conn, err := amqp.DialConfig(a.config.URL, amqp.Config{
		Heartbeat: a.config.HeartbeatInterval,
		Dial:      amqp.DefaultDial(a.config.ConnectionTimeout),
	})
	if err != nil {
		return err
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return err
	}

	if a.config.PrefetchCount > 0 {
		if err := channel.Qos(a.config.PrefetchCount, 0, false); err != nil {
			conn.Close()
			return err
		}
	}

	if err := channel.ExchangeDeclare(
		a.config.Exchange,
		"topic",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		conn.Close()
		return err
	}

	a.mu.Lock()
	a.conn = conn
	a.channel = channel
	a.mu.Unlock()

	go a.handleConnectionLoss()

	return nil
}

// handleConnectionLoss reconnects in the background whenever the broker
// drops the connection out from under a running listener.
func (a *Adapter) handleConnectionLoss() {
	a.mu.RLock()
	conn := a.conn
	a.mu.RUnlock()

	closed := make(chan *amqp.Error)
	conn.NotifyClose(closed)

	err := <-closed
	a.mu.RLock()
	isClosed := a.closed
	a.mu.RUnlock()
	if isClosed || err == nil {
		return
	}

	log.Printf("broker: connection lost: %v", err)
	for {
		if connectErr := a.connect(); connectErr != nil {
			log.Printf("broker: reconnect failed: %v", connectErr)
			time.Sleep(a.config.ConnectBackoff)
			continue
		}
		log.Println("broker: reconnected")
		return
	}
}

// DeclareQueue declares a durable queue and binds it to the shared
// exchange under routingKey. Safe to call more than once for the same
// queue name.
func (a *Adapter) DeclareQueue(name, routingKey string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.queues[name] {
		return nil
	}

	if _, err := a.channel.QueueDeclare(name, true, false, false, false, nil); err != nil {
		return &Error{Op: "declare_queue", Message: name, Err: err}
	}

	if err := a.channel.QueueBind(name, routingKey, a.config.Exchange, false, nil); err != nil {
		return &Error{Op: "bind_queue", Message: name, Err: err}
	}

	a.queues[name] = true
	return nil
}

// Publish persists a message to the shared exchange under routingKey.
func (a *Adapter) Publish(ctx context.Context, routingKey string, body []byte) error {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.closed {
		return &Error{Op: "publish", Message: routingKey, Err: fmt.Errorf("adapter closed")}
	}

	err := a.channel.Publish(
		a.config.Exchange,
		routingKey,
		false,
		false,
		amqp.Publishing{
			MessageId:    uuid.New().String(),
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		return &Error{Op: "publish", Message: routingKey, Err: err}
	}
	return nil
}

// Consume starts delivering messages from queueName. The returned channel
// closes when the context is cancelled or the underlying AMQP delivery
// channel closes. Callers are responsible for Ack/Nack-ing every delivery
// exactly once.
func (a *Adapter) Consume(ctx context.Context, queueName string) (<-chan amqp.Delivery, error) {
	a.mu.RLock()
	channel := a.channel
	closed := a.closed
	a.mu.RUnlock()

	if closed {
		return nil, &Error{Op: "consume", Message: queueName, Err: fmt.Errorf("adapter closed")}
	}

	deliveries, err := channel.Consume(
		queueName,
		"",    // consumer tag
		false, // auto-ack: callers ack/nack explicitly
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return nil, &Error{Op: "consume", Message: queueName, Err: err}
	}

	out := make(chan amqp.Delivery)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}
				select {
				case out <- d:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// NewChannel opens a fresh AMQP channel on the adapter's connection with
// its own prefetch count, independent of the adapter's own channel and any
// other listener's channel. Each listener gets one of these, so QoS
// prefetch=1 throttles that listener alone instead of the whole process.
func (a *Adapter) NewChannel(prefetch int) (*Channel, error) {
	a.mu.RLock()
	conn := a.conn
	closed := a.closed
	a.mu.RUnlock()

	if closed || conn == nil {
		return nil, &Error{Op: "new_channel", Message: a.config.URL, Err: fmt.Errorf("adapter closed")}
	}

	ch, err := conn.Channel()
	if err != nil {
		return nil, &Error{Op: "new_channel", Message: a.config.URL, Err: err}
	}

	if prefetch > 0 {
		if err := ch.Qos(prefetch, 0, false); err != nil {
			ch.Close()
			return nil, &Error{Op: "new_channel", Message: a.config.URL, Err: err}
		}
	}

	return &Channel{exchange: a.config.Exchange, channel: ch, queues: make(map[string]bool)}, nil
}

// Channel is a dedicated AMQP channel bound to the adapter's shared
// exchange, opened by NewChannel. It carries its own declared-queues set
// and its own prefetch, so it can be closed independently of the adapter
// and of every other listener's channel.
type Channel struct {
	exchange string

	mu      sync.RWMutex
	channel *amqp.Channel
	closed  bool
	queues  map[string]bool
}

// DeclareQueue declares a durable queue and binds it to the shared
// exchange under routingKey. Safe to call more than once for the same
// queue name.
func (c *Channel) DeclareQueue(name, routingKey string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.queues[name] {
		return nil
	}

	if _, err := c.channel.QueueDeclare(name, true, false, false, false, nil); err != nil {
		return &Error{Op: "declare_queue", Message: name, Err: err}
	}

	if err := c.channel.QueueBind(name, routingKey, c.exchange, false, nil); err != nil {
		return &Error{Op: "bind_queue", Message: name, Err: err}
	}

	c.queues[name] = true
	return nil
}

// Publish persists a message to the shared exchange under routingKey.
func (c *Channel) Publish(ctx context.Context, routingKey string, body []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return &Error{Op: "publish", Message: routingKey, Err: fmt.Errorf("channel closed")}
	}

	err := c.channel.Publish(
		c.exchange,
		routingKey,
		false,
		false,
		amqp.Publishing{
			MessageId:    uuid.New().String(),
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		return &Error{Op: "publish", Message: routingKey, Err: err}
	}
	return nil
}

// Consume starts delivering messages from queueName on this channel. The
// returned channel closes when the context is cancelled or the underlying
// AMQP delivery channel closes. Callers are responsible for Ack/Nack-ing
// every delivery exactly once.
func (c *Channel) Consume(ctx context.Context, queueName string) (<-chan amqp.Delivery, error) {
	c.mu.RLock()
	channel := c.channel
	closed := c.closed
	c.mu.RUnlock()

	if closed {
		return nil, &Error{Op: "consume", Message: queueName, Err: fmt.Errorf("channel closed")}
	}

	deliveries, err := channel.Consume(
		queueName,
		"",    // consumer tag
		false, // auto-ack: callers ack/nack explicitly
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return nil, &Error{Op: "consume", Message: queueName, Err: err}
	}

	out := make(chan amqp.Delivery)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}
				select {
				case out <- d:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// Close shuts this channel down without touching the adapter's connection
// or any other listener's channel. Safe to call more than once.
func (c *Channel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.channel.Close()
}

// PurgeQueue removes all ready messages from a queue.
func (a *Adapter) PurgeQueue(name string) (int, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	n, err := a.channel.QueuePurge(name, false)
	if err != nil {
		return 0, &Error{Op: "purge_queue", Message: name, Err: err}
	}
	return n, nil
}

// DeleteQueue removes a queue entirely.
func (a *Adapter) DeleteQueue(name string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, err := a.channel.QueueDelete(name, false, false, false); err != nil {
		return &Error{Op: "delete_queue", Message: name, Err: err}
	}
	delete(a.queues, name)
	return nil
}

// Ping reports whether the connection is currently usable.
func (a *Adapter) Ping() error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed || a.conn == nil || a.conn.IsClosed() {
		return &Error{Op: "ping", Message: a.config.URL, Err: fmt.Errorf("connection not available")}
	}
	return nil
}

// Close shuts the channel and connection down. Safe to call more than
// once.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return nil
	}
	a.closed = true

	if a.channel != nil {
		a.channel.Close()
	}
	if a.conn != nil {
		a.conn.Close()
	}
	return nil
}

package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"ugc-forge/app/config"
	"ugc-forge/app/logger"

	"github.com/cenkalti/backoff/v5"
	amqp "github.com/rabbitmq/amqp091-go"
)

const amqpDialTries = 5

type amqpChannel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	IsClosed() bool
	Close() error
}

type amqpConn interface {
	channel() (amqpChannel, error)
	IsClosed() bool
	Close() error
}

type amqpConnection struct {
	*amqp.Connection
}

func (c amqpConnection) channel() (amqpChannel, error) {
	ch, err := c.Channel()
	if err != nil {
		return nil, err
	}
	return ch, nil
}

// AMQPPublisher publishes events to a RabbitMQ exchange. A closed channel or
// connection is reopened on the next publish.
type AMQPPublisher struct {
	cfg  config.AMQPConfig
	log  *logger.Logger
	dial func(ctx context.Context) (amqpConn, error)

	mu   sync.Mutex
	conn amqpConn
	ch   amqpChannel
}

// NewAMQPPublisher dials the broker, retrying with exponential backoff, and
// declares the exchange.
func NewAMQPPublisher(ctx context.Context, cfg config.AMQPConfig, log *logger.Logger) (*AMQPPublisher, error) {
	p := &AMQPPublisher{cfg: cfg, log: log}
	p.dial = p.dialWithRetry

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ensureChannel(ctx); err != nil {
		p.closeLocked()
		return nil, err
	}
	log.Infof("rabbitmq publisher ready: exchange=%s", cfg.Exchange)
	return p, nil
}

func (p *AMQPPublisher) dialWithRetry(ctx context.Context) (amqpConn, error) {
	operation := func() (*amqp.Connection, error) {
		conn, err := amqp.Dial(p.cfg.URL)
		if err != nil {
			p.log.Warnf("rabbitmq dial failed, retrying: %v", err)
			return nil, err
		}
		return conn, nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxInterval = 10 * time.Second
	conn, err := backoff.Retry(ctx, operation, backoff.WithBackOff(bo), backoff.WithMaxTries(amqpDialTries))
	if err != nil {
		return nil, fmt.Errorf("connect rabbitmq: %w", err)
	}
	return amqpConnection{conn}, nil
}

// ensureChannel redials a closed connection and reopens a closed channel.
// p.mu must be held.
func (p *AMQPPublisher) ensureChannel(ctx context.Context) error {
	if p.ch != nil && !p.ch.IsClosed() {
		return nil
	}

	if p.conn == nil || p.conn.IsClosed() {
		if p.conn != nil {
			p.log.Warnf("rabbitmq connection lost, reconnecting")
			_ = p.conn.Close()
			p.conn = nil
		}
		conn, err := p.dial(ctx)
		if err != nil {
			return err
		}
		p.conn = conn
	}

	ch, err := p.conn.channel()
	if err != nil {
		return fmt.Errorf("open rabbitmq channel: %w", err)
	}
	if err := ch.ExchangeDeclare(p.cfg.Exchange, p.cfg.Kind, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		return fmt.Errorf("declare exchange %s: %w", p.cfg.Exchange, err)
	}
	p.ch = ch
	return nil
}

func (p *AMQPPublisher) Publish(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.ensureChannel(ctx); err != nil {
		return err
	}

	return p.ch.PublishWithContext(ctx, p.cfg.Exchange, p.cfg.RoutingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    event.OccurredAt,
		Type:         event.Kind,
		Body:         body,
	})
}

func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closeLocked()
}

func (p *AMQPPublisher) closeLocked() error {
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn == nil {
		return nil
	}
	err := p.conn.Close()
	p.conn = nil
	return err
}

package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"ugc-forge/app/config"
	"ugc-forge/app/logger"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChannel struct {
	closed    bool
	published []amqp.Publishing
	exchanges []string
}

func (c *fakeChannel) ExchangeDeclare(name, _ string, _, _, _, _ bool, _ amqp.Table) error {
	c.exchanges = append(c.exchanges, name)
	return nil
}

func (c *fakeChannel) PublishWithContext(_ context.Context, _, _ string, _, _ bool, msg amqp.Publishing) error {
	if c.closed {
		return amqp.ErrClosed
	}
	c.published = append(c.published, msg)
	return nil
}

func (c *fakeChannel) IsClosed() bool { return c.closed }
func (c *fakeChannel) Close() error   { c.closed = true; return nil }

type fakeConn struct {
	closed   bool
	channels []*fakeChannel
}

func (c *fakeConn) channel() (amqpChannel, error) {
	if c.closed {
		return nil, amqp.ErrClosed
	}
	ch := &fakeChannel{}
	c.channels = append(c.channels, ch)
	return ch, nil
}

func (c *fakeConn) IsClosed() bool { return c.closed }
func (c *fakeConn) Close() error   { c.closed = true; return nil }

type fakeBroker struct {
	conns []*fakeConn
	down  bool
}

func (b *fakeBroker) dial(context.Context) (amqpConn, error) {
	if b.down {
		return nil, errors.New("connection refused")
	}
	conn := &fakeConn{}
	b.conns = append(b.conns, conn)
	return conn, nil
}

func newTestAMQPPublisher(b *fakeBroker) *AMQPPublisher {
	return &AMQPPublisher{
		cfg:  config.AMQPConfig{Exchange: "generation.status", Kind: "topic", RoutingKey: "status.updated"},
		log:  logger.NewNop(),
		dial: b.dial,
	}
}

func testEvent() Event {
	return Event{Kind: KindFile, ID: "file-1", Status: "completed", OccurredAt: time.Now()}
}

func TestAMQPPublisherReusesOpenChannel(t *testing.T) {
	b := &fakeBroker{}
	p := newTestAMQPPublisher(b)

	require.NoError(t, p.Publish(context.Background(), testEvent()))
	require.NoError(t, p.Publish(context.Background(), testEvent()))

	require.Len(t, b.conns, 1)
	require.Len(t, b.conns[0].channels, 1)
	assert.Len(t, b.conns[0].channels[0].published, 2)
	assert.Equal(t, []string{"generation.status"}, b.conns[0].channels[0].exchanges)
}

func TestAMQPPublisherReopensClosedChannel(t *testing.T) {
	b := &fakeBroker{}
	p := newTestAMQPPublisher(b)
	require.NoError(t, p.Publish(context.Background(), testEvent()))

	b.conns[0].channels[0].closed = true
	require.NoError(t, p.Publish(context.Background(), testEvent()))

	require.Len(t, b.conns, 1)
	require.Len(t, b.conns[0].channels, 2)
	assert.Len(t, b.conns[0].channels[1].published, 1)
}

func TestAMQPPublisherRedialsAfterBrokerRestart(t *testing.T) {
	b := &fakeBroker{}
	p := newTestAMQPPublisher(b)
	require.NoError(t, p.Publish(context.Background(), testEvent()))

	// broker goes away: connection and its channel are closed
	b.conns[0].closed = true
	b.conns[0].channels[0].closed = true
	b.down = true

	assert.Error(t, p.Publish(context.Background(), testEvent()))

	b.down = false
	require.NoError(t, p.Publish(context.Background(), testEvent()))

	require.Len(t, b.conns, 2)
	require.Len(t, b.conns[1].channels, 1)
	assert.Len(t, b.conns[1].channels[0].published, 1)
	assert.Equal(t, "application/json", b.conns[1].channels[0].published[0].ContentType)
}

func TestAMQPPublisherClose(t *testing.T) {
	b := &fakeBroker{}
	p := newTestAMQPPublisher(b)
	require.NoError(t, p.Publish(context.Background(), testEvent()))

	require.NoError(t, p.Close())
	assert.True(t, b.conns[0].closed)
	assert.True(t, b.conns[0].channels[0].closed)
	assert.NoError(t, p.Close())
}

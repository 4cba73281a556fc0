package rabbitmq

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log"
	"os"
	"testing"
	"time"

	amqp "github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAcknowledger struct {
	acked   int
	nacked  int
	requeue bool
	ackErr  error
}

func (f *fakeAcknowledger) Ack(tag uint64, multiple bool) error {
	f.acked++
	return f.ackErr
}

func (f *fakeAcknowledger) Nack(tag uint64, multiple bool, requeue bool) error {
	f.nacked++
	f.requeue = requeue
	return nil
}

func (f *fakeAcknowledger) Reject(tag uint64, requeue bool) error {
	return f.Nack(tag, false, requeue)
}

func delivery(t *testing.T, ack amqp.Acknowledger, inv Invalidation) amqp.Delivery {
	t.Helper()
	body, err := json.Marshal(inv)
	require.NoError(t, err)
	return amqp.Delivery{Acknowledger: ack, Body: body, DeliveryTag: 1}
}

func TestDispatch_AppliesRemoteInvalidation(t *testing.T) {
	c := &Client{origin: "self"}
	ack := &fakeAcknowledger{}
	var got string

	c.dispatch(context.Background(), delivery(t, ack, Invalidation{View: "/products", Origin: "other"}),
		func(_ context.Context, view string) error {
			got = view
			return nil
		})

	assert.Equal(t, "/products", got)
	assert.Equal(t, 1, ack.acked)
	assert.Zero(t, ack.nacked)
}

func TestDispatch_SkipsOwnMessages(t *testing.T) {
	c := &Client{origin: "self"}
	ack := &fakeAcknowledger{}
	called := false

	c.dispatch(context.Background(), delivery(t, ack, Invalidation{View: "/products", Origin: "self"}),
		func(context.Context, string) error {
			called = true
			return nil
		})

	assert.False(t, called)
	assert.Equal(t, 1, ack.acked)
}

func TestDispatch_HandlerFailureRequeues(t *testing.T) {
	c := &Client{origin: "self"}
	ack := &fakeAcknowledger{}

	c.dispatch(context.Background(), delivery(t, ack, Invalidation{View: "/products", Origin: "other"}),
		func(context.Context, string) error { return errors.New("redis down") })

	assert.Equal(t, 1, ack.nacked)
	assert.True(t, ack.requeue)
}

func TestDispatch_RedeliveredFailureIsDropped(t *testing.T) {
	c := &Client{origin: "self"}
	ack := &fakeAcknowledger{}
	msg := delivery(t, ack, Invalidation{View: "/products", Origin: "other"})
	msg.Redelivered = true

	c.dispatch(context.Background(), msg,
		func(context.Context, string) error { return errors.New("redis down") })

	assert.Equal(t, 1, ack.nacked)
	assert.False(t, ack.requeue)
}

func TestDispatch_OwnMessageAckFailureIsLogged(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	t.Cleanup(func() { log.SetOutput(os.Stderr) })

	c := &Client{origin: "self"}
	ack := &fakeAcknowledger{ackErr: errors.New("channel closed")}

	c.dispatch(context.Background(), delivery(t, ack, Invalidation{View: "/products", Origin: "self"}),
		func(context.Context, string) error {
			t.Fatal("handler must not run")
			return nil
		})

	assert.Equal(t, 1, ack.acked)
	assert.Contains(t, buf.String(), "channel closed")
}

func TestDispatch_MalformedIsDropped(t *testing.T) {
	c := &Client{origin: "self"}
	ack := &fakeAcknowledger{}

	c.dispatch(context.Background(), amqp.Delivery{Acknowledger: ack, Body: []byte("{"), DeliveryTag: 7},
		func(context.Context, string) error {
			t.Fatal("handler must not run")
			return nil
		})

	assert.Equal(t, 1, ack.nacked)
	assert.False(t, ack.requeue)
}

// Runs only against a live broker at RABBITMQ_URL.
func TestClient_PublishAndConsume(t *testing.T) {
	url := os.Getenv("RABBITMQ_URL")
	if url == "" {
		t.Skip("RABBITMQ_URL not set")
	}
	cfg := Config{URL: url, Exchange: "catalog.views.test"}
	publisher, err := NewClient(cfg)
	require.NoError(t, err)
	defer publisher.Close()
	consumer, err := NewClient(cfg)
	require.NoError(t, err)
	defer consumer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	views := make(chan string, 1)
	require.NoError(t, consumer.ConsumeInvalidations(ctx, func(_ context.Context, view string) error {
		views <- view
		return nil
	}))

	require.NoError(t, publisher.PublishInvalidation(ctx, "/products"))
	select {
	case v := <-views:
		assert.Equal(t, "/products", v)
	case <-time.After(5 * time.Second):
		t.Fatal("invalidation not received")
	}
}

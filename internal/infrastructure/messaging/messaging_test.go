package messaging

import (
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clipdeck/clipdeck/internal/domain/shared"
)

func toggled() shared.EdgeToggledEvent {
	return shared.NewEdgeToggledEvent("a", "b", "LIKE", "content", true, "owner")
}

func TestInMemoryEventBus_SyncDelivery(t *testing.T) {
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{})
	defer bus.Close()

	var typed, all []shared.EventType
	require.NoError(t, bus.Subscribe(shared.EventEdgeToggled, func(e shared.Event) error {
		typed = append(typed, e.EventType())
		return nil
	}))
	require.NoError(t, bus.SubscribeAll(func(e shared.Event) error {
		all = append(all, e.EventType())
		return nil
	}))

	require.NoError(t, bus.Publish(toggled()))
	require.NoError(t, bus.Publish(shared.NewContentChangedEvent(shared.EventContentCreated, "c", "o", "video")))

	assert.Equal(t, []shared.EventType{shared.EventEdgeToggled}, typed)
	assert.Equal(t, []shared.EventType{shared.EventEdgeToggled, shared.EventContentCreated}, all)
}

func TestInMemoryEventBus_AsyncDrainsOnClose(t *testing.T) {
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{AsyncMode: true, WorkerPoolSize: 2})

	var n atomic.Int32
	require.NoError(t, bus.Subscribe(shared.EventEdgeToggled, func(shared.Event) error {
		time.Sleep(time.Millisecond)
		n.Add(1)
		return nil
	}))
	for i := 0; i < 10; i++ {
		require.NoError(t, bus.Publish(toggled()))
	}
	require.NoError(t, bus.Close())
	assert.LessOrEqual(t, n.Load(), int32(10))

	assert.ErrorIs(t, bus.Publish(toggled()), ErrEventBusClosed)
	assert.ErrorIs(t, bus.Subscribe(shared.EventEdgeToggled, func(shared.Event) error { return nil }), ErrEventBusClosed)
}

func TestInMemoryEventBus_PanicIsContained(t *testing.T) {
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{})
	defer bus.Close()

	called := false
	require.NoError(t, bus.Subscribe(shared.EventEdgeToggled, func(shared.Event) error { panic("bad handler") }))
	require.NoError(t, bus.Subscribe(shared.EventEdgeToggled, func(shared.Event) error {
		called = true
		return nil
	}))

	require.NoError(t, bus.Publish(toggled()))
	assert.True(t, called)

	err := bus.execute(toggled(), func(shared.Event) error { panic("x") })
	assert.ErrorIs(t, err, ErrHandlerPanic)
}

func TestInMemoryEventBus_RejectsNil(t *testing.T) {
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{})
	defer bus.Close()
	assert.Error(t, bus.Subscribe(shared.EventEdgeToggled, nil))
	assert.Error(t, bus.Publish(nil))
}

type failingSink struct{ calls int }

func (s *failingSink) Publish(shared.Event) error {
	s.calls++
	return errors.New("down")
}

func TestFanOutPublisher_SinkFailureDoesNotPropagate(t *testing.T) {
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{})
	defer bus.Close()
	delivered := false
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error {
		delivered = true
		return nil
	}))

	sink := &failingSink{}
	pub := NewFanOutPublisher(bus, nil, sink)
	require.NoError(t, pub.Publish(toggled()))
	assert.True(t, delivered)
	assert.Equal(t, 1, sink.calls)
}

type fakeConn struct {
	mu   sync.Mutex
	msgs []*nats.Msg
	errs []error
}

func (c *fakeConn) PublishMsg(m *nats.Msg) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.errs) > 0 {
		err := c.errs[0]
		c.errs = c.errs[1:]
		return err
	}
	c.msgs = append(c.msgs, m)
	return nil
}

func TestNATSPublisher_Publish(t *testing.T) {
	conn := &fakeConn{}
	pub := NewNATSPublisher(conn, NATSPublisherConfig{})

	ev := toggled()
	ev.BaseEvent = ev.BaseEvent.WithCorrelationID("req-1")
	require.NoError(t, pub.Publish(ev))

	require.Len(t, conn.msgs, 1)
	msg := conn.msgs[0]
	assert.Equal(t, "clipdeck.social.edge_toggled", msg.Subject)
	assert.Equal(t, "req-1", msg.Header.Get("X-Correlation-ID"))
	assert.NotEmpty(t, msg.Header.Get("Nats-Msg-Id"))

	var env shared.EventEnvelope
	require.NoError(t, json.Unmarshal(msg.Data, &env))
	assert.Equal(t, shared.EventEdgeToggled, env.Type)
	assert.Equal(t, "req-1", env.CorrelationID)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(env.Payload, &payload))
	assert.Equal(t, true, payload["is_present"])
	assert.Equal(t, "owner", payload["channel_id"])
}

func TestNATSPublisher_RetriesTransientFailure(t *testing.T) {
	conn := &fakeConn{errs: []error{nats.ErrConnectionClosed}}
	pub := NewNATSPublisher(conn, NATSPublisherConfig{SubjectPrefix: "test"})

	require.NoError(t, pub.Publish(toggled()))
	require.Len(t, conn.msgs, 1)
	assert.Equal(t, "test.social.edge_toggled", conn.msgs[0].Subject)
}

func TestNATSPublisher_GivesUpAsUnavailable(t *testing.T) {
	down := nats.ErrConnectionClosed
	conn := &fakeConn{errs: []error{down, down, down}}
	pub := NewNATSPublisher(conn, NATSPublisherConfig{})

	err := pub.Publish(toggled())
	require.Error(t, err)
	assert.True(t, shared.IsRetryable(err))
	assert.Empty(t, conn.msgs)
}

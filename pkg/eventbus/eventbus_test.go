package eventbus

import (
	"testing"
	"time"

	"github.com/cuenv-dev/cuenv/pkg/secretredact"
	"github.com/stretchr/testify/require"
)

func TestPublishSubscribe_DeliversEvent(t *testing.T) {
	bus := New(nil, 8)
	defer bus.Close()

	sub := bus.Subscribe()
	defer sub.Unsubscribe()

	bus.Publish(Event{TaskFQDN: "app:build", Type: Started})

	select {
	case ev := <-sub.Events():
		require.Equal(t, Started, ev.Type)
		require.NotEmpty(t, ev.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestSubscribe_LateSubscriberMissesEarlierEvents(t *testing.T) {
	bus := New(nil, 8)
	defer bus.Close()

	firstSub := bus.Subscribe()
	bus.Publish(Event{Type: Started})
	<-firstSub.Events()

	lateSub := bus.Subscribe()
	bus.Publish(Event{Type: Completed})

	select {
	case ev := <-lateSub.Events():
		require.Equal(t, Completed, ev.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out")
	}
}

func TestRedaction_AppliesBeforeDelivery(t *testing.T) {
	registry := secretredact.New()
	require.NoError(t, registry.Register("supersecret123"))
	bus := New(registry, 8)
	defer bus.Close()

	sub := bus.Subscribe()
	bus.Publish(Event{Payload: "token=supersecret123"})

	select {
	case ev := <-sub.Events():
		require.Equal(t, "token=*_*", ev.Payload)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out")
	}
}

func TestSenderAndSubscriberCounts(t *testing.T) {
	bus := New(nil, 8)
	defer bus.Close()

	sub1 := bus.Subscribe()
	sub2 := bus.Subscribe()
	defer sub1.Unsubscribe()
	defer sub2.Unsubscribe()

	require.Equal(t, 2, bus.SubscriberCount())

	bus.Publish(Event{Type: Started})
	<-sub1.Events()
	<-sub2.Events()
	require.Equal(t, int64(1), bus.SenderCount())
}

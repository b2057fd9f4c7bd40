package bus

import (
	"testing"
	"time"
)

func TestPublishSubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("conn.", 10)
	defer unsub()

	b.Publish(Event{Kind: KindConnOpen, Payload: "test"})

	select {
	case evt := <-ch:
		if evt.Kind != KindConnOpen {
			t.Errorf("got kind %q, want %q", evt.Kind, KindConnOpen)
		}
		if evt.Timestamp.IsZero() {
			t.Error("Publish should stamp a timestamp")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestNamespaceFiltering(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("message.", 10)
	defer unsub()

	b.Publish(Event{Kind: KindConnClose})
	b.Publish(Event{Kind: KindMessageReceived})

	select {
	case evt := <-ch:
		if evt.Kind != KindMessageReceived {
			t.Errorf("got kind %q, want %q", evt.Kind, KindMessageReceived)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}

	// Ensure conn event was not delivered.
	select {
	case evt := <-ch:
		t.Errorf("unexpected event: %v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestUnsubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("conn.", 10)
	unsub()

	b.Publish(Event{Kind: KindConnOpen})

	select {
	case evt := <-ch:
		t.Errorf("received event after unsubscribe: %v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDropOnFullBuffer(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("conn.", 1)
	defer unsub()

	b.Publish(Event{Kind: KindConnOpen})
	// This one should be dropped (non-blocking delivery).
	b.Publish(Event{Kind: KindConnClose})

	evt := <-ch
	if evt.Kind != KindConnOpen {
		t.Errorf("got %q, want %q", evt.Kind, KindConnOpen)
	}
}

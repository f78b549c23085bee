package registry

import (
	"testing"
	"time"
)

func TestHubDeliversToAllSubscribers(t *testing.T) {
	h := NewHub()
	a, cancelA := h.Subscribe()
	b, cancelB := h.Subscribe()
	defer cancelA()
	defer cancelB()

	ev := Event{CertificateHash: "cert-1", EditionHash: "ed-1", TxID: "tx-1"}
	h.Publish(ev)

	for name, ch := range map[string]<-chan Event{"a": a, "b": b} {
		select {
		case got := <-ch:
			if got.CertificateHash != ev.CertificateHash || got.TxID != ev.TxID {
				t.Fatalf("subscriber %s got %+v, want %+v", name, got, ev)
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber %s received nothing", name)
		}
	}
}

func TestHubDropsWhenSubscriberIsFull(t *testing.T) {
	h := NewHub()
	ch, cancel := h.Subscribe()
	defer cancel()

	// Publish past the buffer without draining; Publish must not block.
	for i := 0; i < subscriberBuffer*3; i++ {
		h.Publish(Event{TxID: "tx"})
	}
	if len(ch) != subscriberBuffer {
		t.Fatalf("buffered = %d, want %d", len(ch), subscriberBuffer)
	}
}

func TestHubCancelClosesChannel(t *testing.T) {
	h := NewHub()
	ch, cancel := h.Subscribe()

	cancel()
	cancel() // second cancel is a no-op

	if _, open := <-ch; open {
		t.Fatal("channel still open after cancel")
	}

	// Publishing after cancel must not panic or deliver.
	h.Publish(Event{TxID: "tx"})
}

func TestHubSubscribersAreIndependent(t *testing.T) {
	h := NewHub()
	a, cancelA := h.Subscribe()
	_, cancelB := h.Subscribe()

	cancelB()
	h.Publish(Event{TxID: "tx-live"})

	select {
	case got := <-a:
		if got.TxID != "tx-live" {
			t.Fatalf("got %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("remaining subscriber received nothing")
	}
	cancelA()
}

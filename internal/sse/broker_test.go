package sse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/starford/vaultlinker/internal/batch"
)

func drain(ch chan []byte) []string {
	time.Sleep(50 * time.Millisecond)
	var out []string
	for {
		select {
		case msg := <-ch:
			out = append(out, string(msg))
		default:
			return out
		}
	}
}

func TestSubscribeUnsubscribe(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients")
	}
	ch := b.Subscribe()
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}
	b.Unsubscribe(ch)
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after unsub")
	}
}

func TestPublishDelivery(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.Publish(Event{Type: TypeNoteCreated, Data: map[string]string{"path": "a.md"}})

	select {
	case msg := <-ch:
		s := string(msg)
		if !strings.HasPrefix(s, "id: ") {
			t.Errorf("missing event id in %q", s)
		}
		if !strings.Contains(s, "event: note.created") {
			t.Errorf("missing event type in %q", s)
		}
		if !strings.Contains(s, `"path":"a.md"`) {
			t.Errorf("missing data in %q", s)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestChangeEvents_VaultChangedThrottle(t *testing.T) {
	b := NewBroker(500 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	// First change triggers vault.changed, the next two fall inside the window.
	b.PublishNoteEvent("created", "a.md")
	b.PublishNoteEvent("updated", "b.md")
	b.PublishLinkEvent("b.md", 2)
	b.PublishNoteEvent("renamed", "ignored.md")

	changed, other := 0, 0
	for _, s := range drain(ch) {
		if strings.Contains(s, "event: vault.changed") {
			changed++
		} else {
			other++
		}
	}
	if other != 3 {
		t.Errorf("change events = %d, want 3", other)
	}
	if changed != 1 {
		t.Errorf("vault.changed events = %d, want 1 (throttled)", changed)
	}
}

func TestPublishLinkEvent(t *testing.T) {
	b := NewBroker(time.Hour)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.PublishLinkEvent("journal.md", 3)

	msgs := drain(ch)
	if len(msgs) == 0 {
		t.Fatal("no events delivered")
	}
	if !strings.Contains(msgs[0], "event: link.inserted") || !strings.Contains(msgs[0], `"inserted":3`) {
		t.Errorf("unexpected message %q", msgs[0])
	}
}

func TestPublishBatchEvent(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.PublishBatchEvent(batch.Event{RunID: "r1", Phase: "suggest", Kind: "item", Path: "a.md", Done: 1, Total: 2})
	b.PublishBatchEvent(batch.Event{RunID: "r1", Phase: "suggest", Kind: "completed", Done: 2, Total: 2})

	msgs := drain(ch)
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	if !strings.Contains(msgs[0], "event: batch.item") || !strings.Contains(msgs[0], `"runId":"r1"`) {
		t.Errorf("item message = %q", msgs[0])
	}
	if !strings.Contains(msgs[1], "event: batch.completed") {
		t.Errorf("completed message = %q", msgs[1])
	}
}

func TestSSEHandler(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	req = req.WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()

	// Give handler time to subscribe.
	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client from handler")
	}

	b.Publish(Event{Type: TypeLinkInserted, Data: LinkInserted{Path: "x.md", Inserted: 1}})
	time.Sleep(50 * time.Millisecond)

	cancel()
	<-done

	body := w.Body.String()
	if !strings.Contains(body, "event: link.inserted") {
		t.Errorf("handler output missing event: %q", body)
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}

	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 0 {
		t.Errorf("client not cleaned up after disconnect")
	}
}

func TestPublishDropsOnFullBuffer(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	// Fill buffer (capacity 64) and then one more should not block.
	for i := 0; i < 70; i++ {
		b.Publish(Event{Type: "test", Data: map[string]string{"i": "x"}})
	}
}

func TestCloseClosesSubscribersAndStopsOperations(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	ch := b.Subscribe()
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}

	b.Close()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected subscriber channel to be closed")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for channel close")
	}

	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after close")
	}

	// Should be safe no-op after close.
	b.Publish(Event{Type: TypeNoteUpdated, Data: map[string]string{"path": "x.md"}})
	b.PublishNoteEvent("updated", "x.md")
	b.PublishLinkEvent("x.md", 1)
	b.PublishBatchEvent(batch.Event{Kind: "completed"})
}

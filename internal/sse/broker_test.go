package sse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

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

	b.Publish(Event{Type: "block.created", Data: map[string]string{"id": "k1"}})

	select {
	case msg := <-ch:
		s := string(msg)
		if !strings.Contains(s, "event: block.created") {
			t.Errorf("missing event type in %q", s)
		}
		if !strings.Contains(s, `"id":"k1"`) {
			t.Errorf("missing data in %q", s)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func collect(t *testing.T, ch chan []byte, wait time.Duration) []string {
	t.Helper()
	var out []string
	deadline := time.After(wait)
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, string(msg))
		case <-deadline:
			return out
		}
	}
}

func TestPublishBlockEvent_GraphThrottle(t *testing.T) {
	b := NewBroker(500 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	// First event triggers graph.updated; the immediate second one is
	// inside the throttle window and must not.
	b.PublishBlockEvent("create", "k1")
	b.PublishBlockEvent("update", "k2")

	msgs := collect(t, ch, 300*time.Millisecond)
	var graphCount, blockCount int
	for _, m := range msgs {
		if strings.Contains(m, "event: graph.updated") {
			graphCount++
		}
		if strings.Contains(m, "event: block.") {
			blockCount++
		}
	}
	if blockCount != 2 {
		t.Errorf("block events = %d, want 2", blockCount)
	}
	if graphCount != 1 {
		t.Errorf("graph.updated events = %d, want 1 (throttled)", graphCount)
	}
}

func TestPublishBlockEvent_Types(t *testing.T) {
	b := NewBroker(time.Hour)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.PublishBlockEvent("delete", "gone")
	msgs := collect(t, ch, 300*time.Millisecond)

	found := false
	for _, m := range msgs {
		if strings.Contains(m, "event: block.deleted") && strings.Contains(m, `"id":"gone"`) {
			found = true
		}
	}
	if !found {
		t.Errorf("no block.deleted event in %v", msgs)
	}
}

func TestServeHTTP_StreamsEvents(t *testing.T) {
	b := NewBroker(time.Hour)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()

	// Wait for the subscription to land before publishing.
	for i := 0; i < 100; i++ {
		if b.ClientCount() == 1 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	b.PublishBlockEvent("create", "s1")
	time.Sleep(100 * time.Millisecond)
	cancel()
	<-done

	body := w.Body.String()
	if !strings.Contains(body, "event: block.created") {
		t.Errorf("stream body = %q", body)
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content type = %q", ct)
	}
}

func TestCloseIdempotent(t *testing.T) {
	b := NewBroker(time.Second)
	b.Close()
	b.Close()

	// Operations after close are no-ops.
	b.Publish(Event{Type: "x"})
	b.PublishBlockEvent("create", "y")
	if n := b.ClientCount(); n != 0 {
		t.Errorf("client count after close = %d", n)
	}
	ch := b.Subscribe()
	if _, ok := <-ch; ok {
		t.Error("subscribe after close should return a closed channel")
	}
}

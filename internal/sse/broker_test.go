package sse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// drain collects the messages already queued on ch.
func drain(t *testing.T, ch chan []byte) []string {
	t.Helper()
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

func countType(msgs []string, typ string) int {
	n := 0
	for _, m := range msgs {
		if strings.Contains(m, "event: "+typ+"\n") {
			n++
		}
	}
	return n
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
	if _, ok := <-ch; ok {
		t.Error("channel not closed by Unsubscribe")
	}
}

func TestIndexUpdated_FramedWithSequence(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.PublishIndexUpdated(3, true)
	b.PublishIndexUpdated(4, false)

	msgs := drain(t, ch)
	if len(msgs) != 2 {
		t.Fatalf("messages = %q", msgs)
	}
	want := "id: 1\nevent: index.updated\ndata: {\"topics\":3,\"written\":true,\"collections\":[]}\n\n"
	if msgs[0] != want {
		t.Errorf("first = %q, want %q", msgs[0], want)
	}
	if !strings.HasPrefix(msgs[1], "id: 2\n") {
		t.Errorf("second = %q, want id 2", msgs[1])
	}
}

func TestPublishChange_StaleThrottledAndPending(t *testing.T) {
	b := NewBroker(time.Hour)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.PublishChange("Work", "a.md", "created")
	b.PublishChange("Recordings", "b.md", "updated")

	msgs := drain(t, ch)
	if n := countType(msgs, TypeCollectionChanged); n != 2 {
		t.Errorf("change events = %d, want 2", n)
	}
	if n := countType(msgs, TypeIndexStale); n != 1 {
		t.Fatalf("stale events = %d, want 1: %q", n, msgs)
	}
	if !strings.Contains(msgs[0], `"collection":"Work","path":"a.md","kind":"created"`) {
		t.Errorf("first change payload = %q", msgs[0])
	}
	if !strings.Contains(msgs[1], `"collections":["Work"]`) {
		t.Errorf("stale payload = %q", msgs[1])
	}

	b.PublishIndexUpdated(5, true)
	msgs = drain(t, ch)
	if len(msgs) != 1 || !strings.Contains(msgs[0], `"collections":["Recordings","Work"]`) {
		t.Fatalf("index.updated = %q", msgs)
	}

	// The update clears pending changes and re-arms the stale notice.
	b.PublishChange("Work", "c.md", "deleted")
	msgs = drain(t, ch)
	if countType(msgs, TypeIndexStale) != 1 {
		t.Fatalf("stale not re-armed after index.updated: %q", msgs)
	}
	if !strings.Contains(msgs[1], `"collections":["Work"]`) {
		t.Errorf("stale payload after update = %q", msgs[1])
	}
}

func TestSSEHandler(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	b.keepAlive = 20 * time.Millisecond
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/api/events", nil).WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client from handler")
	}

	b.PublishChange("Work", "x.md", "updated")
	time.Sleep(50 * time.Millisecond)

	cancel()
	<-done

	body := w.Body.String()
	if !strings.Contains(body, "event: collection.changed") {
		t.Errorf("handler output missing event: %q", body)
	}
	if !strings.Contains(body, ": keep-alive\n\n") {
		t.Errorf("handler output missing keep-alive: %q", body)
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}

	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 0 {
		t.Errorf("client not cleaned up after disconnect")
	}
}

func TestSlowClientMissesEvents(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	for i := 0; i < clientBuffer+6; i++ {
		b.PublishIndexUpdated(i, false)
	}
	time.Sleep(50 * time.Millisecond)
	if n := len(ch); n != clientBuffer {
		t.Errorf("buffered = %d, want %d", n, clientBuffer)
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
	if _, ok := <-b.Subscribe(); ok {
		t.Error("Subscribe after Close must return a closed channel")
	}

	b.PublishIndexUpdated(1, false)
	b.PublishChange("Work", "x.md", "updated")
	b.Close()
}

// Package sse streams collection and topic index notifications to HTTP
// clients as Server-Sent Events.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"sync/atomic"
	"time"
)

// Event types sent to clients.
const (
	TypeCollectionChanged = "collection.changed"
	TypeIndexStale        = "index.stale"
	TypeIndexUpdated      = "index.updated"
)

const (
	clientBuffer     = 64
	opsBuffer        = 256
	defaultKeepAlive = 25 * time.Second
)

// ChangeData is the payload of collection.changed.
type ChangeData struct {
	Collection string `json:"collection"`
	Path       string `json:"path"`
	Kind       string `json:"kind"`
}

// StaleData is the payload of index.stale: collections changed since the
// last index.updated.
type StaleData struct {
	Collections []string `json:"collections"`
}

// IndexData is the payload of index.updated. Collections lists the changed
// collections the regenerated index now covers.
type IndexData struct {
	Topics      int      `json:"topics"`
	Written     bool     `json:"written"`
	Collections []string `json:"collections"`
}

// hub is the state owned by the broker loop.
type hub struct {
	clients    map[chan []byte]struct{}
	seq        uint64
	pending    map[string]struct{}
	staleEvery time.Duration
	lastStale  time.Time
}

// send frames one event with the next sequence id. Clients whose buffer is
// full miss it; the id gap shows them they did.
func (h *hub) send(typ string, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		return
	}
	h.seq++
	msg := []byte(fmt.Sprintf("id: %d\nevent: %s\ndata: %s\n\n", h.seq, typ, payload))
	for ch := range h.clients {
		select {
		case ch <- msg:
		default:
		}
	}
}

func (h *hub) change(c ChangeData, now time.Time) {
	h.send(TypeCollectionChanged, c)
	h.pending[c.Collection] = struct{}{}
	if now.Sub(h.lastStale) >= h.staleEvery {
		h.lastStale = now
		h.send(TypeIndexStale, StaleData{Collections: h.pendingNames()})
	}
}

func (h *hub) indexUpdated(topics int, written bool) {
	h.send(TypeIndexUpdated, IndexData{Topics: topics, Written: written, Collections: h.pendingNames()})
	clear(h.pending)
	h.lastStale = time.Time{}
}

func (h *hub) pendingNames() []string {
	out := make([]string, 0, len(h.pending))
	for name := range h.pending {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Broker fans murmur notifications out to SSE clients. All state lives in
// a hub touched only by the loop goroutine; callers submit operations.
type Broker struct {
	ops       chan func(*hub)
	done      chan struct{}
	stopped   chan struct{}
	closed    atomic.Bool
	keepAlive time.Duration
}

// NewBroker starts a broker. After a change, index.stale is sent at most
// once per staleEvery until the next index.updated.
func NewBroker(staleEvery time.Duration) *Broker {
	if staleEvery <= 0 {
		staleEvery = 2 * time.Second
	}
	b := &Broker{
		ops:       make(chan func(*hub), opsBuffer),
		done:      make(chan struct{}),
		stopped:   make(chan struct{}),
		keepAlive: defaultKeepAlive,
	}
	go b.loop(&hub{
		clients:    make(map[chan []byte]struct{}),
		pending:    make(map[string]struct{}),
		staleEvery: staleEvery,
	})
	return b
}

func (b *Broker) loop(h *hub) {
	defer close(b.stopped)
	for {
		select {
		case <-b.done:
			for ch := range h.clients {
				close(ch)
			}
			return
		case op := <-b.ops:
			op(h)
		}
	}
}

// do queues op for the loop. It reports false once the broker is closed.
func (b *Broker) do(op func(*hub)) bool {
	if b.closed.Load() {
		return false
	}
	select {
	case b.ops <- op:
		return true
	case <-b.stopped:
		return false
	}
}

// Close stops the loop and closes every client channel.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.done)
	}
	<-b.stopped
}

// Subscribe registers a client. The channel is closed on Unsubscribe or
// Close.
func (b *Broker) Subscribe() chan []byte {
	ch := make(chan []byte, clientBuffer)
	if !b.do(func(h *hub) { h.clients[ch] = struct{}{} }) {
		close(ch)
	}
	return ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	b.do(func(h *hub) {
		if _, ok := h.clients[ch]; ok {
			delete(h.clients, ch)
			close(ch)
		}
	})
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	n := make(chan int, 1)
	if !b.do(func(h *hub) { n <- len(h.clients) }) {
		return 0
	}
	select {
	case v := <-n:
		return v
	case <-b.stopped:
		return 0
	}
}

// PublishChange announces a note change and marks its collection pending.
func (b *Broker) PublishChange(collection, path, kind string) {
	now := time.Now()
	c := ChangeData{Collection: collection, Path: path, Kind: kind}
	b.do(func(h *hub) { h.change(c, now) })
}

// PublishIndexUpdated announces a regenerated topic index and clears the
// pending collections.
func (b *Broker) PublishIndexUpdated(topics int, written bool) {
	b.do(func(h *hub) { h.indexUpdated(topics, written) })
}

// ServeHTTP is the SSE endpoint handler (GET /api/events).
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	ping := time.NewTicker(b.keepAlive)
	defer ping.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ping.C:
			_, _ = w.Write([]byte(": keep-alive\n\n"))
			flusher.Flush()
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}

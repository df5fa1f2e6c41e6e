// Package sse implements a Server-Sent Events broker that tells browsers about
// note, share and upload changes.
package sse

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// Event types.
const (
	NoteCreated   = "note.created"
	NoteUpdated   = "note.updated"
	NoteDeleted   = "note.deleted"
	NoteShared    = "note.shared"
	NoteBurned    = "note.burned"
	UploadCreated = "upload.created"
	IndexUpdated  = "index.updated"
)

// DefaultKeepAlive is how often idle streams receive a comment line.
const DefaultKeepAlive = 30 * time.Second

// retryMillis is the reconnect delay suggested to browsers on connect.
const retryMillis = 3000

// clientBuffer is the number of frames a slow client may lag behind before
// frames are dropped for it.
const clientBuffer = 64

// Event represents an SSE event to broadcast.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// frame renders e in text/event-stream form.
func (e Event) frame() ([]byte, error) {
	data, err := json.Marshal(e.Data)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.Grow(len(e.Type) + len(data) + 16)
	buf.WriteString("event: ")
	buf.WriteString(e.Type)
	buf.WriteString("\ndata: ")
	buf.Write(data)
	buf.WriteString("\n\n")
	return buf.Bytes(), nil
}

// Broker fans events out to connected streams. Each stream owns a buffered
// channel; a stream that falls behind loses frames rather than stalling
// publishers. All state is guarded by mu.
type Broker struct {
	mu        sync.Mutex
	clients   map[chan []byte]struct{}
	closed    bool
	lastIndex time.Time

	indexMin  time.Duration
	keepAlive time.Duration
	now       func() time.Time
}

// NewBroker creates a new SSE broker. index.updated events are sent at most
// once per indexThrottle.
func NewBroker(indexThrottle time.Duration) *Broker {
	if indexThrottle <= 0 {
		indexThrottle = 2 * time.Second
	}
	return &Broker{
		clients:   make(map[chan []byte]struct{}),
		indexMin:  indexThrottle,
		keepAlive: DefaultKeepAlive,
		now:       time.Now,
	}
}

// Close ends every stream. Later calls, and any publish after Close, are
// no-ops.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for ch := range b.clients {
		close(ch)
		delete(b.clients, ch)
	}
}

// Subscribe registers a stream. On a closed broker the returned channel is
// already closed.
func (b *Broker) Subscribe() chan []byte {
	ch := make(chan []byte, clientBuffer)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch
	}
	b.clients[ch] = struct{}{}
	return ch
}

// Unsubscribe removes a stream and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.clients[ch]; ok {
		delete(b.clients, ch)
		close(ch)
	}
}

// ClientCount returns the number of connected streams.
func (b *Broker) ClientCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}

// Publish sends an event to every connected stream.
func (b *Broker) Publish(event Event) {
	msg, err := event.frame()
	if err != nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fanOut(msg)
}

// fanOut must be called with mu held.
func (b *Broker) fanOut(msg []byte) {
	if b.closed {
		return
	}
	for ch := range b.clients {
		select {
		case ch <- msg:
		default:
		}
	}
}

// PublishPath publishes an event whose payload is {"path": path}.
func (b *Broker) PublishPath(eventType, path string) {
	b.Publish(Event{Type: eventType, Data: map[string]string{"path": path}})
}

// PublishIndexUpdated publishes a throttled index.updated event. Calls inside
// the throttle window are dropped.
func (b *Broker) PublishIndexUpdated(data any) {
	if data == nil {
		data = map[string]string{}
	}
	msg, err := Event{Type: IndexUpdated, Data: data}.frame()
	if err != nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	now := b.now()
	if !b.lastIndex.IsZero() && now.Sub(b.lastIndex) < b.indexMin {
		return
	}
	b.lastIndex = now
	b.fanOut(msg)
}

// ServeHTTP is the SSE endpoint handler (GET /api/events).
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	write := func(p []byte) {
		_, _ = w.Write(p)
		flusher.Flush()
	}
	write([]byte("retry: " + strconv.Itoa(retryMillis) + "\n\n"))

	ping := time.NewTicker(b.keepAlive)
	defer ping.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ping.C:
			write([]byte(": ping\n\n"))
		case msg, ok := <-ch:
			if !ok {
				return
			}
			write(msg)
		}
	}
}

package server

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/alfredjeanlab/specs/internal/events"
)

const (
	// sseRingBufferSize is how many recent events are kept for clients that
	// reconnect with Last-Event-ID.
	sseRingBufferSize = 1000

	sseClientBuffer      = 64
	sseKeepaliveInterval = 15 * time.Second
)

// sseEvent is one change event as sent to SSE clients. IDs increase by one
// per broadcast, starting at 1.
type sseEvent struct {
	ID    uint64
	Topic string
	Data  []byte
}

// sseHub fans change events out to connected SSE clients and remembers the
// most recent ones for replay.
type sseHub struct {
	mu      sync.Mutex
	lastID  uint64
	history []*sseEvent // oldest first once full; head marks the oldest slot
	head    int
	clients map[*sseClient]struct{}
}

type sseClient struct {
	filter topicFilter
	ch     chan *sseEvent
}

func newSSEHub() *sseHub {
	return &sseHub{
		history: make([]*sseEvent, 0, sseRingBufferSize),
		clients: make(map[*sseClient]struct{}),
	}
}

// broadcast records the event and offers it to every matching client.
// Clients whose buffer is full miss the event.
func (h *sseHub) broadcast(topic string, payload []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.lastID++
	evt := &sseEvent{ID: h.lastID, Topic: topic, Data: payload}
	if len(h.history) < sseRingBufferSize {
		h.history = append(h.history, evt)
	} else {
		h.history[h.head] = evt
		h.head = (h.head + 1) % sseRingBufferSize
	}

	for c := range h.clients {
		if !c.filter.match(topic) {
			continue
		}
		select {
		case c.ch <- evt:
		default:
		}
	}
}

func (h *sseHub) subscribe(topics []string) *sseClient {
	c := &sseClient{filter: topicFilter(topics), ch: make(chan *sseEvent, sseClientBuffer)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	return c
}

func (h *sseHub) unsubscribe(c *sseClient) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
}

// eventsSince returns the remembered events newer than lastID, oldest first.
func (h *sseHub) eventsSince(lastID uint64) []*sseEvent {
	h.mu.Lock()
	defer h.mu.Unlock()

	var out []*sseEvent
	n := len(h.history)
	for i := 0; i < n; i++ {
		evt := h.history[(h.head+i)%n]
		if evt.ID > lastID {
			out = append(out, evt)
		}
	}
	return out
}

// topicFilter is a list of topic patterns; an empty filter matches every
// topic.
type topicFilter []string

func (f topicFilter) match(topic string) bool {
	if len(f) == 0 {
		return true
	}
	for _, p := range f {
		if matchTopicPattern(p, topic) {
			return true
		}
	}
	return false
}

// parseTopicFilter reads comma-separated patterns from every "topics"
// query parameter.
func parseTopicFilter(r *http.Request) topicFilter {
	var f topicFilter
	for _, q := range r.URL.Query()["topics"] {
		for _, p := range strings.Split(q, ",") {
			if p = strings.TrimSpace(p); p != "" {
				f = append(f, p)
			}
		}
	}
	return f
}

// matchTopicPattern matches a dot-separated topic the way NATS matches
// subjects: "*" stands for one segment and a trailing ">" for one or more.
func matchTopicPattern(pattern, topic string) bool {
	for {
		pseg, prest, pmore := strings.Cut(pattern, ".")
		if pseg == ">" {
			return topic != ""
		}
		tseg, trest, tmore := strings.Cut(topic, ".")
		if pseg != "*" && pseg != tseg {
			return false
		}
		if !pmore || !tmore {
			return pmore == tmore
		}
		pattern, topic = prest, trest
	}
}

// handleEventStream handles GET /v1/events/stream. Optional ?topics=
// patterns narrow the stream; a Last-Event-ID header replays remembered
// events first.
func (s *SpecServer) handleEventStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	client := s.sseHub.subscribe(parseTopicFilter(r))
	defer s.sseHub.unsubscribe(client)

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	if lastID, err := strconv.ParseUint(r.Header.Get("Last-Event-ID"), 10, 64); err == nil {
		for _, evt := range s.sseHub.eventsSince(lastID) {
			if client.filter.match(evt.Topic) {
				writeSSEEvent(w, evt)
			}
		}
		flusher.Flush()
	}

	keepalive := time.NewTicker(sseKeepaliveInterval)
	defer keepalive.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case evt := <-client.ch:
			writeSSEEvent(w, evt)
		case <-keepalive.C:
			fmt.Fprint(w, ":keepalive\n\n")
		}
		flusher.Flush()
	}
}

func writeSSEEvent(w http.ResponseWriter, evt *sseEvent) {
	fmt.Fprintf(w, "id:%d\nevent:%s\ndata:%s\n\n", evt.ID, evt.Topic, evt.Data)
}

// broadcastEvent hands an event to the SSE hub.
func (s *SpecServer) broadcastEvent(topic string, event any) {
	if s.sseHub == nil {
		return
	}
	payload, err := events.Encode(event)
	if err != nil {
		s.logger.Warn("dropping SSE event", "topic", topic, "error", err)
		return
	}
	s.sseHub.broadcast(topic, payload)
}

// Package events fans session events out to connected browsers.
package events

import (
	"sync"
)

const (
	TypeNotice  = "notice"
	TypeConsent = "consent"
	TypeWidget  = "widget"
	TypeAuth    = "auth"
)

type Level string

const (
	LevelInfo  Level = "info"
	LevelError Level = "error"
)

type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Notice is a transient, user-visible message.
type Notice struct {
	Level   Level  `json:"level"`
	Title   string `json:"title"`
	Message string `json:"message"`
}

// Hub delivers events to every listener. A listener that is not keeping up
// misses events rather than blocking the publisher.
type Hub struct {
	mu        sync.Mutex
	listeners map[int]chan Event
	nextID    int
	closed    bool
}

func NewHub() *Hub {
	return &Hub{listeners: make(map[int]chan Event)}
}

// Listen returns the event channel and a function that detaches it.
// The channel is closed when the listener detaches or the hub closes.
func (h *Hub) Listen(buffer int) (<-chan Event, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Event, buffer)

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		close(ch)
		return ch, func() {}
	}

	id := h.nextID
	h.nextID++
	h.listeners[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if l, ok := h.listeners[id]; ok {
				delete(h.listeners, id)
				close(l)
			}
		})
	}
}

func (h *Hub) Publish(e Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, ch := range h.listeners {
		select {
		case ch <- e:
		default:
		}
	}
}

func (h *Hub) Notify(level Level, title, message string) {
	h.Publish(Event{Type: TypeNotice, Data: Notice{Level: level, Title: title, Message: message}})
}

func (h *Hub) Listeners() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.listeners)
}

func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for id, ch := range h.listeners {
		delete(h.listeners, id)
		close(ch)
	}
}

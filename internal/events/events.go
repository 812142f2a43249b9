package events

import (
	"sync"

	"image-library/internal/logging"
	"image-library/internal/metrics"
)

// Type names an event kind.
type Type string

const (
	// ImageModified is published after a file's bytes were replaced.
	ImageModified Type = "image_modified"
	// ImageRenamed is published after a file was moved to a new path.
	ImageRenamed Type = "image_renamed"
)

// Event describes a change to a file on disk. OldPath is set for renames.
type Event struct {
	Type    Type
	Path    string
	OldPath string
}

// Handler receives published events.
type Handler func(Event)

// Bus delivers events synchronously to every subscriber. Each subscriber
// sees each event at most once.
type Bus struct {
	mu       sync.RWMutex
	nextID   int
	handlers map[int]Handler
}

// NewBus returns an empty bus.
func NewBus() *Bus {
	return &Bus{handlers: make(map[int]Handler)}
}

// Subscribe registers h and returns a function that removes it.
func (b *Bus) Subscribe(h Handler) (unsubscribe func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.handlers[id] = h
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.handlers, id)
			b.mu.Unlock()
		})
	}
}

// Publish calls every subscriber with e. A panicking subscriber is logged
// and does not stop delivery to the others.
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.handlers))
	for _, h := range b.handlers {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	metrics.EventsPublished.WithLabelValues(string(e.Type)).Inc()
	logging.Debug("Publishing %s for %s to %d subscribers", e.Type, e.Path, len(handlers))

	for _, h := range handlers {
		deliver(h, e)
	}
}

func deliver(h Handler, e Event) {
	defer func() {
		if r := recover(); r != nil {
			logging.Error("event handler for %s panicked: %v", e.Type, r)
		}
	}()
	h(e)
}

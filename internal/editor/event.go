package editor

import "sync"

// EventKind distinguishes diagram updates from failures.
type EventKind string

const (
	// EventDiagram carries a freshly rendered diagram.
	EventDiagram EventKind = "diagram"
	// EventError reports a failure. After a parse or render failure SVG
	// holds the last good diagram; after a layout failure it holds an error
	// panel.
	EventError EventKind = "error"
)

// Event is what subscribers of a [Session] receive after every pipeline run.
type Event struct {
	Kind         EventKind `json:"kind"`
	SVG          string    `json:"svg,omitempty"`
	Perspectives []string  `json:"perspectives"`
	Perspective  string    `json:"perspective,omitempty"`
	Err          string    `json:"error,omitempty"`
	// Dropped counts relations left out because an endpoint is unknown.
	Dropped int `json:"dropped,omitempty"`
}

const subscriberBuffer = 8

// broker fans events out to subscribers. A slow subscriber loses its oldest
// queued events, never the newest.
type broker struct {
	mu     sync.Mutex
	next   int
	subs   map[int]chan Event
	closed bool
}

func newBroker() *broker {
	return &broker{subs: make(map[int]chan Event)}
}

func (b *broker) subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, subscriberBuffer)
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	id := b.next
	b.next++
	b.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if c, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(c)
			}
		})
	}
}

func (b *broker) publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- ev:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- ev:
		default:
		}
	}
}

func (b *broker) len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

func (b *broker) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}

// Package events fans the core's event surface out to GUI subscribers
// over Server-Sent Events.
package events

import (
	"io"
	"sync"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Event is one named payload on the bus.
type Event struct {
	Name    string
	Payload any
}

// subscriberBuffer bounds one subscriber's queue; a subscriber that
// falls further behind loses events rather than stalling the emitters.
const subscriberBuffer = 64

// Bus is a fan-out broker. Emit never blocks, which is what the
// playback hot path and the live-input callback require.
type Bus struct {
	log *zap.Logger

	mu   sync.Mutex
	subs map[chan Event]struct{}
}

// NewBus builds an empty bus.
func NewBus(log *zap.Logger) *Bus {
	return &Bus{log: log, subs: make(map[chan Event]struct{})}
}

// Emit delivers the event to every subscriber, dropping it for any
// subscriber whose buffer is full.
func (b *Bus) Emit(name string, payload any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		select {
		case ch <- Event{Name: name, Payload: payload}:
		default:
			// Slow consumer; skip rather than stall the dispatcher.
		}
	}
}

// Subscribe registers a new consumer. The returned cancel unsubscribes
// it; calls after the first do nothing.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, ch)
			b.mu.Unlock()
		})
	}
	return ch, cancel
}

// SubscriberCount reports how many consumers are attached.
func (b *Bus) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// ServeSSE streams the bus to one HTTP client until it disconnects.
func (b *Bus) ServeSSE(c *gin.Context) {
	ch, cancel := b.Subscribe()
	defer cancel()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	clientGone := c.Request.Context().Done()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-clientGone:
			return false
		case ev, ok := <-ch:
			if !ok {
				return false
			}
			c.SSEvent(ev.Name, ev.Payload)
			return true
		}
	})
}

package events

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
)

const defaultBufferSize = 100

// subscription is one reader and the event types it asked for.
// A nil filter accepts everything.
type subscription struct {
	ch     chan Event
	filter map[Type]bool
}

// Bus fans rider events out to subscribers. Publishing never blocks a
// rider: a subscriber whose buffer is full misses the event and the miss
// is counted.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[<-chan Event]*subscription
	bufferSize  int
	closed      bool

	missed atomic.Uint64
}

func NewBus() *Bus {
	return &Bus{
		subscribers: make(map[<-chan Event]*subscription),
		bufferSize:  defaultBufferSize,
	}
}

// Subscribe returns a channel receiving events of the given types, or of
// every type when none are given. On a closed bus the channel is already
// closed.
func (b *Bus) Subscribe(types ...Type) <-chan Event {
	sub := &subscription{ch: make(chan Event, b.bufferSize)}
	if len(types) > 0 {
		sub.filter = make(map[Type]bool, len(types))
		for _, t := range types {
			sub.filter[t] = true
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(sub.ch)
		return sub.ch
	}
	b.subscribers[sub.ch] = sub
	return sub.ch
}

// Unsubscribe removes a subscriber channel and closes it.
func (b *Bus) Unsubscribe(ch <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if sub, ok := b.subscribers[ch]; ok {
		delete(b.subscribers, ch)
		close(sub.ch)
	}
}

// Publish delivers event to every subscriber interested in its type.
// A nil or closed bus drops it.
func (b *Bus) Publish(event Event) {
	if b == nil {
		return
	}
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subscribers {
		if sub.filter != nil && !sub.filter[event.Type] {
			continue
		}
		select {
		case sub.ch <- event:
		default:
			b.missed.Add(1)
		}
	}
}

// Missed returns how many deliveries were skipped because a subscriber
// was not keeping up.
func (b *Bus) Missed() uint64 {
	return b.missed.Load()
}

func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Close ends every subscription. Later publishes are dropped and later
// subscriptions start closed. Close may be called more than once.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for ch, sub := range b.subscribers {
		close(sub.ch)
		delete(b.subscribers, ch)
	}
}

// ParseTypes reads a comma separated list such as "rider_riding,rider_returned".
// An empty string yields no filter.
func ParseTypes(s string) ([]Type, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var types []Type
	for _, part := range strings.Split(s, ",") {
		t := Type(strings.TrimSpace(part))
		switch t {
		case RiderWalking, RiderRiding, RiderReturned, RiderStopped:
			types = append(types, t)
		default:
			return nil, fmt.Errorf("events: unknown event type %q", part)
		}
	}
	return types, nil
}

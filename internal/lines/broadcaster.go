// Package lines turns child process byte streams into ordered line
// notifications.
//
// Two layers:
//
//	Writer:      splits bytes written by the process I/O copier into lines
//	Broadcaster: fans each line out to every subscriber, in order
//
// Channel is an optional third layer for consumers that must never slow the
// child down (the live viewer); it drops lines instead of blocking.
package lines

import "sync"

// Handler receives one line, without its trailing newline.
type Handler func(line string)

type subscription struct {
	id uint64
	h  Handler
}

// Broadcaster is a multi-subscriber line notification.
//
// Publish calls handlers synchronously in subscription order. Lines from a
// single producer are therefore delivered to each handler in the order they
// were produced.
type Broadcaster struct {
	mu     sync.RWMutex
	nextID uint64
	subs   []subscription
}

// NewBroadcaster creates an empty Broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{}
}

// Subscribe registers h and returns a function that removes it.
// The returned cancel func is safe to call more than once.
func (b *Broadcaster) Subscribe(h Handler) (cancel func()) {
	if h == nil {
		return func() {}
	}

	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscription{id: id, h: h})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(id) })
	}
}

func (b *Broadcaster) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, s := range b.subs {
		if s.id == id {
			b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
			return
		}
	}
}

// Publish delivers line to every current subscriber.
func (b *Broadcaster) Publish(line string) {
	b.mu.RLock()
	subs := b.subs
	b.mu.RUnlock()

	for _, s := range subs {
		s.h(line)
	}
}

// Len returns the number of current subscribers.
func (b *Broadcaster) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

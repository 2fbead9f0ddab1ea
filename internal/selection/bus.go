package selection

import (
	"errors"
	"sync"
	"time"
)

// ErrBusClosed is returned by Publish after Close.
var ErrBusClosed = errors.New("selection: bus closed")

// Message is the payload broadcast after every local selection mutation.
type Message struct {
	Origin   string    `json:"origin"`
	Selected []string  `json:"selected"`
	Hovered  []string  `json:"hovered"`
	SentAt   time.Time `json:"sentAt"`
}

// Bus carries selection messages between stores. Delivery is asynchronous
// and unordered; subscribers also receive messages they published.
type Bus interface {
	Publish(Message) error
	Subscribe(fn func(Message)) (cancel func())
}

// LocalBus is an in-process Bus. Each delivery runs on its own goroutine.
type LocalBus struct {
	mu     sync.RWMutex
	subs   map[int]func(Message)
	nextID int
	closed bool
	wg     sync.WaitGroup
}

// NewLocalBus creates an open bus with no subscribers.
func NewLocalBus() *LocalBus {
	return &LocalBus{subs: make(map[int]func(Message))}
}

// Publish fans m out to every current subscriber without waiting.
func (b *LocalBus) Publish(m Message) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrBusClosed
	}
	for _, fn := range b.subs {
		b.wg.Add(1)
		go func(fn func(Message), m Message) {
			defer b.wg.Done()
			fn(m)
		}(fn, cloneMessage(m))
	}
	return nil
}

// Subscribe registers fn. The returned func unregisters it.
func (b *LocalBus) Subscribe(fn func(Message)) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = fn
	b.mu.Unlock()
	return func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}

// Close rejects further publishes and waits for in-flight deliveries.
func (b *LocalBus) Close() error {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	b.wg.Wait()
	return nil
}

func cloneMessage(m Message) Message {
	m.Selected = append([]string(nil), m.Selected...)
	m.Hovered = append([]string(nil), m.Hovered...)
	return m
}

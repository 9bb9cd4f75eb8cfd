package pubsub

import "sync"

type Unsubscribe func()

// Bus fans messages out to the handlers subscribed on a topic.
type Bus[T any] interface {
	Publish(topic string, msg T)
	Subscribe(topic string, h func(T)) Unsubscribe
}

type Option func(*options)

type options struct {
	sync bool
}

// Synchronous makes Publish call handlers in the publishing goroutine, in
// subscription order, and return once all of them are done.
func Synchronous() Option {
	return func(o *options) { o.sync = true }
}

type memoryBus[T any] struct {
	mu     sync.RWMutex
	nextID uint64
	m      map[string]map[uint64]func(T)
	order  map[string][]uint64
	sync   bool
}

func NewMemoryBus[T any](opts ...Option) Bus[T] {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return &memoryBus[T]{
		m:     map[string]map[uint64]func(T){},
		order: map[string][]uint64{},
		sync:  o.sync,
	}
}

func (b *memoryBus[T]) Publish(topic string, msg T) {
	b.mu.RLock()
	handlers := make([]func(T), 0, len(b.order[topic]))
	for _, id := range b.order[topic] {
		handlers = append(handlers, b.m[topic][id])
	}
	b.mu.RUnlock()

	for _, handler := range handlers {
		if b.sync {
			handler(msg)
			continue
		}
		go handler(msg)
	}
}

func (b *memoryBus[T]) Subscribe(topic string, handler func(T)) Unsubscribe {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	if b.m[topic] == nil {
		b.m[topic] = map[uint64]func(T){}
	}
	b.m[topic][id] = handler
	b.order[topic] = append(b.order[topic], id)
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.m[topic], id)
			ids := b.order[topic]
			for i, v := range ids {
				if v == id {
					b.order[topic] = append(ids[:i:i], ids[i+1:]...)
					break
				}
			}
			if len(b.order[topic]) == 0 {
				delete(b.m, topic)
				delete(b.order, topic)
			}
		})
	}
}

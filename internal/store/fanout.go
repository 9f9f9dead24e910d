package store

import (
	"bytes"
	"sync"
	"sync/atomic"
)

// subscriber serializes deliveries to one ChangeFunc and drops values
// equal to the last one delivered
type subscriber struct {
	mu     sync.Mutex
	fn     ChangeFunc
	last   []byte
	seen   bool
	closed atomic.Bool
}

func newSubscriber(fn ChangeFunc) *subscriber {
	return &subscriber{fn: fn}
}

func (s *subscriber) deliver(value []byte, exists bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed.Load() {
		return
	}
	if exists == s.seen && bytes.Equal(value, s.last) {
		return
	}
	s.last, s.seen = append([]byte(nil), value...), exists
	s.fn(value, exists)
}

// close stops further deliveries. It may be called from inside fn.
func (s *subscriber) close() {
	s.closed.Store(true)
}

// fanout groups subscribers by key for stores that receive one shared
// change feed
type fanout struct {
	mu   sync.Mutex
	subs map[string]map[*subscriber]struct{}
}

func newFanout() *fanout {
	return &fanout{subs: make(map[string]map[*subscriber]struct{})}
}

func (f *fanout) add(key string, fn ChangeFunc) (*subscriber, Unsubscribe) {
	sub := newSubscriber(fn)

	f.mu.Lock()
	keySubs := f.subs[key]
	if keySubs == nil {
		keySubs = make(map[*subscriber]struct{})
		f.subs[key] = keySubs
	}
	keySubs[sub] = struct{}{}
	f.mu.Unlock()

	var once sync.Once
	return sub, func() {
		once.Do(func() {
			sub.close()
			f.mu.Lock()
			defer f.mu.Unlock()
			if keySubs := f.subs[key]; keySubs != nil {
				delete(keySubs, sub)
				if len(keySubs) == 0 {
					delete(f.subs, key)
				}
			}
		})
	}
}

func (f *fanout) has(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs[key]) > 0
}

// keys returns every key with at least one subscriber
func (f *fanout) keys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	keys := make([]string, 0, len(f.subs))
	for key := range f.subs {
		keys = append(keys, key)
	}
	return keys
}

func (f *fanout) deliver(key string, value []byte, exists bool) {
	f.mu.Lock()
	subs := make([]*subscriber, 0, len(f.subs[key]))
	for sub := range f.subs[key] {
		subs = append(subs, sub)
	}
	f.mu.Unlock()

	for _, sub := range subs {
		sub.deliver(value, exists)
	}
}

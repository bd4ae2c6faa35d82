package session

import "sync"

// Topic is a typed publish-subscribe channel owned by a session. Subscribers
// are called synchronously, outside any session lock, in subscription order.
type Topic[T any] struct {
	mu   sync.RWMutex
	next int
	subs map[int]func(T)
	ids  []int
}

// Subscribe registers fn and returns a func that removes it.
func (t *Topic[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.subs == nil {
		t.subs = make(map[int]func(T))
	}
	id := t.next
	t.next++
	t.subs[id] = fn
	t.ids = append(t.ids, id)

	var once sync.Once
	return func() {
		once.Do(func() {
			t.mu.Lock()
			defer t.mu.Unlock()
			delete(t.subs, id)
			for i, v := range t.ids {
				if v == id {
					t.ids = append(t.ids[:i], t.ids[i+1:]...)
					break
				}
			}
		})
	}
}

// Publish delivers v to every current subscriber.
func (t *Topic[T]) Publish(v T) {
	t.mu.RLock()
	fns := make([]func(T), 0, len(t.ids))
	for _, id := range t.ids {
		fns = append(fns, t.subs[id])
	}
	t.mu.RUnlock()

	for _, fn := range fns {
		fn(v)
	}
}

// FilesChanged is published after every change to a session's document set.
type FilesChanged struct {
	Documents []string `json:"documents"`
}

package viewmodel

import "sync"

// Observable holds a state snapshot and notifies subscribers when it is replaced.
// Snapshots are shared with readers and must not be modified.
type Observable[S any] struct {
	mu     sync.RWMutex
	state  S
	nextID int
	subs   []subscription[S]
}

type subscription[S any] struct {
	id int
	fn func(S)
}

// Snapshot returns the last published state.
func (o *Observable[S]) Snapshot() S {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.state
}

// Subscribe registers fn for every future publish. The returned func removes it.
//
// fn runs on the publishing goroutine while the view-model still holds its
// mutation lock. It may read snapshots but must not call Add, Update, Delete,
// Refresh or any other mutation synchronously; that deadlocks. Hand such work
// to another goroutine.
func (o *Observable[S]) Subscribe(fn func(S)) (unsubscribe func()) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.nextID++
	id := o.nextID
	o.subs = append(o.subs, subscription[S]{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() {
			o.mu.Lock()
			defer o.mu.Unlock()
			for i, sub := range o.subs {
				if sub.id == id {
					o.subs = append(o.subs[:i:i], o.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// publish swaps the whole state, then calls subscribers in registration order.
func (o *Observable[S]) publish(state S) {
	o.mu.Lock()
	o.state = state
	subs := append([]subscription[S](nil), o.subs...)
	o.mu.Unlock()

	for _, sub := range subs {
		sub.fn(state)
	}
}

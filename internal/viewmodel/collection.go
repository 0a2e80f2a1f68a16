package viewmodel

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"petcare/internal/repository"
	"petcare/internal/service"
)

// Option configures a view-model.
type Option func(*options)

type options struct {
	now service.Clock
}

// WithNow overrides the wall clock used for classification.
func WithNow(now service.Clock) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// collection runs the mutate, re-fetch, derive, publish cycle for one entity
// type. mu serializes whole cycles so that a slow mutation's publish can never
// be overwritten by an older fetch. With a nil store the records live in local.
type collection[E any, P repository.Entity[E], S any] struct {
	Observable[S]

	name   string
	store  repository.Store[E]
	derive func(items []E, now time.Time) S
	now    service.Clock

	mu      sync.Mutex
	local   []E
	loaded  chan struct{}
	loadErr error
}

func newCollection[E any, P repository.Entity[E], S any](name string, store repository.Store[E], derive func([]E, time.Time) S, opts []Option) *collection[E, P, S] {
	o := buildOptions(opts)
	c := &collection[E, P, S]{
		name:   name,
		store:  store,
		derive: derive,
		now:    o.now,
		loaded: make(chan struct{}),
	}
	c.Observable.state = derive(nil, c.now())
	return c
}

// start loads the initial list in the background. The lock is taken before the
// goroutine starts so that no mutation can run ahead of the first load.
func (c *collection[E, P, S]) start(ctx context.Context) {
	c.mu.Lock()
	go func() {
		defer c.mu.Unlock()
		defer close(c.loaded)

		items, err := c.fetch(ctx)
		if err != nil {
			c.loadErr = err
			log.Printf("[warn] load %s: %v", c.name, err)
			return
		}
		c.publish(c.derive(items, c.now()))
		log.Printf("[info] loaded %d %s", len(items), c.name)
	}()
}

// Loaded is closed once the initial load has finished.
func (c *collection[E, P, S]) Loaded() <-chan struct{} {
	return c.loaded
}

// LoadErr reports why the initial load failed. Valid after Loaded is closed.
func (c *collection[E, P, S]) LoadErr() error {
	select {
	case <-c.loaded:
		return c.loadErr
	default:
		return nil
	}
}

// Refresh re-fetches and re-derives against the current clock.
func (c *collection[E, P, S]) Refresh(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.republish(ctx)
}

func (c *collection[E, P, S]) insert(ctx context.Context, e *E) error {
	return c.mutate(ctx, repository.OpInsert, e)
}

func (c *collection[E, P, S]) update(ctx context.Context, e *E) error {
	return c.mutate(ctx, repository.OpUpdate, e)
}

func (c *collection[E, P, S]) remove(ctx context.Context, e *E) error {
	return c.mutate(ctx, repository.OpDelete, e)
}

// mutate applies op and publishes the re-derived state. When the store fails
// nothing is published and the previous snapshot stays in place.
func (c *collection[E, P, S]) mutate(ctx context.Context, op repository.Op, e *E) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.apply(ctx, op, e); err != nil {
		return fmt.Errorf("%s %s: %w", op, c.name, err)
	}
	return c.republish(ctx)
}

func (c *collection[E, P, S]) apply(ctx context.Context, op repository.Op, e *E) error {
	if c.store != nil {
		switch op {
		case repository.OpInsert:
			return c.store.Insert(ctx, e)
		case repository.OpUpdate:
			return c.store.Update(ctx, e)
		case repository.OpDelete:
			return c.store.Delete(ctx, e)
		default:
			return fmt.Errorf("unsupported operation %q", op)
		}
	}

	id := P(e).GetID()
	switch op {
	case repository.OpInsert:
		if id == 0 {
			P(e).SetID(c.nextLocalID())
		}
		c.local = append(c.local, *e)
	case repository.OpUpdate:
		idx := c.localIndex(id)
		if idx < 0 {
			return fmt.Errorf("id %d: %w", id, repository.ErrNotFound)
		}
		c.local[idx] = *e
	case repository.OpDelete:
		if idx := c.localIndex(id); idx >= 0 {
			c.local = append(c.local[:idx:idx], c.local[idx+1:]...)
		}
	default:
		return fmt.Errorf("unsupported operation %q", op)
	}
	return nil
}

func (c *collection[E, P, S]) republish(ctx context.Context) error {
	items, err := c.fetch(ctx)
	if err != nil {
		return fmt.Errorf("refresh %s: %w", c.name, err)
	}
	c.publish(c.derive(items, c.now()))
	return nil
}

func (c *collection[E, P, S]) fetch(ctx context.Context) ([]E, error) {
	if c.store == nil {
		return append([]E(nil), c.local...), nil
	}
	return c.store.GetAll(ctx)
}

func (c *collection[E, P, S]) nextLocalID() uint {
	var highest uint
	for i := range c.local {
		if id := P(&c.local[i]).GetID(); id > highest {
			highest = id
		}
	}
	return highest + 1
}

func (c *collection[E, P, S]) localIndex(id uint) int {
	for i := range c.local {
		if P(&c.local[i]).GetID() == id {
			return i
		}
	}
	return -1
}

package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

type Op string

const (
	OpGetAll Op = "get_all"
	OpInsert Op = "insert"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// MemoryStore is an in-process Store used by tests and previews.
type MemoryStore[E any, P Entity[E]] struct {
	mu     sync.Mutex
	items  map[uint]E
	nextID uint
	fail   map[Op]error
	calls  []Op
}

func NewMemoryStore[E any, P Entity[E]](seed ...E) *MemoryStore[E, P] {
	s := &MemoryStore[E, P]{
		items:  make(map[uint]E),
		nextID: 1,
		fail:   make(map[Op]error),
	}
	for _, item := range seed {
		item := item
		s.put(&item)
	}
	return s
}

// FailNext makes the next call of op return err.
func (s *MemoryStore[E, P]) FailNext(op Op, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail[op] = err
}

// Calls returns the operations seen so far, in order.
func (s *MemoryStore[E, P]) Calls() []Op {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Op(nil), s.calls...)
}

func (s *MemoryStore[E, P]) GetAll(ctx context.Context) ([]E, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(ctx, OpGetAll); err != nil {
		return nil, err
	}

	ids := make([]uint, 0, len(s.items))
	for id := range s.items {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]E, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.items[id])
	}
	return out, nil
}

func (s *MemoryStore[E, P]) Insert(ctx context.Context, e *E) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(ctx, OpInsert); err != nil {
		return err
	}
	if id := P(e).GetID(); id != 0 {
		if _, exists := s.items[id]; exists {
			return fmt.Errorf("insert %T: id %d already exists", *e, id)
		}
	}
	s.put(e)
	return nil
}

func (s *MemoryStore[E, P]) Update(ctx context.Context, e *E) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(ctx, OpUpdate); err != nil {
		return err
	}
	id := P(e).GetID()
	if _, ok := s.items[id]; !ok {
		return fmt.Errorf("update %T %d: %w", *e, id, ErrNotFound)
	}
	s.items[id] = *e
	return nil
}

func (s *MemoryStore[E, P]) Delete(ctx context.Context, e *E) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(ctx, OpDelete); err != nil {
		return err
	}
	delete(s.items, P(e).GetID())
	return nil
}

func (s *MemoryStore[E, P]) begin(ctx context.Context, op Op) error {
	s.calls = append(s.calls, op)
	if err := ctx.Err(); err != nil {
		return err
	}
	if err, ok := s.fail[op]; ok {
		delete(s.fail, op)
		return err
	}
	return nil
}

func (s *MemoryStore[E, P]) put(e *E) {
	id := P(e).GetID()
	if id == 0 {
		id = s.nextID
		P(e).SetID(id)
	}
	if id >= s.nextID {
		s.nextID = id + 1
	}
	s.items[id] = *e
}

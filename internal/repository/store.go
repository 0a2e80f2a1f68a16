package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// ErrNotFound is returned when an update targets an id the store does not hold.
var ErrNotFound = gorm.ErrRecordNotFound

// Entity is implemented by the pointer form of every stored record.
type Entity[E any] interface {
	*E
	GetID() uint
	SetID(uint)
}

// Store is the CRUD surface the view-models depend on.
type Store[E any] interface {
	GetAll(ctx context.Context) ([]E, error)
	Insert(ctx context.Context, e *E) error
	Update(ctx context.Context, e *E) error
	Delete(ctx context.Context, e *E) error
}

// GormStore persists one entity type through gorm.
type GormStore[E any, P Entity[E]] struct {
	db *gorm.DB
}

func NewGormStore[E any, P Entity[E]](db *gorm.DB) *GormStore[E, P] {
	return &GormStore[E, P]{db: db}
}

func (s *GormStore[E, P]) GetAll(ctx context.Context) ([]E, error) {
	var items []E
	if err := s.db.WithContext(ctx).Order("id ASC").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("list %T: %w", *new(E), err)
	}
	return items, nil
}

// Insert creates the record; gorm writes the generated id back into e.
func (s *GormStore[E, P]) Insert(ctx context.Context, e *E) error {
	if err := s.db.WithContext(ctx).Create(e).Error; err != nil {
		return fmt.Errorf("insert %T: %w", *e, err)
	}
	return nil
}

func (s *GormStore[E, P]) Update(ctx context.Context, e *E) error {
	id := P(e).GetID()
	if id == 0 {
		return fmt.Errorf("update %T: %w", *e, ErrNotFound)
	}

	db := s.db.WithContext(ctx)
	var count int64
	if err := db.Model(new(E)).Where("id = ?", id).Count(&count).Error; err != nil {
		return fmt.Errorf("update %T: %w", *e, err)
	}
	if count == 0 {
		return fmt.Errorf("update %T %d: %w", *e, id, ErrNotFound)
	}
	if err := db.Save(e).Error; err != nil {
		return fmt.Errorf("update %T %d: %w", *e, id, err)
	}
	return nil
}

// Delete removes the record matched by id. Missing ids are not an error.
func (s *GormStore[E, P]) Delete(ctx context.Context, e *E) error {
	id := P(e).GetID()
	if id == 0 {
		return nil
	}
	if err := s.db.WithContext(ctx).Delete(new(E), id).Error; err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("delete %T %d: %w", *e, id, err)
	}
	return nil
}

// Package repository provides a small generic persistence layer over GORM.
package repository

import (
	"context"

	"github.com/rxbuddy/loyalty/pkg/db/option"
	"gorm.io/gorm"
)

// Repository exposes typed CRUD primitives for a single model.
type Repository[T any] interface {
	Create(ctx context.Context, record *T) error
	Save(ctx context.Context, record *T) error
	First(ctx context.Context, filter *T) (*T, error)
	Find(ctx context.Context, filter *T, opts ...option.QueryOption) ([]*T, error)
	Count(ctx context.Context, filter *T) (int64, error)
}

type store[T any] struct {
	db *gorm.DB
}

// ProvideStore constructs a Repository bound to the given connection.
func ProvideStore[T any](db *gorm.DB) Repository[T] {
	return &store[T]{db: db}
}

func (s *store[T]) Create(ctx context.Context, record *T) error {
	return s.db.WithContext(ctx).Create(record).Error
}

func (s *store[T]) Save(ctx context.Context, record *T) error {
	return s.db.WithContext(ctx).Save(record).Error
}

// First returns the first row matching the filter, or gorm.ErrRecordNotFound.
func (s *store[T]) First(ctx context.Context, filter *T) (*T, error) {
	var record T
	if err := s.db.WithContext(ctx).Where(filter).First(&record).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

func (s *store[T]) Find(ctx context.Context, filter *T, opts ...option.QueryOption) ([]*T, error) {
	tx := s.db.WithContext(ctx).Where(filter)
	for _, opt := range opts {
		tx = opt(tx)
	}
	var records []*T
	if err := tx.Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

func (s *store[T]) Count(ctx context.Context, filter *T) (int64, error) {
	var model T
	var count int64
	if err := s.db.WithContext(ctx).Model(&model).Where(filter).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

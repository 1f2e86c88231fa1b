package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository is a generic document-style accessor over one GORM-mapped
// collection. The tracker historically grew one near-identical repository
// per entity; a single parameterized type replaces them all.
type Repository[T any] struct {
	db *gorm.DB
}

// NewRepository creates a repository for the collection mapped by T.
func NewRepository[T any](db *gorm.DB) *Repository[T] {
	return &Repository[T]{db: db}
}

// FetchAll returns every document in the collection.
func (r *Repository[T]) FetchAll(ctx context.Context) ([]T, error) {
	var docs []T
	if err := r.db.WithContext(ctx).Find(&docs).Error; err != nil {
		return nil, fmt.Errorf("fetch all: %w", err)
	}
	return docs, nil
}

// FetchByFilter returns the documents matching a GORM condition, e.g.
// FetchByFilter(ctx, "asset = ? AND platform = ?", "BTC", "binance").
func (r *Repository[T]) FetchByFilter(ctx context.Context, query any, args ...any) ([]T, error) {
	var docs []T
	if err := r.db.WithContext(ctx).Where(query, args...).Find(&docs).Error; err != nil {
		return nil, fmt.Errorf("fetch by filter: %w", err)
	}
	return docs, nil
}

// FetchOne returns the first document matching a condition, or nil when
// none exists.
func (r *Repository[T]) FetchOne(ctx context.Context, query any, args ...any) (*T, error) {
	var doc T
	err := r.db.WithContext(ctx).Where(query, args...).First(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch one: %w", err)
	}
	return &doc, nil
}

// Insert stores new documents.
func (r *Repository[T]) Insert(ctx context.Context, docs ...*T) error {
	if len(docs) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).Create(docs).Error; err != nil {
		return fmt.Errorf("insert: %w", err)
	}
	return nil
}

// Upsert inserts the document or, on a conflict over the given columns,
// updates the listed columns in place.
func (r *Repository[T]) Upsert(ctx context.Context, conflictCols []string, updateCols []string, doc *T) error {
	columns := make([]clause.Column, 0, len(conflictCols))
	for _, name := range conflictCols {
		columns = append(columns, clause.Column{Name: name})
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   columns,
		DoUpdates: clause.AssignmentColumns(updateCols),
	}).Create(doc).Error
	if err != nil {
		return fmt.Errorf("upsert: %w", err)
	}
	return nil
}

// Replace atomically swaps the documents matching a filter for the given
// set, mirroring a document store's replace-by-filter operation.
func (r *Repository[T]) Replace(ctx context.Context, docs []*T, query any, args ...any) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Hard delete: replace-by-filter must free the unique indexes for
		// the incoming documents.
		var zero T
		if err := tx.Unscoped().Where(query, args...).Delete(&zero).Error; err != nil {
			return err
		}
		if len(docs) == 0 {
			return nil
		}
		return tx.Create(docs).Error
	})
	if err != nil {
		return fmt.Errorf("replace: %w", err)
	}
	return nil
}

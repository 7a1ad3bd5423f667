package service

import (
	"context"
	"errors"
	"strings"

	"github.com/annazecevic/catalog-service/apperror"
	"github.com/annazecevic/catalog-service/repository"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/text/cases"
)

// batchScope remembers the singers and playlists resolved while importing one
// batch, so later descriptors see names created by earlier ones without
// another store round trip. Not safe for concurrent use.
type batchScope struct {
	fold     cases.Caser
	entities map[string]interface{}
}

func newBatchScope() *batchScope {
	return &batchScope{fold: cases.Fold(), entities: map[string]interface{}{}}
}

func (b *batchScope) key(kind, name string) string {
	return kind + "\x00" + b.fold.String(name)
}

func (b *batchScope) get(kind, name string) (interface{}, bool) {
	if b == nil {
		return nil, false
	}
	v, ok := b.entities[b.key(kind, name)]
	return v, ok
}

func (b *batchScope) put(kind, name string, v interface{}) {
	if b == nil {
		return
	}
	b.entities[b.key(kind, name)] = v
}

// resolver describes how to find, build and persist one entity type.
type resolver[T any] struct {
	kind string
	find func(ctx context.Context, name string) (*T, error)
	// build constructs a new entity. It may upload supplementary media.
	build  func(ctx context.Context, name string) (*T, error)
	insert func(ctx context.Context, entity *T) error
	// discard undoes the side effects of build for an entity that was
	// never persisted.
	discard func(ctx context.Context, entity *T)
}

// resolveOrCreate returns the entity whose name matches name ignoring case,
// creating it when none exists. Existing entities are returned unchanged.
// A duplicate key on insert means a concurrent import created the same name
// first, so the lookup is retried.
func resolveOrCreate[T any](ctx context.Context, scope *batchScope, r resolver[T], name string) (*T, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperror.NewValidationError(r.kind+" name is required", r.kind)
	}

	if v, ok := scope.get(r.kind, name); ok {
		return v.(*T), nil
	}

	entity, err := lookup(ctx, r, name)
	if err != nil {
		return nil, err
	}

	if entity == nil {
		entity, err = create(ctx, r, name)
		if err != nil {
			return nil, err
		}
	}

	scope.put(r.kind, name, entity)
	return entity, nil
}

func lookup[T any](ctx context.Context, r resolver[T], name string) (*T, error) {
	entity, err := r.find(ctx, name)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, apperror.NewPersistenceError("find "+r.kind, err)
	}
	return entity, nil
}

func create[T any](ctx context.Context, r resolver[T], name string) (*T, error) {
	entity, err := r.build(ctx, name)
	if err != nil {
		return nil, err
	}

	err = r.insert(ctx, entity)
	if err == nil {
		return entity, nil
	}

	if r.discard != nil {
		r.discard(ctx, entity)
	}
	if !errors.Is(err, repository.ErrDuplicate) {
		return nil, apperror.NewPersistenceError("create "+r.kind, err)
	}

	existing, lookupErr := lookup(ctx, r, name)
	if lookupErr != nil {
		return nil, lookupErr
	}
	if existing == nil {
		return nil, apperror.NewConflictError(r.kind+" name is taken", err)
	}
	return existing, nil
}

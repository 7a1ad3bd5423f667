package repository

import (
	"context"

	"github.com/annazecevic/catalog-service/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type SingerRepository interface {
	CreateSinger(ctx context.Context, s *domain.Singer) error
	FindSingerByID(ctx context.Context, id string) (*domain.Singer, error)
	// FindSingerByName matches the whole name, ignoring case.
	FindSingerByName(ctx context.Context, name string) (*domain.Singer, error)
	FindSingersByIDs(ctx context.Context, ids []string) ([]*domain.Singer, error)
	ListSingers(ctx context.Context) ([]*domain.Singer, error)
	UpdateSinger(ctx context.Context, id string, updates map[string]interface{}) error
	DeleteSinger(ctx context.Context, id string) error
}

func (r *catalogRepository) CreateSinger(ctx context.Context, s *domain.Singer) error {
	return insertOne(ctx, r.singersCol, s)
}

func (r *catalogRepository) FindSingerByID(ctx context.Context, id string) (*domain.Singer, error) {
	return findOne[domain.Singer](ctx, r.singersCol, bson.M{"id": id})
}

func (r *catalogRepository) FindSingerByName(ctx context.Context, name string) (*domain.Singer, error) {
	return findOne[domain.Singer](ctx, r.singersCol, bson.M{"name": name}, options.FindOne().SetCollation(caseInsensitive))
}

func (r *catalogRepository) FindSingersByIDs(ctx context.Context, ids []string) ([]*domain.Singer, error) {
	if len(ids) == 0 {
		return []*domain.Singer{}, nil
	}
	return findAll[domain.Singer](ctx, r.singersCol, idsFilter(ids))
}

func (r *catalogRepository) ListSingers(ctx context.Context) ([]*domain.Singer, error) {
	return findAll[domain.Singer](ctx, r.singersCol, bson.M{}, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
}

func (r *catalogRepository) UpdateSinger(ctx context.Context, id string, updates map[string]interface{}) error {
	return updateByID(ctx, r.singersCol, id, updates)
}

func (r *catalogRepository) DeleteSinger(ctx context.Context, id string) error {
	return deleteByID(ctx, r.singersCol, id)
}

package repository

import (
	"context"
	"fmt"
	"regexp"

	"github.com/annazecevic/catalog-service/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type SongRepository interface {
	CreateSong(ctx context.Context, s *domain.Song) error
	FindSongByID(ctx context.Context, id string) (*domain.Song, error)
	// FindSongBySource looks a song up by its dedup key.
	FindSongBySource(ctx context.Context, url, name string) (*domain.Song, error)
	FindSongByName(ctx context.Context, name string) (*domain.Song, error)
	FindSongsByIDs(ctx context.Context, ids []string) ([]*domain.Song, error)
	ListSongs(ctx context.Context) ([]*domain.Song, error)
	CountSongsBySinger(ctx context.Context, singerID string) (int64, error)
	// SearchSongsByName returns songs whose name contains query, ignoring case.
	SearchSongsByName(ctx context.Context, query string) ([]*domain.Song, error)
	UpdateSong(ctx context.Context, id string, updates map[string]interface{}) error
	DeleteSong(ctx context.Context, id string) error
	// IncrementPlayCount atomically adds one play and returns the updated song.
	IncrementPlayCount(ctx context.Context, id string) (*domain.Song, error)
}

func (r *catalogRepository) CreateSong(ctx context.Context, s *domain.Song) error {
	return insertOne(ctx, r.songsCol, s)
}

func (r *catalogRepository) FindSongByID(ctx context.Context, id string) (*domain.Song, error) {
	return findOne[domain.Song](ctx, r.songsCol, bson.M{"id": id})
}

func (r *catalogRepository) FindSongBySource(ctx context.Context, url, name string) (*domain.Song, error) {
	return findOne[domain.Song](ctx, r.songsCol, bson.M{"url": url, "name": name})
}

func (r *catalogRepository) FindSongByName(ctx context.Context, name string) (*domain.Song, error) {
	return findOne[domain.Song](ctx, r.songsCol, bson.M{"name": name})
}

func (r *catalogRepository) FindSongsByIDs(ctx context.Context, ids []string) ([]*domain.Song, error) {
	if len(ids) == 0 {
		return []*domain.Song{}, nil
	}
	return findAll[domain.Song](ctx, r.songsCol, idsFilter(ids))
}

func (r *catalogRepository) ListSongs(ctx context.Context) ([]*domain.Song, error) {
	return findAll[domain.Song](ctx, r.songsCol, bson.M{})
}

func (r *catalogRepository) CountSongsBySinger(ctx context.Context, singerID string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, readTimeout)
	defer cancel()

	n, err := r.songsCol.CountDocuments(ctx, bson.M{"singer": singerID})
	if err != nil {
		return 0, fmt.Errorf("failed to count songs: %w", err)
	}
	return n, nil
}

func (r *catalogRepository) SearchSongsByName(ctx context.Context, query string) ([]*domain.Song, error) {
	return findAll[domain.Song](ctx, r.songsCol, nameContains(query))
}

func (r *catalogRepository) UpdateSong(ctx context.Context, id string, updates map[string]interface{}) error {
	return updateByID(ctx, r.songsCol, id, updates)
}

func (r *catalogRepository) DeleteSong(ctx context.Context, id string) error {
	return deleteByID(ctx, r.songsCol, id)
}

func (r *catalogRepository) IncrementPlayCount(ctx context.Context, id string) (*domain.Song, error) {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var song domain.Song
	err := r.songsCol.FindOneAndUpdate(ctx, bson.M{"id": id}, bson.M{"$inc": bson.M{"play_count": 1}}, opts).Decode(&song)
	if err != nil {
		return nil, fmt.Errorf("increment play count: %w", err)
	}
	return &song, nil
}

// nameContains builds a case-insensitive substring filter. The query is
// matched literally.
func nameContains(query string) bson.M {
	return bson.M{"name": primitive.Regex{Pattern: regexp.QuoteMeta(query), Options: "i"}}
}

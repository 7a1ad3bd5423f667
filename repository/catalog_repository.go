package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/annazecevic/catalog-service/logger"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	SingersCollection   = "singers"
	PlaylistsCollection = "playlists"
	SongsCollection     = "songs"

	writeTimeout = 5 * time.Second
	readTimeout  = 10 * time.Second
)

// ErrDuplicate is returned when an insert or update violates a unique index.
var ErrDuplicate = errors.New("duplicate key")

// Names compare case-insensitively (strength 2 ignores case, keeps diacritics).
var caseInsensitive = &options.Collation{Locale: "en", Strength: 2}

// CatalogRepository is the metadata store shared by the import pipeline and
// the catalog surface.
type CatalogRepository interface {
	SingerRepository
	PlaylistRepository
	SongRepository
}

type catalogRepository struct {
	singersCol   *mongo.Collection
	playlistsCol *mongo.Collection
	songsCol     *mongo.Collection
}

func NewCatalogRepository(db *mongo.Database) CatalogRepository {
	r := &catalogRepository{
		singersCol:   db.Collection(SingersCollection),
		playlistsCol: db.Collection(PlaylistsCollection),
		songsCol:     db.Collection(SongsCollection),
	}

	ctx, cancel := context.WithTimeout(context.Background(), readTimeout)
	defer cancel()
	if err := r.ensureIndexes(ctx); err != nil {
		logger.Warn(logger.EventDBError, "Failed to create catalog indexes", logger.Fields("error", err.Error()))
	}

	return r
}

// ensureIndexes creates the unique name indexes that make entity resolution
// idempotent across concurrent imports.
func (r *catalogRepository) ensureIndexes(ctx context.Context) error {
	uniqueName := mongo.IndexModel{
		Keys:    bson.D{{Key: "name", Value: 1}},
		Options: options.Index().SetUnique(true).SetCollation(caseInsensitive),
	}
	uniqueID := mongo.IndexModel{
		Keys:    bson.D{{Key: "id", Value: 1}},
		Options: options.Index().SetUnique(true),
	}

	if _, err := r.singersCol.Indexes().CreateMany(ctx, []mongo.IndexModel{uniqueID, uniqueName}); err != nil {
		return fmt.Errorf("singers indexes: %w", err)
	}
	if _, err := r.playlistsCol.Indexes().CreateMany(ctx, []mongo.IndexModel{uniqueID, uniqueName}); err != nil {
		return fmt.Errorf("playlists indexes: %w", err)
	}

	// Songs uploaded as files carry no url and stay out of the source index.
	uniqueSource := mongo.IndexModel{
		Keys: bson.D{{Key: "url", Value: 1}, {Key: "name", Value: 1}},
		Options: options.Index().
			SetName("url_name_unique").
			SetUnique(true).
			SetPartialFilterExpression(bson.M{"url": bson.M{"$exists": true}}),
	}
	songIndexes := []mongo.IndexModel{
		uniqueID,
		uniqueSource,
		{Keys: bson.D{{Key: "singer", Value: 1}}},
	}
	if _, err := r.songsCol.Indexes().CreateMany(ctx, songIndexes); err != nil {
		return fmt.Errorf("songs indexes: %w", err)
	}
	return nil
}

func insertOne(ctx context.Context, col *mongo.Collection, doc interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	if _, err := col.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%s: %w", col.Name(), ErrDuplicate)
		}
		logger.Error(logger.EventDBError, "Error inserting document", logger.Fields(
			"collection", col.Name(),
			"error", err.Error(),
		))
		return fmt.Errorf("failed to insert into %s: %w", col.Name(), err)
	}
	return nil
}

func findOne[T any](ctx context.Context, col *mongo.Collection, filter interface{}, opts ...*options.FindOneOptions) (*T, error) {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	var out T
	if err := col.FindOne(ctx, filter, opts...).Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

func findAll[T any](ctx context.Context, col *mongo.Collection, filter interface{}, opts ...*options.FindOptions) ([]*T, error) {
	ctx, cancel := context.WithTimeout(ctx, readTimeout)
	defer cancel()

	cur, err := col.Find(ctx, filter, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", col.Name(), err)
	}
	defer cur.Close(ctx)

	out := []*T{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", col.Name(), err)
	}
	return out, nil
}

func updateByID(ctx context.Context, col *mongo.Collection, id string, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	result, err := col.UpdateOne(ctx, bson.M{"id": id}, bson.M{"$set": updates})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%s: %w", col.Name(), ErrDuplicate)
		}
		return fmt.Errorf("failed to update %s: %w", col.Name(), err)
	}
	if result.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

func deleteByID(ctx context.Context, col *mongo.Collection, id string) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	result, err := col.DeleteOne(ctx, bson.M{"id": id})
	if err != nil {
		return fmt.Errorf("failed to delete from %s: %w", col.Name(), err)
	}
	if result.DeletedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

func idsFilter(ids []string) bson.M {
	return bson.M{"id": bson.M{"$in": ids}}
}

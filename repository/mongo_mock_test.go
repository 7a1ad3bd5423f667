package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/annazecevic/catalog-service/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

// newMockCatalog wires the repository to the mock deployment without running
// index creation, so every queued response goes to the call under test.
func newMockCatalog(mt *mtest.T) *catalogRepository {
	return &catalogRepository{
		singersCol:   mt.DB.Collection(SingersCollection),
		playlistsCol: mt.DB.Collection(PlaylistsCollection),
		songsCol:     mt.DB.Collection(SongsCollection),
	}
}

func duplicateKeyResponse() bson.D {
	return mtest.CreateWriteErrorsResponse(mtest.WriteError{
		Index:   0,
		Code:    11000,
		Message: "E11000 duplicate key error collection: catalog.singers index: name_1",
	})
}

func TestMongoCatalogRepository(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()

	mt.Run("duplicate singer maps to ErrDuplicate", func(mt *mtest.T) {
		repo := newMockCatalog(mt)
		mt.AddMockResponses(duplicateKeyResponse())

		err := repo.CreateSinger(ctx, &domain.Singer{ID: "s2", Name: "ADELE"})

		assert.ErrorIs(mt, err, ErrDuplicate)
	})

	mt.Run("duplicate song source maps to ErrDuplicate", func(mt *mtest.T) {
		repo := newMockCatalog(mt)
		mt.AddMockResponses(duplicateKeyResponse())

		err := repo.CreateSong(ctx, &domain.Song{ID: "x", Name: "A", URL: "https://cdn.example.com/a.mp3"})

		assert.ErrorIs(mt, err, ErrDuplicate)
	})

	mt.Run("duplicate name on update maps to ErrDuplicate", func(mt *mtest.T) {
		repo := newMockCatalog(mt)
		mt.AddMockResponses(duplicateKeyResponse())

		err := repo.UpdatePlaylist(ctx, "p1", map[string]interface{}{"name": "chill"})

		assert.ErrorIs(mt, err, ErrDuplicate)
	})

	mt.Run("name lookup uses case-insensitive collation", func(mt *mtest.T) {
		repo := newMockCatalog(mt)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "catalog.singers", mtest.FirstBatch, bson.D{
			{Key: "id", Value: "s1"},
			{Key: "name", Value: "Adele"},
		}))
		mt.ClearEvents()

		singer, err := repo.FindSingerByName(ctx, "adele")
		require.NoError(mt, err)
		assert.Equal(mt, "Adele", singer.Name)

		evt := mt.GetStartedEvent()
		require.NotNil(mt, evt)
		assert.Equal(mt, "find", evt.CommandName)
		assert.Equal(mt, "adele", evt.Command.Lookup("filter", "name").StringValue())
		assert.Equal(mt, "en", evt.Command.Lookup("collation", "locale").StringValue())
		assert.EqualValues(mt, 2, evt.Command.Lookup("collation", "strength").Int32())
	})

	mt.Run("name lookup miss returns ErrNoDocuments", func(mt *mtest.T) {
		repo := newMockCatalog(mt)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "catalog.playlists", mtest.FirstBatch))

		_, err := repo.FindPlaylistByName(ctx, "nothing")

		assert.True(mt, errors.Is(err, mongo.ErrNoDocuments))
	})

	mt.Run("membership is added with addToSet", func(mt *mtest.T) {
		repo := newMockCatalog(mt)
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 2}, bson.E{Key: "nModified", Value: 2}),
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 2}, bson.E{Key: "nModified", Value: 0}),
		)
		mt.ClearEvents()

		require.NoError(mt, repo.AddSongToPlaylists(ctx, []string{"p1", "p2"}, "song-1"))
		require.NoError(mt, repo.AddSongToPlaylists(ctx, []string{"p1", "p2"}, "song-1"))

		for i := 0; i < 2; i++ {
			evt := mt.GetStartedEvent()
			require.NotNil(mt, evt)
			assert.Equal(mt, "update", evt.CommandName)
			assert.Equal(mt, "song-1", evt.Command.Lookup("updates", "0", "u", "$addToSet", "songs").StringValue())
			assert.True(mt, evt.Command.Lookup("updates", "0", "multi").Boolean())
		}
	})

	mt.Run("no playlists sends nothing", func(mt *mtest.T) {
		repo := newMockCatalog(mt)
		mt.ClearEvents()

		require.NoError(mt, repo.AddSongToPlaylists(ctx, nil, "song-1"))

		assert.Nil(mt, mt.GetStartedEvent())
	})

	mt.Run("play count increments and returns the new document", func(mt *mtest.T) {
		repo := newMockCatalog(mt)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: bson.D{
			{Key: "id", Value: "song-1"},
			{Key: "name", Value: "A"},
			{Key: "play_count", Value: int64(5)},
		}}))
		mt.ClearEvents()

		song, err := repo.IncrementPlayCount(ctx, "song-1")
		require.NoError(mt, err)
		assert.EqualValues(mt, 5, song.PlayCount)

		evt := mt.GetStartedEvent()
		require.NotNil(mt, evt)
		assert.Equal(mt, "findAndModify", evt.CommandName)
		assert.True(mt, evt.Command.Lookup("new").Boolean())
		assert.EqualValues(mt, 1, evt.Command.Lookup("update", "$inc", "play_count").AsInt64())
	})

	mt.Run("play count on unknown song returns ErrNoDocuments", func(mt *mtest.T) {
		repo := newMockCatalog(mt)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: nil}))

		song, err := repo.IncrementPlayCount(ctx, "missing")

		assert.Nil(mt, song)
		assert.ErrorIs(mt, err, mongo.ErrNoDocuments)
	})

	mt.Run("update miss returns ErrNoDocuments", func(mt *mtest.T) {
		repo := newMockCatalog(mt)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}, bson.E{Key: "nModified", Value: 0}))

		err := repo.UpdateSinger(ctx, "missing", map[string]interface{}{"bio": "x"})

		assert.ErrorIs(mt, err, mongo.ErrNoDocuments)
	})

	mt.Run("delete miss returns ErrNoDocuments", func(mt *mtest.T) {
		repo := newMockCatalog(mt)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}))

		err := repo.DeleteSong(ctx, "missing")

		assert.ErrorIs(mt, err, mongo.ErrNoDocuments)
	})
}

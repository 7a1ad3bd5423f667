package repository

import (
	"context"
	"fmt"

	"github.com/annazecevic/catalog-service/domain"
	"github.com/annazecevic/catalog-service/logger"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type PlaylistRepository interface {
	CreatePlaylist(ctx context.Context, p *domain.Playlist) error
	FindPlaylistByID(ctx context.Context, id string) (*domain.Playlist, error)
	// FindPlaylistByName matches the whole name, ignoring case.
	FindPlaylistByName(ctx context.Context, name string) (*domain.Playlist, error)
	FindPlaylistsByIDs(ctx context.Context, ids []string) ([]*domain.Playlist, error)
	ListPlaylists(ctx context.Context) ([]*domain.Playlist, error)
	UpdatePlaylist(ctx context.Context, id string, updates map[string]interface{}) error
	DeletePlaylist(ctx context.Context, id string) error

	// AddSongToPlaylists adds songID to the membership set of every listed
	// playlist. Adding an id that is already a member is a no-op.
	AddSongToPlaylists(ctx context.Context, playlistIDs []string, songID string) error
	// RemoveSongFromPlaylists drops songID from every membership set.
	RemoveSongFromPlaylists(ctx context.Context, songID string) error
}

func (r *catalogRepository) CreatePlaylist(ctx context.Context, p *domain.Playlist) error {
	if p.Songs == nil {
		// $addToSet fails on a null field.
		p.Songs = []string{}
	}
	return insertOne(ctx, r.playlistsCol, p)
}

func (r *catalogRepository) FindPlaylistByID(ctx context.Context, id string) (*domain.Playlist, error) {
	return findOne[domain.Playlist](ctx, r.playlistsCol, bson.M{"id": id})
}

func (r *catalogRepository) FindPlaylistByName(ctx context.Context, name string) (*domain.Playlist, error) {
	return findOne[domain.Playlist](ctx, r.playlistsCol, bson.M{"name": name}, options.FindOne().SetCollation(caseInsensitive))
}

func (r *catalogRepository) FindPlaylistsByIDs(ctx context.Context, ids []string) ([]*domain.Playlist, error) {
	if len(ids) == 0 {
		return []*domain.Playlist{}, nil
	}
	return findAll[domain.Playlist](ctx, r.playlistsCol, idsFilter(ids))
}

func (r *catalogRepository) ListPlaylists(ctx context.Context) ([]*domain.Playlist, error) {
	return findAll[domain.Playlist](ctx, r.playlistsCol, bson.M{}, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
}

func (r *catalogRepository) UpdatePlaylist(ctx context.Context, id string, updates map[string]interface{}) error {
	return updateByID(ctx, r.playlistsCol, id, updates)
}

func (r *catalogRepository) DeletePlaylist(ctx context.Context, id string) error {
	return deleteByID(ctx, r.playlistsCol, id)
}

func (r *catalogRepository) AddSongToPlaylists(ctx context.Context, playlistIDs []string, songID string) error {
	if len(playlistIDs) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	_, err := r.playlistsCol.UpdateMany(ctx, idsFilter(playlistIDs), bson.M{"$addToSet": bson.M{"songs": songID}})
	if err != nil {
		logger.Error(logger.EventDBError, "Error linking song to playlists", logger.Fields(
			"song_id", songID,
			"playlists", playlistIDs,
			"error", err.Error(),
		))
		return fmt.Errorf("failed to link song to playlists: %w", err)
	}
	return nil
}

func (r *catalogRepository) RemoveSongFromPlaylists(ctx context.Context, songID string) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	_, err := r.playlistsCol.UpdateMany(ctx, bson.M{"songs": songID}, bson.M{"$pull": bson.M{"songs": songID}})
	if err != nil {
		return fmt.Errorf("failed to unlink song from playlists: %w", err)
	}
	return nil
}

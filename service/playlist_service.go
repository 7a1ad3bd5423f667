package service

import (
	"context"
	"errors"
	"strings"

	"github.com/annazecevic/catalog-service/apperror"
	"github.com/annazecevic/catalog-service/domain"
	"github.com/annazecevic/catalog-service/dto"
	"github.com/annazecevic/catalog-service/logger"
	"github.com/annazecevic/catalog-service/repository"
	"github.com/annazecevic/catalog-service/storage"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/mongo"
)

// CreatePlaylist creates a playlist whose members are the songs named in
// req, matched by exact name. Unknown names are ignored. coverFile, when
// set, is a temporary upload that becomes the cover image.
func (s *catalogService) CreatePlaylist(ctx context.Context, req *dto.CreatePlaylistRequest, coverFile string) (*domain.Playlist, error) {
	defer removeTemp(coverFile)

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, apperror.NewValidationError("playlist name is required", "name")
	}

	songIDs := make([]string, 0, len(req.Songs))
	for _, songName := range req.Songs {
		songName = strings.TrimSpace(songName)
		if songName == "" {
			continue
		}
		song, err := s.repo.FindSongByName(ctx, songName)
		if err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				continue
			}
			return nil, apperror.NewPersistenceError("find song", err)
		}
		songIDs = append(songIDs, song.ID)
	}

	playlist := &domain.Playlist{
		ID:          uuid.New().String(),
		Name:        name,
		Description: strings.TrimSpace(req.Description),
		Songs:       unique(songIDs),
		CreatedBy:   strings.TrimSpace(req.CreatedBy),
		CreatedAt:   now(),
	}

	if coverFile != "" {
		cover, err := s.blobs.UploadLocalFile(ctx, coverFile, storage.CategoryPlaylists)
		if err != nil {
			return nil, apperror.NewUpstreamStorageError("upload playlist cover", err)
		}
		playlist.CoverImage = cover
	}

	if err := s.repo.CreatePlaylist(ctx, playlist); err != nil {
		s.removeBlob(ctx, playlist.CoverImage, storage.ResourceImage)
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperror.NewConflictError("playlist name is already taken", err)
		}
		return nil, apperror.NewPersistenceError("create playlist", err)
	}

	logger.InfoCtx(ctx, logger.EventCatalogChange, "Playlist created", logger.Fields(
		"playlist_id", playlist.ID,
		"songs", len(playlist.Songs),
	))
	return playlist, nil
}

func (s *catalogService) ListPlaylists(ctx context.Context) ([]*domain.PlaylistDetails, error) {
	playlists, err := s.repo.ListPlaylists(ctx)
	if err != nil {
		return nil, apperror.NewPersistenceError("list playlists", err)
	}
	return s.expandPlaylists(ctx, playlists)
}

func (s *catalogService) GetPlaylist(ctx context.Context, id string) (*domain.PlaylistDetails, error) {
	playlist, err := s.repo.FindPlaylistByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "playlist", id)
	}

	details, err := s.expandPlaylists(ctx, []*domain.Playlist{playlist})
	if err != nil {
		return nil, err
	}
	return details[0], nil
}

// UpdatePlaylist applies the fields set in req. Songs, when present, replaces
// the membership list; repeated ids are dropped.
func (s *catalogService) UpdatePlaylist(ctx context.Context, id string, req *dto.UpdatePlaylistRequest) (*domain.Playlist, error) {
	updates := map[string]interface{}{}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, apperror.NewValidationError("playlist name must not be blank", "name")
		}
		updates["name"] = name
	}
	if req.Description != nil {
		updates["description"] = strings.TrimSpace(*req.Description)
	}
	if req.Songs != nil {
		updates["songs"] = unique(req.Songs)
	}

	if len(updates) > 0 {
		if err := s.repo.UpdatePlaylist(ctx, id, updates); err != nil {
			return nil, writeError(err, "playlist", id)
		}
	}

	playlist, err := s.repo.FindPlaylistByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "playlist", id)
	}

	logger.InfoCtx(ctx, logger.EventCatalogChange, "Playlist updated", logger.Fields("playlist_id", id))
	return playlist, nil
}

// DeletePlaylist removes the durable cover image, then the playlist. Songs
// keep their primary playlist reference.
func (s *catalogService) DeletePlaylist(ctx context.Context, id string) error {
	playlist, err := s.repo.FindPlaylistByID(ctx, id)
	if err != nil {
		return lookupError(err, "playlist", id)
	}

	s.removeBlob(ctx, playlist.CoverImage, storage.ResourceImage)

	if err := s.repo.DeletePlaylist(ctx, id); err != nil {
		return writeError(err, "playlist", id)
	}

	logger.InfoCtx(ctx, logger.EventCatalogChange, "Playlist deleted", logger.Fields("playlist_id", id))
	return nil
}

// expandPlaylists loads the member songs of every playlist with one query and
// attaches them in membership order. Ids of deleted songs are skipped.
func (s *catalogService) expandPlaylists(ctx context.Context, playlists []*domain.Playlist) ([]*domain.PlaylistDetails, error) {
	var ids []string
	for _, p := range playlists {
		ids = append(ids, p.Songs...)
	}

	songs, err := s.repo.FindSongsByIDs(ctx, unique(ids))
	if err != nil {
		return nil, apperror.NewPersistenceError("expand songs", err)
	}
	songByID := make(map[string]*domain.Song, len(songs))
	for _, song := range songs {
		songByID[song.ID] = song
	}

	out := make([]*domain.PlaylistDetails, 0, len(playlists))
	for _, p := range playlists {
		details := &domain.PlaylistDetails{Playlist: *p, SongDetails: []*domain.Song{}}
		for _, id := range p.Songs {
			if song, ok := songByID[id]; ok {
				details.SongDetails = append(details.SongDetails, song)
			}
		}
		out = append(out, details)
	}
	return out, nil
}

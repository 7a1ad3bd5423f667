package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/annazecevic/catalog-service/apperror"
	"github.com/annazecevic/catalog-service/domain"
	"github.com/annazecevic/catalog-service/dto"
	"github.com/annazecevic/catalog-service/logger"
	"github.com/annazecevic/catalog-service/repository"
	"github.com/annazecevic/catalog-service/storage"
	"go.mongodb.org/mongo-driver/mongo"
)

// Every adPlayInterval-th play of a song shows an ad.
const adPlayInterval = 5

var now = func() time.Time { return time.Now().UTC() }

type PlayResult struct {
	PlayCount int64
	ShowAd    bool
}

type CatalogService interface {
	ListSongs(ctx context.Context) ([]*domain.SongDetails, error)
	SearchSongs(ctx context.Context, query string) ([]*domain.SongDetails, error)
	GetSong(ctx context.Context, id string) (*domain.SongDetails, error)
	UpdateSongFileLink(ctx context.Context, id, fileLink string) (*domain.Song, error)
	DeleteSong(ctx context.Context, id string) error
	RecordPlay(ctx context.Context, id string) (*PlayResult, error)

	CreatePlaylist(ctx context.Context, req *dto.CreatePlaylistRequest, coverFile string) (*domain.Playlist, error)
	ListPlaylists(ctx context.Context) ([]*domain.PlaylistDetails, error)
	GetPlaylist(ctx context.Context, id string) (*domain.PlaylistDetails, error)
	UpdatePlaylist(ctx context.Context, id string, req *dto.UpdatePlaylistRequest) (*domain.Playlist, error)
	DeletePlaylist(ctx context.Context, id string) error

	CreateSinger(ctx context.Context, name, bio, pictureFile string) (*domain.Singer, error)
	ListSingers(ctx context.Context) ([]*domain.Singer, error)
	GetSinger(ctx context.Context, id string) (*domain.Singer, error)
	UpdateSinger(ctx context.Context, id string, req *dto.UpdateSingerRequest, pictureFile string) (*domain.Singer, error)
	DeleteSinger(ctx context.Context, id string) error
}

type catalogService struct {
	repo  repository.CatalogRepository
	blobs BlobStore
}

func NewCatalogService(repo repository.CatalogRepository, blobs BlobStore) CatalogService {
	return &catalogService{repo: repo, blobs: blobs}
}

func (s *catalogService) ListSongs(ctx context.Context) ([]*domain.SongDetails, error) {
	songs, err := s.repo.ListSongs(ctx)
	if err != nil {
		return nil, apperror.NewPersistenceError("list songs", err)
	}
	return s.expandSongs(ctx, songs)
}

// SearchSongs matches query as a case-insensitive substring of the song name.
// An empty query lists every song.
func (s *catalogService) SearchSongs(ctx context.Context, query string) ([]*domain.SongDetails, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return s.ListSongs(ctx)
	}

	songs, err := s.repo.SearchSongsByName(ctx, query)
	if err != nil {
		return nil, apperror.NewPersistenceError("search songs", err)
	}
	return s.expandSongs(ctx, songs)
}

func (s *catalogService) GetSong(ctx context.Context, id string) (*domain.SongDetails, error) {
	song, err := s.repo.FindSongByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "song", id)
	}

	details, err := s.expandSongs(ctx, []*domain.Song{song})
	if err != nil {
		return nil, err
	}
	return details[0], nil
}

func (s *catalogService) UpdateSongFileLink(ctx context.Context, id, fileLink string) (*domain.Song, error) {
	fileLink = strings.TrimSpace(fileLink)
	if fileLink == "" {
		return nil, apperror.NewValidationError("fileLink is required", "fileLink")
	}

	if err := s.repo.UpdateSong(ctx, id, map[string]interface{}{"file_link": fileLink}); err != nil {
		return nil, writeError(err, "song", id)
	}

	song, err := s.repo.FindSongByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "song", id)
	}

	logger.InfoCtx(ctx, logger.EventCatalogChange, "Song updated", logger.Fields("song_id", id))
	return song, nil
}

// DeleteSong removes the song's durable audio, the song record and its id
// from every playlist. A failed blob delete does not block the rest.
func (s *catalogService) DeleteSong(ctx context.Context, id string) error {
	song, err := s.repo.FindSongByID(ctx, id)
	if err != nil {
		return lookupError(err, "song", id)
	}

	s.removeBlob(ctx, song.FileLink, storage.ResourceAudio)

	if err := s.repo.DeleteSong(ctx, id); err != nil {
		return writeError(err, "song", id)
	}
	if err := s.repo.RemoveSongFromPlaylists(ctx, id); err != nil {
		return apperror.NewPersistenceError("unlink song", err)
	}

	logger.InfoCtx(ctx, logger.EventCatalogChange, "Song deleted", logger.Fields("song_id", id))
	return nil
}

// RecordPlay counts one play. The increment is atomic in the store, so
// concurrent plays never lose an update.
func (s *catalogService) RecordPlay(ctx context.Context, id string) (*PlayResult, error) {
	song, err := s.repo.IncrementPlayCount(ctx, id)
	if err != nil {
		return nil, lookupError(err, "song", id)
	}

	result := &PlayResult{PlayCount: song.PlayCount, ShowAd: showAd(song.PlayCount)}
	logger.InfoCtx(ctx, logger.EventPlayback, "Play recorded", logger.Fields(
		"song_id", id,
		"play_count", song.PlayCount,
		"show_ad", result.ShowAd,
	))
	return result, nil
}

func showAd(playCount int64) bool {
	return playCount > 0 && playCount%adPlayInterval == 0
}

// expandSongs attaches each song's singer and primary playlist. Missing
// references are left nil.
func (s *catalogService) expandSongs(ctx context.Context, songs []*domain.Song) ([]*domain.SongDetails, error) {
	singerIDs := make([]string, 0, len(songs))
	playlistIDs := make([]string, 0, len(songs))
	for _, song := range songs {
		singerIDs = append(singerIDs, song.SingerID)
		if song.PlaylistID != "" {
			playlistIDs = append(playlistIDs, song.PlaylistID)
		}
	}

	singers, err := s.repo.FindSingersByIDs(ctx, unique(singerIDs))
	if err != nil {
		return nil, apperror.NewPersistenceError("expand singers", err)
	}
	playlists, err := s.repo.FindPlaylistsByIDs(ctx, unique(playlistIDs))
	if err != nil {
		return nil, apperror.NewPersistenceError("expand playlists", err)
	}

	singerByID := make(map[string]*domain.Singer, len(singers))
	for _, singer := range singers {
		singerByID[singer.ID] = singer
	}
	playlistByID := make(map[string]*domain.Playlist, len(playlists))
	for _, p := range playlists {
		playlistByID[p.ID] = p
	}

	out := make([]*domain.SongDetails, 0, len(songs))
	for _, song := range songs {
		out = append(out, &domain.SongDetails{
			Song:     *song,
			Singer:   singerByID[song.SingerID],
			Playlist: playlistByID[song.PlaylistID],
		})
	}
	return out, nil
}

// removeBlob deletes a durable blob. Links outside the store are left alone
// and failures are only logged.
func (s *catalogService) removeBlob(ctx context.Context, link string, kind storage.ResourceKind) {
	if link == "" || !s.blobs.IsDurable(link) {
		return
	}
	if err := s.blobs.Delete(ctx, link, kind); err != nil {
		logger.ErrorCtx(ctx, logger.EventBlobError, "Failed to delete blob, leaving orphan", logger.Fields(
			"url", link,
			"kind", kind.String(),
			"error", err.Error(),
		))
	}
}

func lookupError(err error, resource, id string) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return apperror.NewNotFoundError(resource, id)
	}
	return apperror.NewPersistenceError("find "+resource, err)
}

func writeError(err error, resource, id string) error {
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return apperror.NewNotFoundError(resource, id)
	case errors.Is(err, repository.ErrDuplicate):
		return apperror.NewConflictError(resource+" name is already taken", err)
	default:
		return apperror.NewPersistenceError("write "+resource, err)
	}
}

// unique drops blank and repeated ids, keeping first occurrences in order.
func unique(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

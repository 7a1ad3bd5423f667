package service

import (
	"context"
	"errors"
	"os"
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

// BlobStore is the subset of storage.Store the services depend on.
type BlobStore interface {
	UploadLocalFile(ctx context.Context, localPath string, category storage.Category) (string, error)
	UploadFromURL(ctx context.Context, remote string, category storage.Category) (string, error)
	Delete(ctx context.Context, url string, kind storage.ResourceKind) error
	IsDurable(url string) bool
}

type ImportFailure struct {
	Index int
	Name  string
	Err   *apperror.Error
}

type ImportResult struct {
	// BatchID is attached to every log entry written for the batch.
	BatchID       string
	ImportedCount int
	ImportedSongs []*domain.Song
	// Skipped counts descriptors without a media source and known songs.
	Skipped  int
	Failures []ImportFailure
}

type ImportService interface {
	// ImportBatch imports descriptors in order. A failing descriptor is
	// recorded in the result and does not stop the batch.
	ImportBatch(ctx context.Context, descriptors []dto.SongDescriptor) (*ImportResult, error)
}

type importService struct {
	repo  repository.CatalogRepository
	blobs BlobStore
}

func NewImportService(repo repository.CatalogRepository, blobs BlobStore) ImportService {
	return &importService{repo: repo, blobs: blobs}
}

// importRun holds the per-batch state shared by all descriptors.
type importRun struct {
	*importService
	scope *batchScope
	// artwork source URL -> durable URL, reused for every song of the batch.
	artwork map[string]string
}

// uploads tracks blobs created for one descriptor so they can be removed when
// the descriptor fails before its song is persisted.
type uploads struct {
	audio   string
	artwork string
	// artworkSource is set when artwork was uploaded by this descriptor
	// rather than taken from the batch cache.
	artworkSource string
}

func (s *importService) ImportBatch(ctx context.Context, descriptors []dto.SongDescriptor) (*ImportResult, error) {
	run := &importRun{
		importService: s,
		scope:         newBatchScope(),
		artwork:       map[string]string{},
	}
	result := &ImportResult{BatchID: uuid.NewString(), ImportedSongs: []*domain.Song{}}
	ctx = logger.WithBatchID(ctx, result.BatchID)

	for i := range descriptors {
		d := &descriptors[i]
		if err := ctx.Err(); err != nil {
			removeTemp(d.LocalFile)
			continue
		}

		song, skipped, err := run.importOne(ctx, d)
		switch {
		case skipped:
			result.Skipped++
		case song != nil:
			result.ImportedCount++
			result.ImportedSongs = append(result.ImportedSongs, song)
		}
		if err != nil {
			appErr := apperror.As(err)
			result.Failures = append(result.Failures, ImportFailure{Index: i, Name: d.Name, Err: appErr})
			logger.WarnCtx(ctx, logger.EventImport, "Song import failed", logger.Fields(
				"index", i,
				"name", d.Name,
				"code", string(appErr.Kind),
				"error", err.Error(),
			))
		}
	}

	logger.InfoCtx(ctx, logger.EventImport, "Batch imported", logger.Fields(
		"descriptors", len(descriptors),
		"imported", result.ImportedCount,
		"skipped", result.Skipped,
		"failed", len(result.Failures),
	))

	return result, ctx.Err()
}

// errKnownSong reports that a song with the same (url, name) was stored by a
// concurrent import between the dedup check and the insert.
var errKnownSong = errors.New("song already imported")

// importOne runs the pipeline for a single descriptor. A non-nil song with a
// non-nil error means the song was created but linking it failed.
func (r *importRun) importOne(ctx context.Context, in *dto.SongDescriptor) (*domain.Song, bool, error) {
	defer removeTemp(in.LocalFile)

	d := normalizeDescriptor(*in)
	if d.LocalFile == "" && d.URL == "" {
		return nil, true, nil
	}

	if err := validateDescriptor(&d); err != nil {
		return nil, false, err
	}

	if d.URL != "" {
		existing, err := r.repo.FindSongBySource(ctx, d.URL, d.Name)
		if err == nil && existing != nil {
			return nil, true, nil
		}
		if err != nil && !errors.Is(err, mongo.ErrNoDocuments) {
			return nil, false, apperror.NewPersistenceError("find song", err)
		}
	}

	up := &uploads{}
	song, playlistIDs, err := r.persist(ctx, &d, up)
	if err != nil {
		r.compensate(ctx, up)
		if errors.Is(err, errKnownSong) {
			return nil, true, nil
		}
		return nil, false, err
	}

	if err := r.repo.AddSongToPlaylists(ctx, playlistIDs, song.ID); err != nil {
		return song, false, apperror.NewPersistenceError("link song to playlists", err)
	}
	return song, false, nil
}

// persist migrates the media, resolves the singer and playlists and creates
// the song. It returns the ids of every resolved playlist.
func (r *importRun) persist(ctx context.Context, d *dto.SongDescriptor, up *uploads) (*domain.Song, []string, error) {
	fileLink, err := r.migrateAudio(ctx, d)
	if err != nil {
		return nil, nil, err
	}
	if fileLink != d.URL {
		up.audio = fileLink
	}

	artwork, err := r.migrateArtwork(ctx, d.Artwork, up)
	if err != nil {
		return nil, nil, err
	}

	singer, err := resolveOrCreate(ctx, r.scope, r.singerResolver(d.Artwork), d.Singer)
	if err != nil {
		return nil, nil, err
	}

	playlistIDs := make([]string, 0, len(d.Playlists))
	for _, name := range d.Playlists {
		p, err := resolveOrCreate(ctx, r.scope, r.playlistResolver(d.Artwork), name)
		if err != nil {
			return nil, nil, err
		}
		playlistIDs = append(playlistIDs, p.ID)
	}

	song := &domain.Song{
		ID:       uuid.New().String(),
		Name:     d.Name,
		SingerID: singer.ID,
		Language: d.Language,
		FileLink: fileLink,
		Artwork:  artwork,
		URL:      d.URL,
	}
	if len(playlistIDs) > 0 {
		song.PlaylistID = playlistIDs[0]
	}

	if err := r.repo.CreateSong(ctx, song); err != nil {
		if d.URL != "" && errors.Is(err, repository.ErrDuplicate) {
			return nil, nil, errKnownSong
		}
		return nil, nil, apperror.NewPersistenceError("create song", err)
	}
	return song, playlistIDs, nil
}

func (r *importRun) migrateAudio(ctx context.Context, d *dto.SongDescriptor) (string, error) {
	var (
		link string
		err  error
	)
	if d.LocalFile != "" {
		link, err = r.blobs.UploadLocalFile(ctx, d.LocalFile, storage.CategoryAudio)
	} else {
		link, err = r.blobs.UploadFromURL(ctx, d.URL, storage.CategoryAudio)
	}
	if err != nil {
		return "", apperror.NewUpstreamStorageError("upload audio", err)
	}
	return link, nil
}

func (r *importRun) migrateArtwork(ctx context.Context, source string, up *uploads) (string, error) {
	if source == "" {
		return "", nil
	}
	if cached, ok := r.artwork[source]; ok {
		return cached, nil
	}

	link, err := r.blobs.UploadFromURL(ctx, source, storage.CategoryArtwork)
	if err != nil {
		return "", apperror.NewUpstreamStorageError("upload artwork", err)
	}
	r.artwork[source] = link
	if link != source {
		up.artwork = link
		up.artworkSource = source
	}
	return link, nil
}

// compensate removes the blobs a failed descriptor uploaded.
func (r *importRun) compensate(ctx context.Context, up *uploads) {
	if up.audio != "" {
		r.deleteBlob(ctx, up.audio, storage.ResourceAudio)
	}
	if up.artwork != "" {
		delete(r.artwork, up.artworkSource)
		r.deleteBlob(ctx, up.artwork, storage.ResourceImage)
	}
}

func (r *importRun) singerResolver(artwork string) resolver[domain.Singer] {
	return resolver[domain.Singer]{
		kind: "singer",
		find: r.repo.FindSingerByName,
		build: func(ctx context.Context, name string) (*domain.Singer, error) {
			picture, err := r.uploadImage(ctx, artwork, storage.CategorySingers)
			if err != nil {
				return nil, err
			}
			return &domain.Singer{ID: uuid.New().String(), Name: name, Picture: picture}, nil
		},
		insert: r.repo.CreateSinger,
		discard: func(ctx context.Context, s *domain.Singer) {
			r.discardImage(ctx, s.Picture, artwork)
		},
	}
}

func (r *importRun) playlistResolver(artwork string) resolver[domain.Playlist] {
	return resolver[domain.Playlist]{
		kind: "playlist",
		find: r.repo.FindPlaylistByName,
		build: func(ctx context.Context, name string) (*domain.Playlist, error) {
			cover, err := r.uploadImage(ctx, artwork, storage.CategoryPlaylists)
			if err != nil {
				return nil, err
			}
			return &domain.Playlist{
				ID:         uuid.New().String(),
				Name:       name,
				CoverImage: cover,
				Songs:      []string{},
				CreatedAt:  now(),
			}, nil
		},
		insert: r.repo.CreatePlaylist,
		discard: func(ctx context.Context, p *domain.Playlist) {
			r.discardImage(ctx, p.CoverImage, artwork)
		},
	}
}

func (r *importRun) uploadImage(ctx context.Context, source string, category storage.Category) (string, error) {
	if source == "" {
		return "", nil
	}
	link, err := r.blobs.UploadFromURL(ctx, source, category)
	if err != nil {
		return "", apperror.NewUpstreamStorageError("upload "+string(category)+" image", err)
	}
	return link, nil
}

func (r *importRun) discardImage(ctx context.Context, link, source string) {
	if link != "" && link != source {
		r.deleteBlob(ctx, link, storage.ResourceImage)
	}
}

func (s *importService) deleteBlob(ctx context.Context, link string, kind storage.ResourceKind) {
	if err := s.blobs.Delete(ctx, link, kind); err != nil {
		logger.WarnCtx(ctx, logger.EventBlobError, "Failed to delete orphaned blob", logger.Fields(
			"url", link,
			"kind", kind.String(),
			"error", err.Error(),
		))
	}
}

// normalizeDescriptor returns a trimmed copy of d. The dedup lookup and the
// stored song must see the same name.
func normalizeDescriptor(d dto.SongDescriptor) dto.SongDescriptor {
	d.Name = strings.TrimSpace(d.Name)
	d.Singer = strings.TrimSpace(d.Singer)
	d.Language = strings.TrimSpace(d.Language)
	d.URL = strings.TrimSpace(d.URL)
	d.Artwork = strings.TrimSpace(d.Artwork)
	if d.Playlists != nil {
		playlists := make(dto.NameList, len(d.Playlists))
		for i, p := range d.Playlists {
			playlists[i] = strings.TrimSpace(p)
		}
		d.Playlists = playlists
	}
	return d
}

func validateDescriptor(d *dto.SongDescriptor) error {
	if d.Name == "" {
		return apperror.NewValidationError("song name is required", "name")
	}
	if d.Singer == "" {
		return apperror.NewValidationError("singer name is required", "singer")
	}
	for _, p := range d.Playlists {
		if p == "" {
			return apperror.NewValidationError("playlist names must not be blank", "playlist")
		}
	}
	return nil
}

func removeTemp(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		logger.Warn(logger.EventImport, "Failed to remove temporary upload", logger.Fields(
			"path", path,
			"error", err.Error(),
		))
	}
}

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
)

func (s *catalogService) CreateSinger(ctx context.Context, name, bio, pictureFile string) (*domain.Singer, error) {
	defer removeTemp(pictureFile)

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperror.NewValidationError("singer name is required", "name")
	}
	if pictureFile == "" {
		return nil, apperror.NewValidationError("picture file is required", "picture")
	}

	picture, err := s.blobs.UploadLocalFile(ctx, pictureFile, storage.CategorySingers)
	if err != nil {
		return nil, apperror.NewUpstreamStorageError("upload singer picture", err)
	}

	singer := &domain.Singer{
		ID:      uuid.New().String(),
		Name:    name,
		Bio:     strings.TrimSpace(bio),
		Picture: picture,
	}
	if err := s.repo.CreateSinger(ctx, singer); err != nil {
		s.removeBlob(ctx, picture, storage.ResourceImage)
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperror.NewConflictError("singer name is already taken", err)
		}
		return nil, apperror.NewPersistenceError("create singer", err)
	}

	logger.InfoCtx(ctx, logger.EventCatalogChange, "Singer created", logger.Fields("singer_id", singer.ID))
	return singer, nil
}

func (s *catalogService) ListSingers(ctx context.Context) ([]*domain.Singer, error) {
	singers, err := s.repo.ListSingers(ctx)
	if err != nil {
		return nil, apperror.NewPersistenceError("list singers", err)
	}
	return singers, nil
}

func (s *catalogService) GetSinger(ctx context.Context, id string) (*domain.Singer, error) {
	singer, err := s.repo.FindSingerByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "singer", id)
	}
	return singer, nil
}

// UpdateSinger applies the fields set in req. A new picture replaces the old
// one, which is deleted once the update is stored.
func (s *catalogService) UpdateSinger(ctx context.Context, id string, req *dto.UpdateSingerRequest, pictureFile string) (*domain.Singer, error) {
	defer removeTemp(pictureFile)

	current, err := s.repo.FindSingerByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "singer", id)
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, apperror.NewValidationError("singer name must not be blank", "name")
		}
		updates["name"] = name
	}
	if req.Bio != nil {
		updates["bio"] = strings.TrimSpace(*req.Bio)
	}

	var picture string
	if pictureFile != "" {
		picture, err = s.blobs.UploadLocalFile(ctx, pictureFile, storage.CategorySingers)
		if err != nil {
			return nil, apperror.NewUpstreamStorageError("upload singer picture", err)
		}
		updates["picture"] = picture
	}

	if err := s.repo.UpdateSinger(ctx, id, updates); err != nil {
		s.removeBlob(ctx, picture, storage.ResourceImage)
		return nil, writeError(err, "singer", id)
	}
	if picture != "" {
		s.removeBlob(ctx, current.Picture, storage.ResourceImage)
	}

	singer, err := s.repo.FindSingerByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "singer", id)
	}

	logger.InfoCtx(ctx, logger.EventCatalogChange, "Singer updated", logger.Fields("singer_id", id))
	return singer, nil
}

// DeleteSinger refuses to delete a singer that songs still reference.
func (s *catalogService) DeleteSinger(ctx context.Context, id string) error {
	singer, err := s.repo.FindSingerByID(ctx, id)
	if err != nil {
		return lookupError(err, "singer", id)
	}

	songs, err := s.repo.CountSongsBySinger(ctx, id)
	if err != nil {
		return apperror.NewPersistenceError("count songs", err)
	}
	if songs > 0 {
		return apperror.NewConflictError("singer still has songs", nil)
	}

	s.removeBlob(ctx, singer.Picture, storage.ResourceImage)

	if err := s.repo.DeleteSinger(ctx, id); err != nil {
		return writeError(err, "singer", id)
	}

	logger.InfoCtx(ctx, logger.EventCatalogChange, "Singer deleted", logger.Fields("singer_id", id))
	return nil
}

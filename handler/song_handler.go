package handler

import (
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/annazecevic/catalog-service/apperror"
	"github.com/annazecevic/catalog-service/dto"
	"github.com/annazecevic/catalog-service/middleware"
	"github.com/annazecevic/catalog-service/service"
	"github.com/gin-gonic/gin"
)

// POST /admin/song/add
//
// Accepts either a multipart form with one song (file upload or url) or a
// JSON batch of song descriptors.
func (h *CatalogHandler) AddSongs(c *gin.Context) {
	var descriptors []dto.SongDescriptor

	if strings.HasPrefix(c.ContentType(), "multipart/") {
		d, err := h.formDescriptor(c)
		if err != nil {
			respondError(c, err)
			return
		}
		descriptors = []dto.SongDescriptor{*d}
	} else {
		var req dto.ImportBatchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid song batch: "+err.Error(), "songs")
			return
		}
		descriptors = req.Songs
	}

	if len(descriptors) == 0 {
		badRequest(c, "no songs provided", "songs")
		return
	}

	// An import runs to completion even if the client goes away.
	ctx := context.WithoutCancel(c.Request.Context())
	result, err := h.importer.ImportBatch(ctx, descriptors)
	if err != nil {
		respondError(c, err)
		return
	}

	if len(descriptors) == 1 && result.ImportedCount == 0 && len(result.Failures) == 1 {
		respondError(c, result.Failures[0].Err)
		return
	}

	c.JSON(http.StatusOK, toImportResponse(result))
}

// formDescriptor reads a single song from a multipart form. An uploaded file
// is saved to the upload directory and removed by the import.
func (h *CatalogHandler) formDescriptor(c *gin.Context) (*dto.SongDescriptor, error) {
	d := &dto.SongDescriptor{
		Name:      c.PostForm("name"),
		Singer:    c.PostForm("singer"),
		Language:  c.PostForm("language"),
		Playlists: nonBlank(c.PostFormArray("playlist")),
		URL:       c.PostForm("url"),
		Artwork:   c.PostForm("artwork"),
	}
	if d.Name == "" {
		d.Name = c.PostForm("title")
	}
	if d.Singer == "" {
		d.Singer = c.PostForm("artist")
	}

	file, err := c.FormFile("file")
	if err != nil {
		if err == http.ErrMissingFile {
			return d, nil
		}
		return nil, apperror.NewValidationError("invalid multipart form", "file")
	}

	path, err := h.saveUpload(c, file, middleware.AudioUploadConfig(h.opts.MaxUploadSize))
	if err != nil {
		return nil, err
	}
	d.LocalFile = path
	return d, nil
}

// saveUpload validates file and stores it under the upload directory as
// <unix-ms>-<name>.
func (h *CatalogHandler) saveUpload(c *gin.Context, file *multipart.FileHeader, cfg *middleware.FileUploadConfig) (string, error) {
	if err := middleware.ValidateUploadedFile(file, cfg); err != nil {
		return "", apperror.NewValidationError(err.Error(), "file")
	}

	if err := os.MkdirAll(h.opts.UploadDir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}

	name := fmt.Sprintf("%d-%s", time.Now().UnixMilli(), middleware.SanitizeFilename(file.Filename))
	path := filepath.Join(h.opts.UploadDir, name)
	if err := c.SaveUploadedFile(file, path); err != nil {
		return "", fmt.Errorf("save upload: %w", err)
	}
	return path, nil
}

// GET /admin/song, GET /user/song?name=
func (h *CatalogHandler) ListSongs(c *gin.Context) {
	songs, err := h.catalog.SearchSongs(c.Request.Context(), c.Query("name"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, songs)
}

// GET /admin/song/:id
func (h *CatalogHandler) GetSong(c *gin.Context) {
	song, err := h.catalog.GetSong(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, song)
}

// POST /admin/song/play/:id, POST /user/song/play/:id
func (h *CatalogHandler) PlaySong(c *gin.Context) {
	result, err := h.catalog.RecordPlay(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.PlayResponse{
		Message:   "Play count updated",
		PlayCount: result.PlayCount,
		ShowAd:    result.ShowAd,
	})
}

// PUT /admin/song/:id
func (h *CatalogHandler) UpdateSong(c *gin.Context) {
	var req dto.UpdateSongRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "fileLink is required", "fileLink")
		return
	}

	song, err := h.catalog.UpdateSongFileLink(c.Request.Context(), c.Param("id"), req.FileLink)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Song updated", "song": song})
}

// DELETE /admin/song/:id
func (h *CatalogHandler) DeleteSong(c *gin.Context) {
	if err := h.catalog.DeleteSong(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Song deleted"})
}

func toImportResponse(result *service.ImportResult) *dto.ImportResponse {
	resp := &dto.ImportResponse{
		Message:       "Songs imported",
		BatchID:       result.BatchID,
		ImportedCount: result.ImportedCount,
		ImportedSongs: result.ImportedSongs,
	}
	for _, f := range result.Failures {
		resp.Failures = append(resp.Failures, dto.ImportFailure{
			Index:   f.Index,
			Name:    f.Name,
			Code:    string(f.Err.Kind),
			Message: f.Err.Error(),
		})
	}
	return resp
}

func nonBlank(values []string) []string {
	var out []string
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			out = append(out, v)
		}
	}
	return out
}

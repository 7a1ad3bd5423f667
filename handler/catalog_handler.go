package handler

import (
	"io"
	"net/http"

	"github.com/annazecevic/catalog-service/apperror"
	"github.com/annazecevic/catalog-service/logger"
	"github.com/annazecevic/catalog-service/middleware"
	"github.com/annazecevic/catalog-service/service"
	"github.com/annazecevic/catalog-service/storage"
	"github.com/gin-gonic/gin"
)

// MediaStore serves stored objects back to clients.
type MediaStore interface {
	Stat(key string) (*storage.ObjectInfo, error)
	Open(key string, start, end int64) (io.ReadCloser, *storage.ObjectInfo, error)
}

type Options struct {
	UploadDir     string
	MaxUploadSize int64
}

type CatalogHandler struct {
	catalog  service.CatalogService
	importer service.ImportService
	media    MediaStore
	opts     Options
}

func NewCatalogHandler(catalog service.CatalogService, importer service.ImportService, media MediaStore, opts Options) *CatalogHandler {
	if opts.UploadDir == "" {
		opts.UploadDir = "uploads"
	}
	if opts.MaxUploadSize <= 0 {
		opts.MaxUploadSize = 50 * 1024 * 1024
	}
	return &CatalogHandler{catalog: catalog, importer: importer, media: media, opts: opts}
}

func (h *CatalogHandler) RegisterRoutes(router *gin.Engine) {
	validate := middleware.ValidateRequest(h.opts.MaxUploadSize)

	admin := router.Group("/admin")
	admin.Use(validate)
	{
		admin.POST("/song/add", h.AddSongs)
		admin.GET("/song", h.ListSongs)
		admin.GET("/song/:id", h.GetSong)
		admin.POST("/song/play/:id", h.PlaySong)
		admin.PUT("/song/:id", h.UpdateSong)
		admin.DELETE("/song/:id", h.DeleteSong)

		admin.POST("/playlist", h.CreatePlaylist)
		admin.GET("/playlist", h.ListPlaylists)
		admin.GET("/playlist/:id", h.GetPlaylist)
		admin.PUT("/playlist/:id", h.UpdatePlaylist)
		admin.DELETE("/playlist/:id", h.DeletePlaylist)

		admin.POST("/singer", h.CreateSinger)
		admin.GET("/singer", h.ListSingers)
		admin.GET("/singer/:id", h.GetSinger)
		admin.PUT("/singer/:id", h.UpdateSinger)
		admin.DELETE("/singer/:id", h.DeleteSinger)
	}

	user := router.Group("/user")
	user.Use(validate)
	{
		user.GET("/song", h.ListSongs)
		user.GET("/song/:id", h.GetSong)
		user.POST("/song/play/:id", h.PlaySong)
		user.GET("/playlist", h.ListPlaylists)
		user.GET("/playlist/:id", h.GetPlaylist)
	}

	router.GET("/media/*key", h.StreamMedia)
	router.HEAD("/media/*key", h.MediaInfo)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}

// respondError writes err as {"error", "code", "details"} with the status of
// its kind.
func respondError(c *gin.Context, err error) {
	appErr := apperror.As(err)
	status := appErr.HTTPStatus()

	body := gin.H{"error": appErr.Message, "code": appErr.Kind}
	if appErr.Cause != nil {
		body["details"] = appErr.Cause.Error()
	}

	if status >= http.StatusInternalServerError {
		logger.ErrorCtx(c.Request.Context(), logger.EventGeneral, "Request failed", logger.Fields(
			"path", c.FullPath(),
			"code", string(appErr.Kind),
			"error", appErr.Error(),
		))
	} else if appErr.Kind == apperror.KindValidation {
		logger.WarnCtx(c.Request.Context(), logger.EventValidationFailure, appErr.Message, logger.Fields("path", c.FullPath()))
	}

	c.JSON(status, body)
}

func badRequest(c *gin.Context, message string, field string) {
	respondError(c, apperror.NewValidationError(message, field))
}

package handler

import (
	"net/http"
	"strings"

	"github.com/annazecevic/catalog-service/dto"
	"github.com/annazecevic/catalog-service/middleware"
	"github.com/gin-gonic/gin"
)

// POST /admin/playlist
//
// Multipart forms may carry a coverImage file; JSON bodies cannot.
func (h *CatalogHandler) CreatePlaylist(c *gin.Context) {
	var req dto.CreatePlaylistRequest
	if err := c.ShouldBind(&req); err != nil {
		badRequest(c, "invalid playlist request", "name")
		return
	}

	var coverFile string
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		if file, err := c.FormFile("coverImage"); err == nil {
			path, err := h.saveUpload(c, file, middleware.ImageUploadConfig())
			if err != nil {
				respondError(c, err)
				return
			}
			coverFile = path
		}
	}

	playlist, err := h.catalog.CreatePlaylist(c.Request.Context(), &req, coverFile)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Playlist created", "playlist": playlist})
}

// GET /admin/playlist
func (h *CatalogHandler) ListPlaylists(c *gin.Context) {
	playlists, err := h.catalog.ListPlaylists(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, playlists)
}

// GET /user/playlist/:id
func (h *CatalogHandler) GetPlaylist(c *gin.Context) {
	playlist, err := h.catalog.GetPlaylist(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, playlist)
}

// PUT /admin/playlist/:id
func (h *CatalogHandler) UpdatePlaylist(c *gin.Context) {
	var req dto.UpdatePlaylistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid playlist update", "body")
		return
	}

	playlist, err := h.catalog.UpdatePlaylist(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Playlist updated", "playlist": playlist})
}

// DELETE /admin/playlist/:id
func (h *CatalogHandler) DeletePlaylist(c *gin.Context) {
	if err := h.catalog.DeletePlaylist(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Playlist deleted"})
}

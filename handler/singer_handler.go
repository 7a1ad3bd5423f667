package handler

import (
	"net/http"
	"strings"

	"github.com/annazecevic/catalog-service/dto"
	"github.com/annazecevic/catalog-service/middleware"
	"github.com/gin-gonic/gin"
)

// POST /admin/singer (multipart: name, bio, picture)
func (h *CatalogHandler) CreateSinger(c *gin.Context) {
	pictureFile, ok := h.optionalImage(c, "picture")
	if !ok {
		return
	}

	singer, err := h.catalog.CreateSinger(c.Request.Context(), c.PostForm("name"), c.PostForm("bio"), pictureFile)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Singer added", "singer": singer})
}

// GET /admin/singer
func (h *CatalogHandler) ListSingers(c *gin.Context) {
	singers, err := h.catalog.ListSingers(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, singers)
}

// GET /admin/singer/:id
func (h *CatalogHandler) GetSinger(c *gin.Context) {
	singer, err := h.catalog.GetSinger(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, singer)
}

// PUT /admin/singer/:id (JSON, or multipart with an optional new picture)
func (h *CatalogHandler) UpdateSinger(c *gin.Context) {
	var req dto.UpdateSingerRequest
	if err := c.ShouldBind(&req); err != nil {
		badRequest(c, "invalid singer update", "body")
		return
	}

	pictureFile, ok := h.optionalImage(c, "picture")
	if !ok {
		return
	}

	singer, err := h.catalog.UpdateSinger(c.Request.Context(), c.Param("id"), &req, pictureFile)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Singer updated", "singer": singer})
}

// DELETE /admin/singer/:id
func (h *CatalogHandler) DeleteSinger(c *gin.Context) {
	if err := h.catalog.DeleteSinger(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Singer deleted"})
}

// optionalImage saves the image in form field, if any. It writes the error
// response itself and reports false when the upload is rejected.
func (h *CatalogHandler) optionalImage(c *gin.Context, field string) (string, bool) {
	if !strings.HasPrefix(c.ContentType(), "multipart/") {
		return "", true
	}
	file, err := c.FormFile(field)
	if err != nil {
		return "", true
	}
	path, err := h.saveUpload(c, file, middleware.ImageUploadConfig())
	if err != nil {
		respondError(c, err)
		return "", false
	}
	return path, true
}

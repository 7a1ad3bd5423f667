package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/annazecevic/catalog-service/logger"
	"github.com/annazecevic/catalog-service/storage"
	"github.com/gin-gonic/gin"
)

// GET /media/*key
//
// Streams a stored object. A single "bytes=" range is honoured so audio can
// be seeked.
func (h *CatalogHandler) StreamMedia(c *gin.Context) {
	key, info, ok := h.lookupMedia(c)
	if !ok {
		return
	}

	rangeHeader := c.GetHeader("Range")
	if rangeHeader == "" {
		reader, _, err := h.media.Open(key, 0, -1)
		if err != nil {
			h.mediaError(c, key, err)
			return
		}
		defer reader.Close()

		c.Header("Content-Type", info.ContentType)
		c.Header("Content-Length", strconv.FormatInt(info.Size, 10))
		c.Header("Accept-Ranges", "bytes")
		c.Status(http.StatusOK)
		io.Copy(c.Writer, reader)
		return
	}

	start, end, err := parseRange(rangeHeader, info.Size)
	if err != nil {
		c.Header("Content-Range", fmt.Sprintf("bytes */%d", info.Size))
		c.Status(http.StatusRequestedRangeNotSatisfiable)
		return
	}

	reader, _, err := h.media.Open(key, start, end)
	if err != nil {
		h.mediaError(c, key, err)
		return
	}
	defer reader.Close()

	c.Header("Content-Type", info.ContentType)
	c.Header("Content-Length", strconv.FormatInt(end-start+1, 10))
	c.Header("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, info.Size))
	c.Header("Accept-Ranges", "bytes")
	c.Status(http.StatusPartialContent)
	io.Copy(c.Writer, reader)
}

// HEAD /media/*key
func (h *CatalogHandler) MediaInfo(c *gin.Context) {
	_, info, ok := h.lookupMedia(c)
	if !ok {
		return
	}

	c.Header("Content-Type", info.ContentType)
	c.Header("Content-Length", strconv.FormatInt(info.Size, 10))
	c.Header("Accept-Ranges", "bytes")
	c.Header("Last-Modified", info.ModTime.UTC().Format(http.TimeFormat))
	c.Status(http.StatusOK)
}

func (h *CatalogHandler) lookupMedia(c *gin.Context) (string, *storage.ObjectInfo, bool) {
	key, err := storage.CleanKey(c.Param("key"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid media key", "code": "VALIDATION_ERROR"})
		return "", nil, false
	}

	info, err := h.media.Stat(key)
	if err != nil {
		h.mediaError(c, key, err)
		return "", nil, false
	}
	return key, info, true
}

func (h *CatalogHandler) mediaError(c *gin.Context, key string, err error) {
	if errors.Is(err, storage.ErrObjectNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "media not found", "code": "NOT_FOUND"})
		return
	}
	logger.ErrorCtx(c.Request.Context(), logger.EventBlobError, "Failed to read media", logger.Fields(
		"key", key,
		"error", err.Error(),
	))
	c.JSON(http.StatusBadGateway, gin.H{"error": "failed to read media", "code": "UPSTREAM_STORAGE_ERROR"})
}

// parseRange parses a single "bytes=start-end" range, including the suffix
// form "bytes=-n", and clamps end to the object.
func parseRange(header string, size int64) (int64, int64, error) {
	byteRange, ok := strings.CutPrefix(header, "bytes=")
	if !ok || strings.Contains(byteRange, ",") || size <= 0 {
		return 0, 0, fmt.Errorf("unsupported range %q", header)
	}
	first, last, ok := strings.Cut(byteRange, "-")
	if !ok {
		return 0, 0, fmt.Errorf("malformed range %q", header)
	}

	if first == "" {
		n, err := strconv.ParseInt(last, 10, 64)
		if err != nil || n <= 0 {
			return 0, 0, fmt.Errorf("malformed range %q", header)
		}
		if n > size {
			n = size
		}
		return size - n, size - 1, nil
	}

	start, err := strconv.ParseInt(first, 10, 64)
	if err != nil || start < 0 || start >= size {
		return 0, 0, fmt.Errorf("range %q outside object", header)
	}

	end := size - 1
	if last != "" {
		end, err = strconv.ParseInt(last, 10, 64)
		if err != nil || end < start {
			return 0, 0, fmt.Errorf("malformed range %q", header)
		}
		if end >= size {
			end = size - 1
		}
	}
	return start, end, nil
}

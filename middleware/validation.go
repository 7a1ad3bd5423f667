package middleware

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/annazecevic/catalog-service/logger"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// SecurityHeaders sets the response headers every route shares.
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("X-Content-Type-Options", "nosniff")
		c.Writer.Header().Set("X-Frame-Options", "DENY")
		c.Writer.Header().Set("X-XSS-Protection", "1; mode=block")
		c.Next()
	}
}

// ValidateRequest rejects write requests whose body is neither JSON nor
// multipart, and bodies larger than maxBytes. Bodyless writes such as
// POST /song/play/:id pass.
func ValidateRequest(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		method := c.Request.Method
		if (method == http.MethodPost || method == http.MethodPut) && c.Request.ContentLength != 0 {
			contentType := c.GetHeader("Content-Type")
			if !strings.Contains(contentType, "application/json") &&
				!strings.Contains(contentType, "multipart/form-data") {
				logger.Warn(logger.EventValidationFailure, "Rejected content type", logger.Fields(
					"path", c.FullPath(),
					"content_type", contentType,
				))
				c.AbortWithStatusJSON(http.StatusUnsupportedMediaType, gin.H{
					"error": "invalid content type, expected application/json or multipart/form-data",
					"code":  "VALIDATION_ERROR",
				})
				return
			}
		}

		if maxBytes > 0 {
			if c.Request.ContentLength > maxBytes {
				c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{
					"error": fmt.Sprintf("request body too large, maximum %d bytes allowed", maxBytes),
					"code":  "VALIDATION_ERROR",
				})
				return
			}
			if c.Request.Body != nil {
				c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
			}
		}

		c.Next()
	}
}

const requestIDHeader = "X-Request-ID"

// RequestLogger tags the request context with a request id, echoes it in the
// response and writes one entry per request once it completes. A well-formed
// incoming X-Request-ID is kept.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		id := c.GetHeader(requestIDHeader)
		if !validRequestID(id) {
			id = uuid.NewString()
		}
		ctx := logger.WithRequestID(c.Request.Context(), id)
		c.Request = c.Request.WithContext(ctx)
		c.Header(requestIDHeader, id)

		c.Next()

		fields := logger.Fields(
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"ip", c.ClientIP(),
		)
		if c.Writer.Status() >= http.StatusInternalServerError {
			logger.ErrorCtx(ctx, logger.EventGeneral, "Request failed", fields)
			return
		}
		logger.InfoCtx(ctx, logger.EventGeneral, "Request handled", fields)
	}
}

func validRequestID(id string) bool {
	if id == "" || len(id) > 64 {
		return false
	}
	for _, r := range id {
		if !(r == '-' || r == '_' || r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z') {
			return false
		}
	}
	return true
}

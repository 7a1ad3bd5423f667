package middleware

import (
	"fmt"
	"mime"
	"mime/multipart"
	"path/filepath"
	"strings"
)

// FileUploadConfig whitelists what a multipart upload may contain.
type FileUploadConfig struct {
	MaxFileSize       int64
	AllowedMimeTypes  []string
	AllowedExtensions []string
}

func ImageUploadConfig() *FileUploadConfig {
	return &FileUploadConfig{
		MaxFileSize: 5 * 1024 * 1024,
		AllowedMimeTypes: []string{
			"image/jpeg",
			"image/png",
			"image/gif",
			"image/webp",
		},
		AllowedExtensions: []string{".jpg", ".jpeg", ".png", ".gif", ".webp"},
	}
}

// AudioUploadConfig allows audio files up to maxSize bytes.
func AudioUploadConfig(maxSize int64) *FileUploadConfig {
	return &FileUploadConfig{
		MaxFileSize: maxSize,
		AllowedMimeTypes: []string{
			"audio/mpeg",
			"audio/mp3",
			"audio/wav",
			"audio/x-wav",
			"audio/ogg",
			"audio/flac",
			"audio/mp4",
			"audio/aac",
		},
		AllowedExtensions: []string{".mp3", ".wav", ".ogg", ".flac", ".m4a", ".aac"},
	}
}

// ValidateUploadedFile checks size, extension and declared content type of
// an uploaded file. The content type header is client supplied.
func ValidateUploadedFile(file *multipart.FileHeader, config *FileUploadConfig) error {
	if file.Size > config.MaxFileSize {
		return fmt.Errorf("file size exceeds maximum allowed size of %d bytes", config.MaxFileSize)
	}
	if file.Size == 0 {
		return fmt.Errorf("file is empty")
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	if !contains(config.AllowedExtensions, ext) {
		return fmt.Errorf("file extension %q is not allowed", ext)
	}

	if contentType := file.Header.Get("Content-Type"); contentType != "" {
		mediaType, _, err := mime.ParseMediaType(contentType)
		if err != nil || (mediaType != "application/octet-stream" && !contains(config.AllowedMimeTypes, mediaType)) {
			return fmt.Errorf("file type %s is not allowed", contentType)
		}
	}

	return nil
}

// SanitizeFilename strips path components and characters that are unsafe in
// a local file name.
func SanitizeFilename(filename string) string {
	filename = filepath.Base(strings.ReplaceAll(filename, "\\", "/"))

	dangerous := []string{"..", "/", "<", ">", ":", "\"", "|", "?", "*", " "}
	for _, char := range dangerous {
		filename = strings.ReplaceAll(filename, char, "_")
	}

	if len(filename) > 200 {
		ext := filepath.Ext(filename)
		filename = filename[:200-len(ext)] + ext
	}
	if filename == "" || filename == "." {
		filename = "upload"
	}
	return filename
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

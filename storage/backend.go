package storage

import (
	"errors"
	"io"
	"mime"
	"path"
	"time"
)

var ErrObjectNotFound = errors.New("object not found")

type ObjectInfo struct {
	Key         string    `json:"key"`
	Size        int64     `json:"size"`
	ModTime     time.Time `json:"mod_time"`
	ContentType string    `json:"content_type"`
}

// Backend is the byte store behind Store. Keys are slash separated and
// relative to the backend root.
type Backend interface {
	Put(key string, r io.Reader, size int64) error
	Remove(key string) error
	Stat(key string) (*ObjectInfo, error)
	// Open returns a reader over [start, end]. A negative end reads to EOF.
	Open(key string, start, end int64) (io.ReadCloser, *ObjectInfo, error)
}

func contentTypeFor(key string) string {
	if ct := mime.TypeByExtension(path.Ext(key)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

type limitedReader struct {
	reader    io.ReadCloser
	remaining int64
}

func (lr *limitedReader) Read(p []byte) (int, error) {
	if lr.remaining <= 0 {
		return 0, io.EOF
	}

	if int64(len(p)) > lr.remaining {
		p = p[:lr.remaining]
	}

	n, err := lr.reader.Read(p)
	lr.remaining -= int64(n)
	return n, err
}

func (lr *limitedReader) Close() error {
	return lr.reader.Close()
}

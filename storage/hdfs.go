package storage

import (
	"fmt"
	"io"
	"os"
	"path"
	"time"

	"github.com/annazecevic/catalog-service/logger"
	"github.com/colinmarc/hdfs/v2"
)

// HDFSBackend stores objects as files under a base directory in HDFS.
type HDFSBackend struct {
	client  *hdfs.Client
	baseDir string
}

func NewHDFSBackend(namenodeAddr, baseDir string) (*HDFSBackend, error) {
	client, err := hdfs.New(namenodeAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to HDFS namenode: %w", err)
	}

	return &HDFSBackend{client: client, baseDir: baseDir}, nil
}

// ConnectHDFS connects to the namenode and prepares the base directory,
// backing off between attempts while the cluster starts up.
func ConnectHDFS(namenodeAddr, baseDir string, maxRetries int) (*HDFSBackend, error) {
	if maxRetries < 1 {
		maxRetries = 1
	}

	var err error
	for i := 0; i < maxRetries; i++ {
		var b *HDFSBackend
		if b, err = NewHDFSBackend(namenodeAddr, baseDir); err == nil {
			if err = b.EnsureBaseDir(); err == nil {
				return b, nil
			}
			b.Close()
		}

		logger.Warn(logger.EventBlobError, "HDFS not ready", logger.Fields(
			"attempt", i+1,
			"max_retries", maxRetries,
			"error", err.Error(),
		))
		time.Sleep(time.Duration(i+1) * 2 * time.Second)
	}
	return nil, err
}

func (b *HDFSBackend) Close() error {
	return b.client.Close()
}

func (b *HDFSBackend) EnsureBaseDir() error {
	err := b.client.MkdirAll(b.baseDir, 0755)
	if err != nil && !os.IsExist(err) {
		return fmt.Errorf("failed to create base directory: %w", err)
	}
	return nil
}

func (b *HDFSBackend) objectPath(key string) string {
	return path.Join(b.baseDir, key)
}

func (b *HDFSBackend) Put(key string, reader io.Reader, size int64) error {
	p := b.objectPath(key)

	if err := b.client.MkdirAll(path.Dir(p), 0755); err != nil && !os.IsExist(err) {
		return fmt.Errorf("failed to create object directory: %w", err)
	}

	writer, err := b.client.Create(p)
	if err != nil {
		return fmt.Errorf("failed to create file in HDFS: %w", err)
	}

	written, err := io.Copy(writer, reader)
	if err != nil {
		writer.Close()
		b.client.Remove(p)
		return fmt.Errorf("failed to write to HDFS: %w", err)
	}

	if err := writer.Close(); err != nil {
		b.client.Remove(p)
		return fmt.Errorf("failed to finalize HDFS file: %w", err)
	}

	if size > 0 && written != size {
		b.client.Remove(p)
		return fmt.Errorf("size mismatch: expected %d, got %d", size, written)
	}

	return nil
}

func (b *HDFSBackend) Remove(key string) error {
	if err := b.client.Remove(b.objectPath(key)); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrObjectNotFound, key)
		}
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

func (b *HDFSBackend) Stat(key string) (*ObjectInfo, error) {
	info, err := b.client.Stat(b.objectPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, key)
		}
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	return &ObjectInfo{
		Key:         key,
		Size:        info.Size(),
		ModTime:     info.ModTime(),
		ContentType: contentTypeFor(key),
	}, nil
}

func (b *HDFSBackend) Open(key string, start, end int64) (io.ReadCloser, *ObjectInfo, error) {
	info, err := b.Stat(key)
	if err != nil {
		return nil, nil, err
	}

	reader, err := b.client.Open(b.objectPath(key))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open file: %w", err)
	}

	if start > 0 {
		if _, err := reader.Seek(start, io.SeekStart); err != nil {
			reader.Close()
			return nil, nil, fmt.Errorf("failed to seek: %w", err)
		}
	}

	if end >= 0 && end < info.Size-1 {
		return &limitedReader{reader: reader, remaining: end - start + 1}, info, nil
	}

	return reader, info, nil
}

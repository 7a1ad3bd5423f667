package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/annazecevic/catalog-service/logger"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

var (
	ErrNotDurable   = errors.New("url does not point at durable storage")
	ErrKindMismatch = errors.New("object is stored under a different resource kind")
	ErrInvalidKey   = errors.New("invalid object key")
)

type Options struct {
	// PublicURL is the base every stored object is published under,
	// e.g. https://media.example.com/media.
	PublicURL string
	// DurableHost marks URLs that already point at this store. Defaults to
	// the host of PublicURL.
	DurableHost  string
	FetchTimeout time.Duration
	FetchRate    float64 // remote fetches per second
	FetchBurst   int
	HTTPClient   *http.Client
}

// Store is the durable blob store adapter: it migrates local uploads and
// remote media into the backend and hands out stable public URLs.
type Store struct {
	backend     Backend
	publicURL   *url.URL
	durableHost string
	client      *http.Client
	limiter     *rate.Limiter
}

func NewStore(backend Backend, opts Options) (*Store, error) {
	base, err := url.Parse(opts.PublicURL)
	if err != nil || base.Host == "" {
		return nil, fmt.Errorf("invalid public url %q", opts.PublicURL)
	}
	base.Path = strings.TrimSuffix(base.Path, "/")

	host := opts.DurableHost
	if host == "" {
		host = base.Hostname()
	}

	client := opts.HTTPClient
	if client == nil {
		timeout := opts.FetchTimeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}

	limit := rate.Inf
	if opts.FetchRate > 0 {
		limit = rate.Limit(opts.FetchRate)
	}
	burst := opts.FetchBurst
	if burst <= 0 {
		burst = 1
	}

	return &Store{
		backend:     backend,
		publicURL:   base,
		durableHost: host,
		client:      client,
		limiter:     rate.NewLimiter(limit, burst),
	}, nil
}

// IsDurable reports whether raw already points at this store.
func (s *Store) IsDurable(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return false
	}
	return strings.EqualFold(u.Hostname(), s.durableHost)
}

// UploadLocalFile moves a local temporary file into the store and removes the
// local copy once the upload succeeded.
func (s *Store) UploadLocalFile(ctx context.Context, localPath string, category Category) (string, error) {
	if !category.valid() {
		category = CategoryDefault
	}

	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to open upload: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return "", fmt.Errorf("failed to stat upload: %w", err)
	}

	key := s.newKey(category, strings.ToLower(filepath.Ext(localPath)))
	err = s.backend.Put(key, readerWithContext(ctx, f), info.Size())
	f.Close()
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", filepath.Base(localPath), err)
	}

	if err := os.Remove(localPath); err != nil && !os.IsNotExist(err) {
		logger.WarnCtx(ctx, logger.EventBlobUpload, "Failed to remove temporary upload", logger.Fields(
			"path", localPath,
			"error", err.Error(),
		))
	}

	publicURL := s.urlFor(key)
	logger.InfoCtx(ctx, logger.EventBlobUpload, "Uploaded local file", logger.Fields(
		"key", key,
		"size", info.Size(),
	))
	return publicURL, nil
}

// UploadFromURL copies remote media into the store. URLs that already point
// at the store are returned unchanged without any upload.
func (s *Store) UploadFromURL(ctx context.Context, remote string, category Category) (string, error) {
	remote = strings.TrimSpace(remote)
	if s.IsDurable(remote) {
		return remote, nil
	}
	if !category.valid() {
		category = CategoryDefault
	}

	src, err := url.Parse(remote)
	if err != nil || (src.Scheme != "http" && src.Scheme != "https") {
		return "", fmt.Errorf("unsupported media url %q", remote)
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("fetch %s: %w", src.Host, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, remote, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", remote, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("fetch %s: unexpected status %d", remote, resp.StatusCode)
	}

	key := s.newKey(category, extensionFor(src.Path, resp.Header.Get("Content-Type")))
	if err := s.backend.Put(key, resp.Body, resp.ContentLength); err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", remote, err)
	}

	logger.InfoCtx(ctx, logger.EventBlobUpload, "Migrated remote media", logger.Fields(
		"source_host", src.Host,
		"key", key,
	))
	return s.urlFor(key), nil
}

// Delete removes the object behind a durable URL. kind must match the kind
// the object was stored as.
func (s *Store) Delete(ctx context.Context, raw string, kind ResourceKind) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !s.IsDurable(raw) {
		return fmt.Errorf("%w: %s", ErrNotDurable, raw)
	}

	key, err := s.KeyFromURL(raw)
	if err != nil {
		return err
	}
	if root, _, _ := strings.Cut(key, "/"); root != kind.String() {
		return fmt.Errorf("%w: %s is not %s", ErrKindMismatch, key, kind)
	}

	if err := s.backend.Remove(key); err != nil {
		return err
	}

	logger.InfoCtx(ctx, logger.EventBlobDelete, "Deleted blob", logger.Fields("key", key, "kind", kind.String()))
	return nil
}

// KeyFromURL derives the backend key from a public URL's path.
func (s *Store) KeyFromURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}

	prefix := s.publicURL.Path + "/"
	if !strings.HasPrefix(u.Path, prefix) {
		return "", fmt.Errorf("%w: %s is outside %s", ErrInvalidKey, u.Path, prefix)
	}
	return CleanKey(strings.TrimPrefix(u.Path, prefix))
}

// Open reads a stored object; see Backend.Open.
func (s *Store) Open(key string, start, end int64) (io.ReadCloser, *ObjectInfo, error) {
	return s.backend.Open(key, start, end)
}

func (s *Store) Stat(key string) (*ObjectInfo, error) {
	return s.backend.Stat(key)
}

// CleanKey validates a key taken from a request path.
func CleanKey(key string) (string, error) {
	key = strings.TrimPrefix(key, "/")
	if key == "" || strings.Contains(key, "..") || path.Clean(key) != key {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	root, _, _ := strings.Cut(key, "/")
	if _, err := ParseResourceKind(root); err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return key, nil
}

func (s *Store) newKey(category Category, ext string) string {
	return path.Join(category.Kind().String(), string(category), uuid.New().String()+ext)
}

func (s *Store) urlFor(key string) string {
	u := *s.publicURL
	u.Path = u.Path + "/" + key
	return u.String()
}

func extensionFor(srcPath, contentType string) string {
	if ext := strings.ToLower(path.Ext(srcPath)); ext != "" && len(ext) <= 6 {
		return ext
	}
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil {
		if exts, err := mime.ExtensionsByType(mediaType); err == nil && len(exts) > 0 {
			return exts[0]
		}
	}
	return ""
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

// readerWithContext stops a long copy once ctx is done.
func readerWithContext(ctx context.Context, r io.Reader) io.Reader {
	return &ctxReader{ctx: ctx, r: r}
}

package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/annazecevic/catalog-service/domain"
	"github.com/annazecevic/catalog-service/repository"
	"github.com/annazecevic/catalog-service/storage"
	"go.mongodb.org/mongo-driver/mongo"
)

// mockRepo is an in-memory CatalogRepository that enforces the same
// case-insensitive name uniqueness as the Mongo indexes.
type mockRepo struct {
	mu        sync.Mutex
	singers   []*domain.Singer
	playlists []*domain.Playlist
	songs     []*domain.Song

	CreateSongErr  error
	AddSongErr     error
	UpdateErr      error
	FindSingerCall int
	// BeforeCreateSinger runs before a singer insert, outside the lock.
	BeforeCreateSinger func(s *domain.Singer)
	// BeforeCreateSong runs once before a song insert, outside the lock.
	BeforeCreateSong func(s *domain.Song)
}

func newMockRepo() *mockRepo {
	return &mockRepo{}
}

func sameName(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

func (m *mockRepo) CreateSinger(ctx context.Context, s *domain.Singer) error {
	if m.BeforeCreateSinger != nil {
		hook := m.BeforeCreateSinger
		m.BeforeCreateSinger = nil
		hook(s)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.singers {
		if sameName(existing.Name, s.Name) {
			return fmt.Errorf("singers: %w", repository.ErrDuplicate)
		}
	}
	c := *s
	m.singers = append(m.singers, &c)
	return nil
}

func (m *mockRepo) FindSingerByID(ctx context.Context, id string) (*domain.Singer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.singers {
		if s.ID == id {
			c := *s
			return &c, nil
		}
	}
	return nil, mongo.ErrNoDocuments
}

func (m *mockRepo) FindSingerByName(ctx context.Context, name string) (*domain.Singer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FindSingerCall++
	for _, s := range m.singers {
		if sameName(s.Name, name) {
			c := *s
			return &c, nil
		}
	}
	return nil, mongo.ErrNoDocuments
}

func (m *mockRepo) FindSingersByIDs(ctx context.Context, ids []string) ([]*domain.Singer, error) {
	out := []*domain.Singer{}
	for _, id := range ids {
		if s, err := m.FindSingerByID(ctx, id); err == nil {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *mockRepo) ListSingers(ctx context.Context) ([]*domain.Singer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*domain.Singer{}
	for _, s := range m.singers {
		c := *s
		out = append(out, &c)
	}
	return out, nil
}

func (m *mockRepo) UpdateSinger(ctx context.Context, id string, updates map[string]interface{}) error {
	if m.UpdateErr != nil {
		return m.UpdateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.singers {
		if s.ID != id {
			continue
		}
		if name, ok := updates["name"].(string); ok {
			s.Name = name
		}
		if bio, ok := updates["bio"].(string); ok {
			s.Bio = bio
		}
		if pic, ok := updates["picture"].(string); ok {
			s.Picture = pic
		}
		return nil
	}
	return mongo.ErrNoDocuments
}

func (m *mockRepo) DeleteSinger(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, s := range m.singers {
		if s.ID == id {
			m.singers = append(m.singers[:i], m.singers[i+1:]...)
			return nil
		}
	}
	return mongo.ErrNoDocuments
}

func (m *mockRepo) CreatePlaylist(ctx context.Context, p *domain.Playlist) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.playlists {
		if sameName(existing.Name, p.Name) {
			return fmt.Errorf("playlists: %w", repository.ErrDuplicate)
		}
	}
	c := *p
	c.Songs = append([]string{}, p.Songs...)
	m.playlists = append(m.playlists, &c)
	return nil
}

func (m *mockRepo) findPlaylist(id string) *domain.Playlist {
	for _, p := range m.playlists {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (m *mockRepo) FindPlaylistByID(ctx context.Context, id string) (*domain.Playlist, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p := m.findPlaylist(id); p != nil {
		c := *p
		c.Songs = append([]string{}, p.Songs...)
		return &c, nil
	}
	return nil, mongo.ErrNoDocuments
}

func (m *mockRepo) FindPlaylistByName(ctx context.Context, name string) (*domain.Playlist, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.playlists {
		if sameName(p.Name, name) {
			c := *p
			c.Songs = append([]string{}, p.Songs...)
			return &c, nil
		}
	}
	return nil, mongo.ErrNoDocuments
}

func (m *mockRepo) FindPlaylistsByIDs(ctx context.Context, ids []string) ([]*domain.Playlist, error) {
	out := []*domain.Playlist{}
	for _, id := range ids {
		if p, err := m.FindPlaylistByID(ctx, id); err == nil {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *mockRepo) ListPlaylists(ctx context.Context) ([]*domain.Playlist, error) {
	m.mu.Lock()
	ids := make([]string, 0, len(m.playlists))
	for _, p := range m.playlists {
		ids = append(ids, p.ID)
	}
	m.mu.Unlock()
	return m.FindPlaylistsByIDs(ctx, ids)
}

func (m *mockRepo) UpdatePlaylist(ctx context.Context, id string, updates map[string]interface{}) error {
	if m.UpdateErr != nil {
		return m.UpdateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.findPlaylist(id)
	if p == nil {
		return mongo.ErrNoDocuments
	}
	if name, ok := updates["name"].(string); ok {
		for _, other := range m.playlists {
			if other.ID != id && sameName(other.Name, name) {
				return fmt.Errorf("playlists: %w", repository.ErrDuplicate)
			}
		}
		p.Name = name
	}
	if desc, ok := updates["description"].(string); ok {
		p.Description = desc
	}
	if songs, ok := updates["songs"].([]string); ok {
		p.Songs = songs
	}
	return nil
}

func (m *mockRepo) DeletePlaylist(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, p := range m.playlists {
		if p.ID == id {
			m.playlists = append(m.playlists[:i], m.playlists[i+1:]...)
			return nil
		}
	}
	return mongo.ErrNoDocuments
}

func (m *mockRepo) AddSongToPlaylists(ctx context.Context, playlistIDs []string, songID string) error {
	if m.AddSongErr != nil {
		return m.AddSongErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range playlistIDs {
		if p := m.findPlaylist(id); p != nil && !hasMember(p, songID) {
			p.Songs = append(p.Songs, songID)
		}
	}
	return nil
}

func hasMember(p *domain.Playlist, songID string) bool {
	for _, id := range p.Songs {
		if id == songID {
			return true
		}
	}
	return false
}

func (m *mockRepo) RemoveSongFromPlaylists(ctx context.Context, songID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.playlists {
		kept := []string{}
		for _, id := range p.Songs {
			if id != songID {
				kept = append(kept, id)
			}
		}
		p.Songs = kept
	}
	return nil
}

func (m *mockRepo) CreateSong(ctx context.Context, s *domain.Song) error {
	if m.CreateSongErr != nil {
		return m.CreateSongErr
	}
	if m.BeforeCreateSong != nil {
		hook := m.BeforeCreateSong
		m.BeforeCreateSong = nil
		hook(s)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.songs {
		if s.URL != "" && existing.URL == s.URL && existing.Name == s.Name {
			return fmt.Errorf("songs: %w", repository.ErrDuplicate)
		}
	}
	c := *s
	m.songs = append(m.songs, &c)
	return nil
}

func (m *mockRepo) findSong(match func(*domain.Song) bool) (*domain.Song, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.songs {
		if match(s) {
			c := *s
			return &c, nil
		}
	}
	return nil, mongo.ErrNoDocuments
}

func (m *mockRepo) FindSongByID(ctx context.Context, id string) (*domain.Song, error) {
	return m.findSong(func(s *domain.Song) bool { return s.ID == id })
}

func (m *mockRepo) FindSongBySource(ctx context.Context, url, name string) (*domain.Song, error) {
	return m.findSong(func(s *domain.Song) bool { return s.URL == url && s.Name == name })
}

func (m *mockRepo) FindSongByName(ctx context.Context, name string) (*domain.Song, error) {
	return m.findSong(func(s *domain.Song) bool { return s.Name == name })
}

func (m *mockRepo) FindSongsByIDs(ctx context.Context, ids []string) ([]*domain.Song, error) {
	out := []*domain.Song{}
	for _, id := range ids {
		if s, err := m.FindSongByID(ctx, id); err == nil {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *mockRepo) ListSongs(ctx context.Context) ([]*domain.Song, error) {
	return m.SearchSongsByName(ctx, "")
}

func (m *mockRepo) CountSongsBySinger(ctx context.Context, singerID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, s := range m.songs {
		if s.SingerID == singerID {
			n++
		}
	}
	return n, nil
}

func (m *mockRepo) SearchSongsByName(ctx context.Context, query string) ([]*domain.Song, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*domain.Song{}
	for _, s := range m.songs {
		if strings.Contains(strings.ToLower(s.Name), strings.ToLower(query)) {
			c := *s
			out = append(out, &c)
		}
	}
	return out, nil
}

func (m *mockRepo) UpdateSong(ctx context.Context, id string, updates map[string]interface{}) error {
	if m.UpdateErr != nil {
		return m.UpdateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.songs {
		if s.ID == id {
			if link, ok := updates["file_link"].(string); ok {
				s.FileLink = link
			}
			return nil
		}
	}
	return mongo.ErrNoDocuments
}

func (m *mockRepo) DeleteSong(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, s := range m.songs {
		if s.ID == id {
			m.songs = append(m.songs[:i], m.songs[i+1:]...)
			return nil
		}
	}
	return mongo.ErrNoDocuments
}

func (m *mockRepo) IncrementPlayCount(ctx context.Context, id string) (*domain.Song, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.songs {
		if s.ID == id {
			s.PlayCount++
			c := *s
			return &c, nil
		}
	}
	return nil, fmt.Errorf("increment play count: %w", mongo.ErrNoDocuments)
}

const durablePrefix = "https://blobs.local/media/"

type deletedBlob struct {
	URL  string
	Kind storage.ResourceKind
}

// mockBlobs records uploads and deletes. URLs under durablePrefix count as
// durable.
type mockBlobs struct {
	mu        sync.Mutex
	seq       int
	uploads   []string // "<category> <source>"
	deleted   []deletedBlob
	failURLs  map[string]bool
	failLocal bool
	deleteErr error
}

func newMockBlobs() *mockBlobs {
	return &mockBlobs{failURLs: map[string]bool{}}
}

func (b *mockBlobs) next(category storage.Category, source string) string {
	b.seq++
	b.uploads = append(b.uploads, string(category)+" "+source)
	return fmt.Sprintf("%s%s/%s/%d", durablePrefix, category.Kind(), category, b.seq)
}

func (b *mockBlobs) UploadLocalFile(ctx context.Context, localPath string, category storage.Category) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failLocal {
		return "", errors.New("upload rejected")
	}
	os.Remove(localPath)
	return b.next(category, localPath), nil
}

func (b *mockBlobs) UploadFromURL(ctx context.Context, remote string, category storage.Category) (string, error) {
	if b.IsDurable(remote) {
		return remote, nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failURLs[remote] {
		return "", fmt.Errorf("fetch %s: unexpected status 404", remote)
	}
	return b.next(category, remote), nil
}

func (b *mockBlobs) Delete(ctx context.Context, url string, kind storage.ResourceKind) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deleted = append(b.deleted, deletedBlob{URL: url, Kind: kind})
	return b.deleteErr
}

func (b *mockBlobs) IsDurable(url string) bool {
	return strings.HasPrefix(url, durablePrefix)
}

func (b *mockBlobs) uploadsOf(category storage.Category) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, u := range b.uploads {
		if strings.HasPrefix(u, string(category)+" ") {
			n++
		}
	}
	return n
}

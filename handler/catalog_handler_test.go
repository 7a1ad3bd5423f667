package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/annazecevic/catalog-service/apperror"
	"github.com/annazecevic/catalog-service/domain"
	"github.com/annazecevic/catalog-service/dto"
	"github.com/annazecevic/catalog-service/service"
	"github.com/annazecevic/catalog-service/storage"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubCatalog overrides the methods a test needs; anything else panics
// through the nil embedded interface.
type stubCatalog struct {
	service.CatalogService

	playResult   *service.PlayResult
	playErr      error
	searchQuery  string
	songs        []*domain.SongDetails
	deleteErr    error
	singerPic    string
	singerName   string
	playlistReq  *dto.CreatePlaylistRequest
	playlistFile string
}

func (s *stubCatalog) RecordPlay(ctx context.Context, id string) (*service.PlayResult, error) {
	return s.playResult, s.playErr
}

func (s *stubCatalog) SearchSongs(ctx context.Context, query string) ([]*domain.SongDetails, error) {
	s.searchQuery = query
	return s.songs, nil
}

func (s *stubCatalog) DeleteSong(ctx context.Context, id string) error {
	return s.deleteErr
}

func (s *stubCatalog) CreateSinger(ctx context.Context, name, bio, pictureFile string) (*domain.Singer, error) {
	s.singerName = name
	s.singerPic = pictureFile
	if pictureFile == "" {
		return nil, apperror.NewValidationError("picture file is required", "picture")
	}
	os.Remove(pictureFile)
	return &domain.Singer{ID: "a1", Name: name}, nil
}

func (s *stubCatalog) CreatePlaylist(ctx context.Context, req *dto.CreatePlaylistRequest, coverFile string) (*domain.Playlist, error) {
	s.playlistReq = req
	s.playlistFile = coverFile
	return &domain.Playlist{ID: "p1", Name: req.Name}, nil
}

type stubImporter struct {
	got    []dto.SongDescriptor
	result *service.ImportResult
}

func (s *stubImporter) ImportBatch(ctx context.Context, descriptors []dto.SongDescriptor) (*service.ImportResult, error) {
	s.got = descriptors
	for _, d := range descriptors {
		if d.LocalFile != "" {
			os.Remove(d.LocalFile)
		}
	}
	if s.result != nil {
		return s.result, nil
	}
	return &service.ImportResult{ImportedCount: len(descriptors), ImportedSongs: []*domain.Song{}}, nil
}

type stubMedia struct {
	objects map[string][]byte
}

func (m *stubMedia) Stat(key string) (*storage.ObjectInfo, error) {
	data, ok := m.objects[key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return &storage.ObjectInfo{Key: key, Size: int64(len(data)), ModTime: time.Unix(0, 0), ContentType: "audio/mpeg"}, nil
}

func (m *stubMedia) Open(key string, start, end int64) (io.ReadCloser, *storage.ObjectInfo, error) {
	info, err := m.Stat(key)
	if err != nil {
		return nil, nil, err
	}
	data := m.objects[key]
	if end < 0 {
		end = int64(len(data)) - 1
	}
	return io.NopCloser(bytes.NewReader(data[start : end+1])), info, nil
}

func setupRouter(t *testing.T, catalog service.CatalogService, importer service.ImportService, media MediaStore) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewCatalogHandler(catalog, importer, media, Options{UploadDir: t.TempDir(), MaxUploadSize: 1 << 20})
	h.RegisterRoutes(r)
	return r
}

func doJSON(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestPlaySong(t *testing.T) {
	catalog := &stubCatalog{playResult: &service.PlayResult{PlayCount: 5, ShowAd: true}}
	r := setupRouter(t, catalog, &stubImporter{}, &stubMedia{})

	for _, path := range []string{"/admin/song/play/s1", "/user/song/play/s1"} {
		w := doJSON(r, http.MethodPost, path, "")

		require.Equal(t, http.StatusOK, w.Code, path)
		body := decode(t, w)
		assert.Equal(t, "Play count updated", body["message"])
		assert.Equal(t, true, body["showAd"])
		assert.EqualValues(t, 5, body["playCount"])
	}
}

func TestPlaySongNotFound(t *testing.T) {
	catalog := &stubCatalog{playErr: apperror.NewNotFoundError("song", "missing")}
	r := setupRouter(t, catalog, &stubImporter{}, &stubMedia{})

	w := doJSON(r, http.MethodPost, "/user/song/play/missing", "")

	assert.Equal(t, http.StatusNotFound, w.Code)
	body := decode(t, w)
	assert.Equal(t, "song not found", body["error"])
	assert.Equal(t, "NOT_FOUND", body["code"])
}

func TestSearchSongsPassesQuery(t *testing.T) {
	catalog := &stubCatalog{songs: []*domain.SongDetails{{Song: domain.Song{ID: "1", Name: "Tum Hi Ho"}}}}
	r := setupRouter(t, catalog, &stubImporter{}, &stubMedia{})

	w := doJSON(r, http.MethodGet, "/user/song?name=tum", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "tum", catalog.searchQuery)
	assert.Contains(t, w.Body.String(), `"name":"Tum Hi Ho"`)
}

func TestDeleteSongPersistenceFailure(t *testing.T) {
	catalog := &stubCatalog{deleteErr: apperror.NewPersistenceError("write song", fmt.Errorf("connection reset"))}
	r := setupRouter(t, catalog, &stubImporter{}, &stubMedia{})

	w := doJSON(r, http.MethodDelete, "/admin/song/s1", "")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	body := decode(t, w)
	assert.Equal(t, "PERSISTENCE_ERROR", body["code"])
	assert.Equal(t, "connection reset", body["details"])
}

func TestAddSongsJSONBatch(t *testing.T) {
	importer := &stubImporter{}
	r := setupRouter(t, &stubCatalog{}, importer, &stubMedia{})

	w := doJSON(r, http.MethodPost, "/admin/song/add", `[
		{"title": "A", "artist": "X", "url": "https://cdn.example.com/a.mp3", "playlist": "Chill"},
		{"name": "B", "singer": "Y", "url": "https://cdn.example.com/b.mp3", "playlist": ["P", "Q"]}
	]`)

	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, importer.got, 2)
	assert.Equal(t, "A", importer.got[0].Name)
	assert.Equal(t, "X", importer.got[0].Singer)
	assert.Equal(t, dto.NameList{"Chill"}, importer.got[0].Playlists)
	assert.Equal(t, dto.NameList{"P", "Q"}, importer.got[1].Playlists)
	assert.EqualValues(t, 2, decode(t, w)["importedCount"])
}

func TestAddSongsRejectsEmptyBatch(t *testing.T) {
	r := setupRouter(t, &stubCatalog{}, &stubImporter{}, &stubMedia{})

	w := doJSON(r, http.MethodPost, "/admin/song/add", `{"songs": []}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", decode(t, w)["code"])
}

func TestAddSongsReportsFailures(t *testing.T) {
	importer := &stubImporter{result: &service.ImportResult{
		ImportedCount: 1,
		ImportedSongs: []*domain.Song{{ID: "s1"}},
		Failures: []service.ImportFailure{{
			Index: 1,
			Name:  "B",
			Err:   apperror.NewUpstreamStorageError("upload audio", fmt.Errorf("status 404")),
		}},
	}}
	r := setupRouter(t, &stubCatalog{}, importer, &stubMedia{})

	w := doJSON(r, http.MethodPost, "/admin/song/add", `[{"name":"A","singer":"X","url":"u1"},{"name":"B","singer":"X","url":"u2"}]`)

	require.Equal(t, http.StatusOK, w.Code)
	var resp dto.ImportResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.ImportedCount)
	require.Len(t, resp.Failures, 1)
	assert.Equal(t, 1, resp.Failures[0].Index)
	assert.Equal(t, "UPSTREAM_STORAGE_ERROR", resp.Failures[0].Code)
}

func TestAddSongsSingleFailureUsesErrorStatus(t *testing.T) {
	importer := &stubImporter{result: &service.ImportResult{
		Failures: []service.ImportFailure{{Index: 0, Err: apperror.NewValidationError("singer name is required", "singer")}},
	}}
	r := setupRouter(t, &stubCatalog{}, importer, &stubMedia{})

	w := doJSON(r, http.MethodPost, "/admin/song/add", `{"songs":[{"name":"A","url":"u1"}]}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "singer name is required", decode(t, w)["error"])
}

func multipartBody(t *testing.T, fields map[string][]string, fileField, fileName string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)
	for k, values := range fields {
		for _, v := range values {
			require.NoError(t, mw.WriteField(k, v))
		}
	}
	if fileField != "" {
		fw, err := mw.CreateFormFile(fileField, fileName)
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return buf, mw.FormDataContentType()
}

func TestAddSongsMultipartUpload(t *testing.T) {
	importer := &stubImporter{}
	r := setupRouter(t, &stubCatalog{}, importer, &stubMedia{})

	body, contentType := multipartBody(t, map[string][]string{
		"name":     {"Local Song"},
		"singer":   {"Someone"},
		"playlist": {"Chill", "Focus"},
	}, "file", "my song.mp3", []byte("ID3audio"))

	req := httptest.NewRequest(http.MethodPost, "/admin/song/add", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Len(t, importer.got, 1)
	d := importer.got[0]
	assert.Equal(t, "Local Song", d.Name)
	assert.Equal(t, dto.NameList{"Chill", "Focus"}, d.Playlists)
	assert.Regexp(t, `\d+-my_song\.mp3$`, d.LocalFile)
}

func TestAddSongsMultipartRejectsBadFile(t *testing.T) {
	importer := &stubImporter{}
	r := setupRouter(t, &stubCatalog{}, importer, &stubMedia{})

	body, contentType := multipartBody(t, map[string][]string{"name": {"A"}, "singer": {"B"}}, "file", "run.exe", []byte("MZ"))
	req := httptest.NewRequest(http.MethodPost, "/admin/song/add", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Nil(t, importer.got)
}

func TestCreateSingerRequiresPicture(t *testing.T) {
	catalog := &stubCatalog{}
	r := setupRouter(t, catalog, &stubImporter{}, &stubMedia{})

	body, contentType := multipartBody(t, map[string][]string{"name": {"Shreya"}}, "", "", nil)
	req := httptest.NewRequest(http.MethodPost, "/admin/singer", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "picture file is required", decode(t, w)["error"])
}

func TestCreateSingerWithPicture(t *testing.T) {
	catalog := &stubCatalog{}
	r := setupRouter(t, catalog, &stubImporter{}, &stubMedia{})

	body, contentType := multipartBody(t, map[string][]string{"name": {"Shreya"}, "bio": {"Playback singer"}}, "picture", "face.png", []byte("png"))
	req := httptest.NewRequest(http.MethodPost, "/admin/singer", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Shreya", catalog.singerName)
	assert.NotEmpty(t, catalog.singerPic)
	assert.Equal(t, "Singer added", decode(t, w)["message"])
}

func TestCreatePlaylistJSON(t *testing.T) {
	catalog := &stubCatalog{}
	r := setupRouter(t, catalog, &stubImporter{}, &stubMedia{})

	w := doJSON(r, http.MethodPost, "/admin/playlist", `{"name":"Road Trip","songs":["One","Two"]}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"One", "Two"}, catalog.playlistReq.Songs)
	assert.Empty(t, catalog.playlistFile)
}

func TestValidateRequestRejectsPlainText(t *testing.T) {
	r := setupRouter(t, &stubCatalog{}, &stubImporter{}, &stubMedia{})

	req := httptest.NewRequest(http.MethodPost, "/admin/playlist", strings.NewReader("name=x"))
	req.Header.Set("Content-Type", "text/plain")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
}

func TestStreamMedia(t *testing.T) {
	media := &stubMedia{objects: map[string][]byte{"audio/audio/a.mp3": []byte("0123456789")}}
	r := setupRouter(t, &stubCatalog{}, &stubImporter{}, media)

	t.Run("full object", func(t *testing.T) {
		w := doJSON(r, http.MethodGet, "/media/audio/audio/a.mp3", "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "0123456789", w.Body.String())
		assert.Equal(t, "bytes", w.Header().Get("Accept-Ranges"))
	})

	t.Run("range", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/media/audio/audio/a.mp3", nil)
		req.Header.Set("Range", "bytes=2-5")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusPartialContent, w.Code)
		assert.Equal(t, "2345", w.Body.String())
		assert.Equal(t, "bytes 2-5/10", w.Header().Get("Content-Range"))
	})

	t.Run("unsatisfiable range", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/media/audio/audio/a.mp3", nil)
		req.Header.Set("Range", "bytes=20-")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusRequestedRangeNotSatisfiable, w.Code)
	})

	t.Run("missing", func(t *testing.T) {
		w := doJSON(r, http.MethodGet, "/media/audio/audio/nope.mp3", "")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("head", func(t *testing.T) {
		w := doJSON(r, http.MethodHead, "/media/audio/audio/a.mp3", "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "10", w.Header().Get("Content-Length"))
	})
}

func TestParseRange(t *testing.T) {
	tests := []struct {
		header     string
		start, end int64
		ok         bool
	}{
		{"bytes=0-", 0, 99, true},
		{"bytes=10-19", 10, 19, true},
		{"bytes=90-200", 90, 99, true},
		{"bytes=-10", 90, 99, true},
		{"bytes=100-", 0, 0, false},
		{"bytes=5-2", 0, 0, false},
		{"bytes=0-1,5-6", 0, 0, false},
		{"items=0-1", 0, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			start, end, err := parseRange(tt.header, 100)
			if !tt.ok {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.start, start)
			assert.Equal(t, tt.end, end)
		})
	}
}

func TestHealth(t *testing.T) {
	r := setupRouter(t, &stubCatalog{}, &stubImporter{}, &stubMedia{})

	w := doJSON(r, http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode(t, w)["status"])
}

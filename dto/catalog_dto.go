package dto

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/annazecevic/catalog-service/domain"
)

// NameList accepts either a single string or an array of strings.
type NameList []string

func (n *NameList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*n = nil
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if strings.TrimSpace(s) == "" {
			*n = nil
			return nil
		}
		*n = NameList{s}
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("playlist must be a string or an array of strings: %w", err)
	}
	*n = list
	return nil
}

// SongDescriptor is one incoming song record of an import batch.
type SongDescriptor struct {
	Name      string   `json:"name"`
	Singer    string   `json:"singer"`
	Language  string   `json:"language,omitempty"`
	Playlists NameList `json:"playlist,omitempty"`
	URL       string   `json:"url,omitempty"`
	Artwork   string   `json:"artwork,omitempty"`

	// LocalFile is the path of an uploaded temporary file. It never comes
	// from a JSON body.
	LocalFile string `json:"-"`
}

// UnmarshalJSON also accepts "title" for name and "artist" for singer.
func (d *SongDescriptor) UnmarshalJSON(data []byte) error {
	var raw struct {
		Name      string   `json:"name"`
		Title     string   `json:"title"`
		Singer    string   `json:"singer"`
		Artist    string   `json:"artist"`
		Language  string   `json:"language"`
		Playlists NameList `json:"playlist"`
		URL       string   `json:"url"`
		Artwork   string   `json:"artwork"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*d = SongDescriptor{
		Name:      firstNonEmpty(raw.Name, raw.Title),
		Singer:    firstNonEmpty(raw.Singer, raw.Artist),
		Language:  raw.Language,
		Playlists: raw.Playlists,
		URL:       raw.URL,
		Artwork:   raw.Artwork,
	}
	return nil
}

// ImportBatchRequest accepts either a bare array of descriptors or an object
// with a "songs" array.
type ImportBatchRequest struct {
	Songs []SongDescriptor `json:"songs"`
}

func (r *ImportBatchRequest) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		return json.Unmarshal(data, &r.Songs)
	}
	var wrapped struct {
		Songs []SongDescriptor `json:"songs"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return err
	}
	r.Songs = wrapped.Songs
	return nil
}

type ImportFailure struct {
	Index   int    `json:"index"`
	Name    string `json:"name"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ImportResponse struct {
	Message       string          `json:"message"`
	BatchID       string          `json:"batchId"`
	ImportedCount int             `json:"importedCount"`
	ImportedSongs []*domain.Song  `json:"importedSongs"`
	Failures      []ImportFailure `json:"failures,omitempty"`
}

type PlayResponse struct {
	Message   string `json:"message"`
	PlayCount int64  `json:"playCount"`
	ShowAd    bool   `json:"showAd"`
}

type UpdateSongRequest struct {
	FileLink string `json:"fileLink" binding:"required"`
}

type CreatePlaylistRequest struct {
	Name        string   `json:"name" form:"name"`
	Description string   `json:"description" form:"description"`
	Songs       []string `json:"songs" form:"songs"` // song names
	CreatedBy   string   `json:"createdBy" form:"createdBy"`
}

type UpdatePlaylistRequest struct {
	Name        *string  `json:"name"`
	Description *string  `json:"description"`
	Songs       []string `json:"songs"` // song ids, replaces membership
}

type UpdateSingerRequest struct {
	Name *string `json:"name" form:"name"`
	Bio  *string `json:"bio" form:"bio"`
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

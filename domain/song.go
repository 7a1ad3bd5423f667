package domain

type Song struct {
	ID         string `bson:"id" json:"id"`
	Name       string `bson:"name" json:"name"`
	SingerID   string `bson:"singer" json:"singer"`
	Language   string `bson:"language,omitempty" json:"language,omitempty"`
	FileLink   string `bson:"file_link" json:"fileLink"`                   // durable audio URL
	Artwork    string `bson:"artwork,omitempty" json:"artwork,omitempty"` // blob URL
	URL        string `bson:"url,omitempty" json:"url,omitempty"`         // external source, part of the dedup key
	Rating     int    `bson:"rating" json:"rating"`
	PlaylistID string `bson:"playlist,omitempty" json:"playlist,omitempty"` // primary playlist
	PlayCount  int64  `bson:"play_count" json:"playCount"`
}

// SongDetails is a Song with its singer and primary playlist expanded.
type SongDetails struct {
	Song
	Singer   *Singer   `json:"singerDetails,omitempty"`
	Playlist *Playlist `json:"playlistDetails,omitempty"`
}

// PlaylistDetails is a Playlist with its member songs expanded, in membership order.
type PlaylistDetails struct {
	Playlist
	SongDetails []*Song `json:"songDetails"`
}

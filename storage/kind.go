package storage

import "fmt"

// ResourceKind classifies stored objects. Audio and images live under
// different key roots and are deleted by kind.
type ResourceKind int

const (
	ResourceImage ResourceKind = iota
	ResourceAudio
)

func (k ResourceKind) String() string {
	switch k {
	case ResourceImage:
		return "image"
	case ResourceAudio:
		return "audio"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseResourceKind is the inverse of String.
func ParseResourceKind(s string) (ResourceKind, error) {
	switch s {
	case "image":
		return ResourceImage, nil
	case "audio":
		return ResourceAudio, nil
	default:
		return 0, fmt.Errorf("unknown resource kind %q", s)
	}
}

// Category is the logical grouping an object is uploaded under.
type Category string

const (
	CategoryArtwork   Category = "artwork"
	CategorySingers   Category = "singers"
	CategoryPlaylists Category = "playlists"
	CategoryAudio     Category = "audio"
	CategoryDefault   Category = "default"
)

// Kind returns the resource kind objects of this category are stored as.
func (c Category) Kind() ResourceKind {
	if c == CategoryAudio {
		return ResourceAudio
	}
	return ResourceImage
}

func (c Category) valid() bool {
	switch c {
	case CategoryArtwork, CategorySingers, CategoryPlaylists, CategoryAudio, CategoryDefault:
		return true
	}
	return false
}

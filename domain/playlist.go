package domain

import "time"

type Playlist struct {
	ID          string    `bson:"id" json:"id"`
	Name        string    `bson:"name" json:"name"`
	Description string    `bson:"description,omitempty" json:"description,omitempty"`
	CoverImage  string    `bson:"cover_image,omitempty" json:"coverImage,omitempty"` // blob URL
	Songs       []string  `bson:"songs" json:"songs"`                                // song ids, no duplicates
	CreatedBy   string    `bson:"created_by,omitempty" json:"createdBy,omitempty"`
	CreatedAt   time.Time `bson:"created_at" json:"createdAt"`
}

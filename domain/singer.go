package domain

type Singer struct {
	ID      string `bson:"id" json:"id"`
	Name    string `bson:"name" json:"name"`
	Bio     string `bson:"bio,omitempty" json:"bio,omitempty"`
	Picture string `bson:"picture,omitempty" json:"picture,omitempty"` // blob URL
}

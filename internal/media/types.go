package media

import "time"

// Category classifies an uploadable asset by its MIME type.
type Category string

const (
	CategoryImage    Category = "image"
	CategoryVideo    Category = "video"
	CategoryDocument Category = "document"
)

// Categories lists every category in lookup order.
var Categories = []Category{CategoryImage, CategoryVideo, CategoryDocument}

// Descriptor is what a seller's client declares about a file before uploading it.
// Size is optional; zero means unknown.
type Descriptor struct {
	Name     string `json:"name"`
	MimeType string `json:"type"`
	Size     int64  `json:"size,omitempty"`
}

// StoredObject references an object written to blob storage through an upload ticket.
// Key is internal: it is never part of anything shown to a buyer.
type StoredObject struct {
	Key          string    `json:"key"`
	Category     Category  `json:"category"`
	OriginalName string    `json:"original_name"`
	UploadedAt   time.Time `json:"uploaded_at"`
}

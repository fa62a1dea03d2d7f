// Package media holds the asset vocabulary shared by upload and delivery: MIME
// allow-lists, storage-path rules and object-key generation.
package media

import (
	"strings"
	"sync"
)

// DefaultAllowedTypes is the MIME allow-list per category.
var DefaultAllowedTypes = map[Category][]string{
	CategoryImage: {"image/jpeg", "image/jpg", "image/png", "image/gif", "image/webp", "image/svg+xml"},
	CategoryVideo: {"video/mp4", "video/mpeg", "video/quicktime", "video/x-msvideo", "video/webm"},
	CategoryDocument: {
		"application/pdf",
		"application/msword",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		"application/vnd.ms-excel",
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		"text/plain",
	},
}

// DefaultMaxSizes caps declared sizes per category, in bytes.
var DefaultMaxSizes = map[Category]int64{
	CategoryImage:    5 << 20,
	CategoryVideo:    100 << 20,
	CategoryDocument: 20 << 20,
}

// Classifier maps MIME types to categories. Lookups are memoised; the cache is
// safe for concurrent use and duplicate population is harmless because the
// mapping is fixed at construction.
type Classifier struct {
	allowed map[Category][]string
	cache   sync.Map // mime -> Category ("" for unsupported)
}

// NewClassifier builds a classifier over allowed. A nil map selects DefaultAllowedTypes.
func NewClassifier(allowed map[Category][]string) *Classifier {
	if allowed == nil {
		allowed = DefaultAllowedTypes
	}
	copied := make(map[Category][]string, len(allowed))
	for category, types := range allowed {
		copied[category] = append([]string(nil), types...)
	}
	return &Classifier{allowed: copied}
}

// Category returns the category of mimeType, or false when it is not allowed.
func (c *Classifier) Category(mimeType string) (Category, bool) {
	if v, ok := c.cache.Load(mimeType); ok {
		category := v.(Category)
		return category, category != ""
	}
	var found Category
	for _, category := range Categories {
		if contains(c.allowed[category], mimeType) {
			found = category
			break
		}
	}
	c.cache.Store(mimeType, found)
	return found, found != ""
}

// AllowedTypes returns every allowed MIME type in category order, without duplicates.
func (c *Classifier) AllowedTypes() []string {
	seen := make(map[string]struct{})
	out := make([]string, 0, 16)
	for _, category := range Categories {
		for _, t := range c.allowed[category] {
			if _, dup := seen[t]; dup {
				continue
			}
			seen[t] = struct{}{}
			out = append(out, t)
		}
	}
	return out
}

// AllowedList is AllowedTypes joined for error messages.
func (c *Classifier) AllowedList() string {
	return strings.Join(c.AllowedTypes(), ", ")
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}

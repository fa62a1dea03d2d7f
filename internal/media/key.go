package media

import (
	"errors"
	"strings"

	"github.com/google/uuid"
)

// MaxFileNameLength bounds the sanitised name embedded in object keys.
const MaxFileNameLength = 255

var (
	ErrStoragePathRequired  = errors.New("valid storagePath is required")
	ErrStoragePathTraversal = errors.New("invalid storagePath format")
	ErrStoragePathRoot      = errors.New("storagePath root is not allowed")
)

// ValidateStoragePath rejects empty paths, parent references and absolute paths.
// When roots is non-empty the first path segment must be one of them.
func ValidateStoragePath(storagePath string, roots []string) error {
	if strings.TrimSpace(storagePath) == "" {
		return ErrStoragePathRequired
	}
	if strings.Contains(storagePath, "..") || strings.HasPrefix(storagePath, "/") || strings.HasPrefix(storagePath, "\\") {
		return ErrStoragePathTraversal
	}
	if len(roots) == 0 {
		return nil
	}
	root, _, _ := strings.Cut(storagePath, "/")
	for _, allowed := range roots {
		if root == allowed {
			return nil
		}
	}
	return ErrStoragePathRoot
}

// SanitizeFilename drops any directory part, replaces characters outside
// [A-Za-z0-9._-] with '_', collapses dot runs so the result never holds "..",
// and truncates to MaxFileNameLength.
func SanitizeFilename(name string) string {
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		if isSafeRune(r) {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	out := b.String()
	for strings.Contains(out, "..") {
		out = strings.ReplaceAll(out, "..", ".")
	}
	if out == "" || out == "." {
		out = "file"
	}
	if len(out) > MaxFileNameLength {
		out = out[:MaxFileNameLength]
	}
	return out
}

// NewObjectKey returns "<storagePath>/<uuid>-<sanitizedName>". The UUID makes
// every key unique even for identical names.
func NewObjectKey(storagePath, name string) string {
	return strings.TrimRight(storagePath, "/") + "/" + uuid.NewString() + "-" + SanitizeFilename(name)
}

func isSafeRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '.', r == '_', r == '-':
		return true
	}
	return false
}

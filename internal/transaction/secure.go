// Package transaction attaches buyer-visible asset data to a transaction at the
// moment it is initiated.
package transaction

// FileRef is the file half of a listing asset entry: a stored object for
// images and documents, a video asset for videos.
type FileRef struct {
	URL  string `json:"url,omitempty"`
	Key  string `json:"key,omitempty"`
	Size int64  `json:"size,omitempty"`
	Type string `json:"type,omitempty"`

	AssetID    string `json:"asset_id,omitempty"`
	PlaybackID string `json:"playback_id,omitempty"`
	UploadID   string `json:"upload_id,omitempty"`
}

// AssetEntry is one item of a listing's private asset list.
type AssetEntry struct {
	Name string   `json:"name"`
	Type string   `json:"type"`
	File *FileRef `json:"file"`
}

// SecuredAsset is the redacted entry a buyer sees. It never carries an object
// key or an upload or asset identifier.
type SecuredAsset struct {
	URL        string `json:"url,omitempty"`
	PlaybackID string `json:"playback_id,omitempty"`
	Name       string `json:"name"`
	Type       string `json:"type"`
}

// Project redacts entries into a new list.
func Project(entries []AssetEntry) []SecuredAsset {
	out := make([]SecuredAsset, 0, len(entries))
	for _, entry := range entries {
		secured := SecuredAsset{Name: entry.Name, Type: entry.Type}
		if entry.File != nil {
			secured.URL = entry.File.URL
			secured.PlaybackID = entry.File.PlaybackID
		}
		out = append(out, secured)
	}
	return out
}

// Secure returns the list to attach to a transaction, or nil when nothing may be
// attached: speculative initiations and listings without assets.
func Secure(entries []AssetEntry, speculative bool) []SecuredAsset {
	if speculative || len(entries) == 0 {
		return nil
	}
	return Project(entries)
}

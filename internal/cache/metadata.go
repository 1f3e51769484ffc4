package cache

import "time"

// EntryMetadata describes a cached entity independent of its bytes.
type EntryMetadata struct {
	// ContentType is the MIME type of the cached payload, if known.
	ContentType string
	// HasContentType distinguishes an empty content type from one that was
	// never set, since "" is a valid (if unusual) content type string.
	HasContentType bool
	// CreatedAt is when the entry was produced.
	CreatedAt time.Time
	// ContentLength is the size of the payload in bytes, or -1 if unknown.
	ContentLength int64
}

// NewEntryMetadata builds metadata with an explicit content type.
func NewEntryMetadata(contentType string, createdAt time.Time, contentLength int64) EntryMetadata {
	return EntryMetadata{
		ContentType:    contentType,
		HasContentType: true,
		CreatedAt:      createdAt,
		ContentLength:  contentLength,
	}
}

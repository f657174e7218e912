// Package meta holds the object index record shared by the object package
// and the access gate, so the gate can describe records without importing
// the object package itself.
package meta

import (
	"encoding/json"
	"errors"
	"time"
)

// Record is the index entry for a stored object. Filename is the external
// lookup key; StoragePath is the internal storage key and is never returned
// to API callers. IsPublic and ProjectID are resolved from the owning bucket.
type Record struct {
	ID          string          `json:"id"`
	BucketID    string          `json:"-"`
	Filename    string          `json:"filename"`
	StoragePath string          `json:"-"`
	MimeType    string          `json:"mimeType"`
	Size        int64           `json:"size"`
	ContentHash string          `json:"contentHash"`
	OptimizedAt *time.Time      `json:"optimizedAt,omitempty"`
	Thumbnails  json.RawMessage `json:"thumbnails,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`

	IsPublic   bool   `json:"-"`
	ProjectID  string `json:"-"`
	BucketName string `json:"-"`
}

// ErrNotFound is returned when an object does not exist. Cross-tenant
// lookups fail with the same error so callers cannot probe for existence.
var ErrNotFound = errors.New("object not found")

package blobstore

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const blobKeyPrefix = "photos"

// NewBlobID returns a random 32-character hex blob id.
func NewBlobID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// ValidBlobID reports whether id looks like an id produced by NewBlobID.
func ValidBlobID(id string) bool {
	if len(id) != 32 {
		return false
	}
	for i := 0; i < len(id); i++ {
		c := id[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// keyFromID fans blobs out over two directory levels.
func keyFromID(id string) (string, error) {
	if !ValidBlobID(id) {
		return "", fmt.Errorf("invalid blob id %q", id)
	}
	return fmt.Sprintf("%s/%s/%s/%s", blobKeyPrefix, id[0:2], id[2:4], id), nil
}

// idFromKey is the inverse of keyFromID; ok is false for foreign keys.
func idFromKey(key string) (string, bool) {
	parts := strings.Split(strings.Trim(key, "/"), "/")
	if len(parts) != 4 || parts[0] != blobKeyPrefix {
		return "", false
	}
	id := parts[3]
	if !ValidBlobID(id) || parts[1] != id[0:2] || parts[2] != id[2:4] {
		return "", false
	}
	return id, true
}

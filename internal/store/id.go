package store

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const idMaxAttempts = 5

// GenerateStoryID returns a new 32-character hex story id.
// It retries on collisions using the provided exists function.
func GenerateStoryID(exists func(string) (bool, error)) (string, error) {
	for i := 0; i < idMaxAttempts; i++ {
		id := strings.ReplaceAll(uuid.NewString(), "-", "")
		if exists == nil {
			return id, nil
		}
		ok, err := exists(id)
		if err != nil {
			return "", err
		}
		if !ok {
			return id, nil
		}
	}

	return "", fmt.Errorf("unable to generate unique id")
}

// ValidStoryID reports whether id is a plausible story id. Ids are opaque to
// callers but are restricted to a URL- and path-safe alphabet.
func ValidStoryID(id string) bool {
	if id == "" || len(id) > 64 {
		return false
	}
	for _, r := range id {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '-', r == '_':
		default:
			return false
		}
	}
	return true
}

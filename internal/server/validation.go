package server

import (
	"github.com/dae9999nam/Memory-Garden/internal/blobstore"
	"github.com/dae9999nam/Memory-Garden/internal/store"
)

func validateID(id string) bool {
	return store.ValidStoryID(id)
}

func validatePhotoID(id string) bool {
	return blobstore.ValidBlobID(id)
}

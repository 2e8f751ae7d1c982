package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dae9999nam/Memory-Garden/internal/api"
)

// openUploads opens every photo path for streaming. The returned closer must
// be called once the request finishes.
func openUploads(paths []string) ([]api.UploadFile, func() error, error) {
	files := make([]*os.File, 0, len(paths))
	closeAll := func() error {
		var errs []error
		for _, f := range files {
			errs = append(errs, f.Close())
		}
		return errors.Join(errs...)
	}

	uploads := make([]api.UploadFile, 0, len(paths))
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			_ = closeAll()
			return nil, nil, fmt.Errorf("open photo: %w", err)
		}
		files = append(files, f)
		uploads = append(uploads, api.UploadFile{Name: filepath.Base(path), Content: f})
	}
	return uploads, closeAll, nil
}

package store

import (
	"context"
	"errors"

	"github.com/dae9999nam/Memory-Garden/internal/models"
)

var (
	// ErrNotFound is returned by UpdateStory when the story does not exist.
	ErrNotFound = errors.New("story not found")
	// ErrConflict is returned by InsertStory when the id is already taken.
	ErrConflict = errors.New("story already exists")
)

// RecordStore abstracts story record storage backends. GetStory returns
// (nil, nil) for a missing story; DeleteStory of a missing story succeeds.
type RecordStore interface {
	InsertStory(ctx context.Context, record *models.StoryRecord) error
	GetStory(ctx context.Context, id string) (*models.StoryRecord, error)
	UpdateStory(ctx context.Context, record *models.StoryRecord) error
	DeleteStory(ctx context.Context, id string) error
	ListStories(ctx context.Context, limit, offset int) ([]models.StoryRecord, error)
	ListReferencedBlobIDs(ctx context.Context) (map[string]struct{}, error)
}

var (
	_ RecordStore = (*Store)(nil)
	_ RecordStore = (*MongoStore)(nil)
)

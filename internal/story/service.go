package story

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dae9999nam/Memory-Garden/internal/blobstore"
	"github.com/dae9999nam/Memory-Garden/internal/models"
	"github.com/dae9999nam/Memory-Garden/internal/store"
)

const (
	DefaultMaxPhotos     = 10
	DefaultMaxPhotoBytes = 10 << 20
	DefaultGracePeriod   = time.Hour

	defaultListLimit = 50
	maxListLimit     = 500
)

// ServiceOptions bounds what the service accepts. Zero values select defaults.
type ServiceOptions struct {
	MaxPhotos     int
	MaxPhotoBytes int64
	// GracePeriod protects freshly written blobs from the orphan sweep while
	// a saga that owns them may still be running.
	GracePeriod time.Duration
}

// Service is the public surface of the story core.
type Service struct {
	coord *Coordinator

	maxPhotos     int
	maxPhotoBytes int64
	gracePeriod   time.Duration
}

// PhotoContent is an open photo stream and the reference it was read through.
type PhotoContent struct {
	Reader io.ReadCloser
	Ref    models.PhotoBlobRef
}

// NewService constructs a Service around a coordinator.
func NewService(coord *Coordinator, opts ServiceOptions) *Service {
	s := &Service{
		coord:         coord,
		maxPhotos:     opts.MaxPhotos,
		maxPhotoBytes: opts.MaxPhotoBytes,
		gracePeriod:   opts.GracePeriod,
	}
	if s.maxPhotos <= 0 {
		s.maxPhotos = DefaultMaxPhotos
	}
	if s.maxPhotoBytes <= 0 {
		s.maxPhotoBytes = DefaultMaxPhotoBytes
	}
	if s.gracePeriod <= 0 {
		s.gracePeriod = DefaultGracePeriod
	}
	return s
}

// MaxPhotos reports the per-call photo limit.
func (s *Service) MaxPhotos() int { return s.maxPhotos }

// MaxPhotoBytes reports the per-photo size limit.
func (s *Service) MaxPhotoBytes() int64 { return s.maxPhotoBytes }

// GracePeriod reports the default orphan sweep age.
func (s *Service) GracePeriod() time.Duration { return s.gracePeriod }

func (s *Service) validatePayloads(op string, payloads []Payload) error {
	if len(payloads) == 0 {
		return validationError(op, "at least one photo is required")
	}
	if len(payloads) > s.maxPhotos {
		return validationError(op, "at most %d photos are allowed, got %d", s.maxPhotos, len(payloads))
	}
	for i, p := range payloads {
		name := strings.TrimSpace(p.Name)
		if name == "" {
			name = fmt.Sprintf("#%d", i+1)
		}
		if len(p.Data) == 0 {
			return validationError(op, "photo %s is empty", name)
		}
		if int64(len(p.Data)) > s.maxPhotoBytes {
			return validationError(op, "photo %s exceeds %d bytes", name, s.maxPhotoBytes)
		}
	}
	return nil
}

// Create stores a new story.
func (s *Service) Create(ctx context.Context, sc models.StoryContext, payloads []Payload) (models.StoryRecord, error) {
	if missing := sc.Normalized().MissingFields(); len(missing) > 0 {
		return models.StoryRecord{}, validationError(opCreate, "missing required context: %s", strings.Join(missing, ", "))
	}
	if err := s.validatePayloads(opCreate, payloads); err != nil {
		return models.StoryRecord{}, err
	}
	return s.coord.Create(ctx, sc, payloads)
}

// ReplacePhotos swaps a story's photo set. overrides may be nil.
func (s *Service) ReplacePhotos(ctx context.Context, id string, overrides *models.StoryContextPatch, payloads []Payload) (models.StoryRecord, error) {
	if !store.ValidStoryID(id) {
		return models.StoryRecord{}, notFoundError(opReplace, id)
	}
	if err := s.validatePayloads(opReplace, payloads); err != nil {
		return models.StoryRecord{}, err
	}
	return s.coord.ReplacePhotos(ctx, id, overrides, payloads)
}

// Get returns one story.
func (s *Service) Get(ctx context.Context, id string) (models.StoryRecord, error) {
	return s.load(ctx, "get story", id)
}

func (s *Service) load(ctx context.Context, op, id string) (models.StoryRecord, error) {
	if err := s.coord.configured(); err != nil {
		return models.StoryRecord{}, storeError(op, err)
	}
	if !store.ValidStoryID(id) {
		return models.StoryRecord{}, notFoundError(op, id)
	}
	record, err := s.coord.records.GetStory(ctx, id)
	if err != nil {
		return models.StoryRecord{}, storeError(op, err)
	}
	if record == nil {
		return models.StoryRecord{}, notFoundError(op, id)
	}
	return *record, nil
}

// List returns stories newest first.
func (s *Service) List(ctx context.Context, limit, offset int) ([]models.StoryRecord, error) {
	const op = "list stories"
	if err := s.coord.configured(); err != nil {
		return nil, storeError(op, err)
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		return nil, validationError(op, "limit must be at most %d", maxListLimit)
	}
	if offset < 0 {
		return nil, validationError(op, "offset must be non-negative")
	}
	records, err := s.coord.records.ListStories(ctx, limit, offset)
	if err != nil {
		return nil, storeError(op, err)
	}
	return records, nil
}

// GetPhotoBytes opens the stored bytes of one photo. The caller closes
// the reader.
func (s *Service) GetPhotoBytes(ctx context.Context, id, photoID string) (*PhotoContent, error) {
	const op = "get photo"
	record, err := s.load(ctx, op, id)
	if err != nil {
		return nil, err
	}
	ref, ok := record.Photo(photoID)
	if !ok {
		return nil, photoNotFoundError(op, id, photoID)
	}
	rc, err := s.coord.blobs.Open(ctx, ref.BlobID)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return nil, photoNotFoundError(op, id, photoID)
		}
		return nil, storeError(op, err)
	}
	return &PhotoContent{Reader: rc, Ref: ref}, nil
}

// DeleteTargeted removes the selected part of a story.
func (s *Service) DeleteTargeted(ctx context.Context, id string, target models.DeleteTarget) error {
	if !store.ValidStoryID(id) {
		return notFoundError(opDelete, id)
	}
	return s.coord.DeleteTargeted(ctx, id, target)
}

package story

import (
	"context"
	"strings"
	"time"

	"github.com/dae9999nam/Memory-Garden/internal/models"
	"github.com/dae9999nam/Memory-Garden/internal/store"
)

const opCreate = "create story"

// createState is the last completed step of a create saga.
type createState int

const (
	createEmpty createState = iota
	createBlobsStored
	createNarrativeReady
	createCommitted
	createRolledBack
)

func (s createState) String() string {
	switch s {
	case createEmpty:
		return "empty"
	case createBlobsStored:
		return "blobs_stored"
	case createNarrativeReady:
		return "narrative_ready"
	case createCommitted:
		return "committed"
	case createRolledBack:
		return "rolled_back"
	default:
		return "unknown"
	}
}

type createSaga struct {
	c       *Coordinator
	storyID string
	state   createState
	written []models.PhotoBlobRef
}

// createCompensations maps the state a create failed in to its undo step.
// Blob writes that fail part way leave the saga in createEmpty with some
// blobs already written, so that state also deletes what was written.
var createCompensations = map[createState]func(*createSaga, context.Context){
	createEmpty:          (*createSaga).deleteWritten,
	createBlobsStored:    (*createSaga).deleteWritten,
	createNarrativeReady: (*createSaga).deleteWritten,
}

func (s *createSaga) deleteWritten(ctx context.Context) {
	s.c.compensateBlobs(ctx, "create", s.storyID, s.written)
}

// Create validates the context, stores the photos, generates the narrative
// and inserts the record. On any failure every blob written by this call is
// deleted and no record exists.
func (c *Coordinator) Create(ctx context.Context, sc models.StoryContext, payloads []Payload) (record models.StoryRecord, err error) {
	if err := c.configured(); err != nil {
		return record, storeError(opCreate, err)
	}
	sc = sc.Normalized()
	if missing := sc.MissingFields(); len(missing) > 0 {
		return record, validationError(opCreate, "missing required context: %s", strings.Join(missing, ", "))
	}
	if len(payloads) == 0 {
		return record, validationError(opCreate, "at least one photo is required")
	}

	storyID, err := store.GenerateStoryID(func(id string) (bool, error) {
		existing, err := c.records.GetStory(ctx, id)
		return existing != nil, err
	})
	if err != nil {
		return record, storeError(opCreate, err)
	}

	saga := &createSaga{c: c, storyID: storyID}
	start := time.Now()
	defer func() {
		if err != nil {
			if undo := createCompensations[saga.state]; undo != nil {
				undo(saga, ctx)
			}
			c.logger.Info("create rolled back", "story_id", storyID, "failed_in", saga.state.String(), "error", err)
			saga.state = createRolledBack
		}
		c.metrics.SagaFinished("create", saga.state.String(), time.Since(start))
	}()

	saga.written, err = c.storeBlobs(ctx, payloads)
	if err != nil {
		return record, storeError(opCreate, err)
	}
	saga.state = createBlobsStored

	prompt, text, err := c.generate(ctx, sc, payloads)
	if err != nil {
		return record, upstreamError(opCreate, err)
	}
	saga.state = createNarrativeReady

	now := c.timestamp()
	record = models.StoryRecord{
		ID:            storyID,
		Context:       sc,
		Prompt:        prompt,
		NarrativeText: &text,
		Photos:        saga.written,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err = c.records.InsertStory(ctx, &record); err != nil {
		return models.StoryRecord{}, storeError(opCreate, err)
	}
	saga.state = createCommitted

	c.logger.Debug("story created", "story_id", storyID, "photos", len(record.Photos))
	return record, nil
}

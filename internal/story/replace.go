package story

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dae9999nam/Memory-Garden/internal/models"
	"github.com/dae9999nam/Memory-Garden/internal/store"
)

const opReplace = "replace story photos"

// replaceState is the last completed step of a replace saga.
type replaceState int

const (
	replacePending replaceState = iota
	replaceLoaded
	replaceNewBlobsStored
	replaceNarrativeRegenerated
	replaceSwapped
	replaceRolledBack
)

func (s replaceState) String() string {
	switch s {
	case replacePending:
		return "pending"
	case replaceLoaded:
		return "loaded"
	case replaceNewBlobsStored:
		return "new_blobs_stored"
	case replaceNarrativeRegenerated:
		return "narrative_regenerated"
	case replaceSwapped:
		return "swapped"
	case replaceRolledBack:
		return "rolled_back"
	default:
		return "unknown"
	}
}

type replaceSaga struct {
	c        *Coordinator
	storyID  string
	state    replaceState
	previous models.StoryRecord
	written  []models.PhotoBlobRef
}

// replaceCompensations maps the state a replace failed in to its undo step.
// Until the narrative is regenerated only new blobs are touched. After that
// the old blobs are gone, so a failed final write cannot be undone and is
// reported instead.
var replaceCompensations = map[replaceState]func(*replaceSaga, context.Context){
	replaceLoaded:               (*replaceSaga).deleteNewBlobs,
	replaceNewBlobsStored:       (*replaceSaga).deleteNewBlobs,
	replaceNarrativeRegenerated: (*replaceSaga).reportSwapFailure,
}

func (s *replaceSaga) deleteNewBlobs(ctx context.Context) {
	s.c.compensateBlobs(ctx, "replace", s.storyID, s.written)
}

func (s *replaceSaga) reportSwapFailure(context.Context) {
	s.c.metrics.SwapFailed()
	s.c.logger.Error("replace final write failed; story references deleted blobs",
		"story_id", s.storyID,
		"deleted_blob_ids", blobIDs(s.previous.Photos),
		"orphaned_blob_ids", blobIDs(s.written),
	)
}

// ReplacePhotos swaps the whole photo set of a story and regenerates its
// narrative. overrides may be nil. Failures before the narrative succeeds
// leave the stored story untouched.
func (c *Coordinator) ReplacePhotos(ctx context.Context, id string, overrides *models.StoryContextPatch, payloads []Payload) (record models.StoryRecord, err error) {
	if err := c.configured(); err != nil {
		return record, storeError(opReplace, err)
	}
	if len(payloads) == 0 {
		return record, validationError(opReplace, "at least one photo is required")
	}

	saga := &replaceSaga{c: c, storyID: id}
	start := time.Now()
	defer func() {
		if err != nil {
			if undo := replaceCompensations[saga.state]; undo != nil {
				undo(saga, ctx)
			}
			if saga.state != replacePending {
				c.logger.Info("replace rolled back", "story_id", id, "failed_in", saga.state.String(), "error", err)
			}
			saga.state = replaceRolledBack
		}
		c.metrics.SagaFinished("replace", saga.state.String(), time.Since(start))
	}()

	existing, err := c.records.GetStory(ctx, id)
	if err != nil {
		return record, storeError(opReplace, err)
	}
	if existing == nil {
		return record, notFoundError(opReplace, id)
	}
	merged := overrides.Apply(existing.Context)
	if missing := merged.MissingFields(); len(missing) > 0 {
		return record, validationError(opReplace, "missing required context: %s", strings.Join(missing, ", "))
	}
	saga.previous = existing.Clone()
	saga.state = replaceLoaded

	saga.written, err = c.storeBlobs(ctx, payloads)
	if err != nil {
		return record, storeError(opReplace, err)
	}
	saga.state = replaceNewBlobsStored

	prompt, text, err := c.generate(ctx, merged, payloads)
	if err != nil {
		return record, upstreamError(opReplace, err)
	}
	saga.state = replaceNarrativeRegenerated

	// Past this point the caller's cancellation is ignored. Old blobs go
	// first; a failed delete only leaves an unreferenced blob behind for the
	// orphan sweep, so it does not stop the swap.
	cctx := context.WithoutCancel(ctx)
	dctx, cancel := context.WithTimeout(cctx, c.compensationTimeout)
	err = c.deleteBlobs(dctx, saga.previous.Photos)
	cancel()
	if err != nil {
		c.logger.Warn("replace could not delete old blob", "story_id", id, "error", err)
	}

	updated := saga.previous.Clone()
	updated.Context = merged
	updated.Prompt = prompt
	updated.NarrativeText = &text
	updated.Photos = saga.written
	updated.UpdatedAt = c.timestamp()
	if err = c.records.UpdateStory(cctx, &updated); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return record, notFoundError(opReplace, id)
		}
		return record, storeError(opReplace, err)
	}
	saga.state = replaceSwapped

	c.logger.Debug("story photos replaced", "story_id", id, "photos", len(updated.Photos))
	return updated, nil
}

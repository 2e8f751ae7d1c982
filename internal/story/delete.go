package story

import (
	"context"
	"errors"

	"github.com/dae9999nam/Memory-Garden/internal/models"
	"github.com/dae9999nam/Memory-Garden/internal/store"
)

const opDelete = "delete story"

// DeleteTargeted removes one part of a story. Every target is idempotent:
// repeating a call that already succeeded is a no-op.
func (c *Coordinator) DeleteTargeted(ctx context.Context, id string, target models.DeleteTarget) error {
	if err := c.configured(); err != nil {
		return storeError(opDelete, err)
	}
	target, err := models.ParseDeleteTarget(string(target))
	if err != nil {
		return validationError(opDelete, "%v", err)
	}

	record, err := c.records.GetStory(ctx, id)
	if err != nil {
		return storeError(opDelete, err)
	}
	if record == nil {
		return notFoundError(opDelete, id)
	}

	switch target {
	case models.DeleteTargetAll:
		// Blobs first: if any delete fails the record keeps pointing at
		// them and a retry can finish the job.
		if err := c.deleteBlobs(ctx, record.Photos); err != nil {
			return storeError(opDelete, err)
		}
		if err := c.records.DeleteStory(ctx, id); err != nil {
			return storeError(opDelete, err)
		}
		c.logger.Debug("story deleted", "story_id", id, "photos", len(record.Photos))
		return nil

	case models.DeleteTargetPhotos:
		if len(record.Photos) == 0 && record.NarrativeText == nil {
			return nil
		}
		if err := c.deleteBlobs(ctx, record.Photos); err != nil {
			return storeError(opDelete, err)
		}
		// A narrative cannot outlive the photos it describes.
		record.Photos = []models.PhotoBlobRef{}
		record.NarrativeText = nil

	case models.DeleteTargetPrompt:
		if record.Prompt == "" {
			return nil
		}
		record.Prompt = ""

	case models.DeleteTargetNarrative:
		if record.NarrativeText == nil {
			return nil
		}
		record.NarrativeText = nil
	}

	record.UpdatedAt = c.timestamp()
	if err := c.records.UpdateStory(ctx, record); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return notFoundError(opDelete, id)
		}
		return storeError(opDelete, err)
	}
	c.logger.Debug("story field cleared", "story_id", id, "target", string(target))
	return nil
}

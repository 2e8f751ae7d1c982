package story

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dae9999nam/Memory-Garden/internal/blobstore"
	"github.com/dae9999nam/Memory-Garden/internal/metrics"
	"github.com/dae9999nam/Memory-Garden/internal/models"
	"github.com/dae9999nam/Memory-Garden/internal/narrative"
	"github.com/dae9999nam/Memory-Garden/internal/store"
)

const (
	defaultCompensationTimeout = 30 * time.Second
	defaultBlobWriteParallel   = 4
)

// Payload is one decoded photo upload.
type Payload struct {
	Name     string
	MimeType string
	Data     []byte
}

// CoordinatorOptions tunes a Coordinator. Zero values select defaults.
type CoordinatorOptions struct {
	// CompensationTimeout bounds each cleanup pass; cleanup ignores the
	// caller's cancellation.
	CompensationTimeout time.Duration
	BlobWriteParallel   int
	Logger              *slog.Logger
	Metrics             *metrics.Metrics
	Now                 func() time.Time
}

// Coordinator runs the multi-store story mutations. It keeps no mutable
// state between calls; every operation reads the stores fresh.
type Coordinator struct {
	blobs     blobstore.BlobStore
	records   store.RecordStore
	generator narrative.Generator

	compensationTimeout time.Duration
	blobWriteParallel   int
	logger              *slog.Logger
	metrics             *metrics.Metrics
	now                 func() time.Time
}

// NewCoordinator wires the three adapters.
func NewCoordinator(blobs blobstore.BlobStore, records store.RecordStore, generator narrative.Generator, opts CoordinatorOptions) *Coordinator {
	c := &Coordinator{
		blobs:               blobs,
		records:             records,
		generator:           generator,
		compensationTimeout: opts.CompensationTimeout,
		blobWriteParallel:   opts.BlobWriteParallel,
		logger:              opts.Logger,
		metrics:             opts.Metrics,
		now:                 opts.Now,
	}
	if c.compensationTimeout <= 0 {
		c.compensationTimeout = defaultCompensationTimeout
	}
	if c.blobWriteParallel <= 0 {
		c.blobWriteParallel = defaultBlobWriteParallel
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c
}

func (c *Coordinator) configured() error {
	if c == nil || c.blobs == nil || c.records == nil || c.generator == nil {
		return fmt.Errorf("story coordinator is not configured")
	}
	return nil
}

func (c *Coordinator) timestamp() time.Time {
	return c.now().UTC()
}

// storeBlobs writes payloads concurrently. It always returns the refs that
// were written, in payload order, even when err is non-nil, so the caller
// can compensate them.
func (c *Coordinator) storeBlobs(ctx context.Context, payloads []Payload) ([]models.PhotoBlobRef, error) {
	slots := make([]*models.PhotoBlobRef, len(payloads))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.blobWriteParallel)
	for i, p := range payloads {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := c.blobs.Put(gctx, bytes.NewReader(p.Data), blobstore.PutMetadata{OriginalName: p.Name, MimeType: p.MimeType})
			if err != nil {
				return fmt.Errorf("store photo %q: %w", p.Name, err)
			}
			slots[i] = &models.PhotoBlobRef{
				BlobID:       res.BlobID,
				OriginalName: p.Name,
				MimeType:     p.MimeType,
				ByteLength:   res.SizeBytes,
				SHA256:       res.SHA256,
				StoredAt:     c.timestamp(),
			}
			return nil
		})
	}
	err := g.Wait()

	refs := make([]models.PhotoBlobRef, 0, len(payloads))
	for _, slot := range slots {
		if slot != nil {
			refs = append(refs, *slot)
		}
	}
	return refs, err
}

// generate calls the narrative generator once and records its latency.
func (c *Coordinator) generate(ctx context.Context, sc models.StoryContext, payloads []Payload) (string, string, error) {
	prompt := narrative.BuildPrompt(sc)
	images := make([][]byte, len(payloads))
	for i, p := range payloads {
		images[i] = p.Data
	}

	start := time.Now()
	text, err := c.generator.Generate(ctx, prompt, narrative.EncodeImages(images))
	reason := ""
	if err != nil {
		reason = string(narrative.ReasonUnavailable)
		var genErr *narrative.Error
		if errors.As(err, &genErr) {
			reason = string(genErr.Reason)
		}
	}
	c.metrics.NarrativeCalled(time.Since(start), reason)
	return prompt, text, err
}

// compensateBlobs deletes refs best-effort with a context detached from the
// caller's cancellation. Failures are logged and never returned.
func (c *Coordinator) compensateBlobs(ctx context.Context, saga, storyID string, refs []models.PhotoBlobRef) {
	if len(refs) == 0 {
		return
	}
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.compensationTimeout)
	defer cancel()

	for _, ref := range refs {
		err := c.blobs.Delete(cctx, ref.BlobID)
		c.metrics.Compensated(saga, err == nil)
		if err != nil {
			c.logger.Warn("compensating blob delete failed",
				"saga", saga, "story_id", storyID, "blob_id", ref.BlobID, "error", err)
			continue
		}
		c.logger.Debug("compensating blob delete", "saga", saga, "story_id", storyID, "blob_id", ref.BlobID)
	}
}

// deleteBlobs removes refs as part of the forward path and reports the first
// failure after attempting every ref.
func (c *Coordinator) deleteBlobs(ctx context.Context, refs []models.PhotoBlobRef) error {
	var firstErr error
	for _, ref := range refs {
		if err := c.blobs.Delete(ctx, ref.BlobID); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("delete blob %s: %w", ref.BlobID, err)
		}
	}
	return firstErr
}

func blobIDs(refs []models.PhotoBlobRef) []string {
	out := make([]string, len(refs))
	for i, ref := range refs {
		out[i] = ref.BlobID
	}
	return out
}

package story

import (
	"context"
	"fmt"
	"time"

	"github.com/dae9999nam/Memory-Garden/internal/blobstore"
)

// SweepResult reports one orphan sweep.
type SweepResult struct {
	Scanned        int   `json:"scanned" yaml:"scanned"`
	Candidates     int   `json:"candidates" yaml:"candidates"`
	Deleted        int   `json:"deleted" yaml:"deleted"`
	Failed         int   `json:"failed" yaml:"failed"`
	ReclaimedBytes int64 `json:"reclaimed_bytes" yaml:"reclaimed_bytes"`
	DryRun         bool  `json:"dry_run" yaml:"dry_run"`
}

// SweepOrphans finds blobs that no story references and that are older than
// olderThan (the service grace period when zero). With apply false it only
// counts them. olderThan may not be shorter than the grace period: a saga's
// blobs stay unreferenced until its record write.
func (s *Service) SweepOrphans(ctx context.Context, olderThan time.Duration, apply bool) (SweepResult, error) {
	const op = "sweep orphans"
	result := SweepResult{DryRun: !apply}
	if err := s.coord.configured(); err != nil {
		return result, storeError(op, err)
	}
	if olderThan <= 0 {
		olderThan = s.gracePeriod
	}
	if olderThan < s.gracePeriod {
		return result, validationError(op, "older_than must be at least the grace period %s, got %s", s.gracePeriod, olderThan)
	}
	cutoff := s.coord.timestamp().Add(-olderThan)

	// Blobs are listed before references are read. A saga that commits in
	// between wrote its blobs after the cutoff, so they are never candidates.
	var old []blobstore.BlobInfo
	err := s.coord.blobs.List(ctx, func(info blobstore.BlobInfo) error {
		result.Scanned++
		if info.ModTime.Before(cutoff) {
			old = append(old, info)
		}
		return nil
	})
	if err != nil {
		return result, storeError(op, fmt.Errorf("list blobs: %w", err))
	}

	referenced, err := s.coord.records.ListReferencedBlobIDs(ctx)
	if err != nil {
		return result, storeError(op, fmt.Errorf("list referenced blobs: %w", err))
	}

	for _, info := range old {
		if _, ok := referenced[info.BlobID]; ok {
			continue
		}
		result.Candidates++
		if !apply {
			result.ReclaimedBytes += info.SizeBytes
			continue
		}
		if err := s.coord.blobs.Delete(ctx, info.BlobID); err != nil {
			result.Failed++
			s.coord.logger.Warn("orphan blob delete failed", "blob_id", info.BlobID, "error", err)
			continue
		}
		result.Deleted++
		result.ReclaimedBytes += info.SizeBytes
	}

	if apply {
		s.coord.metrics.GCSwept(result.Deleted, result.Failed)
	}
	s.coord.logger.Info("orphan sweep finished",
		"scanned", result.Scanned, "candidates", result.Candidates,
		"deleted", result.Deleted, "failed", result.Failed, "dry_run", result.DryRun)
	return result, nil
}

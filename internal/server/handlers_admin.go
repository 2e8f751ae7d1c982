package server

import (
	"fmt"
	"net/http"

	"github.com/dae9999nam/Memory-Garden/internal/api"
)

func (s *Server) handleAdminGC(w http.ResponseWriter, r *http.Request) {
	apply, err := queryBool(r, "apply")
	if err != nil {
		s.writeErrorReq(w, r, http.StatusBadRequest, err)
		return
	}
	olderThan, err := queryDuration(r, "older_than")
	if err != nil {
		s.writeErrorReq(w, r, http.StatusBadRequest, err)
		return
	}
	if grace := s.service.GracePeriod(); olderThan > 0 && olderThan < grace {
		s.writeErrorReq(w, r, http.StatusBadRequest, badRequestCode(fmt.Errorf("older_than must be at least %s", grace), ErrCodeInvalidQuery))
		return
	}
	if apply && r.Header.Get("X-Confirm") != "true" {
		s.writeErrorReq(w, r, http.StatusBadRequest, badRequestCode(fmt.Errorf("apply requires X-Confirm: true header"), ErrCodeMissingRequired))
		return
	}

	result, err := s.service.SweepOrphans(r.Context(), olderThan, apply)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, api.SweepResponse{
		Scanned:        result.Scanned,
		Candidates:     result.Candidates,
		Deleted:        result.Deleted,
		Failed:         result.Failed,
		ReclaimedBytes: result.ReclaimedBytes,
		DryRun:         result.DryRun,
	})
}

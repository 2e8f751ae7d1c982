package server

import (
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/dae9999nam/Memory-Garden/internal/api"
	"github.com/dae9999nam/Memory-Garden/internal/models"
)

const defaultStoryListLimit = 50

func (s *Server) handleCreateStory(w http.ResponseWriter, r *http.Request) {
	s.withLimiter(w, r, s.generationLimiter, "story", func() {
		values, payloads, err := s.parseUploadForm(w, r)
		if err != nil {
			s.writeErrorReq(w, r, httpStatusFromError(err), err)
			return
		}

		record, err := s.service.Create(r.Context(), contextFromForm(values), payloads)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}

		w.Header().Set("Location", api.StoryPath(record.ID))
		s.writeJSON(w, http.StatusCreated, api.NewStoryResponse(record))
	})
}

func (s *Server) handleListStories(w http.ResponseWriter, r *http.Request) {
	limit, err := queryIntDefault(r, "limit", defaultStoryListLimit)
	if err != nil {
		s.writeErrorReq(w, r, http.StatusBadRequest, err)
		return
	}
	offset, err := queryIntDefault(r, "offset", 0)
	if err != nil {
		s.writeErrorReq(w, r, http.StatusBadRequest, err)
		return
	}

	records, err := s.service.List(r.Context(), limit, offset)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	resp := make([]api.StoryResponse, 0, len(records))
	for _, record := range records {
		resp = append(resp, api.NewStoryResponse(record))
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetStory(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathIDOrBadRequest(w, r, "id")
	if !ok {
		return
	}

	record, err := s.service.Get(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.NewStoryResponse(record))
}

func (s *Server) handleReplacePhotos(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathIDOrBadRequest(w, r, "id")
	if !ok {
		return
	}

	s.withLimiter(w, r, s.generationLimiter, "story", func() {
		values, payloads, err := s.parseUploadForm(w, r)
		if err != nil {
			s.writeErrorReq(w, r, httpStatusFromError(err), err)
			return
		}

		record, err := s.service.ReplacePhotos(r.Context(), id, patchFromForm(values), payloads)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusOK, api.NewStoryResponse(record))
	})
}

func (s *Server) handleListPhotos(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathIDOrBadRequest(w, r, "id")
	if !ok {
		return
	}

	record, err := s.service.Get(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	resp := make([]api.PhotoResponse, 0, len(record.Photos))
	for _, ref := range record.Photos {
		resp = append(resp, api.NewPhotoResponse(record.ID, ref))
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetPhoto(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathIDOrBadRequest(w, r, "id")
	if !ok {
		return
	}
	photoID := strings.TrimSpace(r.PathValue("photo_id"))
	if !validatePhotoID(photoID) {
		s.writeErrorReq(w, r, http.StatusBadRequest, badRequestCode(fmt.Errorf("invalid photo_id"), ErrCodeInvalidID))
		return
	}

	content, err := s.service.GetPhotoBytes(r.Context(), id, photoID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	defer content.Reader.Close()

	mimeType := content.Ref.MimeType
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", mimeType)
	if content.Ref.ByteLength > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(content.Ref.ByteLength, 10))
	}
	if content.Ref.OriginalName != "" {
		w.Header().Set("Content-Disposition", mime.FormatMediaType("inline", map[string]string{"filename": content.Ref.OriginalName}))
	}
	if content.Ref.SHA256 != "" {
		w.Header().Set("ETag", strconv.Quote(content.Ref.SHA256))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, content.Reader); err != nil {
		s.log().Warn("stream photo", "story_id", id, "photo_id", photoID, "error", err)
	}
}

func (s *Server) handleDeleteStory(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathIDOrBadRequest(w, r, "id")
	if !ok {
		return
	}

	rawTarget := r.URL.Query().Get("target")
	if strings.TrimSpace(rawTarget) == "" {
		rawTarget = string(models.DeleteTargetAll)
	}
	target, err := models.ParseDeleteTarget(rawTarget)
	if err != nil {
		s.writeErrorReq(w, r, http.StatusBadRequest, badRequestCode(err, ErrCodeInvalidTarget))
		return
	}

	if err := s.service.DeleteTargeted(r.Context(), id, target); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.DeleteResponse{ID: id, Target: string(target)})
}

package api

import (
	"time"

	"github.com/dae9999nam/Memory-Garden/internal/models"
)

// ErrorResponse is a generic JSON error wrapper. Detail carries the raw
// upstream diagnostic for narrative failures.
type ErrorResponse struct {
	Error     string `json:"error" yaml:"error"`
	Code      string `json:"code,omitempty" yaml:"code,omitempty"`
	ErrorCode int    `json:"error_code,omitempty" yaml:"error_code,omitempty"`
	Detail    string `json:"detail,omitempty" yaml:"detail,omitempty"`
}

// HealthResponse is the response from GET /health.
type HealthResponse struct {
	Status string `json:"status" yaml:"status"`
}

// StoryContext mirrors models.StoryContext on the wire.
type StoryContext struct {
	Date    string `json:"date" yaml:"date"`
	Place   string `json:"place" yaml:"place"`
	Weather string `json:"weather" yaml:"weather"`
	Notes   string `json:"notes,omitempty" yaml:"notes,omitempty"`
}

// PhotoResponse describes one stored photo.
type PhotoResponse struct {
	ID           string    `json:"id" yaml:"id"`
	OriginalName string    `json:"original_name" yaml:"original_name"`
	MimeType     string    `json:"mime_type" yaml:"mime_type"`
	ByteLength   int64     `json:"byte_length" yaml:"byte_length"`
	SHA256       string    `json:"sha256,omitempty" yaml:"sha256,omitempty"`
	StoredAt     time.Time `json:"stored_at" yaml:"stored_at"`
	URL          string    `json:"url" yaml:"url"`
}

// StoryResponse is the JSON shape of one story.
type StoryResponse struct {
	ID            string          `json:"id" yaml:"id"`
	Context       StoryContext    `json:"context" yaml:"context"`
	Prompt        string          `json:"prompt" yaml:"prompt"`
	NarrativeText *string         `json:"narrative_text" yaml:"narrative_text"`
	Photos        []PhotoResponse `json:"photos" yaml:"photos"`
	CreatedAt     time.Time       `json:"created_at" yaml:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at" yaml:"updated_at"`
}

// DeleteResponse is returned by DELETE /v1/stories/{id}.
type DeleteResponse struct {
	ID     string `json:"id" yaml:"id"`
	Target string `json:"target" yaml:"target"`
}

// SweepResponse reports one orphan sweep.
type SweepResponse struct {
	Scanned        int   `json:"scanned" yaml:"scanned"`
	Candidates     int   `json:"candidates" yaml:"candidates"`
	Deleted        int   `json:"deleted" yaml:"deleted"`
	Failed         int   `json:"failed" yaml:"failed"`
	ReclaimedBytes int64 `json:"reclaimed_bytes" yaml:"reclaimed_bytes"`
	DryRun         bool  `json:"dry_run" yaml:"dry_run"`
}

// NewStoryResponse converts a record to its wire shape.
func NewStoryResponse(record models.StoryRecord) StoryResponse {
	photos := make([]PhotoResponse, 0, len(record.Photos))
	for _, p := range record.Photos {
		photos = append(photos, NewPhotoResponse(record.ID, p))
	}
	return StoryResponse{
		ID: record.ID,
		Context: StoryContext{
			Date:    record.Context.Date,
			Place:   record.Context.Place,
			Weather: record.Context.Weather,
			Notes:   record.Context.Notes,
		},
		Prompt:        record.Prompt,
		NarrativeText: record.NarrativeText,
		Photos:        photos,
		CreatedAt:     record.CreatedAt,
		UpdatedAt:     record.UpdatedAt,
	}
}

// NewPhotoResponse converts one photo ref.
func NewPhotoResponse(storyID string, ref models.PhotoBlobRef) PhotoResponse {
	return PhotoResponse{
		ID:           ref.BlobID,
		OriginalName: ref.OriginalName,
		MimeType:     ref.MimeType,
		ByteLength:   ref.ByteLength,
		SHA256:       ref.SHA256,
		StoredAt:     ref.StoredAt,
		URL:          PhotoPath(storyID, ref.BlobID),
	}
}

// StoryPath is the resource path of a story.
func StoryPath(id string) string {
	return "/v1/stories/" + id
}

// PhotoPath is the resource path of a photo's bytes.
func PhotoPath(storyID, photoID string) string {
	return StoryPath(storyID) + "/photos/" + photoID
}

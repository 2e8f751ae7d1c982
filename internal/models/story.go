package models

import (
	"fmt"
	"strings"
	"time"
)

// PhotoBlobRef points at one stored photo blob. A ref is owned by exactly one
// story and never changes after it is created.
type PhotoBlobRef struct {
	BlobID       string    `json:"blob_id" bson:"blob_id"`
	OriginalName string    `json:"original_name" bson:"original_name"`
	MimeType     string    `json:"mime_type" bson:"mime_type"`
	ByteLength   int64     `json:"byte_length" bson:"byte_length"`
	SHA256       string    `json:"sha256,omitempty" bson:"sha256,omitempty"`
	StoredAt     time.Time `json:"stored_at" bson:"stored_at"`
}

// StoryContext is the user-supplied setting of a memory.
type StoryContext struct {
	Date    string `json:"date" bson:"date"`
	Place   string `json:"place" bson:"place"`
	Weather string `json:"weather" bson:"weather"`
	Notes   string `json:"notes,omitempty" bson:"notes,omitempty"`
}

// MissingFields returns the names of required context fields that are blank.
func (c StoryContext) MissingFields() []string {
	var missing []string
	if strings.TrimSpace(c.Date) == "" {
		missing = append(missing, "date")
	}
	if strings.TrimSpace(c.Place) == "" {
		missing = append(missing, "place")
	}
	if strings.TrimSpace(c.Weather) == "" {
		missing = append(missing, "weather")
	}
	return missing
}

// Normalized trims surrounding whitespace from every field.
func (c StoryContext) Normalized() StoryContext {
	return StoryContext{
		Date:    strings.TrimSpace(c.Date),
		Place:   strings.TrimSpace(c.Place),
		Weather: strings.TrimSpace(c.Weather),
		Notes:   strings.TrimSpace(c.Notes),
	}
}

// StoryContextPatch carries optional context overrides. A nil field keeps the
// current value; a non-nil blank field clears it.
type StoryContextPatch struct {
	Date    *string `json:"date,omitempty"`
	Place   *string `json:"place,omitempty"`
	Weather *string `json:"weather,omitempty"`
	Notes   *string `json:"notes,omitempty"`
}

// Apply merges the patch onto base.
func (p *StoryContextPatch) Apply(base StoryContext) StoryContext {
	if p == nil {
		return base
	}
	out := base
	if p.Date != nil {
		out.Date = *p.Date
	}
	if p.Place != nil {
		out.Place = *p.Place
	}
	if p.Weather != nil {
		out.Weather = *p.Weather
	}
	if p.Notes != nil {
		out.Notes = *p.Notes
	}
	return out.Normalized()
}

// StoryRecord is one persisted memory: its context, generated narrative and
// the ordered photos it was generated from.
type StoryRecord struct {
	ID            string         `json:"id" bson:"_id"`
	Context       StoryContext   `json:"context" bson:"context"`
	Prompt        string         `json:"prompt" bson:"prompt"`
	NarrativeText *string        `json:"narrative_text" bson:"narrative_text"`
	Photos        []PhotoBlobRef `json:"photos" bson:"photos"`
	CreatedAt     time.Time      `json:"created_at" bson:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at" bson:"updated_at"`
}

// Photo returns the photo ref with the given blob id.
func (r StoryRecord) Photo(blobID string) (PhotoBlobRef, bool) {
	for _, photo := range r.Photos {
		if photo.BlobID == blobID {
			return photo, true
		}
	}
	return PhotoBlobRef{}, false
}

// Clone returns a deep copy so callers can mutate without aliasing the photo
// slice or narrative pointer.
func (r StoryRecord) Clone() StoryRecord {
	out := r
	if r.Photos != nil {
		out.Photos = make([]PhotoBlobRef, len(r.Photos))
		copy(out.Photos, r.Photos)
	}
	if r.NarrativeText != nil {
		text := *r.NarrativeText
		out.NarrativeText = &text
	}
	return out
}

// DeleteTarget selects which part of a story DeleteTargeted removes.
type DeleteTarget string

const (
	DeleteTargetPhotos    DeleteTarget = "photos"
	DeleteTargetPrompt    DeleteTarget = "prompt"
	DeleteTargetNarrative DeleteTarget = "narrative"
	DeleteTargetAll       DeleteTarget = "all"
)

var validDeleteTargets = map[DeleteTarget]struct{}{
	DeleteTargetPhotos:    {},
	DeleteTargetPrompt:    {},
	DeleteTargetNarrative: {},
	DeleteTargetAll:       {},
}

func ParseDeleteTarget(raw string) (DeleteTarget, error) {
	value := DeleteTarget(strings.ToLower(strings.TrimSpace(raw)))
	if value == "" {
		return "", fmt.Errorf("delete target is required")
	}
	if _, ok := validDeleteTargets[value]; !ok {
		return "", fmt.Errorf("invalid delete target: %s", value)
	}
	return value, nil
}

package models

import (
	"reflect"
	"testing"
)

func TestParseDeleteTarget(t *testing.T) {
	got, err := ParseDeleteTarget(" PHOTOS ")
	if err != nil {
		t.Fatalf("parse target: %v", err)
	}
	if got != DeleteTargetPhotos {
		t.Fatalf("expected %q, got %q", DeleteTargetPhotos, got)
	}

	if _, err := ParseDeleteTarget("audio"); err == nil {
		t.Fatal("expected invalid target error")
	}
	if _, err := ParseDeleteTarget(""); err == nil {
		t.Fatal("expected missing target error")
	}
}

func TestStoryContextMissingFields(t *testing.T) {
	ctx := StoryContext{Date: "2024-05-24", Place: "  ", Notes: "picnic"}
	got := ctx.MissingFields()
	want := []string{"place", "weather"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}

	full := StoryContext{Date: "2024-05-24", Place: "Lisbon", Weather: "Sunny"}
	if missing := full.MissingFields(); len(missing) != 0 {
		t.Fatalf("expected no missing fields, got %v", missing)
	}
}

func TestStoryContextPatchApply(t *testing.T) {
	base := StoryContext{Date: "2024-05-24", Place: "Lisbon", Weather: "Sunny", Notes: "tram 28"}
	place := " Porto "
	blank := ""

	got := (&StoryContextPatch{Place: &place, Notes: &blank}).Apply(base)
	want := StoryContext{Date: "2024-05-24", Place: "Porto", Weather: "Sunny"}
	if got != want {
		t.Fatalf("expected %#v, got %#v", want, got)
	}

	var nilPatch *StoryContextPatch
	if got := nilPatch.Apply(base); got != base {
		t.Fatalf("nil patch should preserve context, got %#v", got)
	}
}

func TestStoryRecordCloneDoesNotAlias(t *testing.T) {
	text := "A sunny day..."
	record := StoryRecord{
		ID:            "s1",
		NarrativeText: &text,
		Photos:        []PhotoBlobRef{{BlobID: "b1"}},
	}

	clone := record.Clone()
	clone.Photos[0].BlobID = "changed"
	*clone.NarrativeText = "changed"

	if record.Photos[0].BlobID != "b1" {
		t.Fatalf("clone aliased photos: %#v", record.Photos)
	}
	if *record.NarrativeText != text {
		t.Fatalf("clone aliased narrative: %q", *record.NarrativeText)
	}
	if _, ok := record.Photo("b1"); !ok {
		t.Fatal("expected photo lookup to succeed")
	}
}

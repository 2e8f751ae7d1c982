package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dae9999nam/Memory-Garden/internal/api"
	"github.com/dae9999nam/Memory-Garden/internal/format"
)

var outputFormatter format.Formatter = format.JSONFormatter{}

func writeStructured(payload any) error {
	return outputFormatter.Write(os.Stdout, payload)
}

func writePlain(format string, args ...any) error {
	_, err := fmt.Fprintf(os.Stdout, format, args...)
	return err
}

func writeStoryList(stories []api.StoryResponse) error {
	if len(stories) == 0 {
		return writePlain("no stories\n")
	}
	for _, story := range stories {
		if err := writePlain("%s\n", formatStoryLine(story)); err != nil {
			return err
		}
	}
	return nil
}

func writeStoryDetail(story api.StoryResponse) error {
	lines := []string{
		fmt.Sprintf("id: %s", story.ID),
		fmt.Sprintf("date: %s", story.Context.Date),
		fmt.Sprintf("place: %s", story.Context.Place),
		fmt.Sprintf("weather: %s", story.Context.Weather),
	}
	if story.Context.Notes != "" {
		lines = append(lines, fmt.Sprintf("notes: %s", story.Context.Notes))
	}
	lines = append(lines,
		fmt.Sprintf("created_at: %s", formatTime(story.CreatedAt)),
		fmt.Sprintf("updated_at: %s", formatTime(story.UpdatedAt)),
	)
	if story.NarrativeText != nil {
		lines = append(lines, fmt.Sprintf("narrative: %s", *story.NarrativeText))
	} else {
		lines = append(lines, "narrative: (none)")
	}
	if len(story.Photos) > 0 {
		lines = append(lines, "photos:")
		for _, photo := range story.Photos {
			lines = append(lines, "  - "+formatPhotoLine(photo))
		}
	}
	return writePlain("%s\n", strings.Join(lines, "\n"))
}

func writePhotoList(photos []api.PhotoResponse) error {
	for _, photo := range photos {
		if err := writePlain("%s\n", formatPhotoLine(photo)); err != nil {
			return err
		}
	}
	return nil
}

func formatStoryLine(story api.StoryResponse) string {
	return fmt.Sprintf("%s  %s  %s (%s)  %d photo(s)", story.ID, story.Context.Date, story.Context.Place, story.Context.Weather, len(story.Photos))
}

func formatPhotoLine(photo api.PhotoResponse) string {
	return fmt.Sprintf("%s %s %s %d bytes", photo.ID, photo.OriginalName, photo.MimeType, photo.ByteLength)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

package narrative

import (
	"encoding/base64"
	"strings"

	"github.com/dae9999nam/Memory-Garden/internal/models"
)

const storyPreamble = "You are a compassionate storyteller. Receive a sequence of photos and " +
	"the contextual details (date, weather, place). Craft a vivid, coherent " +
	"narrative that connects all of the photos into a single memory, written " +
	"in the first person. Avoid bullet points and reference visual details " +
	"from the images when possible.\n\n"

// BuildPrompt renders the generation prompt for a story context.
func BuildPrompt(c models.StoryContext) string {
	c = c.Normalized()
	var b strings.Builder
	b.WriteString(storyPreamble)
	b.WriteString("Date: " + c.Date + "\n")
	b.WriteString("Weather: " + c.Weather + "\n")
	b.WriteString("Location: " + c.Place + "\n")
	if c.Notes != "" {
		b.WriteString("Notes: " + c.Notes + "\n")
	}
	b.WriteString("\n")
	return b.String()
}

// EncodeImages base64-encodes raw image payloads in order.
func EncodeImages(payloads [][]byte) []string {
	out := make([]string, 0, len(payloads))
	for _, p := range payloads {
		out = append(out, base64.StdEncoding.EncodeToString(p))
	}
	return out
}

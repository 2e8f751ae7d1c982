package main

import (
	"context"
	"errors"
	"net"

	"github.com/dae9999nam/Memory-Garden/internal/api"
)

func formatCLIError(err error) []string {
	if err == nil {
		return nil
	}

	lines := []string{err.Error()}

	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case "resource_exhausted":
			lines = append(lines, "hint: retry shortly; the server limits concurrent story generations.")
		case "upstream_unavailable":
			lines = append(lines, "hint: check that Ollama is running at the configured narrative.base_url.")
		case "upstream_timeout":
			lines = append(lines, "hint: the narrative model did not answer in time; raise narrative.timeout or use a smaller model.")
		case "upstream_rejected":
			lines = append(lines, "hint: Ollama rejected the request; verify narrative.model is pulled.")
		case "":
			lines = append(lines, "hint: verify MEMGARDEN_API_URL points to a memgarden server.")
		}
		if apiErr.Status >= 500 && apiErr.Status != 502 && apiErr.Status != 504 {
			lines = append(lines, "hint: server returned an internal error; check server logs for details.")
		}
		return uniqueLines(lines)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		lines = append(lines, "hint: request timed out; check server health or increase MEMGARDEN_HTTP_TIMEOUT.")
		return uniqueLines(lines)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		lines = append(lines,
			"hint: ensure a memgarden server is running at MEMGARDEN_API_URL.",
			"hint: start a local server manually with: memgarden srv",
		)
	}
	return uniqueLines(lines)
}

func uniqueLines(lines []string) []string {
	seen := make(map[string]struct{}, len(lines))
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if line == "" {
			continue
		}
		if _, ok := seen[line]; ok {
			continue
		}
		seen[line] = struct{}{}
		out = append(out, line)
	}
	return out
}

package store

import (
	"errors"
	"strings"
	"testing"
)

func TestGenerateStoryID(t *testing.T) {
	id, err := GenerateStoryID(nil)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(id) != 32 || strings.Contains(id, "-") {
		t.Fatalf("unexpected id format %q", id)
	}
	if !ValidStoryID(id) {
		t.Fatalf("generated id %q should be valid", id)
	}
}

func TestGenerateStoryIDRetriesOnCollision(t *testing.T) {
	calls := 0
	id, err := GenerateStoryID(func(string) (bool, error) {
		calls++
		return calls < 3, nil
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if calls != 3 || id == "" {
		t.Fatalf("expected 3 attempts, got %d (id %q)", calls, id)
	}
}

func TestGenerateStoryIDGivesUp(t *testing.T) {
	if _, err := GenerateStoryID(func(string) (bool, error) { return true, nil }); err == nil {
		t.Fatal("expected error when every id collides")
	}

	boom := errors.New("boom")
	if _, err := GenerateStoryID(func(string) (bool, error) { return false, boom }); !errors.Is(err, boom) {
		t.Fatalf("expected lookup error, got %v", err)
	}
}

func TestValidStoryID(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{"0a1b2c3d4e5f", true},
		{"665f1c2a9b3e4d0012345678", true},
		{"story_one-2", true},
		{"", false},
		{"../etc", false},
		{"a b", false},
		{strings.Repeat("a", 65), false},
	}
	for _, tc := range tests {
		if got := ValidStoryID(tc.id); got != tc.want {
			t.Fatalf("ValidStoryID(%q) = %v, want %v", tc.id, got, tc.want)
		}
	}
}

package format

import (
	"bytes"
	"strings"
	"testing"
)

type sample struct {
	ID     string   `json:"id" yaml:"id"`
	Photos []string `json:"photos" yaml:"photos"`
}

func TestFormatters(t *testing.T) {
	payload := sample{ID: "abc", Photos: []string{"p1", "p2"}}

	tests := []struct {
		name string
		want string
	}{
		{name: "json", want: `{"id":"abc","photos":["p1","p2"]}` + "\n"},
		{name: "yaml", want: "id: abc\nphotos:\n  - p1\n  - p2\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f, err := ByName(tc.name)
			if err != nil {
				t.Fatalf("formatter: %v", err)
			}
			var buf bytes.Buffer
			if err := f.Write(&buf, payload); err != nil {
				t.Fatalf("write: %v", err)
			}
			if buf.String() != tc.want {
				t.Fatalf("unexpected output:\n%s", buf.String())
			}
		})
	}
}

func TestByNameRejectsUnknown(t *testing.T) {
	if _, err := ByName("xml"); err == nil || !strings.Contains(err.Error(), "xml") {
		t.Fatalf("expected unknown format error, got %v", err)
	}
}

package server

import (
	"bytes"
	"image"
	"image/gif"
	"image/jpeg"
	"testing"
)

func TestSniffImage(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 3, 3))
	var jpg, gf bytes.Buffer
	if err := jpeg.Encode(&jpg, img, nil); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	if err := gif.Encode(&gf, img, nil); err != nil {
		t.Fatalf("encode gif: %v", err)
	}

	tests := []struct {
		name    string
		data    []byte
		want    string
		wantErr bool
	}{
		{name: "png", data: pngBytes(t, 5), want: "image/png"},
		{name: "jpeg", data: jpg.Bytes(), want: "image/jpeg"},
		{name: "gif", data: gf.Bytes(), want: "image/gif"},
		{name: "text", data: []byte("definitely not an image"), wantErr: true},
		{name: "truncated png", data: pngBytes(t, 5)[:12], wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := sniffImage(tc.data)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("sniff: %v", err)
			}
			if got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestPatchFromForm(t *testing.T) {
	if patch := patchFromForm(map[string][]string{}); patch != nil {
		t.Fatalf("expected nil patch for empty form, got %#v", patch)
	}

	patch := patchFromForm(map[string][]string{
		"location": {" Porto "},
		"notes":    {""},
	})
	if patch == nil {
		t.Fatal("expected patch")
	}
	if patch.Date != nil || patch.Weather != nil {
		t.Fatalf("absent fields must stay nil: %#v", patch)
	}
	if patch.Place == nil || *patch.Place != "Porto" {
		t.Fatalf("expected place from location alias, got %v", patch.Place)
	}
	if patch.Notes == nil || *patch.Notes != "" {
		t.Fatalf("expected blank notes to clear, got %v", patch.Notes)
	}
}

func TestFormFieldPrefersCanonicalKey(t *testing.T) {
	got, ok := formField(map[string][]string{"place": {"Lisbon"}, "location": {"Porto"}}, "place")
	if !ok || got != "Lisbon" {
		t.Fatalf("expected canonical key to win, got %q (%v)", got, ok)
	}
}

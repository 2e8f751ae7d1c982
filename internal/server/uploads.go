package server

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/dae9999nam/Memory-Garden/internal/models"
	"github.com/dae9999nam/Memory-Garden/internal/story"
)

const (
	photosField           = "photos"
	multipartOverheadSize = 1 << 20 // 1 MiB for fields and part headers
)

// contextFieldAliases lists the accepted form keys per context field, in
// priority order.
var contextFieldAliases = map[string][]string{
	"date":    {"date"},
	"place":   {"place", "location"},
	"weather": {"weather"},
	"notes":   {"notes"},
}

// parseUploadForm reads a multipart upload and returns the form values and
// the decoded photos. Non-image parts are rejected before the core sees them.
func (s *Server) parseUploadForm(w http.ResponseWriter, r *http.Request) (map[string][]string, []story.Payload, error) {
	maxBody := int64(s.maxPhotos)*s.maxPhotoBytes + multipartOverheadSize
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	if err := r.ParseMultipartForm(s.multipartMemory); err != nil {
		return nil, nil, classifyMultipartError(err)
	}

	headers := r.MultipartForm.File[photosField]
	if len(headers) == 0 {
		return nil, nil, badRequestCode(fmt.Errorf("at least one photo is required"), ErrCodeMissingRequired)
	}
	if len(headers) > s.maxPhotos {
		return nil, nil, badRequestCode(fmt.Errorf("at most %d photos are allowed, got %d", s.maxPhotos, len(headers)), ErrCodeTooManyPhotos)
	}

	payloads := make([]story.Payload, 0, len(headers))
	for _, fh := range headers {
		payload, err := s.readPhoto(fh)
		if err != nil {
			return nil, nil, err
		}
		payloads = append(payloads, payload)
	}
	return r.MultipartForm.Value, payloads, nil
}

func (s *Server) readPhoto(fh *multipart.FileHeader) (story.Payload, error) {
	if fh.Size > s.maxPhotoBytes {
		return story.Payload{}, badRequestCode(fmt.Errorf("photo %s exceeds %d bytes", fh.Filename, s.maxPhotoBytes), ErrCodeRequestTooLarge)
	}
	f, err := fh.Open()
	if err != nil {
		return story.Payload{}, badRequestCode(fmt.Errorf("read photo %s: %w", fh.Filename, err), ErrCodeInvalidMultipart)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, s.maxPhotoBytes+1))
	if err != nil {
		return story.Payload{}, badRequestCode(fmt.Errorf("read photo %s: %w", fh.Filename, err), ErrCodeInvalidMultipart)
	}
	if int64(len(data)) > s.maxPhotoBytes {
		return story.Payload{}, badRequestCode(fmt.Errorf("photo %s exceeds %d bytes", fh.Filename, s.maxPhotoBytes), ErrCodeRequestTooLarge)
	}

	payload := story.Payload{Name: fh.Filename, Data: data}
	if len(data) == 0 {
		// Empty parts are rejected by the story service with its own message.
		return payload, nil
	}
	mimeType, err := sniffImage(data)
	if err != nil {
		return story.Payload{}, badRequestCode(fmt.Errorf("photo %s: %w", fh.Filename, err), ErrCodeUnsupportedImage)
	}
	payload.MimeType = mimeType
	return payload, nil
}

// sniffImage returns the mime type of data if it decodes as a supported
// image format.
func sniffImage(data []byte) (string, error) {
	detected := http.DetectContentType(data)
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("unsupported image content (%s)", detected)
	}
	return "image/" + format, nil
}

// contextFromForm builds a full context for create. Missing fields stay blank
// and are reported by the story service.
func contextFromForm(values map[string][]string) models.StoryContext {
	get := func(field string) string {
		v, _ := formField(values, field)
		return v
	}
	return models.StoryContext{
		Date:    get("date"),
		Place:   get("place"),
		Weather: get("weather"),
		Notes:   get("notes"),
	}
}

// patchFromForm builds replace overrides. An absent field preserves the
// stored value; a present but blank field clears it.
func patchFromForm(values map[string][]string) *models.StoryContextPatch {
	get := func(field string) *string {
		v, ok := formField(values, field)
		if !ok {
			return nil
		}
		return &v
	}
	patch := &models.StoryContextPatch{
		Date:    get("date"),
		Place:   get("place"),
		Weather: get("weather"),
		Notes:   get("notes"),
	}
	if patch.Date == nil && patch.Place == nil && patch.Weather == nil && patch.Notes == nil {
		return nil
	}
	return patch
}

func formField(values map[string][]string, field string) (string, bool) {
	for _, key := range contextFieldAliases[field] {
		if v, ok := values[key]; ok && len(v) > 0 {
			return strings.TrimSpace(v[0]), true
		}
	}
	return "", false
}

func classifyMultipartError(err error) error {
	if err == nil {
		return nil
	}
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) || strings.Contains(strings.ToLower(err.Error()), "request body too large") {
		return badRequestCode(fmt.Errorf("request body too large"), ErrCodeRequestTooLarge)
	}
	return badRequestCode(err, ErrCodeInvalidMultipart)
}

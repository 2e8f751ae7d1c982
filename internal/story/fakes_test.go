package story

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/dae9999nam/Memory-Garden/internal/blobstore"
	"github.com/dae9999nam/Memory-Garden/internal/models"
	"github.com/dae9999nam/Memory-Garden/internal/narrative"
	"github.com/dae9999nam/Memory-Garden/internal/store"
)

var errInjected = errors.New("injected failure")

type memBlob struct {
	data    []byte
	modTime time.Time
}

// memBlobs is an in-memory BlobStore with failure injection.
type memBlobs struct {
	mu    sync.Mutex
	blobs map[string]memBlob
	now   func() time.Time

	puts    int
	deletes int
	// failPutAfter fails every Put once this many have succeeded; <0 disables.
	failPutAfter int
	failDelete   map[string]bool
	failAllDel   bool
	// hangDelete makes Delete wait for its context to end.
	hangDelete   bool
	// onPut runs after a successful Put, outside the lock.
	onPut func()
}

func newMemBlobs() *memBlobs {
	return &memBlobs{blobs: map[string]memBlob{}, now: time.Now, failPutAfter: -1, failDelete: map[string]bool{}}
}

func (m *memBlobs) Put(ctx context.Context, r io.Reader, _ blobstore.PutMetadata) (blobstore.PutResult, error) {
	if err := ctx.Err(); err != nil {
		return blobstore.PutResult{}, err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return blobstore.PutResult{}, err
	}

	m.mu.Lock()
	if m.failPutAfter >= 0 && m.puts >= m.failPutAfter {
		m.mu.Unlock()
		return blobstore.PutResult{}, errInjected
	}
	m.puts++
	id := blobstore.NewBlobID()
	m.blobs[id] = memBlob{data: data, modTime: m.now()}
	hook := m.onPut
	m.mu.Unlock()

	if hook != nil {
		hook()
	}
	sum := sha256.Sum256(data)
	return blobstore.PutResult{BlobID: id, SHA256: hex.EncodeToString(sum[:]), SizeBytes: int64(len(data))}, nil
}

func (m *memBlobs) Open(_ context.Context, blobID string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.blobs[blobID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", blobstore.ErrNotFound, blobID)
	}
	return io.NopCloser(bytes.NewReader(b.data)), nil
}

func (m *memBlobs) Delete(ctx context.Context, blobID string) error {
	m.mu.Lock()
	hang := m.hangDelete
	m.mu.Unlock()
	if hang {
		<-ctx.Done()
		return ctx.Err()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletes++
	if m.failAllDel || m.failDelete[blobID] {
		return errInjected
	}
	delete(m.blobs, blobID)
	return nil
}

func (m *memBlobs) List(ctx context.Context, fn func(blobstore.BlobInfo) error) error {
	m.mu.Lock()
	infos := make([]blobstore.BlobInfo, 0, len(m.blobs))
	for id, b := range m.blobs {
		infos = append(infos, blobstore.BlobInfo{BlobID: id, SizeBytes: int64(len(b.data)), ModTime: b.modTime})
	}
	m.mu.Unlock()
	sort.Slice(infos, func(i, j int) bool { return infos[i].BlobID < infos[j].BlobID })
	for _, info := range infos {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(info); err != nil {
			return err
		}
	}
	return nil
}

func (m *memBlobs) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.blobs)
}

func (m *memBlobs) has(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.blobs[id]
	return ok
}

func (m *memBlobs) setModTime(id string, t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b := m.blobs[id]
	b.modTime = t
	m.blobs[id] = b
}

// memRecords is an in-memory RecordStore with failure injection.
type memRecords struct {
	mu      sync.Mutex
	stories map[string]models.StoryRecord

	failGet    error
	failInsert error
	failUpdate error
	failDelete error
}

func newMemRecords() *memRecords {
	return &memRecords{stories: map[string]models.StoryRecord{}}
}

var _ store.RecordStore = (*memRecords)(nil)

func (m *memRecords) InsertStory(_ context.Context, record *models.StoryRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failInsert != nil {
		return m.failInsert
	}
	if _, ok := m.stories[record.ID]; ok {
		return store.ErrConflict
	}
	m.stories[record.ID] = record.Clone()
	return nil
}

func (m *memRecords) GetStory(_ context.Context, id string) (*models.StoryRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failGet != nil {
		return nil, m.failGet
	}
	record, ok := m.stories[id]
	if !ok {
		return nil, nil
	}
	out := record.Clone()
	return &out, nil
}

func (m *memRecords) UpdateStory(_ context.Context, record *models.StoryRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failUpdate != nil {
		return m.failUpdate
	}
	if _, ok := m.stories[record.ID]; !ok {
		return store.ErrNotFound
	}
	m.stories[record.ID] = record.Clone()
	return nil
}

func (m *memRecords) DeleteStory(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failDelete != nil {
		return m.failDelete
	}
	delete(m.stories, id)
	return nil
}

func (m *memRecords) ListStories(_ context.Context, limit, offset int) ([]models.StoryRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.StoryRecord, 0, len(m.stories))
	for _, record := range m.stories {
		out = append(out, record.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if offset >= len(out) {
		return []models.StoryRecord{}, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (m *memRecords) ListReferencedBlobIDs(context.Context) (map[string]struct{}, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]struct{}{}
	for _, record := range m.stories {
		for _, p := range record.Photos {
			out[p.BlobID] = struct{}{}
		}
	}
	return out, nil
}

func (m *memRecords) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.stories)
}

// fakeGenerator returns text or err and records what it was asked.
type fakeGenerator struct {
	mu      sync.Mutex
	text    string
	err     error
	block   bool
	calls   int
	prompts []string
	images  [][]string
}

var _ narrative.Generator = (*fakeGenerator)(nil)

func (g *fakeGenerator) Generate(ctx context.Context, prompt string, images []string) (string, error) {
	g.mu.Lock()
	g.calls++
	g.prompts = append(g.prompts, prompt)
	g.images = append(g.images, images)
	block, text, err := g.block, g.text, g.err
	g.mu.Unlock()

	if block {
		<-ctx.Done()
		return "", narrative.Timeout("deadline exceeded", ctx.Err())
	}
	if err != nil {
		return "", err
	}
	return text, nil
}

func (g *fakeGenerator) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

type fixture struct {
	blobs   *memBlobs
	records *memRecords
	gen     *fakeGenerator
	coord   *Coordinator
	svc     *Service
}

func newFixture() *fixture {
	f := &fixture{
		blobs:   newMemBlobs(),
		records: newMemRecords(),
		gen:     &fakeGenerator{text: "Once upon a sunny day."},
	}
	f.coord = NewCoordinator(f.blobs, f.records, f.gen, CoordinatorOptions{
		CompensationTimeout: time.Second,
		BlobWriteParallel:   2,
	})
	f.svc = NewService(f.coord, ServiceOptions{})
	return f
}

func photos(n int) []Payload {
	out := make([]Payload, n)
	for i := range out {
		out[i] = Payload{Name: fmt.Sprintf("photo-%d.jpg", i+1), MimeType: "image/jpeg", Data: []byte(fmt.Sprintf("jpeg-bytes-%d", i+1))}
	}
	return out
}

func lisbonContext() models.StoryContext {
	return models.StoryContext{Date: "2024-05-01", Place: "Lisbon", Weather: "Sunny"}
}

package blobstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestLocalStorePutOpenDelete(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("new local store: %v", err)
	}
	ctx := context.Background()

	first, err := store.Put(ctx, bytes.NewBufferString("hello"), PutMetadata{OriginalName: "a.jpg", MimeType: "image/jpeg"})
	if err != nil {
		t.Fatalf("put first: %v", err)
	}
	if !ValidBlobID(first.BlobID) || first.SHA256 == "" || first.SizeBytes != 5 {
		t.Fatalf("unexpected put result: %#v", first)
	}

	second, err := store.Put(ctx, bytes.NewBufferString("hello"), PutMetadata{})
	if err != nil {
		t.Fatalf("put second: %v", err)
	}
	if first.BlobID == second.BlobID {
		t.Fatalf("expected identical payloads to get distinct blob ids: %s", first.BlobID)
	}
	if first.SHA256 != second.SHA256 {
		t.Fatalf("expected identical digests: first=%s second=%s", first.SHA256, second.SHA256)
	}

	rc, err := store.Open(ctx, first.BlobID)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	data, err := io.ReadAll(rc)
	_ = rc.Close()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "hello" {
		t.Fatalf("expected hello, got %q", string(data))
	}

	if err := store.Delete(ctx, first.BlobID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := store.Delete(ctx, first.BlobID); err != nil {
		t.Fatalf("delete missing should be noop: %v", err)
	}
	if _, err := store.Open(ctx, first.BlobID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}

	// The second blob must survive deletion of the first.
	rc, err = store.Open(ctx, second.BlobID)
	if err != nil {
		t.Fatalf("open second: %v", err)
	}
	_ = rc.Close()
}

func TestLocalStoreRejectsInvalidIDs(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("new local store: %v", err)
	}
	for _, id := range []string{"", "../etc/passwd", "not-hex", "ABCDEF0123456789ABCDEF0123456789"} {
		if _, err := store.Open(context.Background(), id); err == nil {
			t.Fatalf("expected open(%q) to fail", id)
		}
		if err := store.Delete(context.Background(), id); err == nil {
			t.Fatalf("expected delete(%q) to fail", id)
		}
	}
}

func TestLocalStorePutHonorsCanceledContext(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("new local store: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := store.Put(ctx, bytes.NewBufferString("x"), PutMetadata{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context canceled, got %v", err)
	}
}

func TestLocalStoreList(t *testing.T) {
	root := t.TempDir()
	store, err := NewLocalStore(root)
	if err != nil {
		t.Fatalf("new local store: %v", err)
	}
	ctx := context.Background()

	want := map[string]int64{}
	for _, payload := range []string{"a", "bb", "ccc"} {
		res, err := store.Put(ctx, bytes.NewBufferString(payload), PutMetadata{})
		if err != nil {
			t.Fatalf("put %q: %v", payload, err)
		}
		want[res.BlobID] = res.SizeBytes
	}
	stray := filepath.Join(root, blobKeyPrefix, "stray.txt")
	if err := os.WriteFile(stray, []byte("x"), 0o644); err != nil {
		t.Fatalf("write stray file: %v", err)
	}

	got := map[string]int64{}
	if err := store.List(ctx, func(info BlobInfo) error {
		got[info.BlobID] = info.SizeBytes
		if info.ModTime.IsZero() {
			t.Fatalf("expected mod time for %s", info.BlobID)
		}
		return nil
	}); err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d blobs, got %d (%v)", len(want), len(got), got)
	}
	for id, size := range want {
		if got[id] != size {
			t.Fatalf("blob %s: expected size %d, got %d", id, size, got[id])
		}
	}
}

func TestBlobKeyRoundTrip(t *testing.T) {
	id := NewBlobID()
	key, err := keyFromID(id)
	if err != nil {
		t.Fatalf("key from id: %v", err)
	}
	back, ok := idFromKey(key)
	if !ok || back != id {
		t.Fatalf("expected %s, got %s (ok=%v)", id, back, ok)
	}
	if _, ok := idFromKey("photos/zz/yy/" + id); ok {
		t.Fatal("expected mismatched fan-out to be rejected")
	}
}

package storage

import (
	"bytes"
	"context"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func newTestLocal(t *testing.T) *Local {
	t.Helper()
	signer := NewURLSigner("test-secret", "http://127.0.0.1:7910")
	backend, err := NewLocal(t.TempDir(), signer)
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	return backend
}

func putObject(t *testing.T, backend Backend, key, payload string) {
	t.Helper()
	if err := backend.Put(context.Background(), key, strings.NewReader(payload), int64(len(payload)), "application/octet-stream"); err != nil {
		t.Fatalf("Put %s: %v", key, err)
	}
}

func TestLocalPutGetRoundTrip(t *testing.T) {
	backend := newTestLocal(t)
	ctx := context.Background()

	putObject(t, backend, "assets/abc/original.mp3", "mp3 bytes")

	reader, err := backend.Get(ctx, "assets/abc/original.mp3")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	data, err := io.ReadAll(reader)
	reader.Close()
	if err != nil {
		t.Fatalf("read object: %v", err)
	}
	if !bytes.Equal(data, []byte("mp3 bytes")) {
		t.Fatalf("unexpected payload: %q", data)
	}

	info, err := backend.Stat(ctx, "assets/abc/original.mp3")
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if info.Size != int64(len("mp3 bytes")) {
		t.Fatalf("unexpected size: %d", info.Size)
	}
	if info.ModTime.IsZero() {
		t.Fatal("expected mod time")
	}
}

func TestLocalPutSizeMismatchFails(t *testing.T) {
	backend := newTestLocal(t)
	err := backend.Put(context.Background(), "assets/abc/original.mp3", strings.NewReader("short"), 99, "")
	if err == nil {
		t.Fatal("expected size mismatch error")
	}
	exists, existsErr := backend.Exists(context.Background(), "assets/abc/original.mp3")
	if existsErr != nil {
		t.Fatalf("Exists: %v", existsErr)
	}
	if exists {
		t.Fatal("failed put must not leave an object behind")
	}
}

func TestLocalPutReplacesExisting(t *testing.T) {
	backend := newTestLocal(t)
	ctx := context.Background()
	putObject(t, backend, "assets/abc/prepared.mp3", "first")
	putObject(t, backend, "assets/abc/prepared.mp3", "second version")

	reader, err := backend.Get(ctx, "assets/abc/prepared.mp3")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	data, _ := io.ReadAll(reader)
	reader.Close()
	if string(data) != "second version" {
		t.Fatalf("expected replacement, got %q", data)
	}
}

func TestLocalGetMissingReturnsErrNotExist(t *testing.T) {
	backend := newTestLocal(t)
	if _, err := backend.Get(context.Background(), "assets/none/original.mp3"); !IsNotExist(err) {
		t.Fatalf("expected ErrNotExist, got %v", err)
	}
	if _, err := backend.Stat(context.Background(), "assets/none/original.mp3"); !IsNotExist(err) {
		t.Fatalf("expected ErrNotExist from Stat, got %v", err)
	}
}

func TestLocalRejectsTraversalKeys(t *testing.T) {
	backend := newTestLocal(t)
	for _, key := range []string{"", "/abs", "a/../b", "a//b", "a/./b", "a\\b", "bad\x00key"} {
		if err := backend.Put(context.Background(), key, strings.NewReader("x"), 1, ""); err == nil {
			t.Fatalf("expected key %q to be rejected", key)
		}
	}
}

func TestLocalListFiltersByPrefix(t *testing.T) {
	backend := newTestLocal(t)
	ctx := context.Background()
	putObject(t, backend, "assets/one/original.mp3", "a")
	putObject(t, backend, "assets/one/peaks.json", "bb")
	putObject(t, backend, "assets/two/original.wav", "ccc")

	objects, err := backend.List(ctx, "assets/one/")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(objects) != 2 {
		t.Fatalf("expected 2 objects, got %v", objects)
	}
	if objects[0].Key != "assets/one/original.mp3" || objects[1].Key != "assets/one/peaks.json" {
		t.Fatalf("unexpected keys: %v", objects)
	}

	all, err := backend.List(ctx, "assets/")
	if err != nil {
		t.Fatalf("List all: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 objects, got %v", all)
	}

	none, err := backend.List(ctx, "assets/zzz/")
	if err != nil {
		t.Fatalf("List missing prefix: %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("expected no objects, got %v", none)
	}
}

func TestLocalDeleteMissingSucceeds(t *testing.T) {
	backend := newTestLocal(t)
	if err := backend.Delete(context.Background(), "assets/none/original.mp3"); err != nil {
		t.Fatalf("Delete missing: %v", err)
	}
}

func TestLocalDeletePrefixRemovesFolder(t *testing.T) {
	backend := newTestLocal(t)
	ctx := context.Background()
	putObject(t, backend, "assets/gone/original.mp3", "a")
	putObject(t, backend, "assets/gone/edits.json", "b")
	putObject(t, backend, "assets/kept/original.mp3", "c")

	if err := backend.DeletePrefix(ctx, "assets/gone/"); err != nil {
		t.Fatalf("DeletePrefix: %v", err)
	}
	remaining, err := backend.List(ctx, "assets/")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(remaining) != 1 || remaining[0].Key != "assets/kept/original.mp3" {
		t.Fatalf("unexpected survivors: %v", remaining)
	}
	if _, err := os.Stat(filepath.Join(backend.Root(), "assets", "gone")); err == nil {
		t.Fatal("expected asset directory to be removed")
	}
}

func TestLocalDeletePrunesEmptyDirectories(t *testing.T) {
	backend := newTestLocal(t)
	ctx := context.Background()
	putObject(t, backend, "assets/solo/original.mp3", "a")
	if err := backend.Delete(ctx, "assets/solo/original.mp3"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := os.Stat(filepath.Join(backend.Root(), "assets", "solo")); err == nil {
		t.Fatal("expected empty directory to be pruned")
	}
	if _, err := os.Stat(backend.Root()); err != nil {
		t.Fatalf("root must survive pruning: %v", err)
	}
}

func TestLocalSignedURLVerifies(t *testing.T) {
	backend := newTestLocal(t)
	signed, err := backend.SignedDownloadURL("assets/abc/preview_0011223344556677.mp3", time.Minute)
	if err != nil {
		t.Fatalf("SignedDownloadURL: %v", err)
	}
	parsed, err := url.Parse(signed)
	if err != nil {
		t.Fatalf("parse signed url: %v", err)
	}
	if !strings.HasPrefix(parsed.Path, "/files/") {
		t.Fatalf("unexpected path: %q", parsed.Path)
	}
	key := strings.TrimPrefix(parsed.Path, "/files/")
	query := parsed.Query()
	if err := backend.Signer().Verify("GET", key, query.Get("exp"), query.Get("sig"), time.Now()); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if err := backend.Signer().Verify("PUT", key, query.Get("exp"), query.Get("sig"), time.Now()); err == nil {
		t.Fatal("download signature must not authorize uploads")
	}
}

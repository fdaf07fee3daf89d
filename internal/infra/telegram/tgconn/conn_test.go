package tgconn

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestPeersCachePathCreatesNestedDir(t *testing.T) {
	t.Parallel()

	// Каталог кэша из конфигурации по умолчанию вложенный (data/peers)
	// и на свежем развёртывании не существует.
	peersDir := filepath.Join(t.TempDir(), "data", "peers")
	opener := NewOpener(context.Background(), 1, "hash", 1, false, peersDir)

	path, err := opener.peersCachePath("main")
	if err != nil {
		t.Fatalf("peersCachePath: %v", err)
	}
	if want := filepath.Join(peersDir, "main.db"); path != want {
		t.Fatalf("path = %q, want %q", path, want)
	}

	info, err := os.Stat(peersDir)
	if err != nil {
		t.Fatalf("cache dir was not created: %v", err)
	}
	if !info.IsDir() {
		t.Fatalf("%s is not a directory", peersDir)
	}
	// По этому пути должен открываться db-файл.
	if err := os.WriteFile(path, []byte("x"), 0o600); err != nil {
		t.Fatalf("cannot create db file in cache dir: %v", err)
	}
}

func TestConnCloseIsIdempotentAndFast(t *testing.T) {
	t.Parallel()

	done := make(chan error, 1)
	done <- nil
	conn := &Conn{
		name:   "main",
		cancel: func() {},
		done:   done,
	}

	if err := conn.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}

	started := time.Now()
	if err := conn.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if elapsed := time.Since(started); elapsed >= stopTimeout {
		t.Fatalf("second Close blocked for %s", elapsed)
	}
}

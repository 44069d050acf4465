package artifact

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	a, err := s.Put(ctx, "game.pgn", "application/x-chess-pgn", []byte("1. e4 e5"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if a.Key == "" || a.Location == "" {
		t.Fatalf("artifact missing key/location: %+v", a)
	}
	if a.Name != "game.pgn" || a.Size != 8 {
		t.Fatalf("unexpected artifact: %+v", a)
	}

	got, err := ReadAll(ctx, s, a)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(got) != "1. e4 e5" {
		t.Fatalf("content mismatch: %q", got)
	}

	if err := s.Release(ctx, a); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if _, err := s.Open(ctx, a); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after release, got %v", err)
	}
	// 두 번 해제해도 에러 없음
	if err := s.Release(ctx, a); err != nil {
		t.Fatalf("second Release: %v", err)
	}
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	exerciseStore(t, s)
	if s.Len() != 0 {
		t.Fatalf("expected empty store, got %d", s.Len())
	}
}

func TestFileStore(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	exerciseStore(t, s)

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected released files to be removed, found %d", len(entries))
	}
}

func TestFileStoreSanitizesName(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	a, err := s.Put(context.Background(), "../../etc/pass wd", "", []byte("x"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	defer s.Release(context.Background(), a)
	if a.ContentType != "application/octet-stream" {
		t.Fatalf("default content type not applied: %q", a.ContentType)
	}
	if _, err := os.Stat(a.Location); err != nil {
		t.Fatalf("artifact file missing: %v", err)
	}
}

func TestRedisStore(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	defer mr.Close()

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	exerciseStore(t, NewRedisStore(rdb, time.Minute))
}

func TestRedisStoreExpires(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	defer mr.Close()

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	s := NewRedisStore(rdb, 30*time.Second)
	ctx := context.Background()

	a, err := s.Put(ctx, "game.pgn", "", []byte("1. d4"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	mr.FastForward(31 * time.Second)
	if _, err := s.Open(ctx, a); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected expired artifact, got %v", err)
	}
}

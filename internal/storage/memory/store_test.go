package memory

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/duckmesh/duckchat/internal/storage"
)

func TestPutGetRoundTrip(t *testing.T) {
	store := New()
	info, err := store.Put(context.Background(), "/datasets/a.parquet", bytes.NewBufferString("abc"), 3, storage.PutOptions{})
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if info.Key != "datasets/a.parquet" || info.Size != 3 || info.ETag == "" {
		t.Fatalf("info = %#v", info)
	}

	reader, err := store.Get(context.Background(), "datasets/a.parquet")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	body, _ := io.ReadAll(reader)
	if string(body) != "abc" {
		t.Fatalf("body = %q", body)
	}
}

func TestMissingObjectIsNotFound(t *testing.T) {
	store := New()
	if _, err := store.Get(context.Background(), "missing"); !errors.Is(err, storage.ErrObjectNotFound) {
		t.Fatalf("Get() error = %v", err)
	}
	ok, err := storage.Exists(context.Background(), store, "missing")
	if err != nil || ok {
		t.Fatalf("Exists() = %v, %v", ok, err)
	}
}

func TestDeleteRemovesObject(t *testing.T) {
	store := New()
	_, _ = store.Put(context.Background(), "k", bytes.NewBufferString("x"), 1, storage.PutOptions{})
	if err := store.Delete(context.Background(), "k"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := store.Stat(context.Background(), "k"); !errors.Is(err, storage.ErrObjectNotFound) {
		t.Fatalf("Stat() error = %v", err)
	}
}

func TestListFiltersByPrefixInKeyOrder(t *testing.T) {
	store := New()
	for _, key := range []string{"datasets/b/2", "datasets/a/1", "other/x", "datasets/b/1"} {
		if _, err := store.Put(context.Background(), key, bytes.NewBufferString("x"), 1, storage.PutOptions{}); err != nil {
			t.Fatalf("Put(%q) error = %v", key, err)
		}
	}
	infos, err := store.List(context.Background(), "datasets/b/")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(infos) != 2 || infos[0].Key != "datasets/b/1" || infos[1].Key != "datasets/b/2" {
		t.Fatalf("List() = %#v", infos)
	}
}

func TestRejectsTraversal(t *testing.T) {
	store := New()
	if _, err := store.Put(context.Background(), "../x", bytes.NewBufferString("x"), 1, storage.PutOptions{}); err == nil {
		t.Fatal("expected traversal error")
	}
}

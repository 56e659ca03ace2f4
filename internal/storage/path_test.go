package storage

import (
	"bytes"
	"context"
	"io"
	"testing"
)

func TestBuildSnapshotPath(t *testing.T) {
	key, err := BuildSnapshotPath("transactions", "0123456789abcdef")
	if err != nil {
		t.Fatalf("BuildSnapshotPath() error = %v", err)
	}
	want := "datasets/transactions/snapshot-0123456789abcdef.parquet"
	if key != want {
		t.Fatalf("BuildSnapshotPath() = %q, want %q", key, want)
	}
}

func TestBuildSnapshotPathRejectsInvalidInput(t *testing.T) {
	if _, err := BuildSnapshotPath("../oops", "0123456789abcdef"); err == nil {
		t.Fatal("expected invalid dataset name error")
	}
	if _, err := BuildSnapshotPath("transactions", "XYZ"); err == nil {
		t.Fatal("expected invalid digest error")
	}
}

func TestExistsMapsNotFound(t *testing.T) {
	store := &statStore{err: ErrObjectNotFound}
	ok, err := Exists(context.Background(), store, "a")
	if err != nil || ok {
		t.Fatalf("Exists() = %v, %v", ok, err)
	}

	store.err = nil
	ok, err = Exists(context.Background(), store, "a")
	if err != nil || !ok {
		t.Fatalf("Exists() = %v, %v", ok, err)
	}
}

func TestReadAll(t *testing.T) {
	store := &statStore{body: []byte("abc")}
	body, err := ReadAll(context.Background(), store, "a")
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if string(body) != "abc" {
		t.Fatalf("ReadAll() = %q", body)
	}
}

type statStore struct {
	err  error
	body []byte
}

func (s *statStore) Put(context.Context, string, io.Reader, int64, PutOptions) (ObjectInfo, error) {
	return ObjectInfo{}, nil
}

func (s *statStore) Get(context.Context, string) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(s.body)), nil
}

func (s *statStore) Stat(_ context.Context, key string) (ObjectInfo, error) {
	if s.err != nil {
		return ObjectInfo{}, s.err
	}
	return ObjectInfo{Key: key}, nil
}

func (s *statStore) Delete(context.Context, string) error {
	return nil
}

func (s *statStore) List(context.Context, string) ([]ObjectInfo, error) {
	return nil, nil
}

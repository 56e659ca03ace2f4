package dataset

import (
	"bytes"
	"context"
	"fmt"

	"github.com/duckmesh/duckchat/internal/storage"
)

// Snapshot locates the parquet copy of a dataset inside an object store.
type Snapshot struct {
	Dataset   string
	ObjectKey string
	Digest    string
	SizeBytes int64
	RowCount  int
	// Columns is the dataset column order, which the parquet file does not keep.
	Columns   []string
}

// Publish encodes ds and uploads it under a content addressed key. An
// existing object with the same digest is reused.
func Publish(ctx context.Context, store storage.ObjectStore, ds *Dataset) (Snapshot, error) {
	if store == nil {
		return Snapshot{}, fmt.Errorf("object store is required")
	}
	encoded, digest, err := EncodeParquet(ds)
	if err != nil {
		return Snapshot{}, err
	}
	key, err := storage.BuildSnapshotPath(ds.Name, digest)
	if err != nil {
		return Snapshot{}, err
	}
	snapshot := Snapshot{
		Dataset:   ds.Name,
		ObjectKey: key,
		Digest:    digest,
		SizeBytes: int64(len(encoded)),
		RowCount:  ds.RowCount(),
		Columns:   ds.ColumnNames(),
	}

	exists, err := storage.Exists(ctx, store, key)
	if err != nil {
		return Snapshot{}, fmt.Errorf("stat snapshot %q: %w", key, err)
	}
	if exists {
		return snapshot, nil
	}
	if _, err := store.Put(ctx, key, bytes.NewReader(encoded), int64(len(encoded)), storage.PutOptions{ContentType: storage.ContentTypeParquet}); err != nil {
		return Snapshot{}, fmt.Errorf("upload snapshot %q: %w", key, err)
	}
	return snapshot, nil
}

// PruneSnapshots deletes every snapshot of the dataset except keep and returns
// the deleted keys.
func PruneSnapshots(ctx context.Context, store storage.ObjectStore, snapshot Snapshot) ([]string, error) {
	if store == nil {
		return nil, fmt.Errorf("object store is required")
	}
	prefix, err := storage.SnapshotPrefix(snapshot.Dataset)
	if err != nil {
		return nil, err
	}
	infos, err := store.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("list snapshots of %q: %w", snapshot.Dataset, err)
	}
	deleted := []string{}
	for _, info := range infos {
		if info.Key == snapshot.ObjectKey || !storage.IsSnapshotKey(info.Key) {
			continue
		}
		if err := store.Delete(ctx, info.Key); err != nil {
			return deleted, fmt.Errorf("delete snapshot %q: %w", info.Key, err)
		}
		deleted = append(deleted, info.Key)
	}
	return deleted, nil
}

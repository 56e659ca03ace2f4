// Package memory provides a process-local ObjectStore used when no S3
// endpoint is configured.
package memory

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/duckmesh/duckchat/internal/storage"
)

type object struct {
	body []byte
	info storage.ObjectInfo
}

type Store struct {
	mu      sync.RWMutex
	objects map[string]object
	now     func() time.Time
}

func New() *Store {
	return &Store{
		objects: map[string]object{},
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) Put(_ context.Context, key string, body io.Reader, _ int64, _ storage.PutOptions) (storage.ObjectInfo, error) {
	normalized, err := normalizeKey(key)
	if err != nil {
		return storage.ObjectInfo{}, err
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return storage.ObjectInfo{}, fmt.Errorf("read object body %q: %w", normalized, err)
	}
	sum := md5.Sum(data)
	info := storage.ObjectInfo{
		Key:          normalized,
		Size:         int64(len(data)),
		ETag:         hex.EncodeToString(sum[:]),
		LastModified: s.now(),
	}

	s.mu.Lock()
	s.objects[normalized] = object{body: data, info: info}
	s.mu.Unlock()
	return info, nil
}

func (s *Store) Get(_ context.Context, key string) (io.ReadCloser, error) {
	obj, err := s.lookup(key)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(obj.body)), nil
}

func (s *Store) Stat(_ context.Context, key string) (storage.ObjectInfo, error) {
	obj, err := s.lookup(key)
	if err != nil {
		return storage.ObjectInfo{}, err
	}
	return obj.info, nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	normalized, err := normalizeKey(key)
	if err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.objects, normalized)
	s.mu.Unlock()
	return nil
}

func (s *Store) List(_ context.Context, prefix string) ([]storage.ObjectInfo, error) {
	prefix = strings.TrimPrefix(prefix, "/")
	s.mu.RLock()
	infos := make([]storage.ObjectInfo, 0, len(s.objects))
	for key, obj := range s.objects {
		if strings.HasPrefix(key, prefix) {
			infos = append(infos, obj.info)
		}
	}
	s.mu.RUnlock()
	sort.Slice(infos, func(i, j int) bool { return infos[i].Key < infos[j].Key })
	return infos, nil
}

func (s *Store) lookup(key string) (object, error) {
	normalized, err := normalizeKey(key)
	if err != nil {
		return object{}, err
	}
	s.mu.RLock()
	obj, ok := s.objects[normalized]
	s.mu.RUnlock()
	if !ok {
		return object{}, storage.ErrObjectNotFound
	}
	return obj, nil
}

func normalizeKey(key string) (string, error) {
	key = strings.TrimSpace(strings.TrimPrefix(key, "/"))
	if key == "" {
		return "", fmt.Errorf("object key is required")
	}
	cleaned := path.Clean(key)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("invalid object key: %q", key)
	}
	return cleaned, nil
}

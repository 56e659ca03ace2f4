package transactions

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"

	"github.com/duckmesh/duckchat/internal/storage"
)

// Sink stores one generated file and reports where it went.
type Sink interface {
	Put(ctx context.Context, name string, body []byte, contentType string) (string, error)
}

type DirSink struct {
	Dir string
}

func (s DirSink) Put(_ context.Context, name string, body []byte, _ string) (string, error) {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	target := filepath.Join(s.Dir, name)
	if err := os.WriteFile(target, body, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", target, err)
	}
	return target, nil
}

// ObjectSink uploads files under Prefix so the API can load them through
// an object store dataset source.
type ObjectSink struct {
	Store  storage.ObjectStore
	Prefix string
}

func (s ObjectSink) Put(ctx context.Context, name string, body []byte, contentType string) (string, error) {
	key := name
	if s.Prefix != "" {
		key = path.Join(s.Prefix, name)
	}
	if _, err := s.Store.Put(ctx, key, bytes.NewReader(body), int64(len(body)), storage.PutOptions{ContentType: contentType}); err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	return key, nil
}

type Summary struct {
	Rows      int
	Locations []string
}

// Write generates cfg.Rows transactions plus the data dictionary and hands
// both files to every sink.
func Write(ctx context.Context, cfg Config, logger *slog.Logger, sinks ...Sink) (Summary, error) {
	if len(sinks) == 0 {
		return Summary{}, fmt.Errorf("at least one sink is required")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	data, err := EncodeTransactions(NewGenerator(cfg.Seed, cfg.StartDate, cfg.Accounts), cfg.Rows)
	if err != nil {
		return Summary{}, err
	}
	dictionary, err := EncodeDictionary()
	if err != nil {
		return Summary{}, err
	}

	summary := Summary{Rows: cfg.Rows}
	for _, sink := range sinks {
		for _, file := range []struct {
			name string
			body []byte
		}{{cfg.DataFile, data}, {cfg.DictionaryFile, dictionary}} {
			location, err := sink.Put(ctx, file.name, file.body, storage.ContentTypeCSV)
			if err != nil {
				return Summary{}, err
			}
			summary.Locations = append(summary.Locations, location)
			logger.Info("wrote demo file", slog.String("location", location), slog.Int("bytes", len(file.body)))
		}
	}
	return summary, nil
}

func EncodeTransactions(g *Generator, rows int) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(Columns); err != nil {
		return nil, err
	}
	for i := 0; i < rows; i++ {
		if err := w.Write(g.Next().Record()); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("encode transactions: %w", err)
	}
	return buf.Bytes(), nil
}

func EncodeDictionary() ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"column_name", "data_type", "description"}); err != nil {
		return nil, err
	}
	if err := w.WriteAll(Dictionary); err != nil {
		return nil, fmt.Errorf("encode dictionary: %w", err)
	}
	return buf.Bytes(), nil
}

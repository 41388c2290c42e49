package storage

import (
	"context"
	"errors"
	"fmt"
	"os"

	jsoniter "github.com/json-iterator/go"
	"github.com/proxy-bench/internal/types"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrEmpty is returned when a store holds no snapshot.
var ErrEmpty = errors.New("proxy store is empty")

// Reader reads a proxy snapshot written by a proxy checker or by hand.
// Benchmark results are never written back.
type Reader interface {
	Read(ctx context.Context) (*types.ProxyList, error)
	Close() error
}

// Open returns the reader for kind: "json" (file path), "sqlite" (database
// path) or "redis" ("host:port" or "host:port/key").
func Open(ctx context.Context, kind, location string) (Reader, error) {
	switch kind {
	case "json":
		return &FileReader{path: location}, nil
	case "sqlite":
		return OpenSQLite(location)
	case "redis":
		return OpenRedis(ctx, location)
	default:
		return nil, fmt.Errorf("unknown proxy store: %s", kind)
	}
}

// FileReader reads a JSON snapshot file.
type FileReader struct {
	path string
}

func (f *FileReader) Read(ctx context.Context) (*types.ProxyList, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", f.path, ErrEmpty)
		}
		return nil, fmt.Errorf("read snapshot file: %w", err)
	}
	return decodeSnapshot(data)
}

func (f *FileReader) Close() error {
	return nil
}

func decodeSnapshot(data []byte) (*types.ProxyList, error) {
	var list types.ProxyList
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &list, nil
}

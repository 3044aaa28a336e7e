package jsonstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/suPer8Hu/germanleap/internal/store"
)

// Blobs is the key/value byte storage underneath the JSON records.
// Get returns store.ErrNotFound for a missing key.
type Blobs interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte) error
	// List returns every key under prefix, sorted.
	List(ctx context.Context, prefix string) ([]string, error)
}

// Disk keeps one file per key under a root directory.
type Disk struct {
	root string
	mu   sync.RWMutex // guards file replacement, not record read-modify-write
}

func NewDiskBlobs(root string) (*Disk, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &Disk{root: root}, nil
}

func (d *Disk) path(key string) string {
	return filepath.Join(d.root, filepath.FromSlash(key))
}

func (d *Disk) Get(ctx context.Context, key string) ([]byte, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	data, err := os.ReadFile(d.path(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

func (d *Disk) Put(ctx context.Context, key string, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	target := d.path(key)
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	// write to a temp file then rename so readers never see a partial record
	tmp, err := os.CreateTemp(dir, filepath.Base(target)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create tmp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write tmp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, target)
}

func (d *Disk) List(ctx context.Context, prefix string) ([]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	entries, err := os.ReadDir(d.path(prefix))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		keys = append(keys, strings.TrimSuffix(prefix, "/")+"/"+e.Name())
	}
	sort.Strings(keys)
	return keys, nil
}

package keystore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/dmitrijs2005/payguard/internal/common"
	"github.com/dmitrijs2005/payguard/internal/filex"
)

// FileName is the key-store file name inside the configured directory.
const FileName = "encryption_keys.dat"

// Backend stores the sealed key-store bytes. Load returns
// common.ErrorNotFound when nothing has been saved yet.
type Backend interface {
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, data []byte) error
	Location() string
}

// FileBackend keeps the key store in a single local file.
type FileBackend struct {
	dir string
}

func NewFileBackend(dir string) *FileBackend {
	if dir == "" {
		dir = "."
	}
	return &FileBackend{dir: dir}
}

func (b *FileBackend) Location() string {
	return filepath.Join(b.dir, FileName)
}

func (b *FileBackend) Load(ctx context.Context) ([]byte, error) {
	data, err := os.ReadFile(b.Location())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("read key store: %w", err)
	}
	return data, nil
}

// Save replaces the key-store file atomically.
func (b *FileBackend) Save(ctx context.Context, data []byte) error {
	if err := filex.EnsureDir(b.dir, 0o700); err != nil {
		return err
	}
	return filex.WriteFileAtomic(b.Location(), data, 0o600)
}

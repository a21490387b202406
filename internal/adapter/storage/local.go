package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/semmidev/dbvault/internal/domain"
)

// LocalStorage is the destination folder archives are written to.
type LocalStorage struct {
	basePath  string
	birthTime func(path string, info fs.FileInfo) time.Time
}

type LocalOption func(*LocalStorage)

// WithBirthTime overrides how a file's creation time is determined.
func WithBirthTime(fn func(path string, info fs.FileInfo) time.Time) LocalOption {
	return func(l *LocalStorage) {
		l.birthTime = fn
	}
}

func NewLocal(basePath string, opts ...LocalOption) *LocalStorage {
	l := &LocalStorage{basePath: basePath, birthTime: birthTime}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Ensure creates the folder and its parents. An existing folder is fine.
func (l *LocalStorage) Ensure() error {
	if err := os.MkdirAll(l.basePath, 0755); err != nil {
		return fmt.Errorf("failed to create backup directory: %w", err)
	}
	return nil
}

func (l *LocalStorage) Exists() (bool, error) {
	info, err := os.Stat(l.basePath)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to stat directory: %w", err)
	}
	return info.IsDir(), nil
}

// ListArchives reads the folder (not recursively) and returns the files
// carrying the given extension in directory order. Files without a known
// creation time get the zero time.
func (l *LocalStorage) ListArchives(ext string) ([]domain.ArchiveFile, error) {
	entries, err := os.ReadDir(l.basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	suffix := "." + strings.TrimPrefix(ext, ".")

	var archives []domain.ArchiveFile
	for _, entry := range entries {
		if !entry.Type().IsRegular() || filepath.Ext(entry.Name()) != suffix {
			continue
		}

		path := filepath.Join(l.basePath, entry.Name())
		var created time.Time
		if info, err := entry.Info(); err == nil {
			created = l.birthTime(path, info)
		}

		archives = append(archives, domain.ArchiveFile{
			Name:      entry.Name(),
			Path:      path,
			CreatedAt: created,
		})
	}

	return archives, nil
}

func (l *LocalStorage) Delete(name string) error {
	if err := os.Remove(filepath.Join(l.basePath, name)); err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

func (l *LocalStorage) GetPath(filename string) string {
	return filepath.Join(l.basePath, filename)
}

package usecase

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/semmidev/dbvault/internal/domain"
)

type fakeDumper struct {
	outputs  map[string]string
	failures map[string]bool
	calls    []string
}

func (f *fakeDumper) Dump(ctx context.Context, database string) (*domain.DumpResult, error) {
	f.calls = append(f.calls, database)
	if f.failures[database] {
		return &domain.DumpResult{
			Stdout:   []byte("partial"),
			Stderr:   []byte("mysqldump: Got error: 1049: Unknown database"),
			ExitCode: 2,
			Duration: time.Millisecond,
		}, fmt.Errorf("%w: exit status 2", domain.ErrDumpFailed)
	}
	return &domain.DumpResult{
		Stdout:   []byte(f.outputs[database]),
		Duration: time.Duration(len(f.outputs[database])) * time.Microsecond,
	}, nil
}

type fakeLister struct {
	databases []string
	err       error
}

func (f *fakeLister) ListDatabases(ctx context.Context) ([]string, error) {
	return f.databases, f.err
}

func (f *fakeLister) Ping(ctx context.Context) error {
	return f.err
}

type fakeStorage struct {
	mu       sync.Mutex
	uploads  []string
	files    []string
	old      []string
	oldErr   error
	deleted  []string
	failWith error
}

func (f *fakeStorage) Upload(ctx context.Context, localPath, remoteName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	if _, err := os.Stat(localPath); err != nil {
		return err
	}
	f.uploads = append(f.uploads, remoteName)
	return nil
}

func (f *fakeStorage) List(ctx context.Context) ([]string, error) {
	return f.files, nil
}

func (f *fakeStorage) Delete(ctx context.Context, remoteName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, remoteName)
	return nil
}

func (f *fakeStorage) GetOldFiles(ctx context.Context, cutoff time.Time) ([]string, error) {
	return f.old, f.oldErr
}

type fakeNotifier struct {
	messages []string
}

func (f *fakeNotifier) Notify(ctx context.Context, message string) error {
	f.messages = append(f.messages, message)
	return nil
}

type recordingReporter struct {
	reports [][]domain.DumpOutcome
}

func (r *recordingReporter) Report(outcomes []domain.DumpOutcome) {
	r.reports = append(r.reports, outcomes)
}

// failingFolder wraps an ArchiveFolder and refuses to delete some names.
type failingFolder struct {
	ArchiveFolder
	refuse map[string]bool
}

func (f *failingFolder) Delete(name string) error {
	if f.refuse[name] {
		return errors.New("permission denied")
	}
	return f.ArchiveFolder.Delete(name)
}

func modTime(_ string, info fs.FileInfo) time.Time {
	return info.ModTime()
}

// writeArchive creates a file whose modification time stands in for its
// creation time.
func writeArchive(t *testing.T, dir, name string, created time.Time) {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(name), 0644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	if err := os.Chtimes(path, created, created); err != nil {
		t.Fatalf("chtimes %s: %v", name, err)
	}
}

func listNames(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	return names
}

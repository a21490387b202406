package usecase

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/semmidev/dbvault/internal/domain"
)

// ErrDestinationUnavailable means the destination folder could not be
// prepared, which no database in the cycle can recover from.
var ErrDestinationUnavailable = errors.New("destination folder unavailable")

const rawExtension = "sql"

type Backup struct {
	dumper        domain.Dumper
	archiver      domain.Archiver
	folder        ArchiveFolder
	retention     *Retention
	uploadTargets []UploadTarget
	logger        Logger
	timeFormat    string
	keepCount     int
	now           func() time.Time
}

type UploadTarget struct {
	Name    string
	Storage domain.Storage
}

// ArchiveFolder is the local destination folder.
type ArchiveFolder interface {
	Ensure() error
	Exists() (bool, error)
	GetPath(filename string) string
	ListArchives(ext string) ([]domain.ArchiveFile, error)
	Delete(name string) error
}

type Logger interface {
	Infof(template string, args ...interface{})
	Errorf(template string, args ...interface{})
	Warnf(template string, args ...interface{})
}

type BackupOptions struct {
	// TimeFormat is a Go reference layout appended to archive names. Empty
	// means archives are named after the database only.
	TimeFormat string
	KeepCount  int
	Now        func() time.Time
}

func NewBackup(
	dumper domain.Dumper,
	archiver domain.Archiver,
	folder ArchiveFolder,
	uploadTargets []UploadTarget,
	logger Logger,
	opts BackupOptions,
) *Backup {
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Backup{
		dumper:        dumper,
		archiver:      archiver,
		folder:        folder,
		retention:     NewRetention(folder, archiver.Extension(), logger),
		uploadTargets: uploadTargets,
		logger:        logger,
		timeFormat:    opts.TimeFormat,
		keepCount:     opts.KeepCount,
		now:           now,
	}
}

// Execute makes one dump attempt for database. A failed attempt returns an
// error and leaves no archive behind.
func (uc *Backup) Execute(ctx context.Context, index int, database string) (*domain.DumpOutcome, error) {
	if err := uc.folder.Ensure(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDestinationUnavailable, err)
	}

	uc.logger.Infof("[%s] Starting dump...", database)

	result, err := uc.dumper.Dump(ctx, database)
	if err != nil {
		uc.logger.Errorf("[%s] Failed to dump database: %v", database, err)
		if result != nil {
			uc.logger.Infof("[%s] STDOUT: %s", database, result.Stdout)
			uc.logger.Infof("[%s] STDERR: %s", database, result.Stderr)
		}
		return nil, fmt.Errorf("dump %s: %w", database, err)
	}

	uc.logger.Infof("[%s] Successfully dumped database (took %d microseconds)",
		database, result.Duration.Microseconds())

	rawName, archiveName := uc.filenames(database)
	archivePath := uc.folder.GetPath(archiveName)

	if err := uc.archiver.Archive(uc.folder.GetPath(rawName), result.Stdout, archivePath); err != nil {
		uc.logger.Errorf("[%s] Failed to archive dump: %v", database, err)
		return nil, fmt.Errorf("archive %s: %w", database, err)
	}

	var size int64
	if info, err := os.Stat(archivePath); err == nil {
		size = info.Size()
	}
	uc.logger.Infof("[%s] Successfully zipped database: %s (%.2f MB)",
		database, archivePath, float64(size)/(1024*1024))

	if len(uc.uploadTargets) > 0 {
		uc.uploadToTargets(ctx, database, archivePath, archiveName)
	}

	if _, err := uc.retention.Execute(ctx, uc.keepCount); err != nil {
		uc.logger.Warnf("[%s] Retention failed: %v", database, err)
	}

	return &domain.DumpOutcome{
		Index:       index,
		Database:    database,
		Duration:    result.Duration,
		Success:     true,
		ArchivePath: archivePath,
		Size:        size,
	}, nil
}

// filenames returns the raw and archive names for one attempt. Both share
// a single timestamp.
func (uc *Backup) filenames(database string) (string, string) {
	base := database
	if uc.timeFormat != "" {
		base = fmt.Sprintf("%s_%s", database, uc.now().Format(uc.timeFormat))
	}
	return base + "." + rawExtension, base + "." + uc.archiver.Extension()
}

func (uc *Backup) uploadToTargets(ctx context.Context, database, filePath, filename string) {
	var wg sync.WaitGroup

	for _, target := range uc.uploadTargets {
		wg.Add(1)
		go func(t UploadTarget) {
			defer wg.Done()

			uc.logger.Infof("[%s] Uploading to %s...", database, t.Name)
			if err := t.Storage.Upload(ctx, filePath, filename); err != nil {
				uc.logger.Errorf("[%s] Failed to upload to %s: %v", database, t.Name, err)
			} else {
				uc.logger.Infof("[%s] Successfully uploaded to %s", database, t.Name)
			}
		}(target)
	}

	wg.Wait()
}

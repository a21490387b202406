package usecase

import (
	"context"
	"fmt"
	"slices"

	"github.com/semmidev/dbvault/internal/domain"
)

// Retention keeps at most a fixed number of archives in the destination
// folder, deleting the oldest by creation time.
type Retention struct {
	folder    ArchiveFolder
	extension string
	logger    Logger
}

func NewRetention(folder ArchiveFolder, extension string, logger Logger) *Retention {
	return &Retention{
		folder:    folder,
		extension: extension,
		logger:    logger,
	}
}

// Execute lists the folder afresh on every call and returns how many
// archives were deleted. Files of other extensions are never touched.
func (uc *Retention) Execute(ctx context.Context, keep int) (int, error) {
	exists, err := uc.folder.Exists()
	if err != nil {
		return 0, err
	}
	if !exists {
		uc.logger.Infof("Directory '%s' does not exist.", uc.folder.GetPath(""))
		return 0, nil
	}

	archives, err := uc.folder.ListArchives(uc.extension)
	if err != nil {
		return 0, fmt.Errorf("list archives: %w", err)
	}

	keep = max(keep, 0)
	if len(archives) <= keep {
		return 0, nil
	}

	// Unknown creation times are zero and therefore sort first.
	slices.SortStableFunc(archives, func(a, b domain.ArchiveFile) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})

	deleted := 0
	for _, archive := range archives[:len(archives)-keep] {
		uc.logger.Infof("Deleting file: %s", archive.Path)
		if err := uc.folder.Delete(archive.Name); err != nil {
			uc.logger.Warnf("Error deleting file %s: %v", archive.Path, err)
			continue
		}
		deleted++
	}

	return deleted, nil
}

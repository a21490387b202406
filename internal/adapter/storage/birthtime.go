package storage

import (
	"io/fs"
	"time"

	"github.com/djherbis/times"
)

// birthTime reads the creation time the platform records for path (statx
// on Linux, st_birthtime on macOS and the BSDs, CreationTime on Windows).
// Platforms or filesystems without one yield the zero time.
func birthTime(path string, _ fs.FileInfo) time.Time {
	ts, err := times.Lstat(path)
	if err != nil || !ts.HasBirthTime() {
		return time.Time{}
	}
	return ts.BirthTime()
}

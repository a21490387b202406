package usecase

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// extractTimestamp recovers the timestamp from an archive named
// <database>_<timestamp>.<ext>. Database names may contain underscores, so
// every split point is tried from the left.
func extractTimestamp(filename, layout string) (time.Time, error) {
	if layout == "" {
		return time.Time{}, fmt.Errorf("archive names carry no timestamp")
	}

	name := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))

	for i := 0; i < len(name); i++ {
		if name[i] != '_' {
			continue
		}
		if ts, err := time.ParseInLocation(layout, name[i+1:], time.Local); err == nil {
			return ts, nil
		}
	}

	return time.Time{}, fmt.Errorf("invalid filename format: no timestamp found")
}

package domain

import "time"

// DumpOutcome is the result of one successful dump attempt within a cycle.
type DumpOutcome struct {
	Index       int
	Database    string
	Duration    time.Duration
	Success     bool
	ArchivePath string
	Size        int64
}

type ArchiveFile struct {
	Name      string
	Path      string
	CreatedAt time.Time
}

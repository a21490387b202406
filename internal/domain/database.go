package domain

import (
	"context"
	"errors"
	"time"
)

var ErrDumpFailed = errors.New("dump failed")

type DatabaseLister interface {
	ListDatabases(ctx context.Context) ([]string, error)
	Ping(ctx context.Context) error
}

// DumpResult carries everything observable about one dump process run.
// Stdout holds the logical dump when ExitCode is zero.
type DumpResult struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
	Duration time.Duration
}

type Dumper interface {
	Dump(ctx context.Context, database string) (*DumpResult, error)
}

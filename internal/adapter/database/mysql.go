package database

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"github.com/semmidev/dbvault/internal/config"
	"github.com/semmidev/dbvault/internal/domain"
)

// MySQLDump runs mysqldump for one database at a time and keeps the dump in
// memory.
type MySQLDump struct {
	server  config.ServerConfig
	command string
	extra   []string
}

func NewMySQLDump(server config.ServerConfig, backup config.BackupConfig) *MySQLDump {
	return &MySQLDump{
		server:  server,
		command: backup.DumpCommand,
		extra:   backup.DumpArgs,
	}
}

func (m *MySQLDump) Args(database string) []string {
	args := []string{
		fmt.Sprintf("--host=%s", m.server.Host),
		fmt.Sprintf("--port=%d", m.server.Port),
		fmt.Sprintf("--user=%s", m.server.Username),
		fmt.Sprintf("--password=%s", m.server.Password),
	}
	args = append(args, m.extra...)
	return append(args, database)
}

func (m *MySQLDump) Dump(ctx context.Context, database string) (*domain.DumpResult, error) {
	var stdout, stderr bytes.Buffer

	cmd := exec.CommandContext(ctx, m.command, m.Args(database)...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start).Truncate(time.Microsecond)

	result := &domain.DumpResult{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		ExitCode: cmd.ProcessState.ExitCode(),
		Duration: elapsed,
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return result, fmt.Errorf("%w: %s exited with status %d", domain.ErrDumpFailed, m.command, exitErr.ExitCode())
		}
		return result, fmt.Errorf("%w: %s: %w", domain.ErrDumpFailed, m.command, err)
	}

	return result, nil
}

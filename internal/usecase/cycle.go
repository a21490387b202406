package usecase

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/semmidev/dbvault/internal/domain"
)

type DumpExecutor interface {
	Execute(ctx context.Context, index int, database string) (*domain.DumpOutcome, error)
}

// Reporter receives the successful outcomes of a cycle, fastest first.
type Reporter interface {
	Report(outcomes []domain.DumpOutcome)
}

type Cycle struct {
	lister    domain.DatabaseLister
	executor  DumpExecutor
	reporter  Reporter
	notifiers []domain.Notifier
	cleanup   *Cleanup
	logger    Logger
	exports   []string
	forgets   []string
}

type CycleOptions struct {
	Exports   []string
	Forgets   []string
	Reporter  Reporter
	Notifiers []domain.Notifier
	Cleanup   *Cleanup
}

func NewCycle(lister domain.DatabaseLister, executor DumpExecutor, logger Logger, opts CycleOptions) *Cycle {
	return &Cycle{
		lister:    lister,
		executor:  executor,
		reporter:  opts.Reporter,
		notifiers: opts.Notifiers,
		cleanup:   opts.Cleanup,
		logger:    logger,
		exports:   opts.Exports,
		forgets:   opts.Forgets,
	}
}

// Execute runs one backup cycle. Databases are dumped one after another and
// a failed database never stops its siblings. Only a listing failure or an
// unusable destination folder ends the cycle early; in the latter case the
// outcomes gathered so far are still reported.
func (uc *Cycle) Execute(ctx context.Context) ([]domain.DumpOutcome, error) {
	start := time.Now()

	available, err := uc.lister.ListDatabases(ctx)
	if err != nil {
		return nil, fmt.Errorf("list databases: %w", err)
	}

	selected := SelectDatabases(available, uc.exports, uc.forgets)
	if len(selected) == 0 {
		uc.logger.Warnf("No databases to dump.")
	} else {
		uc.logger.Infof("Selected %d of %d database(s): %s",
			len(selected), len(available), strings.Join(selected, ", "))
	}

	outcomes := make([]domain.DumpOutcome, 0, len(selected))
	var failed []string
	var aborted error

	for i, database := range selected {
		if err := ctx.Err(); err != nil {
			uc.logger.Warnf("Cycle interrupted before %s: %v", database, err)
			break
		}

		outcome, err := uc.executor.Execute(ctx, i, database)
		if errors.Is(err, ErrDestinationUnavailable) {
			uc.logger.Errorf("Skipping remaining databases: %v", err)
			aborted = err
			break
		}
		if err != nil {
			failed = append(failed, database)
			continue
		}
		outcomes = append(outcomes, *outcome)
	}

	sortByDuration(outcomes)

	if uc.reporter != nil {
		uc.reporter.Report(outcomes)
	}

	uc.logger.Infof("Backup cycle completed in %s: %d succeeded, %d failed",
		time.Since(start).Round(time.Millisecond), len(outcomes), len(failed))

	uc.notify(ctx, summary(outcomes, failed))

	if aborted != nil {
		return outcomes, aborted
	}

	if uc.cleanup != nil {
		if err := uc.cleanup.Execute(ctx); err != nil {
			uc.logger.Errorf("Remote cleanup failed: %v", err)
		}
	}

	return outcomes, nil
}

func (uc *Cycle) notify(ctx context.Context, message string) {
	for _, notifier := range uc.notifiers {
		if err := notifier.Notify(ctx, message); err != nil {
			uc.logger.Errorf("Failed to send cycle summary: %v", err)
		}
	}
}

func sortByDuration(outcomes []domain.DumpOutcome) {
	slices.SortStableFunc(outcomes, func(a, b domain.DumpOutcome) int {
		return cmp.Compare(a.Duration, b.Duration)
	})
}

func summary(outcomes []domain.DumpOutcome, failed []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Backup cycle finished: %d succeeded, %d failed", len(outcomes), len(failed))
	for _, outcome := range outcomes {
		fmt.Fprintf(&b, "\n✅ %s (%d µs)", outcome.Database, outcome.Duration.Microseconds())
	}
	for _, database := range failed {
		fmt.Fprintf(&b, "\n❌ %s", database)
	}
	return b.String()
}

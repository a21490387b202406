package report

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/fatih/color"

	"github.com/semmidev/dbvault/internal/domain"
)

// Table prints cycle outcomes in the order it receives them.
type Table struct {
	out io.Writer
}

func NewTable(out io.Writer) *Table {
	if out == nil {
		out = os.Stdout
	}
	return &Table{out: out}
}

func (t *Table) Report(outcomes []domain.DumpOutcome) {
	header := color.New(color.FgCyan, color.Bold)
	name := color.New(color.FgGreen)

	w := tabwriter.NewWriter(t.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, header.Sprint("Index")+"\t"+header.Sprint("Database Name")+"\t"+header.Sprint("Export Duration (µs)"))

	for _, outcome := range outcomes {
		fmt.Fprintf(w, "%d\t%s\t%d\n",
			outcome.Index+1, name.Sprint(outcome.Database), outcome.Duration.Microseconds())
	}

	if len(outcomes) == 0 {
		fmt.Fprintln(w, color.YellowString("-\tno databases exported\t-"))
	}

	_ = w.Flush()
}

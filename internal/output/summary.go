package output

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
)

var summaryRows = []struct {
	label   string
	counter Counter
}{
	{"Organizations processed", OrgsProcessed},
	{"Organizations skipped", OrgsSkipped},
	{"Projects processed", ProjectsProcessed},
	{"Projects skipped", ProjectsSkipped},
	{"Repositories processed", ReposProcessed},
	{"Units skipped", UnitsSkipped},
	{"Units failed", UnitsFailed},
}

// PrintSummary writes the execution summary table. The status line is
// colored when w is a terminal.
func PrintSummary(w io.Writer, s Summary) {
	bold := color.New(color.Bold)
	fmt.Fprintln(w)
	bold.Fprintln(w, "EXECUTION SUMMARY")

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Metric", "Value"})
	for _, r := range summaryRows {
		table.Append([]string{r.label, strconv.Itoa(s.Counters[r.counter])})
	}
	for _, k := range s.ErrorKinds() {
		table.Append([]string{"Errors: " + k.String(), strconv.Itoa(s.Errors[k])})
	}
	table.Append([]string{"Rows written", strconv.Itoa(s.RowsWritten)})
	table.Append([]string{"Elapsed", s.Elapsed.Truncate(time.Millisecond).String()})
	if orgs := s.Counters[OrgsProcessed]; orgs > 0 {
		table.Append([]string{"Average per organization", (s.Elapsed / time.Duration(orgs)).Truncate(time.Millisecond).String()})
	}
	if s.OutputFile != "" {
		table.Append([]string{"Output file", s.OutputFile})
	}
	if s.LogFile != "" {
		table.Append([]string{"Log file", s.LogFile})
	}
	table.Render()

	switch {
	case s.Aborted:
		color.New(color.FgRed, color.Bold).Fprintln(w, "Run aborted: no rows were written.")
	case s.Counters[UnitsFailed] > 0 || s.Counters[UnitsSkipped] > 0 || s.Counters[OrgsSkipped] > 0:
		color.New(color.FgYellow).Fprintln(w, "Completed with partial results; see the log file for details.")
	default:
		color.New(color.FgGreen).Fprintln(w, "Completed.")
	}
}

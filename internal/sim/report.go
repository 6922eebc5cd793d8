/*
Package sim
File: report.go
Description:
    The console count table printed by headless runs.
*/

package sim

import (
	"fmt"
	"io"
	"strings"

	"github.com/everforgeworks/outbreak/internal/world"
)

var reportColumns = []string{"timestep", "healthy", "infected", "recovered", "dead"}

// WriteReportHeader prints the column titles and a rule for the count table.
func WriteReportHeader(w io.Writer) error {
	titles := make([]string, len(reportColumns))
	for i, c := range reportColumns {
		titles[i] = fmt.Sprintf("%12s", c)
	}
	if _, err := fmt.Fprintln(w, strings.Join(titles, " ")); err != nil {
		return err
	}
	return WriteReportRule(w)
}

// WriteReportRule prints a dashed separator as wide as the table.
func WriteReportRule(w io.Writer) error {
	rules := make([]string, len(reportColumns))
	for i := range rules {
		rules[i] = strings.Repeat("-", 12)
	}
	_, err := fmt.Fprintln(w, strings.Join(rules, " "))
	return err
}

// WriteReportRow prints one line of the count table for a snapshot.
func WriteReportRow(w io.Writer, snap world.Snapshot) error {
	c := snap.Counts
	_, err := fmt.Fprintf(w, "%12d %12d %12d %12d %12d\n", snap.Step, c.Healthy, c.Infected, c.Recovered, c.Dead)
	return err
}

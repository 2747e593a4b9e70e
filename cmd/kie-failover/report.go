package main

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/kiegroup/kie-cloud-tests/test/failover"
)

func renderResult(result *failover.Result) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.Style().Format.Footer = text.FormatDefault
	t.AppendHeader(table.Row{"#", "Step", "Duration", "Result"})

	for i, step := range failover.Steps {
		row := table.Row{i + 1, step.Name, "", text.FgHiBlack.Sprint("SKIPPED")}
		if i < len(result.Steps) {
			sr := result.Steps[i]
			row[2] = sr.Duration.Round(time.Millisecond).String()
			if sr.Err != nil {
				row[3] = text.FgRed.Sprint("FAILED")
			} else {
				row[3] = text.FgGreen.Sprint("PASSED")
			}
		}
		t.AppendRow(row)
	}

	t.AppendFooter(table.Row{"", "async signal", "", result.Signal.Outcome.String()})
	return t.Render()
}

func printResult(w io.Writer, result *failover.Result) {
	fmt.Fprintln(w, renderResult(result))
	for _, sr := range result.Steps {
		if sr.Err != nil {
			fmt.Fprintf(w, "\nStep %d (%s) failed: %v\n", sr.Step, sr.Name, sr.Err)
		}
	}
}

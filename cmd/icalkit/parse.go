package main

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"icalkit/internal/ics"
	"icalkit/pkg/ical"
)

var (
	parseCanonical bool
	parseTimezone  string
	lintSamples    int
)

var parseCmd = &cobra.Command{
	Use:   "parse FILE...",
	Short: "Parse calendars and list their events",
	Long: `Parse one or more .ics files ("-" reads stdin) and print a summary of
every event. With --canonical the re-serialized calendar is printed instead.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runParse,
}

var lintCmd = &cobra.Command{
	Use:   "lint FILE...",
	Short: "Validate calendars and cross-check them against reference libraries",
	Long: `Validate one or more .ics files against RFC5545 component rules, then
re-read them with golang-ical and re-expand their recurrence rules with
rrule-go, reporting every disagreement.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runLint,
}

func init() {
	parseCmd.Flags().BoolVar(&parseCanonical, "canonical", false, "Print the re-serialized calendar")
	parseCmd.Flags().StringVar(&parseTimezone, "timezone", "", "Display timezone for event starts (default: local)")
	lintCmd.Flags().IntVar(&lintSamples, "samples", 50, "Occurrences compared per recurrence rule")
	rootCmd.AddCommand(parseCmd, lintCmd)
}

func runParse(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	loc, err := displayLocation(parseTimezone)
	if err != nil {
		return err
	}
	for _, path := range args {
		cal, _, err := parseFile(cmd, path)
		if err != nil {
			return err
		}
		if parseCanonical {
			fmt.Fprint(out, cal.String())
			continue
		}
		printSummary(out, path, cal, loc)
	}
	return nil
}

// printSummary lists the events of cal with their start in loc.
func printSummary(w io.Writer, path string, cal *ical.Component, loc *time.Location) {
	events := ics.EventsOf(ics.Source{ID: path, Path: path}, cal)
	fmt.Fprintf(w, "%s: %s, %d events, %d timezones\n",
		dayStyle.Render(path), cal.Text("PRODID"), len(cal.Events()), len(cal.Timezones()))
	for _, pe := range events {
		ev := pe.Model(loc)
		start := ev.Start.Format("2006-01-02 15:04 MST")
		if ev.AllDay {
			start = ev.Start.Format("2006-01-02")
		}
		line := fmt.Sprintf("  %s  %s  %s", start, ev.UID, ev.Summary)
		if pe.RRule != nil {
			line += "  " + movedStyle.Render("RRULE:"+pe.RRule.String())
		}
		if pe.IsOverride {
			line += "  " + movedStyle.Render("(override)")
		}
		fmt.Fprintln(w, line)
	}
}

func runLint(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	failed := false
	for _, path := range args {
		problems, err := lintFile(cmd, path)
		if err != nil {
			fmt.Fprintln(out, errorStyle.Render(path+": "+err.Error()))
			failed = true
			continue
		}
		if len(problems) == 0 {
			fmt.Fprintln(out, okStyle.Render(path+": ok"))
			continue
		}
		failed = true
		for _, p := range problems {
			fmt.Fprintln(out, errorStyle.Render(path+": ")+p)
		}
	}
	if failed {
		return errors.New("lint found problems")
	}
	return nil
}

// lintFile returns one line per problem found in path.
func lintFile(cmd *cobra.Command, path string) ([]string, error) {
	cal, body, err := parseFile(cmd, path)
	if err != nil {
		return nil, err
	}
	var problems []string
	if err := ical.Validate(cal, nil); err != nil {
		problems = append(problems, err.Error())
	}
	events := ics.EventsOf(ics.Source{ID: path, Path: path}, cal)
	discrepancies, err := ics.CrossCheck(body, events, lintSamples)
	if err != nil {
		return nil, err
	}
	for _, d := range discrepancies {
		problems = append(problems, d.String())
	}
	return problems, nil
}

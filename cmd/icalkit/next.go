package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"icalkit/internal/ics"
	"icalkit/pkg/caltime"
	"icalkit/pkg/recur"
)

var (
	nextRule  string
	nextStart string
	nextAfter string
	nextCount int
	nextUID   string
)

var nextCmd = &cobra.Command{
	Use:   "next [FILE]",
	Short: "Print upcoming occurrences of a recurrence rule",
	Long: `Print the next occurrences of a recurrence rule, either given directly
with --rule and --start, or taken from the recurring events of FILE.`,
	Example: `  icalkit next --rule "FREQ=MONTHLY;BYDAY=1FR" --start 20240105T090000 -n 3
  icalkit next team.ics --uid standup@example.com --after 20240301T000000Z`,
	Args: cobra.MaximumNArgs(1),
	RunE: runNext,
}

func init() {
	nextCmd.Flags().StringVar(&nextRule, "rule", "", "RRULE value, e.g. FREQ=WEEKLY;BYDAY=MO")
	nextCmd.Flags().StringVar(&nextStart, "start", "", "DTSTART of the rule (DATE or DATE-TIME)")
	nextCmd.Flags().StringVar(&nextAfter, "after", "", "Only list occurrences after this instant (default: now)")
	nextCmd.Flags().IntVarP(&nextCount, "count", "n", 5, "Number of occurrences")
	nextCmd.Flags().StringVar(&nextUID, "uid", "", "Only this event (file mode)")
	rootCmd.AddCommand(nextCmd)
}

func runNext(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	after, err := afterInstant(nextAfter, time.Now())
	if err != nil {
		return err
	}

	if len(args) == 0 {
		if nextRule == "" || nextStart == "" {
			return errors.New("either FILE or both --rule and --start are required")
		}
		occ, err := nextOccurrences(nextRule, nextStart, after, nextCount)
		if err != nil {
			return err
		}
		for _, o := range occ {
			fmt.Fprintln(out, o)
		}
		return nil
	}

	cal, _, err := parseFile(cmd, args[0])
	if err != nil {
		return err
	}
	found := false
	for _, ev := range cal.Events() {
		if nextUID != "" && ev.UID() != nextUID {
			continue
		}
		rule := ev.Recurrence()
		if rule == nil {
			continue
		}
		found = true
		fmt.Fprintln(out, dayStyle.Render(ev.UID())+" "+ev.Summary())
		for _, o := range rule.WithZones(ics.IANAZones).NextN(after, nextCount) {
			fmt.Fprintln(out, "  "+o.String())
		}
	}
	if !found {
		return errors.New("no recurring events found")
	}
	return nil
}

// nextOccurrences anchors rule at start and returns n occurrences after
// `after`.
func nextOccurrences(rule, start string, after caltime.Instant, n int) ([]caltime.Instant, error) {
	r, err := recur.Parse(rule)
	if err != nil {
		return nil, err
	}
	s, err := parseInstant(start)
	if err != nil {
		return nil, fmt.Errorf("--start: %w", err)
	}
	return r.Anchor(s, recur.Bounds{}).NextN(after, n), nil
}

func parseInstant(s string) (caltime.Instant, error) {
	if len(s) == 8 {
		return caltime.ParseDate(s)
	}
	return caltime.ParseDateTime(s)
}

// afterInstant parses s, defaulting to now as UTC.
func afterInstant(s string, now time.Time) (caltime.Instant, error) {
	if s == "" {
		return caltime.UTC(now), nil
	}
	t, err := parseInstant(s)
	if err != nil {
		return caltime.Instant{}, fmt.Errorf("--after: %w", err)
	}
	return t, nil
}

package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/muesli/reflow/truncate"
	"github.com/muesli/reflow/wordwrap"
	"github.com/spf13/cobra"

	"icalkit/internal/config"
	"icalkit/internal/ics"
	"icalkit/internal/model"
)

var (
	agendaDays     int
	agendaBackfill int
	agendaTimezone string
	agendaDetails  bool
)

const (
	summaryWidth = 60
	detailIndent = "              "
)

var agendaCmd = &cobra.Command{
	Use:   "agenda [FILE...]",
	Short: "Print upcoming occurrences grouped by day",
	Long: `Expand the given .ics files, or the sources of the config file when no
files are given, and print the occurrences in the coming days.`,
	RunE: runAgenda,
}

func init() {
	addAgendaFlags(agendaCmd)
	rootCmd.AddCommand(agendaCmd)
}

func addAgendaFlags(cmd *cobra.Command) {
	cmd.Flags().IntVar(&agendaDays, "days", 0, "Days ahead (default: config horizon_days)")
	cmd.Flags().IntVar(&agendaBackfill, "backfill", -1, "Past days to include (default: config backfill_days)")
	cmd.Flags().StringVar(&agendaTimezone, "tz", "", "Display timezone (default: config timezone)")
	cmd.Flags().BoolVar(&agendaDetails, "details", false, "Print event descriptions")
}

func runAgenda(cmd *cobra.Command, args []string) error {
	cfg, sources, err := agendaSources(args)
	if err != nil {
		return err
	}
	return printAgenda(cmd.Context(), cmd.OutOrStdout(), cfg, sources, time.Now())
}

// agendaSources uses files when given and the config file otherwise.
func agendaSources(files []string) (*config.Config, []ics.Source, error) {
	if len(files) > 0 {
		cfg := config.DefaultConfig()
		cfg.Timezone = ""
		sources := make([]ics.Source, len(files))
		for i, f := range files {
			sources[i] = ics.Source{ID: f, Path: f}
		}
		return cfg, sources, nil
	}
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	return cfg, ics.SourcesFromConfig(cfg.Sources), nil
}

func printAgenda(ctx context.Context, w io.Writer, cfg *config.Config, sources []ics.Source, now time.Time) error {
	if ctx == nil {
		ctx = context.Background()
	}
	tzName := cfg.Timezone
	if agendaTimezone != "" {
		tzName = agendaTimezone
	}
	loc, err := displayLocation(tzName)
	if err != nil {
		return err
	}
	days := cfg.HorizonDays
	if agendaDays > 0 {
		days = agendaDays
	}
	backfill := cfg.BackfillDays
	if agendaBackfill >= 0 {
		backfill = agendaBackfill
	}
	opts, err := parseOptions(cfg)
	if err != nil {
		return err
	}

	results, errs := ics.NewLoader(cfg.CacheDir).LoadAll(ctx, sources)
	var events []ics.ParsedEvent
	for _, res := range results {
		parsed, err := ics.ParseICS(res.Source, res.Body, opts...)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", res.Source.ID, err))
			continue
		}
		events = append(events, parsed...)
	}

	local := now.In(loc)
	today := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	res, err := ics.ExpandOccurrences(events, ics.ExpandConfig{
		DisplayLocation:        loc,
		RangeStart:             today.AddDate(0, 0, -backfill),
		RangeEnd:               today.AddDate(0, 0, days+1),
		MaxOccurrencesPerEvent: cfg.MaxOccurrences,
	})
	if err != nil {
		return err
	}

	renderAgenda(w, res.Occurrences, agendaDetails)
	for _, err := range errs {
		fmt.Fprintln(w, errorStyle.Render(err.Error()))
	}
	return nil
}

// renderAgenda prints occurrences, already sorted and in the display
// zone, under one heading per day. Long summaries are cut at
// summaryWidth.
func renderAgenda(w io.Writer, occs []model.Occurrence, details bool) {
	if len(occs) == 0 {
		fmt.Fprintln(w, "No events.")
		return
	}
	var current string
	for _, o := range occs {
		day := o.Start.Format("Mon Jan 2 2006")
		if day != current {
			if current != "" {
				fmt.Fprintln(w)
			}
			fmt.Fprintln(w, dayStyle.Render(day))
			current = day
		}

		when := "all day"
		if n := spanDays(o); o.AllDay && n > 1 {
			when = fmt.Sprintf("all day (%d days)", n)
		}
		if !o.AllDay {
			when = o.Start.Format("15:04") + "-" + o.End.Format("15:04")
		}
		line := timeStyle.Render(when) + truncate.StringWithTail(o.Summary, summaryWidth, "...")
		if o.Location != "" {
			line += " " + locationStyle.Render("@ "+o.Location)
		}
		if o.Overridden {
			line += " " + movedStyle.Render("(moved)")
		}
		fmt.Fprintln(w, line)
		if details && o.Description != "" {
			for _, l := range strings.Split(wordwrap.String(o.Description, summaryWidth), "\n") {
				fmt.Fprintln(w, detailIndent+l)
			}
		}
	}
}


// spanDays counts the calendar days an occurrence covers, rounding so a
// DST shift inside the span does not lose a day.
func spanDays(o model.Occurrence) int {
	return int((o.Duration() + 12*time.Hour) / (24 * time.Hour))
}

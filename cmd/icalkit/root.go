package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"icalkit/internal/config"
	"icalkit/internal/ics"
	appLog "icalkit/internal/log"
	"icalkit/pkg/ical"
)

const version = "0.1.0"

var (
	cfgFile  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "icalkit",
	Short: "Parse, expand and serve RFC5545 calendars",
	Long: `icalkit reads iCalendar (.ics) data, expands recurring events with
timezone-aware recurrence rules, and serves the result over HTTP.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		appLog.SetLevel(appLog.ParseLevel(logLevel))
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "/etc/icalkit/config.yaml", "Path to config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, error)")
}

// loadConfig loads the config file named by --config.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", cfgFile)
		return nil, err
	}
	appLog.Debug("effective config",
		"listen", cfg.Listen,
		"timezone", cfg.Timezone,
		"refresh", cfg.RefreshCron,
		"horizon_days", cfg.HorizonDays,
		"source_count", len(cfg.Sources),
	)
	return cfg, nil
}

// parseOptions turns config into parser options shared by every source.
func parseOptions(cfg *config.Config) ([]ical.ParseOption, error) {
	if cfg == nil || cfg.TimezoneFile == "" {
		return nil, nil
	}
	tz, err := ics.LoadTimezones(cfg.TimezoneFile)
	if err != nil {
		return nil, err
	}
	return []ical.ParseOption{ical.WithTimezoneCalendar(tz)}, nil
}

// readInput reads path, or stdin for "-".
func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(path)
}

// parseFile reads and parses one calendar, resolving unknown TZIDs
// against the IANA database.
func parseFile(cmd *cobra.Command, path string, opts ...ical.ParseOption) (*ical.Component, []byte, error) {
	body, err := readInput(cmd, path)
	if err != nil {
		return nil, nil, err
	}
	opts = append([]ical.ParseOption{ical.WithZoneFallback(ics.IANAZones)}, opts...)
	cal, err := ical.Parse(string(body), opts...)
	if err != nil {
		return nil, body, fmt.Errorf("%s: %w", path, err)
	}
	return cal, body, nil
}

func displayLocation(name string) (*time.Location, error) {
	if name == "" {
		return time.Local, nil
	}
	return time.LoadLocation(name)
}

package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"icalkit/internal/ics"
	appLog "icalkit/internal/log"
	"icalkit/internal/web"
)

var serveListen string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve expanded events and a merged calendar over HTTP",
	Long: `Load the configured sources, refresh them on the configured cron
schedule, and serve /api/events, /api/calendar.ics and /api/refresh.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveListen, "listen", "", "HTTP listen address (overrides config if set)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serveListen != "" {
		cfg.Listen = serveListen
	}
	opts, err := parseOptions(cfg)
	if err != nil {
		return err
	}

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	srv := web.NewServer(cfg, ics.NewLoader(cfg.CacheDir), opts...)
	if err := srv.Refresh(ctx); err != nil {
		appLog.Error("initial refresh had failures", err)
	}

	c := cron.New()
	if _, err := c.AddFunc(cfg.RefreshCron, func() {
		if err := srv.Refresh(ctx); err != nil {
			appLog.Error("scheduled refresh had failures", err)
		}
	}); err != nil {
		return err
	}
	c.Start()
	defer func() {
		<-c.Stop().Done()
	}()

	appLog.Info("icalkit serving", "version", version, "refresh", cfg.RefreshCron, "source_count", len(cfg.Sources))
	err = web.StartServer(ctx, srv)
	appLog.Info("icalkit exiting")
	return err
}

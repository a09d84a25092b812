package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"icalkit/internal/config"
	"icalkit/pkg/ical"
)

var (
	replyUID      string
	replyAttendee string
	replyStatus   string
	replyName     string
)

var replyCmd = &cobra.Command{
	Use:   "reply FILE",
	Short: "Answer an invitation with a METHOD:REPLY calendar",
	Args:  cobra.ExactArgs(1),
	RunE:  runReply,
}

func init() {
	replyCmd.Flags().StringVar(&replyUID, "uid", "", "UID of the event to answer (default: the only event)")
	replyCmd.Flags().StringVar(&replyAttendee, "attendee", "", "Attendee address, e.g. mailto:me@example.com")
	replyCmd.Flags().StringVar(&replyStatus, "status", string(ical.Accepted), "ACCEPTED, DECLINED, TENTATIVE, ...")
	replyCmd.Flags().StringVar(&replyName, "name", "", "Common name of the attendee")
	_ = replyCmd.MarkFlagRequired("attendee")
	rootCmd.AddCommand(replyCmd)
}

func runReply(cmd *cobra.Command, args []string) error {
	cal, _, err := parseFile(cmd, args[0])
	if err != nil {
		return err
	}
	ev, err := pickEvent(cal, replyUID)
	if err != nil {
		return err
	}
	attendee := replyAttendee
	if !strings.Contains(attendee, ":") {
		attendee = "mailto:" + attendee
	}
	prod := config.DefaultConfig().ProdID
	reply := ev.Reply(attendee, ical.PartStat(strings.ToUpper(replyStatus)), ical.ReplyOptions{
		CN:       replyName,
		Calendar: []ical.CalendarOption{ical.WithProdID(prod.Vendor, prod.Product)},
	})
	fmt.Fprint(cmd.OutOrStdout(), reply.String())
	return nil
}

func pickEvent(cal *ical.Component, uid string) (*ical.Event, error) {
	events := cal.Events()
	if uid == "" {
		if len(events) != 1 {
			return nil, fmt.Errorf("calendar holds %d events; pick one with --uid", len(events))
		}
		return events[0], nil
	}
	for _, ev := range events {
		if ev.UID() == uid {
			return ev, nil
		}
	}
	return nil, fmt.Errorf("no event with UID %q", uid)
}

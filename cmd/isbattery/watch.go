package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/isbattery/isbattery/pkg/events"
)

func NewWatchCommand() *cobra.Command {
	var (
		asJSON       bool
		lowThreshold int
	)

	cmd := &cobra.Command{
		Use:     "watch",
		GroupID: gBasic,
		Short:   "Print power status changes as they happen",
		Long: `Subscribe to the daemon's event stream and print every published event.

The current status is printed first. Press Ctrl-C to stop.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if !cmd.Flags().Changed("low-threshold") {
				if conf, err := apiClient.GetConfig(); err == nil && conf.LowBatteryThreshold != nil {
					lowThreshold = *conf.LowBatteryThreshold
				}
			}

			w := cmd.OutOrStdout()
			err := apiClient.WatchEvents(ctx, func(e events.Event) error {
				if asJSON {
					return printEventJSON(w, e)
				}
				printEvent(w, e, lowThreshold)
				return nil
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("failed to watch events: %w", err)
			}
			logrus.Info("daemon closed the event stream")
			return nil
		},
	}

	f := cmd.Flags()
	f.BoolVar(&asJSON, "json", false, "print one JSON object per event")
	f.IntVar(&lowThreshold, "low-threshold", 20, "low battery threshold for alerts (defaults to the daemon's)")

	return cmd
}

func printEventJSON(w io.Writer, e events.Event) error {
	b, err := json.Marshal(struct {
		Event string          `json:"event"`
		Data  json.RawMessage `json:"data"`
	}{e.Name, e.Data})
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}

func printEvent(w io.Writer, e events.Event, lowThreshold int) {
	ev, err := events.DecodeAs[events.MonitorEvent](e)
	if err != nil {
		logrus.WithField("event", e.Name).Warnf("failed to decode event: %v", err)
		return
	}

	fmt.Fprintf(w, "%s %s\n", color.New(color.Faint).Sprint(time.Now().Format(time.TimeOnly)), eventTitle(ev.Kind))
	if ev.Kind != events.StatusUpdate {
		return
	}
	printSnapshot(w, ev.Snapshot)
	if a := alertOf(ev.Snapshot, lowThreshold); a != nil {
		fmt.Fprintf(w, "  Alert: %s\n", color.New(color.Bold, color.FgYellow).Sprint(a.Message))
	}
	fmt.Fprintln(w)
}

func eventTitle(k events.Kind) string {
	switch k {
	case events.StatusUpdate:
		return bold("status update")
	case events.ACConnected:
		return color.New(color.Bold, color.FgGreen).Sprint("power adapter connected")
	case events.ACDisconnected:
		return color.New(color.Bold, color.FgYellow).Sprint("power adapter disconnected")
	case events.BatteryLow:
		return color.New(color.Bold, color.FgRed).Sprint("battery low")
	case events.BatteryNormal:
		return color.New(color.Bold, color.FgGreen).Sprint("battery no longer low")
	default:
		return string(k)
	}
}

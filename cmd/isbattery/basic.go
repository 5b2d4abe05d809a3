package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/isbattery/isbattery/pkg/version"
)

func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print version",
		Annotations: map[string]string{annotationLocal: "true"},
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("%s %s\n", version.Version, version.GitCommit)
		},
	}
}

func NewPauseCommand() *cobra.Command {
	return newActionCommand(
		"pause",
		"Pause monitoring",
		`Pause monitoring.

The daemon stops polling and publishing until resumed. The last status stays available.`,
		"monitoring paused",
		func() (string, error) { return apiClient.Pause() },
	)
}

func NewResumeCommand() *cobra.Command {
	return newActionCommand(
		"resume",
		"Resume monitoring",
		`Resume monitoring.

Polling restarts on the next tick.`,
		"monitoring resumed",
		func() (string, error) { return apiClient.Resume() },
	)
}

func NewRefreshCommand() *cobra.Command {
	return newActionCommand(
		"refresh",
		"Publish the power status on the next poll",
		`Publish the power status on the next poll, even if it did not change.`,
		"refresh requested",
		func() (string, error) { return apiClient.Refresh() },
	)
}

func NewSetIntervalCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "set-interval [seconds]",
		Short:   "Set the poll interval",
		GroupID: gAdvanced,
		Long: `Set the poll interval in seconds.

The new interval takes effect after the next poll and is saved to the config file.`,
		RunE: func(_ *cobra.Command, args []string) error {
			secs, err := parseIntArg(args, "interval")
			if err != nil {
				return err
			}

			ret, err := apiClient.SetCheckInterval(secs)
			if err != nil {
				return fmt.Errorf("failed to set check interval: %w", err)
			}

			if ret != "" {
				logrus.Infof("daemon responded: %s", ret)
			}

			logrus.Infof("successfully set check interval to %ds", secs)

			return nil
		},
	}
}

func NewSetLowThresholdCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "set-low-threshold [percentage]",
		Short:   "Set the low battery threshold",
		GroupID: gAdvanced,
		Long: `Set the low battery threshold.

This is a percentage from 0 to 100. At or below it, status reports a low battery alert.`,
		RunE: func(_ *cobra.Command, args []string) error {
			pct, err := parseIntArg(args, "threshold")
			if err != nil {
				return err
			}

			ret, err := apiClient.SetLowBatteryThreshold(pct)
			if err != nil {
				return fmt.Errorf("failed to set low battery threshold: %w", err)
			}

			if ret != "" {
				logrus.Infof("daemon responded: %s", ret)
			}

			logrus.Infof("successfully set low battery threshold to %d%%", pct)

			return nil
		},
	}
}

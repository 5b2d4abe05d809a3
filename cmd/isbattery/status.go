package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/isbattery/isbattery/pkg/client"
	"github.com/isbattery/isbattery/pkg/config"
	"github.com/isbattery/isbattery/pkg/monitor"
	"github.com/isbattery/isbattery/pkg/powerinfo"
	"github.com/isbattery/isbattery/pkg/utils/ptr"
)

type statusData struct {
	status *monitor.Status
	config *config.RawFileConfig
}

type statusJSON struct {
	*monitor.Status
	Configuration *config.RawFileConfig `json:"configuration"`
}

// fetchStatusData gathers all data required for the status command from the daemon.
func fetchStatusData() (*statusData, error) {
	st, err := apiClient.GetStatus()
	// A daemon that has not read the power status yet still reports its state.
	if err != nil && (st == nil || !errors.Is(err, client.ErrUnavailable)) {
		return nil, fmt.Errorf("failed to get status: %w", err)
	}

	conf, err := apiClient.GetConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to get config: %w", err)
	}

	return &statusData{
		status: st,
		config: conf,
	}, nil
}

func NewStatusCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:     "status",
		GroupID: gBasic,
		Short:   "Get the current power status",
		Long:    `Get the power source, battery percentage, estimated power draw and monitor state from the daemon.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := fetchStatusData()
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(statusJSON{Status: data.status, Configuration: data.config})
			}

			printStatus(cmd.OutOrStdout(), data.status, config.NewFileFromConfig(data.config, ""))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print status as JSON")

	return cmd
}

func printStatus(w io.Writer, st *monitor.Status, conf config.Config) {
	if st.Snapshot == nil {
		fmt.Fprintln(w, bold("Power status:"))
		fmt.Fprintln(w, "  "+color.YellowString("not available yet")+" (the power status has not been readable since the daemon started)")
	} else {
		printSnapshot(w, *st.Snapshot)
		if st.Alert != nil {
			fmt.Fprintf(w, "  Alert: %s\n", color.New(color.Bold, color.FgYellow).Sprint(st.Alert.Message))
		}
	}

	fmt.Fprintln(w)

	fmt.Fprintln(w, bold("Monitor:"))
	state := color.GreenString(string(st.State))
	if st.State == monitor.Paused {
		state = color.YellowString(string(st.State))
	}
	fmt.Fprintf(w, "  State: %s\n", bold("%s", state))
	fmt.Fprintf(w, "  Check interval: %s\n", bold("%ds", st.IntervalSecs))
	if !st.LastPoll.IsZero() {
		fmt.Fprintf(w, "  Last poll: %s\n", bold("%s", st.LastPoll.Local().Format(time.DateTime)))
	}
	fmt.Fprintf(w, "  Polls: %d, published: %d", st.Polls, st.Published)
	if st.MissedPolls > 0 {
		fmt.Fprintf(w, ", possibly missed: %s", color.YellowString("%d", st.MissedPolls))
	}
	fmt.Fprintln(w)
	if st.RefreshPending {
		fmt.Fprintln(w, "  A refresh is pending.")
	}

	fmt.Fprintln(w)

	fmt.Fprintln(w, bold("Configuration:"))
	fmt.Fprintf(w, "  Provider: %s\n", bold("%s", conf.Provider()))
	fmt.Fprintf(w, "  Low battery threshold: %s\n", bold("%d%%", conf.LowBatteryThreshold()))
	fmt.Fprintf(w, "  Publish transition events: %s\n", bool2Text(conf.NotifyTransitions()))
	fmt.Fprintf(w, "  Allow non-root users to access the daemon: %s\n", bool2Text(conf.AllowNonRootAccess()))
}

func printSnapshot(w io.Writer, snap powerinfo.Snapshot) {
	fmt.Fprintln(w, bold("Power status:"))

	source := color.GreenString("AC power")
	if snap.Source == powerinfo.OnBattery {
		source = color.YellowString("battery")
	}
	fmt.Fprintf(w, "  Power source: %s\n", bold("%s", source))
	fmt.Fprintf(w, "  Battery: %s\n", bold("%d%%", snap.BatteryPercentage))

	if snap.PowerDrawWatts != nil {
		fmt.Fprintf(w, "  Power draw: %s (%s)\n", bold("%.1f W", *snap.PowerDrawWatts), tierText(snap.DetectionTier))
	} else {
		fmt.Fprintln(w, "  Power draw: unknown")
	}
	if snap.RemainingTimeMinutes != nil {
		fmt.Fprintf(w, "  Remaining time: %s\n", bold("%s", formatMinutes(*snap.RemainingTimeMinutes)))
	}
	if snap.ChargeRateWatts != nil {
		fmt.Fprintf(w, "  Charge rate: %s\n", color.New(color.Bold, color.FgGreen).Sprintf("%+.1f W", *snap.ChargeRateWatts))
	}
	if snap.Stale {
		fmt.Fprintf(w, "  %s the power status could not be read, showing the last known values\n", color.New(color.Bold, color.FgRed).Sprint("Stale:"))
	}
	if !snap.Timestamp.IsZero() {
		fmt.Fprintf(w, "  Observed at: %s\n", snap.Timestamp.Local().Format(time.DateTime))
	}
}

func tierText(t powerinfo.Tier) string {
	switch t {
	case powerinfo.TierDetailedQuery:
		return "measured"
	case powerinfo.TierPerformanceCounterEstimate:
		return "estimated from processor load"
	case powerinfo.TierHeuristicEstimate:
		return "rough estimate"
	default:
		return string(t)
	}
}

func formatMinutes(m int) string {
	d := time.Duration(m) * time.Minute
	h := int(d.Hours())
	if h == 0 {
		return fmt.Sprintf("%dm", m)
	}
	return fmt.Sprintf("%dh%02dm", h, m-h*60)
}

// alertOf is used by watch to reproduce the daemon's alert locally.
func alertOf(snap powerinfo.Snapshot, threshold int) *powerinfo.Alert {
	a, ok := snap.Alert(threshold)
	if !ok {
		return nil
	}
	return ptr.To(a)
}

func bool2Text(b bool) string {
	if b {
		return color.New(color.Bold, color.FgGreen).Sprint("✔")
	}
	return color.New(color.Bold, color.FgRed).Sprint("✘")
}

func bold(format string, a ...interface{}) string {
	return color.New(color.Bold).Sprintf(format, a...)
}

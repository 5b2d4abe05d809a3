package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/isbattery/isbattery/pkg/config"
	"github.com/isbattery/isbattery/pkg/detect"
	"github.com/isbattery/isbattery/pkg/provider"
)

func NewDetectCommand() *cobra.Command {
	var (
		asJSON       bool
		providerName string
	)

	cmd := &cobra.Command{
		Use:         "detect",
		GroupID:     gAdvanced,
		Short:       "Read the power status once, without the daemon",
		Long:        `Open the configured power provider and run the detection cascade once in this process.`,
		Args:        cobra.NoArgs,
		Annotations: map[string]string{annotationLocal: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			conf, err := config.NewFile(configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if providerName == "" {
				providerName = conf.Provider()
			}

			p, err := provider.New(providerName)
			if err != nil {
				return fmt.Errorf("failed to open provider %q: %w", providerName, err)
			}
			defer func() {
				if err := p.Close(); err != nil {
					logrus.Errorf("failed to close power provider: %v", err)
				}
			}()

			cascade := detect.New(p, config.CascadeConfig(conf))

			ctx, cancel := context.WithTimeout(cmd.Context(), conf.DetailedQueryTimeout()+10*time.Second)
			defer cancel()

			snap, ok := cascade.Detect(ctx, nil)
			if !ok {
				return fmt.Errorf("the power status is not readable with provider %q", providerName)
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(snap)
			}

			printSnapshot(cmd.OutOrStdout(), snap)
			if a := alertOf(snap, conf.LowBatteryThreshold()); a != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "  Alert: %s\n", color.New(color.Bold, color.FgYellow).Sprint(a.Message))
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.BoolVar(&asJSON, "json", false, "print the snapshot as JSON")
	f.StringVar(&providerName, "provider", "", "power provider to use (auto, battery, upower, wmi, smc); defaults to the config file")

	return cmd
}

func NewTestDetailedCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:     "test-detailed",
		GroupID: gAdvanced,
		Short:   "Run the detailed battery query once and show what it returned",
		Long: `Ask the daemon to run the detailed battery query once, between polls.

Shows the raw block, the derived power draw and whether the cascade would accept it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := apiClient.TestDetailedQuery()
			if err != nil {
				return fmt.Errorf("failed to run detailed query: %w", err)
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(r)
			}

			printDetailedQuery(cmd.OutOrStdout(), r)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")

	return cmd
}

func printDetailedQuery(w io.Writer, r *detect.DetailedQueryResult) {
	fmt.Fprintln(w, bold("Detailed battery query:"))
	fmt.Fprintf(w, "  Accepted: %s\n", bool2Text(r.Accepted()))
	fmt.Fprintf(w, "  Took: %s\n", r.Duration)
	if r.Error != "" {
		fmt.Fprintf(w, "  Error: %s (%s)\n", color.RedString(r.Error), r.ErrorKind)
	}
	if r.Watts != nil {
		fmt.Fprintf(w, "  Power draw: %s\n", bold("%.2f W", *r.Watts))
	}
	if b := r.Block; b != nil {
		fmt.Fprintln(w, "  Block:")
		printOptional(w, "Design capacity", "%.0f mWh", b.DesignCapacityMWh)
		printOptional(w, "Discharge rate", "%.0f mW", b.DischargeRateMW)
		printOptional(w, "Discharge current", "%.0f mA", b.DischargeCurrentMA)
		printOptional(w, "Voltage", "%.2f V", b.VoltageV)
		printOptional(w, "Estimated runtime", "%d min", b.EstimatedRuntimeMinutes)
		printOptional(w, "Estimated charge", "%d%%", b.EstimatedChargeRemaining)
	}
}

func printOptional[T any](w io.Writer, name, format string, v *T) {
	if v == nil {
		fmt.Fprintf(w, "    %s: %s\n", name, color.New(color.Faint).Sprint("not reported"))
		return
	}
	fmt.Fprintf(w, "    %s: %s\n", name, bold(format, *v))
}

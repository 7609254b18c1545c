package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/sweeney/vacuum-controller/internal/battery"
	"github.com/sweeney/vacuum-controller/internal/config"
	"github.com/sweeney/vacuum-controller/internal/motor"
)

// NewCurveCommand prints the discharge table scaled to the configured pack.
func NewCurveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "curve",
		Short: "Print the voltage-to-charge table for the configured cell count",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			curve, err := cfg.Curve()
			if err != nil {
				return err
			}
			printCurve(cmd.OutOrStdout(), curve)
			return nil
		},
	}
}

func printCurve(w io.Writer, curve battery.Curve) {
	fmt.Fprintf(w, "%s\n", bold("%dS pack (%.2f V full, %.2f V empty)", curve.Cells(), curve.Full(), curve.Empty()))
	fmt.Fprintf(w, "  %8s  %7s\n", "VOLTS", "CHARGE")
	for _, p := range curve.Points() {
		fmt.Fprintf(w, "  %8.2f  %6d%%\n", p.Voltage, p.Percent)
	}
}

// NewConfigCommand prints the effective configuration as TOML.
func NewConfigCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return printConfig(cmd.OutOrStdout(), cfg)
		},
	}
}

func printConfig(w io.Writer, c config.Config) error {
	if err := config.Write(w, c); err != nil {
		return err
	}
	duty, err := c.DutyTable()
	if err != nil {
		return err
	}
	fmt.Fprint(w, "\n# levels:")
	for _, l := range motor.Levels {
		fmt.Fprintf(w, " %s=%d%%", l.Label(), duty.Percent(l))
	}
	fmt.Fprintln(w)
	return nil
}

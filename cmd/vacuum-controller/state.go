package main

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/sweeney/vacuum-controller/internal/adc"
	"github.com/sweeney/vacuum-controller/internal/battery"
	"github.com/sweeney/vacuum-controller/internal/gpio"
)

// NewStateCommand reads the button line and pack voltage once and prints
// them. It does not touch the motor.
func NewStateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "state",
		Short: "Print the button and battery state and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			curve, err := cfg.Curve()
			if err != nil {
				return err
			}

			pin, err := gpio.NewRealReader(cfg.Button.Chip, cfg.Button.Line)
			if err != nil {
				return fmt.Errorf("init button: %w", err)
			}
			defer pin.Close()

			return printState(cmd.OutOrStdout(), pin, newVoltageSource(cfg), curve)
		},
	}
}

func printState(w io.Writer, pin gpio.Reader, src adc.Source, curve battery.Curve) error {
	released, err := pin.Read()
	if err != nil {
		return fmt.Errorf("read button: %w", err)
	}
	volts, err := src.Voltage()
	if err != nil {
		return fmt.Errorf("read voltage: %w", err)
	}
	pct := curve.EstimatePercent(volts)

	button := color.GreenString("released")
	if !released {
		button = color.New(color.Bold, color.FgYellow).Sprint("pressed")
	}

	fmt.Fprintf(w, "  %s %s\n", bold("Button: "), button)
	fmt.Fprintf(w, "  %s %.2f V (%dS)\n", bold("Voltage:"), volts, curve.Cells())
	fmt.Fprintf(w, "  %s %s\n", bold("Charge: "), chargeString(pct))
	return nil
}

func chargeString(pct int) string {
	s := fmt.Sprintf("%d%%", pct)
	switch {
	case pct <= 20:
		return color.New(color.Bold, color.FgRed).Sprint(s)
	case pct <= 50:
		return color.YellowString(s)
	default:
		return color.GreenString(s)
	}
}

func bold(format string, a ...interface{}) string {
	return color.New(color.Bold).Sprintf(format, a...)
}

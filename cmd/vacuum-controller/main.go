// Command vacuum-controller estimates battery charge, classifies button
// gestures and drives the suction motor of a cordless vacuum.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/sweeney/vacuum-controller/internal/config"
)

var (
	logLevel   = ""
	configPath = config.DefaultPath

	// Overrides for single config values, applied only when set.
	flagCells   int
	flagBroker  string
	flagHTTP    string
	flagHistory string

	// cfg is loaded once by the root command before any subcommand runs.
	cfg config.Config
)

func main() {
	if err := NewCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

// NewCommand builds the root command. With no subcommand it runs the daemon.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vacuum-controller",
		Short: "Cordless vacuum motor controller",
		Long: `vacuum-controller estimates battery charge from the pack voltage,
classifies presses of the single power button and drives the suction motor.

A short press cycles LOW -> MED -> HIGH; a long press toggles the motor.`,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			loaded, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			cfg = loaded
			return setupLogger(cfg.Log.Level)
		},
		RunE: func(_ *cobra.Command, _ []string) error {
			return runDaemon(cfg)
		},
	}

	globalFlags := cmd.PersistentFlags()
	globalFlags.StringVarP(&logLevel, "log-level", "l", "", "log level (trace, debug, info, warn, error); overrides [log] level")
	globalFlags.StringVarP(&configPath, "config", "c", configPath, "config file path")
	globalFlags.IntVar(&flagCells, "cells", 0, "series cell count; overrides [battery] cells")
	globalFlags.StringVar(&flagBroker, "broker", "", `MQTT broker URL, e.g. "tcp://10.0.0.5:1883"; overrides [mqtt] broker`)
	globalFlags.StringVar(&flagHTTP, "http", "", "HTTP status address; overrides [http] addr")
	globalFlags.StringVar(&flagHistory, "history", "", "history database path; overrides [history] path")

	cmd.AddCommand(
		NewRunCommand(),
		NewStateCommand(),
		NewCurveCommand(),
		NewConfigCommand(),
	)

	return cmd
}

// loadConfig reads the config file and applies any flags the user set.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	c, err := config.Load(configPath)
	if err != nil {
		return c, err
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		c.Log.Level = logLevel
	}
	if flags.Changed("cells") {
		c.Battery.Cells = flagCells
	}
	if flags.Changed("broker") {
		c.MQTT.Broker = flagBroker
	}
	if flags.Changed("http") {
		c.HTTP.Addr = flagHTTP
	}
	if flags.Changed("history") {
		c.History.Path = flagHistory
	}

	if err := c.Validate(); err != nil {
		return c, fmt.Errorf("invalid config %s: %w", configPath, err)
	}
	return c, nil
}

func setupLogger(level string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("failed to parse log level: %w", err)
	}
	logrus.SetLevel(lvl)
	logrus.SetFormatter(&logrus.TextFormatter{})
	if term.IsTerminal(int(os.Stderr.Fd())) {
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.StampMilli,
		})
	}
	return nil
}

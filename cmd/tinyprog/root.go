package main

import (
	"errors"

	"github.com/spf13/cobra"
)

var (
	errNoChip = errors.New("no chip selected, use --chip or set chip in the config file")
	errNoPort = errors.New("no serial port selected, use --port or set port in the config file")
	errNotTPI = errors.New("command is only available for TPI devices")
)

func newRootCmd(a *app) *cobra.Command {
	var (
		configPath string
		port       string
		baud       int
		chipName   string
		logLevel   string
		trace      bool
	)

	root := &cobra.Command{
		Use:           "tinyprog",
		Short:         "Program ATtiny devices through a TPI programmer sketch or avrdude",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			explicit := cmd.Flags().Changed("config")
			path := configPath
			if !explicit {
				path = defaultConfigPath()
			}

			cfg, err := loadConfig(path, explicit)
			if err != nil {
				return err
			}

			flags := cmd.Flags()
			if flags.Changed("port") {
				cfg.Port = port
			}
			if flags.Changed("baud") {
				cfg.Baud = baud
			}
			if flags.Changed("chip") {
				cfg.Chip = chipName
			}
			if flags.Changed("log-level") {
				cfg.LogLevel = logLevel
			}
			if flags.Changed("trace") {
				cfg.Trace = trace
			}
			a.cfg = cfg

			return a.setup()
		},
	}
	root.SetOut(a.out)
	root.SetErr(a.errOut)

	pf := root.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "config file (default ~/"+defaultConfigName+")")
	pf.StringVarP(&port, "port", "p", "", "serial port of the programmer")
	pf.IntVarP(&baud, "baud", "b", 0, "serial baud rate")
	pf.StringVarP(&chipName, "chip", "c", "", "target device, e.g. attiny10")
	pf.StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.BoolVar(&trace, "trace", false, "print the programmer output")

	root.AddCommand(
		newPortsCmd(a),
		newChipsCmd(a),
		newParseCmd(a),
		newProgramCmd(a),
		newFusesCmd(a),
		newSignatureCmd(a),
		newCalibrateCmd(a),
		newPowerCmd(a),
		newSketchCmd(a),
	)

	return root
}

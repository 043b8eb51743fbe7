package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/arloliu/go-tinyprog/chip"
	"github.com/arloliu/go-tinyprog/ihex"
	"github.com/arloliu/go-tinyprog/tpi"
)

// tpiTarget returns the programmer for the configured chip, which must be a TPI device.
func (a *app) tpiTarget() (*tpi.Programmer, error) {
	_, info, err := a.target()
	if err != nil {
		return nil, err
	}
	if info.Protocol != chip.TPI {
		return nil, errNotTPI
	}

	return a.programmer()
}

func waitSession(a *app, s *tpi.Session, what string) (string, error) {
	rsp, err := s.Wait()
	if err != nil {
		return rsp, fmt.Errorf("%s: %w", what, err)
	}
	a.logger.Info(what+" complete", "state", s.State().String())

	return rsp, nil
}

func newProgramCmd(a *app) *cobra.Command {
	var fuses string

	cmd := &cobra.Command{
		Use:   "program <file.hex>",
		Short: "Download code and fuse byte to a TPI device",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			img, err := ihex.Parse(string(data))
			if err != nil {
				return err
			}

			p, err := a.tpiTarget()
			if err != nil {
				return err
			}

			a.printf("Sending %d bytes of code for %s\n", img.Len(), args[0])

			var s *tpi.Session
			if fuses != "" {
				raw, err := chip.ParseFuseSpec(chip.TPI, fuses)
				if err != nil {
					return err
				}
				s, err = p.Program(ihex.NewCodeImage(img.Data(), raw[0]))
				if err != nil {
					return err
				}
			} else {
				if s, err = p.ProgramHex(string(data)); err != nil {
					return err
				}
			}

			if _, err := waitSession(a, s, "program"); err != nil {
				return err
			}
			a.printf("Done\n")

			return nil
		},
	}
	cmd.Flags().StringVarP(&fuses, "fuses", "f", "", "override the fuse byte of the file, e.g. FE")

	return cmd
}

func newSignatureCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "signature",
		Short: "Read the device signature",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, info, err := a.target()
			if err != nil {
				return err
			}

			switch info.Protocol {
			case chip.TPI:
				p, err := a.programmer()
				if err != nil {
					return err
				}
				rsp, err := p.ReadSignature()
				if err != nil {
					return err
				}
				a.printf("%s", rsp)

			case chip.ISP:
				dev, err := a.newISP(a.cfg, info)
				if err != nil {
					return err
				}
				sig, err := dev.ReadSignature(cmd.Context())
				if err != nil {
					return err
				}
				a.printf("Device Signature: %s - %s\n", sig, a.registry.LookupBySignatureString(sig))
			}

			return nil
		},
	}
}

func newCalibrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "calibrate <clockcal.hex>",
		Short: "Download and run the clock calibration code on a TPI device",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			if _, err := ihex.Parse(string(data)); err != nil {
				return err
			}

			p, err := a.tpiTarget()
			if err != nil {
				return err
			}
			s, err := p.Calibrate(string(data))
			if err != nil {
				return err
			}
			rsp, err := waitSession(a, s, "calibrate")
			if err != nil {
				return err
			}
			a.printf("%s", rsp)

			return nil
		},
	}
}

func newPowerCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "power",
		Short: "Switch target power on a TPI programmer",
	}

	run := func(on bool) func(*cobra.Command, []string) error {
		return func(_ *cobra.Command, _ []string) error {
			p, err := a.tpiTarget()
			if err != nil {
				return err
			}
			state := "on"
			if on {
				_, err = p.PowerOn()
			} else {
				state = "off"
				_, err = p.PowerOff()
			}
			if err != nil {
				return err
			}
			a.printf("power %s\n", state)

			return nil
		}
	}

	cmd.AddCommand(
		&cobra.Command{Use: "on", Short: "Enable target power", Args: cobra.NoArgs, RunE: run(true)},
		&cobra.Command{Use: "off", Short: "Disable target power", Args: cobra.NoArgs, RunE: run(false)},
	)

	return cmd
}

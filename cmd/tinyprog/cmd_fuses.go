package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/arloliu/go-tinyprog/chip"
	"github.com/arloliu/go-tinyprog/ihex"
	"github.com/arloliu/go-tinyprog/isp"
	"github.com/arloliu/go-tinyprog/pragma"
)

func newFusesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fuses",
		Short: "Read or change device fuses",
	}
	cmd.AddCommand(newFusesReadCmd(a), newFusesWriteCmd(a))

	return cmd
}

func newFusesReadCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "read",
		Short: "Read and decode the fuses",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, info, err := a.target()
			if err != nil {
				return err
			}

			raw, err := a.readFuses(cmd.Context(), info)
			if err != nil {
				return err
			}
			spec, err := chip.FormatFuseSpec(info.Protocol, raw)
			if err != nil {
				return err
			}
			settings, err := chip.DecodeFuses(info.Protocol, raw)
			if err != nil {
				return err
			}

			a.printf("fuses: %s\n", spec)
			printSettings(a, settings)

			return nil
		},
	}
}

func newFusesWriteCmd(a *app) *cobra.Command {
	var (
		source  string
		enable  []string
		disable []string
	)

	cmd := &cobra.Command{
		Use:   "write [spec]",
		Short: "Write fuses from a spec, the #pragma lines of a source, or single settings",
		Long: `Write fuses. The target values come from one of:

  spec        "FE" for TPI devices, "l:62,h:DF,e:FF" for ISP devices
  --source    the lfuse/hfuse/efuse pragmas of a firmware source (ISP)
  --enable/--disable  fuse labels such as CKDIV8, changed on the current values

ISP fuse bytes that already hold the target value are not written.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, info, err := a.target()
			if err != nil {
				return err
			}

			var target []byte
			switch {
			case len(args) == 1:
				if target, err = chip.ParseFuseSpec(info.Protocol, args[0]); err != nil {
					return err
				}
			case source != "":
				if target, err = pragmaFuses(info, source); err != nil {
					return err
				}
			case len(enable) > 0 || len(disable) > 0:
			default:
				return fmt.Errorf("nothing to write, give a spec, --source or --enable/--disable")
			}

			return a.writeFuses(cmd.Context(), info, target, enable, disable)
		},
	}
	cmd.Flags().StringVarP(&source, "source", "s", "", "firmware source with fuse pragmas")
	cmd.Flags().StringSliceVar(&enable, "enable", nil, "fuse labels to enable (program)")
	cmd.Flags().StringSliceVar(&disable, "disable", nil, "fuse labels to disable (unprogram)")

	return cmd
}

func pragmaFuses(info chip.Info, path string) ([]byte, error) {
	if info.Protocol != chip.ISP {
		return nil, fmt.Errorf("--source needs an ISP device")
	}

	src, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	f, ok := pragma.Parse(string(src)).Fuses()
	if !ok {
		return nil, fmt.Errorf("%s does not declare all of lfuse, hfuse and efuse", path)
	}

	return f.Bytes(), nil
}

func (a *app) readFuses(ctx context.Context, info chip.Info) ([]byte, error) {
	switch info.Protocol {
	case chip.TPI:
		p, err := a.programmer()
		if err != nil {
			return nil, err
		}
		f, err := p.ReadFuse()
		if err != nil {
			return nil, err
		}

		return []byte{f}, nil

	case chip.ISP:
		dev, err := a.newISP(a.cfg, info)
		if err != nil {
			return nil, err
		}
		f, err := dev.ReadFuses(ctx)
		if err != nil {
			return nil, err
		}

		return f.Bytes(), nil

	default:
		return nil, fmt.Errorf("%w: %s", chip.ErrUnknownProtocol, info.Protocol)
	}
}

// applyEdits enables and disables the named fields on raw.
func applyEdits(p chip.Protocol, raw []byte, enable, disable []string) ([]byte, error) {
	settings, err := chip.DecodeFuses(p, raw)
	if err != nil {
		return nil, err
	}

	edits := make([]chip.FuseSetting, 0, len(enable)+len(disable))
	for _, group := range []struct {
		labels  []string
		enabled bool
	}{{enable, true}, {disable, false}} {
		for _, label := range group.labels {
			s, ok := chip.Lookup(settings, label)
			if !ok {
				return nil, fmt.Errorf("%w: %s has no fuse %q", chip.ErrUnknownFuseField, p, label)
			}
			s.Enabled = group.enabled
			edits = append(edits, s)
		}
	}

	return chip.EncodeFuses(p, raw, edits)
}

func (a *app) writeFuses(ctx context.Context, info chip.Info, target []byte, enable, disable []string) error {
	switch info.Protocol {
	case chip.TPI:
		if target == nil {
			cur, err := a.readFuses(ctx, info)
			if err != nil {
				return err
			}
			if target, err = applyEdits(chip.TPI, cur, enable, disable); err != nil {
				return err
			}
		}

		p, err := a.programmer()
		if err != nil {
			return err
		}
		s, err := p.WriteFuse(target[0])
		if err != nil {
			return err
		}
		if _, err := waitSession(a, s, "write fuse"); err != nil {
			return err
		}
		a.printf("fuse written: %c\n", ihex.FuseChar(target[0]))

		return nil

	case chip.ISP:
		dev, err := a.newISP(a.cfg, info)
		if err != nil {
			return err
		}

		var report *isp.Report
		if target != nil {
			f, err := isp.FusesFromBytes(target)
			if err != nil {
				return err
			}
			report, err = isp.Sync(ctx, dev, f)
			printReport(a, report)
			if err != nil {
				return err
			}

			return nil
		}

		var editErr error
		report, err = isp.Edit(ctx, dev, func(cur isp.Fuses) (isp.Fuses, bool) {
			raw, err := applyEdits(chip.ISP, cur.Bytes(), enable, disable)
			if err != nil {
				editErr = err
				return cur, false
			}
			f, _ := isp.FusesFromBytes(raw)

			return f, true
		})
		if editErr != nil {
			return editErr
		}
		printReport(a, report)

		return err

	default:
		return fmt.Errorf("%w: %s", chip.ErrUnknownProtocol, info.Protocol)
	}
}

func printReport(a *app, r *isp.Report) {
	if r == nil {
		return
	}
	for _, line := range r.Lines() {
		a.printf("%s\n", line)
	}
}

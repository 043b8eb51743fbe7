package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/arloliu/go-tinyprog/chip"
	"github.com/arloliu/go-tinyprog/ihex"
	"github.com/arloliu/go-tinyprog/link"
)

func newPortsCmd(a *app) *cobra.Command {
	var details bool

	cmd := &cobra.Command{
		Use:   "ports",
		Short: "List serial ports",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			if details {
				ports, err := link.ListPortDetails()
				if err != nil {
					return err
				}
				for _, p := range ports {
					a.printf("%s\n", p)
				}

				return nil
			}

			names, err := link.ListPorts()
			if err != nil {
				return err
			}
			for _, n := range names {
				a.printf("%s\n", n)
			}

			return nil
		},
	}
	cmd.Flags().BoolVarP(&details, "details", "d", false, "show USB vendor and product")

	return cmd
}

func newChipsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "chips",
		Short: "List supported devices",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tPROTOCOL\tPART\tFUSES\tSIGNATURE")
			for _, name := range a.registry.Names() {
				info, _ := a.registry.Lookup(name)
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", name, info.Protocol, info.Part, info.Fuses, info.Signature)
			}

			return tw.Flush()
		},
	}
}

func newParseCmd(a *app) *cobra.Command {
	var render bool

	cmd := &cobra.Command{
		Use:   "parse <file.hex>",
		Short: "Check an Intel-HEX file and show its size and fuse byte",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			img, err := ihex.ParseFile(args[0])
			if err != nil {
				return err
			}

			a.printf("size: %d bytes\nfuses: 0x%X\n", img.Len(), img.Fuses())
			if name, info, err := a.target(); err == nil && info.Protocol == chip.TPI {
				settings, err := chip.DecodeFuses(chip.TPI, []byte{img.Fuses()})
				if err != nil {
					return err
				}
				a.printf("fuse settings for %s:\n", name)
				printSettings(a, settings)
			}

			if render {
				text, err := ihex.Render(img)
				if err != nil {
					return err
				}
				a.printf("%s", text)
			}

			return nil
		},
	}
	cmd.Flags().BoolVarP(&render, "render", "r", false, "print the image re-encoded")

	return cmd
}

func printSettings(a *app, settings []chip.FuseSetting) {
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	for _, s := range settings {
		state := "off"
		if s.Enabled {
			state = "on"
		}
		note := ""
		if s.Field.Caution {
			note = "(caution)"
		}
		fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\n", s.Field.Byte, s.Field.Label, state, note)
	}
	_ = tw.Flush()
}

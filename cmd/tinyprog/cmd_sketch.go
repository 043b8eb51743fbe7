package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/arloliu/go-tinyprog/ihex"
	"github.com/arloliu/go-tinyprog/pragma"
	"github.com/arloliu/go-tinyprog/sketch"
)

func newSketchCmd(a *app) *cobra.Command {
	var (
		source string
		out    string
	)

	cmd := &cobra.Command{
		Use:   "sketch <file.hex>",
		Short: "Generate an Arduino sketch that carries the image and programs a TPI device on its own",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			img, err := ihex.ParseFile(args[0])
			if err != nil {
				return err
			}

			d := sketch.Data{
				Name:  filepath.Base(args[0]),
				Chip:  a.cfg.Chip,
				Image: img,
			}
			if source != "" {
				src, err := os.ReadFile(source)
				if err != nil {
					return err
				}
				decl := pragma.Parse(string(src))
				d.Name = filepath.Base(source)
				d.Params = decl.Params
				if name, _, ok := decl.ChipInfo(a.registry); ok && d.Chip == "" {
					d.Chip = name
				}
			}

			if out == "" {
				return sketch.Generate(a.out, d)
			}

			f, err := os.Create(out)
			if err != nil {
				return err
			}
			if err := sketch.Generate(f, d); err != nil {
				_ = f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			a.printf("wrote %s\n", out)

			return nil
		},
	}
	cmd.Flags().StringVarP(&source, "source", "s", "", "firmware source with #pragma xparm declarations")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default stdout)")

	return cmd
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"captionbot/internal/config"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func renderCmd() *cobra.Command {
	var caption string
	var quality int

	cmd := &cobra.Command{
		Use:   "render <image> [output]",
		Short: "Caption a local image without posting it",
		Long: `Runs the caption renderer on a local photo and writes the JPEG next to it
(<image>-captioned.jpeg) or to the given output path. Uses the render section
of the config file when one exists.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				cfg = config.Defaults()
			}
			rc := cfg.Render
			// Local renders are never kept twice.
			rc.OutputDir = ""
			if caption != "" {
				rc.Caption = caption
			}
			if quality > 0 {
				rc.Quality = quality
			}

			in := args[0]
			out := renderOutputPath(in)
			if len(args) == 2 {
				out = args[1]
			}

			original, err := os.ReadFile(in)
			if err != nil {
				return fmt.Errorf("read image: %w", err)
			}

			renderer, err := newRenderer(rc)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			img, err := renderer.Render(ctx, original)
			if err != nil {
				return err
			}
			if err := os.WriteFile(out, img.Data, 0o644); err != nil {
				return fmt.Errorf("write image: %w", err)
			}
			fmt.Printf("Rendered %s -> %s (%dx%d, %s)\n", in, out, img.Width, img.Height,
				humanize.IBytes(uint64(len(img.Data))))
			return nil
		},
	}

	cmd.Flags().StringVar(&caption, "caption", "", "caption text (default: render.caption)")
	cmd.Flags().IntVarP(&quality, "quality", "q", 0, "JPEG quality 1-100 (default: render.quality)")
	return cmd
}

func renderOutputPath(in string) string {
	return strings.TrimSuffix(in, filepath.Ext(in)) + "-captioned.jpeg"
}

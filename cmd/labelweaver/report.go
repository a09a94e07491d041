package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/alvmarrod/label-weaver/internal/label"
	"github.com/alvmarrod/label-weaver/internal/pipeline"
	"github.com/alvmarrod/label-weaver/internal/report"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newStatsCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "stats [table.csv]",
		Short: "Show the class distribution and gain of every stage",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := filepath.Join(c.cfg.DataDir, pipeline.AllFile)
			if len(args) == 1 {
				path = args[0]
			}
			t, err := label.ReadTableFile(path)
			if err != nil {
				return err
			}
			return report.Render(cmd.OutOrStdout(), report.Stepwise(t))
		},
	}
}

func newEnrichCmd(c *cli) *cobra.Command {
	var mapPath string
	cmd := &cobra.Command{
		Use:   "enrich <albums.csv> <out.csv>",
		Short: "Add the major label to an album list",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			if mapPath == "" {
				mapPath = c.cfg.FinalPath
			}
			t, err := label.ReadTableFile(mapPath)
			if err != nil {
				return err
			}

			in, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open album list: %w", err)
			}
			defer in.Close()

			out, err := os.Create(args[1])
			if err != nil {
				return fmt.Errorf("failed to create output: %w", err)
			}
			n, err := report.Enrich(t, in, out)
			if cerr := out.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				return err
			}
			logrus.Infof("Enriched %d albums into %s", n, args[1])
			return nil
		},
	}
	cmd.Flags().StringVar(&mapPath, "map", "", "label map to join (default final_path)")
	return cmd
}

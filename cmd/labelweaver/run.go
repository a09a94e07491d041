package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/alvmarrod/label-weaver/internal/label"
	"github.com/alvmarrod/label-weaver/internal/pipeline"
	"github.com/alvmarrod/label-weaver/internal/report"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newRunCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <stage>",
		Short: "Run a single pipeline stage",
		Long: "Run one stage over the previous stage's table, or over its own table with --resume.\n" +
			"Stages: " + stageNames() + ".",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stage, err := label.ParseStage(args[0])
			if err != nil {
				return err
			}
			if err := c.applyPipelineFlags(cmd); err != nil {
				return err
			}
			resume, _ := cmd.Flags().GetBool("resume")

			in := pipeline.InputFile(c.cfg.DataDir, c.cfg.InputPath, stage)
			out := pipeline.StageFile(c.cfg.DataDir, stage)
			if resume {
				in = out
			}
			return c.execute(cmd.Context(), in, func(ctx context.Context, d *pipeline.Driver, t *label.Table) error {
				if err := d.RunStage(ctx, t, stage, resume, out); err != nil {
					return err
				}
				if stage == label.StageFinal {
					return writeMajors(t, c.cfg.FinalPath)
				}
				return nil
			})
		},
	}
	c.bindPipelineFlags(cmd)
	return cmd
}

func newAllCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "all",
		Short: "Run every stage in order into one combined table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.applyPipelineFlags(cmd); err != nil {
				return err
			}
			resume, _ := cmd.Flags().GetBool("resume")

			out := filepath.Join(c.cfg.DataDir, pipeline.AllFile)
			in := c.cfg.InputPath
			if resume {
				in = out
			}
			return c.execute(cmd.Context(), in, func(ctx context.Context, d *pipeline.Driver, t *label.Table) error {
				if err := d.RunAll(ctx, t, resume, out); err != nil {
					return err
				}
				return writeMajors(t, c.cfg.FinalPath)
			})
		},
	}
	c.bindPipelineFlags(cmd)
	return cmd
}

func writeMajors(t *label.Table, path string) error {
	if err := report.WriteMajorMapFile(t, path); err != nil {
		return err
	}
	logrus.Infof("Major label map written to %s", path)
	return nil
}

type stageRun func(ctx context.Context, d *pipeline.Driver, t *label.Table) error

// execute loads the table, opens the run resources and runs fn under signal
// handling. A first signal cancels the run, a second forces an exit after
// an emergency save.
func (c *cli) execute(parent context.Context, in string, fn stageRun) error {
	// Malformed input fails before anything is locked or mutated
	table, err := label.ReadTableFile(in)
	if err != nil {
		return err
	}
	logrus.Infof("Loaded %d labels from %s", table.Len(), in)

	a, err := openApp(c.cfg)
	if err != nil {
		return err
	}
	driver, err := a.driver()
	if err != nil {
		a.shutdown("error")
		return err
	}

	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	sigChan := make(chan os.Signal, 2)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	finished := make(chan struct{})
	defer close(finished)
	go func() {
		select {
		case sig := <-sigChan:
			logrus.Infof("Received signal: %v", sig)
			cancel()
		case <-finished:
			return
		}
		select {
		case sig := <-sigChan:
			logrus.Warnf("Received second signal (%v) - forcing immediate exit!", sig)
			a.emergency()
			os.Exit(1)
		case <-finished:
		}
	}()

	stopProgress := make(chan struct{})
	progressDone := make(chan struct{})
	go a.progress(stopProgress, progressDone)

	runErr := fn(ctx, driver, table)

	close(stopProgress)
	<-progressDone

	reason := "completed"
	switch {
	case errors.Is(runErr, context.Canceled):
		reason = "signal"
	case runErr != nil:
		reason = "error"
	}
	logrus.Infof("Initiating shutdown (%s)...", reason)
	a.shutdown(reason)

	if runErr != nil {
		return fmt.Errorf("pipeline stopped: %w", runErr)
	}
	return nil
}

package main

import (
	"fmt"
	"strings"

	"github.com/alvmarrod/label-weaver/internal/config"
	"github.com/alvmarrod/label-weaver/internal/label"
	"github.com/alvmarrod/label-weaver/internal/version"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// cli carries state shared by every subcommand.
type cli struct {
	cfgFile string
	v       *viper.Viper
	cfg     *config.Config
}

func newRootCmd() *cobra.Command {
	c := &cli{v: viper.New()}

	cmd := &cobra.Command{
		Use:     "labelweaver",
		Short:   "Resolve record labels to their major label group",
		Version: version.Version,
		Long: `labelweaver maps free-text record label names to Universal, Sony, Warner,
Independent or Unknown. It runs alias matching, Discogs and Wikipedia parent
chain crawls, a copyright notice classifier and a final arbitration step.`,
		SilenceUsage: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadWith(c.v, c.cfgFile)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if err := setupLogging(cfg.Logging); err != nil {
				return err
			}
			c.cfg = cfg
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&c.cfgFile, "config", "", "config file (yaml, json or toml)")
	cmd.PersistentFlags().String("data-dir", "", "directory for stage tables, archive and metrics")
	_ = c.v.BindPFlag("data_dir", cmd.PersistentFlags().Lookup("data-dir"))

	cmd.AddCommand(newRunCmd(c), newAllCmd(c), newStatsCmd(c), newEnrichCmd(c))
	return cmd
}

// bindPipelineFlags adds the recursion and checkpoint overrides.
func (c *cli) bindPipelineFlags(cmd *cobra.Command) {
	cmd.Flags().Int("max-depth", 0, "maximum parent chain depth (default from config)")
	cmd.Flags().Int("save-interval", 0, "rows between checkpoints (default from config)")
	cmd.Flags().Bool("resume", false, "continue from the stage's existing output")
}

// applyPipelineFlags binds the flags set on cmd and reloads the config.
func (c *cli) applyPipelineFlags(cmd *cobra.Command) error {
	if f := cmd.Flags().Lookup("max-depth"); f.Changed {
		_ = c.v.BindPFlag("pipeline.max_depth", f)
	}
	if f := cmd.Flags().Lookup("save-interval"); f.Changed {
		_ = c.v.BindPFlag("pipeline.save_interval", f)
	}
	cfg, err := config.LoadWith(c.v, c.cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	c.cfg = cfg
	return nil
}

func setupLogging(cfg config.LoggingConfig) error {
	level, err := logrus.ParseLevel(strings.TrimSpace(cfg.Level))
	if err != nil {
		return fmt.Errorf("invalid logging.level: %w", err)
	}
	logrus.SetLevel(level)
	if cfg.JSON {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return nil
}

func stageNames() string {
	names := make([]string, 0, label.StageCount)
	for _, s := range label.Stages() {
		names = append(names, s.String())
	}
	return strings.Join(names, ", ")
}

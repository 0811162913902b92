package main

import (
	"context"
	"fmt"
	"time"

	"github.com/genricoloni/mediagrab/internal/config"
	"github.com/genricoloni/mediagrab/internal/engine"
	"github.com/genricoloni/mediagrab/internal/ui"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const stopTimeout = 10 * time.Second

func newRootCmd() *cobra.Command {
	v := config.NewViper()

	root := &cobra.Command{
		Use:          "mediagrab",
		Short:        "Grab the media embedded in web pages",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if path, _ := cmd.Flags().GetString("config"); path != "" {
				v.SetConfigFile(path)
			}
			return nil
		},
	}

	root.PersistentFlags().String("config", "", "Path to a config file (default ./config.yaml or the user config dir)")
	root.PersistentFlags().String("log-level", "", "Log level: debug, info, warn or error")
	lo.Must0(v.BindPFlag("log.level", root.PersistentFlags().Lookup("log-level")))

	root.AddCommand(newGetCmd(v), newListCmd(v))
	return root
}

func newGetCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <url>...",
		Short: "Download the media of one or more pages",
		Example: `  mediagrab get https://example.com/view?v=1
  mediagrab get -q 720p -d ~/Videos https://example.com/view?v=1`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			quality := lo.Must(cmd.Flags().GetString("quality"))
			return run(cmd, v, ui.ModeDownload, quality, args)
		},
	}

	cmd.Flags().StringP("quality", "q", ui.QualityBest, `Quality label ("720p"), "best" or "worst"`)
	cmd.Flags().StringP("dir", "d", "", "Directory to save files in")
	lo.Must0(v.BindPFlag("download_dir", cmd.Flags().Lookup("dir")))
	cmd.Flags().Bool("keep-partial", false, "Keep the .part file when a download fails")
	lo.Must0(v.BindPFlag("keep_partial", cmd.Flags().Lookup("keep-partial")))
	cmd.Flags().Bool("notify", false, "Show a desktop notification when an item finishes")
	lo.Must0(v.BindPFlag("notify", cmd.Flags().Lookup("notify")))

	return cmd
}

func newListCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "list <url>...",
		Short: "List the qualities available for one or more pages",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, v, ui.ModeList, "", args)
		},
	}
}

// run builds the app graph, drives a session and shuts the graph down
func run(cmd *cobra.Command, v *viper.Viper, mode ui.Mode, quality string, urls []string) error {
	var (
		eng *engine.Engine
		log *zap.Logger
	)

	app := fx.New(
		AppOptions,
		fx.Replace(v),
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			l := &fxevent.ZapLogger{Logger: log}
			l.UseLogLevel(zapcore.DebugLevel)
			return l
		}),
		fx.Populate(&eng, &log),
	)
	if err := app.Err(); err != nil {
		return err
	}

	ctx := cmd.Context()
	if err := app.Start(ctx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
		defer cancel()
		if err := app.Stop(stopCtx); err != nil {
			log.Warn("Shutdown incomplete", zap.Error(err))
		}
	}()

	results, err := ui.NewSession(log, eng, cmd.OutOrStdout(), mode, quality).Run(ctx, urls)
	if err != nil {
		return err
	}

	failed := lo.CountBy(results, func(r ui.Result) bool { return r.Err != nil })
	if failed > 0 {
		return fmt.Errorf("%d of %d failed", failed, len(results))
	}
	return nil
}

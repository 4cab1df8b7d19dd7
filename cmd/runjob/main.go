package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/d60-Lab/fansync/config"
	"github.com/d60-Lab/fansync/internal/app"
	"github.com/d60-Lab/fansync/pkg/errreport"
	"github.com/d60-Lab/fansync/pkg/logger"
)

// 一次性执行某个流水线任务，供外部 cron / k8s CronJob 调用
func main() {
	code := 0
	if err := newRootCmd(runJob).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		code = 1
	}
	errreport.Flush()
	_ = logger.Sync()
	os.Exit(code)
}

// jobFunc 在已装配好的 App 上执行一个任务
type jobFunc func(ctx context.Context, a *app.App, out io.Writer) error

// runner 负责装配 App 并执行任务，测试中替换
type runner func(ctx context.Context, name string, out io.Writer, job jobFunc) error

func newRootCmd(run runner) *cobra.Command {
	root := &cobra.Command{
		Use:           "runjob",
		Short:         "Run one fansync pipeline job and exit",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		syncCmd(run),
		refreshCmd(run),
		backfillCmd(run),
		outboxCmd(run),
		nudgeCmd(run),
	)
	return root
}

func syncCmd(run runner) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Full sync of fans, messages and transactions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if limit < 0 {
				return errors.New("--max must not be negative")
			}
			return run(cmd.Context(), "sync", cmd.OutOrStdout(), func(ctx context.Context, a *app.App, _ io.Writer) error {
				return a.Syncer.FullSync(ctx, limit)
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "max", "m", 0, "max fans to sync (0 = all)")
	return cmd
}

func refreshCmd(run runner) *cobra.Command {
	var fanID int64
	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Refresh a single fan",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if fanID <= 0 {
				return errors.New("--fan must be a positive fan id")
			}
			return run(cmd.Context(), "refresh", cmd.OutOrStdout(), func(ctx context.Context, a *app.App, _ io.Writer) error {
				return a.Syncer.RefreshFan(ctx, fanID)
			})
		},
	}
	cmd.Flags().Int64VarP(&fanID, "fan", "f", 0, "fan id to refresh")
	_ = cmd.MarkFlagRequired("fan")
	return cmd
}

func backfillCmd(run runner) *cobra.Command {
	return &cobra.Command{
		Use:   "backfill",
		Short: "Page through every chat's full message history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), "backfill", cmd.OutOrStdout(), func(ctx context.Context, a *app.App, _ io.Writer) error {
				return a.Syncer.Backfill(ctx)
			})
		},
	}
}

func outboxCmd(run runner) *cobra.Command {
	return &cobra.Command{
		Use:   "outbox",
		Short: "Send the due drafts from the queue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), "outbox", cmd.OutOrStdout(), func(ctx context.Context, a *app.App, out io.Writer) error {
				sent, err := a.Dispatcher.Drain(ctx)
				fmt.Fprintf(out, "sent=%d\n", sent)
				return err
			})
		},
	}
}

func nudgeCmd(run runner) *cobra.Command {
	return &cobra.Command{
		Use:   "nudge",
		Short: "Thank fans for recent large tips",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), "nudge", cmd.OutOrStdout(), func(ctx context.Context, a *app.App, out io.Writer) error {
				sent, err := a.Nudger.Scan(ctx)
				fmt.Fprintf(out, "nudged=%d\n", sent)
				return err
			})
		},
	}
}

// runJob 加载配置并装配 App，执行后打印活动日志；App 在返回前关闭
func runJob(ctx context.Context, name string, out io.Writer, job jobFunc) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := logger.Init(cfg.Log.Level, cfg.Log.Format); err != nil {
		return err
	}
	if err := errreport.Init(cfg.Sentry); err != nil {
		logger.Warn("sentry init failed", zap.Error(err))
	}

	a, err := app.Build(ctx, cfg)
	if err != nil {
		return fmt.Errorf("startup failed: %w", err)
	}
	defer a.Close()

	start := time.Now()
	err = job(ctx, a, out)

	entries, _ := a.Activity.All(ctx)
	for _, e := range entries {
		fmt.Fprintln(out, e)
	}
	if err != nil {
		errreport.Capture(err, map[string]string{"job": name})
		logger.Error("job failed", zap.String("job", name), zap.Duration("elapsed", time.Since(start)), zap.Error(err))
		return err
	}
	logger.Info("job finished", zap.String("job", name), zap.Duration("elapsed", time.Since(start)))
	return nil
}

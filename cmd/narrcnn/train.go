package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kratzket/try-git/internal/config"
	"github.com/kratzket/try-git/internal/model"
	"github.com/kratzket/try-git/internal/output"
	"github.com/kratzket/try-git/internal/output/async"
	"github.com/kratzket/try-git/internal/output/file"
	"github.com/kratzket/try-git/internal/output/multi"
	"github.com/kratzket/try-git/internal/output/stdout"
	"github.com/kratzket/try-git/internal/output/webhook"
	"github.com/kratzket/try-git/internal/pipeline"
)

var (
	trainPath string
	validPath string
	epochs    int
	seed      uint64
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train every configured model and report per-epoch metrics",
	RunE: func(cmd *cobra.Command, args []string) error {
		applyTrainFlags(cmd, cfg)
		if err := cfg.Validate(); err != nil {
			return err
		}

		out, err := buildOutput(cfg.Output, logger)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigCh)
		go func() {
			select {
			case sig := <-sigCh:
				logger.Info("received signal, stopping after current batch", zap.Stringer("signal", sig))
				cancel()
			case <-ctx.Done():
			}
		}()

		p := pipeline.New(cfg, out,
			pipeline.WithLogger(logger),
			pipeline.WithSummaryWriter(cmd.ErrOrStderr()),
		)
		summaries, runErr := p.Run(ctx)
		closeErr := p.Close()

		printSummaries(cmd.ErrOrStderr(), summaries)
		if runErr != nil && !errors.Is(runErr, context.Canceled) {
			return runErr
		}
		return closeErr
	},
}

func init() {
	f := trainCmd.Flags()
	f.StringVar(&trainPath, "train", "", "training split (overrides data.train_path)")
	f.StringVar(&validPath, "valid", "", "validation split (overrides data.valid_path)")
	f.IntVar(&epochs, "epochs", 0, "epochs per model (overrides train.epochs)")
	f.Uint64Var(&seed, "seed", 0, "random seed (overrides train.seed)")
}

func applyTrainFlags(cmd *cobra.Command, c *config.Config) {
	applyDataFlags(c)
	if cmd.Flags().Changed("epochs") {
		c.Train.Epochs = epochs
	}
	if cmd.Flags().Changed("seed") {
		c.Train.Seed = seed
	}
}

func applyDataFlags(c *config.Config) {
	if trainPath != "" {
		c.Data.TrainPath = trainPath
	}
	if validPath != "" {
		c.Data.ValidPath = validPath
	}
}

// buildOutput assembles the configured report destinations. Without any
// destination reports are only logged by the trainer.
func buildOutput(oc config.OutputConfig, logger *zap.Logger) (output.Output, error) {
	verbosity, err := output.ParseVerbosity(oc.Verbosity)
	if err != nil {
		return nil, err
	}

	var outs []output.Output
	if oc.Stdout {
		outs = append(outs, stdout.New(verbosity, oc.Pretty))
	}
	if oc.FilePath != "" {
		maxSize, err := oc.MaxSizeBytes()
		if err != nil {
			return nil, err
		}
		opts := []file.Option{file.WithMaxSize(maxSize)}
		if oc.FileMaxBackups > 0 {
			opts = append(opts, file.WithMaxBackups(oc.FileMaxBackups))
		}
		f, err := file.New(oc.FilePath, verbosity, opts...)
		if err != nil {
			return nil, err
		}
		outs = append(outs, f)
	}
	if oc.WebhookURL != "" {
		opts := []webhook.Option{
			webhook.WithVerbosity(verbosity),
			webhook.WithLogger(logger),
		}
		if len(oc.WebhookHeaders) > 0 {
			opts = append(opts, webhook.WithHeaders(oc.WebhookHeaders))
		}
		if oc.WebhookBatchSize > 0 {
			opts = append(opts, webhook.WithBatchSize(oc.WebhookBatchSize))
		}
		outs = append(outs, webhook.New(oc.WebhookURL, opts...))
	}

	var out output.Output
	switch len(outs) {
	case 0:
		return nil, nil
	case 1:
		out = outs[0]
	default:
		out = multi.New(outs...)
	}
	if oc.Async {
		out = async.New(out, async.WithLogger(logger))
	}
	return out, nil
}

func printSummaries(w io.Writer, summaries []model.RunSummary) {
	for _, s := range summaries {
		status := "done"
		if s.Interrupted {
			status = "interrupted"
		}
		line := fmt.Sprintf("%-8s %s params, %d epochs in %s (%s)",
			s.Model, humanize.Comma(int64(s.Params)), len(s.Epochs), s.Duration.Round(time.Millisecond), status)
		if last, ok := s.Last(); ok && last.ValSamples > 0 {
			line += fmt.Sprintf(": val_loss %.4f val_acc %.4f", last.ValLoss, last.ValAccuracy)
		}
		fmt.Fprintln(w, line)
	}
}

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fpang/hoopcoach/internal/cli"
	"github.com/fpang/hoopcoach/internal/filehandler"
	"github.com/fpang/hoopcoach/internal/notify"
	"github.com/fpang/hoopcoach/internal/session"
)

const notifyGrace = 15 * time.Second

type analyzeOptions struct {
	pick     bool
	download bool
	export   bool
	output   string
	s3Bucket string
}

func newAnalyzeCmd() *cobra.Command {
	var opts analyzeOptions
	cmd := &cobra.Command{
		Use:   "analyze [video]",
		Short: "Upload a video and wait for coaching feedback",
		Long: `Uploads a video (mp4, mov or avi, up to 100 MB), follows processing and
prints the timestamped coaching insights once the analysis completes.

Without a path, --pick opens a file dialog; on an interactive terminal you
are prompted for a path instead.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd)
			if err != nil {
				return err
			}
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			return runAnalyze(contextOf(cmd), a, path, opts)
		},
	}
	cmd.Flags().BoolVar(&opts.pick, "pick", false, "Choose the video with a file dialog")
	cmd.Flags().BoolVar(&opts.download, "download", false, "Download the analyzed video when done")
	cmd.Flags().BoolVar(&opts.export, "export", false, "Write a result bundle when done")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Path for the downloaded video")
	cmd.Flags().StringVar(&opts.s3Bucket, "s3-bucket", "", "Upload the result bundle to this bucket (implies --export)")
	return cmd
}

func resolveVideoPath(path string, pick bool) (string, error) {
	if path != "" {
		return path, nil
	}
	if pick {
		return filehandler.PickVideoFile()
	}
	if cli.IsTerminal(os.Stdin) {
		return cli.PromptForPath(os.Stdin, os.Stderr), nil
	}
	return "", nil
}

func runAnalyze(ctx context.Context, a *app, path string, opts analyzeOptions) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	path, err := resolveVideoPath(path, opts.pick)
	if errors.Is(err, filehandler.ErrPickCanceled) {
		a.printf("No file selected\n")
		return nil
	}
	if err != nil {
		return err
	}

	in, err := cli.ValidateAndResolveVideo(path)
	if err != nil {
		return errors.New(cli.DescribeError(err))
	}

	credential := a.credential(ctx)

	history, err := a.openHistory(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("History unavailable, session will not be recorded")
		history = nil
	}
	defer closeStore(history)

	ctrl := session.NewController(a.api, session.WithPollInterval(a.cfg.PollInterval()))
	ctrl.Subscribe(newProgressPrinter(a.out).observe)
	if history != nil {
		recorder := newHistoryRecorder(history, a.cfg.Server.BaseURL)
		defer recorder.Close()
		ctrl.Subscribe(recorder.observe)
	}

	log.Info().
		Str("file", in.Name).
		Int64("bytes", in.SizeBytes).
		Str("server", a.cfg.Server.BaseURL).
		Msg("Submitting video")

	if err := ctrl.StartSubmission(ctx, in, credential); err != nil {
		return err
	}

	// The controller always reaches a terminal state once ctx is canceled.
	snap, err := ctrl.Wait(context.WithoutCancel(ctx))
	if err != nil {
		return err
	}

	a.finishSession(context.WithoutCancel(ctx), snap)

	if snap.State == session.Failed {
		return errors.New(snap.Error)
	}

	printResult(a, snap)

	if opts.download {
		if _, err := a.download(ctx, snap.SessionID, opts.output); err != nil {
			return err
		}
	}
	if opts.export || opts.s3Bucket != "" {
		m := manifestFromSnapshot(snap)
		if err := a.export(ctx, m, opts.s3Bucket); err != nil {
			return err
		}
	}
	return nil
}

// finishSession sends notifications and metrics for a terminal snapshot.
func (a *app) finishSession(ctx context.Context, snap session.Snapshot) {
	log.Info().
		Str("sessionId", snap.SessionID).
		Stringer("state", snap.State).
		Int("polls", snap.PollCount).
		Dur("elapsed", snap.Duration()).
		Msg("Session finished")

	if n := a.notifier(ctx); n != nil {
		if event, ok := notify.FromSnapshot(snap); ok {
			nctx, cancel := context.WithTimeout(ctx, notifyGrace)
			if err := n.Notify(nctx, event); err != nil {
				log.Warn().Err(err).Msg("Some notifications were not delivered")
			}
			cancel()
		}
	}

	if a.cfg.Metrics.Enabled {
		if err := emitSessionMetrics(os.Stderr, snap); err != nil {
			log.Warn().Err(err).Msg("Failed to write metrics")
		}
	}
}

func printResult(a *app, snap session.Snapshot) {
	a.printf("\n%s\n", snap.StatusText)
	if info := cli.VideoInfoLine(snap.VideoInfo); info != "" {
		a.printf("Video: %s\n", info)
	}
	a.printf("%s\n", cli.InsightTable(snap.Insights))
	a.printf("Preview:  %s\n", snap.PreviewURL)
	a.printf("Download: %s\n", snap.DownloadURL)
	if d := snap.Duration(); d > 0 {
		a.printf("Finished in %s\n", cli.FormatDurationShort(d))
	}
	fmt.Fprintln(a.out)
}

package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fpang/hoopcoach/internal/artifact"
	"github.com/fpang/hoopcoach/internal/cli"
	"github.com/fpang/hoopcoach/internal/coachapi"
	"github.com/fpang/hoopcoach/internal/filehandler"
	"github.com/fpang/hoopcoach/internal/session"
	"github.com/fpang/hoopcoach/internal/stage"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <session-id>",
		Short: "Query the status of a session once",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd)
			if err != nil {
				return err
			}
			return runStatus(contextOf(cmd), a, args[0])
		},
	}
}

func runStatus(ctx context.Context, a *app, id string) error {
	status, err := a.api.Status(ctx, id)
	if err != nil {
		return fmt.Errorf("%s: %w", session.MsgStatusCheckFailed, err)
	}

	phase := stage.Describe(status.Progress)
	if status.Status == coachapi.StatusCompleted {
		phase = stage.Describe(100)
	}
	a.printf("Session:  %s\n", id)
	a.printf("Status:   %s\n", status.Status)
	a.printf("%s\n", cli.ProgressLine(phase, cli.IsTerminal(a.out)))

	a.syncHistory(ctx, id, status)

	switch status.Status {
	case coachapi.StatusCompleted:
		if info := cli.VideoInfoLine(status.VideoInfo); info != "" {
			a.printf("Video:    %s\n", info)
		}
		a.printf("%s\n", cli.InsightTable(status.Commentary))
		a.printf("Download: %s\n", a.api.DownloadURL(id))
	case coachapi.StatusError:
		msg := status.Error
		if msg == "" {
			msg = session.MsgProcessingFailed
		}
		return fmt.Errorf("%s", msg)
	}
	return nil
}

// syncHistory updates a recorded session with a fresh status.
func (a *app) syncHistory(ctx context.Context, id string, status *coachapi.StatusResponse) {
	history, err := a.openHistory(ctx)
	if err != nil || history == nil {
		return
	}
	defer closeStore(history)

	rec, err := history.GetSession(ctx, id)
	if err != nil || rec == nil {
		return
	}
	applyStatus(rec, status)
	if err := history.PutSession(ctx, rec); err != nil {
		log.Warn().Err(err).Str("sessionId", id).Msg("Failed to update session history")
	}
}

func newDownloadCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "download <session-id>",
		Short: "Download the analyzed video of a completed session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd)
			if err != nil {
				return err
			}
			ctx := contextOf(cmd)
			_, err = a.download(ctx, args[0], output)
			return err
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Destination file (default: server file name in the output directory)")
	return cmd
}

func (a *app) download(ctx context.Context, id, output string) (string, error) {
	path, n, err := artifact.SaveDownload(ctx, a.api, id, a.cfg.Export.OutputDir, output)
	if err != nil {
		return "", err
	}
	a.printf("Saved %s (%s)\n", path, filehandler.FormatFileSize(n))
	return path, nil
}

func newExportCmd() *cobra.Command {
	var bucket string
	cmd := &cobra.Command{
		Use:   "export <session-id>",
		Short: "Write a zip bundle of the analyzed video and insights",
		Long: `Fetches the insights and the analyzed video of a completed session and
writes them to a zstd-compressed zip bundle in the output directory. With
--s3-bucket (or [export] s3_bucket) the bundle is also uploaded to S3.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd)
			if err != nil {
				return err
			}
			ctx := contextOf(cmd)
			id := args[0]
			status, err := a.api.Status(ctx, id)
			if err != nil {
				return fmt.Errorf("%s: %w", session.MsgStatusCheckFailed, err)
			}
			if status.Status != coachapi.StatusCompleted {
				return fmt.Errorf("session %s is %s, only completed sessions can be exported", id, status.Status)
			}
			return a.export(ctx, manifestFromStatus(id, status), bucket)
		},
	}
	cmd.Flags().StringVar(&bucket, "s3-bucket", "", "Upload the bundle to this S3 bucket")
	return cmd
}

func manifestFromSnapshot(s session.Snapshot) artifact.Manifest {
	return artifact.Manifest{
		SessionID: s.SessionID,
		FileName:  s.FileName,
		VideoInfo: s.VideoInfo,
		Insights:  s.Insights,
	}
}

func manifestFromStatus(id string, status *coachapi.StatusResponse) artifact.Manifest {
	return artifact.Manifest{
		SessionID: id,
		VideoInfo: status.VideoInfo,
		Insights:  status.Commentary,
	}
}

// export streams the analyzed video straight into a bundle and optionally
// uploads the result.
func (a *app) export(ctx context.Context, m artifact.Manifest, bucket string) error {
	if bucket == "" {
		bucket = a.cfg.Export.S3Bucket
	}
	path := filepath.Join(a.cfg.Export.OutputDir, artifact.BundleName(m.SessionID))

	pr, pw := io.Pipe()
	go func() {
		_, _, err := a.api.Download(ctx, m.SessionID, pw)
		pw.CloseWithError(err)
	}()

	n, err := artifact.CreateBundle(path, artifact.Bundle{
		Manifest:  m,
		Video:     pr,
		VideoName: coachapi.DefaultArtifactName(m.SessionID),
	})
	pr.Close()
	if err != nil {
		return fmt.Errorf("export %s: %w", m.SessionID, err)
	}
	a.printf("Bundle written to %s (%s)\n", path, filehandler.FormatFileSize(n))

	if bucket == "" {
		return nil
	}
	client, err := a.aws.S3(ctx)
	if err != nil {
		return err
	}
	key, err := artifact.UploadBundle(ctx, client, bucket, a.cfg.Export.S3Prefix, m.SessionID, path)
	if err != nil {
		return err
	}
	a.printf("Uploaded to s3://%s/%s\n", bucket, key)

	a.shareLink(ctx, bucket, key)
	return nil
}

// shareLink prints a week-long presigned link to the uploaded bundle. The
// upload already succeeded, so failures only warn.
func (a *app) shareLink(ctx context.Context, bucket, key string) {
	presigner, err := a.aws.Presigner(ctx)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Could not create a share link")
		return
	}
	url, err := artifact.ShareURL(ctx, presigner, bucket, key, 7*24*time.Hour)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Could not create a share link")
		return
	}
	a.printf("Share link (7 days): %s\n", url)
}

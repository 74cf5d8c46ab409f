package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/fpang/hoopcoach/internal/cli"
	"github.com/fpang/hoopcoach/internal/filehandler"
	"github.com/fpang/hoopcoach/internal/store"
)

func newHistoryCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recently analyzed sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd)
			if err != nil {
				return err
			}
			return runHistoryList(contextOf(cmd), a, limit)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", store.DefaultListLimit, "Maximum sessions to list")

	cmd.AddCommand(&cobra.Command{
		Use:   "show <session-id>",
		Short: "Show the recorded result of one session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd)
			if err != nil {
				return err
			}
			return runHistoryShow(contextOf(cmd), a, args[0])
		},
	})
	return cmd
}

func contextOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func (a *app) requireHistory(ctx context.Context) (store.SessionStore, error) {
	history, err := a.openHistory(ctx)
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	if history == nil {
		return nil, fmt.Errorf("history is disabled ([history] backend = %q)", a.cfg.History.Backend)
	}
	return history, nil
}

func runHistoryList(ctx context.Context, a *app, limit int) error {
	history, err := a.requireHistory(ctx)
	if err != nil {
		return err
	}
	defer closeStore(history)

	records, err := history.ListSessions(ctx, limit)
	if err != nil {
		return fmt.Errorf("list history: %w", err)
	}
	if len(records) == 0 {
		a.printf("No sessions recorded yet.\n")
		return nil
	}

	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, []string{
			r.ID,
			r.FileName,
			filehandler.FormatFileSize(r.FileBytes),
			r.State,
			cli.FormatProgress(r.Progress),
			strconv.Itoa(len(r.Insights)),
			formatUnix(r.CreatedAt),
		})
	}
	a.printf("%s\n", cli.RenderTable(
		[]string{"Session", "File", "Size", "State", "Progress", "Insights", "Submitted"},
		rows, 2, 4, 5))
	return nil
}

func runHistoryShow(ctx context.Context, a *app, id string) error {
	history, err := a.requireHistory(ctx)
	if err != nil {
		return err
	}
	defer closeStore(history)

	rec, err := history.GetSession(ctx, id)
	if err != nil {
		return fmt.Errorf("read history: %w", err)
	}
	if rec == nil {
		return fmt.Errorf("session %s not found in history", id)
	}

	a.printf("Session:   %s\n", rec.ID)
	a.printf("File:      %s (%s)\n", rec.FileName, filehandler.FormatFileSize(rec.FileBytes))
	a.printf("Server:    %s\n", rec.ServerURL)
	a.printf("State:     %s (%s, %s)\n", rec.State, rec.Stage, cli.FormatProgress(rec.Progress))
	a.printf("Submitted: %s\n", formatUnix(rec.CreatedAt))
	if rec.FinishedAt != 0 {
		a.printf("Finished:  %s\n", formatUnix(rec.FinishedAt))
	}
	if rec.Error != "" {
		a.printf("Error:     %s\n", rec.Error)
	}
	if len(rec.Insights) > 0 {
		a.printf("%s\n", cli.InsightTable(rec.Insights))
	}
	return nil
}

func formatUnix(sec int64) string {
	if sec == 0 {
		return "-"
	}
	return time.Unix(sec, 0).Local().Format("2006-01-02 15:04")
}

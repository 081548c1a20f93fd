package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

type syncRecordView struct {
	JobID           string `json:"job_id"`
	Year            int    `json:"year"`
	Language        string `json:"language"`
	Priority        int    `json:"priority"`
	Status          string `json:"status"`
	Attempts        int    `json:"attempts"`
	ErrorMessage    string `json:"error_message,omitempty"`
	MoviesProcessed int    `json:"movies_processed"`
	MoviesFailed    int    `json:"movies_failed"`
}

func newSyncCommand(ctx *commandContext) *cobra.Command {
	var year int
	var startYear int
	var endYear int
	var maxResults int
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Queue TMDB metadata sync runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := ctx.client()

			switch {
			case year > 0:
				var record syncRecordView
				body := map[string]any{"year": year, "max_results": maxResults}
				if err := client.post(cmd.Context(), "/api/v1/media/movie-cache/update/year", body, &record); err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, record)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Queued sync for %d as %s\n", record.Year, record.JobID)
				return nil
			case startYear > 0 || endYear > 0:
				if startYear <= 0 || endYear <= 0 {
					return errors.New("both --start-year and --end-year are required for a range sync")
				}
				var response struct {
					Jobs []syncRecordView `json:"jobs"`
				}
				body := map[string]any{"start_year": startYear, "end_year": endYear, "max_results": maxResults}
				if err := client.post(cmd.Context(), "/api/v1/media/movie-cache/update/year-range", body, &response); err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, response)
				}
				out := cmd.OutOrStdout()
				for _, record := range response.Jobs {
					fmt.Fprintf(out, "Queued sync for %d as %s (priority %d)\n", record.Year, record.JobID, record.Priority)
				}
				return nil
			default:
				return errors.New("specify --year or --start-year/--end-year")
			}
		},
	}

	cmd.Flags().IntVar(&year, "year", 0, "Sync a single release year")
	cmd.Flags().IntVar(&startYear, "start-year", 0, "First year of a range sync")
	cmd.Flags().IntVar(&endYear, "end-year", 0, "Last year of a range sync")
	cmd.Flags().IntVar(&maxResults, "max-results", 0, "Cap on movies synced (split across a range)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit JSON output")

	cmd.AddCommand(newSyncStatusCommand(ctx))
	cmd.AddCommand(newSyncRetryCommand(ctx))
	return cmd
}

func newSyncRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry",
		Short: "Re-enqueue failed sync runs that are past their backoff window",
		RunE: func(cmd *cobra.Command, args []string) error {
			var response struct {
				Retried int `json:"retried"`
			}
			if err := ctx.client().post(cmd.Context(), "/api/v1/media/movie-cache/retry-failed", map[string]any{}, &response); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Re-enqueued %d failed sync runs\n", response.Retried)
			return nil
		},
	}
}

func newSyncStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "status <job-id>",
		Short: "Show the state of one sync job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var response struct {
				Record syncRecordView `json:"record"`
				Job    map[string]any `json:"job"`
			}
			path := "/api/v1/media/movie-cache/update/" + args[0]
			if err := ctx.client().get(cmd.Context(), path, &response); err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd, response)
			}
			out := cmd.OutOrStdout()
			record := response.Record
			fmt.Fprintf(out, "Job:       %s\n", record.JobID)
			fmt.Fprintf(out, "Year:      %d (%s)\n", record.Year, record.Language)
			fmt.Fprintf(out, "Status:    %s\n", record.Status)
			fmt.Fprintf(out, "Attempts:  %d\n", record.Attempts)
			fmt.Fprintf(out, "Progress:  %d processed, %d failed\n", record.MoviesProcessed, record.MoviesFailed)
			if record.ErrorMessage != "" {
				fmt.Fprintf(out, "Error:     %s\n", record.ErrorMessage)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit JSON output")
	return cmd
}

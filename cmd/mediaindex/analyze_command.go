package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newAnalyzeCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Linguistic analysis of stored subtitles",
	}
	cmd.AddCommand(newAnalyzeTextCommand(ctx))
	cmd.AddCommand(newAnalyzeSubtitleCommand(ctx))
	cmd.AddCommand(newAnalyzeMovieCommand(ctx))
	cmd.AddCommand(newAnalyzeBulkCommand(ctx))
	cmd.AddCommand(newAnalyzeProfileCommand(ctx))
	return cmd
}

func newAnalyzeTextCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "text <text>",
		Short: "Profile ad-hoc text without storing anything",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var profile map[string]any
			body := map[string]any{"text": strings.Join(args, " ")}
			if err := ctx.client().post(cmd.Context(), "/api/v1/linguistic/process", body, &profile); err != nil {
				return err
			}
			return writeJSON(cmd, profile)
		},
	}
}

func newAnalyzeMovieCommand(ctx *commandContext) *cobra.Command {
	var language string

	cmd := &cobra.Command{
		Use:   "movie <tmdb-id>",
		Short: "Analyze a movie's active subtitle synchronously",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTMDBIDArg(args[0])
			if err != nil {
				return err
			}
			var response struct {
				SubtitleID string `json:"subtitle_id"`
				Status     string `json:"status"`
			}
			path := fmt.Sprintf("/api/v1/linguistic/media/movie/%d/process?language=%s", id, language)
			if err := ctx.client().post(cmd.Context(), path, map[string]any{}, &response); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Subtitle %s %s\n", response.SubtitleID, response.Status)
			return nil
		},
	}

	cmd.Flags().StringVar(&language, "language", "en", "Subtitle language")
	return cmd
}

func newAnalyzeSubtitleCommand(ctx *commandContext) *cobra.Command {
	var wait bool

	cmd := &cobra.Command{
		Use:   "subtitle <subtitle-id>",
		Short: "Analyze one subtitle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := ctx.client()
			body := map[string]any{"subtitle_id": args[0]}
			out := cmd.OutOrStdout()

			if wait {
				var response struct {
					SubtitleID string `json:"subtitle_id"`
					Status     string `json:"status"`
				}
				if err := client.post(cmd.Context(), "/api/v1/process/subtitle", body, &response); err != nil {
					return err
				}
				fmt.Fprintf(out, "Subtitle %s %s\n", response.SubtitleID, response.Status)
				return nil
			}

			var response struct {
				JobID string `json:"job_id"`
			}
			if err := client.post(cmd.Context(), "/api/v1/linguistic/process", body, &response); err != nil {
				return err
			}
			fmt.Fprintf(out, "Queued processing job %s\n", response.JobID)
			return nil
		},
	}

	cmd.Flags().BoolVar(&wait, "wait", false, "Process synchronously instead of queueing a job")
	return cmd
}

func newAnalyzeBulkCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "bulk",
		Short: "Queue batch processing of unprocessed subtitles",
		RunE: func(cmd *cobra.Command, args []string) error {
			var response struct {
				JobID string `json:"job_id"`
			}
			body := map[string]any{"limit": limit}
			if err := ctx.client().post(cmd.Context(), "/api/v1/process/bulk", body, &response); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Queued processing job %s\n", response.JobID)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Cap on subtitles claimed by the batch")
	return cmd
}

func newAnalyzeProfileCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "profile <tmdb-id>",
		Short: "Show the latest linguistic profile for a movie",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTMDBIDArg(args[0])
			if err != nil {
				return err
			}
			var response struct {
				TMDBID          int64  `json:"tmdb_id"`
				AnalysisVersion string `json:"analysis_version"`
				SubtitleID      string `json:"subtitle_id"`
				CreatedAt       string `json:"created_at"`
				Profile         struct {
					SentencesCount     int      `json:"sentences_count"`
					SentencesAvgLength float64  `json:"sentences_avg_length"`
					Difficulty         *float64 `json:"difficulty,omitempty"`
					Concepts           map[string][]struct {
						Concept        string `json:"concept"`
						NumOccurrences int    `json:"num_occurrences"`
					} `json:"concepts"`
				} `json:"profile"`
			}
			path := fmt.Sprintf("/api/v1/linguistic/media/movie/%d", id)
			if err := ctx.client().get(cmd.Context(), path, &response); err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd, response)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Profile for TMDB %d (version %s, subtitle %s)\n", response.TMDBID, response.AnalysisVersion, response.SubtitleID)
			fmt.Fprintf(out, "  Sentences:   %d (avg %.1f words)\n", response.Profile.SentencesCount, response.Profile.SentencesAvgLength)
			if response.Profile.Difficulty != nil {
				fmt.Fprintf(out, "  Difficulty:  %.2f\n", *response.Profile.Difficulty)
			}
			top := response.Profile.Concepts["word"]
			if len(top) > 10 {
				top = top[:10]
			}
			if len(top) > 0 {
				parts := make([]string, 0, len(top))
				for _, concept := range top {
					parts = append(parts, fmt.Sprintf("%s (%d)", concept.Concept, concept.NumOccurrences))
				}
				fmt.Fprintf(out, "  Top words:   %s\n", strings.Join(parts, ", "))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit JSON output")
	return cmd
}

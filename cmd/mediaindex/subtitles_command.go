package main

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"
)

type subtitleView struct {
	ID               string   `json:"id"`
	Language         string   `json:"language"`
	Format           string   `json:"format"`
	Version          string   `json:"version"`
	Source           string   `json:"source"`
	QualityScore     *float64 `json:"quality_score,omitempty"`
	IsActive         bool     `json:"is_active"`
	ProcessingStatus string   `json:"processing_status"`
}

func newSubtitlesCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "subtitles",
		Short: "Subtitle download and catalog operations",
	}
	cmd.AddCommand(newSubtitlesDownloadCommand(ctx))
	cmd.AddCommand(newSubtitlesMissingCommand(ctx))
	cmd.AddCommand(newSubtitlesListCommand(ctx))
	cmd.AddCommand(newSubtitlesUploadCommand(ctx))
	return cmd
}

func newSubtitlesDownloadCommand(ctx *commandContext) *cobra.Command {
	var tmdbID int64
	var languages []string
	var maxDownloads int

	cmd := &cobra.Command{
		Use:   "download",
		Short: "Queue subtitle downloads (one movie or a sweep over the backlog)",
		RunE: func(cmd *cobra.Command, args []string) error {
			body := map[string]any{
				"tmdb_id":       tmdbID,
				"languages":     languages,
				"max_downloads": maxDownloads,
			}
			var response struct {
				JobID string `json:"job_id"`
			}
			if err := ctx.client().post(cmd.Context(), "/api/v1/subtitles/download/start", body, &response); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Queued download job %s\n", response.JobID)
			return nil
		},
	}

	cmd.Flags().Int64Var(&tmdbID, "tmdb-id", 0, "Download for one movie only")
	cmd.Flags().StringSliceVar(&languages, "language", nil, "Subtitle languages (defaults to the configured set)")
	cmd.Flags().IntVar(&maxDownloads, "max", 0, "Cap on downloads during a sweep")
	return cmd
}

func newSubtitlesMissingCommand(ctx *commandContext) *cobra.Command {
	var language string
	var page int
	var limit int
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "missing",
		Short: "List movies without an active subtitle",
		RunE: func(cmd *cobra.Command, args []string) error {
			var response struct {
				Results  []movieView `json:"results"`
				Total    int64       `json:"total"`
				Language string      `json:"language"`
			}
			query := url.Values{}
			query.Set("language", language)
			if page > 0 {
				query.Set("page", strconv.Itoa(page))
			}
			if limit > 0 {
				query.Set("limit", strconv.Itoa(limit))
			}
			path := "/api/v1/subtitles/media/missing-subtitles?" + query.Encode()
			if err := ctx.client().get(cmd.Context(), path, &response); err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd, response)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%d movies missing %s subtitles\n", response.Total, response.Language)
			for _, movie := range response.Results {
				fmt.Fprintf(out, "  %d  %s (%d)\n", movie.TMDBID, movie.Title, movie.Year)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&language, "language", "en", "Subtitle language")
	cmd.Flags().IntVar(&page, "page", 0, "Result page")
	cmd.Flags().IntVar(&limit, "limit", 0, "Page size")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit JSON output")
	return cmd
}

func newSubtitlesListCommand(ctx *commandContext) *cobra.Command {
	var language string
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "list <tmdb-id>",
		Short: "List stored subtitles for a movie",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTMDBIDArg(args[0])
			if err != nil {
				return err
			}
			var response struct {
				Results []subtitleView `json:"results"`
			}
			path := fmt.Sprintf("/api/v1/subtitles/media/subtitles/%d", id)
			if language != "" {
				path += "?language=" + url.QueryEscape(language)
			}
			if err := ctx.client().get(cmd.Context(), path, &response); err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd, response)
			}
			out := cmd.OutOrStdout()
			if len(response.Results) == 0 {
				fmt.Fprintln(out, "No subtitles stored")
				return nil
			}
			for _, subtitle := range response.Results {
				line := fmt.Sprintf("%s  %s/%s  %s  %s", subtitle.ID, subtitle.Language, subtitle.Format, subtitle.Source, subtitle.ProcessingStatus)
				if subtitle.QualityScore != nil {
					line += fmt.Sprintf("  quality %.2f", *subtitle.QualityScore)
				}
				if subtitle.IsActive {
					line += "  active"
				}
				fmt.Fprintln(out, line)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&language, "language", "", "Filter by language")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit JSON output")
	return cmd
}

func newSubtitlesUploadCommand(ctx *commandContext) *cobra.Command {
	var language string

	cmd := &cobra.Command{
		Use:   "upload <tmdb-id> <file>",
		Short: "Upload a subtitle file for a movie",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTMDBIDArg(args[0])
			if err != nil {
				return err
			}
			data, err := os.ReadFile(args[1])
			if err != nil {
				return fmt.Errorf("read subtitle file: %w", err)
			}
			var subtitle subtitleView
			path := fmt.Sprintf("/api/v1/subtitles/media/subtitles/%d", id)
			if err := ctx.client().upload(cmd.Context(), path, language, filepath.Base(args[1]), data, &subtitle); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Stored %s subtitle %s (%s)\n", subtitle.Language, subtitle.ID, subtitle.Format)
			return nil
		},
	}

	cmd.Flags().StringVar(&language, "language", "en", "Subtitle language")
	return cmd
}

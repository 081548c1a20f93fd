package main

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

type movieView struct {
	TMDBID      int64    `json:"tmdb_id"`
	Title       string   `json:"title"`
	Language    string   `json:"language"`
	ReleaseDate string   `json:"release_date"`
	Year        int      `json:"year"`
	Genres      []string `json:"genres,omitempty"`
	Runtime     *int     `json:"runtime,omitempty"`
	Overview    string   `json:"overview,omitempty"`
	Difficulty  *float64 `json:"difficulty,omitempty"`
	Author      string   `json:"author,omitempty"`
}

func newMovieCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "movie",
		Short: "Catalog lookups",
	}
	cmd.AddCommand(newMovieGetCommand(ctx))
	cmd.AddCommand(newMovieSuggestCommand(ctx))
	return cmd
}

func newMovieGetCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "get <tmdb-id>",
		Short: "Show one movie by its TMDB id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTMDBIDArg(args[0])
			if err != nil {
				return err
			}
			var movie movieView
			if err := ctx.client().get(cmd.Context(), fmt.Sprintf("/api/v1/media/get/%d", id), &movie); err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd, movie)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s (%d)\n", movie.Title, movie.Year)
			fmt.Fprintf(out, "  TMDB id:    %d\n", movie.TMDBID)
			fmt.Fprintf(out, "  Released:   %s\n", movie.ReleaseDate)
			if len(movie.Genres) > 0 {
				fmt.Fprintf(out, "  Genres:     %s\n", strings.Join(movie.Genres, ", "))
			}
			if movie.Runtime != nil {
				fmt.Fprintf(out, "  Runtime:    %d min\n", *movie.Runtime)
			}
			if movie.Author != "" {
				fmt.Fprintf(out, "  Directors:  %s\n", movie.Author)
			}
			if movie.Difficulty != nil {
				fmt.Fprintf(out, "  Difficulty: %.2f\n", *movie.Difficulty)
			}
			if movie.Overview != "" {
				fmt.Fprintf(out, "  %s\n", movie.Overview)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit JSON output")
	return cmd
}

func newMovieSuggestCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "suggest <query>",
		Short: "Search catalog suggestions",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			var response struct {
				Results []struct {
					Kind       string   `json:"type"`
					ID         int64    `json:"id"`
					Title      string   `json:"title"`
					Year       int      `json:"year,omitempty"`
					Difficulty *float64 `json:"difficulty,omitempty"`
				} `json:"results"`
			}
			path := "/api/v1/media/suggest?query=" + url.QueryEscape(query)
			if err := ctx.client().get(cmd.Context(), path, &response); err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd, response)
			}
			out := cmd.OutOrStdout()
			if len(response.Results) == 0 {
				fmt.Fprintln(out, "No matches")
				return nil
			}
			for _, result := range response.Results {
				line := fmt.Sprintf("%d  %s", result.ID, result.Title)
				if result.Year > 0 {
					line += fmt.Sprintf(" (%d)", result.Year)
				}
				if result.Difficulty != nil {
					line += fmt.Sprintf("  difficulty %.2f", *result.Difficulty)
				}
				fmt.Fprintln(out, line)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit JSON output")
	return cmd
}

func parseTMDBIDArg(arg string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid tmdb id %q", arg)
	}
	return id, nil
}

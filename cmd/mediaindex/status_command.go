package main

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

const (
	ansiReset = "\x1b[0m"
	ansiRed   = "\x1b[31m"
	ansiGreen = "\x1b[32m"
)

type daemonStatusView struct {
	Running        bool   `json:"running"`
	WorkersRunning bool   `json:"workers_running"`
	LastError      string `json:"last_error,omitempty"`
	APIAddress     string `json:"api_address,omitempty"`
}

type queueStatsView struct {
	Queued  int64 `json:"Queued"`
	Started int64 `json:"Started"`
}

type statusView struct {
	Daemon            daemonStatusView          `json:"daemon"`
	Queues            map[string]queueStatsView `json:"queues"`
	ProcessingBacklog int64                     `json:"processing_backlog"`
}

type healthView struct {
	Healthy bool              `json:"healthy"`
	Checks  map[string]string `json:"checks"`
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, queue, and dependency health",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := ctx.client()

			var status statusView
			if err := client.get(cmd.Context(), "/api/status", &status); err != nil {
				return err
			}
			var health healthView
			// Health probing degrades to 503 with a body; surface the checks
			// either way.
			if err := client.get(cmd.Context(), "/healthz", &health); err != nil {
				health.Checks = map[string]string{"api": err.Error()}
			}

			if jsonOut {
				return writeJSON(cmd, map[string]any{"status": status, "health": health})
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			fmt.Fprintf(out, "Daemon:   %s\n", stateLabel(status.Daemon.Running, colorize))
			fmt.Fprintf(out, "Workers:  %s\n", stateLabel(status.Daemon.WorkersRunning, colorize))
			if status.Daemon.APIAddress != "" {
				fmt.Fprintf(out, "API:      %s\n", status.Daemon.APIAddress)
			}
			if status.Daemon.LastError != "" {
				fmt.Fprintf(out, "Last error: %s\n", status.Daemon.LastError)
			}
			fmt.Fprintf(out, "Backlog:  %d subtitles awaiting analysis\n", status.ProcessingBacklog)

			if len(status.Queues) > 0 {
				fmt.Fprintln(out)
				fmt.Fprintln(out, renderQueueTable(status.Queues))
			}

			if len(health.Checks) > 0 {
				fmt.Fprintln(out)
				names := make([]string, 0, len(health.Checks))
				for name := range health.Checks {
					names = append(names, name)
				}
				sort.Strings(names)
				for _, name := range names {
					fmt.Fprintf(out, "%-10s %s\n", name+":", health.Checks[name])
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit JSON output")
	return cmd
}

func renderQueueTable(queues map[string]queueStatsView) string {
	names := make([]string, 0, len(queues))
	for name := range queues {
		names = append(names, name)
	}
	sort.Strings(names)

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"Queue", "Queued", "Started"})
	for _, name := range names {
		stats := queues[name]
		tw.AppendRow(table.Row{name, stats.Queued, stats.Started})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignLeft, AlignHeader: text.AlignLeft},
		{Number: 2, Align: text.AlignRight, AlignHeader: text.AlignLeft},
		{Number: 3, Align: text.AlignRight, AlignHeader: text.AlignLeft},
	})
	return tw.Render()
}

func stateLabel(running bool, colorize bool) string {
	if running {
		if colorize {
			return ansiGreen + "running" + ansiReset
		}
		return "running"
	}
	if colorize {
		return ansiRed + "stopped" + ansiReset
	}
	return "stopped"
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

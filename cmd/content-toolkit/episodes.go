package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/DollhouseMCP/content-workflow-toolkit-sub001/internal/models"
	"github.com/DollhouseMCP/content-workflow-toolkit-sub001/internal/studio"
)

func newEpisodesCommand(ctx *commandContext) *cobra.Command {
	var filter studio.EpisodeFilter
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "episodes",
		Short: "List episodes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := ctx.open()
			if err != nil {
				return err
			}
			defer s.Close()

			list, err := s.core.ListEpisodes(filter)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(list)
			}
			if len(list) == 0 {
				fmt.Fprintln(out, "No episodes found")
				return nil
			}
			fmt.Fprintln(out, renderEpisodes(list, shouldColorize(out)))
			return nil
		},
	}
	cmd.Flags().StringVar(&filter.Series, "series", "", "Only list episodes of this series")
	cmd.Flags().StringVar(&filter.Status, "status", "", "Only list episodes with this content status")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")
	return cmd
}

func newNewEpisodeCommand(ctx *commandContext) *cobra.Command {
	var series, topic, title, description, targetDate string
	cmd := &cobra.Command{
		Use:   "new-episode",
		Short: "Scaffold a new episode folder dated today",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := ctx.open()
			if err != nil {
				return err
			}
			defer s.Close()

			input := map[string]any{
				"series": series,
				"topic":  topic,
				"title":  title,
			}
			if description != "" {
				input["description"] = description
			}
			if targetDate != "" {
				input["target_date"] = targetDate
			}
			ep, err := s.core.CreateEpisode(cmd.Context(), input)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", ep.Path)
			return nil
		},
	}
	cmd.Flags().StringVar(&series, "series", "", "Series folder name")
	cmd.Flags().StringVar(&topic, "topic", "", "Episode topic, used in the folder name")
	cmd.Flags().StringVar(&title, "title", "", "Episode title")
	cmd.Flags().StringVar(&description, "description", "", "Episode description")
	cmd.Flags().StringVar(&targetDate, "target-date", "", "Planned release date (YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("series")
	_ = cmd.MarkFlagRequired("topic")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func renderEpisodes(list []models.Episode, colorize bool) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	if colorize {
		tw.Style().Color.Header = text.Colors{text.Bold, text.FgHiBlue}
	}
	tw.AppendHeader(table.Row{"Series", "Episode", "Title", "Status", "Target"})
	for _, ep := range list {
		release, _ := ep.Metadata["release"].(map[string]any)
		tw.AppendRow(table.Row{
			ep.Series,
			ep.Episode,
			field(ep.Metadata, "title"),
			field(ep.Metadata, "content_status"),
			field(release, "target_date"),
		})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 3, WidthMax: 48},
	})
	return tw.Render()
}

func field(m map[string]any, key string) string {
	if m == nil || m[key] == nil {
		return ""
	}
	if s, ok := m[key].(string); ok {
		return s
	}
	return fmt.Sprint(m[key])
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

package main

import (
	"fmt"
	"io"
	"log"

	"github.com/spf13/cobra"

	"github.com/DollhouseMCP/content-workflow-toolkit-sub001/internal/config"
	"github.com/DollhouseMCP/content-workflow-toolkit-sub001/internal/logging"
	"github.com/DollhouseMCP/content-workflow-toolkit-sub001/internal/studio"
)

func newRootCommand() *cobra.Command {
	var rootFlag string
	ctx := &commandContext{rootFlag: &rootFlag}

	rootCmd := &cobra.Command{
		Use:           "content-toolkit",
		Short:         "Manage episode metadata, the release queue and shared assets",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	rootCmd.PersistentFlags().StringVar(&rootFlag, "root", "", "Content repository root (defaults to CONTENT_ROOT or the working directory)")

	rootCmd.AddCommand(newServeCommand(ctx))
	rootCmd.AddCommand(newMCPCommand(ctx))
	rootCmd.AddCommand(newEpisodesCommand(ctx))
	rootCmd.AddCommand(newNewEpisodeCommand(ctx))
	return rootCmd
}

type commandContext struct {
	rootFlag *string
}

// session is everything a command needs to work on one repository.
type session struct {
	core     *studio.Studio
	settings config.Settings
	logger   *log.Logger
	closer   io.Closer
}

func (s *session) Close() {
	if err := s.closer.Close(); err != nil {
		s.logger.Printf("close log file: %v", err)
	}
}

func (c *commandContext) open() (*session, error) {
	settings, err := config.ResolveSettings()
	if err != nil {
		return nil, fmt.Errorf("resolve settings: %w", err)
	}
	root, err := config.ResolveRoot(*c.rootFlag)
	if err != nil {
		return nil, fmt.Errorf("resolve content root: %w", err)
	}
	logger, closer, err := logging.New("content-toolkit ", settings.LogFile)
	if err != nil {
		return nil, fmt.Errorf("open log: %w", err)
	}
	core, err := studio.Open(root, logger, studio.Options{UploadLimit: settings.UploadLimit})
	if err != nil {
		_ = closer.Close()
		return nil, fmt.Errorf("open content root: %w", err)
	}
	return &session{core: core, settings: settings, logger: logger, closer: closer}, nil
}

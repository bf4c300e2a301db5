package main

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/browser"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/wesm/jira-issue-digest/config"
	"github.com/wesm/jira-issue-digest/internal/analysis"
	"github.com/wesm/jira-issue-digest/internal/api"
	"github.com/wesm/jira-issue-digest/internal/report"
	"github.com/wesm/jira-issue-digest/internal/store"
	"github.com/wesm/jira-issue-digest/internal/sync"
)

var openReport bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default configuration file if it doesn't exist",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.CreateDefaultConfig(cfgFile); err != nil {
			return fmt.Errorf("failed to create default configuration: %w", err)
		}
		log.Infof("Configuration at %s", cfgFile)
		return nil
	},
}

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch closed issues with their change history into the snapshot",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return fetch(cmd.Context(), cfg)
	},
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Compute statistics from the snapshot and render charts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return analyze(cfg)
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Fetch issues, then analyze them",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := fetch(cmd.Context(), cfg); err != nil {
			return err
		}
		return analyze(cfg)
	},
}

func init() {
	analyzeCmd.Flags().BoolVar(&openReport, "open", false, "open the rendered report in the browser")
	runCmd.Flags().BoolVar(&openReport, "open", false, "open the rendered report in the browser")
}

// newSource builds the tracker client selected by the configuration
func newSource(cfg *config.Config) (sync.Source, error) {
	switch cfg.Source {
	case config.SourceGitHub:
		client, err := api.NewGitHubClient(cfg, log)
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		return api.NewJiraClient(cfg, log), nil
	}
}

func fetch(ctx context.Context, cfg *config.Config) error {
	source, err := newSource(cfg)
	if err != nil {
		return err
	}
	st, err := store.New(cfg.SnapshotPath)
	if err != nil {
		return err
	}

	_, err = sync.New(source, st, log).Run(ctx)
	return err
}

func analyze(cfg *config.Config) error {
	startTime := time.Now()

	st, err := store.New(cfg.SnapshotPath)
	if err != nil {
		return err
	}
	result, err := st.Load()
	if err != nil {
		return err
	}

	summary, err := analysis.Analyze(result)
	if err != nil {
		return fmt.Errorf("failed to analyze snapshot: %w", err)
	}
	log.WithFields(logrus.Fields{
		"issues":   summary.IssueCount,
		"resolved": len(summary.ResolutionDurations),
		"states":   len(summary.StateDurations),
	}).Info("Analyzed snapshot")

	index, err := report.NewRenderer(cfg.OutputDir, log).RenderAll(summary)
	if err != nil {
		return err
	}
	log.Infof("Report written to %s in %v", index, time.Since(startTime).Round(time.Millisecond))

	if openReport {
		if err := browser.OpenFile(index); err != nil {
			log.WithError(err).Warn("Could not open the report in a browser")
		}
	}
	return nil
}

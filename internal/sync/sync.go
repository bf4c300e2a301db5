package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/wesm/jira-issue-digest/internal/api"
	"github.com/wesm/jira-issue-digest/internal/models"
	"github.com/wesm/jira-issue-digest/internal/store"
)

// Source yields closed issues as a Jira-shaped search result
type Source interface {
	FetchClosedIssues(ctx context.Context) (*models.SearchResult, error)
}

// Fetcher handles fetching issues from a source into the local snapshot
type Fetcher struct {
	source Source
	store  *store.Store
	log    logrus.FieldLogger
}

// New creates a new fetcher
func New(source Source, st *store.Store, log logrus.FieldLogger) *Fetcher {
	return &Fetcher{
		source: source,
		store:  st,
		log:    log,
	}
}

// Run fetches closed issues and overwrites the snapshot with them
func (f *Fetcher) Run(ctx context.Context) (*models.SearchResult, error) {
	startTime := time.Now()
	f.log.Info("Fetching closed issues...")

	result, err := f.source.FetchClosedIssues(ctx)
	if err != nil {
		var rateLimitErr *api.RateLimitError
		if errors.As(err, &rateLimitErr) {
			f.log.Warnf("Rate limit hit, resets at %s (%s from now)",
				rateLimitErr.ResetTime.Format(time.RFC3339), time.Until(rateLimitErr.ResetTime).Round(time.Second))
		}
		return nil, fmt.Errorf("failed to fetch issues: %w", err)
	}

	f.log.WithFields(logrus.Fields{
		"fetched": len(result.Issues),
		"total":   result.Total,
	}).Info("Fetched issues")

	if err := f.store.Save(result); err != nil {
		return nil, fmt.Errorf("failed to save snapshot %s: %w", f.store.Path(), err)
	}

	f.log.Infof("Saved %d issues to %s in %v", len(result.Issues), f.store.Path(), time.Since(startTime).Round(time.Millisecond))
	return result, nil
}

package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/go-github/v57/github"
	"github.com/sirupsen/logrus"
	"github.com/wesm/jira-issue-digest/config"
	"github.com/wesm/jira-issue-digest/internal/models"
	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// maxWorkers caps parallel event requests to avoid overwhelming the GitHub API
const maxWorkers = 10

// GitHubClient represents a client for the GitHub API that yields
// closed issues in the same document shape as a Jira search
type GitHubClient struct {
	client     *github.Client
	owner      string
	name       string
	maxResults int
	workers    int
	limiter    *rate.Limiter
	log        logrus.FieldLogger
}

// NewGitHubClient creates a new GitHub API client for the configured repository
func NewGitHubClient(cfg *config.Config, log logrus.FieldLogger) (*GitHubClient, error) {
	owner, name, err := config.ParseRepositoryString(cfg.GitHubRepository)
	if err != nil {
		return nil, err
	}

	var tc *http.Client
	if cfg.GitHubToken != "" {
		// Create an authenticated client if a token is provided
		ts := oauth2.StaticTokenSource(
			&oauth2.Token{AccessToken: cfg.GitHubToken},
		)
		tc = oauth2.NewClient(context.Background(), ts)
	}

	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > maxWorkers {
		workers = maxWorkers
	}

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}

	return &GitHubClient{
		client:     github.NewClient(tc),
		owner:      owner,
		name:       name,
		maxResults: cfg.MaxResults,
		workers:    workers,
		limiter:    rate.NewLimiter(limit, workers),
		log:        log.WithField("source", config.SourceGitHub),
	}, nil
}

// FetchClosedIssues gets closed issues with their status events and converts
// them into a Jira-shaped search result
func (c *GitHubClient) FetchClosedIssues(ctx context.Context) (*models.SearchResult, error) {
	issues, err := c.GetClosedIssues(ctx)
	if err != nil {
		return nil, err
	}

	total := len(issues)
	c.log.Infof("Fetching events for %d issues with %d parallel workers", total, c.workers)

	events := make([][]*github.IssueEvent, total)

	var progressMutex sync.Mutex
	processed := 0
	lastProgressUpdate := time.Now()
	progressInterval := 5 * time.Second

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)
	for i, issue := range issues {
		i, issue := i, issue
		g.Go(func() error {
			ev, err := c.GetIssueEvents(gctx, issue.GetNumber())
			if err != nil {
				return fmt.Errorf("issue #%d: %w", issue.GetNumber(), err)
			}
			events[i] = ev

			progressMutex.Lock()
			defer progressMutex.Unlock()
			processed++
			if processed == 1 || processed == total || time.Since(lastProgressUpdate) >= progressInterval {
				c.log.Infof("Progress: %d/%d issues (%.1f%%)",
					processed, total, float64(processed)/float64(total)*100.0)
				lastProgressUpdate = time.Now()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	prefix := c.owner + "/" + c.name
	result := &models.SearchResult{
		MaxResults: c.maxResults,
		Total:      total,
		Issues:     make([]json.RawMessage, 0, total),
	}
	for i, issue := range issues {
		raw, err := json.Marshal(ConvertGitHubIssue(prefix, issue, events[i]))
		if err != nil {
			return nil, fmt.Errorf("failed to encode issue #%d: %w", issue.GetNumber(), err)
		}
		result.Issues = append(result.Issues, raw)
	}

	return result, nil
}

// GetClosedIssues lists closed issues (pull requests excluded), capped at maxResults
func (c *GitHubClient) GetClosedIssues(ctx context.Context) ([]*github.Issue, error) {
	var allIssues []*github.Issue
	opts := &github.IssueListByRepoOptions{
		State:     "closed",
		Sort:      "created",
		Direction: "asc",
		ListOptions: github.ListOptions{
			PerPage: 100,
		},
	}

	for len(allIssues) < c.maxResults {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}

		issues, resp, err := c.client.Issues.ListByRepo(ctx, c.owner, c.name, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to list issues: %w", wrapRateLimit(err))
		}

		for _, issue := range issues {
			if issue.IsPullRequest() {
				continue
			}
			allIssues = append(allIssues, issue)
		}

		c.log.WithFields(logrus.Fields{"page": opts.Page, "count": len(issues)}).Debug("Fetched page")

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	if len(allIssues) > c.maxResults {
		allIssues = allIssues[:c.maxResults]
	}
	return allIssues, nil
}

// GetIssueEvents gets the event timeline for an issue
func (c *GitHubClient) GetIssueEvents(ctx context.Context, number int) ([]*github.IssueEvent, error) {
	var allEvents []*github.IssueEvent
	opts := &github.ListOptions{PerPage: 100}

	for {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}

		events, resp, err := c.client.Issues.ListIssueEvents(ctx, c.owner, c.name, number, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to list events: %w", wrapRateLimit(err))
		}

		allEvents = append(allEvents, events...)

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return allEvents, nil
}

func wrapRateLimit(err error) error {
	var rle *github.RateLimitError
	if errors.As(err, &rle) {
		return &RateLimitError{ResetTime: rle.Rate.Reset.Time, Err: err}
	}
	return err
}

// statusEvents maps GitHub timeline events onto tracker status names
var statusEvents = map[string]string{
	"closed":   "Closed",
	"reopened": "Reopened",
}

// ConvertGitHubIssue converts a GitHub issue and its events to the Jira issue shape
func ConvertGitHubIssue(repo string, issue *github.Issue, events []*github.IssueEvent) models.RawIssue {
	raw := models.RawIssue{
		ID:  fmt.Sprint(issue.GetID()),
		Key: fmt.Sprintf("%s#%d", repo, issue.GetNumber()),
		Fields: models.RawFields{
			Created:  issue.GetCreatedAt().Format(models.TimeLayout),
			Updated:  issue.GetUpdatedAt().Format(models.TimeLayout),
			Status:   &models.NamedRef{Name: issue.GetState()},
			Priority: convertPriority(issue.Labels),
			Reporter: convertUser(issue.User),
			Assignee: convertUser(issue.Assignee),
		},
		Changelog: &models.Changelog{Histories: []models.History{}},
	}

	if issue.ClosedAt != nil {
		closed := issue.ClosedAt.Format(models.TimeLayout)
		raw.Fields.ResolutionDate = &closed
	}

	for _, ev := range events {
		status, ok := statusEvents[ev.GetEvent()]
		if !ok {
			continue
		}
		raw.Changelog.Histories = append(raw.Changelog.Histories, models.History{
			ID:      fmt.Sprint(ev.GetID()),
			Author:  convertUser(ev.Actor),
			Created: ev.GetCreatedAt().Format(models.TimeLayout),
			Items: []models.HistoryItem{{
				Field:    "status",
				ToString: status,
			}},
		})
	}
	raw.Changelog.Total = len(raw.Changelog.Histories)
	raw.Changelog.MaxResults = len(raw.Changelog.Histories)

	return raw
}

// convertUser converts a GitHub user to the embedded user shape
func convertUser(user *github.User) *models.UserRef {
	if user == nil {
		return nil
	}
	return &models.UserRef{
		AccountID:   fmt.Sprint(user.GetID()),
		Name:        user.GetLogin(),
		DisplayName: user.GetLogin(),
	}
}

// convertPriority reads a "priority:<name>" or "priority/<name>" label
func convertPriority(labels []*github.Label) *models.NamedRef {
	for _, label := range labels {
		name := label.GetName()
		lower := strings.ToLower(name)
		for _, prefix := range []string{"priority:", "priority/"} {
			if strings.HasPrefix(lower, prefix) {
				if p := strings.TrimSpace(name[len(prefix):]); p != "" {
					return &models.NamedRef{Name: p}
				}
			}
		}
	}
	return nil
}

package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/wesm/jira-issue-digest/config"
	"github.com/wesm/jira-issue-digest/internal/models"
	"golang.org/x/time/rate"
)

// DefaultFields is the field set requested for every issue
var DefaultFields = []string{
	"id", "key", "created", "updated", "status", "assignee",
	"reporter", "timespent", "priority", "resolutiondate",
}

// DefaultExpand asks Jira to embed the full change history
var DefaultExpand = []string{"changelog"}

// JiraClient represents a client for the Jira search API
type JiraClient struct {
	baseURL    string
	user       string
	token      string
	jql        string
	maxResults int
	pageSize   int
	http       *http.Client
	limiter    *rate.Limiter
	log        logrus.FieldLogger
}

// NewJiraClient creates a new Jira API client from the configuration
func NewJiraClient(cfg *config.Config, log logrus.FieldLogger) *JiraClient {
	user, token := cfg.Credential()

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}

	pageSize := cfg.PageSize
	if pageSize <= 0 || pageSize > cfg.MaxResults {
		pageSize = cfg.MaxResults
	}

	return &JiraClient{
		baseURL:    strings.TrimRight(cfg.JiraBaseURL, "/"),
		user:       user,
		token:      token,
		jql:        cfg.JQL(),
		maxResults: cfg.MaxResults,
		pageSize:   pageSize,
		http:       &http.Client{Timeout: cfg.HTTPTimeout},
		limiter:    rate.NewLimiter(limit, 1),
		log:        log.WithField("source", config.SourceJira),
	}
}

// FetchClosedIssues gets every closed issue of the configured project together with its changelog
func (c *JiraClient) FetchClosedIssues(ctx context.Context) (*models.SearchResult, error) {
	return c.GetIssues(ctx, c.jql, DefaultFields, DefaultExpand)
}

// GetIssues runs a JQL search and follows pages until the result set or the
// configured cap is exhausted. The pages are merged into a single document.
func (c *JiraClient) GetIssues(ctx context.Context, jql string, fields, expand []string) (*models.SearchResult, error) {
	merged := &models.SearchResult{MaxResults: c.maxResults, Issues: []json.RawMessage{}}
	startAt := 0

	for len(merged.Issues) < c.maxResults {
		want := min(c.pageSize, c.maxResults-len(merged.Issues))

		page, err := c.Search(ctx, jql, fields, expand, startAt, want)
		if err != nil {
			return nil, err
		}

		merged.Total = page.Total
		merged.Issues = append(merged.Issues, page.Issues...)

		c.log.WithFields(logrus.Fields{
			"start_at": startAt,
			"count":    len(page.Issues),
			"total":    page.Total,
		}).Debug("Fetched page")

		if len(page.Issues) == 0 {
			break
		}
		startAt += len(page.Issues)
		if startAt >= page.Total {
			break
		}
	}

	if len(merged.Issues) > c.maxResults {
		merged.Issues = merged.Issues[:c.maxResults]
	}
	if merged.Total > len(merged.Issues) {
		c.log.Warnf("Result cap reached: kept %d of %d matching issues", len(merged.Issues), merged.Total)
	}

	return merged, nil
}

// Search fetches a single page of search results
func (c *JiraClient) Search(ctx context.Context, jql string, fields, expand []string, startAt, maxResults int) (*models.SearchResult, error) {
	if c.baseURL == "" {
		return nil, errors.New("jira: empty base url")
	}
	if jql == "" {
		return nil, errors.New("jira: empty jql")
	}

	q := url.Values{}
	q.Set("jql", jql)
	if len(fields) > 0 {
		q.Set("fields", strings.Join(fields, ","))
	}
	if len(expand) > 0 {
		q.Set("expand", strings.Join(expand, ","))
	}
	if startAt > 0 {
		q.Set("startAt", strconv.Itoa(startAt))
	}
	q.Set("maxResults", strconv.Itoa(maxResults))

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create search request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.user != "" {
		req.SetBasicAuth(c.user, c.token)
	} else if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to search issues: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, &HTTPError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var page models.SearchResult
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}
	if page.Issues == nil {
		page.Issues = []json.RawMessage{}
	}

	return &page, nil
}

package analysis

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/wesm/jira-issue-digest/internal/models"
)

// ErrMissingTimestamp is returned when a required timestamp field is absent
var ErrMissingTimestamp = errors.New("missing timestamp")

// ParseTime parses a tracker timestamp. Jira's millisecond layout is tried
// first, RFC 3339 second.
func ParseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, ErrMissingTimestamp
	}
	t, err := time.Parse(models.TimeLayout, s)
	if err == nil {
		return t, nil
	}
	if t, rfcErr := time.Parse(time.RFC3339, s); rfcErr == nil {
		return t, nil
	}
	return time.Time{}, err
}

// Decode converts every issue of a search result into its analysis form.
// Any malformed issue aborts decoding.
func Decode(result *models.SearchResult) ([]models.Issue, error) {
	issues := make([]models.Issue, 0, len(result.Issues))
	for i, msg := range result.Issues {
		var raw models.RawIssue
		if err := json.Unmarshal(msg, &raw); err != nil {
			return nil, fmt.Errorf("failed to decode issue at index %d: %w", i, err)
		}
		issue, err := DecodeIssue(raw)
		if err != nil {
			return nil, err
		}
		issues = append(issues, issue)
	}
	return issues, nil
}

// DecodeIssue parses timestamps, fills sentinels for missing optional
// fields and extracts status changes in chronological order
func DecodeIssue(raw models.RawIssue) (models.Issue, error) {
	issue := models.Issue{
		Key:      raw.Key,
		Priority: models.UnspecifiedPriority,
		Reporter: displayName(raw.Fields.Reporter),
		Assignee: displayName(raw.Fields.Assignee),
	}

	var err error
	if issue.Created, err = ParseTime(raw.Fields.Created); err != nil {
		return issue, fieldError(raw.Key, "created", err)
	}
	if issue.Updated, err = ParseTime(raw.Fields.Updated); err != nil {
		return issue, fieldError(raw.Key, "updated", err)
	}
	if raw.Fields.ResolutionDate != nil && *raw.Fields.ResolutionDate != "" {
		resolved, err := ParseTime(*raw.Fields.ResolutionDate)
		if err != nil {
			return issue, fieldError(raw.Key, "resolutiondate", err)
		}
		issue.Resolved = &resolved
	}
	if raw.Fields.Priority != nil && raw.Fields.Priority.Name != "" {
		issue.Priority = raw.Fields.Priority.Name
	}

	if raw.Changelog == nil {
		return issue, nil
	}
	for _, h := range raw.Changelog.Histories {
		item, ok := statusItem(h.Items)
		if !ok {
			continue
		}
		at, err := ParseTime(h.Created)
		if err != nil {
			return issue, fieldError(raw.Key, "changelog.histories.created", err)
		}
		issue.StatusChanges = append(issue.StatusChanges, models.StatusChange{At: at, Status: item.ToString})
	}

	// Sources are not guaranteed to return history in order
	slices.SortStableFunc(issue.StatusChanges, func(a, b models.StatusChange) int {
		return a.At.Compare(b.At)
	})

	return issue, nil
}

func statusItem(items []models.HistoryItem) (models.HistoryItem, bool) {
	for _, item := range items {
		if item.Field == "status" {
			return item, true
		}
	}
	return models.HistoryItem{}, false
}

func displayName(u *models.UserRef) string {
	if u == nil || u.DisplayName == "" {
		return models.UnknownUser
	}
	return u.DisplayName
}

func fieldError(key, field string, err error) error {
	return fmt.Errorf("issue %s: invalid %s: %w", key, field, err)
}

package models

import (
	"encoding/json"
	"time"
)

const (
	// UnknownUser labels issues whose reporter or assignee is missing
	UnknownUser = "unknown"

	// UnspecifiedPriority labels issues without a priority
	UnspecifiedPriority = "unspecified"

	// TimeLayout is the timestamp format Jira uses for created, updated,
	// resolutiondate and changelog entries
	TimeLayout = "2006-01-02T15:04:05.000-0700"
)

// SearchResult is the issue search response as returned by the tracker.
// Issues are kept raw so the snapshot preserves every field the server sent.
type SearchResult struct {
	Expand     string            `json:"expand,omitempty"`
	StartAt    int               `json:"startAt"`
	MaxResults int               `json:"maxResults"`
	Total      int               `json:"total"`
	Issues     []json.RawMessage `json:"issues"`
}

// RawIssue is the wire shape of a single issue in a search response
type RawIssue struct {
	ID        string     `json:"id,omitempty"`
	Key       string     `json:"key"`
	Fields    RawFields  `json:"fields"`
	Changelog *Changelog `json:"changelog,omitempty"`
}

// RawFields holds the subset of issue fields the analyzer reads
type RawFields struct {
	Created        string    `json:"created"`
	Updated        string    `json:"updated"`
	ResolutionDate *string   `json:"resolutiondate"`
	Status         *NamedRef `json:"status,omitempty"`
	Priority       *NamedRef `json:"priority"`
	Reporter       *UserRef  `json:"reporter"`
	Assignee       *UserRef  `json:"assignee"`
	TimeSpent      *int64    `json:"timespent,omitempty"`
}

// NamedRef is any field value that carries a display name (status, priority)
type NamedRef struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

// UserRef is a user as embedded in issue fields
type UserRef struct {
	AccountID   string `json:"accountId,omitempty"`
	Name        string `json:"name,omitempty"`
	DisplayName string `json:"displayName"`
}

// Changelog is the expanded change history of an issue
type Changelog struct {
	StartAt    int       `json:"startAt"`
	MaxResults int       `json:"maxResults"`
	Total      int       `json:"total"`
	Histories  []History `json:"histories"`
}

// History is one change-history entry; a single entry may change several fields
type History struct {
	ID      string        `json:"id,omitempty"`
	Author  *UserRef      `json:"author,omitempty"`
	Created string        `json:"created"`
	Items   []HistoryItem `json:"items"`
}

// HistoryItem is a single field change within a history entry
type HistoryItem struct {
	Field      string `json:"field"`
	FieldType  string `json:"fieldtype,omitempty"`
	From       string `json:"from,omitempty"`
	FromString string `json:"fromString,omitempty"`
	To         string `json:"to,omitempty"`
	ToString   string `json:"toString"`
}

// Issue is a decoded issue ready for analysis
type Issue struct {
	Key           string
	Created       time.Time
	Updated       time.Time
	Resolved      *time.Time
	Priority      string
	Reporter      string
	Assignee      string
	StatusChanges []StatusChange
}

// StatusChange records the moment an issue entered a status
type StatusChange struct {
	At     time.Time
	Status string
}

// Day is a civil date in YYYY-MM-DD form
type Day string

// DayOf returns the calendar day of t in t's own location
func DayOf(t time.Time) Day {
	return Day(t.Format(time.DateOnly))
}

// Time returns midnight UTC of the day
func (d Day) Time() time.Time {
	t, _ := time.Parse(time.DateOnly, string(d))
	return t
}

// DayCount pairs a day with a count
type DayCount struct {
	Day   Day
	Count int
}

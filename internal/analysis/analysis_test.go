package analysis

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wesm/jira-issue-digest/internal/models"
)

// mockResponse mirrors a two-issue search: one resolved issue with two status
// changes, one unresolved issue without history
const mockResponse = `{
	"issues": [
		{
			"key": "HADOOP-1",
			"fields": {
				"created": "2024-01-01T12:00:00.000+0000",
				"updated": "2024-01-02T12:00:00.000+0000",
				"priority": {"name": "High"},
				"reporter": {"displayName": "User1"},
				"assignee": {"displayName": "User2"},
				"resolutiondate": "2024-01-02T14:00:00.000+0000"
			},
			"changelog": {
				"histories": [
					{"created": "2024-01-01T18:00:00.000+0000", "items": [{"field": "status", "toString": "In Progress"}]},
					{"created": "2024-01-02T10:00:00.000+0000", "items": [{"field": "status", "toString": "Done"}]}
				]
			}
		},
		{
			"key": "HADOOP-2",
			"fields": {
				"created": "2024-01-03T08:00:00.000+0000",
				"updated": "2024-01-03T20:00:00.000+0000",
				"priority": {"name": "Medium"},
				"reporter": {"displayName": "User3"},
				"assignee": {"displayName": "User4"},
				"resolutiondate": null
			},
			"changelog": {"histories": []}
		}
	]
}`

func mockIssues(t *testing.T) []models.Issue {
	t.Helper()
	var result models.SearchResult
	require.NoError(t, json.Unmarshal([]byte(mockResponse), &result))
	issues, err := Decode(&result)
	require.NoError(t, err)
	return issues
}

func at(s string) time.Time {
	t, err := time.Parse(models.TimeLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func ptr(t time.Time) *time.Time { return &t }

func TestOpenDurations(t *testing.T) {
	durations := OpenDurations(mockIssues(t))
	assert.Equal(t, []float64{24.0, 12.0}, durations)
}

func TestResolutionDurations(t *testing.T) {
	durations := ResolutionDurations(mockIssues(t))
	assert.Equal(t, []float64{26.0}, durations, "only resolved issues contribute")
}

func TestTimeInStates(t *testing.T) {
	states := TimeInStates(mockIssues(t))
	assert.Equal(t, map[string]float64{"In Progress": 16.0, "Done": 4.0}, states)
}

func TestTimeInStates_Cases(t *testing.T) {
	t0 := at("2024-03-01T09:00:00.000+0000")
	t1 := at("2024-03-01T12:30:00.000+0000")
	t2 := at("2024-03-02T12:30:00.000+0000")

	tests := []struct {
		name   string
		issues []models.Issue
		want   map[string]float64
	}{
		{
			name: "two changes then resolution",
			issues: []models.Issue{{
				Resolved: ptr(t2),
				StatusChanges: []models.StatusChange{
					{At: t0, Status: "Open"},
					{At: t1, Status: "Review"},
				},
			}},
			want: map[string]float64{"Open": 3.5, "Review": 24},
		},
		{
			name:   "empty history contributes nothing",
			issues: []models.Issue{{Resolved: ptr(t2)}},
			want:   map[string]float64{},
		},
		{
			name: "unresolved issue drops the open interval",
			issues: []models.Issue{{
				StatusChanges: []models.StatusChange{
					{At: t0, Status: "Open"},
					{At: t1, Status: "Review"},
				},
			}},
			want: map[string]float64{"Open": 3.5},
		},
		{
			name: "totals accumulate across issues",
			issues: []models.Issue{
				{Resolved: ptr(t1), StatusChanges: []models.StatusChange{{At: t0, Status: "Open"}}},
				{Resolved: ptr(t2), StatusChanges: []models.StatusChange{{At: t1, Status: "Open"}}},
			},
			want: map[string]float64{"Open": 27.5},
		},
		{
			name: "repeated status in one issue",
			issues: []models.Issue{{
				Resolved: ptr(t2),
				StatusChanges: []models.StatusChange{
					{At: t0, Status: "Open"},
					{At: t1, Status: "Blocked"},
					{At: t1.Add(2 * time.Hour), Status: "Open"},
				},
			}},
			want: map[string]float64{"Open": 3.5 + 22, "Blocked": 2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TimeInStates(tt.issues)
			require.Len(t, got, len(tt.want))
			for status, hours := range tt.want {
				assert.InDelta(t, hours, got[status], 1e-9, status)
			}
		})
	}
}

func TestDecode_NonStatusEntriesAreNotBoundaries(t *testing.T) {
	raw := models.RawIssue{
		Key: "HADOOP-3",
		Fields: models.RawFields{
			Created:        "2024-01-01T00:00:00.000+0000",
			Updated:        "2024-01-02T00:00:00.000+0000",
			ResolutionDate: strPtr("2024-01-01T10:00:00.000+0000"),
		},
		Changelog: &models.Changelog{Histories: []models.History{
			{Created: "2024-01-01T01:00:00.000+0000", Items: []models.HistoryItem{{Field: "status", ToString: "In Progress"}}},
			{Created: "2024-01-01T02:00:00.000+0000", Items: []models.HistoryItem{{Field: "assignee", ToString: "User9"}}},
			{Created: "2024-01-01T03:00:00.000+0000"},
			{Created: "2024-01-01T04:00:00.000+0000", Items: []models.HistoryItem{
				{Field: "resolution", ToString: "Fixed"},
				{Field: "status", ToString: "Resolved"},
			}},
		}},
	}

	issue, err := DecodeIssue(raw)
	require.NoError(t, err)
	require.Len(t, issue.StatusChanges, 2)

	states := TimeInStates([]models.Issue{issue})
	assert.Equal(t, map[string]float64{"In Progress": 3, "Resolved": 6}, states)
}

func TestDecode_SortsHistory(t *testing.T) {
	raw := models.RawIssue{
		Key: "HADOOP-4",
		Fields: models.RawFields{
			Created:        "2024-01-01T00:00:00.000+0000",
			Updated:        "2024-01-01T00:00:00.000+0000",
			ResolutionDate: strPtr("2024-01-01T05:00:00.000+0000"),
		},
		Changelog: &models.Changelog{Histories: []models.History{
			{Created: "2024-01-01T03:00:00.000+0000", Items: []models.HistoryItem{{Field: "status", ToString: "Done"}}},
			{Created: "2024-01-01T01:00:00.000+0000", Items: []models.HistoryItem{{Field: "status", ToString: "In Progress"}}},
		}},
	}

	issue, err := DecodeIssue(raw)
	require.NoError(t, err)
	assert.Equal(t, "In Progress", issue.StatusChanges[0].Status)
	assert.Equal(t, map[string]float64{"In Progress": 2, "Done": 2}, TimeInStates([]models.Issue{issue}))
}

func TestDecode_Sentinels(t *testing.T) {
	issue, err := DecodeIssue(models.RawIssue{
		Key: "HADOOP-5",
		Fields: models.RawFields{
			Created:  "2024-01-01T00:00:00.000+0000",
			Updated:  "2024-01-01T00:00:00.000+0000",
			Reporter: &models.UserRef{},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, models.UnknownUser, issue.Reporter)
	assert.Equal(t, models.UnknownUser, issue.Assignee)
	assert.Equal(t, models.UnspecifiedPriority, issue.Priority)
	assert.Nil(t, issue.Resolved)
	assert.Empty(t, issue.StatusChanges)
}

func TestDecode_Errors(t *testing.T) {
	valid := "2024-01-01T00:00:00.000+0000"

	tests := []struct {
		name   string
		fields models.RawFields
		hist   []models.History
	}{
		{"missing created", models.RawFields{Updated: valid}, nil},
		{"malformed created", models.RawFields{Created: "01/01/2024", Updated: valid}, nil},
		{"missing updated", models.RawFields{Created: valid}, nil},
		{"malformed resolution", models.RawFields{Created: valid, Updated: valid, ResolutionDate: strPtr("yesterday")}, nil},
		{"malformed status history", models.RawFields{Created: valid, Updated: valid}, []models.History{
			{Created: "soon", Items: []models.HistoryItem{{Field: "status", ToString: "Open"}}},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := models.RawIssue{Key: "BAD-1", Fields: tt.fields}
			if tt.hist != nil {
				raw.Changelog = &models.Changelog{Histories: tt.hist}
			}
			_, err := DecodeIssue(raw)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "BAD-1")
		})
	}
}

func TestDecode_AbortsOnBadIssue(t *testing.T) {
	result := &models.SearchResult{Issues: []json.RawMessage{
		json.RawMessage(`{"key":"OK-1","fields":{"created":"2024-01-01T00:00:00.000+0000","updated":"2024-01-01T00:00:00.000+0000"}}`),
		json.RawMessage(`{"key":"BAD-2","fields":{"created":"nope","updated":"2024-01-01T00:00:00.000+0000"}}`),
	}}
	_, err := Analyze(result)
	assert.Error(t, err)
}

func TestParseTime(t *testing.T) {
	jira, err := ParseTime("2024-01-01T12:00:00.000+0300")
	require.NoError(t, err)
	assert.True(t, jira.Equal(time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)))

	rfc, err := ParseTime("2024-01-01T09:00:00Z")
	require.NoError(t, err)
	assert.True(t, rfc.Equal(jira))

	_, err = ParseTime("")
	assert.ErrorIs(t, err, ErrMissingTimestamp)
}

func TestDaily(t *testing.T) {
	stats := Daily(mockIssues(t))

	assert.Equal(t, 1, stats.Created["2024-01-01"])
	assert.Equal(t, 1, stats.Created["2024-01-03"])
	assert.Equal(t, 1, stats.Closed["2024-01-02"])
	assert.Len(t, stats.Closed, 1)

	assert.Equal(t, []models.DayCount{
		{Day: "2024-01-01", Count: 1},
		{Day: "2024-01-02", Count: 1},
		{Day: "2024-01-03", Count: 2},
	}, stats.CumulativeCreated)
	assert.Equal(t, []models.DayCount{
		{Day: "2024-01-01", Count: 0},
		{Day: "2024-01-02", Count: 1},
		{Day: "2024-01-03", Count: 1},
	}, stats.CumulativeClosed)
}

func TestDaily_UsesTimestampOffset(t *testing.T) {
	// 23:30 at -0500 is already the next day in UTC; the local calendar day wins
	issue := models.Issue{Created: at("2024-01-01T23:30:00.000-0500")}
	stats := Daily([]models.Issue{issue})
	assert.Equal(t, 1, stats.Created["2024-01-01"])
}

func TestDaily_Empty(t *testing.T) {
	stats := Daily(nil)
	assert.Empty(t, stats.Created)
	assert.Empty(t, stats.CumulativeCreated)
	assert.Empty(t, stats.CumulativeClosed)
}

func TestSortedCounts(t *testing.T) {
	got := SortedCounts(map[models.Day]int{"2024-02-01": 3, "2023-12-31": 1, "2024-01-15": 2})
	assert.Equal(t, []models.DayCount{
		{Day: "2023-12-31", Count: 1},
		{Day: "2024-01-15", Count: 2},
		{Day: "2024-02-01", Count: 3},
	}, got)
}

func TestUserActivity(t *testing.T) {
	created, closed := UserActivity(mockIssues(t))

	assert.Equal(t, map[string]int{"User1": 1, "User3": 1}, created)
	assert.Equal(t, map[string]int{"User2": 1}, closed)
	assert.Equal(t, 0, closed["User4"], "unresolved issues do not count for the assignee")
}

func TestUserActivity_UnknownAssignee(t *testing.T) {
	issues := []models.Issue{{
		Reporter: models.UnknownUser,
		Assignee: models.UnknownUser,
		Resolved: ptr(at("2024-01-01T00:00:00.000+0000")),
	}}
	created, closed := UserActivity(issues)
	assert.Equal(t, 1, created[models.UnknownUser])
	assert.Equal(t, 1, closed[models.UnknownUser])
}

func TestPriorityDistribution(t *testing.T) {
	counts := PriorityDistribution(mockIssues(t))

	assert.Equal(t, map[string]int{"High": 1, "Medium": 1}, counts)
	_, ok := counts["Low"]
	assert.False(t, ok, "absent priorities are not zero-filled")
}

func TestSummarize(t *testing.T) {
	summary := Summarize(mockIssues(t))

	assert.Equal(t, 2, summary.IssueCount)
	assert.Len(t, summary.OpenDurations, 2)
	assert.Len(t, summary.ResolutionDurations, 1)
	assert.Equal(t, 16.0, summary.StateDurations["In Progress"])
	assert.Equal(t, 1, summary.UserClosed["User2"])
	assert.Equal(t, 1, summary.Priorities["High"])
	assert.Len(t, summary.Daily.CumulativeCreated, 3)
}

func TestSortedKeys(t *testing.T) {
	assert.Equal(t, []string{"Done", "In Progress", "Open"},
		SortedKeys(map[string]float64{"Open": 1, "Done": 2, "In Progress": 3}))
}

func strPtr(s string) *string { return &s }

package store

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wesm/jira-issue-digest/internal/models"
)

const sampleResponse = `{
	"startAt": 0,
	"maxResults": 1000,
	"total": 2,
	"issues": [
		{
			"id": "1",
			"key": "HADOOP-1",
			"fields": {
				"created": "2024-01-01T12:00:00.000+0000",
				"updated": "2024-01-02T12:00:00.000+0000",
				"priority": {"name": "High", "iconUrl": "https://example.com/high.svg"},
				"reporter": {"displayName": "User1"},
				"assignee": {"displayName": "User2"},
				"resolutiondate": "2024-01-02T14:00:00.000+0000",
				"customfield_10010": [1, 2, 3]
			},
			"changelog": {
				"histories": [
					{"created": "2024-01-01T18:00:00.000+0000", "items": [{"field": "status", "toString": "In Progress"}]}
				]
			}
		},
		{
			"id": "2",
			"key": "HADOOP-2",
			"fields": {
				"created": "2024-01-03T08:00:00.000+0000",
				"updated": "2024-01-03T20:00:00.000+0000",
				"priority": {"name": "Medium"},
				"reporter": {"displayName": "User3"},
				"assignee": null,
				"resolutiondate": null
			},
			"changelog": {"histories": []}
		}
	]
}`

func TestStore_RoundTrip(t *testing.T) {
	var fetched models.SearchResult
	require.NoError(t, json.Unmarshal([]byte(sampleResponse), &fetched))

	s, err := New(filepath.Join(t.TempDir(), "data.json"))
	require.NoError(t, err)
	require.NoError(t, s.Save(&fetched))

	raw, err := s.LoadRaw()
	require.NoError(t, err)

	var want map[string]any
	require.NoError(t, json.Unmarshal([]byte(sampleResponse), &want))
	assert.Equal(t, want, raw, "reloaded snapshot must be structurally identical to the response")

	loaded, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, fetched.Total, loaded.Total)
	require.Len(t, loaded.Issues, 2)
	assert.JSONEq(t, string(fetched.Issues[0]), string(loaded.Issues[0]))
}

func TestStore_IndentedOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	s, err := New(path)
	require.NoError(t, err)
	require.NoError(t, s.Save(&models.SearchResult{Total: 0, Issues: []json.RawMessage{}}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "{\n    \"startAt\""), "snapshot is indented with four spaces")
}

func TestStore_Overwrite(t *testing.T) {
	dir := t.TempDir()
	s, err := New(filepath.Join(dir, "data.json"))
	require.NoError(t, err)

	require.NoError(t, s.Save(&models.SearchResult{Total: 1, Issues: []json.RawMessage{json.RawMessage(`{"key":"A-1"}`)}}))
	require.NoError(t, s.Save(&models.SearchResult{Total: 0, Issues: []json.RawMessage{}}))

	loaded, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, 0, loaded.Total)
	assert.Empty(t, loaded.Issues)

	// No temp files left behind
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestStore_MissingSnapshot(t *testing.T) {
	s, err := New(filepath.Join(t.TempDir(), "data.json"))
	require.NoError(t, err)

	_, err = s.Load()
	assert.True(t, errors.Is(err, ErrNoSnapshot))
}

func TestStore_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	s, err := New(path)
	require.NoError(t, err)
	_, err = s.Load()
	assert.Error(t, err)
}

func TestNew_EmptyPath(t *testing.T) {
	_, err := New("")
	assert.Error(t, err)
}

package analysis

import (
	"cmp"
	"slices"
	"time"

	"github.com/wesm/jira-issue-digest/internal/models"
)

// DailyStats holds per-day created and closed counts plus running totals over
// the union of days on which anything was created or closed
type DailyStats struct {
	Created           map[models.Day]int
	Closed            map[models.Day]int
	CumulativeCreated []models.DayCount
	CumulativeClosed  []models.DayCount
}

// Summary bundles every dataset derived from one snapshot
type Summary struct {
	IssueCount          int
	OpenDurations       []float64
	StateDurations      map[string]float64
	Daily               DailyStats
	UserCreated         map[string]int
	UserClosed          map[string]int
	ResolutionDurations []float64
	Priorities          map[string]int
}

// Analyze decodes a search result and computes all datasets
func Analyze(result *models.SearchResult) (*Summary, error) {
	issues, err := Decode(result)
	if err != nil {
		return nil, err
	}
	return Summarize(issues), nil
}

// Summarize computes all datasets for already decoded issues
func Summarize(issues []models.Issue) *Summary {
	created, closed := UserActivity(issues)
	return &Summary{
		IssueCount:          len(issues),
		OpenDurations:       OpenDurations(issues),
		StateDurations:      TimeInStates(issues),
		Daily:               Daily(issues),
		UserCreated:         created,
		UserClosed:          closed,
		ResolutionDurations: ResolutionDurations(issues),
		Priorities:          PriorityDistribution(issues),
	}
}

// OpenDurations returns, per issue, the hours between creation and last update
func OpenDurations(issues []models.Issue) []float64 {
	durations := make([]float64, 0, len(issues))
	for _, issue := range issues {
		durations = append(durations, issue.Updated.Sub(issue.Created).Hours())
	}
	return durations
}

// ResolutionDurations returns the hours between creation and resolution for resolved issues
func ResolutionDurations(issues []models.Issue) []float64 {
	durations := make([]float64, 0, len(issues))
	for _, issue := range issues {
		if issue.Resolved == nil {
			continue
		}
		durations = append(durations, issue.Resolved.Sub(issue.Created).Hours())
	}
	return durations
}

// TimeInStates sums, across all issues, the hours spent in each status.
// A status interval runs from its change to the next status change, or to
// the resolution for the last one. The last interval of an unresolved issue
// is open and therefore not counted.
func TimeInStates(issues []models.Issue) map[string]float64 {
	durations := make(map[string]float64)
	for _, issue := range issues {
		changes := issue.StatusChanges
		for i, change := range changes {
			var end time.Time
			switch {
			case i+1 < len(changes):
				end = changes[i+1].At
			case issue.Resolved != nil:
				end = *issue.Resolved
			default:
				continue
			}
			durations[change.Status] += end.Sub(change.At).Hours()
		}
	}
	return durations
}

// Daily counts issues created and closed per calendar day with running totals
func Daily(issues []models.Issue) DailyStats {
	stats := DailyStats{
		Created: make(map[models.Day]int),
		Closed:  make(map[models.Day]int),
	}
	for _, issue := range issues {
		stats.Created[models.DayOf(issue.Created)]++
		if issue.Resolved != nil {
			stats.Closed[models.DayOf(*issue.Resolved)]++
		}
	}

	days := make([]models.Day, 0, len(stats.Created)+len(stats.Closed))
	for day := range stats.Created {
		days = append(days, day)
	}
	for day := range stats.Closed {
		if _, ok := stats.Created[day]; !ok {
			days = append(days, day)
		}
	}
	slices.Sort(days)

	stats.CumulativeCreated = make([]models.DayCount, 0, len(days))
	stats.CumulativeClosed = make([]models.DayCount, 0, len(days))
	totalCreated, totalClosed := 0, 0
	for _, day := range days {
		totalCreated += stats.Created[day]
		totalClosed += stats.Closed[day]
		stats.CumulativeCreated = append(stats.CumulativeCreated, models.DayCount{Day: day, Count: totalCreated})
		stats.CumulativeClosed = append(stats.CumulativeClosed, models.DayCount{Day: day, Count: totalClosed})
	}

	return stats
}

// SortedCounts returns the entries of a per-day map ordered by day
func SortedCounts(counts map[models.Day]int) []models.DayCount {
	out := make([]models.DayCount, 0, len(counts))
	for day, n := range counts {
		out = append(out, models.DayCount{Day: day, Count: n})
	}
	slices.SortFunc(out, func(a, b models.DayCount) int {
		return cmp.Compare(a.Day, b.Day)
	})
	return out
}

// UserActivity counts issues reported per user and, for resolved issues, closed per assignee
func UserActivity(issues []models.Issue) (created, closed map[string]int) {
	created = make(map[string]int)
	closed = make(map[string]int)
	for _, issue := range issues {
		created[issue.Reporter]++
		if issue.Resolved != nil {
			closed[issue.Assignee]++
		}
	}
	return created, closed
}

// PriorityDistribution counts issues per priority name
func PriorityDistribution(issues []models.Issue) map[string]int {
	counts := make(map[string]int)
	for _, issue := range issues {
		counts[issue.Priority]++
	}
	return counts
}

// SortedKeys returns the keys of m in ascending order
func SortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

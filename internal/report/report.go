package report

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/wesm/jira-issue-digest/internal/analysis"
	"github.com/wesm/jira-issue-digest/internal/models"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// DefaultBins is the histogram bin count
const DefaultBins = 20

// Chart file names written into the output directory
const (
	OpenDurationsFile       = "open_durations.png"
	StateDurationsFile      = "state_durations.png"
	DailyStatsFile          = "daily_stats.png"
	UserActivityFile        = "user_activity.png"
	ResolutionDurationsFile = "resolution_durations.png"
	PrioritiesFile          = "priority_distribution.png"
	IndexFile               = "index.html"
)

// Renderer writes one PNG per dataset into a directory
type Renderer struct {
	dir    string
	Bins   int
	Width  vg.Length
	Height vg.Length
	log    logrus.FieldLogger
}

// NewRenderer creates a renderer writing into dir
func NewRenderer(dir string, log logrus.FieldLogger) *Renderer {
	return &Renderer{
		dir:    dir,
		Bins:   DefaultBins,
		Width:  10 * vg.Inch,
		Height: 6 * vg.Inch,
		log:    log,
	}
}

// Dir returns the output directory
func (r *Renderer) Dir() string {
	return r.dir
}

// RenderAll renders every chart of the summary plus an HTML index and
// returns the index path
func (r *Renderer) RenderAll(s *analysis.Summary) (string, error) {
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	charts := []struct {
		file   string
		render func() error
	}{
		{OpenDurationsFile, func() error {
			return r.Histogram(OpenDurationsFile, "Distribution of Issue Open Durations", "Hours open", s.OpenDurations)
		}},
		{StateDurationsFile, func() error { return r.StateDurations(s.StateDurations) }},
		{DailyStatsFile, func() error { return r.DailyStats(s.Daily) }},
		{UserActivityFile, func() error { return r.UserActivity(s.UserCreated, s.UserClosed) }},
		{ResolutionDurationsFile, func() error {
			return r.Histogram(ResolutionDurationsFile, "Distribution of Time Logged", "Hours to resolution", s.ResolutionDurations)
		}},
		{PrioritiesFile, func() error { return r.PriorityDistribution(s.Priorities) }},
	}

	files := make([]string, 0, len(charts))
	for _, c := range charts {
		if err := c.render(); err != nil {
			return "", fmt.Errorf("failed to render %s: %w", c.file, err)
		}
		r.log.WithField("chart", c.file).Debug("Rendered chart")
		files = append(files, c.file)
	}

	index, err := r.writeIndex(s, files)
	if err != nil {
		return "", err
	}
	r.log.WithField("dir", r.dir).Infof("Rendered %d charts", len(files))
	return index, nil
}

// Histogram renders a distribution of hour values
func (r *Renderer) Histogram(file, title, xLabel string, hours []float64) error {
	p := newPlot(title, xLabel, "Number of issues")
	if len(hours) > 0 {
		h, err := plotter.NewHist(plotter.Values(hours), r.bins())
		if err != nil {
			return err
		}
		h.FillColor = plotutil.Color(0)
		p.Add(h)
	}
	return r.save(p, file)
}

// StateDurations renders total hours per status as a bar chart
func (r *Renderer) StateDurations(durations map[string]float64) error {
	p := newPlot("Time Spent in Each State", "State", "Total hours")
	statuses := analysis.SortedKeys(durations)
	if len(statuses) > 0 {
		values := make(plotter.Values, len(statuses))
		for i, status := range statuses {
			values[i] = durations[status]
		}
		bars, err := plotter.NewBarChart(values, vg.Points(20))
		if err != nil {
			return err
		}
		bars.Color = plotutil.Color(1)
		p.Add(bars)
		p.NominalX(statuses...)
	}
	return r.save(p, StateDurationsFile)
}

// DailyStats renders created and closed counts per day with dashed
// cumulative totals
func (r *Renderer) DailyStats(stats analysis.DailyStats) error {
	p := newPlot("Daily Issue Statistics", "Date", "Number of issues")
	p.X.Tick.Marker = plot.TimeTicks{Format: "2006-01-02"}

	series := []struct {
		name   string
		counts []models.DayCount
		color  color.Color
		dashed bool
	}{
		{"Created", analysis.SortedCounts(stats.Created), plotutil.Color(0), false},
		{"Closed", analysis.SortedCounts(stats.Closed), plotutil.Color(1), false},
		{"Cumulative created", stats.CumulativeCreated, plotutil.Color(0), true},
		{"Cumulative closed", stats.CumulativeClosed, plotutil.Color(1), true},
	}
	for _, s := range series {
		if len(s.counts) == 0 {
			continue
		}
		line, err := plotter.NewLine(dayPoints(s.counts))
		if err != nil {
			return err
		}
		line.Color = s.color
		line.Width = vg.Points(1.5)
		if s.dashed {
			line.Dashes = []vg.Length{vg.Points(6), vg.Points(3)}
		}
		p.Add(line)
		p.Legend.Add(s.name, line)
	}
	p.Legend.Top = true
	p.Legend.Left = true
	return r.save(p, DailyStatsFile)
}

// UserActivity renders issues created and closed per user as stacked bars
func (r *Renderer) UserActivity(created, closed map[string]int) error {
	p := newPlot("User Activity", "User", "Number of issues")

	users := make(map[string]struct{}, len(created)+len(closed))
	for u := range created {
		users[u] = struct{}{}
	}
	for u := range closed {
		users[u] = struct{}{}
	}
	names := analysis.SortedKeys(users)

	if len(names) > 0 {
		createdValues := make(plotter.Values, len(names))
		closedValues := make(plotter.Values, len(names))
		for i, name := range names {
			createdValues[i] = float64(created[name])
			closedValues[i] = float64(closed[name])
		}

		createdBars, err := plotter.NewBarChart(createdValues, vg.Points(20))
		if err != nil {
			return err
		}
		createdBars.Color = plotutil.Color(0)

		closedBars, err := plotter.NewBarChart(closedValues, vg.Points(20))
		if err != nil {
			return err
		}
		closedBars.Color = plotutil.Color(1)
		closedBars.StackOn(createdBars)

		p.Add(createdBars, closedBars)
		p.Legend.Add("Created", createdBars)
		p.Legend.Add("Closed", closedBars)
		p.Legend.Top = true
		p.NominalX(names...)
	}
	return r.save(p, UserActivityFile)
}

// PriorityDistribution renders issue counts per priority as a bar chart
func (r *Renderer) PriorityDistribution(counts map[string]int) error {
	p := newPlot("Issue Priority Distribution", "Priority", "Number of issues")
	priorities := analysis.SortedKeys(counts)
	if len(priorities) > 0 {
		values := make(plotter.Values, len(priorities))
		for i, priority := range priorities {
			values[i] = float64(counts[priority])
		}
		bars, err := plotter.NewBarChart(values, vg.Points(20))
		if err != nil {
			return err
		}
		bars.Color = plotutil.Color(2)
		p.Add(bars)
		p.NominalX(priorities...)
	}
	return r.save(p, PrioritiesFile)
}

func (r *Renderer) bins() int {
	if r.Bins < 1 {
		return DefaultBins
	}
	return r.Bins
}

func (r *Renderer) save(p *plot.Plot, file string) error {
	return p.Save(r.Width, r.Height, filepath.Join(r.dir, file))
}

func newPlot(title, xLabel, yLabel string) *plot.Plot {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = xLabel
	p.Y.Label.Text = yLabel
	p.Add(plotter.NewGrid())
	return p
}

// dayPoints places each day at its Unix time so TimeTicks can label it
func dayPoints(counts []models.DayCount) plotter.XYs {
	pts := make(plotter.XYs, len(counts))
	for i, c := range counts {
		pts[i].X = float64(c.Day.Time().Unix())
		pts[i].Y = float64(c.Count)
	}
	return pts
}

package report

import (
	"fmt"
	"html/template"
	"os"
	"path/filepath"

	"github.com/wesm/jira-issue-digest/internal/analysis"
)

var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Issue digest</title>
<style>body{font-family:sans-serif;margin:2em}img{max-width:100%;margin-bottom:2em}</style>
</head>
<body>
<h1>Issue digest</h1>
<p>{{.IssueCount}} issues, {{.Resolved}} resolved.</p>
{{range .Charts}}<div><img src="{{.}}" alt="{{.}}"></div>
{{end}}</body>
</html>
`))

func (r *Renderer) writeIndex(s *analysis.Summary, charts []string) (string, error) {
	path := filepath.Join(r.dir, IndexFile)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create index: %w", err)
	}
	defer f.Close()

	data := struct {
		IssueCount int
		Resolved   int
		Charts     []string
	}{
		IssueCount: s.IssueCount,
		Resolved:   len(s.ResolutionDurations),
		Charts:     charts,
	}
	if err := indexTemplate.Execute(f, data); err != nil {
		return "", fmt.Errorf("failed to write index: %w", err)
	}
	return path, f.Close()
}

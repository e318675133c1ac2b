// Package report summarises the record store as text, JSON or an HTML
// gallery.
package report

import (
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	texttemplate "text/template"
	"time"

	"github.com/FranksOps/stylus/internal/analyzer"
	"github.com/FranksOps/stylus/internal/storage"
)

// Summary contains aggregated figures about the collected records.
type Summary struct {
	GeneratedAt time.Time `json:"generatedAt"`
	LastUpdate  time.Time `json:"lastUpdate"`

	TotalSongs int `json:"totalSongs"`
	TotalURLs  int `json:"totalUrls"`
	WithTitle  int `json:"withTitle"`
	WithPrompt int `json:"withPrompt"`
	WithImage  int `json:"withImage"`
	Complete   int `json:"complete"`

	TopKeywords []analyzer.KeywordCount `json:"topKeywords"`
	Records     []storage.Record        `json:"-"`
}

// GenerateSummary aggregates songs and url records. topN bounds the keyword
// list.
func GenerateSummary(songs []storage.SongRecord, records []storage.Record, lastUpdate time.Time, topN int) Summary {
	s := Summary{
		GeneratedAt: time.Now().UTC(),
		LastUpdate:  lastUpdate,
		TotalSongs:  len(songs),
		TotalURLs:   len(records),
		Records:     records,
	}
	for _, r := range records {
		if r.Title != "" {
			s.WithTitle++
		}
		if r.Prompt != "" {
			s.WithPrompt++
		}
		if r.ImageURL != "" {
			s.WithImage++
		}
		if r.Title != "" && r.Prompt != "" && r.ImageURL != "" {
			s.Complete++
		}
	}
	s.TopKeywords = analyzer.Keywords(analyzer.Prompts(records, songs), topN)
	return s
}

// WriteJSON writes the summary to the provided writer in JSON format.
func WriteJSON(w io.Writer, summary Summary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary); err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	return nil
}

var funcs = map[string]any{
	"stamp": func(t time.Time) string {
		if t.IsZero() {
			return "never"
		}
		return t.Local().Format("2006-01-02 15:04:05")
	},
	"pct": func(part, total int) string {
		if total == 0 {
			return "0%"
		}
		return fmt.Sprintf("%.0f%%", 100*float64(part)/float64(total))
	},
}

const textTmpl = `Stylus Collection Summary
-------------------------
Generated:    {{stamp .GeneratedAt}}
Last update:  {{stamp .LastUpdate}}
Songs:        {{.TotalSongs}}
URLs:         {{.TotalURLs}}
  titled:     {{.WithTitle}} ({{pct .WithTitle .TotalURLs}})
  prompted:   {{.WithPrompt}} ({{pct .WithPrompt .TotalURLs}})
  with image: {{.WithImage}} ({{pct .WithImage .TotalURLs}})
  complete:   {{.Complete}} ({{pct .Complete .TotalURLs}})

Top styles:
{{- range .TopKeywords}}
  {{printf "%-24s" .Keyword}} {{.Count}}
{{- else}}
  None
{{- end}}
`

// WriteText writes a human-readable text summary to the provided writer.
func WriteText(w io.Writer, summary Summary) error {
	t, err := texttemplate.New("textReport").Funcs(funcs).Parse(textTmpl)
	if err != nil {
		return fmt.Errorf("parse text template: %w", err)
	}
	if err := t.Execute(w, summary); err != nil {
		return fmt.Errorf("render text report: %w", err)
	}
	return nil
}

const htmlTmpl = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Stylus Collection</title>
<style>
  body { font-family: sans-serif; margin: 40px; color: #333; }
  h1 { border-bottom: 2px solid #ccc; padding-bottom: 10px; }
  .stat-card { display: inline-block; padding: 20px; margin: 10px 10px 10px 0; background: #f4f4f4; border-radius: 5px; min-width: 130px; }
  .stat-val { font-size: 24px; font-weight: bold; }
  .gallery { display: grid; grid-template-columns: repeat(auto-fill, minmax(200px, 1fr)); gap: 16px; margin-top: 20px; }
  .song { background: #fafafa; border: 1px solid #ddd; border-radius: 5px; overflow: hidden; }
  .song img { width: 100%; aspect-ratio: 1; object-fit: cover; background: #eee; }
  .song .body { padding: 8px 10px; }
  .song .prompt { font-size: 12px; color: #666; }
  .keyword { display: inline-block; background: #eaeaea; border-radius: 3px; padding: 2px 6px; margin: 2px; }
</style>
</head>
<body>
  <h1>Stylus Collection</h1>
  <p><strong>Generated:</strong> {{stamp .GeneratedAt}} &middot; <strong>Last update:</strong> {{stamp .LastUpdate}}</p>

  <div class="stat-card"><div>Songs</div><div class="stat-val">{{.TotalSongs}}</div></div>
  <div class="stat-card"><div>URLs</div><div class="stat-val">{{.TotalURLs}}</div></div>
  <div class="stat-card"><div>Complete</div><div class="stat-val">{{pct .Complete .TotalURLs}}</div></div>

  <h3>Top Styles</h3>
  <p>
  {{- range .TopKeywords}}
    <span class="keyword">{{.Keyword}} ({{.Count}})</span>
  {{- else}}
    None
  {{- end}}
  </p>

  <div class="gallery">
  {{- range .Records}}
    <div class="song">
      {{if .ImageURL}}<img src="{{.ImageURL}}" alt="cover" loading="lazy">{{end}}
      <div class="body">
        <a href="{{.Locator}}">{{if .Title}}{{.Title}}{{else}}{{.Locator}}{{end}}</a>
        {{if .Prompt}}<div class="prompt">{{.Prompt}}</div>{{end}}
      </div>
    </div>
  {{- end}}
  </div>
</body>
</html>
`

// WriteHTML writes the summary and a thumbnail gallery of every record.
// Record fields are escaped.
func WriteHTML(w io.Writer, summary Summary) error {
	t, err := template.New("htmlReport").Funcs(funcs).Parse(htmlTmpl)
	if err != nil {
		return fmt.Errorf("parse html template: %w", err)
	}
	if err := t.Execute(w, summary); err != nil {
		return fmt.Errorf("render html report: %w", err)
	}
	return nil
}

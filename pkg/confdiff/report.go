package confdiff

import (
	"fmt"
	"html/template"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/routelab-net/routelab/pkg/confparse"
)

// TextReport renders a diff as indented +/- text for terminal output.
func TextReport(r *Result) string {
	if r.IsEmpty() {
		return "no differences\n"
	}
	var b strings.Builder
	writeResult(&b, r, 0)
	return b.String()
}

func writeResult(b *strings.Builder, r *Result, depth int) {
	for _, s := range r.Removed {
		writeSection(b, s, depth, '-')
	}
	for _, d := range r.Modified {
		writeLine(b, depth, ' ', d.Header)
		for _, line := range d.RemovedLines {
			writeLine(b, depth+1, '-', line)
		}
		for _, line := range d.AddedLines {
			writeLine(b, depth+1, '+', line)
		}
		writeResult(b, &d.Children, depth+1)
	}
	for _, s := range r.Added {
		writeSection(b, s, depth, '+')
	}
}

func writeSection(b *strings.Builder, s *confparse.Section, depth int, sign byte) {
	writeLine(b, depth, sign, s.Header)
	for _, e := range s.Entries {
		if e.Sub != nil {
			writeSection(b, e.Sub, depth+1, sign)
		} else {
			writeLine(b, depth+1, sign, e.Line)
		}
	}
}

func writeLine(b *strings.Builder, depth int, sign byte, text string) {
	b.WriteByte(sign)
	b.WriteByte(' ')
	b.WriteString(strings.Repeat(" ", depth))
	b.WriteString(text)
	b.WriteByte('\n')
}

const htmlReportTemplate = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>config diff: {{.FromName}} vs {{.ToName}}</title>
<style>
body { font-family: monospace; background: #1e1e1e; color: #d4d4d4; }
.removed { color: #f48771; }
.added { color: #89d185; }
.header { color: #d4d4d4; font-weight: bold; }
.inline { margin-left: 2em; }
ins { background: #1e4620; text-decoration: none; }
del { background: #5a1d1d; text-decoration: none; }
div.section { margin-left: 1.5em; }
</style>
</head>
<body>
<h2>{{.FromName}} &rarr; {{.ToName}}</h2>
{{if .Empty}}<p>no differences</p>{{end}}
{{.Body}}
</body>
</html>
`

type htmlReportData struct {
	FromName string
	ToName   string
	Empty    bool
	Body     template.HTML
}

// HTMLReport renders a diff as a standalone HTML page. Replaced lines
// inside modified sections get character-level inline highlighting.
func HTMLReport(r *Result, fromName, toName string) (string, error) {
	tmpl, err := template.New("report").Parse(htmlReportTemplate)
	if err != nil {
		return "", fmt.Errorf("parsing report template: %w", err)
	}

	var body strings.Builder
	writeHTMLResult(&body, r)

	var out strings.Builder
	err = tmpl.Execute(&out, htmlReportData{
		FromName: fromName,
		ToName:   toName,
		Empty:    r.IsEmpty(),
		Body:     template.HTML(body.String()),
	})
	if err != nil {
		return "", fmt.Errorf("rendering report: %w", err)
	}
	return out.String(), nil
}

func writeHTMLResult(b *strings.Builder, r *Result) {
	for _, s := range r.Removed {
		writeHTMLSection(b, s, "removed", "-")
	}
	for _, d := range r.Modified {
		fmt.Fprintf(b, "<div class=%q>%s</div>\n", "header", template.HTMLEscapeString(d.Header))
		b.WriteString("<div class=\"section\">\n")
		writeHTMLModifiedLines(b, d)
		writeHTMLResult(b, &d.Children)
		b.WriteString("</div>\n")
	}
	for _, s := range r.Added {
		writeHTMLSection(b, s, "added", "+")
	}
}

// writeHTMLModifiedLines pairs the i-th removed line with the i-th added
// line and renders a character-level diff for the pair; leftovers render
// as plain removed or added lines.
func writeHTMLModifiedLines(b *strings.Builder, d *SectionDiff) {
	dmp := diffmatchpatch.New()
	n := len(d.RemovedLines)
	if len(d.AddedLines) < n {
		n = len(d.AddedLines)
	}
	for i := 0; i < n; i++ {
		diffs := dmp.DiffMain(d.RemovedLines[i], d.AddedLines[i], false)
		diffs = dmp.DiffCleanupSemantic(diffs)
		fmt.Fprintf(b, "<div class=%q>%s</div>\n", "inline", dmp.DiffPrettyHtml(diffs))
	}
	for _, line := range d.RemovedLines[n:] {
		fmt.Fprintf(b, "<div class=%q>- %s</div>\n", "removed", template.HTMLEscapeString(line))
	}
	for _, line := range d.AddedLines[n:] {
		fmt.Fprintf(b, "<div class=%q>+ %s</div>\n", "added", template.HTMLEscapeString(line))
	}
}

func writeHTMLSection(b *strings.Builder, s *confparse.Section, class, sign string) {
	fmt.Fprintf(b, "<div class=%q>%s %s</div>\n", class, sign, template.HTMLEscapeString(s.Header))
	b.WriteString("<div class=\"section\">\n")
	for _, e := range s.Entries {
		if e.Sub != nil {
			writeHTMLSection(b, e.Sub, class, sign)
		} else {
			fmt.Fprintf(b, "<div class=%q>%s %s</div>\n", class, sign, template.HTMLEscapeString(e.Line))
		}
	}
	b.WriteString("</div>\n")
}

// Package confdiff computes structural differences between two parsed
// configurations and projects them into CLI command sequences and
// human-readable reports.
//
// Identity is the full header line: "router bgp 100" and "router bgp 200"
// are different sections, not a modification of one. Within a section,
// plain lines are compared as a set; ordering changes alone never produce
// a difference.
package confdiff

import (
	"github.com/routelab-net/routelab/pkg/confparse"
)

// Result holds the top-level outcome of a comparison. Added and Removed
// carry whole sections present on only one side; Modified carries sections
// present on both sides whose contents differ.
type Result struct {
	Added    []*confparse.Section
	Removed  []*confparse.Section
	Modified []*SectionDiff
}

// SectionDiff describes the changes inside one section that exists on both
// sides. Children holds the same decomposition one level down.
type SectionDiff struct {
	Header       string
	AddedLines   []string
	RemovedLines []string
	Children     Result
}

// IsEmpty reports whether the two configurations are structurally
// equivalent.
func (r *Result) IsEmpty() bool {
	return len(r.Added) == 0 && len(r.Removed) == 0 && len(r.Modified) == 0
}

func (d *SectionDiff) empty() bool {
	return len(d.AddedLines) == 0 && len(d.RemovedLines) == 0 && d.Children.IsEmpty()
}

// Compare diffs two section lists, from -> to. Sections sharing a header
// are paired in order of appearance, so duplicate headers pair first with
// first, second with second.
func Compare(from, to []*confparse.Section) *Result {
	r := &Result{}

	fromByHeader := groupByHeader(from)
	toByHeader := groupByHeader(to)

	// Walk the from side in order for removals and modifications.
	seen := make(map[string]bool)
	for _, s := range from {
		if seen[s.Header] {
			continue
		}
		seen[s.Header] = true

		fromGroup := fromByHeader[s.Header]
		toGroup := toByHeader[s.Header]
		for i, fs := range fromGroup {
			if i >= len(toGroup) {
				r.Removed = append(r.Removed, fs)
				continue
			}
			if d := compareSection(fs, toGroup[i]); !d.empty() {
				r.Modified = append(r.Modified, d)
			}
		}
	}

	// Walk the to side in order for additions.
	seen = make(map[string]bool)
	for _, s := range to {
		if seen[s.Header] {
			continue
		}
		seen[s.Header] = true

		for i, ts := range toByHeader[s.Header] {
			if i >= len(fromByHeader[s.Header]) {
				r.Added = append(r.Added, ts)
			}
		}
	}
	return r
}

func groupByHeader(sections []*confparse.Section) map[string][]*confparse.Section {
	groups := make(map[string][]*confparse.Section, len(sections))
	for _, s := range sections {
		groups[s.Header] = append(groups[s.Header], s)
	}
	return groups
}

// compareSection diffs the contents of two same-header sections: plain
// lines by set membership, subsections recursively.
func compareSection(from, to *confparse.Section) *SectionDiff {
	d := &SectionDiff{Header: from.Header}

	fromLines := lineSet(from)
	toLines := lineSet(to)
	for _, line := range to.Lines() {
		if !fromLines[line] {
			d.AddedLines = append(d.AddedLines, line)
		}
	}
	for _, line := range from.Lines() {
		if !toLines[line] {
			d.RemovedLines = append(d.RemovedLines, line)
		}
	}

	sub := Compare(from.Subsections(), to.Subsections())
	d.Children = *sub
	return d
}

func lineSet(s *confparse.Section) map[string]bool {
	set := make(map[string]bool)
	for _, line := range s.Lines() {
		set[line] = true
	}
	return set
}

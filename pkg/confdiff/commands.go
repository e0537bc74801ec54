package confdiff

import (
	"github.com/routelab-net/routelab/pkg/confparse"
)

// Project turns a diff into the CLI command sequence that converges the
// device onto the target, additively. Added sections are replayed in
// full, modified sections are re-entered with only their new lines, and
// removals are never projected: reconciliation adds configuration, it
// does not issue "no" forms. Session framing (enable, configure
// terminal, end) is the transport's job, not this projector's.
func Project(r *Result) []string {
	var cmds []string
	for _, d := range r.Modified {
		cmds = appendModified(cmds, d)
	}
	for _, s := range r.Added {
		cmds = appendSection(cmds, s)
	}
	return cmds
}

// appendSection replays a whole section. A childless section is a single
// top-level command and gets no "exit"; a section with contents is
// entered, filled, and left.
func appendSection(cmds []string, s *confparse.Section) []string {
	cmds = append(cmds, s.Header)
	if len(s.Entries) == 0 {
		return cmds
	}
	for _, e := range s.Entries {
		if e.Sub != nil {
			cmds = appendSection(cmds, e.Sub)
		} else {
			cmds = append(cmds, e.Line)
		}
	}
	return append(cmds, "exit")
}

func appendModified(cmds []string, d *SectionDiff) []string {
	cmds = append(cmds, d.Header)
	cmds = append(cmds, d.AddedLines...)
	for _, child := range d.Children.Modified {
		cmds = appendModified(cmds, child)
	}
	for _, child := range d.Children.Added {
		cmds = appendSection(cmds, child)
	}
	return append(cmds, "exit")
}

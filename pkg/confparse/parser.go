// Package confparse parses flat indented CLI configuration text into a
// hierarchical section tree.
//
// The grammar is purely structural: a line with no leading indentation
// opens a top-level section, indented lines are children of the nearest
// enclosing section, a bare "!" terminates the blocks at or below its
// depth and is never retained, and blank lines are ignored. Command
// vocabulary is accepted opaquely; the parser does not validate CLI
// semantics.
package confparse

import (
	"fmt"
	"strings"

	"github.com/routelab-net/routelab/pkg/util"
)

// Section is a header line plus an ordered sequence of children. A child
// is either a plain line or a nested section (e.g. "address-family ipv4"
// under "router bgp").
type Section struct {
	Header  string
	Entries []Entry
}

// Entry is one child of a section: a plain line (Sub == nil) or a nested
// subsection.
type Entry struct {
	Line string
	Sub  *Section
}

// Lines returns the section's immediate plain-line children in order.
func (s *Section) Lines() []string {
	var lines []string
	for _, e := range s.Entries {
		if e.Sub == nil {
			lines = append(lines, e.Line)
		}
	}
	return lines
}

// Subsections returns the section's immediate nested sections in order.
func (s *Section) Subsections() []*Section {
	var subs []*Section
	for _, e := range s.Entries {
		if e.Sub != nil {
			subs = append(subs, e.Sub)
		}
	}
	return subs
}

type node struct {
	indent  int
	header  string
	entries []*node
}

// Parse builds the section tree for a configuration text blob. It fails
// only on structurally impossible input: an indented line with no
// enclosing section.
func Parse(text string) ([]*Section, error) {
	var roots []*node
	var stack []*node

	for lineNo, raw := range strings.Split(text, "\n") {
		trimmed := strings.TrimRight(raw, " \t\r")
		content := strings.TrimLeft(trimmed, " \t")
		if content == "" {
			continue
		}
		indent := len(trimmed) - len(content)

		// Block terminator: close everything at or below this depth.
		if content == "!" {
			for len(stack) > 0 && stack[len(stack)-1].indent >= indent {
				stack = stack[:len(stack)-1]
			}
			continue
		}

		for len(stack) > 0 && stack[len(stack)-1].indent >= indent {
			stack = stack[:len(stack)-1]
		}

		n := &node{indent: indent, header: content}
		if len(stack) == 0 {
			if indent > 0 {
				return nil, fmt.Errorf("line %d: indented line %q outside any section: %w",
					lineNo+1, content, util.ErrMalformedConfig)
			}
			roots = append(roots, n)
		} else {
			parent := stack[len(stack)-1]
			parent.entries = append(parent.entries, n)
		}
		stack = append(stack, n)
	}

	sections := make([]*Section, 0, len(roots))
	for _, n := range roots {
		sections = append(sections, n.section())
	}
	return sections, nil
}

// section converts a node tree into the public form: childless nodes
// become plain lines, everything else a nested section.
func (n *node) section() *Section {
	s := &Section{Header: n.header}
	for _, child := range n.entries {
		if len(child.entries) == 0 {
			s.Entries = append(s.Entries, Entry{Line: child.header})
		} else {
			s.Entries = append(s.Entries, Entry{Sub: child.section()})
		}
	}
	return s
}

// Find returns the first top-level section with the given header, or nil.
func Find(sections []*Section, header string) *Section {
	for _, s := range sections {
		if s.Header == header {
			return s
		}
	}
	return nil
}

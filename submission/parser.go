// Package submission turns free-text issue bodies into validated level actions.
package submission

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Section titles every submission body must carry.
const (
	SectionActionType = "Action Type"
	SectionPayload    = "Payload"
)

// headingRe matches a level-3 markdown heading. "#### x" is not a match.
var headingRe = regexp.MustCompile(`^###[ \t]+(\S.*?)[ \t]*$`)

// Sections is an ordered title → text mapping. Order is the order in which
// each title first appeared in the body.
type Sections struct {
	titles []string
	text   map[string]string
}

func newSections() *Sections {
	return &Sections{text: make(map[string]string)}
}

func (s *Sections) set(title, text string) {
	if _, ok := s.text[title]; !ok {
		s.titles = append(s.titles, title)
	}
	s.text[title] = text
}

// Get returns the trimmed text of a section.
func (s *Sections) Get(title string) (string, bool) {
	v, ok := s.text[title]
	return v, ok
}

// Titles returns section titles in order of first appearance.
func (s *Sections) Titles() []string {
	out := make([]string, len(s.titles))
	copy(out, s.titles)
	return out
}

func (s *Sections) Len() int { return len(s.titles) }

// Map returns a copy of the sections as a plain map.
func (s *Sections) Map() map[string]string {
	out := make(map[string]string, len(s.text))
	for k, v := range s.text {
		out[k] = v
	}
	return out
}

// ParseSections splits body on "### Title" headings. Text before the first
// heading is dropped, and a repeated title keeps only its last content.
func ParseSections(body string) *Sections {
	body = norm.NFC.String(body)
	body = strings.ReplaceAll(body, "\r\n", "\n")

	sections := newSections()
	var (
		current string
		open    bool
		buf     []string
	)

	flush := func() {
		if open {
			sections.set(current, strings.TrimSpace(strings.Join(buf, "\n")))
		}
	}

	for _, line := range strings.Split(body, "\n") {
		if m := headingRe.FindStringSubmatch(line); m != nil {
			flush()
			current = m[1]
			open = true
			buf = buf[:0]
			continue
		}
		if open {
			buf = append(buf, line)
		}
	}
	flush()

	return sections
}

package domain

import "strings"

// Pattern is a compiled 3-segment query of the form org/project/repo. Each
// segment is either a literal (matched by exact case-insensitive equality)
// or a glob where * matches zero or more characters. A segment that is
// exactly * matches anything, including the empty project of a 2-level
// provider.
type Pattern struct {
	raw      string
	segments [3]SegmentMatcher
}

// CompilePattern parses and validates a pattern string. Exactly three
// /-separated segments are required; anything else is a *ValidationError.
// Compilation never touches the network, so malformed patterns fail fast.
func CompilePattern(raw string) (Pattern, error) {
	parts := strings.Split(raw, "/")
	if len(parts) != 3 {
		return Pattern{}, validationErrorf(
			"pattern %q: want exactly 3 segments org/project/repo, got %d", raw, len(parts))
	}

	p := Pattern{raw: raw}
	for i, part := range parts {
		p.segments[i] = compileSegment(part)
	}
	return p, nil
}

func (p Pattern) String() string { return p.raw }

func (p Pattern) Organization() SegmentMatcher { return p.segments[0] }
func (p Pattern) Project() SegmentMatcher      { return p.segments[1] }
func (p Pattern) Repository() SegmentMatcher   { return p.segments[2] }

// FullyLiteral reports whether no segment carries a wildcard. A fully
// literal pattern that produces zero matches is an error rather than an
// empty result.
func (p Pattern) FullyLiteral() bool {
	for _, s := range p.segments {
		if !s.IsLiteral() {
			return false
		}
	}
	return true
}

// Matches evaluates the candidate triple against all three segments.
func (p Pattern) Matches(org, project, repo string) bool {
	return p.segments[0].Matches(org) &&
		p.segments[1].Matches(project) &&
		p.segments[2].Matches(repo)
}

type matchKind int

const (
	matchAny matchKind = iota
	matchLiteral
	matchGlob
)

// SegmentMatcher matches one hierarchy level. Literal segments double as a
// direct address: discovery uses them as a lookup instead of enumerating
// the level and filtering.
type SegmentMatcher struct {
	kind matchKind
	// raw keeps the original casing for direct addressing.
	raw string
	// glob state: lowercase chunks between wildcards.
	chunks      []string
	anchorStart bool
	anchorEnd   bool
}

func compileSegment(raw string) SegmentMatcher {
	if raw == "*" {
		return SegmentMatcher{kind: matchAny, raw: raw}
	}
	if !strings.Contains(raw, "*") {
		return SegmentMatcher{kind: matchLiteral, raw: raw}
	}

	m := SegmentMatcher{
		kind:        matchGlob,
		raw:         raw,
		anchorStart: !strings.HasPrefix(raw, "*"),
		anchorEnd:   !strings.HasSuffix(raw, "*"),
	}
	for _, chunk := range strings.Split(strings.ToLower(raw), "*") {
		if chunk != "" {
			m.chunks = append(m.chunks, chunk)
		}
	}
	if len(m.chunks) == 0 {
		// e.g. "**" collapses to match-anything
		m.kind = matchAny
	}
	return m
}

// IsLiteral reports whether the segment has no wildcard.
func (m SegmentMatcher) IsLiteral() bool { return m.kind == matchLiteral }

// Literal returns the segment text in its original casing. Only meaningful
// when IsLiteral is true.
func (m SegmentMatcher) Literal() string { return m.raw }

// Matches reports whether s satisfies the segment, case-insensitively.
func (m SegmentMatcher) Matches(s string) bool {
	switch m.kind {
	case matchAny:
		return true
	case matchLiteral:
		return strings.EqualFold(s, m.raw)
	}

	s = strings.ToLower(s)
	chunks := m.chunks

	if m.anchorStart {
		if !strings.HasPrefix(s, chunks[0]) {
			return false
		}
		s = s[len(chunks[0]):]
		chunks = chunks[1:]
	}
	if m.anchorEnd && len(chunks) > 0 {
		last := chunks[len(chunks)-1]
		if !strings.HasSuffix(s, last) {
			return false
		}
		s = s[:len(s)-len(last)]
		chunks = chunks[:len(chunks)-1]
	}
	for _, chunk := range chunks {
		i := strings.Index(s, chunk)
		if i < 0 {
			return false
		}
		s = s[i+len(chunk):]
	}
	return true
}

package scanner

import (
	"path"
	"strings"
)

// IgnorePattern is a single gitignore-style pattern.
type IgnorePattern struct {
	raw      string
	negate   bool // starts with !
	dirOnly  bool // ends with /
	anchored bool // contains a slash before the last segment
	prefix   string
	segments []string
}

// ParseIgnorePattern parses one line of an ignore file.
func ParseIgnorePattern(line string) IgnorePattern {
	p := IgnorePattern{raw: line}
	if strings.HasPrefix(line, "!") {
		p.negate = true
		line = line[1:]
	}
	if strings.HasSuffix(line, "/") {
		p.dirOnly = true
		line = strings.TrimSuffix(line, "/")
	}
	if strings.HasPrefix(line, "/") {
		p.anchored = true
		line = line[1:]
	} else if strings.Contains(line, "/") && !strings.HasPrefix(line, "**/") {
		p.anchored = true
	}
	p.segments = strings.Split(line, "/")
	return p
}

// String returns the pattern as written.
func (p IgnorePattern) String() string { return p.raw }

// IsNegation reports whether the pattern re-includes what it matches.
func (p IgnorePattern) IsNegation() bool { return p.negate }

// under re-roots a pattern read from the ignore file of directory dir.
func (p IgnorePattern) under(dir string) IgnorePattern {
	p.prefix = dir + "/"
	return p
}

// Match reports whether the slash separated path rel matches the pattern.
// Directories are passed with a trailing slash. A path inside a matching
// directory matches too.
func (p IgnorePattern) Match(rel string) bool {
	if p.prefix != "" {
		if !strings.HasPrefix(rel, p.prefix) {
			return false
		}
		rel = strings.TrimPrefix(rel, p.prefix)
	}
	isDir := strings.HasSuffix(rel, "/")
	parts := strings.Split(strings.TrimSuffix(rel, "/"), "/")

	// try every prefix of the path, so a matched directory covers its contents
	for n := 1; n <= len(parts); n++ {
		if p.dirOnly && n == len(parts) && !isDir {
			break
		}
		if p.matchParts(parts[:n]) {
			return true
		}
	}
	return false
}

func (p IgnorePattern) matchParts(parts []string) bool {
	if p.anchored {
		return matchSegments(p.segments, parts)
	}
	for start := 0; start < len(parts); start++ {
		if matchSegments(p.segments, parts[start:]) {
			return true
		}
	}
	return false
}

// matchSegments matches glob segments against path segments; ** spans any
// number of segments.
func matchSegments(pattern, parts []string) bool {
	if len(pattern) == 0 {
		return len(parts) == 0
	}
	if pattern[0] == "**" {
		for i := 0; i <= len(parts); i++ {
			if matchSegments(pattern[1:], parts[i:]) {
				return true
			}
		}
		return false
	}
	if len(parts) == 0 {
		return false
	}
	ok, err := path.Match(pattern[0], parts[0])
	if err != nil || !ok {
		return false
	}
	return matchSegments(pattern[1:], parts[1:])
}

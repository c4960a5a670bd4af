package git

import (
	"path"
	"strings"
)

// PatternKind distinguishes the ways DeleteFiles can select staged paths.
type PatternKind int8

const (
	// PatternExact matches one path and, for directories, everything below it.
	PatternExact PatternKind = iota
	// PatternGlob matches with path.Match wildcards.
	PatternGlob
	// PatternAll matches every staged path.
	PatternAll
)

// String returns a human-readable name for the kind.
func (k PatternKind) String() string {
	switch k {
	case PatternExact:
		return "exact"
	case PatternGlob:
		return "glob"
	case PatternAll:
		return "all"
	default:
		return "unknown"
	}
}

// Pattern selects staged paths for deletion.
type Pattern struct {
	kind  PatternKind
	value string
}

// ExactPath matches p itself, or every file below p when p is a directory.
func ExactPath(p string) Pattern {
	return Pattern{kind: PatternExact, value: p}
}

// Glob matches a path when g matches the whole path or one of its leading
// directories, so "docs/*" removes "docs/a.html" and "docs/img/b.png".
// Wildcards do not cross "/".
func Glob(g string) Pattern {
	return Pattern{kind: PatternGlob, value: g}
}

// AllFiles matches everything.
func AllFiles() Pattern {
	return Pattern{kind: PatternAll}
}

// ParsePattern interprets a command-line style pattern: "*" is AllFiles,
// anything containing glob metacharacters is a Glob, the rest is an ExactPath.
func ParsePattern(s string) (Pattern, error) {
	var p Pattern
	switch {
	case s == "*":
		p = AllFiles()
	case strings.ContainsAny(s, "*?["):
		p = Glob(s)
	default:
		p = ExactPath(s)
	}
	if err := p.Validate(); err != nil {
		return Pattern{}, err
	}
	return p, nil
}

// Kind returns the pattern kind.
func (p Pattern) Kind() PatternKind { return p.kind }

// String returns the pattern as written.
func (p Pattern) String() string {
	if p.kind == PatternAll {
		return "*"
	}
	return p.value
}

// Validate reports ErrInvalidPattern for malformed globs and exact paths that
// could never name a staged file.
func (p Pattern) Validate() error {
	switch p.kind {
	case PatternAll:
		return nil
	case PatternExact:
		if _, err := cleanPath(strings.TrimSuffix(p.value, "/")); err != nil {
			return WrapErrorf(ErrInvalidPattern, "path %q", p.value)
		}
		return nil
	case PatternGlob:
		if p.value == "" {
			return WrapError(ErrInvalidPattern, "empty glob")
		}
		if _, err := path.Match(p.value, ""); err != nil {
			return WrapErrorf(ErrInvalidPattern, "glob %q", p.value)
		}
		return nil
	default:
		return WrapErrorf(ErrInvalidPattern, "unknown kind %d", p.kind)
	}
}

// Match reports whether the staged path name is selected. Invalid patterns
// match nothing.
func (p Pattern) Match(name string) bool {
	switch p.kind {
	case PatternAll:
		return true
	case PatternExact:
		target, err := cleanPath(strings.TrimSuffix(p.value, "/"))
		if err != nil {
			return false
		}
		return name == target || strings.HasPrefix(name, target+"/")
	case PatternGlob:
		glob := strings.TrimSuffix(p.value, "/")
		for prefix := name; ; {
			if ok, _ := path.Match(glob, prefix); ok {
				return true
			}
			i := strings.LastIndex(prefix, "/")
			if i < 0 {
				return false
			}
			prefix = prefix[:i]
		}
	default:
		return false
	}
}

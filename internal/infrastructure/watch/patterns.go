package watch

import (
	"path/filepath"
	"strings"
)

// DefaultDocumentPatterns are the document formats LoadDocument understands.
var DefaultDocumentPatterns = []string{"*.md", "*.markdown", "*.yaml", "*.yml", "*.json"}

// DefaultExcludes skips editor swap and backup files.
var DefaultExcludes = []string{"*.swp", "*.swx", "*~", "#*#", "4913"}

// PatternFilter decides which paths may trigger a review. Hidden files and
// anything below a hidden directory never match.
type PatternFilter struct {
	Include []string
	Exclude []string
}

// NewPatternFilter falls back to the document defaults when include is
// empty. Exclude patterns are added to DefaultExcludes.
func NewPatternFilter(include, exclude []string) *PatternFilter {
	if len(include) == 0 {
		include = DefaultDocumentPatterns
	}
	return &PatternFilter{
		Include: include,
		Exclude: append(append([]string{}, DefaultExcludes...), exclude...),
	}
}

// Matches reports whether path passes the filter: no exclude pattern
// matches, and at least one include pattern does.
func (f *PatternFilter) Matches(path string) bool {
	if isHidden(path) {
		return false
	}
	base := filepath.Base(path)

	for _, pattern := range f.Exclude {
		if match(pattern, base, path) {
			return false
		}
	}
	if len(f.Include) == 0 {
		return true
	}
	for _, pattern := range f.Include {
		if match(pattern, base, path) {
			return true
		}
	}
	return false
}

func match(pattern, base, path string) bool {
	if ok, _ := filepath.Match(pattern, base); ok {
		return true
	}
	ok, _ := filepath.Match(pattern, filepath.ToSlash(path))
	return ok
}

func isHidden(path string) bool {
	for _, part := range strings.Split(filepath.ToSlash(filepath.Clean(path)), "/") {
		if len(part) > 1 && strings.HasPrefix(part, ".") && part != ".." {
			return true
		}
	}
	return false
}

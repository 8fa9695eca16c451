package mirror

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// IgnoreFileName lists extra ignore globs at the vault root, one per line.
const IgnoreFileName = ".ingesterignore"

// defaultIgnorePatterns are always applied regardless of config or the ignore file.
var defaultIgnorePatterns = []string{IgnoreFileName, "**/.tmp-*", "**/*" + checksumSuffix}

type ignorePattern struct {
	pattern   string
	matchPath bool // true = match against the key; false = match against the basename only
}

// IgnoreMatcher checks object keys against doublestar globs.
// Patterns without '/' match the basename; patterns with '/' match the whole key.
type IgnoreMatcher struct {
	patterns []ignorePattern
}

// NewIgnoreMatcher creates an IgnoreMatcher from raw patterns plus the defaults.
// Blank lines, comments and invalid globs are skipped.
func NewIgnoreMatcher(rawPatterns []string) *IgnoreMatcher {
	var patterns []ignorePattern
	for _, raw := range append(append([]string{}, defaultIgnorePatterns...), rawPatterns...) {
		raw = strings.TrimSpace(raw)
		if raw == "" || strings.HasPrefix(raw, "#") || !doublestar.ValidatePattern(raw) {
			continue
		}
		patterns = append(patterns, ignorePattern{
			pattern:   strings.TrimPrefix(raw, "/"),
			matchPath: strings.Contains(raw, "/"),
		})
	}
	return &IgnoreMatcher{patterns: patterns}
}

// Match reports whether the slash-separated key should be skipped.
func (m *IgnoreMatcher) Match(key string) bool {
	base := path.Base(key)
	for _, p := range m.patterns {
		target := base
		if p.matchPath {
			target = key
		}
		if ok, _ := doublestar.Match(p.pattern, target); ok {
			return true
		}
	}
	return false
}

// ParseIgnoreFile reads an ignore file. A missing file yields no patterns.
func ParseIgnoreFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening ignore file: %w", err)
	}
	defer f.Close()

	var patterns []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		patterns = append(patterns, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading ignore file: %w", err)
	}
	return patterns, nil
}

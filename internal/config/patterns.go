package config

import (
	"regexp"

	"go.uber.org/zap"
)

// PatternSet is a compiled, immutable list of suspicious-name regexes.
// Compilation is separated from evaluation so a rule update only swaps
// the set, never touches matching code.
type PatternSet struct {
	patterns []*regexp.Regexp
}

// CompilePatterns compiles the given expressions. Patterns that fail to
// compile are skipped with a warning rather than rejecting the set.
func CompilePatterns(exprs []string, logger *zap.Logger) *PatternSet {
	ps := &PatternSet{patterns: make([]*regexp.Regexp, 0, len(exprs))}
	for _, expr := range exprs {
		re, err := regexp.Compile(expr)
		if err != nil {
			logger.Warn("skipping invalid name pattern",
				zap.String("pattern", expr), zap.Error(err))
			continue
		}
		ps.patterns = append(ps.patterns, re)
	}
	return ps
}

// Match reports whether any pattern matches the username
func (ps *PatternSet) Match(username string) bool {
	for _, re := range ps.patterns {
		if re.MatchString(username) {
			return true
		}
	}
	return false
}

// Len returns the number of compiled patterns
func (ps *PatternSet) Len() int {
	return len(ps.patterns)
}

package filter

import (
	"sort"
	"strings"
)

// RuleSet holds the skip rules used to decide whether a path is noise.
// Folder rules match whole path segments, pattern rules match anywhere in
// the path. All entries are stored lower-cased. A RuleSet is never modified
// after NewRuleSet returns, so it can be shared between watchers.
type RuleSet struct {
	folders  map[string]struct{}
	patterns []string
}

// NewRuleSet builds a RuleSet from folder names and substring patterns.
// Entries are trimmed and lower-cased; empty and duplicate entries are dropped.
func NewRuleSet(folders, patterns []string) RuleSet {
	rs := RuleSet{
		folders: make(map[string]struct{}, len(folders)),
	}
	for _, f := range folders {
		f = normalise(f)
		if f == "" {
			continue
		}
		rs.folders[f] = struct{}{}
	}

	seen := make(map[string]struct{}, len(patterns))
	for _, p := range patterns {
		p = normalise(p)
		if p == "" {
			continue
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		rs.patterns = append(rs.patterns, p)
	}
	return rs
}

// Folders returns a sorted copy of the folder rules.
func (rs RuleSet) Folders() []string {
	out := make([]string, 0, len(rs.folders))
	for f := range rs.folders {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// Patterns returns a copy of the substring rules in the order they were given.
func (rs RuleSet) Patterns() []string {
	out := make([]string, len(rs.patterns))
	copy(out, rs.patterns)
	return out
}

// PathFilter decides whether a path should be ignored.
type PathFilter struct {
	rules RuleSet
}

func New(rules RuleSet) *PathFilter {
	return &PathFilter{rules: rules}
}

// Rules returns the rule set the filter was built with.
func (f *PathFilter) Rules() RuleSet {
	return f.rules
}

// ShouldSkip reports whether path matches any folder or pattern rule.
// Comparison is case-insensitive and does not depend on locale.
func (f *PathFilter) ShouldSkip(path string) bool {
	lowered := strings.ToLower(path)

	for _, p := range f.rules.patterns {
		if strings.Contains(lowered, p) {
			return true
		}
	}

	if len(f.rules.folders) == 0 {
		return false
	}
	for _, segment := range strings.FieldsFunc(lowered, isSeparator) {
		if _, ok := f.rules.folders[segment]; ok {
			return true
		}
	}
	return false
}

// Both separators are accepted so Windows paths behave the same on any host.
func isSeparator(r rune) bool {
	return r == '\\' || r == '/'
}

func normalise(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// ContainsSeparator reports whether a folder rule could never match a single
// segment because it contains a path separator.
func ContainsSeparator(rule string) bool {
	return strings.ContainsFunc(rule, isSeparator)
}

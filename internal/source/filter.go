package source

import (
	"fmt"
	"regexp"
)

// Excluded entry names (VCS metadata, dependency trees, caches, lock files)
var excludedPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^\.git$`),
	regexp.MustCompile(`^\.svn$`),
	regexp.MustCompile(`^\.hg$`),
	regexp.MustCompile(`^node_modules$`),
	regexp.MustCompile(`^__pycache__$`),
	regexp.MustCompile(`^\.cache$`),
	regexp.MustCompile(`(?i)^\.ds_store$`),
	regexp.MustCompile(`(?i)^thumbs\.db$`),
	regexp.MustCompile(`^~\$`),
}

// Filter decides which listing entries are left out of the export. A nil
// *Filter applies the built-in patterns only.
type Filter struct {
	extra []*regexp.Regexp
}

// NewFilter compiles extra exclusion patterns on top of the built-in ones
func NewFilter(extra []string) (*Filter, error) {
	f := &Filter{}
	for _, pattern := range extra {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid exclude pattern %q: %w", pattern, err)
		}
		f.extra = append(f.extra, re)
	}
	return f, nil
}

// IsExcluded checks if an entry name matches any exclusion pattern
func (f *Filter) IsExcluded(name string) bool {
	for _, pattern := range excludedPatterns {
		if pattern.MatchString(name) {
			return true
		}
	}
	if f == nil {
		return false
	}
	for _, pattern := range f.extra {
		if pattern.MatchString(name) {
			return true
		}
	}
	return false
}

package moderation

import (
	"regexp"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Classification issues surfaced to the submitter. Advisory only, never
// shown to other readers.
const (
	IssueContentRequired = "content required"
	IssueLengthViolation = "length violation"
	IssueManualReview    = "needs manual review"
	IssuePossibleSpam    = "possible spam"
)

// spamRunLength is the number of consecutive identical characters treated
// as a spam signal.
const spamRunLength = 5

// DefaultBlockedTerms seeds the filter when configuration provides none.
func DefaultBlockedTerms() []string {
	return []string{
		"advertisement",
		"buy cheap watches",
		"casino bonus",
		"cheap watches",
		"click here now",
		"free money",
		"gambling site",
		"lottery winner",
		"porn",
		"viagra",
	}
}

// Config carries the filter construction parameters. A zero value is usable:
// defaults are applied by NewFilter.
type Config struct {
	MinLength int
	MaxLength int
	MaskToken string
	Terms     []string
}

// Result is the outcome of classifying one piece of content.
//
// FilteredText is what gets persisted. Valid=false means the content must be
// rejected outright; AutoApprove=false means it is held for manual review.
type Result struct {
	Valid        bool
	AutoApprove  bool
	FilteredText string
	Issues       []string
}

// Filter classifies free-text content against a mutable blocked-term set and
// structural heuristics. Safe for concurrent use.
type Filter struct {
	minLength int
	maxLength int
	maskToken string

	mu      sync.RWMutex
	terms   map[string]struct{}
	pattern *regexp.Regexp
}

// NewFilter constructs a Filter from explicit configuration. There is no
// shared process-wide instance; every consumer receives its own.
func NewFilter(cfg Config) *Filter {
	f := &Filter{
		minLength: cfg.MinLength,
		maxLength: cfg.MaxLength,
		maskToken: cfg.MaskToken,
		terms:     make(map[string]struct{}),
	}
	if f.minLength < 1 {
		f.minLength = 1
	}
	if f.maxLength < f.minLength {
		f.maxLength = 1000
	}
	if f.maskToken == "" {
		f.maskToken = "***"
	}
	terms := cfg.Terms
	if len(terms) == 0 {
		terms = DefaultBlockedTerms()
	}
	for _, term := range terms {
		if term = strings.TrimSpace(term); term != "" {
			f.terms[strings.ToLower(term)] = struct{}{}
		}
	}
	f.compile()
	return f
}

// AddTerms extends the blocked-term set.
func (f *Filter) AddTerms(terms ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, term := range terms {
		if term = strings.TrimSpace(term); term != "" {
			f.terms[strings.ToLower(term)] = struct{}{}
		}
	}
	f.compile()
}

// RemoveTerms shrinks the blocked-term set.
func (f *Filter) RemoveTerms(terms ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, term := range terms {
		delete(f.terms, strings.ToLower(strings.TrimSpace(term)))
	}
	f.compile()
}

// Terms returns the current blocked-term set, sorted.
func (f *Filter) Terms() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]string, 0, len(f.terms))
	for term := range f.terms {
		out = append(out, term)
	}
	sort.Strings(out)
	return out
}

// compile rebuilds the matching pattern. Longer terms sort first so a
// multi-word term is not shadowed by a shorter substring. Caller holds mu.
func (f *Filter) compile() {
	if len(f.terms) == 0 {
		f.pattern = nil
		return
	}
	terms := make([]string, 0, len(f.terms))
	for term := range f.terms {
		terms = append(terms, term)
	}
	sort.Slice(terms, func(i, j int) bool {
		if len(terms[i]) != len(terms[j]) {
			return len(terms[i]) > len(terms[j])
		}
		return terms[i] < terms[j]
	})
	escaped := make([]string, len(terms))
	for i, term := range terms {
		escaped[i] = regexp.QuoteMeta(term)
	}
	f.pattern = regexp.MustCompile(`(?i)` + strings.Join(escaped, "|"))
}

// Classify runs the moderation rules in order: presence, length, blocked
// terms, structural spam heuristic.
func (f *Filter) Classify(text string) Result {
	text = norm.NFC.String(text)
	result := Result{Valid: true, AutoApprove: true, FilteredText: text}

	if strings.TrimSpace(text) == "" {
		result.Valid = false
		result.Issues = append(result.Issues, IssueContentRequired)
		return result
	}

	if n := utf8.RuneCountInString(text); n < f.minLength || n > f.maxLength {
		result.Valid = false
		result.Issues = append(result.Issues, IssueLengthViolation)
	}

	f.mu.RLock()
	pattern := f.pattern
	mask := f.maskToken
	f.mu.RUnlock()
	if pattern != nil && pattern.MatchString(text) {
		result.AutoApprove = false
		result.FilteredText = pattern.ReplaceAllString(text, mask)
		result.Issues = append(result.Issues, IssueManualReview)
	}

	if hasRepeatedRun(text, spamRunLength) {
		result.AutoApprove = false
		result.Issues = append(result.Issues, IssuePossibleSpam)
	}

	return result
}

// hasRepeatedRun reports whether text contains n or more identical runes in
// a row.
func hasRepeatedRun(text string, n int) bool {
	var prev rune
	run := 0
	for _, r := range text {
		if r == prev {
			run++
			if run >= n {
				return true
			}
		} else {
			prev = r
			run = 1
		}
	}
	return false
}

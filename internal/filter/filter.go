// Package filter scores feed items against keyword rules to decide whether
// they belong in the curated output. An exclude match pushes an item toward
// rejection, an allow match vetoes it back in; the item is dropped only when
// exclusions outweigh allowances. A plain deny-list is too blunt for sources
// that mix relevant and irrelevant coverage, so known-good terms get a vote.
package filter

import (
	"regexp"
	"strings"

	"github.com/grantbridge/newsfeed/internal/models"
)

type keywordPattern struct {
	keyword string
	re      *regexp.Regexp
}

// Filter applies keyword relevance rules to item text.
type Filter struct {
	exclude []keywordPattern
	allow   []keywordPattern
	// Conjunctive term sets per category: every set must match at least once
	// for the item to pass. Used for geography-scoped categories where a
	// regional outlet needs both a place match and a subject match.
	conjunctive map[models.Category][][]keywordPattern
}

// New compiles keyword rules into word-boundary matchers. Rules with a
// category scope participate in that category's conjunctive sets; unscoped
// rules form the global exclude/allow score.
func New(rules []models.KeywordRule) *Filter {
	f := &Filter{conjunctive: make(map[models.Category][][]keywordPattern)}

	// Category-scoped rules are grouped by polarity into two conjunctive
	// sets: allow rules form the subject set, exclude polarity is not
	// meaningful inside a scope and is folded into the global excludes.
	scopedAllow := make(map[models.Category][]keywordPattern)

	for _, r := range rules {
		p := compileKeyword(r.Keyword)
		switch {
		case r.Category != "" && r.Polarity == models.PolarityAllow:
			scopedAllow[r.Category] = append(scopedAllow[r.Category], p)
		case r.Polarity == models.PolarityExclude:
			f.exclude = append(f.exclude, p)
		default:
			f.allow = append(f.allow, p)
		}
	}

	for cat, set := range scopedAllow {
		f.conjunctive[cat] = append(f.conjunctive[cat], set)
	}

	return f
}

// RequireAll adds a conjunctive term set for a category: items in that
// category must match every registered set to pass.
func (f *Filter) RequireAll(cat models.Category, keywords []string) {
	set := make([]keywordPattern, 0, len(keywords))
	for _, kw := range keywords {
		set = append(set, compileKeyword(kw))
	}
	f.conjunctive[cat] = append(f.conjunctive[cat], set)
}

// Score computes the signed relevance score for the combined title+snippet
// text: +1 per exclude match, -1 per allow match. Positive means drop.
func (f *Filter) Score(text string) int {
	text = strings.ToLower(text)
	score := 0
	for _, p := range f.exclude {
		if p.re.MatchString(text) {
			score++
		}
	}
	for _, p := range f.allow {
		if p.re.MatchString(text) {
			score--
		}
	}
	return score
}

// Keep reports whether an item with the given title and snippet passes the
// relevance rules for its category.
func (f *Filter) Keep(cat models.Category, title, snippet string) bool {
	text := strings.ToLower(title + " " + snippet)

	if f.Score(text) > 0 {
		return false
	}

	for _, set := range f.conjunctive[cat] {
		if !matchesAny(text, set) {
			return false
		}
	}

	return true
}

func matchesAny(text string, set []keywordPattern) bool {
	for _, p := range set {
		if p.re.MatchString(text) {
			return true
		}
	}
	return false
}

func compileKeyword(kw string) keywordPattern {
	kw = strings.ToLower(strings.TrimSpace(kw))
	return keywordPattern{
		keyword: kw,
		re:      regexp.MustCompile(`\b` + regexp.QuoteMeta(kw) + `\b`),
	}
}

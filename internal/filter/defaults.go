package filter

import "github.com/grantbridge/newsfeed/internal/models"

// Default rule set for deployments without a keyword_rules table. Excludes
// cover the noise beats a general outlet mixes in; allows are the
// philanthropy vocabulary that vetoes a borderline exclusion.
var defaultRules = []models.KeywordRule{
	{Keyword: "sports", Polarity: models.PolarityExclude},
	{Keyword: "football", Polarity: models.PolarityExclude},
	{Keyword: "basketball", Polarity: models.PolarityExclude},
	{Keyword: "celebrity", Polarity: models.PolarityExclude},
	{Keyword: "horoscope", Polarity: models.PolarityExclude},
	{Keyword: "recipe", Polarity: models.PolarityExclude},
	{Keyword: "box office", Polarity: models.PolarityExclude},

	{Keyword: "grant", Polarity: models.PolarityAllow},
	{Keyword: "grants", Polarity: models.PolarityAllow},
	{Keyword: "nonprofit", Polarity: models.PolarityAllow},
	{Keyword: "philanthropy", Polarity: models.PolarityAllow},
	{Keyword: "foundation", Polarity: models.PolarityAllow},
	{Keyword: "funding", Polarity: models.PolarityAllow},
	{Keyword: "donor", Polarity: models.PolarityAllow},
	{Keyword: "charity", Polarity: models.PolarityAllow},
}

var californiaGeoTerms = []string{
	"california", "sacramento", "los angeles", "san francisco",
	"san diego", "bay area", "oakland", "fresno",
}

var californiaSubjectTerms = []string{
	"grant", "grants", "nonprofit", "philanthropy", "foundation",
	"funding", "donor", "charity", "community fund",
}

// DefaultRules returns the static keyword rule set.
func DefaultRules() []models.KeywordRule {
	rules := make([]models.KeywordRule, len(defaultRules))
	copy(rules, defaultRules)
	return rules
}

// NewDefault builds a filter from the static rules, with the california
// category requiring both a geography and a subject match.
func NewDefault() *Filter {
	return FromRules(DefaultRules())
}

// FromRules builds a filter from arbitrary rules and applies the california
// conjunctive sets. Regional feeds carry plenty of on-geography but
// off-subject coverage, so both sets must hit.
func FromRules(rules []models.KeywordRule) *Filter {
	f := New(rules)
	f.RequireAll(models.CategoryCalifornia, californiaGeoTerms)
	f.RequireAll(models.CategoryCalifornia, californiaSubjectTerms)
	return f
}

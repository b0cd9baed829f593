// Package matcher associates unmapped local documents with existing wiki
// pages by title.
package matcher

import (
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"

	"github.com/stenmark/docbridge/internal/models"
)

// MaxCandidates caps fuzzy results so callers can disambiguate a short list.
const MaxCandidates = 3

// Candidate is one fuzzy match with its similarity score (0–100).
type Candidate struct {
	Page  models.PageSummary
	Score float64
}

// Matcher scores candidate page titles against a document title.
// A case-insensitive exact match always wins; otherwise candidates scoring
// at or above the threshold are returned best first.
type Matcher struct {
	threshold float64
	metric    strutil.StringMetric
}

// New creates a matcher with the given threshold, a percentage in [0,100].
func New(threshold float64) *Matcher {
	return &Matcher{
		threshold: threshold,
		metric:    metrics.NewLevenshtein(),
	}
}

// Match returns candidates for title among pages. An exact case-insensitive
// title match is returned alone with score 100, regardless of threshold.
// Otherwise up to MaxCandidates pages scoring >= threshold are returned in
// descending score order. An empty result means no match.
func (m *Matcher) Match(title string, pages []models.PageSummary) []Candidate {
	trimmed := strings.TrimSpace(title)
	for _, p := range pages {
		if strings.EqualFold(strings.TrimSpace(p.Title), trimmed) {
			return []Candidate{{Page: p, Score: 100}}
		}
	}

	norm := normalizeTitle(title)
	var out []Candidate
	for _, p := range pages {
		score := m.score(norm, normalizeTitle(p.Title))
		if score >= m.threshold {
			out = append(out, Candidate{Page: p, Score: score})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > MaxCandidates {
		out = out[:MaxCandidates]
	}
	return out
}

// Best returns the single best match for title, if any.
func (m *Matcher) Best(title string, pages []models.PageSummary) (models.PageSummary, bool) {
	cands := m.Match(title, pages)
	if len(cands) == 0 {
		return models.PageSummary{}, false
	}
	return cands[0].Page, true
}

// score computes a normalized similarity percentage, rounded to one decimal
// place so threshold comparisons are stable.
func (m *Matcher) score(a, b string) float64 {
	if a == "" && b == "" {
		return 100
	}
	return math.Round(strutil.Similarity(a, b, m.metric)*1000) / 10
}

var (
	punctRe = regexp.MustCompile(`[^\w\s]`)
	spaceRe = regexp.MustCompile(`\s+`)
)

// normalizeTitle lowercases, strips punctuation, and collapses whitespace so
// cosmetic title differences do not depress scores.
func normalizeTitle(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = punctRe.ReplaceAllString(s, "")
	return spaceRe.ReplaceAllString(s, " ")
}

// Package analyzer turns a raw query string into the structured shape the
// Hybrid Retrieval Engine needs: normalized text, ranked keywords,
// extracted entities, an intent classification, parsed filters, and a
// coarse complexity bucket.
package analyzer

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"briefly/internal/entities"
)

// Intent classifies what kind of question the query is asking, by keyword
// cue, priority question > search > comparison > analysis > general.
type Intent string

const (
	IntentQuestion   Intent = "question"
	IntentSearch     Intent = "search"
	IntentComparison Intent = "comparison"
	IntentAnalysis   Intent = "analysis"
	IntentGeneral    Intent = "general"
)

// Complexity buckets the query's retrieval difficulty.
type Complexity string

const (
	ComplexitySimple  Complexity = "simple"
	ComplexityMedium  Complexity = "medium"
	ComplexityComplex Complexity = "complex"
)

// DateRange is an inclusive [Start, End] filter, either absolute or
// resolved from a relative phrase against the clock at analysis time.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Filters holds the metadata hints the Analyzer could parse out of the
// query text.
type Filters struct {
	DateRange    *DateRange
	Categories   []string
	Writers      []string
}

// Analyzed is the full output of analyzing one raw query string.
type Analyzed struct {
	RawText         string
	NormalizedText  string
	Keywords        []string
	Entities        entities.Buckets
	Intent          Intent
	Filters         Filters
	Complexity      Complexity
}

const topKeywords = 10

var (
	nonWordRe    = regexp.MustCompile(`[^\p{L}\p{N}\s]`)
	whitespaceRe = regexp.MustCompile(`\s+`)

	absoluteDateRe = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)

	categoryMarkers = []string{"증권", "금융", "정치", "사회", "스포츠", "문화", "IT", "경제"}
)

// stopwords are dropped before keyword-frequency ranking. Not exhaustive;
// tuned to the domain's function words.
var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "of": true, "in": true, "on": true,
	"and": true, "or": true, "is": true, "are": true, "was": true, "were": true,
	"이": true, "가": true, "을": true, "를": true, "은": true, "는": true,
	"에": true, "의": true, "와": true, "과": true, "도": true, "로": true,
	"what": true, "when": true, "where": true, "who": true, "why": true, "how": true,
}

var intentCues = []struct {
	intent Intent
	cues   []string
}{
	{IntentQuestion, []string{"?", "무엇", "누구", "언제", "어디", "왜", "어떻게", "what", "when", "where", "who", "why", "how", "is", "are", "does"}},
	{IntentSearch, []string{"찾아", "검색", "search", "find", "show me"}},
	{IntentComparison, []string{"비교", "대비", "compare", "versus", " vs ", "difference between"}},
	{IntentAnalysis, []string{"분석", "왜 그런지", "analyze", "analysis", "impact", "trend"}},
}

// Analyze produces the full Analyzed structure for a raw query, resolving
// relative date phrases against now.
func Analyze(raw string, now time.Time) Analyzed {
	normalized := normalize(raw)
	tokens := tokenize(normalized)
	keywords := rankKeywords(tokens)
	buckets := entities.Extract(raw)
	intent := classifyIntent(raw)
	filters := parseFilters(raw, now)
	complexity := classifyComplexity(raw, keywords, buckets)

	return Analyzed{
		RawText:        raw,
		NormalizedText: normalized,
		Keywords:       keywords,
		Entities:       buckets,
		Intent:         intent,
		Filters:        filters,
		Complexity:     complexity,
	}
}

// normalize lowercases, strips non-word characters, and collapses
// whitespace, matching spec.md §4.7.
func normalize(raw string) string {
	out := strings.ToLower(raw)
	out = nonWordRe.ReplaceAllString(out, " ")
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(out, " "))
}

func tokenize(normalized string) []string {
	if normalized == "" {
		return nil
	}
	return strings.Split(normalized, " ")
}

// rankKeywords returns the top-N non-stopword tokens of length >= 2 by
// descending frequency, ties broken by first occurrence.
func rankKeywords(tokens []string) []string {
	freq := make(map[string]int)
	order := make(map[string]int)
	for i, t := range tokens {
		if len([]rune(t)) < 2 || stopwords[t] {
			continue
		}
		if _, seen := order[t]; !seen {
			order[t] = i
		}
		freq[t]++
	}
	unique := make([]string, 0, len(freq))
	for t := range freq {
		unique = append(unique, t)
	}
	sort.Slice(unique, func(i, j int) bool {
		if freq[unique[i]] != freq[unique[j]] {
			return freq[unique[i]] > freq[unique[j]]
		}
		return order[unique[i]] < order[unique[j]]
	})
	if len(unique) > topKeywords {
		unique = unique[:topKeywords]
	}
	return unique
}

// classifyIntent returns the first matching cue's intent in priority
// order, or general when nothing matches.
func classifyIntent(raw string) Intent {
	lower := strings.ToLower(raw)
	padded := " " + normalize(raw) + " "
	for _, cue := range intentCues {
		for _, kw := range cue.cues {
			if cueMatches(lower, padded, kw) {
				return cue.intent
			}
		}
	}
	return IntentGeneral
}

// cueMatches matches ASCII word cues as whole words, so "are" does not fire
// inside "compare"; Hangul cues and punctuation match as substrings.
func cueMatches(lower, padded, kw string) bool {
	for _, r := range kw {
		if (r < 'a' || r > 'z') && r != ' ' {
			return strings.Contains(lower, kw)
		}
	}
	return strings.Contains(padded, " "+strings.TrimSpace(kw)+" ")
}

// parseFilters extracts absolute/relative date ranges, category hints,
// and writer hints from the raw query text.
func parseFilters(raw string, now time.Time) Filters {
	var f Filters

	if dr := parseRelativeDateRange(raw, now); dr != nil {
		f.DateRange = dr
	} else if dr := parseAbsoluteDateRange(raw); dr != nil {
		f.DateRange = dr
	}

	for _, cat := range categoryMarkers {
		if strings.Contains(raw, cat) {
			f.Categories = append(f.Categories, cat)
		}
	}

	f.Writers = extractWriterHints(raw)

	return f
}

func parseAbsoluteDateRange(raw string) *DateRange {
	matches := absoluteDateRe.FindAllString(raw, -1)
	if len(matches) == 0 {
		return nil
	}
	var dates []time.Time
	for _, m := range matches {
		if t, err := time.Parse("2006-01-02", m); err == nil {
			dates = append(dates, t)
		}
	}
	if len(dates) == 0 {
		return nil
	}
	start, end := dates[0], dates[0]
	for _, d := range dates[1:] {
		if d.Before(start) {
			start = d
		}
		if d.After(end) {
			end = d
		}
	}
	return &DateRange{Start: start, End: end.Add(24*time.Hour - time.Nanosecond)}
}

func parseRelativeDateRange(raw string, now time.Time) *DateRange {
	lower := strings.ToLower(raw)
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	switch {
	case strings.Contains(lower, "today") || strings.Contains(raw, "오늘"):
		return &DateRange{Start: dayStart, End: dayStart.Add(24*time.Hour - time.Nanosecond)}
	case strings.Contains(lower, "this week") || strings.Contains(raw, "이번 주"):
		weekday := int(now.Weekday())
		start := dayStart.AddDate(0, 0, -weekday)
		return &DateRange{Start: start, End: start.AddDate(0, 0, 7).Add(-time.Nanosecond)}
	case strings.Contains(lower, "this year") || strings.Contains(raw, "올해"):
		start := time.Date(now.Year(), 1, 1, 0, 0, 0, 0, now.Location())
		return &DateRange{Start: start, End: start.AddDate(1, 0, 0).Add(-time.Nanosecond)}
	case strings.Contains(lower, "this month") || strings.Contains(raw, "이번 달"):
		start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		return &DateRange{Start: start, End: start.AddDate(0, 1, 0).Add(-time.Nanosecond)}
	}
	return nil
}

// extractWriterHints returns the persons bucket of the shared entity
// extractor: names before a "기자" cue and any other matched person name.
// It is not restricted to bylines.
func extractWriterHints(raw string) []string {
	buckets := entities.Extract(raw)
	return buckets.Persons
}

// classifyComplexity scores the query on length, keyword count, and
// entity count, bounded to {simple, medium, complex}.
func classifyComplexity(raw string, keywords []string, buckets entities.Buckets) Complexity {
	score := 0
	runeLen := len([]rune(raw))
	switch {
	case runeLen > 80:
		score += 2
	case runeLen > 30:
		score++
	}
	switch {
	case len(keywords) > 6:
		score += 2
	case len(keywords) > 3:
		score++
	}
	switch {
	case buckets.Count() > 4:
		score += 2
	case buckets.Count() > 1:
		score++
	}

	switch {
	case score >= 4:
		return ComplexityComplex
	case score >= 2:
		return ComplexityMedium
	default:
		return ComplexitySimple
	}
}

// ParseIntLenient is exported for callers that need the same
// swallow-on-error integer parse the parser package uses for filter
// values (e.g. a numeric top_k override embedded in a query string).
func ParseIntLenient(s string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, false
	}
	return n, true
}

// Package entities holds the regex pattern sets shared by the Extractor
// (over article text) and the Query Analyzer (over query strings).
package entities

import "regexp"

// Buckets holds the deduplicated, first-occurrence-ordered entity mentions
// found in a piece of text.
type Buckets struct {
	Persons   []string `json:"persons"`
	Companies []string `json:"companies"`
	Locations []string `json:"locations"`
	Dates     []string `json:"dates"`
	Numbers   []string `json:"numbers"`
}

// Count returns the total number of entity mentions across all buckets,
// used by the complexity scorer.
func (b Buckets) Count() int {
	return len(b.Persons) + len(b.Companies) + len(b.Locations) + len(b.Dates) + len(b.Numbers)
}

// \p{Hangul} replaces the original's [가-힣] character class; RE2 supports
// Unicode script classes natively.
var (
	koreanNamePattern = regexp.MustCompile(`\p{Hangul}{2,4}(?:[\s,.]|이다|라고|씨|님)`)
	writerPattern     = regexp.MustCompile(`(\p{Hangul}{2,4})\s*기자`)

	companyPatterns = []*regexp.Regexp{
		regexp.MustCompile(`[\p{Hangul}\w\s]+(?:주식회사|유한회사|㈜|\(주\)|\(유\))`),
		regexp.MustCompile(`[\p{Hangul}\w\s]+(?:그룹|그룹사|홀딩스|인베스트먼트)`),
		regexp.MustCompile(`[\p{Hangul}\w\s]+(?:은행|증권|보험|카드)`),
	}

	locationPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\p{Hangul}+(?:시|도|구|군|동|읍|면)`),
		regexp.MustCompile(`\p{Hangul}+(?:서울|부산|대구|인천|광주|대전|울산|세종)`),
		regexp.MustCompile(`\p{Hangul}+(?:강남|강북|서초|송파|마포|용산|영등포)`),
	}

	datePatterns = []*regexp.Regexp{
		regexp.MustCompile(`\d{4}년\s*\d{1,2}월\s*\d{1,2}일`),
		regexp.MustCompile(`\d{4}-\d{2}-\d{2}`),
		regexp.MustCompile(`\d{2}/\d{2}/\d{4}`),
		regexp.MustCompile(`\d{4}\.\d{2}\.\d{2}`),
	}

	numberPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\d+조\s*\d+억\s*\d+만`),
		regexp.MustCompile(`\d+억\s*\d+만`),
		regexp.MustCompile(`\d+만\s*원`),
		regexp.MustCompile(`\d+\.\d+%`),
		regexp.MustCompile(`\d+%`),
	}
)

// Extract runs every bucket's pattern set over text and returns a
// deduplicated, first-occurrence-ordered result per bucket.
func Extract(text string) Buckets {
	return Buckets{
		Persons:   extractPersons(text),
		Companies: extractAll(text, companyPatterns),
		Locations: extractAll(text, locationPatterns),
		Dates:     extractAll(text, datePatterns),
		Numbers:   extractAll(text, numberPatterns),
	}
}

func extractPersons(text string) []string {
	var ordered []string
	seen := make(map[string]bool)
	add := func(matches []string) {
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				ordered = append(ordered, m)
			}
		}
	}
	add(koreanNamePattern.FindAllString(text, -1))
	for _, m := range writerPattern.FindAllStringSubmatch(text, -1) {
		if len(m) > 1 && !seen[m[1]] {
			seen[m[1]] = true
			ordered = append(ordered, m[1])
		}
	}
	return ordered
}

func extractAll(text string, patterns []*regexp.Regexp) []string {
	var ordered []string
	seen := make(map[string]bool)
	for _, p := range patterns {
		for _, m := range p.FindAllString(text, -1) {
			if !seen[m] {
				seen[m] = true
				ordered = append(ordered, m)
			}
		}
	}
	return ordered
}

package dedup

import (
	"briefly/internal/core"
	"briefly/internal/model"
)

// ExistingLookup is the subset of the store the detector needs: find a
// candidate's match by content hash or by normalized title.
type ExistingLookup interface {
	FindByHash(hash string) (*core.Article, bool)
	FindByTitleHash(hash string) (*core.Article, bool)
}

// DuplicateDetector classifies a candidate article against the existing
// store per spec: Unique, ExactDuplicate, NearDuplicate, or TitleDuplicate.
type DuplicateDetector struct {
	hasher              *ContentHasher
	similarityThreshold float64
}

// NewDuplicateDetector builds a detector at the given near-duplicate
// similarity threshold (spec default 0.8).
func NewDuplicateDetector(hasher *ContentHasher, similarityThreshold float64) *DuplicateDetector {
	if similarityThreshold <= 0 {
		similarityThreshold = 0.8
	}
	return &DuplicateDetector{hasher: hasher, similarityThreshold: similarityThreshold}
}

// Detect classifies candidate against the store. ExactDuplicate always wins
// over NearDuplicate/TitleDuplicate; TitleDuplicate is an annotate-only
// signal never used to reject.
func (d *DuplicateDetector) Detect(candidate *core.Article, lookup ExistingLookup, existing []core.Article) model.DedupDecision {
	hash := candidate.ContentHash
	if hash == "" {
		hash = d.hasher.Hash(candidate.Title, candidate.Body, candidate.Summary)
	}
	if match, ok := lookup.FindByHash(hash); ok {
		return model.DedupDecision{Verdict: model.ExactDuplicate, ExistingID: match.InternalID, Score: 1.0}
	}

	titleHash := d.hasher.HashText(candidate.Title)
	titleMatch, hasTitleMatch := lookup.FindByTitleHash(titleHash)

	best := model.DedupDecision{Verdict: model.Unique}
	for i := range existing {
		other := &existing[i]
		score := d.similarity(candidate, other)
		if score >= d.similarityThreshold && score > best.Score {
			best = model.DedupDecision{Verdict: model.NearDuplicate, ExistingID: other.InternalID, Score: score}
		}
	}
	if best.Verdict != model.Unique {
		return best
	}
	if hasTitleMatch {
		return model.DedupDecision{Verdict: model.TitleDuplicate, ExistingID: titleMatch.InternalID, Score: 1.0}
	}
	return best
}

// similarity computes the weighted mix of title/summary/body LCS-ratio
// similarity, per spec.md §4.2.
func (d *DuplicateDetector) similarity(a, b *core.Article) float64 {
	titleSim := d.textSimilarity(a.Title, b.Title)
	summarySim := d.textSimilarity(a.Summary, b.Summary)
	bodySim := d.contentSimilarity(a.Body, b.Body)
	return 0.4*titleSim + 0.3*summarySim + 0.3*bodySim
}

func (d *DuplicateDetector) textSimilarity(t1, t2 string) float64 {
	if t1 == "" || t2 == "" {
		return 0
	}
	return lcsRatio(d.hasher.Normalize(t1), d.hasher.Normalize(t2))
}

// contentSimilarity compares normalized bodies; for long bodies it chunks
// into 500-rune windows and takes the maximum pairwise score, matching
// duplicate_detector.py::_calculate_chunk_similarity.
func (d *DuplicateDetector) contentSimilarity(c1, c2 string) float64 {
	if c1 == "" || c2 == "" {
		return 0
	}
	n1 := d.hasher.Normalize(c1)
	n2 := d.hasher.Normalize(c2)
	r1, r2 := []rune(n1), []rune(n2)
	if len(r1) > 1000 || len(r2) > 1000 {
		return chunkSimilarity(r1, r2)
	}
	return lcsRatioRunes(r1, r2)
}

const chunkSize = 500

func chunkSimilarity(r1, r2 []rune) float64 {
	chunks1 := splitChunks(r1, chunkSize)
	chunks2 := splitChunks(r2, chunkSize)
	var max float64
	for _, c1 := range chunks1 {
		for _, c2 := range chunks2 {
			if score := lcsRatioRunes(c1, c2); score > max {
				max = score
			}
		}
	}
	return max
}

func splitChunks(r []rune, size int) [][]rune {
	var chunks [][]rune
	for i := 0; i < len(r); i += size {
		end := i + size
		if end > len(r) {
			end = len(r)
		}
		chunks = append(chunks, r[i:end])
	}
	if len(chunks) == 0 {
		chunks = append(chunks, r)
	}
	return chunks
}

// lcsCap bounds the DP grid so a single pairwise comparison can never exceed
// lcsCap*lcsCap cells (about 4M at the default), keeping worst-case work
// predictable regardless of how large an individual field is.
const lcsCap = 2000

func lcsRatio(a, b string) float64 {
	return lcsRatioRunes([]rune(a), []rune(b))
}

// lcsRatioRunes computes a difflib.SequenceMatcher.ratio()-equivalent score:
// 2*M / T where M is the longest common subsequence length and T is the
// combined length of both inputs. Go's standard library has no fuzzy-match
// primitive, so this is a direct dynamic-programming LCS over rune slices.
func lcsRatioRunes(a, b []rune) float64 {
	if len(a) > lcsCap {
		a = a[:lcsCap]
	}
	if len(b) > lcsCap {
		b = b[:lcsCap]
	}
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				curr[j] = prev[j-1] + 1
			} else if prev[j] >= curr[j-1] {
				curr[j] = prev[j]
			} else {
				curr[j] = curr[j-1]
			}
		}
		prev, curr = curr, prev
	}
	lcs := prev[len(b)]
	total := len(a) + len(b)
	return 2 * float64(lcs) / float64(total)
}

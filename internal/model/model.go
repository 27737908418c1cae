// Package model holds the value types shared by the dedup, chunking, and
// indexing packages that core.Article has no use for on its own.
package model

// Chunk is one bounded text window emitted by the Chunker; the unit of
// embedding when article text exceeds the embedder's limit.
type Chunk struct {
	Text        string `json:"text"`
	Index       int    `json:"index"`
	StartOffset int    `json:"start_offset"` // byte offset into the untrimmed input
	EndOffset   int    `json:"end_offset"`
}

// DuplicateVerdict is the outcome of comparing a candidate article against
// the existing store.
type DuplicateVerdict int

const (
	Unique DuplicateVerdict = iota
	ExactDuplicate
	NearDuplicate
	TitleDuplicate
)

func (v DuplicateVerdict) String() string {
	switch v {
	case Unique:
		return "unique"
	case ExactDuplicate:
		return "exact_duplicate"
	case NearDuplicate:
		return "near_duplicate"
	case TitleDuplicate:
		return "title_duplicate"
	default:
		return "unknown"
	}
}

// DedupDecision carries the verdict plus the matched article and score, when
// applicable. It is never a fatal error — the orchestrator turns it into a
// decision, not an abort.
type DedupDecision struct {
	Verdict    DuplicateVerdict
	ExistingID string
	Score      float64
}

// NearDuplicatePolicy controls what the ingest worker does with a
// NearDuplicate verdict. Chosen once per deployment, not per call.
type NearDuplicatePolicy string

const (
	PolicyAnnotate NearDuplicatePolicy = "annotate"
	PolicyReject   NearDuplicatePolicy = "reject"
)

// HashStrength selects the content hash algorithm's bit width.
type HashStrength int

const (
	Hash128 HashStrength = 128
	Hash160 HashStrength = 160
	Hash256 HashStrength = 256
)

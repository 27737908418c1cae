// Package chunker splits article text into overlapping windows sized for
// the embedder, using one of four boundary strategies selected by config.
package chunker

import (
	"regexp"
	"strings"

	"briefly/internal/model"
)

// Strategy selects the chunking boundary rule.
type Strategy string

const (
	StrategyFixed     Strategy = "fixed"
	StrategySentence  Strategy = "sentence"
	StrategyParagraph Strategy = "paragraph"
	StrategySemantic  Strategy = "semantic" // currently aliases sentence
)

// Chunker splits text into a finite, non-empty sequence of Chunks. Offsets
// refer to byte positions in the untrimmed input.
type Chunker struct {
	ChunkSize    int
	ChunkOverlap int
	Strategy     Strategy
}

// New builds a Chunker at the given size/overlap/strategy. Unknown
// strategies fall back to fixed, matching the original's defensive default.
func New(chunkSize, chunkOverlap int, strategy Strategy) *Chunker {
	if chunkSize <= 0 {
		chunkSize = 500
	}
	if chunkOverlap < 0 {
		chunkOverlap = 0
	}
	return &Chunker{ChunkSize: chunkSize, ChunkOverlap: chunkOverlap, Strategy: strategy}
}

// Chunk splits text according to the configured strategy. For input no
// longer than ChunkSize it always emits exactly one chunk of the trimmed
// text, per contract.
func (c *Chunker) Chunk(text string) ([]model.Chunk, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, nil
	}
	if len([]rune(trimmed)) <= c.ChunkSize {
		return []model.Chunk{{Text: trimmed, Index: 0, StartOffset: 0, EndOffset: len(text)}}, nil
	}

	switch c.Strategy {
	case StrategySentence, StrategySemantic:
		return c.chunkBySentence(text), nil
	case StrategyParagraph:
		return c.chunkByParagraph(text), nil
	default:
		return c.chunkFixedSize(text), nil
	}
}

func (c *Chunker) chunkFixedSize(text string) []model.Chunk {
	trimmed := strings.TrimSpace(text)
	lead := strings.Index(text, trimmed)
	runes := []rune(trimmed)
	var chunks []model.Chunk
	start := 0
	index := 0
	for start < len(runes) {
		end := start + c.ChunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunkText := strings.TrimSpace(string(runes[start:end]))
		chunks = append(chunks, model.Chunk{
			Text:        chunkText,
			Index:       index,
			StartOffset: lead + len(string(runes[:start])),
			EndOffset:   lead + len(string(runes[:end])),
		})
		index++
		if end >= len(runes) {
			break
		}
		overlapStart := end - c.ChunkOverlap
		if overlapStart < start {
			overlapStart = start
		}
		next := findSplitPoint(runes, overlapStart, end)
		if next > start {
			start = next
		} else {
			start = end
		}
	}
	return chunks
}

// findSplitPoint scans backward from end toward start for the nearest
// whitespace or sentence terminator, matching _find_split_point.
func findSplitPoint(runes []rune, start, end int) int {
	for i := end - 1; i >= start; i-- {
		switch runes[i] {
		case '\n', '\r', '.', '!', '?', ' ':
			if i+1 < len(runes) {
				switch runes[i+1] {
				case '\n', '\r', ' ':
					return i + 2
				}
			}
			return i + 1
		}
	}
	return end
}

var sentencePattern = regexp.MustCompile(`[^.!?\n]+[.!?\n]+`)

func (c *Chunker) chunkBySentence(text string) []model.Chunk {
	sentences := sentencePattern.FindAllString(text, -1)
	if len(sentences) == 0 {
		return []model.Chunk{{Text: strings.TrimSpace(text), Index: 0, StartOffset: 0, EndOffset: len(text)}}
	}

	var chunks []model.Chunk
	var current strings.Builder
	index := 0
	charOffset := 0

	flush := func() {
		trimmed := strings.TrimSpace(current.String())
		if trimmed == "" {
			return
		}
		chunks = append(chunks, model.Chunk{
			Text:        trimmed,
			Index:       index,
			StartOffset: charOffset,
			EndOffset:   charOffset + len(current.String()),
		})
		index++
	}

	for _, sentence := range sentences {
		if len([]rune(current.String()))+len([]rune(sentence)) > c.ChunkSize && current.Len() > 0 {
			flush()
			prevLen := len(current.String())
			overlap := overlapTail(current.String(), c.ChunkOverlap)
			current.Reset()
			current.WriteString(overlap)
			current.WriteString(sentence)
			charOffset = charOffset + prevLen - len(overlap)
		} else {
			current.WriteString(sentence)
		}
	}
	if strings.TrimSpace(current.String()) != "" {
		flush()
	}
	return chunks
}

func (c *Chunker) chunkByParagraph(text string) []model.Chunk {
	paragraphPattern := regexp.MustCompile(`\n\s*\n+`)
	rawParas := paragraphPattern.Split(text, -1)
	var paragraphs []string
	for _, p := range rawParas {
		if t := strings.TrimSpace(p); t != "" {
			paragraphs = append(paragraphs, t)
		}
	}
	if len(paragraphs) == 0 {
		return []model.Chunk{{Text: strings.TrimSpace(text), Index: 0, StartOffset: 0, EndOffset: len(text)}}
	}

	var chunks []model.Chunk
	var current strings.Builder
	index := 0
	charOffset := 0

	flush := func() {
		trimmed := strings.TrimSpace(current.String())
		if trimmed == "" {
			return
		}
		chunks = append(chunks, model.Chunk{
			Text:        trimmed,
			Index:       index,
			StartOffset: charOffset - len(current.String()),
			EndOffset:   charOffset,
		})
		index++
	}

	for _, para := range paragraphs {
		if len([]rune(current.String()))+len([]rune(para))+2 > c.ChunkSize && current.Len() > 0 {
			flush()
			overlap := overlapTail(current.String(), c.ChunkOverlap)
			charOffset += len(para) + 2 - len(overlap)
			current.Reset()
			if overlap != "" {
				current.WriteString(overlap)
				current.WriteString("\n\n")
			}
			current.WriteString(para)
		} else {
			if current.Len() > 0 {
				current.WriteString("\n\n")
			}
			current.WriteString(para)
			charOffset += len(para) + 2
		}
	}
	if strings.TrimSpace(current.String()) != "" {
		flush()
	}
	return chunks
}

var sentenceBoundary = regexp.MustCompile(`[.!?\n]`)

// overlapTail extracts the tail overlapSize runes of text, trimmed back to
// the first sentence boundary found within it, matching _get_overlap_text.
func overlapTail(text string, overlapSize int) string {
	runes := []rune(text)
	if len(runes) <= overlapSize || overlapSize <= 0 {
		if overlapSize <= 0 {
			return ""
		}
		return text
	}
	tail := string(runes[len(runes)-overlapSize:])
	loc := sentenceBoundary.FindStringIndex(tail)
	if loc != nil {
		return tail[loc[1]:]
	}
	return tail
}

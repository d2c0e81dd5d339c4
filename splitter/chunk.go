package splitter

import (
	"context"
	"strings"
)

// SpecialRuleMaxTokens is the spec.md §4.2 threshold below which a chapter
// becomes a single CHAPTER-kind chunk instead of being run through Phase B.
const SpecialRuleMaxTokens = 512

// Excerpt is the Phase B output before it is lifted into a model.Chunk by the
// caller (ingest.Service), which knows the owning chapter/document/library ids.
type Excerpt struct {
	// IsChapterChunk is true for the §4.2 "special rule" single-chunk case:
	// callers should use model.ChunkKindChapter and a nil OrderInChapter.
	// Otherwise callers use model.ChunkKindExcerpt with OrderInChapter
	// starting at 1 in slice order.
	IsChapterChunk bool
	Text           string
}

// SplitChunks runs Phase B on a single chapter's body.
func (s *Splitter) SplitChunks(ctx context.Context, chapterBody string, chapterTokens int, model string) []Excerpt {
	if chapterTokens <= SpecialRuleMaxTokens {
		return []Excerpt{{IsChapterChunk: true, Text: strings.TrimSpace(chapterBody)}}
	}

	units := s.buildSentenceUnits(ctx, chapterBody, model)
	ideal := s.Config.IdealChunkTokens
	if ideal <= 0 {
		ideal = DefaultConfig().IdealChunkTokens
	}
	max := s.Config.MaxChunkTokens
	if max <= 0 {
		max = DefaultConfig().MaxChunkTokens
	}
	low := int(float64(ideal) * 0.7)
	high := int(float64(ideal) * 1.3)

	pieces := packUnitsByWindow(units, low, high, max)
	out := make([]Excerpt, 0, len(pieces))
	for _, p := range pieces {
		out = append(out, Excerpt{Text: p})
	}
	return out
}

type sentenceUnit struct {
	text         string
	tokens       int
	paragraphEnd bool
}

func (s *Splitter) buildSentenceUnits(ctx context.Context, body string, model string) []sentenceUnit {
	paragraphs := splitParagraphs(body)
	var units []sentenceUnit
	for _, para := range paragraphs {
		sentences := s.Sentences.Split(para)
		if len(sentences) == 0 {
			sentences = []string{para}
		}
		for i, sent := range sentences {
			units = append(units, sentenceUnit{
				text:         sent,
				tokens:       s.Counter.Count(ctx, sent, model),
				paragraphEnd: i == len(sentences)-1,
			})
		}
	}
	return units
}

// packUnitsByWindow implements the §4.2 Phase B cut priority: a cut point
// inside [low, high] that falls on a paragraph boundary wins; otherwise any
// sentence cut inside the window; otherwise a hard cut after the unit that
// took the running total past high or to max (or at end of input).
func packUnitsByWindow(units []sentenceUnit, low, high, max int) []string {
	var out []string
	start := 0
	acc := 0
	lastParaCut := -1
	lastSentCut := -1

	sumRange := func(from, to int) int {
		sum := 0
		for k := from; k <= to; k++ {
			sum += units[k].tokens
		}
		return sum
	}
	joinRange := func(from, to int) string {
		parts := make([]string, 0, to-from+1)
		for k := from; k <= to; k++ {
			parts = append(parts, units[k].text)
		}
		return strings.TrimSpace(strings.Join(parts, " "))
	}

	for i := range units {
		acc += units[i].tokens
		if acc >= low && acc <= high {
			lastSentCut = i
			if units[i].paragraphEnd {
				lastParaCut = i
			}
		}
		atEnd := i == len(units)-1
		if acc > high || acc >= max || atEnd {
			cut := i
			switch {
			case lastParaCut != -1:
				cut = lastParaCut
			case lastSentCut != -1:
				cut = lastSentCut
			}
			out = append(out, joinRange(start, cut))
			start = cut + 1
			lastParaCut, lastSentCut = -1, -1
			if start <= i {
				acc = sumRange(start, i)
				if acc > max {
					// a leftover run still exceeds the cap on its own (e.g. one
					// pathologically long sentence); emit it as-is rather than
					// looping forever.
					out = append(out, joinRange(start, i))
					start = i + 1
					acc = 0
				}
			} else {
				acc = 0
			}
		}
	}
	if start < len(units) {
		out = append(out, joinRange(start, len(units)-1))
	}
	return out
}

package ingest

import (
	"context"
	"fmt"

	"github.com/stratarag/stratarag/llmctx"
	"github.com/stratarag/stratarag/model"
	"github.com/stratarag/stratarag/ragerr"
)

// EnrichOptions configures a post-ingest enrichment pass (spec.md §4.7
// "Enrichment").
type EnrichOptions struct {
	QA               bool
	NQA              int
	Summary          bool
	MaxSummaryTokens int
	// ContinueOnError, when true, skips a chapter that fails enrichment and
	// continues with the rest. When false (the zero value, so a caller that
	// leaves it unset gets this behaviour), the first error aborts the whole
	// call.
	ContinueOnError bool
}

func (o EnrichOptions) validate() error {
	if !o.QA && !o.Summary {
		return fmt.Errorf("at least one enrichment type (QA or Summary) must be enabled")
	}
	if o.QA && (o.NQA < 1 || o.NQA > 20) {
		return fmt.Errorf("n_qa must be between 1 and 20, got %d", o.NQA)
	}
	if o.Summary && (o.MaxSummaryTokens < 100 || o.MaxSummaryTokens > 2000) {
		return fmt.Errorf("max_summary must be between 100 and 2000, got %d", o.MaxSummaryTokens)
	}
	return nil
}

// EnrichStats summarizes one Enrich call.
type EnrichStats struct {
	ChaptersProcessed int
	ChaptersFailed    int
	ChunksCreated     int
}

// Enrich generates additional Q&A and/or summary chunks for doc's chapters
// and embeds them through the same batched pipeline as Process.
func (s *Service) Enrich(ctx context.Context, doc model.Document, lib model.Library, chapters []model.Chapter, genFlag GenFlag, opts EnrichOptions) (EnrichStats, error) {
	if err := opts.validate(); err != nil {
		return EnrichStats{}, ragerr.New(ragerr.InvalidInput, "Enrich", err)
	}

	ctxLLM, err := s.LLMCtx(lib)
	if err != nil {
		return EnrichStats{}, ragerr.New(ragerr.InvalidConfiguration, "Enrich", err)
	}
	ctxEmb, err := s.EmbedCtx(lib)
	if err != nil {
		return EnrichStats{}, ragerr.New(ragerr.InvalidConfiguration, "Enrich", err)
	}

	continueOnError := opts.ContinueOnError

	var allChunks []model.Chunk
	stats := EnrichStats{}
	for _, chapter := range chapters {
		chunks, err := s.enrichChapter(ctx, ctxLLM, lib, doc, chapter, opts)
		if err != nil {
			stats.ChaptersFailed++
			s.logger().Warn("ingest: chapter enrichment failed", "chapter_id", chapter.ID, "error", err)
			if !continueOnError {
				return stats, err
			}
			continue
		}
		stats.ChaptersProcessed++
		allChunks = append(allChunks, chunks...)
	}

	if len(allChunks) == 0 {
		return stats, nil
	}

	ids, err := s.Chunks.InsertBatch(ctx, allChunks)
	if err != nil {
		return stats, ragerr.New(ragerr.PersistenceError, "Enrich", err)
	}
	for i := range allChunks {
		allChunks[i].ID = ids[i]
	}
	stats.ChunksCreated = len(allChunks)

	s.embedAndUpdate(ctx, ctxEmb, allChunks, genFlag)
	return stats, nil
}

// enrichChapter generates the Q&A and/or summary chunks for a single
// chapter. A question/answer pair is stored as two sibling chunks
// cross-referencing each other's provisional pair id via metadata, since ids
// are not assigned until InsertBatch runs for the whole enrichment set.
func (s *Service) enrichChapter(ctx context.Context, ctxLLM *llmctx.Context, lib model.Library, doc model.Document, chapter model.Chapter, opts EnrichOptions) ([]model.Chunk, error) {
	chapterID := chapter.ID
	var chunks []model.Chunk

	if opts.QA {
		questions, err := ctxLLM.GenerateQA(ctx, chapter.Body, opts.NQA)
		if err != nil {
			return nil, fmt.Errorf("generate qa: %w", err)
		}
		for i, question := range questions {
			answer, err := ctxLLM.Complete(ctx, "", answerPrompt(chapter.Body, question), defaultAnswerParams())
			if err != nil {
				return nil, fmt.Errorf("generate answer for question %d: %w", i, err)
			}
			pairID := fmt.Sprintf("%s-qa-%d", chapter.ID, i)
			qOrder := qaOrderBase + i*2
			aOrder := qOrder + 1
			chunks = append(chunks,
				model.Chunk{
					LibraryID:      lib.ID,
					DocumentID:     doc.ID,
					ChapterID:      &chapterID,
					Kind:           model.ChunkKindQuestionAns,
					Text:           question,
					OrderInChapter: &qOrder,
					Metadata:       map[string]any{"qa_pair_id": pairID, "qa_role": "question"},
				},
				model.Chunk{
					LibraryID:      lib.ID,
					DocumentID:     doc.ID,
					ChapterID:      &chapterID,
					Kind:           model.ChunkKindQuestionAns,
					Text:           answer,
					OrderInChapter: &aOrder,
					Metadata:       map[string]any{"qa_pair_id": pairID, "qa_role": "answer"},
				},
			)
		}
	}

	if opts.Summary {
		summary, err := ctxLLM.Summarize(ctx, chapter.Body, opts.MaxSummaryTokens)
		if err != nil {
			return nil, fmt.Errorf("generate summary: %w", err)
		}
		order := summaryOrder
		chunks = append(chunks, model.Chunk{
			LibraryID:      lib.ID,
			DocumentID:     doc.ID,
			ChapterID:      &chapterID,
			Kind:           model.ChunkKindSummary,
			Text:           summary,
			OrderInChapter: &order,
			Metadata:       map[string]any{"enrichment": true},
		})
	}

	return chunks, nil
}

// qaOrderBase and summaryOrder place enrichment chunks in an order range
// that will never collide with the order_in_chapter values Process assigns
// (1..N for EXCERPT, 0 for the ingest-time SUMMARY): enrichment always runs
// after a chapter already has its primary chunks, so these are chosen well
// above any plausible excerpt count.
const (
	qaOrderBase  = 10000
	summaryOrder = 20000
)

func answerPrompt(chapterBody, question string) string {
	return fmt.Sprintf("Answer the following question using only the text below.\n\nText:\n%s\n\nQuestion: %s\nAnswer:", chapterBody, question)
}

func defaultAnswerParams() llmctx.Params {
	return llmctx.Params{Temperature: 0.3, TopP: 1, MaxTokens: 512}
}

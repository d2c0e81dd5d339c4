// Package ingest orchestrates document processing (spec.md §4.7): routing,
// splitting, chunk persistence, and batched embedding, one asynchronous task
// per document. Grounded structurally on the teacher's
// ingestion.IngestionPipeline (an ordered stage sequence over a batch of
// schema.Node, functional options, docstore/vector-store ports) — the stage
// sequence here is fixed to spec.md's split→persist→embed→update order
// rather than pluggable transforms, since the spec does not ask for
// configurable ingestion stages.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/stratarag/stratarag/dispatch"
	"github.com/stratarag/stratarag/embedctx"
	"github.com/stratarag/stratarag/llmctx"
	"github.com/stratarag/stratarag/model"
	"github.com/stratarag/stratarag/ragerr"
	"github.com/stratarag/stratarag/router"
	"github.com/stratarag/stratarag/splitter"
	"github.com/stratarag/stratarag/store"
)

// Stats summarizes one Process call (spec.md §4.7).
type Stats struct {
	Chapters  int
	Chunks    int
	Processed int
	Failed    int
	Duration  time.Duration
}

// EmbedContextFactory binds a library to its configured embedding model.
// Supplied by the caller (ragcore wiring) since the context length and
// dimension come from configuration, not from model.Library alone.
type EmbedContextFactory func(lib model.Library) (*embedctx.Context, error)

// LLMContextFactory binds a library to its configured completion model.
type LLMContextFactory func(lib model.Library) (*llmctx.Context, error)

// Service implements spec.md §4.7's process() orchestration.
type Service struct {
	Router    *router.Router
	Splitter  *splitter.Splitter
	Chapters  store.ChapterRepository
	Chunks    store.ChunkRepository
	// Documents is the §4.10 state machine's write path. Optional: when nil,
	// Process runs exactly as before and simply skips recording state.
	Documents store.DocumentRepository
	EmbedCtx  EmbedContextFactory
	LLMCtx    LLMContextFactory
	Logger    *slog.Logger

	// BatchSize is the embedding batch size (spec.md §6 default 5, hard
	// ceiling embedctx.MaxBatchSize).
	BatchSize int
	// SummaryThresholdTokens is the chapter size above which a SUMMARY chunk
	// precedes the EXCERPT chunks (spec.md §4.7 default 2500).
	SummaryThresholdTokens int
	// SummaryMaxTokens bounds the generated chapter summary (spec.md §4.7
	// default 2048).
	SummaryMaxTokens int
}

func (s *Service) batchSize() int {
	if s.BatchSize <= 0 {
		return 5
	}
	if s.BatchSize > embedctx.MaxBatchSize {
		return embedctx.MaxBatchSize
	}
	return s.BatchSize
}

func (s *Service) summaryThreshold() int {
	if s.SummaryThresholdTokens <= 0 {
		return 2500
	}
	return s.SummaryThresholdTokens
}

func (s *Service) summaryMaxTokens() int {
	if s.SummaryMaxTokens <= 0 {
		return 2048
	}
	return s.SummaryMaxTokens
}

func (s *Service) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// Process runs the full §4.7 pipeline for one document against one library.
func (s *Service) Process(ctx context.Context, doc model.Document, lib model.Library, genFlag GenFlag, hint router.Hint) (Stats, error) {
	start := time.Now()

	ctxLLM, err := s.LLMCtx(lib)
	if err != nil {
		return Stats{}, ragerr.New(ragerr.InvalidConfiguration, "Process", err)
	}
	ctxEmb, err := s.EmbedCtx(lib)
	if err != nil {
		return Stats{}, ragerr.New(ragerr.InvalidConfiguration, "Process", err)
	}

	s.setState(ctx, doc.ID, model.DocumentStateSplitting)

	class := s.Router.Classify(ctx, doc.RawText, hint)
	rawChapters := s.Splitter.SplitChapters(ctx, doc.RawText, class, lib.EmbeddingModel)
	if len(rawChapters) == 0 {
		s.setState(ctx, doc.ID, model.DocumentStateFailed)
		return Stats{}, ragerr.New(ragerr.InvalidInput, "Process", fmt.Errorf("document produced no chapters"))
	}

	s.setState(ctx, doc.ID, model.DocumentStateChunking)

	chapters := make([]model.Chapter, len(rawChapters))
	for i, rc := range rawChapters {
		chapters[i] = model.Chapter{
			DocumentID:      doc.ID,
			Title:           rc.Title,
			Body:            rc.Body,
			OrderInDocument: rc.OrderInDocument,
			TokenStart:      rc.TokenStart,
			TokenEnd:        rc.TokenEnd,
			TokenCount:      rc.TokenCount,
		}
	}
	chapterIDs, err := s.Chapters.InsertBatch(ctx, chapters)
	if err != nil {
		s.setState(ctx, doc.ID, model.DocumentStateFailed)
		return Stats{}, ragerr.New(ragerr.PersistenceError, "Process", err)
	}
	for i := range chapters {
		chapters[i].ID = chapterIDs[i]
	}

	chunks := s.buildChunks(ctx, ctxLLM, lib, doc, chapters)
	if len(chunks) == 0 {
		s.setState(ctx, doc.ID, model.DocumentStateReady)
		return Stats{Chapters: len(chapters), Duration: time.Since(start)}, nil
	}

	chunkIDs, err := s.Chunks.InsertBatch(ctx, chunks)
	if err != nil {
		s.setState(ctx, doc.ID, model.DocumentStateFailed)
		return Stats{}, ragerr.New(ragerr.PersistenceError, "Process", err)
	}
	for i := range chunks {
		chunks[i].ID = chunkIDs[i]
	}

	s.setState(ctx, doc.ID, model.DocumentStateEmbedding)
	processed, failed := s.embedAndUpdate(ctx, ctxEmb, chunks, genFlag)

	switch {
	case processed == 0 && failed > 0:
		s.setState(ctx, doc.ID, model.DocumentStateFailed)
	case failed > 0:
		s.setState(ctx, doc.ID, model.DocumentStatePartial)
	default:
		s.setState(ctx, doc.ID, model.DocumentStateReady)
	}

	return Stats{
		Chapters:  len(chapters),
		Chunks:    len(chunks),
		Processed: processed,
		Failed:    failed,
		Duration:  time.Since(start),
	}, nil
}

// setState records a document's lifecycle transition (spec.md §4.10). A
// nil Documents repository, or an UpdateState failure, only logs — the
// ingestion result itself never depends on the state write succeeding.
func (s *Service) setState(ctx context.Context, id uuid.UUID, state model.DocumentState) {
	if s.Documents == nil {
		return
	}
	if err := s.Documents.UpdateState(ctx, id, state); err != nil {
		s.logger().Warn("ingest: document state update failed", "document_id", id, "state", state, "error", err)
	}
}

// buildChunks implements the §4.7 per-chapter chunking rule: chapters at or
// under the Phase B special-rule threshold become a single CHAPTER chunk;
// larger chapters get an optional leading SUMMARY chunk (order 0) followed by
// EXCERPT chunks (order ≥ 1). A chapter whose summary generation fails is
// still chunked via EXCERPTs — only the summary chunk for that chapter is
// dropped (spec.md §4.7 fault isolation is per batch/chunk, not per
// chapter-level enrichment).
func (s *Service) buildChunks(ctx context.Context, ctxLLM *llmctx.Context, lib model.Library, doc model.Document, chapters []model.Chapter) []model.Chunk {
	var chunks []model.Chunk
	for _, chapter := range chapters {
		tokens := chapter.Tokens()
		chapterID := chapter.ID

		if tokens <= splitter.SpecialRuleMaxTokens {
			chunks = append(chunks, model.Chunk{
				LibraryID:  lib.ID,
				DocumentID: doc.ID,
				ChapterID:  &chapterID,
				Kind:       model.ChunkKindChapter,
				Text:       chapter.Body,
				Metadata:   map[string]any{},
			})
			continue
		}

		order := 1
		if tokens > s.summaryThreshold() {
			summary, err := ctxLLM.Summarize(ctx, chapter.Body, s.summaryMaxTokens())
			if err != nil {
				s.logger().Warn("ingest: chapter summary generation failed, skipping summary chunk",
					"chapter_id", chapter.ID, "error", err)
			} else {
				zero := 0
				chunks = append(chunks, model.Chunk{
					LibraryID:      lib.ID,
					DocumentID:     doc.ID,
					ChapterID:      &chapterID,
					Kind:           model.ChunkKindSummary,
					Text:           summary,
					OrderInChapter: &zero,
					Metadata:       map[string]any{},
				})
			}
		}

		for _, excerpt := range s.Splitter.SplitChunks(ctx, chapter.Body, tokens, lib.EmbeddingModel) {
			o := order
			chunks = append(chunks, model.Chunk{
				LibraryID:      lib.ID,
				DocumentID:     doc.ID,
				ChapterID:      &chapterID,
				Kind:           model.ChunkKindExcerpt,
				Text:           excerpt.Text,
				OrderInChapter: &o,
				Metadata:       map[string]any{},
			})
			order++
		}
	}
	return chunks
}

// embedAndUpdate implements the §4.7 batch loop: a batch failure (text
// preparation or the batch embed call itself) aborts only that batch; a
// per-chunk UpdateVector failure aborts only that chunk.
func (s *Service) embedAndUpdate(ctx context.Context, ctxEmb *embedctx.Context, chunks []model.Chunk, genFlag GenFlag) (processed, failed int) {
	size := s.batchSize()
	for start := 0; start < len(chunks); start += size {
		end := start + size
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		preps := make([]embedctx.TextPreparation, len(batch))
		prepOK := true
		for i := range batch {
			prepared, prep, err := ctxEmb.PrepareText(ctx, embedText(batch[i], genFlag))
			if err != nil {
				s.logger().Warn("ingest: text preparation failed, skipping batch",
					"chunk_id", batch[i].ID, "error", err)
				prepOK = false
				break
			}
			texts[i] = prepared
			preps[i] = prep
			applyPreparationMetadata(&batch[i], prep)
		}
		if !prepOK {
			failed += len(batch)
			continue
		}

		vecs, err := ctxEmb.EmbedBatch(ctx, texts, dispatch.OpDocument, nil)
		if err != nil {
			s.logger().Warn("ingest: batch embedding failed, skipping batch", "batch_size", len(batch), "error", err)
			failed += len(batch)
			continue
		}

		for i := range batch {
			if err := s.Chunks.UpdateVector(ctx, batch[i].ID, vecs[i]); err != nil {
				s.logger().Warn("ingest: per-chunk vector update failed", "chunk_id", batch[i].ID, "error", err)
				failed++
				continue
			}
			processed++

			if preps[i].SummaryGenerated || preps[i].TextTruncated {
				if err := s.Chunks.UpdateMetadata(ctx, batch[i].ID, batch[i].Metadata); err != nil {
					s.logger().Warn("ingest: oversized-text metadata update failed",
						"chunk_id", batch[i].ID, "error", err)
				}
			}
		}
	}
	return processed, failed
}

func applyPreparationMetadata(c *model.Chunk, prep embedctx.TextPreparation) {
	if !prep.SummaryGenerated && !prep.TextTruncated {
		return
	}
	if c.Metadata == nil {
		c.Metadata = map[string]any{}
	}
	if prep.SummaryGenerated {
		c.Metadata["resumo_gerado"] = true
		c.Metadata["tokens_originais"] = prep.OriginalTokens
	}
	if prep.TextTruncated {
		c.Metadata["texto_truncado"] = true
	}
}

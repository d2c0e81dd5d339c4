// Package ragcore is the explicit startup wiring for the whole module: it
// turns a ragconfig.Config into a running Runtime, constructing the
// dispatcher, the Postgres pool and repositories, the search engine, the
// ingestion service and its background worker pool. Grounded on the
// teacher's cli package (cli/config.go, cli/rag.go build exactly this kind
// of "read config, construct every component, hand back one object" wiring
// function ahead of a CLI entry point) — generalized here from a one-shot
// CLI bootstrap into a reusable constructor any caller (CLI, HTTP server,
// test) can invoke.
package ragcore

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/stratarag/stratarag/dispatch"
	"github.com/stratarag/stratarag/document"
	"github.com/stratarag/stratarag/embedctx"
	"github.com/stratarag/stratarag/ingest"
	"github.com/stratarag/stratarag/library"
	"github.com/stratarag/stratarag/library/pgregistry"
	"github.com/stratarag/stratarag/llmctx"
	"github.com/stratarag/stratarag/model"
	"github.com/stratarag/stratarag/provider"
	"github.com/stratarag/stratarag/provider/bedrock"
	"github.com/stratarag/stratarag/provider/openaicompat"
	"github.com/stratarag/stratarag/ragconfig"
	"github.com/stratarag/stratarag/ragerr"
	"github.com/stratarag/stratarag/router"
	"github.com/stratarag/stratarag/search"
	"github.com/stratarag/stratarag/splitter"
	"github.com/stratarag/stratarag/store/pgstore"
	"github.com/stratarag/stratarag/tokencount"
	"github.com/stratarag/stratarag/workerpool"
)

// defaultContextLength is used for any embedding model absent from
// modelContextLengths.
const defaultContextLength = 8192

// modelContextLengths is the per-model context-length table
// ingest.EmbedContextFactory consults, since model.Library alone does not
// carry the figure (it is a property of the model, not the library).
var modelContextLengths = map[string]int{
	"text-embedding-3-small": 8191,
	"text-embedding-3-large": 8191,
	"text-embedding-ada-002": 8191,
	"amazon.titan-embed-text-v2:0": 8192,
	"nomic-embed-text":            8192,
}

// Runtime bundles every wired component a caller needs.
type Runtime struct {
	Dispatcher *dispatch.Dispatcher
	Router     *router.Router
	Splitter   *splitter.Splitter
	DB         *pgstore.DB
	Libraries  *library.Service
	Documents  *document.Service
	Ingest     *ingest.Service
	Search     *search.Engine
	Pool       *workerpool.Pool
	Logger     *slog.Logger
}

// Close releases the worker pool and database pool.
func (r *Runtime) Close() {
	r.Pool.Close()
	r.DB.Close()
}

// Wire builds a Runtime from cfg. The caller owns ctx's lifetime only for
// the duration of the initial database connection.
func Wire(ctx context.Context, cfg *ragconfig.Config, logger *slog.Logger) (*Runtime, error) {
	if logger == nil {
		logger = slog.Default()
	}

	providers, err := buildProviders(cfg.Providers, logger)
	if err != nil {
		return nil, ragerr.New(ragerr.InvalidConfiguration, "ragcore.Wire", err)
	}

	retry := dispatch.RetryPolicy{
		MaxRetries: cfg.MaxRetries,
		BaseDelay:  dispatch.DefaultRetryPolicy().BaseDelay,
		MaxDelay:   dispatch.DefaultRetryPolicy().MaxDelay,
		Timeout:    cfg.TimeoutPerAttempt,
	}
	d := dispatch.New(providers, dispatch.Strategy(cfg.Strategy), retry, logger)

	counter := tokencount.New(nil, logger)
	sp := splitter.New(splitter.Config{
		IdealChunkTokens: cfg.Splitter.ChunkIdealTokens,
		MinChunkTokens:   cfg.Splitter.ChunkMinTokens,
		MaxChunkTokens:   defaultContextLength,
	}, counter, nil)
	rt := router.New(nil, logger)

	db, err := pgstore.New(ctx, cfg.Database.DSN())
	if err != nil {
		return nil, ragerr.New(ragerr.InvalidConfiguration, "ragcore.Wire", err)
	}

	libraries := library.New(pgregistry.New(db))

	chunks := pgstore.NewChunkRepository(db)
	chapters := pgstore.NewChapterRepository(db)
	documents := pgstore.NewDocumentRepository(db)
	documentSvc := document.New(documents)

	// SearchHybrid/SearchSemantic embed the raw query text once per call,
	// ahead of knowing which library(ies) the caller wants results from, so
	// the query embedder binds to the first configured provider's embedding
	// model rather than a per-library one. Libraries whose own
	// EmbeddingModel differs from this default still get correct lexical
	// results; their semantic pass compares against a foreign embedding
	// space, which is a known limitation of a single shared query embedder.
	var queryEmbedModel string
	var queryEmbedDim int
	if len(cfg.Providers) > 0 {
		queryEmbedModel = cfg.Providers[0].EmbeddingModel
		queryEmbedDim = cfg.Providers[0].EmbeddingDimension
	}

	searchEngine := &search.Engine{
		Vectors: chunks,
		Text:    chunks,
		Embed:   embedctx.New(d, queryEmbedModel, queryEmbedDim, defaultContextLength, counter),
		Logger:  logger,
	}

	ingestSvc := &ingest.Service{
		Router:                 rt,
		Splitter:               sp,
		Chapters:               chapters,
		Chunks:                 chunks,
		Documents:              documents,
		EmbedCtx:               embedContextFactory(d, counter),
		LLMCtx:                 llmContextFactory(d, logger),
		Logger:                 logger,
		BatchSize:              cfg.BatchSize,
		SummaryThresholdTokens: cfg.Splitter.SummaryThresholdTokens,
		SummaryMaxTokens:       cfg.Splitter.SummaryMaxTokens,
	}

	pool := workerpool.New(workerpool.WithLogger(logger))

	return &Runtime{
		Dispatcher: d,
		Router:     rt,
		Splitter:   sp,
		DB:         db,
		Libraries:  libraries,
		Documents:  documentSvc,
		Ingest:     ingestSvc,
		Search:     searchEngine,
		Pool:       pool,
		Logger:     logger,
	}, nil
}

func buildProviders(configs []ragconfig.ProviderConfig, logger *slog.Logger) ([]provider.Provider, error) {
	providers := make([]provider.Provider, 0, len(configs))
	for _, c := range configs {
		switch c.Kind {
		case "openai_compat":
			providers = append(providers, openaicompat.New(c.Name, c.URL, c.Key, openaicompat.WithLogger(logger)))
		case "bedrock":
			providers = append(providers, bedrock.New(c.Name, c.URL, c.Models, bedrock.WithLogger(logger)))
		default:
			return nil, fmt.Errorf("ragcore: unknown provider kind %q for provider %q", c.Kind, c.Name)
		}
	}
	if len(providers) == 0 {
		return nil, fmt.Errorf("ragcore: at least one provider must be configured")
	}
	return providers, nil
}

func embedContextFactory(d *dispatch.Dispatcher, counter *tokencount.Counter) ingest.EmbedContextFactory {
	return func(lib model.Library) (*embedctx.Context, error) {
		contextLength, ok := modelContextLengths[lib.EmbeddingModel]
		if !ok {
			contextLength = defaultContextLength
		}
		return embedctx.New(d, lib.EmbeddingModel, lib.EmbeddingDimension, contextLength, counter), nil
	}
}

func llmContextFactory(d *dispatch.Dispatcher, logger *slog.Logger) ingest.LLMContextFactory {
	return func(lib model.Library) (*llmctx.Context, error) {
		return llmctx.New(d, lib.CompletionModel, logger), nil
	}
}

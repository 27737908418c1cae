// Package orchestrator implements the Incremental Pipeline Orchestrator:
// discover raw inputs since a watermark, parse and dedup-check them across
// a bounded worker pool, persist survivors, then batch-embed and index the
// backlog, per spec.md §4.6.
package orchestrator

import (
	"context"
	"crypto/sha256"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"briefly/internal/chunker"
	"briefly/internal/core"
	"briefly/internal/dedup"
	"briefly/internal/embedder"
	"briefly/internal/extractor"
	"briefly/internal/indexer"
	"briefly/internal/logger"
	"briefly/internal/model"
	"briefly/internal/parser"
	"briefly/internal/persistence"
	"briefly/internal/source"
)

// Options configures one Run.
type Options struct {
	MaxWorkers       int
	BatchSize        int
	MaxPerInvocation int
	IndexName        string
	EmbeddingModel   string
	DedupPolicy      model.NearDuplicatePolicy
	DedupWindow      int // how many recent articles to compare new candidates against
}

func (o Options) withDefaults() Options {
	if o.MaxWorkers <= 0 {
		o.MaxWorkers = 4
	}
	if o.BatchSize <= 0 {
		o.BatchSize = 50
	}
	if o.MaxPerInvocation <= 0 {
		o.MaxPerInvocation = 1000
	}
	if o.IndexName == "" {
		o.IndexName = "articles-v1"
	}
	if o.DedupPolicy == "" {
		o.DedupPolicy = model.PolicyAnnotate
	}
	if o.DedupWindow <= 0 {
		o.DedupWindow = 500
	}
	return o
}

// Result summarizes one Run's outcome.
type Result struct {
	FilesDiscovered  int
	FilesSkipped     int // byte-identical to another file seen in this run
	ArticlesPersisted int
	ArticlesDuplicate int
	ArticlesFailed    int
	ArticlesEmbedded  int
	VectorsUpserted   int
	Watermark         time.Time
}

// Orchestrator ties the Source, Parser, Deduplicator, Embedder, and Vector
// Indexer together behind one incremental ingest run. It holds a Chunker,
// but Run does not call it: each article's IndexingText is embedded whole.
type Orchestrator struct {
	Source   source.Source
	Detector *dedup.DuplicateDetector
	Hasher   *dedup.ContentHasher
	Chunker  *chunker.Chunker
	Embedder embedder.Embedder
	Indexer  *indexer.Indexer
	Articles persistence.ArticleRepository
	Log      persistence.ProcessingLogRepository
	Opts     Options
}

// New builds an Orchestrator from its collaborators.
func New(src source.Source, detector *dedup.DuplicateDetector, hasher *dedup.ContentHasher, chunk *chunker.Chunker, emb embedder.Embedder, ix *indexer.Indexer, articles persistence.ArticleRepository, log persistence.ProcessingLogRepository, opts Options) *Orchestrator {
	return &Orchestrator{
		Source:   src,
		Detector: detector,
		Hasher:   hasher,
		Chunker:  chunk,
		Embedder: emb,
		Indexer:  ix,
		Articles: articles,
		Log:      log,
		Opts:     opts.withDefaults(),
	}
}

// Run discovers inputs newer than watermark, ingests them, embeds the
// unembedded backlog, and returns the new watermark to persist for the
// next invocation.
func (o *Orchestrator) Run(ctx context.Context, watermark time.Time) (*Result, error) {
	result := &Result{}

	inputs, err := o.Source.Discover(ctx, watermark)
	if err != nil {
		return nil, fmt.Errorf("discover inputs: %w", err)
	}
	result.FilesDiscovered = len(inputs)
	if len(inputs) > o.Opts.MaxPerInvocation {
		inputs = inputs[:o.Opts.MaxPerInvocation]
	}

	window, err := o.loadDedupWindow(ctx)
	if err != nil {
		return nil, fmt.Errorf("load dedup window: %w", err)
	}

	var mu sync.Mutex
	seenFileHashes := make(map[string]bool)

	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(o.Opts.MaxWorkers)

	for _, input := range inputs {
		input := input
		group.Go(func() error {
			correlationID := uuid.NewString()
			outcome, workErr := o.processOne(gctx, input, &mu, seenFileHashes, window, correlationID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case workErr != nil:
				result.ArticlesFailed++
				logger.Warn("ingest worker failed", "input", input.ID, "correlation_id", correlationID, "error", workErr)
			case outcome == outcomeSkippedFile:
				result.FilesSkipped++
			case outcome == outcomeDuplicate:
				result.ArticlesDuplicate++
			case outcome == outcomePersisted:
				result.ArticlesPersisted++
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, fmt.Errorf("ingest worker pool: %w", err)
	}

	embedded, upserted, err := o.embedBacklog(ctx)
	if err != nil {
		return nil, fmt.Errorf("embed backlog: %w", err)
	}
	result.ArticlesEmbedded = embedded
	result.VectorsUpserted = upserted

	newWatermark, err := o.Articles.MaxWatermark(ctx)
	if err != nil {
		return nil, fmt.Errorf("advance watermark: %w", err)
	}
	result.Watermark = newWatermark

	return result, nil
}

type workerOutcome int

const (
	outcomePersisted workerOutcome = iota
	outcomeDuplicate
	outcomeSkippedFile
)

// processOne parses, dedup-checks, and persists a single discovered input,
// logging every phase under a shared correlation ID.
func (o *Orchestrator) processOne(ctx context.Context, input source.RawInput, mu *sync.Mutex, seenFileHashes map[string]bool, window *dedupWindow, correlationID string) (workerOutcome, error) {
	start := time.Now()
	data, err := input.Load(ctx)
	if err != nil {
		o.appendLog(ctx, "", core.PhaseParse, "error", err.Error(), time.Since(start), correlationID)
		return 0, fmt.Errorf("load %s: %w", input.ID, err)
	}

	fileHash := fmt.Sprintf("%x", sha256.Sum256(data))
	mu.Lock()
	if seenFileHashes[fileHash] {
		mu.Unlock()
		o.appendLog(ctx, "", core.PhaseParse, "skipped", "byte-identical file already seen this run", time.Since(start), correlationID)
		return outcomeSkippedFile, nil
	}
	seenFileHashes[fileHash] = true
	mu.Unlock()

	article, err := parser.Parse(data)
	if err != nil {
		o.appendLog(ctx, "", core.PhaseParse, "error", err.Error(), time.Since(start), correlationID)
		return 0, fmt.Errorf("parse %s: %w", input.ID, err)
	}
	o.appendLog(ctx, article.InternalID, core.PhaseParse, "ok", "", time.Since(start), correlationID)

	record := extractor.Extract(article)
	article.ArticleType = record.ArticleType
	article.ImportanceScore = record.ImportanceScore
	article.IndexingText = record.IndexingText
	article.MetadataHash = record.MetadataHash
	article.ContentHash = o.Hasher.Hash(article.Title, article.Body, article.Summary)
	mergeEntityKeywords(article, record)

	dedupStart := time.Now()
	decision := o.Detector.Detect(article, window, window.snapshot())
	o.appendLog(ctx, article.InternalID, core.PhaseDedup, "ok", decision.Verdict.String(), time.Since(dedupStart), correlationID)

	switch decision.Verdict {
	case model.ExactDuplicate:
		return outcomeDuplicate, nil
	case model.NearDuplicate:
		if o.Opts.DedupPolicy == model.PolicyReject {
			return outcomeDuplicate, nil
		}
		article.SimilarTo = decision.ExistingID
	case model.TitleDuplicate:
		article.SimilarTo = decision.ExistingID
	}

	article.IngestedAt = time.Now().UTC()
	if err := o.Articles.Create(ctx, article); err != nil {
		o.appendLog(ctx, article.InternalID, core.PhaseDedup, "error", err.Error(), time.Since(start), correlationID)
		return 0, fmt.Errorf("persist %s: %w", article.ExternalID, err)
	}
	window.add(article, o.Hasher)

	return outcomePersisted, nil
}

func mergeEntityKeywords(article *core.Article, record extractor.MetadataRecord) {
	add := func(values []string, kind core.KeywordType) {
		for _, v := range values {
			article.Keywords = append(article.Keywords, core.Keyword{Text: v, Type: kind})
		}
	}
	add(record.Entities.Persons, core.KeywordPerson)
	add(record.Entities.Companies, core.KeywordCompany)
	add(record.Entities.Locations, core.KeywordLocation)
	add(record.Entities.Dates, core.KeywordDate)
	add(record.Entities.Numbers, core.KeywordNumber)
}

func (o *Orchestrator) appendLog(ctx context.Context, articleID string, phase core.ProcessingPhase, status, message string, elapsed time.Duration, correlationID string) {
	entry := &core.ProcessingLogEntry{
		ArticleID:     articleID,
		Phase:         phase,
		Status:        status,
		Message:       message,
		DurationMs:    elapsed.Milliseconds(),
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
	}
	if err := o.Log.Append(ctx, entry); err != nil {
		logger.Warn("failed to append processing log entry", "phase", phase, "article_id", articleID, "error", err)
	}
}

// embedBacklog embeds and indexes up to MaxPerInvocation persisted-but-
// unembedded articles, in batches of BatchSize, respecting the embedder's
// own BatchCap.
func (o *Orchestrator) embedBacklog(ctx context.Context) (embedded, upserted int, err error) {
	remaining := o.Opts.MaxPerInvocation
	for remaining > 0 {
		limit := o.Opts.BatchSize
		if limit > remaining {
			limit = remaining
		}
		articles, err := o.Articles.Unembedded(ctx, limit)
		if err != nil {
			return embedded, upserted, fmt.Errorf("list unembedded articles: %w", err)
		}
		if len(articles) == 0 {
			break
		}

		batchCap := o.Embedder.BatchCap()
		if batchCap <= 0 {
			batchCap = len(articles)
		}
		var batch []indexer.Vector
		for start := 0; start < len(articles); start += batchCap {
			end := start + batchCap
			if end > len(articles) {
				end = len(articles)
			}
			group := articles[start:end]
			texts := make([]string, len(group))
			for i, a := range group {
				texts[i] = a.IndexingText
			}
			vectors, err := o.Embedder.BatchEmbed(ctx, texts)
			if err != nil {
				for _, a := range group {
					if markErr := o.Articles.MarkProcessingError(ctx, a.InternalID, fmt.Sprintf("embed failed: %v", err)); markErr != nil {
						logger.Warn("failed to mark embed error", "article_id", a.InternalID, "error", markErr)
					}
				}
				continue
			}
			for i, v := range vectors {
				batch = append(batch, indexer.Vector{ArticleID: group[i].InternalID, ChunkIndex: 0, Embedding: v})
			}
			embedded += len(group)
		}

		if len(batch) > 0 {
			if err := o.Indexer.Upsert(ctx, o.Opts.IndexName, batch, o.Opts.EmbeddingModel); err != nil {
				return embedded, upserted, fmt.Errorf("upsert vectors: %w", err)
			}
			upserted += len(batch)
		}

		remaining -= len(articles)
		if len(articles) < limit {
			break
		}
	}
	return embedded, upserted, nil
}

// loadDedupWindow seeds the in-memory dedup lookup from the most recently
// ingested articles. The content-hash exact-match path also consults the
// store directly (see dedupWindow.FindByHash), so an exact duplicate is
// always caught regardless of window size; only near-duplicate similarity
// scoring and title-duplicate detection are bounded to this window, since
// comparing every candidate against the full corpus does not scale.
func (o *Orchestrator) loadDedupWindow(ctx context.Context) (*dedupWindow, error) {
	recent, err := o.Articles.List(ctx, persistence.ListOptions{Limit: o.Opts.DedupWindow, SortBy: "ingested_at", Order: "desc"})
	if err != nil {
		return nil, err
	}
	w := newDedupWindow(o.Articles)
	for i := range recent {
		w.add(&recent[i], o.Hasher)
	}
	return w, nil
}

// Package core defines the domain types shared across the ingestion and
// retrieval pipeline: articles, their classification metadata, embedding
// records, the active vector index state, and the append-only processing log.
package core

import "time"

// KeywordType distinguishes the typed keyword buckets extracted from an
// article's text.
type KeywordType string

const (
	KeywordGeneral  KeywordType = "general"
	KeywordPerson   KeywordType = "person"
	KeywordCompany  KeywordType = "company"
	KeywordLocation KeywordType = "location"
	KeywordDate     KeywordType = "date"
	KeywordNumber   KeywordType = "number"
)

// ArticleType is the keyword-cue classification bucket assigned by the
// extractor.
type ArticleType string

const (
	ArticleTypeFinancial  ArticleType = "financial"
	ArticleTypeMNA        ArticleType = "mna"
	ArticleTypePeople     ArticleType = "people"
	ArticleTypePolicy     ArticleType = "policy"
	ArticleTypeTechnology ArticleType = "technology"
	ArticleTypeGeneral    ArticleType = "general"
)

// Category is one node of the large/middle/small classification hierarchy
// attached to an article.
type Category struct {
	LargeCodeNm  string `json:"large_code_nm"`  // top-level category name
	MiddleCodeNm string `json:"middle_code_nm"` // mid-level category name, may be empty
	SmallCodeNm  string `json:"small_code_nm"`  // leaf category name, may be empty
}

// Keyword is one typed keyword/entity extracted from an article's text.
type Keyword struct {
	Text string      `json:"text"` // the keyword surface form
	Type KeywordType `json:"type"` // which bucket it belongs to
}

// Article is the canonical news record produced by the Parser & Extractor
// and persisted by the Record Store Adapter.
type Article struct {
	// Identity
	InternalID string `json:"internal_id"` // locally minted, stable (uuid)
	ExternalID string `json:"external_id"` // globally unique, assigned by source

	// Content (HTML-stripped plain text)
	Title    string `json:"title"`
	Subtitle string `json:"subtitle"`
	Body     string `json:"body"`
	Summary  string `json:"summary"`

	// Provenance
	Writers        []string  `json:"writers"`
	PublishTime    time.Time `json:"publish_time"`
	RegisteredTime time.Time `json:"registered_time"`
	ModifiedTime   time.Time `json:"modified_time"`
	SourceURL      string    `json:"source_url"`
	MediaCode      string    `json:"media_code"`
	Edition        string    `json:"edition"`
	Section        string    `json:"section"`
	Page           *int      `json:"page,omitempty"` // lenient parse, nil on unparseable

	// Classification
	Categories []Category `json:"categories"`
	Keywords   []Keyword  `json:"keywords"`
	StockCodes []string   `json:"stock_codes"`

	// Derived
	ContentHash     string      `json:"content_hash"`     // normalized content fingerprint
	IndexingText    string      `json:"indexing_text"`    // weighted concatenation fed to the embedder
	ImportanceScore float64     `json:"importance_score"` // truncated to two decimals
	ArticleType     ArticleType `json:"article_type"`
	MetadataHash    string      `json:"metadata_hash"` // fingerprint of (external_id, title, categories, keywords)

	// Processing state (monotonic transitions only, see invariants I2/I4)
	IngestedAt         time.Time `json:"ingested_at"`
	IsEmbedded         bool      `json:"is_embedded"`
	EmbeddingModel     string    `json:"embedding_model"`
	EmbeddedAt         time.Time `json:"embedded_at"`
	ProcessingError    string    `json:"processing_error,omitempty"`
	EmbeddingVectorRef string    `json:"embedding_vector_ref,omitempty"`
	SimilarTo          string    `json:"similar_to,omitempty"` // set when annotated as a near-duplicate
}

// BodyLength returns the rune length of the article body, used by the
// retrieval engine's tie-breaker and by metadata filters.
func (a *Article) BodyLength() int {
	return len([]rune(a.Body))
}

// EmbeddingRecord is the dense vector for one chunk of an article (or the
// whole article, when it fits in a single chunk).
type EmbeddingRecord struct {
	ArticleID  string    `json:"article_id"`
	ChunkIndex int       `json:"chunk_index"` // 0 when unchunked
	Vector     []float32 `json:"vector"`
	TextHash   string    `json:"text_hash"`
	CreatedAt  time.Time `json:"created_at"`
	ModelID    string    `json:"model_id"`
}

// IndexState describes the deployed ANN index. Exactly one IndexState is
// active at a time (process-wide, mutated only by administrative actions).
type IndexState struct {
	Name            string    `json:"name"`
	ProviderIndexID string    `json:"provider_index_id"`
	EndpointID      string    `json:"endpoint_id,omitempty"`
	DeployedID      string    `json:"deployed_id,omitempty"`
	Dimensions      int       `json:"dimensions"` // default 768
	Distance        string    `json:"distance"`   // "dot" (default) or "cosine"/"l2"
	TotalVectors    int64     `json:"total_vectors"`
	LastUpdated     time.Time `json:"last_updated"`
	Active          bool      `json:"active"`
}

// ProcessingPhase names one stage of the ingest or query pipeline, recorded
// on every ProcessingLogEntry.
type ProcessingPhase string

const (
	PhaseParse       ProcessingPhase = "parse"
	PhaseDedup       ProcessingPhase = "dedup"
	PhaseEmbed       ProcessingPhase = "embed"
	PhaseIndexUpsert ProcessingPhase = "index_upsert"
	PhaseQuery       ProcessingPhase = "query"
	PhaseAnalysis    ProcessingPhase = "analysis"
)

// ProcessingLogEntry is an append-only audit row, one per pipeline step.
type ProcessingLogEntry struct {
	ID            int64           `json:"id"`
	ArticleID     string          `json:"article_id,omitempty"`
	Phase         ProcessingPhase `json:"phase"`
	Status        string          `json:"status"` // "ok" | "error" | "skipped"
	Message       string          `json:"message"`
	DurationMs    int64           `json:"duration_ms"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id"` // joins one worker/query lifetime across phases
}

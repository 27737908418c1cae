// Package persistence provides database implementations.
package persistence

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"briefly/internal/core"

	"github.com/lib/pq"
)

// PostgresDB implements Database for PostgreSQL.
type PostgresDB struct {
	db            *sql.DB
	articles      ArticleRepository
	embeddings    EmbeddingRepository
	indexStates   IndexStateRepository
	processingLog ProcessingLogRepository
}

// NewPostgresDB opens a connection pool and verifies it with a ping.
func NewPostgresDB(connectionString string) (*PostgresDB, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	pgDB := &PostgresDB{db: db}
	pgDB.articles = &postgresArticleRepo{db: db}
	pgDB.embeddings = &postgresEmbeddingRepo{db: db}
	pgDB.indexStates = &postgresIndexStateRepo{db: db}
	pgDB.processingLog = &postgresProcessingLogRepo{db: db}

	return pgDB, nil
}

func (p *PostgresDB) Articles() ArticleRepository           { return p.articles }
func (p *PostgresDB) Embeddings() EmbeddingRepository        { return p.embeddings }
func (p *PostgresDB) IndexStates() IndexStateRepository      { return p.indexStates }
func (p *PostgresDB) ProcessingLog() ProcessingLogRepository { return p.processingLog }

// DB exposes the underlying connection pool for collaborators that need to
// drive it directly, such as the pgvector ANNProvider.
func (p *PostgresDB) DB() *sql.DB { return p.db }

func (p *PostgresDB) Close() error { return p.db.Close() }

func (p *PostgresDB) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

func (p *PostgresDB) BeginTx(ctx context.Context) (Transaction, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &postgresTx{
		tx:            tx,
		articles:      &postgresArticleRepo{db: p.db, tx: tx},
		embeddings:    &postgresEmbeddingRepo{db: p.db, tx: tx},
		indexStates:   &postgresIndexStateRepo{db: p.db, tx: tx},
		processingLog: &postgresProcessingLogRepo{db: p.db, tx: tx},
	}, nil
}

// postgresTx implements Transaction.
type postgresTx struct {
	tx            *sql.Tx
	articles      ArticleRepository
	embeddings    EmbeddingRepository
	indexStates   IndexStateRepository
	processingLog ProcessingLogRepository
}

func (t *postgresTx) Commit() error   { return t.tx.Commit() }
func (t *postgresTx) Rollback() error { return t.tx.Rollback() }

func (t *postgresTx) Articles() ArticleRepository           { return t.articles }
func (t *postgresTx) Embeddings() EmbeddingRepository       { return t.embeddings }
func (t *postgresTx) IndexStates() IndexStateRepository     { return t.indexStates }
func (t *postgresTx) ProcessingLog() ProcessingLogRepository { return t.processingLog }

// queryer is satisfied by both *sql.DB and *sql.Tx, letting every repo
// dispatch to whichever is live without duplicating its methods.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// --- articles -------------------------------------------------------------

type postgresArticleRepo struct {
	db *sql.DB
	tx *sql.Tx
}

func (r *postgresArticleRepo) query() queryer {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

const articleColumns = `
	internal_id, external_id, title, subtitle, body, summary,
	writers, publish_time, registered_time, modified_time,
	source_url, media_code, edition, section, page,
	content_hash, indexing_text, importance_score, article_type, metadata_hash,
	ingested_at, is_embedded, embedding_model, embedded_at,
	processing_error, embedding_vector_ref, similar_to
`

func (r *postgresArticleRepo) Create(ctx context.Context, article *core.Article) error {
	tx, owned, err := r.txOrBegin(ctx)
	if err != nil {
		return err
	}
	if owned {
		defer tx.Rollback()
	}

	query := fmt.Sprintf(`INSERT INTO articles (%s) VALUES (
		$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$26,$27
	)`, articleColumns)
	if _, err := tx.ExecContext(ctx, query,
		article.InternalID, article.ExternalID, article.Title, article.Subtitle, article.Body, article.Summary,
		pq.Array(article.Writers), article.PublishTime, article.RegisteredTime, article.ModifiedTime,
		article.SourceURL, article.MediaCode, article.Edition, article.Section, article.Page,
		article.ContentHash, article.IndexingText, article.ImportanceScore, string(article.ArticleType), article.MetadataHash,
		article.IngestedAt, article.IsEmbedded, article.EmbeddingModel, nullTime(article.EmbeddedAt),
		nullString(article.ProcessingError), nullString(article.EmbeddingVectorRef), nullString(article.SimilarTo),
	); err != nil {
		return fmt.Errorf("insert article: %w", err)
	}

	if err := insertCategories(ctx, tx, article.InternalID, article.Categories); err != nil {
		return err
	}
	if err := insertKeywords(ctx, tx, article.InternalID, article.Keywords); err != nil {
		return err
	}
	if err := insertStockCodes(ctx, tx, article.InternalID, article.StockCodes); err != nil {
		return err
	}

	if owned {
		return tx.Commit()
	}
	return nil
}

// txOrBegin returns the repo's existing transaction if it is already
// running inside one, otherwise opens a fresh one the caller must finish.
func (r *postgresArticleRepo) txOrBegin(ctx context.Context) (*sql.Tx, bool, error) {
	if r.tx != nil {
		return r.tx, false, nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("begin transaction: %w", err)
	}
	return tx, true, nil
}

func insertCategories(ctx context.Context, tx *sql.Tx, articleID string, categories []core.Category) error {
	for _, c := range categories {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO article_categories (article_id, large_code_nm, middle_code_nm, small_code_nm)
			VALUES ($1, $2, $3, $4)
		`, articleID, c.LargeCodeNm, c.MiddleCodeNm, c.SmallCodeNm); err != nil {
			return fmt.Errorf("insert category: %w", err)
		}
	}
	return nil
}

func insertKeywords(ctx context.Context, tx *sql.Tx, articleID string, keywords []core.Keyword) error {
	for _, k := range keywords {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO article_keywords (article_id, text, type) VALUES ($1, $2, $3)
		`, articleID, k.Text, string(k.Type)); err != nil {
			return fmt.Errorf("insert keyword: %w", err)
		}
	}
	return nil
}

func insertStockCodes(ctx context.Context, tx *sql.Tx, articleID string, codes []string) error {
	for _, code := range codes {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO article_stock_codes (article_id, code) VALUES ($1, $2)
		`, articleID, code); err != nil {
			return fmt.Errorf("insert stock code: %w", err)
		}
	}
	return nil
}

func (r *postgresArticleRepo) Get(ctx context.Context, internalID string) (*core.Article, error) {
	row := r.query().QueryRowContext(ctx, fmt.Sprintf(`SELECT %s FROM articles WHERE internal_id = $1`, articleColumns), internalID)
	article, err := scanArticle(row)
	if err != nil {
		return nil, err
	}
	if err := r.loadChildren(ctx, article); err != nil {
		return nil, err
	}
	return article, nil
}

func (r *postgresArticleRepo) GetByExternalID(ctx context.Context, externalID string) (*core.Article, error) {
	row := r.query().QueryRowContext(ctx, fmt.Sprintf(`SELECT %s FROM articles WHERE external_id = $1`, articleColumns), externalID)
	article, err := scanArticle(row)
	if err != nil {
		return nil, err
	}
	if err := r.loadChildren(ctx, article); err != nil {
		return nil, err
	}
	return article, nil
}

func (r *postgresArticleRepo) GetByContentHash(ctx context.Context, contentHash string) (*core.Article, error) {
	row := r.query().QueryRowContext(ctx, fmt.Sprintf(`
		SELECT %s FROM articles WHERE content_hash = $1 ORDER BY ingested_at DESC LIMIT 1
	`, articleColumns), contentHash)
	article, err := scanArticle(row)
	if err != nil {
		return nil, err
	}
	if err := r.loadChildren(ctx, article); err != nil {
		return nil, err
	}
	return article, nil
}

// List pages by opts.Limit (default 100) and opts.Offset, always newest
// ingested_at first; SortBy, Order, and Filter are not applied.
func (r *postgresArticleRepo) List(ctx context.Context, opts ListOptions) ([]core.Article, error) {
	limit := opts.Limit
	if limit == 0 {
		limit = 100
	}
	rows, err := r.query().QueryContext(ctx, fmt.Sprintf(`
		SELECT %s FROM articles ORDER BY ingested_at DESC LIMIT $1 OFFSET $2
	`, articleColumns), limit, opts.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanArticleRows(rows)
}

// BulkLoad hydrates every requested article in a single query, matching
// the store contract's `bulk_load(ids) -> [Article]` (spec.md §6).
func (r *postgresArticleRepo) BulkLoad(ctx context.Context, internalIDs []string) ([]core.Article, error) {
	if len(internalIDs) == 0 {
		return nil, nil
	}
	rows, err := r.query().QueryContext(ctx, fmt.Sprintf(`
		SELECT %s FROM articles WHERE internal_id = ANY($1)
	`, articleColumns), pq.Array(internalIDs))
	if err != nil {
		return nil, fmt.Errorf("bulk load articles: %w", err)
	}
	defer rows.Close()
	return scanArticleRows(rows)
}

func (r *postgresArticleRepo) Update(ctx context.Context, article *core.Article) error {
	_, err := r.query().ExecContext(ctx, `
		UPDATE articles SET
			title = $2, subtitle = $3, body = $4, summary = $5,
			writers = $6, source_url = $7, media_code = $8, edition = $9, section = $10, page = $11,
			content_hash = $12, indexing_text = $13, importance_score = $14, article_type = $15, metadata_hash = $16,
			is_embedded = $17, embedding_model = $18, embedded_at = $19,
			processing_error = $20, embedding_vector_ref = $21, similar_to = $22
		WHERE internal_id = $1
	`, article.InternalID, article.Title, article.Subtitle, article.Body, article.Summary,
		pq.Array(article.Writers), article.SourceURL, article.MediaCode, article.Edition, article.Section, article.Page,
		article.ContentHash, article.IndexingText, article.ImportanceScore, string(article.ArticleType), article.MetadataHash,
		article.IsEmbedded, article.EmbeddingModel, nullTime(article.EmbeddedAt),
		nullString(article.ProcessingError), nullString(article.EmbeddingVectorRef), nullString(article.SimilarTo),
	)
	return err
}

func (r *postgresArticleRepo) Delete(ctx context.Context, internalID string) error {
	_, err := r.query().ExecContext(ctx, `DELETE FROM articles WHERE internal_id = $1`, internalID)
	return err
}

func (r *postgresArticleRepo) Unembedded(ctx context.Context, limit int) ([]core.Article, error) {
	if limit <= 0 {
		limit = 1000
	}
	rows, err := r.query().QueryContext(ctx, fmt.Sprintf(`
		SELECT %s FROM articles
		WHERE is_embedded = false AND processing_error IS NULL
		ORDER BY ingested_at ASC LIMIT $1
	`, articleColumns), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanArticleRows(rows)
}

func (r *postgresArticleRepo) MarkEmbedded(ctx context.Context, internalID, modelID, vectorRef string, embeddedAt time.Time) error {
	_, err := r.query().ExecContext(ctx, `
		UPDATE articles SET is_embedded = true, embedding_model = $2, embedded_at = $3,
			embedding_vector_ref = $4, processing_error = NULL
		WHERE internal_id = $1
	`, internalID, modelID, embeddedAt, vectorRef)
	return err
}

func (r *postgresArticleRepo) MarkProcessingError(ctx context.Context, internalID, message string) error {
	_, err := r.query().ExecContext(ctx, `
		UPDATE articles SET processing_error = $2 WHERE internal_id = $1
	`, internalID, message)
	return err
}

func (r *postgresArticleRepo) MarkNearDuplicate(ctx context.Context, internalID, similarTo string) error {
	_, err := r.query().ExecContext(ctx, `
		UPDATE articles SET similar_to = $2 WHERE internal_id = $1
	`, internalID, similarTo)
	return err
}

func (r *postgresArticleRepo) EmbeddedIDs(ctx context.Context, cursor string, limit int) ([]string, string, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := r.query().QueryContext(ctx, `
		SELECT internal_id FROM articles
		WHERE is_embedded = true AND internal_id::text > $1
		ORDER BY internal_id ASC LIMIT $2
	`, cursor, limit)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, "", err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, "", err
	}
	next := ""
	if len(ids) == limit {
		next = ids[len(ids)-1]
	}
	return ids, next, nil
}

func (r *postgresArticleRepo) MaxWatermark(ctx context.Context) (time.Time, error) {
	var t sql.NullTime
	err := r.query().QueryRowContext(ctx, `
		SELECT GREATEST(MAX(publish_time), MAX(ingested_at)) FROM articles
	`).Scan(&t)
	if err != nil {
		return time.Time{}, err
	}
	if !t.Valid {
		return time.Time{}, nil
	}
	return t.Time, nil
}

func (r *postgresArticleRepo) loadChildren(ctx context.Context, article *core.Article) error {
	catRows, err := r.query().QueryContext(ctx, `
		SELECT large_code_nm, middle_code_nm, small_code_nm FROM article_categories WHERE article_id = $1
	`, article.InternalID)
	if err != nil {
		return fmt.Errorf("load categories: %w", err)
	}
	defer catRows.Close()
	for catRows.Next() {
		var c core.Category
		if err := catRows.Scan(&c.LargeCodeNm, &c.MiddleCodeNm, &c.SmallCodeNm); err != nil {
			return err
		}
		article.Categories = append(article.Categories, c)
	}

	kwRows, err := r.query().QueryContext(ctx, `
		SELECT text, type FROM article_keywords WHERE article_id = $1
	`, article.InternalID)
	if err != nil {
		return fmt.Errorf("load keywords: %w", err)
	}
	defer kwRows.Close()
	for kwRows.Next() {
		var k core.Keyword
		var kwType string
		if err := kwRows.Scan(&k.Text, &kwType); err != nil {
			return err
		}
		k.Type = core.KeywordType(kwType)
		article.Keywords = append(article.Keywords, k)
	}

	codeRows, err := r.query().QueryContext(ctx, `
		SELECT code FROM article_stock_codes WHERE article_id = $1
	`, article.InternalID)
	if err != nil {
		return fmt.Errorf("load stock codes: %w", err)
	}
	defer codeRows.Close()
	for codeRows.Next() {
		var code string
		if err := codeRows.Scan(&code); err != nil {
			return err
		}
		article.StockCodes = append(article.StockCodes, code)
	}
	return nil
}

func scanArticle(row *sql.Row) (*core.Article, error) {
	var a core.Article
	var page sql.NullInt64
	var embeddedAt, processingError, vectorRef, similarTo sql.NullString
	var embeddedAtTime sql.NullTime
	var articleType string

	err := row.Scan(
		&a.InternalID, &a.ExternalID, &a.Title, &a.Subtitle, &a.Body, &a.Summary,
		pq.Array(&a.Writers), &a.PublishTime, &a.RegisteredTime, &a.ModifiedTime,
		&a.SourceURL, &a.MediaCode, &a.Edition, &a.Section, &page,
		&a.ContentHash, &a.IndexingText, &a.ImportanceScore, &articleType, &a.MetadataHash,
		&a.IngestedAt, &a.IsEmbedded, &a.EmbeddingModel, &embeddedAtTime,
		&processingError, &vectorRef, &similarTo,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("article not found")
		}
		return nil, err
	}
	applyScannedArticle(&a, page, embeddedAtTime, processingError, vectorRef, similarTo, articleType)
	_ = embeddedAt
	return &a, nil
}

func scanArticleRows(rows *sql.Rows) ([]core.Article, error) {
	var articles []core.Article
	for rows.Next() {
		var a core.Article
		var page sql.NullInt64
		var processingError, vectorRef, similarTo sql.NullString
		var embeddedAtTime sql.NullTime
		var articleType string

		err := rows.Scan(
			&a.InternalID, &a.ExternalID, &a.Title, &a.Subtitle, &a.Body, &a.Summary,
			pq.Array(&a.Writers), &a.PublishTime, &a.RegisteredTime, &a.ModifiedTime,
			&a.SourceURL, &a.MediaCode, &a.Edition, &a.Section, &page,
			&a.ContentHash, &a.IndexingText, &a.ImportanceScore, &articleType, &a.MetadataHash,
			&a.IngestedAt, &a.IsEmbedded, &a.EmbeddingModel, &embeddedAtTime,
			&processingError, &vectorRef, &similarTo,
		)
		if err != nil {
			return nil, err
		}
		applyScannedArticle(&a, page, embeddedAtTime, processingError, vectorRef, similarTo, articleType)
		articles = append(articles, a)
	}
	return articles, rows.Err()
}

func applyScannedArticle(a *core.Article, page sql.NullInt64, embeddedAt sql.NullTime, processingError, vectorRef, similarTo sql.NullString, articleType string) {
	if page.Valid {
		v := int(page.Int64)
		a.Page = &v
	}
	if embeddedAt.Valid {
		a.EmbeddedAt = embeddedAt.Time
	}
	a.ProcessingError = processingError.String
	a.EmbeddingVectorRef = vectorRef.String
	a.SimilarTo = similarTo.String
	a.ArticleType = core.ArticleType(articleType)
}

func nullTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// --- embeddings -------------------------------------------------------------

type postgresEmbeddingRepo struct {
	db *sql.DB
	tx *sql.Tx
}

func (r *postgresEmbeddingRepo) query() queryer {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

func (r *postgresEmbeddingRepo) Upsert(ctx context.Context, record *core.EmbeddingRecord) error {
	_, err := r.query().ExecContext(ctx, `
		INSERT INTO embeddings (article_id, chunk_index, vector, text_hash, model_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (article_id, chunk_index)
		DO UPDATE SET vector = EXCLUDED.vector, text_hash = EXCLUDED.text_hash,
			model_id = EXCLUDED.model_id, created_at = EXCLUDED.created_at
	`, record.ArticleID, record.ChunkIndex, packFloat32s(record.Vector), record.TextHash, record.ModelID, record.CreatedAt)
	return err
}

func (r *postgresEmbeddingRepo) Get(ctx context.Context, articleID string, chunkIndex int) (*core.EmbeddingRecord, error) {
	var rec core.EmbeddingRecord
	var blob []byte
	err := r.query().QueryRowContext(ctx, `
		SELECT article_id, chunk_index, vector, text_hash, model_id, created_at
		FROM embeddings WHERE article_id = $1 AND chunk_index = $2
	`, articleID, chunkIndex).Scan(&rec.ArticleID, &rec.ChunkIndex, &blob, &rec.TextHash, &rec.ModelID, &rec.CreatedAt)
	if err != nil {
		return nil, err
	}
	rec.Vector = unpackFloat32s(blob)
	return &rec, nil
}

func (r *postgresEmbeddingRepo) ListByArticle(ctx context.Context, articleID string) ([]core.EmbeddingRecord, error) {
	rows, err := r.query().QueryContext(ctx, `
		SELECT article_id, chunk_index, vector, text_hash, model_id, created_at
		FROM embeddings WHERE article_id = $1 ORDER BY chunk_index ASC
	`, articleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []core.EmbeddingRecord
	for rows.Next() {
		var rec core.EmbeddingRecord
		var blob []byte
		if err := rows.Scan(&rec.ArticleID, &rec.ChunkIndex, &blob, &rec.TextHash, &rec.ModelID, &rec.CreatedAt); err != nil {
			return nil, err
		}
		rec.Vector = unpackFloat32s(blob)
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (r *postgresEmbeddingRepo) Delete(ctx context.Context, articleID string, chunkIndex int) error {
	_, err := r.query().ExecContext(ctx, `
		DELETE FROM embeddings WHERE article_id = $1 AND chunk_index = $2
	`, articleID, chunkIndex)
	return err
}

func packFloat32s(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func unpackFloat32s(buf []byte) []float32 {
	v := make([]float32, len(buf)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return v
}

// --- index state -------------------------------------------------------------

type postgresIndexStateRepo struct {
	db *sql.DB
	tx *sql.Tx
}

func (r *postgresIndexStateRepo) query() queryer {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

func (r *postgresIndexStateRepo) Get(ctx context.Context, name string) (*core.IndexState, error) {
	var s core.IndexState
	var endpointID, deployedID sql.NullString
	err := r.query().QueryRowContext(ctx, `
		SELECT name, provider_index_id, endpoint_id, deployed_id, dimensions, distance, total_vectors, last_updated, active
		FROM index_states WHERE name = $1
	`, name).Scan(&s.Name, &s.ProviderIndexID, &endpointID, &deployedID, &s.Dimensions, &s.Distance, &s.TotalVectors, &s.LastUpdated, &s.Active)
	if err != nil {
		return nil, err
	}
	s.EndpointID = endpointID.String
	s.DeployedID = deployedID.String
	return &s, nil
}

func (r *postgresIndexStateRepo) Create(ctx context.Context, state *core.IndexState) error {
	_, err := r.query().ExecContext(ctx, `
		INSERT INTO index_states (name, provider_index_id, dimensions, distance, total_vectors, last_updated, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (name) DO NOTHING
	`, state.Name, state.ProviderIndexID, state.Dimensions, state.Distance, state.TotalVectors, state.LastUpdated, state.Active)
	return err
}

func (r *postgresIndexStateRepo) SetActive(ctx context.Context, name string) error {
	tx, owned := r.tx, false
	if tx == nil {
		var err error
		tx, err = r.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		owned = true
		defer tx.Rollback()
	}
	if _, err := tx.ExecContext(ctx, `UPDATE index_states SET active = false WHERE name != $1`, name); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE index_states SET active = true WHERE name = $1`, name); err != nil {
		return err
	}
	if owned {
		return tx.Commit()
	}
	return nil
}

func (r *postgresIndexStateRepo) UpdateDeployment(ctx context.Context, name, endpointID, deployedID string) error {
	_, err := r.query().ExecContext(ctx, `
		UPDATE index_states SET endpoint_id = $2, deployed_id = $3 WHERE name = $1
	`, name, endpointID, deployedID)
	return err
}

func (r *postgresIndexStateRepo) UpdateStats(ctx context.Context, name string, totalVectors int64, lastUpdated time.Time) error {
	_, err := r.query().ExecContext(ctx, `
		UPDATE index_states SET total_vectors = $2, last_updated = $3 WHERE name = $1
	`, name, totalVectors, lastUpdated)
	return err
}

func (r *postgresIndexStateRepo) Active(ctx context.Context) (*core.IndexState, error) {
	var s core.IndexState
	var endpointID, deployedID sql.NullString
	err := r.query().QueryRowContext(ctx, `
		SELECT name, provider_index_id, endpoint_id, deployed_id, dimensions, distance, total_vectors, last_updated, active
		FROM index_states WHERE active = true LIMIT 1
	`).Scan(&s.Name, &s.ProviderIndexID, &endpointID, &deployedID, &s.Dimensions, &s.Distance, &s.TotalVectors, &s.LastUpdated, &s.Active)
	if err != nil {
		return nil, err
	}
	s.EndpointID = endpointID.String
	s.DeployedID = deployedID.String
	return &s, nil
}

// --- processing log -------------------------------------------------------------

type postgresProcessingLogRepo struct {
	db *sql.DB
	tx *sql.Tx
}

func (r *postgresProcessingLogRepo) query() queryer {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

func (r *postgresProcessingLogRepo) Append(ctx context.Context, entry *core.ProcessingLogEntry) error {
	return r.query().QueryRowContext(ctx, `
		INSERT INTO processing_log (article_id, phase, status, message, duration_ms, timestamp, correlation_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id
	`, nullString(entry.ArticleID), string(entry.Phase), entry.Status, entry.Message, entry.DurationMs, entry.Timestamp, entry.CorrelationID).Scan(&entry.ID)
}

func (r *postgresProcessingLogRepo) ListByArticle(ctx context.Context, articleID string, limit int) ([]core.ProcessingLogEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.query().QueryContext(ctx, `
		SELECT id, article_id, phase, status, message, duration_ms, timestamp, correlation_id
		FROM processing_log WHERE article_id = $1 ORDER BY timestamp DESC LIMIT $2
	`, articleID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanLogRows(rows)
}

func (r *postgresProcessingLogRepo) ListByCorrelation(ctx context.Context, correlationID string) ([]core.ProcessingLogEntry, error) {
	rows, err := r.query().QueryContext(ctx, `
		SELECT id, article_id, phase, status, message, duration_ms, timestamp, correlation_id
		FROM processing_log WHERE correlation_id = $1 ORDER BY timestamp ASC
	`, correlationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanLogRows(rows)
}

func scanLogRows(rows *sql.Rows) ([]core.ProcessingLogEntry, error) {
	var entries []core.ProcessingLogEntry
	for rows.Next() {
		var e core.ProcessingLogEntry
		var articleID sql.NullString
		var phase string
		if err := rows.Scan(&e.ID, &articleID, &phase, &e.Status, &e.Message, &e.DurationMs, &e.Timestamp, &e.CorrelationID); err != nil {
			return nil, err
		}
		e.ArticleID = articleID.String
		e.Phase = core.ProcessingPhase(phase)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

package indexer

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"sort"

	_ "modernc.org/sqlite"
)

// LocalProvider is a brute-force ANNProvider backed by a local
// modernc.org/sqlite database, matching the local-dev store contract in
// spec.md §6. Vectors are stored as packed little-endian float32 blobs and
// scanned linearly at query time; adequate for the single-operator corpora
// the dev store targets.
type LocalProvider struct {
	db *sql.DB
}

// NewLocalProvider opens (creating if absent) a sqlite file at path and
// ensures the embeddings table exists.
func NewLocalProvider(ctx context.Context, path string) (*LocalProvider, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open local index db: %w", err)
	}
	schema := `
		CREATE TABLE IF NOT EXISTS embeddings (
			index_name TEXT NOT NULL,
			article_id TEXT NOT NULL,
			chunk_index INTEGER NOT NULL,
			vector BLOB NOT NULL,
			PRIMARY KEY (index_name, article_id, chunk_index)
		)
	`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create local index schema: %w", err)
	}
	return &LocalProvider{db: db}, nil
}

func (l *LocalProvider) Close() error { return l.db.Close() }

func (l *LocalProvider) Upsert(ctx context.Context, indexName string, batch []Vector) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return &IndexError{Kind: KindProviderTransient, Err: err}
	}
	defer tx.Rollback()

	stmt := `
		INSERT INTO embeddings (index_name, article_id, chunk_index, vector)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (index_name, article_id, chunk_index) DO UPDATE SET vector = excluded.vector
	`
	for _, v := range batch {
		if _, err := tx.ExecContext(ctx, stmt, indexName, v.ArticleID, v.ChunkIndex, packVector(v.Embedding)); err != nil {
			return &IndexError{Kind: KindProviderTransient, Err: err}
		}
	}
	if err := tx.Commit(); err != nil {
		return &IndexError{Kind: KindProviderTransient, Err: err}
	}
	return nil
}

// Query loads every row for indexName and ranks by dot product in
// process. Metadata filters are not pushed down (the local provider has no
// joined articles table); callers needing filtered local search should
// filter ScoredArticle results against a separately-loaded article map.
func (l *LocalProvider) Query(ctx context.Context, indexName string, vector []float32, topK int, filter Filter) ([]ScoredArticle, error) {
	rows, err := l.db.QueryContext(ctx, `SELECT article_id, chunk_index, vector FROM embeddings WHERE index_name = ?`, indexName)
	if err != nil {
		return nil, &IndexError{Kind: KindProviderTransient, Err: err}
	}
	defer rows.Close()

	var results []ScoredArticle
	for rows.Next() {
		var articleID string
		var chunkIndex int
		var blob []byte
		if err := rows.Scan(&articleID, &chunkIndex, &blob); err != nil {
			return nil, &IndexError{Kind: KindProviderTransient, Err: err}
		}
		candidate := unpackVector(blob)
		results = append(results, ScoredArticle{ArticleID: articleID, ChunkIndex: chunkIndex, Score: dot(vector, candidate)})
	}
	if err := rows.Err(); err != nil {
		return nil, &IndexError{Kind: KindProviderTransient, Err: err}
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if topK > 0 && len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

func (l *LocalProvider) Has(ctx context.Context, indexName, articleID string, chunkIndex int) (bool, error) {
	var exists bool
	err := l.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM embeddings WHERE index_name = ? AND article_id = ? AND chunk_index = ?)
	`, indexName, articleID, chunkIndex).Scan(&exists)
	if err != nil {
		return false, &IndexError{Kind: KindProviderTransient, Err: err}
	}
	return exists, nil
}

func (l *LocalProvider) Count(ctx context.Context, indexName string) (int64, error) {
	var count int64
	err := l.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM embeddings WHERE index_name = ?`, indexName).Scan(&count)
	if err != nil {
		return 0, &IndexError{Kind: KindProviderTransient, Err: err}
	}
	return count, nil
}

func dot(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func packVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func unpackVector(buf []byte) []float32 {
	v := make([]float32, len(buf)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return v
}

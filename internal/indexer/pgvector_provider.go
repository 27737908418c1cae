package indexer

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"
)

// PgVectorProvider implements ANNProvider against PostgreSQL with the
// pgvector extension, generalizing the teacher's single-embedding-per-
// article vectorstore adapter to composite (article_id, chunk_index) keys
// stored in an `embeddings` table.
type PgVectorProvider struct {
	db *sql.DB
}

// NewPgVectorProvider wraps an open pgvector-enabled database handle.
func NewPgVectorProvider(db *sql.DB) *PgVectorProvider {
	return &PgVectorProvider{db: db}
}

func (p *PgVectorProvider) Upsert(ctx context.Context, indexName string, batch []Vector) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return &IndexError{Kind: KindProviderTransient, Err: err}
	}
	defer tx.Rollback()

	stmt := `
		INSERT INTO embeddings (index_name, article_id, chunk_index, vector)
		VALUES ($1, $2, $3, $4::vector)
		ON CONFLICT (index_name, article_id, chunk_index)
		DO UPDATE SET vector = EXCLUDED.vector, updated_at = NOW()
	`
	for _, v := range batch {
		if _, err := tx.ExecContext(ctx, stmt, indexName, v.ArticleID, v.ChunkIndex, formatVector(v.Embedding)); err != nil {
			return &IndexError{Kind: KindProviderTransient, Err: fmt.Errorf("upsert %s/%d: %w", v.ArticleID, v.ChunkIndex, err)}
		}
	}
	if err := tx.Commit(); err != nil {
		return &IndexError{Kind: KindProviderTransient, Err: err}
	}
	return nil
}

// Query ranks by dot product: pgvector's `<#>` operator returns the
// negative inner product, so similarity is its negation, matching the
// dot-product-over-L2-normalized distance the IndexState mandates by
// default.
func (p *PgVectorProvider) Query(ctx context.Context, indexName string, vector []float32, topK int, filter Filter) ([]ScoredArticle, error) {
	if topK <= 0 {
		topK = 10
	}
	where, args := buildFilterSQL(filter, []any{indexName, formatVector(vector)})
	query := fmt.Sprintf(`
		SELECT e.article_id, e.chunk_index, (e.vector <#> $2::vector) AS neg_ip
		FROM embeddings e
		JOIN articles a ON a.internal_id = e.article_id
		WHERE e.index_name = $1 %s
		ORDER BY e.vector <#> $2::vector
		LIMIT %d
	`, where, topK)

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &IndexError{Kind: KindProviderTransient, Err: err}
	}
	defer rows.Close()

	var results []ScoredArticle
	for rows.Next() {
		var r ScoredArticle
		var negIP float64
		if err := rows.Scan(&r.ArticleID, &r.ChunkIndex, &negIP); err != nil {
			return nil, &IndexError{Kind: KindProviderTransient, Err: err}
		}
		r.Score = -negIP
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, &IndexError{Kind: KindProviderTransient, Err: err}
	}
	return results, nil
}

func (p *PgVectorProvider) Has(ctx context.Context, indexName, articleID string, chunkIndex int) (bool, error) {
	var exists bool
	err := p.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM embeddings WHERE index_name = $1 AND article_id = $2 AND chunk_index = $3)
	`, indexName, articleID, chunkIndex).Scan(&exists)
	if err != nil {
		return false, &IndexError{Kind: KindProviderTransient, Err: err}
	}
	return exists, nil
}

func (p *PgVectorProvider) Count(ctx context.Context, indexName string) (int64, error) {
	var count int64
	err := p.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM embeddings WHERE index_name = $1`, indexName).Scan(&count)
	if err != nil {
		return 0, &IndexError{Kind: KindProviderTransient, Err: err}
	}
	return count, nil
}

// buildFilterSQL renders a DNF Filter as a parameterized `AND (...)`
// fragment appended to a base WHERE clause. args is the arg list so far;
// returns the updated fragment and full arg list with placeholders
// numbered to continue from len(args).
func buildFilterSQL(filter Filter, args []any) (string, []any) {
	if len(filter) == 0 {
		return "", args
	}
	var groups []string
	for _, group := range filter {
		var clauses []string
		for _, c := range group {
			placeholder := len(args) + 1
			col := pq.QuoteIdentifier(c.Field)
			switch c.Op {
			case OpEq:
				clauses = append(clauses, fmt.Sprintf("a.%s = $%d", col, placeholder))
				args = append(args, c.Value)
			case OpNeq:
				clauses = append(clauses, fmt.Sprintf("a.%s != $%d", col, placeholder))
				args = append(args, c.Value)
			case OpGt:
				clauses = append(clauses, fmt.Sprintf("a.%s > $%d", col, placeholder))
				args = append(args, c.Value)
			case OpGte:
				clauses = append(clauses, fmt.Sprintf("a.%s >= $%d", col, placeholder))
				args = append(args, c.Value)
			case OpLt:
				clauses = append(clauses, fmt.Sprintf("a.%s < $%d", col, placeholder))
				args = append(args, c.Value)
			case OpLte:
				clauses = append(clauses, fmt.Sprintf("a.%s <= $%d", col, placeholder))
				args = append(args, c.Value)
			case OpIn:
				clauses = append(clauses, fmt.Sprintf("a.%s = ANY($%d)", col, placeholder))
				args = append(args, pq.Array(c.Value))
			}
		}
		if len(clauses) > 0 {
			groups = append(groups, "("+strings.Join(clauses, " AND ")+")")
		}
	}
	if len(groups) == 0 {
		return "", args
	}
	return "AND (" + strings.Join(groups, " OR ") + ")", args
}

// formatVector renders a []float32 as pgvector's literal syntax.
func formatVector(embedding []float32) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, v := range embedding {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%f", v)
	}
	b.WriteByte(']')
	return b.String()
}

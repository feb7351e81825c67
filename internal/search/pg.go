package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgSearch is the fallback backend: a plain ILIKE scan over posts and
// projects. Adequate for a portfolio-sized corpus.
type PgSearch struct {
	db *sql.DB
}

func NewPgSearch(db *sql.DB) *PgSearch {
	return &PgSearch{db: db}
}

// Healthy always returns true; if Postgres is down, the whole app is down.
func (p *PgSearch) Healthy() bool {
	return true
}

func (p *PgSearch) Search(ctx context.Context, q Query) ([]Result, int, error) {
	text := strings.TrimSpace(q.Text)
	if text == "" {
		return nil, 0, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	const query = `
		SELECT * FROM (
			SELECT 'post'::text AS type, id, title, excerpt AS snippet, slug
			FROM posts
			WHERE published AND (title ILIKE $1 OR excerpt ILIKE $1 OR content ILIKE $1)
			UNION ALL
			SELECT 'project'::text AS type, id, title, description AS snippet, slug
			FROM projects
			WHERE title ILIKE $1 OR description ILIKE $1
		) hits
		ORDER BY title
		LIMIT $2 OFFSET $3
	`
	pattern := "%" + text + "%"
	rows, err := p.db.QueryContext(ctx, query, pattern, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("pg search: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.Type, &r.ID, &r.Title, &r.Snippet, &r.Slug); err != nil {
			return nil, 0, fmt.Errorf("scan search hit: %w", err)
		}
		results = append(results, r)
	}
	return results, len(results), rows.Err()
}

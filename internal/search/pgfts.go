package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgFTS implements Searcher using PostgreSQL full-text search as a fallback.
type PgFTS struct {
	db *sql.DB
}

// NewPgFTS creates a PostgreSQL FTS searcher.
func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always reports true; if Postgres is down the whole app is down.
func (p *PgFTS) Healthy() bool {
	return true
}

// Search executes a UNION ALL query across threads and posts using
// plainto_tsquery and ts_rank, with ts_headline for snippets. Buried
// threads and deleted or buried posts never surface.
func (p *PgFTS) Search(q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
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

	tsQuery := "plainto_tsquery('english', $1)"
	args := []any{q.Text}
	argN := 2

	var subQueries []string

	// Threads sub-query
	if q.FilterType == "" || q.FilterType == ResultThread {
		threadWhere := "to_tsvector('english', t.title) @@ " + tsQuery +
			" AND t.buried_at IS NULL"
		if q.FilterChannelID != "" {
			threadWhere += fmt.Sprintf(" AND t.channel_id = $%d", argN)
			args = append(args, q.FilterChannelID)
			argN++
		}
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'thread'::text AS type, t.id, t.title,
				''::text AS snippet,
				t.id AS thread_id, t.channel_id,
				ts_rank(to_tsvector('english', t.title), %s) AS rank
			FROM threads t
			WHERE %s`, tsQuery, threadWhere))
	}

	// Posts sub-query
	if q.FilterType == "" || q.FilterType == ResultPost {
		postWhere := "to_tsvector('english', p.content) @@ " + tsQuery +
			" AND p.deleted_at IS NULL AND p.buried_at IS NULL AND t.buried_at IS NULL"
		if q.FilterChannelID != "" {
			postWhere += fmt.Sprintf(" AND t.channel_id = $%d", argN)
			args = append(args, q.FilterChannelID)
			argN++
		}
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'post'::text AS type, p.id, ''::text AS title,
				ts_headline('english', p.content, %s, 'MaxFragments=1,MaxWords=30') AS snippet,
				p.thread_id, t.channel_id,
				ts_rank(to_tsvector('english', p.content), %s) AS rank
			FROM posts p
			JOIN threads t ON t.id = p.thread_id
			WHERE %s`, tsQuery, tsQuery, postWhere))
	}

	if len(subQueries) == 0 {
		return nil, 0, nil
	}

	countSQL := fmt.Sprintf("SELECT count(*) FROM (%s) sub",
		strings.Join(subQueries, " UNION ALL "))

	dataSQL := fmt.Sprintf(`SELECT type, id, title, snippet, thread_id, channel_id
		FROM (%s) sub
		ORDER BY rank DESC
		LIMIT %d OFFSET %d`,
		strings.Join(subQueries, " UNION ALL "),
		limit, offset)

	ctx := context.Background()

	var total int
	if err := p.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgfts count: %w", err)
	}

	rows, err := p.db.QueryContext(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		var typ string
		if err := rows.Scan(&typ, &r.ID, &r.Title, &r.Snippet, &r.ThreadID, &r.ChannelID); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		r.Type = ResultType(typ)
		results = append(results, r)
	}

	return results, total, rows.Err()
}

// LoadAllRecords returns all searchable records for full reindexing.
func (p *PgFTS) LoadAllRecords(ctx context.Context) ([]ThreadRecord, []PostRecord, error) {
	threadRows, err := p.db.QueryContext(ctx, `
		SELECT id, title, channel_id
		FROM threads
		WHERE buried_at IS NULL
	`)
	if err != nil {
		return nil, nil, fmt.Errorf("load threads: %w", err)
	}
	defer threadRows.Close()

	threads := make([]ThreadRecord, 0)
	for threadRows.Next() {
		var t ThreadRecord
		if err := threadRows.Scan(&t.ID, &t.Title, &t.ChannelID); err != nil {
			return nil, nil, fmt.Errorf("scan thread: %w", err)
		}
		threads = append(threads, t)
	}
	if err := threadRows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate threads: %w", err)
	}

	postRows, err := p.db.QueryContext(ctx, `
		SELECT p.id, p.content, p.thread_id, t.channel_id
		FROM posts p
		JOIN threads t ON t.id = p.thread_id
		WHERE p.deleted_at IS NULL AND p.buried_at IS NULL AND t.buried_at IS NULL
	`)
	if err != nil {
		return nil, nil, fmt.Errorf("load posts: %w", err)
	}
	defer postRows.Close()

	posts := make([]PostRecord, 0)
	for postRows.Next() {
		var pr PostRecord
		if err := postRows.Scan(&pr.ID, &pr.Body, &pr.ThreadID, &pr.ChannelID); err != nil {
			return nil, nil, fmt.Errorf("scan post: %w", err)
		}
		posts = append(posts, pr)
	}
	if err := postRows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate posts: %w", err)
	}

	return threads, posts, nil
}

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/mattn/go-sqlite3"

	"PaperDigest/internal/domain"
	"PaperDigest/internal/ports"
)

const createArchiveTable = `
CREATE TABLE IF NOT EXISTS processed_articles (
    id           TEXT PRIMARY KEY,
    title        TEXT NOT NULL,
    journal      TEXT NOT NULL,
    authors      TEXT,
    summary_ja   TEXT,
    published    TEXT,
    link         TEXT,
    priority     INTEGER,
    processed_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_processed_articles_processed_at
    ON processed_articles (processed_at);
`

// Archive persists notified articles to SQLite so past digests stay
// searchable after the queue has dropped them.
type Archive struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

var _ ports.Archiver = (*Archive)(nil)

// NewArchive opens (and if needed creates) the database at path.
func NewArchive(path string, logger *slog.Logger) (*Archive, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open archive db: %w", err)
	}
	if _, err := db.Exec(createArchiveTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("init archive schema: %w", err)
	}
	return &Archive{db: db, logger: logger, now: time.Now}, nil
}

// Close releases the underlying database handle.
func (a *Archive) Close() error {
	return a.db.Close()
}

// ArchiveProcessed inserts the given articles, skipping ids already present.
// It returns the number of rows actually written.
func (a *Archive) ArchiveProcessed(ctx context.Context, articles []domain.Article) (int, error) {
	if len(articles) == 0 {
		return 0, nil
	}

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin archive tx: %w", err)
	}
	defer tx.Rollback()

	processedAt := a.now().UTC().Format(time.RFC3339)
	inserted := 0
	for _, article := range articles {
		authors, err := json.Marshal(article.Authors)
		if err != nil {
			return 0, fmt.Errorf("marshal authors: %w", err)
		}

		query, args, err := sq.Insert("processed_articles").
			Columns("id", "title", "journal", "authors", "summary_ja",
				"published", "link", "priority", "processed_at").
			Values(article.ID, article.Title, article.Journal, string(authors),
				article.SummaryJA, article.Published, article.Link,
				int(article.Priority), processedAt).
			Suffix("ON CONFLICT (id) DO NOTHING").
			ToSql()
		if err != nil {
			return 0, fmt.Errorf("build insert: %w", err)
		}

		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return 0, fmt.Errorf("insert article %s: %w", article.ID, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			inserted++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit archive tx: %w", err)
	}
	a.logger.Info("articles archived", "inserted", inserted, "total", len(articles))
	return inserted, nil
}

// Search returns archived articles whose title or summary contains query,
// newest first, optionally limited to the last N days (0 = no limit).
func (a *Archive) Search(ctx context.Context, query string, days int) ([]domain.ArchivedArticle, error) {
	builder := sq.Select("id", "title", "journal", "authors", "summary_ja",
		"published", "link", "priority", "processed_at").
		From("processed_articles").
		OrderBy("processed_at DESC")

	if query != "" {
		like := "%" + query + "%"
		builder = builder.Where(sq.Or{
			sq.Like{"title": like},
			sq.Like{"summary_ja": like},
		})
	}
	if days > 0 {
		cutoff := a.now().UTC().AddDate(0, 0, -days).Format(time.RFC3339)
		builder = builder.Where(sq.GtOrEq{"processed_at": cutoff})
	}

	sqlStr, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build search: %w", err)
	}

	rows, err := a.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("search archive: %w", err)
	}
	defer rows.Close()

	var out []domain.ArchivedArticle
	for rows.Next() {
		var (
			rec     domain.ArchivedArticle
			authors sql.NullString
		)
		if err := rows.Scan(&rec.ID, &rec.Title, &rec.Journal, &authors,
			&rec.SummaryJA, &rec.Published, &rec.Link, &rec.Priority, &rec.ProcessedAt); err != nil {
			return nil, fmt.Errorf("scan archive row: %w", err)
		}
		if authors.Valid && authors.String != "" {
			if err := json.Unmarshal([]byte(authors.String), &rec.Authors); err != nil {
				a.logger.Warn("unparsable authors column, skipping field", "id", rec.ID)
			}
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Stats reports the archive row count and counts per journal.
func (a *Archive) Stats(ctx context.Context) (int, map[string]int, error) {
	sqlStr, args, err := sq.Select("journal", "COUNT(*)").
		From("processed_articles").
		GroupBy("journal").
		ToSql()
	if err != nil {
		return 0, nil, fmt.Errorf("build stats: %w", err)
	}

	rows, err := a.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return 0, nil, fmt.Errorf("query stats: %w", err)
	}
	defer rows.Close()

	total := 0
	byJournal := make(map[string]int)
	for rows.Next() {
		var (
			journal string
			count   int
		)
		if err := rows.Scan(&journal, &count); err != nil {
			return 0, nil, fmt.Errorf("scan stats row: %w", err)
		}
		byJournal[journal] = count
		total += count
	}
	return total, byJournal, rows.Err()
}

// CleanupOld deletes rows older than the retention window and returns the
// number of deleted rows.
func (a *Archive) CleanupOld(ctx context.Context, retentionDays int) (int, error) {
	cutoff := a.now().UTC().AddDate(0, 0, -retentionDays).Format(time.RFC3339)
	sqlStr, args, err := sq.Delete("processed_articles").
		Where(sq.Lt{"processed_at": cutoff}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build cleanup: %w", err)
	}

	res, err := a.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return 0, fmt.Errorf("cleanup archive: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		a.logger.Info("archive cleanup removed rows", "removed", n, "retention_days", retentionDays)
	}
	return int(n), nil
}

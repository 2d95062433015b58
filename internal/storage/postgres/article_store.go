// Package postgres provides the Postgres-backed article store.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/blog-search/internal/crawler"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

const defaultTable = "blog_posts"

// ArticleStoreConfig controls the Postgres connection pool used for article rows.
type ArticleStoreConfig struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pool interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
	Close()
}

// ArticleStore implements crawler.ArticleStore on a single Postgres table.
type ArticleStore struct {
	pool  pool
	table string
	ids   crawler.IDGenerator
	clock crawler.Clock
}

var _ crawler.ArticleStore = (*ArticleStore)(nil)

// NewArticleStore creates a Postgres-backed ArticleStore using the provided config.
func NewArticleStore(
	ctx context.Context,
	cfg ArticleStoreConfig,
	ids crawler.IDGenerator,
	clock crawler.Clock,
) (*ArticleStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("store.postgres.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	store, err := NewArticleStoreWithPool(p, cfg.Table, ids, clock)
	if err != nil {
		p.Close()
		return nil, err
	}
	return store, nil
}

// NewArticleStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewArticleStoreWithPool(p pool, table string, ids crawler.IDGenerator, clock crawler.Clock) (*ArticleStore, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if ids == nil || clock == nil {
		return nil, fmt.Errorf("id generator and clock are required")
	}
	if table == "" {
		table = defaultTable
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &ArticleStore{pool: p, table: table, ids: ids, clock: clock}, nil
}

// Close releases the underlying pool resources.
func (s *ArticleStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// EnsureSchema creates the article table if it does not exist. URL is indexed but not
// unique: re-scraping the same article inserts a new row.
func (s *ArticleStore) EnsureSchema(ctx context.Context) error {
	ddl := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %[1]s (
	id            uuid PRIMARY KEY,
	url           text NOT NULL,
	title         text NOT NULL,
	created       text NOT NULL,
	updated       text NOT NULL,
	category      text[] NOT NULL DEFAULT '{}',
	blog_tags     jsonb NOT NULL DEFAULT '[]',
	raw_tags      text[] NOT NULL DEFAULT '{}',
	paragraphs    text[] NOT NULL DEFAULT '{}',
	key_takeaways text[] NOT NULL DEFAULT '{}',
	inserted_at   timestamptz NOT NULL
);
CREATE INDEX IF NOT EXISTS %[1]s_url_idx ON %[1]s (url);`, s.table)
	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// Insert implements crawler.ArticleStore.
func (s *ArticleStore) Insert(ctx context.Context, record crawler.ArticleRecord) (string, error) {
	id, err := s.ids.NewID()
	if err != nil {
		return "", fmt.Errorf("%w: %w", crawler.ErrStoreUnavailable, err)
	}
	tagsJSON, err := json.Marshal(nonNilTags(record.BlogTags))
	if err != nil {
		return "", fmt.Errorf("marshal blog tags: %w", err)
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	id,
	url,
	title,
	created,
	updated,
	category,
	blog_tags,
	raw_tags,
	paragraphs,
	key_takeaways,
	inserted_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11
)`, s.table)

	args := []any{
		id,
		record.URL,
		record.Title,
		record.Created,
		record.Updated,
		nonNil(record.Category),
		tagsJSON,
		nonNil(record.RawTags),
		nonNil(record.Paragraphs),
		nonNil(record.KeyTakeaways),
		s.clock.Now(),
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return "", fmt.Errorf("%w: insert article: %w", crawler.ErrStoreUnavailable, err)
	}
	return id, nil
}

// Count implements crawler.ArticleStore.
func (s *ArticleStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, fmt.Sprintf(`SELECT count(*) FROM %s`, s.table)).Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: count articles: %w", crawler.ErrStoreUnavailable, err)
	}
	return n, nil
}

// SampleOne implements crawler.ArticleStore by returning the oldest record.
func (s *ArticleStore) SampleOne(ctx context.Context) (crawler.ArticleRecord, bool, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s ORDER BY inserted_at, id LIMIT 1`, selectColumns, s.table)
	record, err := scanArticle(s.pool.QueryRow(ctx, query))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return crawler.ArticleRecord{}, false, nil
		}
		return crawler.ArticleRecord{}, false, fmt.Errorf("%w: sample article: %w", crawler.ErrStoreUnavailable, err)
	}
	return record, true, nil
}

// List implements crawler.ArticleStore in insertion order.
func (s *ArticleStore) List(ctx context.Context) ([]crawler.ArticleRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s ORDER BY inserted_at, id`, selectColumns, s.table)
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: list articles: %w", crawler.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var records []crawler.ArticleRecord
	for rows.Next() {
		record, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("scan article row: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list articles: %w", crawler.ErrStoreUnavailable, err)
	}
	return records, nil
}

const selectColumns = `id, url, title, created, updated, category, blog_tags, raw_tags, paragraphs, key_takeaways, inserted_at`

func scanArticle(row pgx.Row) (crawler.ArticleRecord, error) {
	var (
		record   crawler.ArticleRecord
		tagsJSON []byte
	)
	err := row.Scan(
		&record.ID,
		&record.URL,
		&record.Title,
		&record.Created,
		&record.Updated,
		&record.Category,
		&tagsJSON,
		&record.RawTags,
		&record.Paragraphs,
		&record.KeyTakeaways,
		&record.InsertedAt,
	)
	if err != nil {
		return crawler.ArticleRecord{}, err
	}
	if len(tagsJSON) > 0 {
		if err := json.Unmarshal(tagsJSON, &record.BlogTags); err != nil {
			return crawler.ArticleRecord{}, fmt.Errorf("decode blog tags: %w", err)
		}
	}
	return record, nil
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func nonNilTags(tags [][]string) [][]string {
	if tags == nil {
		return [][]string{}
	}
	return tags
}

// Package pagecache keeps fetched archive pages in a local sqlite database so
// repeated runs over the same series do not hit the archive again.
package pagecache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/PuerkitoBio/purell"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	_ "modernc.org/sqlite"
)

var tracer = otel.Tracer("ficsync/internal/pagecache")

// ErrMiss is returned by Get when no fresh page is cached for the url.
var ErrMiss = errors.New("pagecache: miss")

const schema = `
create table if not exists page (
	key text primary key,
	body blob not null,
	expires_at integer not null
);
`

type Cache struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

// Open opens (or creates) the cache database at `path`, pages expire `ttl`
// after they are stored.
func Open(path string, ttl time.Duration) (*Cache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open page cache: %w", err)
	}
	// sqlite does not handle concurrent writers
	db.SetMaxOpenConns(1)

	_, err = db.Exec(schema)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create page cache schema: %w", err)
	}
	return &Cache{db: db, ttl: ttl, now: time.Now}, nil
}

func (c *Cache) Close() error {
	return c.db.Close()
}

// Key normalizes a url so equivalent urls share a cache entry, `namespace`
// separates pages fetched under different sessions.
func Key(namespace string, u *url.URL) string {
	return namespace + ":" + purell.NormalizeURL(
		u,
		purell.FlagsSafe|
			purell.FlagsUsuallySafeNonGreedy|
			purell.FlagRemoveDirectoryIndex|
			purell.FlagRemoveFragment|
			purell.FlagSortQuery,
	)
}

// Get returns the cached body of `u`, expired entries are deleted and
// reported as ErrMiss.
func (c *Cache) Get(ctx context.Context, namespace string, u *url.URL) ([]byte, error) {
	ctx, span := tracer.Start(ctx, "get")
	defer span.End()

	key := Key(namespace, u)
	span.SetAttributes(attribute.String("cache_key", key))

	var body []byte
	var expiresAt int64
	err := c.db.QueryRowContext(ctx, "select body, expires_at from page where key = ?", key).
		Scan(&body, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrMiss
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to read cached page")
		return nil, err
	}

	if c.now().Unix() >= expiresAt {
		_, err = c.db.ExecContext(ctx, "delete from page where key = ?", key)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to delete expired page")
		}
		return nil, ErrMiss
	}

	span.SetAttributes(attribute.Int("contentlength", len(body)))
	return body, nil
}

// Set stores the body of `u`, replacing whatever was cached for it.
func (c *Cache) Set(ctx context.Context, namespace string, u *url.URL, body []byte) error {
	ctx, span := tracer.Start(ctx, "set")
	defer span.End()

	key := Key(namespace, u)
	span.SetAttributes(attribute.String("cache_key", key))

	_, err := c.db.ExecContext(
		ctx,
		"insert or replace into page (key, body, expires_at) values (?, ?, ?)",
		key, body, c.now().Add(c.ttl).Unix(),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to store page")
		return err
	}
	return nil
}

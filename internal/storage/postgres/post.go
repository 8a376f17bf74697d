package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"post_keeper/internal/domain"
	"post_keeper/internal/storage"
)

type PostStore struct {
	db *sqlx.DB
}

func NewPostStore(db *sqlx.DB) *PostStore {
	return &PostStore{db: db}
}

// Upsert inserts the post or, when (channel_id, message_id) already
// exists, replaces its content fields in the same statement. The row's
// identity and created_at never change. Fills the store-assigned
// fields on p and reports whether the row was freshly inserted.
func (s *PostStore) Upsert(ctx context.Context, p *domain.Post) (bool, error) {
	query := `
		INSERT INTO posts (
			channel_id, channel_name, message_id, kind, title, body,
			media_ref, tags, occurred_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9
		)
		ON CONFLICT (channel_id, message_id) DO UPDATE SET
			channel_name = EXCLUDED.channel_name,
			kind = EXCLUDED.kind,
			title = EXCLUDED.title,
			body = EXCLUDED.body,
			media_ref = EXCLUDED.media_ref,
			tags = EXCLUDED.tags,
			occurred_at = EXCLUDED.occurred_at,
			updated_at = NOW()
		RETURNING id, created_at, updated_at, (xmax = 0) AS inserted`

	var inserted bool
	err := s.db.QueryRowContext(ctx, query,
		p.ChannelID,
		p.ChannelName,
		p.MessageID,
		p.Kind,
		p.Title,
		p.Body,
		p.MediaRef,
		pq.StringArray(p.Tags),
		p.OccurredAt,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt, &inserted)
	if err != nil {
		return false, wrapError("upsert post", err)
	}

	return inserted, nil
}

func (s *PostStore) Get(ctx context.Context, channelID, messageID int64) (*domain.Post, error) {
	query := `
		SELECT id, channel_id, channel_name, message_id, kind, title,
		       body, media_ref, tags, occurred_at, created_at, updated_at
		FROM posts
		WHERE channel_id = $1 AND message_id = $2`

	p, err := scanPost(s.db.QueryRowContext(ctx, query, channelID, messageID))
	if err != nil {
		return nil, wrapError("get post", err)
	}
	return p, nil
}

// List returns posts ordered by occurred_at descending.
func (s *PostStore) List(ctx context.Context, limit, offset int) ([]domain.Post, error) {
	query := `
		SELECT id, channel_id, channel_name, message_id, kind, title,
		       body, media_ref, tags, occurred_at, created_at, updated_at
		FROM posts
		ORDER BY occurred_at DESC, id DESC
		LIMIT $1 OFFSET $2`

	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, wrapError("list posts", err)
	}
	defer rows.Close()

	var posts []domain.Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, wrapError("list posts", err)
		}
		posts = append(posts, *p)
	}
	return posts, wrapError("list posts", rows.Err())
}

func (s *PostStore) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM posts")
	return n, wrapError("count posts", err)
}

func (s *PostStore) CountByKind(ctx context.Context) (map[string]int64, error) {
	return s.aggregate(ctx, "SELECT kind, COUNT(*) FROM posts GROUP BY kind")
}

func (s *PostStore) CountByTag(ctx context.Context) (map[string]int64, error) {
	return s.aggregate(ctx, "SELECT unnest(tags), COUNT(*) FROM posts GROUP BY 1")
}

func (s *PostStore) Ping(ctx context.Context) error {
	return wrapError("ping", s.db.PingContext(ctx))
}

func (s *PostStore) aggregate(ctx context.Context, query string) (map[string]int64, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, wrapError("aggregate posts", err)
	}
	defer rows.Close()

	result := make(map[string]int64)
	for rows.Next() {
		var key string
		var count int64
		if err := rows.Scan(&key, &count); err != nil {
			return nil, wrapError("aggregate posts", err)
		}
		result[key] = count
	}
	return result, wrapError("aggregate posts", rows.Err())
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPost(row rowScanner) (*domain.Post, error) {
	var p domain.Post
	var tags pq.StringArray
	err := row.Scan(
		&p.ID,
		&p.ChannelID,
		&p.ChannelName,
		&p.MessageID,
		&p.Kind,
		&p.Title,
		&p.Body,
		&p.MediaRef,
		&tags,
		&p.OccurredAt,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.Tags = []string(tags)
	return &p, nil
}

// wrapError maps driver errors onto the storage taxonomy: sql.ErrNoRows
// becomes ErrNotFound, connection-class failures become ErrUnavailable,
// anything else passes through for the caller to treat as structural.
func wrapError(op string, err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	if isConnectionError(err) {
		return fmt.Errorf("%s: %w: %v", op, storage.ErrUnavailable, err)
	}

	return fmt.Errorf("%s: %w", op, err)
}

func isConnectionError(err error) bool {
	if errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, io.EOF) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Class() {
		case "08", // connection exception
			"53", // insufficient resources
			"57": // operator intervention (shutdown, crash)
			return true
		}
	}

	return false
}

package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/gin728/ginblog/internal/blog"
	"github.com/jmoiron/sqlx"
)

type PostStore struct {
	db *sqlx.DB
}

const (
	upsertPostQuery = `
		INSERT INTO posts (id, title, slug, content, published_at, created_at, updated_at)
		VALUES (:id, :title, :slug, :content, :published_at, :created_at, :updated_at)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			slug = excluded.slug,
			content = excluded.content,
			published_at = excluded.published_at,
			updated_at = excluded.updated_at
	`
	latestPostsQuery = `
		SELECT * FROM posts
		WHERE published_at IS NOT NULL
		ORDER BY published_at DESC
		LIMIT ?
	`
)

func NewPostStore(db *sqlx.DB) *PostStore {
	return &PostStore{db: db}
}

// Upsert inserts the post or overwrites every field except created_at.
func (s *PostStore) Upsert(ctx context.Context, post *blog.Post) error {
	_, err := s.db.NamedExecContext(ctx, upsertPostQuery, post)
	return err
}

func (s *PostStore) GetBySlug(ctx context.Context, slug string) (*blog.Post, error) {
	var post blog.Post
	err := s.db.GetContext(ctx, &post, "SELECT * FROM posts WHERE slug = ?", slug)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &post, nil
}

func (s *PostStore) ListLatest(ctx context.Context, limit int) ([]*blog.Post, error) {
	var posts []*blog.Post
	if err := s.db.SelectContext(ctx, &posts, latestPostsQuery, limit); err != nil {
		return nil, err
	}
	return posts, nil
}

// SetPublishedAt toggles publication. found is false when no post has the slug.
func (s *PostStore) SetPublishedAt(ctx context.Context, slug string, publishedAt *int64) (found bool, err error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE posts SET published_at = ? WHERE slug = ?",
		publishedAt, slug,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *PostStore) DeleteBySlug(ctx context.Context, slug string) (found bool, err error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM posts WHERE slug = ?", slug)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

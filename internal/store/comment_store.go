package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/gin728/ginblog/internal/blog"
	"github.com/jmoiron/sqlx"
)

type CommentStore struct {
	db *sqlx.DB
}

func NewCommentStore(db *sqlx.DB) *CommentStore {
	return &CommentStore{db: db}
}

func (s *CommentStore) Insert(ctx context.Context, comment *blog.Comment) error {
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO comments (id, user_id, post_id, content, parent_id, created_at)
		VALUES (:id, :user_id, :post_id, :content, :parent_id, :created_at)
	`, comment)
	return err
}

func (s *CommentStore) Get(ctx context.Context, id string) (*blog.Comment, error) {
	var comment blog.Comment
	err := s.db.GetContext(ctx, &comment, "SELECT * FROM comments WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &comment, nil
}

func (s *CommentStore) ListByPost(ctx context.Context, postID string) ([]*blog.Comment, error) {
	var comments []*blog.Comment
	err := s.db.SelectContext(ctx, &comments,
		"SELECT * FROM comments WHERE post_id = ? ORDER BY created_at ASC", postID)
	if err != nil {
		return nil, err
	}
	return comments, nil
}

func (s *CommentStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM comments WHERE id = ?", id)
	return err
}

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gin728/ginblog/internal/blog"
	"github.com/gin728/ginblog/internal/store"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

var ErrPostNotFound = errors.New("post not found")

const (
	postCacheTTL     = 7 * 24 * time.Hour
	latestPostsLimit = 20
)

// PostCache is the key-value side of the write-through pair.
type PostCache interface {
	Set(key string, value any, ttl time.Duration) error
	Get(key string, dest any) (bool, error)
	Delete(key string) error
}

// PostIndex is the semantic-search side of the write-through pair.
type PostIndex interface {
	IndexPost(ctx context.Context, post *blog.Post) error
	Remove(ctx context.Context, postID string) error
}

type PostService struct {
	db    *sqlx.DB
	store *store.PostStore
	cache PostCache
	index PostIndex
}

func NewPostService(db *sqlx.DB, postStore *store.PostStore, cache PostCache, index PostIndex) *PostService {
	return &PostService{db: db, store: postStore, cache: cache, index: index}
}

type PostInput struct {
	ID          string
	Title       string
	Slug        string
	Content     string
	PublishedAt *int64
	UpdatedAt   *int64
}

func CacheKey(slug string) string {
	return "post:" + slug
}

// SavePost upserts the canonical post row, then mirrors it into the cache
// and the embedding index. The mirrors run concurrently, are independent,
// and never fail the canonical write; their errors are logged and swallowed.
func (s *PostService) SavePost(ctx context.Context, in PostInput) (*blog.Post, error) {
	now := time.Now().UnixMilli()

	id := in.ID
	if id == "" {
		id = uuid.New().String()
	}
	publishedAt := now
	if in.PublishedAt != nil {
		publishedAt = *in.PublishedAt
	}
	updatedAt := now
	if in.UpdatedAt != nil {
		updatedAt = *in.UpdatedAt
	}

	post := &blog.Post{
		ID:          id,
		Title:       in.Title,
		Slug:        in.Slug,
		Content:     in.Content,
		PublishedAt: &publishedAt,
		CreatedAt:   now, // ignored on conflict; only meaningful on first insert
		UpdatedAt:   updatedAt,
	}

	if err := s.store.Upsert(ctx, post); err != nil {
		return nil, fmt.Errorf("upsert post: %w", err)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := s.cache.Set(CacheKey(post.Slug), post, postCacheTTL); err != nil {
			slog.Error("post cache write failed", "slug", post.Slug, "error", err)
		}
	}()
	go func() {
		defer wg.Done()
		if err := s.index.IndexPost(ctx, post); err != nil {
			slog.Error("post indexing failed", "id", post.ID, "error", err)
		}
	}()
	wg.Wait()

	return post, nil
}

// GetPost serves a single post, consulting the cache first. Cache failures
// fall through to the store.
func (s *PostService) GetPost(ctx context.Context, slug string) (*blog.Post, error) {
	var cached blog.Post
	if hit, err := s.cache.Get(CacheKey(slug), &cached); err == nil && hit {
		return &cached, nil
	}

	post, err := s.store.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if post == nil {
		return nil, ErrPostNotFound
	}

	if err := s.cache.Set(CacheKey(slug), post, postCacheTTL); err != nil {
		slog.Error("post cache backfill failed", "slug", slug, "error", err)
	}
	return post, nil
}

func (s *PostService) ListLatest(ctx context.Context) ([]*blog.Post, error) {
	return s.store.ListLatest(ctx, latestPostsLimit)
}

// SetPublished toggles publication and invalidates the cache entry. A fresh
// publish re-indexes the post; unpublishing removes it from the index.
func (s *PostService) SetPublished(ctx context.Context, slug string, publish bool) error {
	var publishedAt *int64
	if publish {
		now := time.Now().UnixMilli()
		publishedAt = &now
	}

	found, err := s.store.SetPublishedAt(ctx, slug, publishedAt)
	if err != nil {
		return fmt.Errorf("update publication status: %w", err)
	}
	if !found {
		return ErrPostNotFound
	}

	if err := s.cache.Delete(CacheKey(slug)); err != nil {
		slog.Error("post cache invalidation failed", "slug", slug, "error", err)
	}

	post, err := s.store.GetBySlug(ctx, slug)
	if err != nil || post == nil {
		return nil
	}
	if publish {
		if err := s.index.IndexPost(ctx, post); err != nil {
			slog.Error("post indexing failed", "id", post.ID, "error", err)
		}
	} else {
		if err := s.index.Remove(ctx, post.ID); err != nil {
			slog.Error("post index removal failed", "id", post.ID, "error", err)
		}
	}
	return nil
}

// DeletePost removes the row, the cache entry, and the index entry.
func (s *PostService) DeletePost(ctx context.Context, slug string) error {
	post, err := s.store.GetBySlug(ctx, slug)
	if err != nil {
		return err
	}
	if post == nil {
		return ErrPostNotFound
	}

	if _, err := s.store.DeleteBySlug(ctx, slug); err != nil {
		return fmt.Errorf("delete post: %w", err)
	}

	if err := s.cache.Delete(CacheKey(slug)); err != nil {
		slog.Error("post cache invalidation failed", "slug", slug, "error", err)
	}
	if err := s.index.Remove(ctx, post.ID); err != nil {
		slog.Error("post index removal failed", "id", post.ID, "error", err)
	}
	return nil
}

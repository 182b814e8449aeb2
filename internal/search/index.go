// Package search maintains the semantic post index. Posts are embedded on
// publication and queried by the search endpoint; all writes are best-effort
// from the caller's point of view.
package search

import (
	"context"
	"fmt"

	"github.com/gin728/ginblog/internal/blog"
	chromem "github.com/philippgille/chromem-go"
)

// embedContentLimit bounds how much post content joins the title in the
// embedded text.
const embedContentLimit = 1000

type Metadata struct {
	Title string `json:"title"`
	Slug  string `json:"slug"`
}

type Result struct {
	Score    float32  `json:"score"`
	Metadata Metadata `json:"metadata"`
}

type Index struct {
	posts *chromem.Collection
}

// Open creates or reopens the post collection. An empty path keeps the index
// in memory (tests). embed may be nil to use the chromem default.
func Open(path string, embed chromem.EmbeddingFunc) (*Index, error) {
	var db *chromem.DB
	if path == "" {
		db = chromem.NewDB()
	} else {
		var err error
		db, err = chromem.NewPersistentDB(path, false)
		if err != nil {
			return nil, fmt.Errorf("open vector index: %w", err)
		}
	}

	posts, err := db.GetOrCreateCollection("posts", nil, embed)
	if err != nil {
		return nil, fmt.Errorf("open posts collection: %w", err)
	}
	return &Index{posts: posts}, nil
}

// IndexPost upserts the post's embedding keyed by post id, carrying the
// title and slug as retrievable metadata.
func (ix *Index) IndexPost(ctx context.Context, post *blog.Post) error {
	content := post.Content
	if len(content) > embedContentLimit {
		content = content[:embedContentLimit]
	}

	return ix.posts.AddDocument(ctx, chromem.Document{
		ID:      post.ID,
		Content: post.Title + "\n" + content,
		Metadata: map[string]string{
			"title": post.Title,
			"slug":  post.Slug,
		},
	})
}

// Query returns up to limit posts ranked by similarity to q.
func (ix *Index) Query(ctx context.Context, q string, limit int) ([]Result, error) {
	count := ix.posts.Count()
	if count == 0 {
		return []Result{}, nil
	}
	if limit > count {
		limit = count
	}

	found, err := ix.posts.Query(ctx, q, limit, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("query index: %w", err)
	}

	results := make([]Result, 0, len(found))
	for _, doc := range found {
		results = append(results, Result{
			Score: doc.Similarity,
			Metadata: Metadata{
				Title: doc.Metadata["title"],
				Slug:  doc.Metadata["slug"],
			},
		})
	}
	return results, nil
}

// Remove drops a post from the index. Unknown ids are not an error.
func (ix *Index) Remove(ctx context.Context, postID string) error {
	return ix.posts.Delete(ctx, nil, nil, postID)
}

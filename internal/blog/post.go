// Package blog holds the content entities served by the API.
package blog

// Post timestamps are unix milliseconds. PublishedAt is nil for drafts.
type Post struct {
	ID          string `db:"id" json:"id"`
	Title       string `db:"title" json:"title"`
	Slug        string `db:"slug" json:"slug"`
	Content     string `db:"content" json:"content"`
	PublishedAt *int64 `db:"published_at" json:"publishedAt"`
	CreatedAt   int64  `db:"created_at" json:"createdAt"`
	UpdatedAt   int64  `db:"updated_at" json:"updatedAt"`
}

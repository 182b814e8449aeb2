package blog

type Track struct {
	ID        string  `db:"id" json:"id"`
	Title     string  `db:"title" json:"title"`
	Artist    string  `db:"artist" json:"artist"`
	URL       string  `db:"url" json:"url"`
	Cover     *string `db:"cover" json:"cover"`
	CreatedAt int64   `db:"created_at" json:"createdAt"`
}

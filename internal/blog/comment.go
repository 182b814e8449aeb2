package blog

type Comment struct {
	ID        string  `db:"id" json:"id"`
	UserID    string  `db:"user_id" json:"userId"`
	PostID    string  `db:"post_id" json:"postId"`
	Content   string  `db:"content" json:"content"`
	ParentID  *string `db:"parent_id" json:"parentId"`
	CreatedAt int64   `db:"created_at" json:"createdAt"`
}

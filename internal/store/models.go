package store

import "time"

type Article struct {
	ID        int64     `json:"id"`
	Title     *string   `json:"title"` // Nullable
	Body      string    `json:"body"`
	Tags      []string  `json:"tags"` // Stored comma-joined
	CreatedAt time.Time `json:"created_at"`
}

type Comment struct {
	ID        int64     `json:"id"`
	ArticleID int64     `json:"article_id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

package types

import (
	"context"
	"time"
)

// Post is one ranked entry fetched from a subreddit. Subreddit is
// always stamped from the request that produced the post, never taken
// from the upstream payload.
type Post struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Score        int    `json:"score"`
	CommentCount int    `json:"comment_count"`
	Permalink    string `json:"permalink"`
	Subreddit    string `json:"subreddit"`
}

// Digest is the merged outcome of one successful aggregation cycle.
type Digest struct {
	Posts      []Post    `json:"posts"`
	Subreddits []string  `json:"subreddits"`
	Hash       string    `json:"hash"`
	FetchedAt  time.Time `json:"fetched_at"`
}

// Fetcher retrieves the top posts of one subreddit. Implementations
// make exactly one attempt per call.
type Fetcher interface {
	Fetch(ctx context.Context, subreddit string) ([]Post, error)
}

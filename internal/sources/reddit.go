package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"subdigest/internal/types"
)

const maxResponseBytes = 2 << 20 // 2MB

type RedditSource struct {
	baseURL    string
	userAgent  string
	timeWindow string
	limit      int
	httpClient *http.Client
}

type redditListing struct {
	Data struct {
		Children []struct {
			Data redditPost `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type redditPost struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Ups         int    `json:"ups"`
	NumComments int    `json:"num_comments"`
	Permalink   string `json:"permalink"`
}

func NewRedditSource(baseURL, userAgent, timeWindow string, limit int, timeout time.Duration) *RedditSource {
	if baseURL == "" {
		baseURL = "https://www.reddit.com"
	}
	if userAgent == "" {
		userAgent = "subdigest/1.0"
	}
	if timeWindow == "" {
		timeWindow = "week"
	}
	if limit == 0 {
		limit = 10
	}
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	return &RedditSource{
		baseURL:    baseURL,
		userAgent:  userAgent,
		timeWindow: timeWindow,
		limit:      limit,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Fetch retrieves the top posts for one subreddit. One request, one
// outcome; retrying is left to the next cycle.
func (r *RedditSource) Fetch(ctx context.Context, subreddit string) ([]types.Post, error) {
	listingURL := r.buildListingURL(subreddit)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, listingURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", r.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, types.NewSourceError(subreddit, types.KindNetwork, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, types.NewSourceError(subreddit, types.KindNotFound, nil)
	case resp.StatusCode != http.StatusOK:
		return nil, &types.SourceError{
			Subreddit:  subreddit,
			Kind:       types.KindStatus,
			StatusCode: resp.StatusCode,
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, types.NewSourceError(subreddit, types.KindNetwork, err)
	}

	var listing redditListing
	if err := json.Unmarshal(body, &listing); err != nil {
		return nil, types.NewSourceError(subreddit, types.KindParse, err)
	}

	posts := make([]types.Post, 0, len(listing.Data.Children))
	for _, child := range listing.Data.Children {
		p := child.Data
		posts = append(posts, types.Post{
			ID:           p.ID,
			Title:        p.Title,
			Score:        p.Ups,
			CommentCount: p.NumComments,
			Permalink:    p.Permalink,
			Subreddit:    subreddit,
		})
	}

	// Upstream is asked for at most `limit` posts; enforce the cap
	// anyway so a misbehaving response can't inflate the digest.
	if len(posts) > r.limit {
		posts = posts[:r.limit]
	}

	slog.Debug("Reddit source fetched posts", "subreddit", subreddit, "count", len(posts))

	return posts, nil
}

func (r *RedditSource) buildListingURL(subreddit string) string {
	query := url.Values{}
	query.Set("t", r.timeWindow)
	query.Set("limit", fmt.Sprintf("%d", r.limit))

	return fmt.Sprintf("%s/r/%s/top.json?%s", r.baseURL, url.PathEscape(subreddit), query.Encode())
}

func (r *RedditSource) Shutdown() {
	r.httpClient.CloseIdleConnections()
}

package server

import (
	"fmt"
	"time"

	"github.com/gorilla/feeds"

	"subdigest/internal/cache"
	"subdigest/internal/types"
	"subdigest/internal/utils"
)

const (
	feedTypeRSS  = "rss"
	feedTypeAtom = "atom"
)

type feedCacheKey struct {
	DigestHash string
	FeedType   string
}

func (k feedCacheKey) String() string {
	return fmt.Sprintf("%s:%s", k.DigestHash, k.FeedType)
}

// feedRenderer turns a digest into RSS/Atom documents. Rendered
// documents are cached keyed by the digest hash, so a new digest
// naturally invalidates old entries.
type feedRenderer struct {
	feedSize int
	rendered *cache.Cache[feedCacheKey, string]
}

func newFeedRenderer(feedSize int) *feedRenderer {
	return &feedRenderer{
		feedSize: feedSize,
		rendered: cache.NewCache[feedCacheKey, string](cache.Config{TTL: 1 * time.Hour}, func(k feedCacheKey) string {
			return k.String()
		}),
	}
}

func (f *feedRenderer) Render(digest *types.Digest, feedType string) (string, string, error) {
	key := feedCacheKey{DigestHash: digest.Hash, FeedType: feedType}
	contentType := contentTypeFor(feedType)

	if cached, found := f.rendered.Get(key); found {
		return cached, contentType, nil
	}

	feed := f.buildFeed(digest)

	var body string
	var err error
	switch feedType {
	case feedTypeAtom:
		body, err = feed.ToAtom()
	default:
		body, err = feed.ToRss()
	}
	if err != nil {
		return "", "", fmt.Errorf("failed to generate %s feed: %w", feedType, err)
	}

	f.rendered.Set(key, body)

	return body, contentType, nil
}

func (f *feedRenderer) buildFeed(digest *types.Digest) *feeds.Feed {
	posts := digest.Posts
	if len(posts) > f.feedSize {
		posts = posts[:f.feedSize]
	}

	items := make([]*feeds.Item, 0, len(posts))
	for _, p := range posts {
		link := "https://www.reddit.com" + p.Permalink

		items = append(items, &feeds.Item{
			Id:          fmt.Sprintf("%s/%s", p.Subreddit, p.ID),
			Title:       utils.CleanText(p.Title),
			Link:        &feeds.Link{Href: link},
			Description: fmt.Sprintf("r/%s · %d points · %d comments", p.Subreddit, p.Score, p.CommentCount),
			Created:     digest.FetchedAt,
		})
	}

	return &feeds.Feed{
		Title:       "subdigest — top posts of the week",
		Link:        &feeds.Link{Href: "http://localhost/"},
		Description: "Weekly top posts from r/" + joinSubreddits(digest.Subreddits),
		Created:     digest.FetchedAt,
		Items:       items,
	}
}

func contentTypeFor(feedType string) string {
	if feedType == feedTypeAtom {
		return "application/atom+xml; charset=utf-8"
	}
	return "application/rss+xml; charset=utf-8"
}

func joinSubreddits(subreddits []string) string {
	out := ""
	for i, s := range subreddits {
		if i > 0 {
			out += ", r/"
		}
		out += s
	}
	return out
}

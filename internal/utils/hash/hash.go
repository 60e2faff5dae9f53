package hash

import (
	"crypto/sha256"
	"fmt"
	"strings"

	"subdigest/internal/types"
)

type Hash struct {
	data []byte
}

func NewHash(data []byte) Hash {
	return Hash{data: data}
}

func (h Hash) ComputeHash() string {
	hash := sha256.Sum256(h.data)
	return fmt.Sprintf("%x", hash)
}

// Posts computes a stable identity for a digest: the ordered list of
// (subreddit, id) pairs. Two cycles that fetched the same posts in the
// same order hash identically.
func Posts(posts []types.Post) string {
	var b strings.Builder
	for _, p := range posts {
		b.WriteString(p.Subreddit)
		b.WriteByte('/')
		b.WriteString(p.ID)
		b.WriteByte('\n')
	}
	return NewHash([]byte(b.String())).ComputeHash()
}

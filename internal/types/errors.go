package types

import (
	"errors"
	"fmt"
)

// ErrNoSubreddits is returned when an aggregation is requested with an
// empty (or all-blank) subreddit list. No network call is made.
var ErrNoSubreddits = errors.New("at least one subreddit required")

type FailureKind string

const (
	KindNetwork  FailureKind = "network"
	KindNotFound FailureKind = "not_found"
	KindStatus   FailureKind = "status"
	KindParse    FailureKind = "parse"
)

// SourceError describes why a single subreddit fetch failed.
type SourceError struct {
	Subreddit  string
	Kind       FailureKind
	StatusCode int
	Err        error
}

func (e *SourceError) Error() string {
	switch e.Kind {
	case KindNotFound:
		return fmt.Sprintf("r/%s: subreddit not found", e.Subreddit)
	case KindStatus:
		return fmt.Sprintf("r/%s: unexpected status %d", e.Subreddit, e.StatusCode)
	case KindParse:
		return fmt.Sprintf("r/%s: failed to parse response: %v", e.Subreddit, e.Err)
	default:
		return fmt.Sprintf("r/%s: network error: %v", e.Subreddit, e.Err)
	}
}

func (e *SourceError) Unwrap() error {
	return e.Err
}

func NewSourceError(subreddit string, kind FailureKind, err error) *SourceError {
	return &SourceError{
		Subreddit: subreddit,
		Kind:      kind,
		Err:       err,
	}
}

func IsNotFound(err error) bool {
	var se *SourceError
	return errors.As(err, &se) && se.Kind == KindNotFound
}

func AsSourceError(err error) (*SourceError, bool) {
	var se *SourceError
	ok := errors.As(err, &se)
	return se, ok
}

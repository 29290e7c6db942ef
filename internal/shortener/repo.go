package shortener

import (
	"context"
	"errors"
)

var (
	ErrCodeTaken    = errors.New("code already exists")
	ErrLinkNotFound = errors.New("link not found")
	ErrLinkExpired  = errors.New("link expired")
)

// ClickGuard inspects a link before its click is counted. A non-nil error
// aborts the update and is returned unchanged by TrackClick.
type ClickGuard func(Link) error

// Repository defines the persistence operations for Link records.
// Implementations must make each method atomic with respect to concurrent
// callers: no insert may overwrite an existing code and no click may be lost.
type Repository interface {
	// CreateLink inserts link if its code is free, failing with an
	// errx.Conflict otherwise. The existing record is left untouched.
	CreateLink(ctx context.Context, link Link) (Link, error)

	// GetLinkByCode returns the link for code, expired ones included.
	GetLinkByCode(ctx context.Context, code string) (Link, error)

	// TrackClick runs guard against the current record and, if it passes,
	// increments Clicks by one and persists it before returning.
	TrackClick(ctx context.Context, code string, guard ClickGuard) (Link, error)
}

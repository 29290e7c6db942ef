package shortener

import (
	"time"

	"github.com/sundayezeilo/shortlink/internal/expiry"
)

// Link is the persisted short-link record. Only Clicks changes after creation.
type Link struct {
	OriginalURL string
	Code        string
	Clicks      int64
	CreatedAt   time.Time
	Expiry      time.Time
}

// IsExpired reports whether the link stopped serving redirects at now.
func (l Link) IsExpired(now time.Time) bool {
	return expiry.IsExpired(l.Expiry, now)
}

// CreatedLink is a new link together with its fully qualified short URL.
type CreatedLink struct {
	Link
	ShortURL string
}

package cachesync

import "errors"

var (
	// ErrInvalidConfig is returned by NewManager for unusable entity settings
	ErrInvalidConfig = errors.New("cachesync: invalid entity configuration")

	// ErrTooManyPages aborts a crawl whose upstream never reports the last page
	ErrTooManyPages = errors.New("cachesync: crawl exceeded max pages")

	// ErrCrawlInProgress is returned when a background refresh cannot start
	// because another crawl holds the key
	ErrCrawlInProgress = errors.New("cachesync: crawl already in progress")
)

package genealogy

import (
	"context"
	"time"
)

// Fetcher retrieves the document behind a locator, retrying transient
// failures internally.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (Document, error)
}

// Extractor turns a fetched document into a ScrapeRecord.
type Extractor interface {
	Extract(doc Document) (*ScrapeRecord, error)
}

// Oracle answers read-only existence questions against durable storage.
// The answers may be stale with respect to concurrent visits; callers
// must treat them as hints, not locks.
type Oracle interface {
	NodeExists(ctx context.Context, id int) (bool, error)
	EdgeExists(ctx context.Context, advisor, advisee int) (bool, error)
}

// Ingestor commits one node's record, its one-hop neighbors and edges
// in a single transaction.
type Ingestor interface {
	Ingest(ctx context.Context, id int, rec *ScrapeRecord) error
}

// RetryPolicy controls the fetch retry loop.
type RetryPolicy interface {
	MaxAttempts() int
	Backoff(attempt int) time.Duration
}

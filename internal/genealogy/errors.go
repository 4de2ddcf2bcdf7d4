package genealogy

import (
	"errors"
	"fmt"
)

// FetchExhaustedError reports that every fetch attempt for a locator
// failed. The visit is abandoned; nothing was written, so the same
// identifier is eligible for retry on a later run.
type FetchExhaustedError struct {
	Locator  string
	Attempts int
	Err      error
}

func (e *FetchExhaustedError) Error() string {
	return fmt.Sprintf("fetch exhausted after %d attempts for %s: %v", e.Attempts, e.Locator, e.Err)
}

func (e *FetchExhaustedError) Unwrap() error { return e.Err }

// IsFetchExhausted reports whether err wraps a FetchExhaustedError.
func IsFetchExhausted(err error) bool {
	var fe *FetchExhaustedError
	return errors.As(err, &fe)
}

// ExtractionError reports a document that lacked the minimum required
// field (the node name). Absent optional fields are not errors.
type ExtractionError struct {
	URL    string
	Reason string
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s: %s", e.URL, e.Reason)
}

// IngestError wraps any database failure during a node's transaction.
// The transaction was rolled back in full.
type IngestError struct {
	NodeID int
	Err    error
}

func (e *IngestError) Error() string {
	return fmt.Sprintf("ingest node %d: %v", e.NodeID, e.Err)
}

func (e *IngestError) Unwrap() error { return e.Err }

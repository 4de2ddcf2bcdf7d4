package genealogy

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFetchExhaustedErrorWrapsCause(t *testing.T) {
	t.Parallel()

	cause := errors.New("connection refused")
	err := &FetchExhaustedError{Locator: "https://x/id.php?id=7", Attempts: 3, Err: cause}

	require.Contains(t, err.Error(), "3 attempts")
	require.Contains(t, err.Error(), "id=7")
	require.ErrorIs(t, err, cause)
}

func TestIsFetchExhaustedSeesThroughWrapping(t *testing.T) {
	t.Parallel()

	inner := &FetchExhaustedError{Locator: "https://x/id.php?id=7", Attempts: 3}
	wrapped := fmt.Errorf("visit 7: %w", inner)

	require.True(t, IsFetchExhausted(wrapped))
	require.False(t, IsFetchExhausted(errors.New("unrelated")))
}

func TestIngestErrorUnwraps(t *testing.T) {
	t.Parallel()

	cause := errors.New("deadlock detected")
	err := &IngestError{NodeID: 100, Err: cause}

	require.Contains(t, err.Error(), "100")
	require.ErrorIs(t, err, cause)
}

package logging

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewDevelopment(t *testing.T) {
	t.Parallel()

	logger, err := New(Options{Development: true, Service: "genealogy-crawler"})
	require.NoError(t, err)
	require.NotNil(t, logger)
}

func TestNewProduction(t *testing.T) {
	t.Parallel()

	logger, err := New(Options{})
	require.NoError(t, err)
	require.NotNil(t, logger)
}

func TestSyncToleratesNil(t *testing.T) {
	t.Parallel()

	Sync(nil)

	logger, err := New(Options{Development: true})
	require.NoError(t, err)
	Sync(logger)
}

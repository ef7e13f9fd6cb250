package sqlite_test

import (
	"path/filepath"
	"testing"

	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/store"
	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/store/drivers/sqlite"
	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/store/storetest"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) store.Store {
	t.Helper()
	s, err := sqlite.NewStore(filepath.Join(t.TempDir(), "gatekeeper.db"))
	require.NoError(t, err)
	require.NoError(t, s.ApplyMigrations())
	return s
}

func TestConformance(t *testing.T) {
	storetest.Run(t, newStore)
}

func TestApplyMigrationsIsRepeatable(t *testing.T) {
	s := newStore(t)
	defer s.Close()

	require.NoError(t, s.ApplyMigrations())
}

func TestInMemory(t *testing.T) {
	s, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.ApplyMigrations())

	saved, err := s.Accounts().Save(t.Context(), storetest.Fixture("alice"))
	require.NoError(t, err)
	require.Equal(t, int64(1), saved.Version)
}

package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

// openTestStore opens a Store backed by temp-dir SQLite files and runs
// Migrate, mirroring the teacher's openSchemaTestDB helper pattern.
func openTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(dir, DefaultPragmaOptions())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func TestOpen_CreatesFourDatabases(t *testing.T) {
	s := openTestStore(t)
	for _, name := range []DBName{DBMain, DBSettings, DBHistory, DBIndex} {
		require.NotNil(t, s.DB(name), "expected connection for %s", name)
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Migrate(context.Background()))

	ok, err := s.HasTable(context.Background(), DBMain, "items")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = s.HasTable(context.Background(), DBIndex, "index_status")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestMigrate_SeedsSingletonIndexStatus(t *testing.T) {
	s := openTestStore(t)
	st, err := s.GetIndexStatus(context.Background())
	require.NoError(t, err)
	require.Equal(t, PhaseIdle, st.Status)
	require.Zero(t, st.ProcessedFiles)
}

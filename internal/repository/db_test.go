package repository

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWithPragmas(t *testing.T) {
	require.Equal(t, "petcare.db?_busy_timeout=5000&_journal_mode=WAL", withPragmas("petcare.db"))
	require.Equal(t, "file:x?mode=memory&cache=shared&_busy_timeout=5000", withPragmas("file:x?mode=memory&cache=shared"))
	require.Equal(t, "a.db?_journal_mode=DELETE&_busy_timeout=5000", withPragmas("a.db?_journal_mode=DELETE"))
	require.Equal(t, "a.db?_busy_timeout=1&_journal_mode=WAL", withPragmas("a.db?_busy_timeout=1&_journal_mode=WAL"))
}

func TestNewDBFileSettings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "petcare.db")
	db, err := NewDB(path)
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.FileExists(t, path)

	var mode string
	require.NoError(t, db.Raw("PRAGMA journal_mode").Scan(&mode).Error)
	require.Equal(t, "wal", mode)

	var timeout int
	require.NoError(t, db.Raw("PRAGMA busy_timeout").Scan(&timeout).Error)
	require.Equal(t, busyTimeoutMillis, timeout)
}

package databases

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithPragmas(t *testing.T) {
	assert.Equal(t, "a.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_time_format=sqlite", withPragmas("a.db"))
	assert.Equal(t, "file:a.db?mode=rwc&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_time_format=sqlite", withPragmas("file:a.db?mode=rwc"))
}

func TestRunAndShutdown(t *testing.T) {
	db := New(filepath.Join(t.TempDir(), "test.db"))
	assert.False(t, db.IsConnected())

	require.NoError(t, db.Run())
	assert.True(t, db.IsConnected())

	var foreignKeys int
	require.NoError(t, db.GetDB().Raw("PRAGMA foreign_keys").Scan(&foreignKeys).Error)
	assert.Equal(t, 1, foreignKeys)

	db.Shutdown()
	assert.False(t, db.IsConnected())
}

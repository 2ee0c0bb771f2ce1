package db

import (
	"path/filepath"
	"testing"

	"github.com/kasuganosora/allyai/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_Memory(t *testing.T) {
	gdb, err := Open(config.DatabaseConfig{Mode: ModeMemory})
	require.NoError(t, err)
	require.NoError(t, gdb.Exec("CREATE TABLE t (id INTEGER)").Error)
	require.NoError(t, gdb.Exec("INSERT INTO t VALUES (1)").Error)

	var n int64
	require.NoError(t, gdb.Raw("SELECT COUNT(*) FROM t").Scan(&n).Error)
	assert.Equal(t, int64(1), n)
}

func TestOpen_SQLiteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "allyai.db")
	gdb, err := Open(config.DatabaseConfig{Mode: ModeSQLite, SQLitePath: path})
	require.NoError(t, err)
	assert.NoError(t, gdb.Exec("CREATE TABLE t (id INTEGER)").Error)
}

func TestOpen_UnknownMode(t *testing.T) {
	_, err := Open(config.DatabaseConfig{Mode: "embedded_xml"})
	assert.Error(t, err)
}

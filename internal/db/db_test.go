package db

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRebind(t *testing.T) {
	pg := &DB{Driver: DriverPostgres}
	require.Equal(t, "UPDATE users SET a = $1 WHERE id = $2", pg.Rebind("UPDATE users SET a = ? WHERE id = ?"))

	lite := &DB{Driver: DriverSQLite}
	require.Equal(t, "SELECT ? FROM x", lite.Rebind("SELECT ? FROM x"))
}

func TestOpenRunsMigrationsOnce(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "gloop.db")

	database, err := Open(ctx, DriverSQLite, path, nil)
	require.NoError(t, err)
	require.NoError(t, database.Close())

	database, err = Open(ctx, DriverSQLite, path, nil)
	require.NoError(t, err)
	defer database.Close()

	var count int
	require.NoError(t, database.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count))
	require.Equal(t, len(migrations), count)
}

func TestIsUniqueViolation(t *testing.T) {
	ctx := context.Background()
	database, err := Open(ctx, DriverSQLite, filepath.Join(t.TempDir(), "gloop.db"), nil)
	require.NoError(t, err)
	defer database.Close()

	insert := `INSERT INTO users (id, email, first_name, last_name) VALUES (?, ?, ?, ?)`
	_, err = database.Exec(insert, "a", "dup@example.com", "A", "B")
	require.NoError(t, err)
	_, err = database.Exec(insert, "b", "dup@example.com", "C", "D")
	require.Error(t, err)
	require.True(t, IsUniqueViolation(err))
	require.False(t, IsUniqueViolation(context.Canceled))
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), "mysql", "", nil)
	require.Error(t, err)
}

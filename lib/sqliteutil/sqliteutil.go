package sqliteutil

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"
)

// OpenDB opens a sqlite database at the given path (or ":memory:") and
// applies the given schema. Paths starting with "libsql://", "ws://" or
// "http(s)://" are opened through the libsql driver instead, which allows
// pointing the same config value at a remote turso/libsql instance.
func OpenDB(schema, path string) (*sql.DB, error) {
	driver := "sqlite"
	dsn := path
	if isRemote(path) {
		driver = "libsql"
	}

	database, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	_, err = database.Exec(schema)
	if err != nil && !strings.Contains(err.Error(), "already exists") {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return database, nil
}

func isRemote(path string) bool {
	for _, prefix := range []string{"libsql://", "ws://", "wss://", "http://", "https://"} {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

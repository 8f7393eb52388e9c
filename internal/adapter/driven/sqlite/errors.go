package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	moderncsqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/ericfisherdev/signproxy/internal/domain/port/driven"
)

// classify tags SQLite failures with the port-level storage sentinels so
// callers can tell "disk full" and "database gone" apart from query bugs.
// Errors it does not recognize are returned unchanged.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, driven.ErrStorageUnavailable) || errors.Is(err, driven.ErrQuotaExceeded) {
		return err
	}

	var sqliteErr *moderncsqlite.Error
	if errors.As(err, &sqliteErr) {
		// Extended result codes carry the primary code in the low byte.
		switch sqliteErr.Code() & 0xff {
		case sqlite3.SQLITE_FULL:
			return fmt.Errorf("%w: %w", driven.ErrQuotaExceeded, err)
		case sqlite3.SQLITE_CANTOPEN,
			sqlite3.SQLITE_READONLY,
			sqlite3.SQLITE_IOERR,
			sqlite3.SQLITE_BUSY,
			sqlite3.SQLITE_LOCKED,
			sqlite3.SQLITE_NOTADB,
			sqlite3.SQLITE_CORRUPT:
			return fmt.Errorf("%w: %w", driven.ErrStorageUnavailable, err)
		}
	}

	// database/sql does not export its "database is closed" error.
	if errors.Is(err, sql.ErrConnDone) || strings.Contains(err.Error(), "database is closed") {
		return fmt.Errorf("%w: %w", driven.ErrStorageUnavailable, err)
	}

	return err
}

// parseTime tries multiple SQLite datetime formats.
func parseTime(s string) (time.Time, error) {
	formats := []string{
		"2006-01-02T15:04:05Z",
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05.000",
		time.RFC3339,
		time.RFC3339Nano,
	}

	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized time format: %s", s)
}

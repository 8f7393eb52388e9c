package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ericfisherdev/signproxy/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.ArtifactStore = (*ArtifactRepo)(nil)

// ArtifactRepo is the SQLite implementation of the ArtifactStore port interface.
// Every query is scoped to the repo's namespace, so several repos can share one
// table without seeing each other's keys.
type ArtifactRepo struct {
	db         *DB
	ns         driven.Namespace
	quotaBytes int64 // 0 means unlimited.
}

// NewArtifactRepo creates an ArtifactRepo for ns. quotaBytes caps the total
// payload size held in the namespace; 0 disables the cap.
func NewArtifactRepo(db *DB, ns driven.Namespace, quotaBytes int64) *ArtifactRepo {
	return &ArtifactRepo{db: db, ns: ns, quotaBytes: quotaBytes}
}

// Namespace returns the namespace this repo is scoped to.
func (r *ArtifactRepo) Namespace() driven.Namespace {
	return r.ns
}

// Set stores value under key, replacing any previous value. Returns
// ErrQuotaExceeded when the write would push the namespace over its quota.
func (r *ArtifactRepo) Set(ctx context.Context, key string, value json.RawMessage) error {
	if !json.Valid(value) {
		return fmt.Errorf("set artifact %q: value is not valid JSON", key)
	}

	tx, err := r.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin set artifact %q: %w", key, classify(err))
	}
	defer func() { _ = tx.Rollback() }()

	size := int64(len(value))
	if r.quotaBytes > 0 {
		const usedQuery = `
			SELECT COALESCE(SUM(size), 0) FROM artifacts
			WHERE store = ? AND namespace = ? AND key <> ?
		`
		var used int64
		if err := tx.QueryRowContext(ctx, usedQuery, r.ns.Store, r.ns.Name, key).Scan(&used); err != nil {
			return fmt.Errorf("measure namespace %s: %w", r.ns, classify(err))
		}
		if used+size > r.quotaBytes {
			return fmt.Errorf("set artifact %q: %w (%d of %d bytes used)", key, driven.ErrQuotaExceeded, used, r.quotaBytes)
		}
	}

	const query = `
		INSERT INTO artifacts (store, namespace, key, value, size, updated_at)
		VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(store, namespace, key) DO UPDATE SET
			value = excluded.value,
			size = excluded.size,
			updated_at = excluded.updated_at
	`
	if _, err := tx.ExecContext(ctx, query, r.ns.Store, r.ns.Name, key, string(value), size); err != nil {
		return fmt.Errorf("set artifact %q: %w", key, classify(err))
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit artifact %q: %w", key, classify(err))
	}
	return nil
}

// Get returns the value stored under key, or ErrNotFound.
func (r *ArtifactRepo) Get(ctx context.Context, key string) (json.RawMessage, error) {
	const query = `SELECT value FROM artifacts WHERE store = ? AND namespace = ? AND key = ?`

	var value string
	err := r.db.Reader.QueryRowContext(ctx, query, r.ns.Store, r.ns.Name, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get artifact %q: %w", key, driven.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get artifact %q: %w", key, classify(err))
	}

	return json.RawMessage(value), nil
}

// Remove deletes key from the namespace. Absent keys are ignored.
func (r *ArtifactRepo) Remove(ctx context.Context, key string) error {
	const query = `DELETE FROM artifacts WHERE store = ? AND namespace = ? AND key = ?`
	if _, err := r.db.Writer.ExecContext(ctx, query, r.ns.Store, r.ns.Name, key); err != nil {
		return fmt.Errorf("remove artifact %q: %w", key, classify(err))
	}
	return nil
}

// Clear deletes every key in the namespace. Other namespaces and the settings
// table are untouched.
func (r *ArtifactRepo) Clear(ctx context.Context) error {
	const query = `DELETE FROM artifacts WHERE store = ? AND namespace = ?`
	if _, err := r.db.Writer.ExecContext(ctx, query, r.ns.Store, r.ns.Name); err != nil {
		return fmt.Errorf("clear namespace %s: %w", r.ns, classify(err))
	}
	return nil
}

// Keys lists the keys in the namespace, sorted for stable output.
func (r *ArtifactRepo) Keys(ctx context.Context) ([]string, error) {
	const query = `SELECT key FROM artifacts WHERE store = ? AND namespace = ? ORDER BY key`

	rows, err := r.db.Reader.QueryContext(ctx, query, r.ns.Store, r.ns.Name)
	if err != nil {
		return nil, fmt.Errorf("list keys in %s: %w", r.ns, classify(err))
	}
	defer rows.Close()

	keys := []string{}
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scan key: %w", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate keys: %w", classify(err))
	}

	return keys, nil
}

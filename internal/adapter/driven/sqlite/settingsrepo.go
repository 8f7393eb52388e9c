package sqlite

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"github.com/ericfisherdev/signproxy/internal/domain/model"
	"github.com/ericfisherdev/signproxy/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.SettingsStore = (*SettingsRepo)(nil)

// SettingsRepo is the SQLite implementation of the SettingsStore port interface.
// The record is stored as a single row keyed by driven.SettingsStoreName.
// When an encryption key is configured the API key is sealed with AES-256-GCM
// before write and opened after read.
type SettingsRepo struct {
	db  *DB
	key []byte // 32-byte AES-256 key; nil stores the API key unsealed.
}

// NewSettingsRepo creates a new SettingsRepo. key must be 32 bytes for AES-256-GCM,
// or nil to store the API key without encryption.
func NewSettingsRepo(db *DB, key []byte) (*SettingsRepo, error) {
	if key != nil && len(key) != 32 {
		return nil, fmt.Errorf("settings encryption key must be 32 bytes, got %d", len(key))
	}
	return &SettingsRepo{db: db, key: key}, nil
}

// Encrypted reports whether the API key is sealed at rest.
func (r *SettingsRepo) Encrypted() bool {
	return r.key != nil
}

// Get returns the stored settings, or empty defaults when nothing has been saved.
func (r *SettingsRepo) Get(ctx context.Context) (model.Settings, error) {
	s, err := r.load(ctx, r.db.Reader.QueryRowContext)
	if err != nil {
		return model.Settings{}, fmt.Errorf("get settings: %w", err)
	}
	return s, nil
}

// Update merges patch into the stored record inside a single write transaction
// and returns the merged record.
func (r *SettingsRepo) Update(ctx context.Context, patch model.SettingsPatch) (model.Settings, error) {
	tx, err := r.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return model.Settings{}, fmt.Errorf("begin settings update: %w", classify(err))
	}
	defer func() { _ = tx.Rollback() }()

	current, err := r.load(ctx, tx.QueryRowContext)
	if err != nil {
		return model.Settings{}, fmt.Errorf("update settings: %w", err)
	}

	merged := patch.Apply(current)

	storedKey, sealed, err := r.seal(merged.APIKey)
	if err != nil {
		return model.Settings{}, fmt.Errorf("update settings: %w", err)
	}

	const query = `
		INSERT INTO settings (store, api_key, api_key_sealed, api_proxy, updated_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(store) DO UPDATE SET
			api_key = excluded.api_key,
			api_key_sealed = excluded.api_key_sealed,
			api_proxy = excluded.api_proxy,
			updated_at = excluded.updated_at
	`
	if _, err := tx.ExecContext(ctx, query, driven.SettingsStoreName, storedKey, sealed, merged.APIProxy); err != nil {
		return model.Settings{}, fmt.Errorf("update settings: %w", classify(err))
	}

	saved, err := r.load(ctx, tx.QueryRowContext)
	if err != nil {
		return model.Settings{}, fmt.Errorf("reload settings: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return model.Settings{}, fmt.Errorf("commit settings update: %w", classify(err))
	}

	return saved, nil
}

// Clear deletes the stored record; subsequent reads return empty defaults.
func (r *SettingsRepo) Clear(ctx context.Context) error {
	const query = `DELETE FROM settings WHERE store = ?`
	if _, err := r.db.Writer.ExecContext(ctx, query, driven.SettingsStoreName); err != nil {
		return fmt.Errorf("clear settings: %w", classify(err))
	}
	return nil
}

type queryRowFunc func(ctx context.Context, query string, args ...any) *sql.Row

func (r *SettingsRepo) load(ctx context.Context, queryRow queryRowFunc) (model.Settings, error) {
	const query = `SELECT api_key, api_key_sealed, api_proxy, updated_at FROM settings WHERE store = ?`

	var (
		s         model.Settings
		storedKey string
		sealed    bool
		updatedAt string
	)
	err := queryRow(ctx, query, driven.SettingsStoreName).Scan(&storedKey, &sealed, &s.APIProxy, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Settings{}, nil
	}
	if err != nil {
		return model.Settings{}, classify(err)
	}

	s.APIKey, err = r.open(storedKey, sealed)
	if err != nil {
		return model.Settings{}, err
	}

	s.UpdatedAt, err = parseTime(updatedAt)
	if err != nil {
		return model.Settings{}, fmt.Errorf("parse updated_at: %w", err)
	}

	return s, nil
}

// seal encrypts plaintext when a key is configured. Empty values are never
// sealed so a cleared key reads back as empty without a key.
func (r *SettingsRepo) seal(plaintext string) (string, bool, error) {
	if r.key == nil || plaintext == "" {
		return plaintext, false, nil
	}

	gcm, err := r.gcm()
	if err != nil {
		return "", false, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", false, fmt.Errorf("rand nonce: %w", err)
	}

	// Seal appends the ciphertext to nonce, producing: nonce || ciphertext || tag.
	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(ciphertext), true, nil
}

// open reverses seal.
func (r *SettingsRepo) open(stored string, sealed bool) (string, error) {
	if !sealed {
		return stored, nil
	}
	if r.key == nil {
		return "", fmt.Errorf("%w: api key is sealed but no key is configured", driven.ErrEncryptionKeyInvalid)
	}

	data, err := base64.StdEncoding.DecodeString(stored)
	if err != nil {
		return "", fmt.Errorf("base64 decode: %w", err)
	}

	gcm, err := r.gcm()
	if err != nil {
		return "", err
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return "", errors.New("ciphertext too short")
	}

	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %w", driven.ErrEncryptionKeyInvalid, err)
	}

	return string(plaintext), nil
}

func (r *SettingsRepo) gcm() (cipher.AEAD, error) {
	block, err := aes.NewCipher(r.key)
	if err != nil {
		return nil, fmt.Errorf("aes.NewCipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cipher.NewGCM: %w", err)
	}
	return gcm, nil
}

// Package memory provides in-process implementations of the store ports for
// tests and ephemeral runs. Nothing survives the process.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/ericfisherdev/signproxy/internal/domain/model"
	"github.com/ericfisherdev/signproxy/internal/domain/port/driven"
)

// Compile-time interface satisfaction checks.
var (
	_ driven.SettingsStore = (*SettingsStore)(nil)
	_ driven.ArtifactStore = (*ArtifactStore)(nil)
)

// SettingsStore keeps the settings record behind a mutex.
type SettingsStore struct {
	mu       sync.RWMutex
	settings model.Settings
	closed   bool
}

// NewSettingsStore returns an empty SettingsStore.
func NewSettingsStore() *SettingsStore {
	return &SettingsStore{}
}

// Get returns a copy of the current record.
func (s *SettingsStore) Get(_ context.Context) (model.Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return model.Settings{}, fmt.Errorf("get settings: %w", driven.ErrStorageUnavailable)
	}
	return s.settings, nil
}

// Update merges patch under the write lock.
func (s *SettingsStore) Update(_ context.Context, patch model.SettingsPatch) (model.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return model.Settings{}, fmt.Errorf("update settings: %w", driven.ErrStorageUnavailable)
	}
	s.settings = patch.Apply(s.settings)
	s.settings.UpdatedAt = time.Now().UTC()
	return s.settings, nil
}

// Clear resets the record to empty defaults.
func (s *SettingsStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("clear settings: %w", driven.ErrStorageUnavailable)
	}
	s.settings = model.Settings{}
	return nil
}

// Close makes every later call fail with ErrStorageUnavailable.
func (s *SettingsStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// ArtifactStore is a map-backed ArtifactStore with an optional byte quota.
type ArtifactStore struct {
	mu         sync.RWMutex
	values     map[string]json.RawMessage
	used       int64
	quotaBytes int64
	closed     bool
}

// NewArtifactStore returns an empty store. quotaBytes of 0 disables the cap.
func NewArtifactStore(quotaBytes int64) *ArtifactStore {
	return &ArtifactStore{
		values:     make(map[string]json.RawMessage),
		quotaBytes: quotaBytes,
	}
}

// Set stores a copy of value under key.
func (s *ArtifactStore) Set(_ context.Context, key string, value json.RawMessage) error {
	if !json.Valid(value) {
		return fmt.Errorf("set artifact %q: value is not valid JSON", key)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("set artifact %q: %w", key, driven.ErrStorageUnavailable)
	}

	used := s.used - int64(len(s.values[key]))
	size := int64(len(value))
	if s.quotaBytes > 0 && used+size > s.quotaBytes {
		return fmt.Errorf("set artifact %q: %w (%d of %d bytes used)", key, driven.ErrQuotaExceeded, used, s.quotaBytes)
	}

	s.values[key] = append(json.RawMessage(nil), value...)
	s.used = used + size
	return nil
}

// Get returns a copy of the value under key, or ErrNotFound.
func (s *ArtifactStore) Get(_ context.Context, key string) (json.RawMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, fmt.Errorf("get artifact %q: %w", key, driven.ErrStorageUnavailable)
	}

	v, ok := s.values[key]
	if !ok {
		return nil, fmt.Errorf("get artifact %q: %w", key, driven.ErrNotFound)
	}
	return append(json.RawMessage(nil), v...), nil
}

// Remove deletes key if present.
func (s *ArtifactStore) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("remove artifact %q: %w", key, driven.ErrStorageUnavailable)
	}

	s.used -= int64(len(s.values[key]))
	delete(s.values, key)
	return nil
}

// Clear drops every key.
func (s *ArtifactStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("clear artifacts: %w", driven.ErrStorageUnavailable)
	}

	clear(s.values)
	s.used = 0
	return nil
}

// Keys returns the keys in map iteration order.
func (s *ArtifactStore) Keys(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, fmt.Errorf("list artifact keys: %w", driven.ErrStorageUnavailable)
	}

	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	return keys, nil
}

// Close makes every later call fail with ErrStorageUnavailable.
func (s *ArtifactStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

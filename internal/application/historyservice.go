package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/ericfisherdev/signproxy/internal/domain/model"
	"github.com/ericfisherdev/signproxy/internal/domain/port/driven"
)

// HistoryService stores completed research results in an ArtifactStore,
// one JSON document per artifact keyed by its ID.
type HistoryService struct {
	store  driven.ArtifactStore
	now    func() time.Time
	logger *slog.Logger
}

// NewHistoryService creates a HistoryService over store.
func NewHistoryService(store driven.ArtifactStore, logger *slog.Logger) *HistoryService {
	return &HistoryService{store: store, now: time.Now, logger: logger}
}

// Save persists a. An empty ID is replaced with a new UUID and a zero
// CreatedAt with the current time. The stored artifact is returned.
func (s *HistoryService) Save(ctx context.Context, a model.Artifact) (model.Artifact, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = s.now().UTC()
	}
	if a.Sources == nil {
		a.Sources = []string{}
	}

	data, err := json.Marshal(a)
	if err != nil {
		return model.Artifact{}, fmt.Errorf("encode artifact %s: %w", a.ID, err)
	}

	if err := s.store.Set(ctx, a.ID, data); err != nil {
		return model.Artifact{}, err
	}

	s.logger.Info("research artifact saved", "id", a.ID, "bytes", len(data))
	return a, nil
}

// Load returns the artifact with id, or an error wrapping driven.ErrNotFound.
func (s *HistoryService) Load(ctx context.Context, id string) (model.Artifact, error) {
	data, err := s.store.Get(ctx, id)
	if err != nil {
		return model.Artifact{}, err
	}

	var a model.Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return model.Artifact{}, fmt.Errorf("decode artifact %s: %w", id, err)
	}
	return a, nil
}

// List returns every stored artifact, newest first. Entries that fail to
// decode are skipped and logged rather than hiding the rest of the history.
func (s *HistoryService) List(ctx context.Context) ([]model.Artifact, error) {
	keys, err := s.store.Keys(ctx)
	if err != nil {
		return nil, err
	}

	artifacts := make([]model.Artifact, 0, len(keys))
	for _, key := range keys {
		a, err := s.Load(ctx, key)
		if errors.Is(err, driven.ErrNotFound) {
			// Removed between Keys and Load.
			continue
		}
		if err != nil {
			if errors.Is(err, driven.ErrStorageUnavailable) {
				return nil, err
			}
			s.logger.Warn("skipping unreadable artifact", "id", key, "error", err)
			continue
		}
		artifacts = append(artifacts, a)
	}

	sort.SliceStable(artifacts, func(i, j int) bool {
		if artifacts[i].CreatedAt.Equal(artifacts[j].CreatedAt) {
			return artifacts[i].ID < artifacts[j].ID
		}
		return artifacts[i].CreatedAt.After(artifacts[j].CreatedAt)
	})

	return artifacts, nil
}

// Delete removes the artifact with id.
func (s *HistoryService) Delete(ctx context.Context, id string) error {
	return s.store.Remove(ctx, id)
}

// ClearAll removes the whole research history. Settings are stored elsewhere
// and are not affected.
func (s *HistoryService) ClearAll(ctx context.Context) error {
	if err := s.store.Clear(ctx); err != nil {
		return err
	}
	s.logger.Info("research history cleared")
	return nil
}

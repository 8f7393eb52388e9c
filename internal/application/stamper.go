package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ericfisherdev/signproxy/internal/domain/model"
	"github.com/ericfisherdev/signproxy/internal/domain/port/driven"
	"github.com/ericfisherdev/signproxy/internal/signature"
)

// ErrNoCredential is returned when a request must be signed but no API key
// has been saved. It is a local condition, distinct from any upstream failure.
var ErrNoCredential = errors.New("no api key configured")

// Stamper produces (timestamp, signature) pairs for outgoing proxy requests
// using the API key held by the settings store. The key is read on every call,
// so credential changes take effect without a restart.
type Stamper struct {
	settings driven.SettingsStore
	engine   signature.Engine
	now      func() time.Time
}

// NewStamper creates a Stamper. now defaults to time.Now when nil.
func NewStamper(settings driven.SettingsStore, engine signature.Engine, now func() time.Time) *Stamper {
	if now == nil {
		now = time.Now
	}
	return &Stamper{settings: settings, engine: engine, now: now}
}

// Stamp signs the current time with the stored API key.
func (s *Stamper) Stamp(ctx context.Context) (model.Stamp, error) {
	cfg, err := s.settings.Get(ctx)
	if err != nil {
		return model.Stamp{}, fmt.Errorf("load api key: %w", err)
	}
	return s.StampWith(cfg)
}

// StampWith signs the current time with the API key in cfg, for callers that
// already hold the settings record.
func (s *Stamper) StampWith(cfg model.Settings) (model.Stamp, error) {
	if !cfg.HasAPIKey() {
		return model.Stamp{}, ErrNoCredential
	}

	ts := signature.Now(s.now())
	return model.Stamp{
		Timestamp: ts,
		Signature: s.engine.Sign(cfg.APIKey, ts),
	}, nil
}

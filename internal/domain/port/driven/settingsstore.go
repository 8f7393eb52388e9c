package driven

import (
	"context"

	"github.com/ericfisherdev/signproxy/internal/domain/model"
)

// SettingsStoreName is the fixed name the settings record is persisted under.
const SettingsStoreName = "setting"

// SettingsStore defines the driven port for the persisted proxy settings.
// The record always exists from the caller's perspective: Get returns empty
// defaults until Update is first called.
type SettingsStore interface {
	Get(ctx context.Context) (model.Settings, error)

	// Update merges the non-nil fields of patch into the stored record and
	// returns the merged result. The merge is atomic: concurrent readers see
	// either the old or the new record, never a mix.
	Update(ctx context.Context, patch model.SettingsPatch) (model.Settings, error)

	// Clear resets the record to empty defaults. Only explicit user action
	// should call it.
	Clear(ctx context.Context) error
}

package httphandler

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/ericfisherdev/signproxy/internal/domain/model"
)

// GetSettings returns the proxy endpoint and whether an API key is stored.
// The key itself is never returned.
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	s, err := h.settings.Get(r.Context())
	if err != nil {
		h.writeStoreError(w, "failed to get settings", err)
		return
	}
	writeJSON(w, http.StatusOK, toSettingsResponse(s))
}

// UpdateSettings merges the supplied fields into the stored settings.
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req UpdateSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	patch := model.SettingsPatch{APIKey: req.APIKey}
	if req.APIProxy != nil {
		proxy := strings.TrimSpace(*req.APIProxy)
		if proxy != "" && !isValidProxyURL(proxy) {
			writeError(w, http.StatusBadRequest, "api_proxy must be an absolute http or https URL")
			return
		}
		patch.APIProxy = &proxy
	}

	if patch.IsEmpty() {
		writeError(w, http.StatusBadRequest, "no settings supplied")
		return
	}

	saved, err := h.settings.Update(r.Context(), patch)
	if err != nil {
		h.writeStoreError(w, "failed to update settings", err)
		return
	}

	h.logger.Info("settings updated",
		"api_key_changed", req.APIKey != nil,
		"api_proxy", saved.APIProxy,
	)
	writeJSON(w, http.StatusOK, toSettingsResponse(saved))
}

// ClearSettings resets the stored settings to empty defaults.
func (h *Handler) ClearSettings(w http.ResponseWriter, r *http.Request) {
	if err := h.settings.Clear(r.Context()); err != nil {
		h.writeStoreError(w, "failed to clear settings", err)
		return
	}
	h.logger.Info("settings cleared")
	w.WriteHeader(http.StatusNoContent)
}

func isValidProxyURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

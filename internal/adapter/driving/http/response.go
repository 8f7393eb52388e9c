package httphandler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ericfisherdev/signproxy/internal/domain/model"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error string `json:"error"`
}

// HealthResponse is the JSON body of the health endpoint.
type HealthResponse struct {
	Status string `json:"status"`
}

// SettingsResponse is the JSON representation of the stored settings.
// The API key is reduced to a presence flag.
type SettingsResponse struct {
	APIProxy  string `json:"api_proxy"`
	HasAPIKey bool   `json:"has_api_key"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

// UpdateSettingsRequest is the JSON body of a partial settings update.
// Omitted fields keep their stored value.
type UpdateSettingsRequest struct {
	APIKey   *string `json:"api_key"`
	APIProxy *string `json:"api_proxy"`
}

// ArtifactResponse is the JSON representation of a research artifact.
type ArtifactResponse struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Question  string   `json:"question"`
	Report    string   `json:"report"`
	Sources   []string `json:"sources"`
	CreatedAt string   `json:"created_at"`
}

// SaveArtifactRequest is the JSON body for storing a research result.
type SaveArtifactRequest struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Question string   `json:"question"`
	Report   string   `json:"report"`
	Sources  []string `json:"sources"`
}

// StampResponse carries a signature and the timestamp it was computed for.
type StampResponse struct {
	Timestamp int64  `json:"timestamp"`
	Signature string `json:"signature"`
}

func toSettingsResponse(s model.Settings) SettingsResponse {
	resp := SettingsResponse{
		APIProxy:  s.APIProxy,
		HasAPIKey: s.HasAPIKey(),
	}
	if !s.UpdatedAt.IsZero() {
		resp.UpdatedAt = s.UpdatedAt.UTC().Format(time.RFC3339)
	}
	return resp
}

func toArtifactResponse(a model.Artifact) ArtifactResponse {
	sources := a.Sources
	if sources == nil {
		sources = []string{}
	}
	return ArtifactResponse{
		ID:        a.ID,
		Title:     a.Title,
		Question:  a.Question,
		Report:    a.Report,
		Sources:   sources,
		CreatedAt: a.CreatedAt.UTC().Format(time.RFC3339),
	}
}

package model

import "time"

// Settings is the persisted proxy configuration. APIKey is the shared secret
// used to sign proxy requests and must never be logged. APIProxy is the base
// URL of the proxy gateway.
type Settings struct {
	APIKey    string
	APIProxy  string
	UpdatedAt time.Time
}

// HasAPIKey reports whether a shared secret has been configured.
func (s Settings) HasAPIKey() bool {
	return s.APIKey != ""
}

// SettingsPatch describes a partial update. Nil fields keep their stored value.
type SettingsPatch struct {
	APIKey   *string
	APIProxy *string
}

// Apply returns s with the non-nil fields of p merged in.
func (p SettingsPatch) Apply(s Settings) Settings {
	if p.APIKey != nil {
		s.APIKey = *p.APIKey
	}
	if p.APIProxy != nil {
		s.APIProxy = *p.APIProxy
	}
	return s
}

// IsEmpty reports whether the patch changes nothing.
func (p SettingsPatch) IsEmpty() bool {
	return p.APIKey == nil && p.APIProxy == nil
}

package model

import "time"

// BackupConfig identifies which provider factory to use and carries the
// provider-specific settings (credentials, repository, bucket, prefix).
// Admin-managed; the core only ever reads it.
type BackupConfig struct {
	ID        string         `json:"id"`
	Provider  string         `json:"provider"`
	Name      string         `json:"name"`
	Active    bool           `json:"active"`
	Settings  map[string]any `json:"settings"`
	Schedule  *string        `json:"schedule,omitempty"`
	Retention *int           `json:"retention,omitempty"`
	Filters   []string       `json:"filters,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// SettingString returns a string-typed setting, or "" when absent or of
// another type.
func (c *BackupConfig) SettingString(key string) string {
	if v, ok := c.Settings[key].(string); ok {
		return v
	}
	return ""
}

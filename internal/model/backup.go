package model

import "time"

const (
	BackupTypeFull         = "full"
	BackupTypeIncremental  = "incremental"
	BackupTypeDifferential = "differential"
)

// BackupMetadata is the canonical description of one backup. For the
// GitHub provider it is serialized verbatim as the branch's
// metadata.json; for the record store it maps onto the backups table.
type BackupMetadata struct {
	ID             string         `json:"id"`
	SiteID         string         `json:"siteId"`
	Name           string         `json:"name"`
	Created        time.Time      `json:"created"`
	Size           int64          `json:"size,omitempty"`
	FileCount      int            `json:"fileCount,omitempty"`
	ChangedFiles   int            `json:"changedFiles,omitempty"`
	Type           string         `json:"type"`
	ParentBackupID string         `json:"parentBackupId,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// HasParent reports whether this backup depends on an ancestor for
// restoration.
func (m *BackupMetadata) HasParent() bool {
	return m.Type != BackupTypeFull && m.ParentBackupID != ""
}

// Backup is the persisted record of a backup operation. Immutable after
// creation except for status and size fields written back on completion.
type Backup struct {
	BackupMetadata

	ConfigID      string     `json:"config_id"`
	Provider      string     `json:"provider"`
	Status        string     `json:"status"`
	StatusMessage *string    `json:"status_message,omitempty"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

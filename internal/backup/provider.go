// Package backup defines the storage-provider contract every backend
// implements, the registry that constructs and caches provider
// instances, and the resolver that reassembles full/incremental backup
// chains.
package backup

import (
	"context"

	"github.com/wpvault/wpvault/internal/model"
)

// Provider is the capability contract implemented identically by every
// storage backend. Expected failure modes (connection test failed,
// backup not found, empty file set) come back as unsuccessful results,
// not errors; the route layer never unwraps provider internals.
type Provider interface {
	// ID returns the configuration id this instance was built from.
	ID() string
	Config() *model.BackupConfig

	// Initialize prepares the backend (validates credentials, creates
	// the base repository or bucket). Idempotent across repeated calls.
	Initialize(ctx context.Context) error

	TestConnection(ctx context.Context) ConnectionResult
	CreateBackup(ctx context.Context, opts CreateOptions) CreateResult
	ListBackups(ctx context.Context, filter ListFilter) ListResult
	// GetBackup returns nil with no error when the backup does not exist.
	GetBackup(ctx context.Context, id string) (*model.BackupMetadata, error)
	DeleteBackup(ctx context.Context, id string) OpResult
	RestoreBackup(ctx context.Context, id string, opts RestoreOptions) RestoreResult
	DownloadFile(ctx context.Context, backupID, path string) FileResult
}

type ConnectionResult struct {
	Success bool           `json:"success"`
	Message string         `json:"message,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// CreateOptions describes one backup operation.
type CreateOptions struct {
	SiteID string `json:"siteId"`
	// Name overrides the generated backup name. Optional.
	Name string `json:"name,omitempty"`
	// Type is full, incremental or differential. Defaults to full.
	Type           string         `json:"type,omitempty"`
	ParentBackupID string         `json:"parentBackupId,omitempty"`
	Files          []string       `json:"files"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// Location identifies where a backup landed.
type Location struct {
	Provider string `json:"provider"`
	Path     string `json:"path"`
}

type CreateResult struct {
	Success   bool                  `json:"success"`
	Message   string                `json:"message,omitempty"`
	Backup    *model.BackupMetadata `json:"backup,omitempty"`
	Size      int64                 `json:"size,omitempty"`
	Locations []Location            `json:"locations,omitempty"`
}

type ListFilter struct {
	SiteID string `json:"siteId,omitempty"`
	// SortBy is "created" (default, descending) or "size".
	SortBy string `json:"sortBy,omitempty"`
	Offset int    `json:"offset,omitempty"`
	Limit  int    `json:"limit,omitempty"`
}

type ListResult struct {
	Success bool                   `json:"success"`
	Message string                 `json:"message,omitempty"`
	Backups []model.BackupMetadata `json:"backups"`
	Total   int                    `json:"total"`
}

type OpResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

type RestoreOptions struct {
	// TargetDir receives the extracted files. Required.
	TargetDir string `json:"targetDir"`
	// Files limits the restore to a subset of archive paths. Optional.
	Files []string `json:"files,omitempty"`
}

type RestoreResult struct {
	Success bool           `json:"success"`
	Message string         `json:"message,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

type FileResult struct {
	Success     bool   `json:"success"`
	Message     string `json:"message,omitempty"`
	Content     []byte `json:"content,omitempty"`
	ContentType string `json:"contentType,omitempty"`
	Size        int64  `json:"size,omitempty"`
}

// Failure builds an unsuccessful OpResult from a message.
func Failure(msg string) OpResult {
	return OpResult{Success: false, Message: msg}
}

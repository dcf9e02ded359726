package request

// CreateBackupConfig holds the request body for registering a provider
// configuration.
type CreateBackupConfig struct {
	Provider  string         `json:"provider" validate:"required"`
	Name      string         `json:"name" validate:"required,min=1,max=255"`
	Active    *bool          `json:"active"`
	Settings  map[string]any `json:"settings" validate:"required"`
	Schedule  *string        `json:"schedule"`
	Retention *int           `json:"retention" validate:"omitempty,min=1"`
	Filters   []string       `json:"filters"`
}

// UpdateBackupConfig holds the request body for updating a provider
// configuration. Provider type is immutable.
type UpdateBackupConfig struct {
	Name      string         `json:"name" validate:"required,min=1,max=255"`
	Active    *bool          `json:"active"`
	Settings  map[string]any `json:"settings" validate:"required"`
	Schedule  *string        `json:"schedule"`
	Retention *int           `json:"retention" validate:"omitempty,min=1"`
	Filters   []string       `json:"filters"`
}

type CreateBackup struct {
	ConfigID       string         `json:"configId" validate:"required"`
	Name           string         `json:"name"`
	Type           string         `json:"type" validate:"omitempty,oneof=full incremental differential"`
	ParentBackupID string         `json:"parentBackupId"`
	Files          []string       `json:"files" validate:"required,min=1"`
	Metadata       map[string]any `json:"metadata"`
}

type RestoreBackup struct {
	TargetDir string   `json:"targetDir" validate:"required"`
	Files     []string `json:"files"`
}

// ConnectToken seeds the session's token for a provider, as obtained
// from the provider's authorization code flow.
type ConnectToken struct {
	AccessToken  string `json:"accessToken" validate:"required"`
	RefreshToken string `json:"refreshToken" validate:"required"`
	ExpiresIn    int64  `json:"expiresIn"`
	TokenType    string `json:"tokenType"`
}

package core

type Services struct {
	BackupConfig *BackupConfigService
	Backup       *BackupRecordService
	APIKey       *APIKeyService
}

func NewServices(db DB) *Services {
	return &Services{
		BackupConfig: NewBackupConfigService(db),
		Backup:       NewBackupRecordService(db),
		APIKey:       NewAPIKeyService(db),
	}
}

package backup

import (
	"context"
	"sync/atomic"

	"github.com/wpvault/wpvault/internal/model"
)

// fakeProvider implements Provider with configurable Initialize
// behavior for registry tests.
type fakeProvider struct {
	cfg       *model.BackupConfig
	initCalls atomic.Int64
	// failInits is the number of leading Initialize calls that fail.
	failInits int64
	initErr   error
}

func (f *fakeProvider) ID() string                  { return f.cfg.ID }
func (f *fakeProvider) Config() *model.BackupConfig { return f.cfg }

func (f *fakeProvider) Initialize(ctx context.Context) error {
	n := f.initCalls.Add(1)
	if n <= f.failInits {
		return f.initErr
	}
	return nil
}

func (f *fakeProvider) TestConnection(ctx context.Context) ConnectionResult {
	return ConnectionResult{Success: true}
}

func (f *fakeProvider) CreateBackup(ctx context.Context, opts CreateOptions) CreateResult {
	return CreateResult{Success: true}
}

func (f *fakeProvider) ListBackups(ctx context.Context, filter ListFilter) ListResult {
	return ListResult{Success: true}
}

func (f *fakeProvider) GetBackup(ctx context.Context, id string) (*model.BackupMetadata, error) {
	return nil, nil
}

func (f *fakeProvider) DeleteBackup(ctx context.Context, id string) OpResult {
	return OpResult{Success: true}
}

func (f *fakeProvider) RestoreBackup(ctx context.Context, id string, opts RestoreOptions) RestoreResult {
	return RestoreResult{Success: true}
}

func (f *fakeProvider) DownloadFile(ctx context.Context, backupID, path string) FileResult {
	return FileResult{Success: true}
}

// mapLookup implements RecordLookup over a map for chain tests.
type mapLookup map[string]*model.Backup

func (m mapLookup) Lookup(ctx context.Context, id string) (*model.Backup, error) {
	return m[id], nil
}

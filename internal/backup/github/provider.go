package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/wpvault/wpvault/internal/backup"
	"github.com/wpvault/wpvault/internal/backup/archive"
	"github.com/wpvault/wpvault/internal/model"
)

// ProviderType is the registry key for this backend.
const ProviderType = "github"

const (
	branchPrefix     = "backup/"
	archiveFileName  = "archive.tar.gz"
	metadataFileName = "metadata.json"
)

// Schema is the settings contract for GitHub configs.
var Schema = backup.Schema{
	{Key: "token", Label: "Personal access token", Type: backup.FieldPassword, Required: true},
	{Key: "owner", Label: "Repository owner", Type: backup.FieldText, Required: true},
	{Key: "baseRepo", Label: "Repository name", Type: backup.FieldText, Default: "wp-backups"},
	{Key: "defaultBranch", Label: "Default branch", Type: backup.FieldText, Default: "main"},
	{Key: "prefix", Label: "Backup name prefix", Type: backup.FieldText, Default: "wp-backup-"},
}

// NewFactory returns the registry factory for GitHub providers.
// apiBaseURL is normally https://api.github.com; tests and GitHub
// Enterprise point it elsewhere.
func NewFactory(apiBaseURL string, httpClient *http.Client, logger zerolog.Logger) backup.Factory {
	return backup.Factory{
		Type:   ProviderType,
		Schema: Schema,
		New: func(cfg *model.BackupConfig) (backup.Provider, error) {
			settings := Schema.ApplyDefaults(cfg.Settings)
			p := &Provider{
				cfg:           cfg,
				owner:         settings["owner"].(string),
				baseRepo:      settings["baseRepo"].(string),
				defaultBranch: settings["defaultBranch"].(string),
				prefix:        settings["prefix"].(string),
				client:        NewClient(apiBaseURL, settings["token"].(string), httpClient, logger),
				logger:        logger.With().Str("component", "github-provider").Str("config_id", cfg.ID).Logger(),
				now:           time.Now,
			}
			return p, nil
		},
	}
}

// Provider stores backups as branches of a single GitHub repository.
// Each backup is isolated on its own branch, so concurrent backups of
// the same site never interfere.
type Provider struct {
	cfg           *model.BackupConfig
	client        *Client
	owner         string
	baseRepo      string
	defaultBranch string
	prefix        string
	logger        zerolog.Logger
	now           func() time.Time
}

func (p *Provider) ID() string                  { return p.cfg.ID }
func (p *Provider) Config() *model.BackupConfig { return p.cfg }

// Initialize validates the token and lazily creates the base
// repository. Safe to call repeatedly.
func (p *Provider) Initialize(ctx context.Context) error {
	if _, err := p.client.GetUser(ctx); err != nil {
		return fmt.Errorf("validate token: %w", err)
	}

	repo, err := p.client.GetRepo(ctx, p.owner, p.baseRepo)
	if errors.Is(err, ErrNotFound) {
		repo, err = p.client.CreateRepo(ctx, p.baseRepo)
	}
	if err != nil {
		return fmt.Errorf("ensure base repository: %w", err)
	}

	if repo.DefaultBranch != "" {
		p.defaultBranch = repo.DefaultBranch
	}
	return nil
}

func (p *Provider) TestConnection(ctx context.Context) backup.ConnectionResult {
	user, err := p.client.GetUser(ctx)
	if err != nil {
		return backup.ConnectionResult{Success: false, Message: "token validation failed: " + err.Error()}
	}

	details := map[string]any{
		"login": user.Login,
		"repo":  p.owner + "/" + p.baseRepo,
	}
	repo, err := p.client.GetRepo(ctx, p.owner, p.baseRepo)
	switch {
	case errors.Is(err, ErrNotFound):
		details["repoExists"] = false
		return backup.ConnectionResult{Success: true, Message: "repository will be created on first use", Details: details}
	case err != nil:
		return backup.ConnectionResult{Success: false, Message: "repository check failed: " + err.Error()}
	default:
		details["repoExists"] = true
		details["defaultBranch"] = repo.DefaultBranch
		return backup.ConnectionResult{Success: true, Details: details}
	}
}

func (p *Provider) CreateBackup(ctx context.Context, opts backup.CreateOptions) backup.CreateResult {
	if opts.SiteID == "" {
		return backup.CreateResult{Success: false, Message: "siteId is required"}
	}
	if len(opts.Files) == 0 {
		return backup.CreateResult{Success: false, Message: "no files to back up"}
	}
	typ := opts.Type
	if typ == "" {
		typ = model.BackupTypeFull
	}
	if typ != model.BackupTypeFull && opts.ParentBackupID == "" {
		return backup.CreateResult{Success: false, Message: typ + " backup requires parentBackupId"}
	}

	created := p.now().UTC()
	name := opts.Name
	if name == "" {
		name = p.backupName(opts.SiteID, created)
	}
	branch := branchPrefix + name

	baseRef, err := p.client.GetBranchRef(ctx, p.owner, p.baseRepo, p.defaultBranch)
	if err != nil {
		return backup.CreateResult{Success: false, Message: "resolve default branch: " + err.Error()}
	}
	if err := p.client.CreateBranch(ctx, p.owner, p.baseRepo, branch, baseRef.Object.SHA); err != nil {
		return backup.CreateResult{Success: false, Message: "create backup branch: " + err.Error()}
	}

	tmp, err := os.CreateTemp("", "wpvault-archive-*.tar.gz")
	if err != nil {
		return backup.CreateResult{Success: false, Message: "create temp archive: " + err.Error()}
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)

	size, fileCount, err := archive.Build(tmpPath, opts.Files)
	if err != nil {
		return backup.CreateResult{Success: false, Message: "build archive: " + err.Error()}
	}

	data, err := os.ReadFile(tmpPath)
	if err != nil {
		return backup.CreateResult{Success: false, Message: "read archive: " + err.Error()}
	}

	archivePath := p.archivePath(name)
	chunked := len(data) > ChunkThreshold
	if chunked {
		chunks := splitChunks(data, ChunkThreshold)
		for _, ch := range chunks {
			msg := fmt.Sprintf("add archive chunk %d/%d for %s", ch.Index, len(chunks), name)
			if err := p.client.PutFile(ctx, p.owner, p.baseRepo, branch, chunkPath(archivePath, ch.Index), msg, ch.Data); err != nil {
				// Chunks already committed stay on the branch; the
				// backup is only valid once metadata.json lands.
				return backup.CreateResult{Success: false,
					Message: fmt.Sprintf("upload chunk %d/%d: %v", ch.Index, len(chunks), err)}
			}
		}
	} else {
		if err := p.client.PutFile(ctx, p.owner, p.baseRepo, branch, archivePath, "add archive for "+name, data); err != nil {
			return backup.CreateResult{Success: false, Message: "upload archive: " + err.Error()}
		}
	}

	meta := &model.BackupMetadata{
		ID:             name,
		SiteID:         opts.SiteID,
		Name:           name,
		Created:        created,
		Size:           size,
		FileCount:      fileCount,
		Type:           typ,
		ParentBackupID: opts.ParentBackupID,
		Metadata:       opts.Metadata,
	}
	if chunked {
		if meta.Metadata == nil {
			meta.Metadata = map[string]any{}
		}
		meta.Metadata["chunks"] = (len(data) + ChunkThreshold - 1) / ChunkThreshold
	}

	metaJSON, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return backup.CreateResult{Success: false, Message: "serialize metadata: " + err.Error()}
	}
	if err := p.client.PutFile(ctx, p.owner, p.baseRepo, branch, p.metadataPath(name), "add metadata for "+name, metaJSON); err != nil {
		return backup.CreateResult{Success: false, Message: "write metadata: " + err.Error()}
	}

	p.logger.Info().
		Str("backup", name).
		Int64("size", size).
		Int("files", fileCount).
		Bool("chunked", chunked).
		Msg("backup created")

	return backup.CreateResult{
		Success:   true,
		Backup:    meta,
		Size:      size,
		Locations: []backup.Location{{Provider: ProviderType, Path: "backups/" + name}},
	}
}

func (p *Provider) ListBackups(ctx context.Context, filter backup.ListFilter) backup.ListResult {
	refs, err := p.client.ListBranchRefs(ctx, p.owner, p.baseRepo, branchPrefix)
	if err != nil {
		return backup.ListResult{Success: false, Message: "list backup branches: " + err.Error()}
	}

	var backups []model.BackupMetadata
	for _, ref := range refs {
		name := strings.TrimPrefix(ref.Ref, "refs/heads/"+branchPrefix)
		meta, err := p.readMetadata(ctx, name)
		if err != nil || meta == nil {
			// A branch without valid metadata is not a backup.
			p.logger.Debug().Str("branch", ref.Ref).Msg("skipping branch without valid metadata")
			continue
		}
		if filter.SiteID != "" && meta.SiteID != filter.SiteID {
			continue
		}
		backups = append(backups, *meta)
	}

	if filter.SortBy == "size" {
		sort.Slice(backups, func(i, j int) bool { return backups[i].Size > backups[j].Size })
	} else {
		sort.Slice(backups, func(i, j int) bool { return backups[i].Created.After(backups[j].Created) })
	}

	total := len(backups)
	if filter.Offset > 0 {
		if filter.Offset >= len(backups) {
			backups = nil
		} else {
			backups = backups[filter.Offset:]
		}
	}
	if filter.Limit > 0 && filter.Limit < len(backups) {
		backups = backups[:filter.Limit]
	}

	return backup.ListResult{Success: true, Backups: backups, Total: total}
}

func (p *Provider) GetBackup(ctx context.Context, id string) (*model.BackupMetadata, error) {
	meta, err := p.readMetadata(ctx, id)
	if err != nil {
		return nil, err
	}
	return meta, nil
}

func (p *Provider) DeleteBackup(ctx context.Context, id string) backup.OpResult {
	branch := branchPrefix + id
	_, err := p.client.GetBranchRef(ctx, p.owner, p.baseRepo, branch)
	if errors.Is(err, ErrNotFound) {
		return backup.Failure("backup not found")
	}
	if err != nil {
		return backup.Failure("locate backup branch: " + err.Error())
	}

	if err := p.client.DeleteBranch(ctx, p.owner, p.baseRepo, branch); err != nil {
		return backup.Failure("delete backup branch: " + err.Error())
	}
	p.logger.Info().Str("backup", id).Msg("backup deleted")
	return backup.OpResult{Success: true}
}

func (p *Provider) RestoreBackup(ctx context.Context, id string, opts backup.RestoreOptions) backup.RestoreResult {
	if opts.TargetDir == "" {
		return backup.RestoreResult{Success: false, Message: "targetDir is required"}
	}
	meta, err := p.readMetadata(ctx, id)
	if err != nil {
		return backup.RestoreResult{Success: false, Message: "read backup metadata: " + err.Error()}
	}
	if meta == nil {
		return backup.RestoreResult{Success: false, Message: "backup not found"}
	}

	tmpDir, err := os.MkdirTemp("", "wpvault-restore-*")
	if err != nil {
		return backup.RestoreResult{Success: false, Message: "create temp directory: " + err.Error()}
	}
	defer os.RemoveAll(tmpDir)

	data, err := p.downloadArchive(ctx, id)
	if err != nil {
		return backup.RestoreResult{Success: false, Message: "download archive: " + err.Error()}
	}

	archivePath := filepath.Join(tmpDir, archiveFileName)
	if err := os.WriteFile(archivePath, data, 0o600); err != nil {
		return backup.RestoreResult{Success: false, Message: "write archive: " + err.Error()}
	}

	extractDir := filepath.Join(tmpDir, "extract")
	if err := os.MkdirAll(extractDir, 0o755); err != nil {
		return backup.RestoreResult{Success: false, Message: "create extraction directory: " + err.Error()}
	}
	restored, err := archive.Extract(archivePath, extractDir, opts.Files)
	if err != nil {
		return backup.RestoreResult{Success: false, Message: "extract archive: " + err.Error()}
	}

	if err := archive.CopyTree(extractDir, opts.TargetDir); err != nil {
		return backup.RestoreResult{Success: false, Message: "copy restored files: " + err.Error()}
	}

	p.logger.Info().Str("backup", id).Int("files", restored).Str("target", opts.TargetDir).Msg("backup restored")
	return backup.RestoreResult{
		Success: true,
		Details: map[string]any{"restoredFiles": restored, "targetDir": opts.TargetDir},
	}
}

func (p *Provider) DownloadFile(ctx context.Context, backupID, path string) backup.FileResult {
	meta, err := p.readMetadata(ctx, backupID)
	if err != nil {
		return backup.FileResult{Success: false, Message: "read backup metadata: " + err.Error()}
	}
	if meta == nil {
		return backup.FileResult{Success: false, Message: "backup not found"}
	}

	data, err := p.downloadArchive(ctx, backupID)
	if err != nil {
		return backup.FileResult{Success: false, Message: "download archive: " + err.Error()}
	}

	content, err := archive.ExtractSingle(data, path)
	if err != nil {
		return backup.FileResult{Success: false, Message: err.Error()}
	}

	contentType := mime.TypeByExtension(filepath.Ext(path))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return backup.FileResult{
		Success:     true,
		Content:     content,
		ContentType: contentType,
		Size:        int64(len(content)),
	}
}

// downloadArchive fetches the whole serialized archive, reassembling
// chunks when the single-file form is absent. Probing walks part1,
// part2, ... until the first miss.
func (p *Provider) downloadArchive(ctx context.Context, name string) ([]byte, error) {
	branch := branchPrefix + name
	base := p.archivePath(name)

	data, err := p.client.GetFile(ctx, p.owner, p.baseRepo, branch, base)
	if err == nil {
		return data, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	var chunks []Chunk
	for i := 1; ; i++ {
		part, err := p.client.GetFile(ctx, p.owner, p.baseRepo, branch, chunkPath(base, i))
		if errors.Is(err, ErrNotFound) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("fetch chunk %d: %w", i, err)
		}
		chunks = append(chunks, Chunk{Index: i, Data: part})
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("archive not found for backup %s", name)
	}
	return reassemble(chunks)
}

func (p *Provider) readMetadata(ctx context.Context, name string) (*model.BackupMetadata, error) {
	data, err := p.client.GetFile(ctx, p.owner, p.baseRepo, branchPrefix+name, p.metadataPath(name))
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var meta model.BackupMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		// A branch with unreadable metadata does not count as a backup.
		p.logger.Warn().Str("backup", name).Err(err).Msg("unparsable backup metadata")
		return nil, nil
	}
	return &meta, nil
}

// backupName builds the deterministic timestamped name, with colons
// and dots in the timestamp replaced so it is a valid ref segment.
func (p *Provider) backupName(siteID string, created time.Time) string {
	ts := created.Format("2006-01-02T15:04:05.000Z")
	ts = strings.ReplaceAll(ts, ":", "-")
	ts = strings.ReplaceAll(ts, ".", "-")
	return p.prefix + siteID + "-" + ts
}

func (p *Provider) archivePath(name string) string {
	return "backups/" + name + "/" + archiveFileName
}

func (p *Provider) metadataPath(name string) string {
	return "backups/" + name + "/" + metadataFileName
}


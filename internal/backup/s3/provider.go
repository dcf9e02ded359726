package s3

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog"

	"github.com/wpvault/wpvault/internal/backup"
	"github.com/wpvault/wpvault/internal/backup/archive"
	"github.com/wpvault/wpvault/internal/model"
)

// ProviderType is the registry key for this backend.
const ProviderType = "s3"

const (
	archiveFileName  = "archive.tar.gz"
	metadataFileName = "metadata.json"
)

// Schema is the settings contract for S3 configs. An empty endpoint
// means AWS proper; setting one targets any S3-compatible store.
var Schema = backup.Schema{
	{Key: "accessKey", Label: "Access key ID", Type: backup.FieldText, Required: true},
	{Key: "secretKey", Label: "Secret access key", Type: backup.FieldPassword, Required: true},
	{Key: "bucket", Label: "Bucket", Type: backup.FieldText, Required: true},
	{Key: "region", Label: "Region", Type: backup.FieldText, Default: "us-east-1"},
	{Key: "endpoint", Label: "Custom endpoint", Type: backup.FieldText, Default: ""},
	{Key: "prefix", Label: "Key prefix", Type: backup.FieldText, Default: ""},
}

// api is the slice of the S3 surface the provider touches. The AWS
// client satisfies it; tests substitute an in-memory store.
type api interface {
	HeadBucket(ctx context.Context, in *awss3.HeadBucketInput, opts ...func(*awss3.Options)) (*awss3.HeadBucketOutput, error)
	CreateBucket(ctx context.Context, in *awss3.CreateBucketInput, opts ...func(*awss3.Options)) (*awss3.CreateBucketOutput, error)
	PutObject(ctx context.Context, in *awss3.PutObjectInput, opts ...func(*awss3.Options)) (*awss3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *awss3.GetObjectInput, opts ...func(*awss3.Options)) (*awss3.GetObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *awss3.ListObjectsV2Input, opts ...func(*awss3.Options)) (*awss3.ListObjectsV2Output, error)
	DeleteObjects(ctx context.Context, in *awss3.DeleteObjectsInput, opts ...func(*awss3.Options)) (*awss3.DeleteObjectsOutput, error)
}

// NewFactory returns the registry factory for S3 providers.
func NewFactory(logger zerolog.Logger) backup.Factory {
	return backup.Factory{
		Type:   ProviderType,
		Schema: Schema,
		New: func(cfg *model.BackupConfig) (backup.Provider, error) {
			settings := Schema.ApplyDefaults(cfg.Settings)
			opts := awss3.Options{
				Region: settings["region"].(string),
				Credentials: credentials.NewStaticCredentialsProvider(
					settings["accessKey"].(string), settings["secretKey"].(string), ""),
			}
			if endpoint := settings["endpoint"].(string); endpoint != "" {
				opts.BaseEndpoint = aws.String(endpoint)
				opts.UsePathStyle = true
			}
			return &Provider{
				cfg:    cfg,
				client: awss3.New(opts),
				bucket: settings["bucket"].(string),
				prefix: settings["prefix"].(string),
				logger: logger.With().Str("component", "s3-provider").Str("config_id", cfg.ID).Logger(),
				now:    time.Now,
			}, nil
		},
	}
}

// Provider stores each backup as a pair of objects under
// {prefix}backups/{name}/: the tar.gz archive and its metadata
// document. The metadata object is written last and is what makes a
// backup visible.
type Provider struct {
	cfg    *model.BackupConfig
	client api
	bucket string
	prefix string
	logger zerolog.Logger
	now    func() time.Time
}

func (p *Provider) ID() string                  { return p.cfg.ID }
func (p *Provider) Config() *model.BackupConfig { return p.cfg }

// Initialize verifies the bucket exists, creating it if the
// credentials allow.
func (p *Provider) Initialize(ctx context.Context) error {
	_, err := p.client.HeadBucket(ctx, &awss3.HeadBucketInput{Bucket: aws.String(p.bucket)})
	if err == nil {
		return nil
	}

	var nf *s3types.NotFound
	if !errors.As(err, &nf) {
		return fmt.Errorf("check bucket %s: %w", p.bucket, err)
	}

	if _, err := p.client.CreateBucket(ctx, &awss3.CreateBucketInput{Bucket: aws.String(p.bucket)}); err != nil {
		return fmt.Errorf("create bucket %s: %w", p.bucket, err)
	}
	p.logger.Info().Str("bucket", p.bucket).Msg("created bucket")
	return nil
}

func (p *Provider) TestConnection(ctx context.Context) backup.ConnectionResult {
	details := map[string]any{"bucket": p.bucket}

	_, err := p.client.HeadBucket(ctx, &awss3.HeadBucketInput{Bucket: aws.String(p.bucket)})
	var nf *s3types.NotFound
	switch {
	case errors.As(err, &nf):
		details["bucketExists"] = false
		return backup.ConnectionResult{Success: true, Message: "bucket will be created on first use", Details: details}
	case err != nil:
		return backup.ConnectionResult{Success: false, Message: "bucket check failed: " + err.Error()}
	default:
		details["bucketExists"] = true
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
		name = backupName(opts.SiteID, created)
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

	f, err := os.Open(tmpPath)
	if err != nil {
		return backup.CreateResult{Success: false, Message: "open archive: " + err.Error()}
	}
	defer f.Close()

	_, err = p.client.PutObject(ctx, &awss3.PutObjectInput{
		Bucket:      aws.String(p.bucket),
		Key:         aws.String(p.archiveKey(name)),
		Body:        f,
		ContentType: aws.String("application/gzip"),
	})
	if err != nil {
		return backup.CreateResult{Success: false, Message: "upload archive: " + err.Error()}
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
	metaJSON, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return backup.CreateResult{Success: false, Message: "serialize metadata: " + err.Error()}
	}
	_, err = p.client.PutObject(ctx, &awss3.PutObjectInput{
		Bucket:      aws.String(p.bucket),
		Key:         aws.String(p.metadataKey(name)),
		Body:        bytes.NewReader(metaJSON),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return backup.CreateResult{Success: false, Message: "write metadata: " + err.Error()}
	}

	p.logger.Info().
		Str("backup", name).
		Int64("size", size).
		Int("files", fileCount).
		Msg("backup created")

	return backup.CreateResult{
		Success:   true,
		Backup:    meta,
		Size:      size,
		Locations: []backup.Location{{Provider: ProviderType, Path: p.backupKey(name)}},
	}
}

func (p *Provider) ListBackups(ctx context.Context, filter backup.ListFilter) backup.ListResult {
	root := p.prefix + "backups/"

	var backups []model.BackupMetadata
	var token *string
	for {
		out, err := p.client.ListObjectsV2(ctx, &awss3.ListObjectsV2Input{
			Bucket:            aws.String(p.bucket),
			Prefix:            aws.String(root),
			Delimiter:         aws.String("/"),
			ContinuationToken: token,
		})
		if err != nil {
			return backup.ListResult{Success: false, Message: "list backups: " + err.Error()}
		}

		for _, cp := range out.CommonPrefixes {
			name := strings.TrimSuffix(strings.TrimPrefix(aws.ToString(cp.Prefix), root), "/")
			meta, err := p.readMetadata(ctx, name)
			if err != nil || meta == nil {
				// A key prefix without valid metadata is not a backup.
				p.logger.Debug().Str("prefix", aws.ToString(cp.Prefix)).Msg("skipping prefix without valid metadata")
				continue
			}
			if filter.SiteID != "" && meta.SiteID != filter.SiteID {
				continue
			}
			backups = append(backups, *meta)
		}

		if !aws.ToBool(out.IsTruncated) {
			break
		}
		token = out.NextContinuationToken
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
	return p.readMetadata(ctx, id)
}

func (p *Provider) DeleteBackup(ctx context.Context, id string) backup.OpResult {
	out, err := p.client.ListObjectsV2(ctx, &awss3.ListObjectsV2Input{
		Bucket: aws.String(p.bucket),
		Prefix: aws.String(p.backupKey(id) + "/"),
	})
	if err != nil {
		return backup.Failure("list backup objects: " + err.Error())
	}
	if len(out.Contents) == 0 {
		return backup.Failure("backup not found")
	}

	objects := make([]s3types.ObjectIdentifier, 0, len(out.Contents))
	for _, obj := range out.Contents {
		objects = append(objects, s3types.ObjectIdentifier{Key: obj.Key})
	}
	_, err = p.client.DeleteObjects(ctx, &awss3.DeleteObjectsInput{
		Bucket: aws.String(p.bucket),
		Delete: &s3types.Delete{Objects: objects, Quiet: aws.Bool(true)},
	})
	if err != nil {
		return backup.Failure("delete backup objects: " + err.Error())
	}
	p.logger.Info().Str("backup", id).Int("objects", len(objects)).Msg("backup deleted")
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

	archivePath := filepath.Join(tmpDir, archiveFileName)
	if err := p.downloadTo(ctx, p.archiveKey(id), archivePath); err != nil {
		return backup.RestoreResult{Success: false, Message: "download archive: " + err.Error()}
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

	data, err := p.getObject(ctx, p.archiveKey(backupID))
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

func (p *Provider) readMetadata(ctx context.Context, name string) (*model.BackupMetadata, error) {
	data, err := p.getObject(ctx, p.metadataKey(name))
	if err != nil {
		var nk *s3types.NoSuchKey
		if errors.As(err, &nk) {
			return nil, nil
		}
		return nil, err
	}

	var meta model.BackupMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		p.logger.Warn().Str("backup", name).Err(err).Msg("unparsable backup metadata")
		return nil, nil
	}
	return &meta, nil
}

func (p *Provider) getObject(ctx context.Context, key string) ([]byte, error) {
	out, err := p.client.GetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, err
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}

func (p *Provider) downloadTo(ctx context.Context, key, dst string) error {
	out, err := p.client.GetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return err
	}
	defer out.Body.Close()

	f, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, out.Body); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (p *Provider) backupKey(name string) string   { return p.prefix + "backups/" + name }
func (p *Provider) archiveKey(name string) string  { return p.backupKey(name) + "/" + archiveFileName }
func (p *Provider) metadataKey(name string) string { return p.backupKey(name) + "/" + metadataFileName }

func backupName(siteID string, created time.Time) string {
	ts := created.Format("2006-01-02T15:04:05.000Z")
	ts = strings.ReplaceAll(ts, ":", "-")
	ts = strings.ReplaceAll(ts, ".", "-")
	return "wp-backup-" + siteID + "-" + ts
}

package s3

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wpvault/wpvault/internal/backup"
	"github.com/wpvault/wpvault/internal/model"
)

// memS3 is an in-memory object store implementing the api surface.
type memS3 struct {
	mu      sync.Mutex
	buckets map[string]map[string][]byte // bucket -> key -> data
}

func newMemS3(buckets ...string) *memS3 {
	m := &memS3{buckets: map[string]map[string][]byte{}}
	for _, b := range buckets {
		m.buckets[b] = map[string][]byte{}
	}
	return m
}

func (m *memS3) HeadBucket(ctx context.Context, in *awss3.HeadBucketInput, opts ...func(*awss3.Options)) (*awss3.HeadBucketOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.buckets[aws.ToString(in.Bucket)]; !ok {
		return nil, &s3types.NotFound{}
	}
	return &awss3.HeadBucketOutput{}, nil
}

func (m *memS3) CreateBucket(ctx context.Context, in *awss3.CreateBucketInput, opts ...func(*awss3.Options)) (*awss3.CreateBucketOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.buckets[aws.ToString(in.Bucket)] = map[string][]byte{}
	return &awss3.CreateBucketOutput{}, nil
}

func (m *memS3) PutObject(ctx context.Context, in *awss3.PutObjectInput, opts ...func(*awss3.Options)) (*awss3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	bucket, ok := m.buckets[aws.ToString(in.Bucket)]
	if !ok {
		return nil, &s3types.NoSuchBucket{}
	}
	bucket[aws.ToString(in.Key)] = data
	return &awss3.PutObjectOutput{}, nil
}

func (m *memS3) GetObject(ctx context.Context, in *awss3.GetObjectInput, opts ...func(*awss3.Options)) (*awss3.GetObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	bucket, ok := m.buckets[aws.ToString(in.Bucket)]
	if !ok {
		return nil, &s3types.NoSuchBucket{}
	}
	data, ok := bucket[aws.ToString(in.Key)]
	if !ok {
		return nil, &s3types.NoSuchKey{}
	}
	return &awss3.GetObjectOutput{
		Body:          io.NopCloser(bytes.NewReader(data)),
		ContentLength: aws.Int64(int64(len(data))),
	}, nil
}

func (m *memS3) ListObjectsV2(ctx context.Context, in *awss3.ListObjectsV2Input, opts ...func(*awss3.Options)) (*awss3.ListObjectsV2Output, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	bucket, ok := m.buckets[aws.ToString(in.Bucket)]
	if !ok {
		return nil, &s3types.NoSuchBucket{}
	}

	prefix := aws.ToString(in.Prefix)
	delimiter := aws.ToString(in.Delimiter)

	var keys []string
	for key := range bucket {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	out := &awss3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}
	seen := map[string]bool{}
	for _, key := range keys {
		if delimiter != "" {
			rest := strings.TrimPrefix(key, prefix)
			if i := strings.Index(rest, delimiter); i >= 0 {
				cp := prefix + rest[:i+1]
				if !seen[cp] {
					seen[cp] = true
					out.CommonPrefixes = append(out.CommonPrefixes, s3types.CommonPrefix{Prefix: aws.String(cp)})
				}
				continue
			}
		}
		out.Contents = append(out.Contents, s3types.Object{
			Key:  aws.String(key),
			Size: aws.Int64(int64(len(bucket[key]))),
		})
	}
	return out, nil
}

func (m *memS3) DeleteObjects(ctx context.Context, in *awss3.DeleteObjectsInput, opts ...func(*awss3.Options)) (*awss3.DeleteObjectsOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	bucket, ok := m.buckets[aws.ToString(in.Bucket)]
	if !ok {
		return nil, &s3types.NoSuchBucket{}
	}
	for _, obj := range in.Delete.Objects {
		delete(bucket, aws.ToString(obj.Key))
	}
	return &awss3.DeleteObjectsOutput{}, nil
}

func newTestProvider(store *memS3, prefix string) *Provider {
	cfg := &model.BackupConfig{
		ID:       "cfg-s3",
		Provider: ProviderType,
		Name:     "s3 backups",
		Active:   true,
		Settings: map[string]any{"accessKey": "ak", "secretKey": "sk", "bucket": "wp-backups"},
	}
	return &Provider{
		cfg:    cfg,
		client: store,
		bucket: "wp-backups",
		prefix: prefix,
		logger: zerolog.Nop(),
		now:    time.Now,
	}
}

func writeFiles(t *testing.T, dir string, files map[string]string) []string {
	t.Helper()
	var paths []string
	for name, content := range files {
		p := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
		paths = append(paths, p)
	}
	return paths
}

func siteFiles(t *testing.T) []string {
	t.Helper()
	return writeFiles(t, t.TempDir(), map[string]string{
		"a.php": "<?php echo 'a';",
		"b.php": "<?php echo 'b';",
	})
}

func TestInitialize_CreatesBucketWhenMissing(t *testing.T) {
	store := newMemS3()
	p := newTestProvider(store, "")

	require.NoError(t, p.Initialize(context.Background()))
	_, ok := store.buckets["wp-backups"]
	assert.True(t, ok)

	require.NoError(t, p.Initialize(context.Background()))
}

func TestTestConnection(t *testing.T) {
	p := newTestProvider(newMemS3("wp-backups"), "")

	res := p.TestConnection(context.Background())
	require.True(t, res.Success)
	assert.Equal(t, true, res.Details["bucketExists"])

	missing := newTestProvider(newMemS3(), "")
	res = missing.TestConnection(context.Background())
	require.True(t, res.Success)
	assert.Equal(t, false, res.Details["bucketExists"])
}

func TestCreateListGetDelete_EndToEnd(t *testing.T) {
	store := newMemS3("wp-backups")
	p := newTestProvider(store, "sites/")
	ctx := context.Background()

	res := p.CreateBackup(ctx, backup.CreateOptions{SiteID: "42", Files: siteFiles(t)})
	require.True(t, res.Success, res.Message)
	require.NotNil(t, res.Backup)
	require.Len(t, res.Locations, 1)
	assert.True(t, strings.HasPrefix(res.Locations[0].Path, "sites/backups/wp-backup-42-"), res.Locations[0].Path)

	id := res.Backup.ID
	_, hasArchive := store.buckets["wp-backups"]["sites/backups/"+id+"/archive.tar.gz"]
	_, hasMeta := store.buckets["wp-backups"]["sites/backups/"+id+"/metadata.json"]
	assert.True(t, hasArchive)
	assert.True(t, hasMeta)

	list := p.ListBackups(ctx, backup.ListFilter{SiteID: "42"})
	require.True(t, list.Success)
	require.Equal(t, 1, list.Total)
	assert.Equal(t, id, list.Backups[0].ID)

	meta, err := p.GetBackup(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, meta)
	assert.Equal(t, "42", meta.SiteID)

	del := p.DeleteBackup(ctx, id)
	require.True(t, del.Success, del.Message)
	assert.Empty(t, store.buckets["wp-backups"])

	meta, err = p.GetBackup(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, meta)

	del = p.DeleteBackup(ctx, id)
	assert.False(t, del.Success)
	assert.Contains(t, del.Message, "not found")
}

func TestCreateBackup_Validation(t *testing.T) {
	p := newTestProvider(newMemS3("wp-backups"), "")
	ctx := context.Background()

	res := p.CreateBackup(ctx, backup.CreateOptions{Files: []string{"x"}})
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "siteId")

	res = p.CreateBackup(ctx, backup.CreateOptions{SiteID: "42", Files: []string{"x"}, Type: model.BackupTypeDifferential})
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "parentBackupId")
}

func TestRestoreBackup_RoundTrip(t *testing.T) {
	p := newTestProvider(newMemS3("wp-backups"), "")
	ctx := context.Background()

	files := siteFiles(t)
	res := p.CreateBackup(ctx, backup.CreateOptions{SiteID: "42", Files: files})
	require.True(t, res.Success, res.Message)

	target := t.TempDir()
	restore := p.RestoreBackup(ctx, res.Backup.ID, backup.RestoreOptions{TargetDir: target})
	require.True(t, restore.Success, restore.Message)
	assert.Equal(t, 2, restore.Details["restoredFiles"])
}

func TestDownloadFile(t *testing.T) {
	p := newTestProvider(newMemS3("wp-backups"), "")
	ctx := context.Background()

	files := siteFiles(t)
	res := p.CreateBackup(ctx, backup.CreateOptions{SiteID: "42", Files: files})
	require.True(t, res.Success, res.Message)

	var aPath string
	for _, f := range files {
		if filepath.Base(f) == "a.php" {
			aPath = f
		}
	}

	file := p.DownloadFile(ctx, res.Backup.ID, aPath)
	require.True(t, file.Success, file.Message)
	assert.Equal(t, "<?php echo 'a';", string(file.Content))
}

func TestListBackups_SkipsPrefixWithoutMetadata(t *testing.T) {
	store := newMemS3("wp-backups")
	p := newTestProvider(store, "")
	ctx := context.Background()

	res := p.CreateBackup(ctx, backup.CreateOptions{SiteID: "42", Files: siteFiles(t)})
	require.True(t, res.Success, res.Message)

	store.mu.Lock()
	store.buckets["wp-backups"]["backups/stray/archive.tar.gz"] = []byte("x")
	store.buckets["wp-backups"]["backups/garbage/metadata.json"] = []byte("{not json")
	store.mu.Unlock()

	list := p.ListBackups(ctx, backup.ListFilter{})
	require.True(t, list.Success)
	assert.Equal(t, 1, list.Total)
}

func TestListBackups_SortAndPagination(t *testing.T) {
	p := newTestProvider(newMemS3("wp-backups"), "")
	ctx := context.Background()

	for _, ts := range []string{"2026-01-01T00:00:00Z", "2026-01-03T00:00:00Z", "2026-01-02T00:00:00Z"} {
		tm, err := time.Parse(time.RFC3339, ts)
		require.NoError(t, err)
		p.now = func() time.Time { return tm }
		res := p.CreateBackup(ctx, backup.CreateOptions{SiteID: "42", Files: siteFiles(t)})
		require.True(t, res.Success, res.Message)
	}

	list := p.ListBackups(ctx, backup.ListFilter{})
	require.True(t, list.Success)
	require.Equal(t, 3, list.Total)
	assert.True(t, list.Backups[0].Created.After(list.Backups[1].Created))

	page := p.ListBackups(ctx, backup.ListFilter{Offset: 2, Limit: 5})
	require.True(t, page.Success)
	require.Len(t, page.Backups, 1)
	assert.Equal(t, list.Backups[2].ID, page.Backups[0].ID)
}

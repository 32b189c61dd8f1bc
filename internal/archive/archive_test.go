package archive

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirbelkuyu/schemasync/internal/errs"
	"github.com/kadirbelkuyu/schemasync/internal/objectstore"
	"github.com/kadirbelkuyu/schemasync/internal/schema"
)

func sampleSnapshot() *schema.Snapshot {
	snap := schema.NewSnapshot()
	snap.AddColumn("public.users", "id", schema.ColumnInfo{DataType: "integer"})
	snap.AddColumn("public.users", "email", schema.ColumnInfo{DataType: "text", IsNullable: true})
	snap.AddIndex("public.users", "users_pkey", schema.IndexInfo{IsPrimary: true, IsUnique: true, Columns: []string{"id"}})
	return snap
}

func fixedClock() func() time.Time {
	t := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	return func() time.Time { return t }
}

func TestArchiveLocal(t *testing.T) {
	dir := t.TempDir()
	a := NewArchiver(LocalDir{Dir: dir}, schema.FormatJSON)
	a.now = fixedClock()

	meta, err := a.Archive(context.Background(), "prod shop", "postgres://app@db:5432/shop", sampleSnapshot())
	require.NoError(t, err)

	want := filepath.Join(dir, "prod_shop-20260314T093000Z.json")
	assert.Equal(t, want, meta.Location)
	assert.Equal(t, "prod_shop", meta.Label)
	assert.Equal(t, 1, meta.Summary.Tables)
	assert.Equal(t, 2, meta.Summary.Columns)
	assert.Len(t, meta.ID, 36)
	require.FileExists(t, want+metadataSuffix)

	data, err := os.ReadFile(want)
	require.NoError(t, err)
	assert.Equal(t, Checksum(data), meta.Checksum)
	assert.Equal(t, int64(len(data)), meta.Size)

	loaded, err := schema.LoadFile(want)
	require.NoError(t, err)
	assert.Equal(t, []string{"public.users"}, loaded.Tables.Keys())

	verified, err := Verify(want + metadataSuffix)
	require.NoError(t, err)
	assert.Equal(t, meta.ID, verified.ID)
}

func TestVerifyDetectsTampering(t *testing.T) {
	dir := t.TempDir()
	a := NewArchiver(LocalDir{Dir: dir}, schema.FormatYAML)
	a.now = fixedClock()

	meta, err := a.Archive(context.Background(), "", "", sampleSnapshot())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "snapshot-20260314T093000Z.yaml"), meta.Location)

	require.NoError(t, os.WriteFile(meta.Location, []byte("tables: {}\n"), 0o644))
	_, err = Verify(meta.Location + metadataSuffix)
	require.Error(t, err)
	assert.True(t, errs.IsInvalidInput(err))
	assert.Contains(t, err.Error(), "checksum mismatch")

	_, err = Verify(filepath.Join(dir, "missing.json"+metadataSuffix))
	assert.True(t, errs.IsNotFound(err))
}

type memoryBucket map[string][]byte

func (b memoryBucket) Get(_ context.Context, key string) ([]byte, error) {
	data, ok := b[key]
	if !ok {
		return nil, errs.New(errs.ErrKindNotFound, key)
	}
	return data, nil
}

func (b memoryBucket) Put(_ context.Context, key string, data []byte, _ string) error {
	b[key] = data
	return nil
}

func TestArchiveRemote(t *testing.T) {
	bucket := memoryBucket{}
	a := NewArchiver(Remote{Bucket: bucket, BucketName: "schemas", Prefix: "/nightly/"}, schema.FormatJSON)
	a.now = fixedClock()

	meta, err := a.Archive(context.Background(), "staging", "", sampleSnapshot())
	require.NoError(t, err)
	assert.Equal(t, "s3://schemas/nightly/staging-20260314T093000Z.json", meta.Location)
	assert.Contains(t, bucket, "nightly/staging-20260314T093000Z.json")
	assert.Contains(t, bucket, "nightly/staging-20260314T093000Z.json.meta.json")
	assert.Equal(t, Checksum(bucket["nightly/staging-20260314T093000Z.json"]), meta.Checksum)
}

func TestParseTarget(t *testing.T) {
	dest, err := ParseTarget("./archives", objectstore.Config{})
	require.NoError(t, err)
	assert.Equal(t, LocalDir{Dir: "./archives"}, dest)

	dest, err = ParseTarget("s3://schemas/team/a", objectstore.Config{Endpoint: "localhost:9000"})
	require.NoError(t, err)
	remote, ok := dest.(Remote)
	require.True(t, ok)
	assert.Equal(t, "schemas", remote.BucketName)
	assert.Equal(t, "team/a", remote.Prefix)

	_, err = ParseTarget("s3://schemas", objectstore.Config{})
	assert.True(t, errs.IsConfiguration(err))
}

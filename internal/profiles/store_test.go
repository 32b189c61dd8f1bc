package profiles

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirbelkuyu/schemasync/internal/config"
	"github.com/kadirbelkuyu/schemasync/internal/errs"
)

type fakeBucket struct {
	objects map[string][]byte
	types   map[string]string
	err     error
}

func newFakeBucket() *fakeBucket {
	return &fakeBucket{objects: map[string][]byte{}, types: map[string]string{}}
}

func (b *fakeBucket) Get(_ context.Context, key string) ([]byte, error) {
	if b.err != nil {
		return nil, b.err
	}
	data, ok := b.objects[key]
	if !ok {
		return nil, errs.Newf(errs.ErrKindNotFound, "no such key %s", key)
	}
	return data, nil
}

func (b *fakeBucket) Put(_ context.Context, key string, data []byte, contentType string) error {
	if b.err != nil {
		return b.err
	}
	b.objects[key] = data
	b.types[key] = contentType
	return nil
}

func TestObjectStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	bucket := newFakeBucket()
	store := NewObjectStore(bucket, "team-schemas", "")
	assert.Equal(t, "s3://team-schemas/profiles.yaml", store.Location())

	doc := Document{"nightly": {
		DB1: config.DatabaseConfig{Type: "mysql", Host: "a", Database: "shop"},
		DB2: config.DatabaseConfig{Type: "mysql", Host: "b", Database: "shop"},
	}}
	require.NoError(t, store.Save(ctx, doc))
	assert.Equal(t, "application/yaml", bucket.types["profiles.yaml"])

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "b", loaded["nightly"].DB2.Host)
}

func TestObjectStoreErrors(t *testing.T) {
	ctx := context.Background()
	bucket := newFakeBucket()
	store := NewObjectStore(bucket, "b", "team/profiles.yaml")

	_, err := store.Load(ctx)
	assert.True(t, errs.IsNotFound(err))

	bucket.objects["team/profiles.yaml"] = []byte("::: not yaml [")
	_, err = store.Load(ctx)
	assert.True(t, errs.IsInvalidInput(err))

	bucket.err = errs.Wrap(errs.ErrKindConnectionFailed, "unreachable", errors.New("dial"))
	_, err = store.Load(ctx)
	assert.True(t, errs.IsConnectionFailed(err))
}

func TestFileStoreWritesAtomically(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "profiles.yaml")
	store := NewFileStore(path)

	require.NoError(t, store.Save(ctx, Document{"a": {}}))
	_, err := os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))

	doc, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Contains(t, doc, "a")
}

func TestDecodeDocumentEmpty(t *testing.T) {
	doc, err := decodeDocument([]byte("  \n"))
	require.NoError(t, err)
	assert.Empty(t, doc)

	doc, err = decodeDocument([]byte("{}"))
	require.NoError(t, err)
	assert.NotNil(t, doc)
}

func TestNewFileStoreDefault(t *testing.T) {
	assert.Equal(t, DefaultPath, NewFileStore("").Location())
}

package schema_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirbelkuyu/schemasync/internal/errs"
	"github.com/kadirbelkuyu/schemasync/internal/schema"
)

func TestSnapshotFileKeepsColumnOrder(t *testing.T) {
	full, _ := shopSnapshots()

	for _, name := range []string{"snap.json", "nested/snap.yaml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			require.NoError(t, full.WriteFile(path))

			loaded, err := schema.LoadFile(path)
			require.NoError(t, err)

			orders, ok := loaded.Tables.Get("public.orders")
			require.True(t, ok)
			assert.Equal(t, []string{"id", "user_id", "total", "status", "note"}, orders.Columns.Keys())
			assert.Equal(t, []string{"active", "inactive"}, loaded.Enums["public.status"])
			assert.Equal(t, full.Summary(), loaded.Summary())
			assert.False(t, schema.Diff(full, loaded).HasDifferences())
		})
	}
}

func TestLoadFileErrors(t *testing.T) {
	_, err := schema.LoadFile(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
	assert.True(t, errs.IsNotFound(err))

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"tables": [1, 2]}`), 0o644))
	_, err = schema.LoadFile(bad)
	require.Error(t, err)
	assert.True(t, errs.IsInvalidInput(err))
}

func TestSummary(t *testing.T) {
	full, _ := shopSnapshots()

	sum := full.Summary()
	assert.Equal(t, schema.Summary{Tables: 2, Columns: 7, Indexes: 3, ForeignKeys: 1, Enums: 1}, sum)
	assert.Equal(t, "2 tables, 7 columns, 3 indexes, 1 foreign keys, 1 enums", sum.String())
}

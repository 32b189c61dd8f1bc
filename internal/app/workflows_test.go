package app

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirbelkuyu/schemasync/internal/config"
	"github.com/kadirbelkuyu/schemasync/internal/errs"
	"github.com/kadirbelkuyu/schemasync/internal/schema"
	"github.com/kadirbelkuyu/schemasync/pkg/logger"
)

// fakeInspector serves snapshots keyed by host.
type fakeInspector struct {
	mu        sync.Mutex
	snapshots map[string]*schema.Snapshot
	failures  map[string]error
	delays    map[string]time.Duration
	calls     []string
}

func (f *fakeInspector) Inspect(_ context.Context, cfg config.DatabaseConfig) (*schema.Snapshot, error) {
	f.mu.Lock()
	f.calls = append(f.calls, cfg.Host)
	delay := f.delays[cfg.Host]
	f.mu.Unlock()

	time.Sleep(delay)
	if err := f.failures[cfg.Host]; err != nil {
		return nil, err
	}
	if snap, ok := f.snapshots[cfg.Host]; ok {
		return snap, nil
	}
	return schema.NewSnapshot(), nil
}

func (f *fakeInspector) called() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func quietLogger() *logger.Logger {
	log := logger.NewLogger(false)
	log.SetOutput(io.Discard)
	return log
}

func pgSource(host string) Source {
	return LiveSource(config.DatabaseConfig{Type: "postgres", Host: host, Database: "shop", Username: "app"})
}

func sourceSnapshot() *schema.Snapshot {
	s := schema.NewSnapshot()
	s.AddColumn("public.users", "id", schema.ColumnInfo{DataType: "integer"})
	s.AddColumn("public.users", "email", schema.ColumnInfo{DataType: "text", IsNullable: true})
	s.AddColumn("public.orders", "id", schema.ColumnInfo{DataType: "integer"})
	return s
}

func targetSnapshot() *schema.Snapshot {
	s := schema.NewSnapshot()
	s.AddColumn("public.users", "id", schema.ColumnInfo{DataType: "integer"})
	return s
}

func TestCompareReportsDifferences(t *testing.T) {
	fake := &fakeInspector{snapshots: map[string]*schema.Snapshot{"a": sourceSnapshot(), "b": targetSnapshot()}}
	svc := NewService(fake, quietLogger())

	cmp, err := svc.Compare(context.Background(), pgSource("a"), pgSource("b"))
	require.NoError(t, err)

	assert.NotEmpty(t, cmp.ID)
	assert.Equal(t, "postgres://app@a:5432/shop", cmp.DB1)
	assert.Equal(t, []string{"public.orders"}, cmp.Diff.TablesOnlyInDB1)
	assert.Equal(t, 1, cmp.Stats.TablesOnlyInDB1)
	assert.Equal(t, []string{"a", "b"}, fake.called())
}

func TestCompareSequentialStopsAfterFirstFailure(t *testing.T) {
	fake := &fakeInspector{failures: map[string]error{"a": errs.New(errs.ErrKindConnectionFailed, "connection refused")}}
	svc := NewService(fake, quietLogger())

	_, err := svc.Compare(context.Background(), pgSource("a"), pgSource("b"))
	require.Error(t, err)

	var side *SideError
	require.True(t, errors.As(err, &side))
	assert.Equal(t, SideDB1, side.Side)
	assert.True(t, errs.IsConnectionFailed(err))
	assert.Equal(t, "Error connecting to Database 1: connection refused", err.Error())
	assert.Equal(t, []string{"a"}, fake.called())
}

func TestCompareParallelPrefersFirstSideError(t *testing.T) {
	fake := &fakeInspector{
		failures: map[string]error{
			"a": errs.New(errs.ErrKindConnectionFailed, "a is down"),
			"b": errs.New(errs.ErrKindConnectionFailed, "b is down"),
		},
		delays: map[string]time.Duration{"a": 30 * time.Millisecond},
	}
	svc := NewService(fake, quietLogger(), WithParallel(true))

	_, err := svc.Compare(context.Background(), pgSource("a"), pgSource("b"))
	require.Error(t, err)

	var side *SideError
	require.True(t, errors.As(err, &side))
	assert.Equal(t, SideDB1, side.Side)
	assert.ElementsMatch(t, []string{"a", "b"}, fake.called())
}

func TestCompareParallelSecondSideError(t *testing.T) {
	fake := &fakeInspector{
		snapshots: map[string]*schema.Snapshot{"a": sourceSnapshot()},
		failures:  map[string]error{"b": errs.New(errs.ErrKindQueryFailed, "permission denied")},
	}
	svc := NewService(fake, quietLogger(), WithParallel(true))

	_, err := svc.Compare(context.Background(), pgSource("a"), pgSource("b"))
	var side *SideError
	require.True(t, errors.As(err, &side))
	assert.Equal(t, SideDB2, side.Side)
	assert.True(t, errs.IsQueryFailed(err))
}

func TestCompareEmptySchemaOnEitherSide(t *testing.T) {
	for _, tc := range []struct {
		name  string
		snaps map[string]*schema.Snapshot
		side  string
	}{
		{"first", map[string]*schema.Snapshot{"b": targetSnapshot()}, SideDB1},
		{"second", map[string]*schema.Snapshot{"a": sourceSnapshot()}, SideDB2},
	} {
		t.Run(tc.name, func(t *testing.T) {
			svc := NewService(&fakeInspector{snapshots: tc.snaps}, quietLogger())
			_, err := svc.Compare(context.Background(), pgSource("a"), pgSource("b"))
			require.Error(t, err)
			assert.True(t, errs.IsEmptySchema(err))

			var side *SideError
			require.True(t, errors.As(err, &side))
			assert.Equal(t, tc.side, side.Side)
		})
	}
}

func TestSyncRejectsUnknownDirectionBeforeConnecting(t *testing.T) {
	fake := &fakeInspector{}
	svc := NewService(fake, quietLogger())

	_, err := svc.Sync(context.Background(), pgSource("a"), pgSource("b"), schema.Direction("sideways"))
	require.Error(t, err)
	assert.True(t, errs.IsUnknownDirection(err))
	assert.Empty(t, fake.called())
}

func TestSyncRefusesMongo(t *testing.T) {
	fake := &fakeInspector{}
	svc := NewService(fake, quietLogger())
	mongo := LiveSource(config.DatabaseConfig{Type: "mongodb", Host: "m"})

	_, err := svc.Sync(context.Background(), pgSource("a"), mongo, schema.AtoB)
	require.Error(t, err)
	assert.True(t, errs.IsConfiguration(err))
	assert.Empty(t, fake.called())
}

func TestSyncGeneratesStatements(t *testing.T) {
	fake := &fakeInspector{snapshots: map[string]*schema.Snapshot{"a": sourceSnapshot(), "b": targetSnapshot()}}
	svc := NewService(fake, quietLogger())

	res, err := svc.Sync(context.Background(), pgSource("a"), pgSource("b"), schema.AtoB)
	require.NoError(t, err)
	assert.Equal(t, "postgres", res.Dialect)
	assert.Equal(t, "b", res.Target.Config.Host)
	require.NotEmpty(t, res.Statements)
	assert.Contains(t, res.Statements[0], `CREATE TABLE public."orders"`)

	back, err := svc.Sync(context.Background(), pgSource("a"), pgSource("b"), schema.BtoA)
	require.NoError(t, err)
	assert.Equal(t, "a", back.Target.Config.Host)
	assert.Equal(t, []string{schema.NoChangesStatement}, back.Statements)
}

func TestSyncUsesTargetDialect(t *testing.T) {
	fake := &fakeInspector{snapshots: map[string]*schema.Snapshot{"a": sourceSnapshot(), "b": targetSnapshot()}}
	svc := NewService(fake, quietLogger())
	mysql := LiveSource(config.DatabaseConfig{Type: "mariadb", Host: "b", Database: "shop"})

	res, err := svc.Sync(context.Background(), pgSource("a"), mysql, schema.AtoB)
	require.NoError(t, err)
	assert.Equal(t, "mysql", res.Dialect)
	assert.Contains(t, res.Statements[0], "CREATE TABLE")
	assert.Contains(t, res.Statements[0], "`orders`")
}

func TestCompareFromSnapshotFiles(t *testing.T) {
	dir := t.TempDir()
	pathA := filepath.Join(dir, "a.json")
	pathB := filepath.Join(dir, "b.yaml")
	require.NoError(t, sourceSnapshot().WriteFile(pathA))
	require.NoError(t, targetSnapshot().WriteFile(pathB))

	fake := &fakeInspector{}
	svc := NewService(fake, quietLogger())
	cmp, err := svc.Compare(context.Background(), FileSource(pathA), FileSource(pathB))
	require.NoError(t, err)
	assert.Equal(t, "snapshot "+pathA, cmp.DB1)
	assert.Equal(t, []string{"public.orders"}, cmp.Diff.TablesOnlyInDB1)
	assert.Empty(t, fake.called())

	res, err := svc.Sync(context.Background(), FileSource(pathA), FileSource(pathB), schema.AtoB)
	require.NoError(t, err)
	assert.Equal(t, "postgres", res.Dialect)

	_, err = svc.Apply(context.Background(), res)
	assert.True(t, errs.IsConfiguration(err))
}

func TestInspectMissingSnapshotFile(t *testing.T) {
	svc := NewService(&fakeInspector{}, quietLogger())
	_, err := svc.Inspect(context.Background(), FileSource(filepath.Join(t.TempDir(), "missing.json")))
	require.Error(t, err)

	var side *SideError
	require.True(t, errors.As(err, &side))
	assert.Equal(t, "Database", side.Side)
	assert.True(t, errs.IsNotFound(err))
	assert.True(t, strings.HasPrefix(err.Error(), "Database: snapshot file "), err.Error())
	assert.NotContains(t, err.Error(), "Error connecting")
}

func TestSideErrorMessageFollowsKind(t *testing.T) {
	for _, tc := range []struct {
		name string
		err  error
		want string
	}{
		{"connection", errs.New(errs.ErrKindConnectionFailed, "connection refused"), "Error connecting to Database 1: connection refused"},
		{"empty schema", errs.New(errs.ErrKindEmptySchema, "no tables returned"), "Database 1: no tables returned"},
		{"query", errs.New(errs.ErrKindQueryFailed, "permission denied for pg_catalog"), "Database 1: permission denied for pg_catalog"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, (&SideError{Side: SideDB1, Err: tc.err}).Error())
		})
	}
}

func TestCompareEmptySideNamesTheSide(t *testing.T) {
	fake := &fakeInspector{snapshots: map[string]*schema.Snapshot{}}
	svc := NewService(fake, quietLogger())

	_, err := svc.Compare(context.Background(), pgSource("a"), pgSource("b"))
	require.Error(t, err)
	assert.True(t, errs.IsEmptySchema(err))
	assert.True(t, strings.HasPrefix(err.Error(), "Database 1: no tables returned"), err.Error())
}

func TestInspectWithoutSource(t *testing.T) {
	svc := NewService(&fakeInspector{}, quietLogger())
	_, err := svc.Inspect(context.Background(), Source{})
	assert.True(t, errs.IsConfiguration(err))
	assert.Equal(t, "<none>", Source{}.String())
}

package apply

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirbelkuyu/schemasync/internal/config"
	"github.com/kadirbelkuyu/schemasync/internal/errs"
	"github.com/kadirbelkuyu/schemasync/internal/schema"
	"github.com/kadirbelkuyu/schemasync/pkg/logger"
)

func closedPort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())
	return port
}

func TestExecutable(t *testing.T) {
	statements := []string{
		schema.NoChangesStatement,
		"",
		"-- header\n-- more",
		"-- add email\nALTER TABLE public.\"users\" ADD COLUMN \"email\" text;",
		`CREATE INDEX "i" ON public."t" ("c");`,
	}
	assert.Equal(t, statements[3:], Executable(statements))
}

func TestApplyPlaceholderDoesNotConnect(t *testing.T) {
	cfg := config.DatabaseConfig{Type: "postgres", Host: "127.0.0.1", Port: closedPort(t), Database: "app"}

	res, err := NewApplier(logger.NewLogger(false)).Apply(context.Background(), cfg, []string{schema.NoChangesStatement})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Executed)
	assert.Equal(t, 1, res.Skipped)
}

func TestApplyRejectsMongo(t *testing.T) {
	_, err := NewApplier(nil).Apply(context.Background(), config.DatabaseConfig{Type: "mongodb", Host: "db"},
		[]string{`CREATE TABLE "x" ();`})
	require.Error(t, err)
	assert.True(t, errs.IsConfiguration(err))
}

func TestApplyUnreachable(t *testing.T) {
	for _, dbType := range []string{"postgres", "mysql"} {
		t.Run(dbType, func(t *testing.T) {
			cfg := config.DatabaseConfig{Type: dbType, Host: "127.0.0.1", Port: closedPort(t), Database: "app", Username: "app"}
			res, err := NewApplier(nil).Apply(context.Background(), cfg, []string{"CREATE TABLE t (id int);"})
			require.Error(t, err)
			assert.True(t, errs.IsConnectionFailed(err), err.Error())
			assert.Equal(t, 0, res.Executed)
		})
	}
}

func TestStatementFailure(t *testing.T) {
	msg := statementFailure(2, "CREATE TABLE public.\"orders\" (\n    \"id\" serial\n);")
	assert.Equal(t, `statement 3 failed (CREATE TABLE public."orders" ()`, msg)
}

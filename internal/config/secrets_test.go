package config

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirbelkuyu/schemasync/internal/errs"
)

func vaultServer(t *testing.T, path string, data map[string]interface{}) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/"+path {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("X-Vault-Token") != "test-token" {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"data": map[string]interface{}{"data": data},
		})
	}))
	t.Cleanup(server.Close)

	t.Setenv("VAULT_ADDR", server.URL)
	t.Setenv("VAULT_TOKEN", "test-token")
	return server
}

func TestResolveVaultKVv2(t *testing.T) {
	vaultServer(t, "secret/data/schemasync", map[string]interface{}{"password": "s3cret"})

	val, err := resolveVault(context.Background(), "secret/data/schemasync#password")
	require.NoError(t, err)
	assert.Equal(t, "s3cret", val)
}

func TestResolveVaultMissingKey(t *testing.T) {
	vaultServer(t, "secret/data/schemasync", map[string]interface{}{"username": "admin"})

	_, err := resolveVault(context.Background(), "secret/data/schemasync#password")
	assert.Error(t, err)
}

func TestResolveVaultInvalidReference(t *testing.T) {
	t.Setenv("VAULT_ADDR", "http://localhost:8200")
	t.Setenv("VAULT_TOKEN", "test-token")

	_, err := resolveVault(context.Background(), "no-hash-separator")
	assert.Error(t, err)
}

func TestResolveVaultMissingEnv(t *testing.T) {
	t.Setenv("VAULT_ADDR", "")
	t.Setenv("VAULT_TOKEN", "")

	_, err := resolveVault(context.Background(), "secret/data/path#key")
	assert.Error(t, err)
}

func TestResolveValue(t *testing.T) {
	vaultServer(t, "secret/data/db", map[string]interface{}{"db_pass": "hunter2"})
	t.Setenv("DB_USER", "app")

	val, err := ResolveValue(context.Background(), "${VAULT:secret/data/db#db_pass}")
	require.NoError(t, err)
	assert.Equal(t, "hunter2", val)

	val, err = ResolveValue(context.Background(), "postgres://${ENV:DB_USER}:${VAULT:secret/data/db#db_pass}@db:5432/app")
	require.NoError(t, err)
	assert.Equal(t, "postgres://app:hunter2@db:5432/app", val)

	val, err = ResolveValue(context.Background(), "plain")
	require.NoError(t, err)
	assert.Equal(t, "plain", val)
}

func TestResolveValueUnsetEnv(t *testing.T) {
	t.Setenv("SCHEMASYNC_UNSET", "")

	_, err := ResolveValue(context.Background(), "${ENV:SCHEMASYNC_UNSET}")
	require.Error(t, err)
	assert.True(t, errs.IsConfiguration(err))
}

func TestResolveDescriptorSSHPassword(t *testing.T) {
	t.Setenv("BASTION_PASSWORD", "b4stion")
	db := DatabaseConfig{
		Type:       "postgres",
		Password:   "literal",
		ConnMethod: ConnSSH,
		SSH:        SSHConfig{Host: "bastion", User: "ops", Password: "${ENV:BASTION_PASSWORD}"},
	}

	resolved, err := db.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "b4stion", resolved.SSH.Password)
	assert.Equal(t, "literal", resolved.Password)
	assert.True(t, HasSecretReference(db.SSH.Password))
}

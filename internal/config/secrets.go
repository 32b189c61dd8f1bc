package config

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/hashicorp/vault/api"

	"github.com/kadirbelkuyu/schemasync/internal/errs"
)

var secretPattern = regexp.MustCompile(`\$\{(ENV|VAULT|AWS_SM):([^}]+)\}`)

// Resolve returns a copy of the descriptor with every secret reference
// replaced by its value. Descriptors are stored with references intact; this
// runs right before a connection is opened.
func (d DatabaseConfig) Resolve(ctx context.Context) (DatabaseConfig, error) {
	fields := []struct {
		name string
		val  *string
	}{
		{"username", &d.Username},
		{"password", &d.Password},
		{"uri", &d.URI},
		{"ssh password", &d.SSH.Password},
		{"ssh key passphrase", &d.SSH.KeyPassphrase},
	}
	for _, f := range fields {
		resolved, err := ResolveValue(ctx, *f.val)
		if err != nil {
			return d, fmt.Errorf("%s: %w", f.name, err)
		}
		*f.val = resolved
	}
	return d, nil
}

// HasSecretReference reports whether val contains a ${PROVIDER:ref} reference.
func HasSecretReference(val string) bool {
	return secretPattern.MatchString(val)
}

// ResolveValue resolves the ${ENV:..}, ${VAULT:..} and ${AWS_SM:..}
// references in val. Text around a reference is kept.
func ResolveValue(ctx context.Context, val string) (string, error) {
	if !strings.Contains(val, "${") {
		return val, nil
	}

	var firstErr error
	out := secretPattern.ReplaceAllStringFunc(val, func(ref string) string {
		if firstErr != nil {
			return ref
		}
		m := secretPattern.FindStringSubmatch(ref)
		v, err := resolveReference(ctx, m[1], m[2])
		if err != nil {
			firstErr = err
			return ref
		}
		return v
	})
	if firstErr != nil {
		return "", errs.Wrap(errs.ErrKindConfiguration, "resolve secret reference", firstErr)
	}
	return out, nil
}

func resolveReference(ctx context.Context, provider, ref string) (string, error) {
	switch provider {
	case "ENV":
		v := os.Getenv(ref)
		if v == "" {
			return "", fmt.Errorf("environment variable %s not set", ref)
		}
		return v, nil
	case "VAULT":
		return resolveVault(ctx, ref)
	case "AWS_SM":
		return resolveAWSSecretsManager(ctx, ref)
	default:
		return "", fmt.Errorf("unknown secrets provider: %s", provider)
	}
}

// resolveVault reads path#key from Vault, addressed by VAULT_ADDR and
// authenticated with VAULT_TOKEN.
func resolveVault(ctx context.Context, ref string) (string, error) {
	path, key, ok := strings.Cut(ref, "#")
	if !ok || path == "" || key == "" {
		return "", fmt.Errorf("invalid Vault reference %q: expected format path#key", ref)
	}

	addr := os.Getenv("VAULT_ADDR")
	if addr == "" {
		return "", fmt.Errorf("VAULT_ADDR environment variable not set")
	}
	token := os.Getenv("VAULT_TOKEN")
	if token == "" {
		return "", fmt.Errorf("VAULT_TOKEN environment variable not set")
	}

	cfg := api.DefaultConfig()
	cfg.Address = addr

	client, err := api.NewClient(cfg)
	if err != nil {
		return "", fmt.Errorf("creating Vault client: %w", err)
	}
	client.SetToken(token)

	secret, err := client.Logical().ReadWithContext(ctx, path)
	if err != nil {
		return "", fmt.Errorf("reading Vault secret at %s: %w", path, err)
	}
	if secret == nil || secret.Data == nil {
		return "", fmt.Errorf("no secret found at %s", path)
	}

	// KV v2 nests the payload under "data".
	data := secret.Data
	if inner, ok := data["data"].(map[string]interface{}); ok {
		data = inner
	}

	val, ok := data[key]
	if !ok {
		return "", fmt.Errorf("key %q not found in Vault secret at %s", key, path)
	}
	str, ok := val.(string)
	if !ok {
		return "", fmt.Errorf("vault secret value for key %q is not a string", key)
	}
	return str, nil
}

func resolveAWSSecretsManager(ctx context.Context, ref string) (string, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return "", fmt.Errorf("loading AWS config: %w", err)
	}

	client := secretsmanager.NewFromConfig(cfg)
	out, err := client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(ref),
	})
	if err != nil {
		return "", fmt.Errorf("getting secret %q: %w", ref, err)
	}
	if out.SecretString == nil {
		return "", fmt.Errorf("secret %q has no string value", ref)
	}
	return *out.SecretString, nil
}

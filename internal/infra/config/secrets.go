// backend/internal/infra/config/secrets.go
package config

import (
	"context"
	"errors"
	"fmt"
	"strings"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	secretmanagerpb "cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
)

// SecretAccessor reads one secret value by its short name.
type SecretAccessor interface {
	Access(ctx context.Context, name string) (string, error)
}

// ResolveSecrets replaces every "sm://<name>" value in the secret-bearing
// fields. Without any such value acc is never used (and may be nil).
func ResolveSecrets(ctx context.Context, c *Config, acc SecretAccessor) error {
	fields := map[string]*string{
		"jwtSecret":      &c.JWTSecret,
		"sendgridApiKey": &c.SendGridAPIKey,
		"adminPassword":  &c.AdminPassword,
		"mongoUri":       &c.MongoURI,
		"postgresDsn":    &c.PostgresDSN,
	}
	for field, ptr := range fields {
		name, ok := strings.CutPrefix(strings.TrimSpace(*ptr), SecretScheme)
		if !ok {
			continue
		}
		if acc == nil {
			return fmt.Errorf("config: %s references %s%s but no secret accessor is configured", field, SecretScheme, name)
		}
		v, err := acc.Access(ctx, name)
		if err != nil {
			return fmt.Errorf("config: resolve %s: %w", field, err)
		}
		*ptr = v
	}
	return nil
}

// NeedsSecrets reports whether any field references Secret Manager.
func (c *Config) NeedsSecrets() bool {
	for _, v := range []string{c.JWTSecret, c.SendGridAPIKey, c.AdminPassword, c.MongoURI, c.PostgresDSN} {
		if strings.HasPrefix(strings.TrimSpace(v), SecretScheme) {
			return true
		}
	}
	return false
}

var errSecretManagerNotConfigured = errors.New("config: secret manager client not configured")

// SecretManagerAccessor reads projects/{project}/secrets/{name}/versions/{version}.
type SecretManagerAccessor struct {
	Client    *secretmanager.Client
	ProjectID string
	Version   string
}

func (a *SecretManagerAccessor) Access(ctx context.Context, name string) (string, error) {
	if a == nil || a.Client == nil {
		return "", errSecretManagerNotConfigured
	}
	prj := strings.TrimSpace(a.ProjectID)
	if prj == "" {
		return "", errors.New("config: secret manager projectID is empty")
	}
	n := strings.TrimSpace(name)
	if n == "" {
		return "", errors.New("config: secret name is empty")
	}
	ver := strings.TrimSpace(a.Version)
	if ver == "" {
		ver = "latest"
	}

	full := n
	if !strings.HasPrefix(n, "projects/") {
		full = "projects/" + prj + "/secrets/" + n + "/versions/" + ver
	}
	resp, err := a.Client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{Name: full})
	if err != nil {
		return "", fmt.Errorf("AccessSecretVersion failed (%s): %w", full, err)
	}
	if resp == nil || resp.Payload == nil {
		return "", fmt.Errorf("empty payload (%s)", full)
	}
	return strings.TrimSpace(string(resp.Payload.Data)), nil
}

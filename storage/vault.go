package storage

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hashicorp/vault/api"
	"github.com/medarchive/content-pipeline/interfaces"
)

// VaultSecretStore implements the secret store on HashiCorp Vault's KV v2
// engine. Authentication follows the Vault client's usual environment
// resolution (VAULT_TOKEN et al).
type VaultSecretStore struct {
	client    *api.Client
	mountPath string
	dataPath  string
	log       *slog.Logger
}

// NewVaultSecretStore creates a secret store rooted at mountPath/dataPath on
// the given Vault server.
func NewVaultSecretStore(address, mountPath, dataPath string, log *slog.Logger) (*VaultSecretStore, error) {
	config := api.DefaultConfig()
	if address != "" {
		config.Address = address
	}

	client, err := api.NewClient(config)
	if err != nil {
		return nil, fmt.Errorf("creating Vault client: %w", err)
	}

	mountPath = strings.Trim(mountPath, "/")
	dataPath = strings.Trim(dataPath, "/")

	return &VaultSecretStore{
		client:    client,
		mountPath: mountPath,
		dataPath:  dataPath,
		log:       log,
	}, nil
}

// PutSecret writes the named secret as a new KV v2 version.
func (s *VaultSecretStore) PutSecret(ctx context.Context, name, value string) error {
	path := s.secretPath(name)

	_, err := s.client.Logical().WriteWithContext(ctx, path, map[string]interface{}{
		"data": map[string]interface{}{
			"value": value,
		},
	})
	if err != nil {
		return fmt.Errorf("%w: writing to Vault at %s: %v", interfaces.ErrStore, path, err)
	}

	s.log.Debug("Stored secret in Vault", slog.String("path", path))
	return nil
}

// GetSecret reads the current version of the named secret.
func (s *VaultSecretStore) GetSecret(ctx context.Context, name string) (string, error) {
	path := s.secretPath(name)

	secret, err := s.client.Logical().ReadWithContext(ctx, path)
	if err != nil {
		return "", fmt.Errorf("%w: reading from Vault at %s: %v", interfaces.ErrStore, path, err)
	}
	if secret == nil || secret.Data == nil {
		return "", fmt.Errorf("%w: secret %q not found in Vault", interfaces.ErrStore, name)
	}

	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return "", fmt.Errorf("%w: unexpected KV v2 response shape at %s", interfaces.ErrStore, path)
	}
	value, ok := data["value"].(string)
	if !ok {
		return "", fmt.Errorf("%w: secret %q has no string value", interfaces.ErrStore, name)
	}
	return value, nil
}

// secretPath builds the KV v2 data path for a secret name.
func (s *VaultSecretStore) secretPath(name string) string {
	return fmt.Sprintf("%s/data/%s/%s", s.mountPath, s.dataPath, strings.TrimPrefix(name, "/"))
}

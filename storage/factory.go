package storage

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/medarchive/content-pipeline/interfaces"
)

// Factory creates secret and parameter store backends from location URIs,
// so deployments pick their backend through configuration alone.
type Factory struct {
	log *slog.Logger
}

// NewFactory creates a store factory.
func NewFactory(log *slog.Logger) *Factory {
	return &Factory{log: log}
}

// SecretStoreFor creates a secret store from a location URI.
//
// Supported schemes:
//
//	awssm://<region>                  AWS Secrets Manager
//	vault://<host:port>/<mount>/<path>  HashiCorp Vault KV v2
//	mem://                            in-memory (testing/local only)
func (f *Factory) SecretStoreFor(locationURI string) (interfaces.SecretStore, error) {
	u, err := url.Parse(locationURI)
	if err != nil {
		return nil, fmt.Errorf("invalid secret store URI: %w", err)
	}

	switch strings.ToLower(u.Scheme) {
	case "awssm":
		sess, err := f.awsSession(u.Host)
		if err != nil {
			return nil, err
		}
		return NewSecretsManagerStore(sess, f.log), nil

	case "vault":
		mount, dataPath, err := splitVaultPath(u.Path)
		if err != nil {
			return nil, err
		}
		return NewVaultSecretStore("https://"+u.Host, mount, dataPath, f.log)

	case "mem":
		return NewMemorySecretStore(), nil

	default:
		return nil, fmt.Errorf("unsupported secret store scheme: %s", u.Scheme)
	}
}

// ParameterStoreFor creates a parameter store from a location URI.
//
// Supported schemes:
//
//	awsssm://<region>   AWS SSM Parameter Store
//	mem://              in-memory (testing/local only)
func (f *Factory) ParameterStoreFor(locationURI string) (interfaces.ParameterStore, error) {
	u, err := url.Parse(locationURI)
	if err != nil {
		return nil, fmt.Errorf("invalid parameter store URI: %w", err)
	}

	switch strings.ToLower(u.Scheme) {
	case "awsssm":
		sess, err := f.awsSession(u.Host)
		if err != nil {
			return nil, err
		}
		return NewSSMParameterStore(sess, f.log), nil

	case "mem":
		return NewMemoryParameterStore(), nil

	default:
		return nil, fmt.Errorf("unsupported parameter store scheme: %s", u.Scheme)
	}
}

// CatalogStoreFor creates the DynamoDB catalog store for a table in a
// region, or the in-memory store when region is empty.
func (f *Factory) CatalogStoreFor(region, table string) (interfaces.CatalogStore, error) {
	if region == "" {
		f.log.Warn("No region configured, using in-memory catalog store")
		return NewMemoryCatalogStore(), nil
	}
	if table == "" {
		return nil, fmt.Errorf("catalog table name is required")
	}
	sess, err := f.awsSession(region)
	if err != nil {
		return nil, err
	}
	return NewDynamoCatalogStore(sess, table, f.log), nil
}

func (f *Factory) awsSession(region string) (*session.Session, error) {
	cfg := aws.Config{}
	if region != "" {
		cfg.Region = aws.String(region)
	}
	sess, err := session.NewSession(&cfg)
	if err != nil {
		return nil, fmt.Errorf("creating AWS session: %w", err)
	}
	return sess, nil
}

func splitVaultPath(p string) (mount, dataPath string, err error) {
	parts := strings.SplitN(strings.Trim(p, "/"), "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("vault URI path must be /<mount>/<path>, got %q", p)
	}
	return parts[0], parts[1], nil
}

package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/secretsmanager"
	"github.com/medarchive/content-pipeline/interfaces"
)

// SecretsManagerStore implements the secret store on AWS Secrets Manager.
type SecretsManagerStore struct {
	client *secretsmanager.SecretsManager
	log    *slog.Logger
}

// NewSecretsManagerStore creates a secret store in the session's region.
func NewSecretsManagerStore(sess *session.Session, log *slog.Logger) *SecretsManagerStore {
	return &SecretsManagerStore{
		client: secretsmanager.New(sess),
		log:    log,
	}
}

// PutSecret stores a new version of the named secret, creating the secret
// when it does not exist yet.
func (s *SecretsManagerStore) PutSecret(ctx context.Context, name, value string) error {
	_, err := s.client.PutSecretValueWithContext(ctx, &secretsmanager.PutSecretValueInput{
		SecretId:     aws.String(name),
		SecretString: aws.String(value),
	})
	if err == nil {
		s.log.Debug("Stored secret", slog.String("name", name))
		return nil
	}

	if aerr, ok := err.(awserr.Error); ok && aerr.Code() == secretsmanager.ErrCodeResourceNotFoundException {
		_, err = s.client.CreateSecretWithContext(ctx, &secretsmanager.CreateSecretInput{
			Name:         aws.String(name),
			SecretString: aws.String(value),
		})
		if err == nil {
			s.log.Info("Created secret", slog.String("name", name))
			return nil
		}
	}

	return fmt.Errorf("%w: putting secret %q: %v", interfaces.ErrStore, name, err)
}

// GetSecret retrieves the current value of the named secret.
func (s *SecretsManagerStore) GetSecret(ctx context.Context, name string) (string, error) {
	out, err := s.client.GetSecretValueWithContext(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(name),
	})
	if err != nil {
		return "", fmt.Errorf("%w: getting secret %q: %v", interfaces.ErrStore, name, err)
	}
	if out.SecretString == nil {
		return "", fmt.Errorf("%w: secret %q has no string value", interfaces.ErrStore, name)
	}
	return *out.SecretString, nil
}

package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/ssm"
	"github.com/medarchive/content-pipeline/interfaces"
)

// SSMParameterStore implements the parameter store on AWS SSM Parameter
// Store.
type SSMParameterStore struct {
	client *ssm.SSM
	log    *slog.Logger
}

// NewSSMParameterStore creates a parameter store in the session's region.
func NewSSMParameterStore(sess *session.Session, log *slog.Logger) *SSMParameterStore {
	return &SSMParameterStore{
		client: ssm.New(sess),
		log:    log,
	}
}

// PutParameter writes the named parameter, overwriting any prior value.
func (s *SSMParameterStore) PutParameter(ctx context.Context, name, value string) error {
	_, err := s.client.PutParameterWithContext(ctx, &ssm.PutParameterInput{
		Name:      aws.String(name),
		Value:     aws.String(value),
		Type:      aws.String(ssm.ParameterTypeString),
		Overwrite: aws.Bool(true),
	})
	if err != nil {
		return fmt.Errorf("%w: putting parameter %q: %v", interfaces.ErrStore, name, err)
	}
	s.log.Debug("Stored parameter", slog.String("name", name))
	return nil
}

// GetParameter retrieves the named parameter's value.
func (s *SSMParameterStore) GetParameter(ctx context.Context, name string) (string, error) {
	out, err := s.client.GetParameterWithContext(ctx, &ssm.GetParameterInput{
		Name: aws.String(name),
	})
	if err != nil {
		return "", fmt.Errorf("%w: getting parameter %q: %v", interfaces.ErrStore, name, err)
	}
	if out.Parameter == nil || out.Parameter.Value == nil {
		return "", fmt.Errorf("%w: parameter %q has no value", interfaces.ErrStore, name)
	}
	return *out.Parameter.Value, nil
}

// Package secrets stores the shared OAuth client secret, one live value per
// gateway name.
package secrets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"

	"agentcore-agent/internal/domain"
)

// secretsAPI is the minimal Secrets Manager interface required by Store.
// *secretsmanager.Client satisfies it.
type secretsAPI interface {
	CreateSecret(ctx context.Context, in *secretsmanager.CreateSecretInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.CreateSecretOutput, error)
	UpdateSecret(ctx context.Context, in *secretsmanager.UpdateSecretInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.UpdateSecretOutput, error)
	GetSecretValue(ctx context.Context, in *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
	DeleteSecret(ctx context.Context, in *secretsmanager.DeleteSecretInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.DeleteSecretOutput, error)
}

// Store persists gateway client secrets in Secrets Manager.
type Store struct {
	api secretsAPI
	log *slog.Logger
}

// New creates a Store.
func New(api secretsAPI, log *slog.Logger) (*Store, error) {
	if api == nil {
		return nil, errors.New("secrets: api must not be nil")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Store{api: api, log: log}, nil
}

// NameForGateway derives the deterministic secret name for a gateway.
func NameForGateway(gatewayName string) string {
	return "gateway-" + strings.ToLower(gatewayName) + "-client-secret"
}

// Store writes the secret value, creating it when absent and updating in
// place when it already exists. A pre-existing secret is the expected reuse
// path, never an error.
func (s *Store) Store(ctx context.Context, name, value string) error {
	_, err := s.api.CreateSecret(ctx, &secretsmanager.CreateSecretInput{
		Name:         aws.String(name),
		Description:  aws.String("OAuth client secret for gateway " + name),
		SecretString: aws.String(value),
	})
	if err == nil {
		s.log.Info("stored client secret", "secret", name)
		return nil
	}

	var exists *types.ResourceExistsException
	if !errors.As(err, &exists) {
		return fmt.Errorf("secrets: create secret %q: %w", name, err)
	}

	if _, err := s.api.UpdateSecret(ctx, &secretsmanager.UpdateSecretInput{
		SecretId:     aws.String(name),
		SecretString: aws.String(value),
	}); err != nil {
		return fmt.Errorf("secrets: update secret %q: %w", name, err)
	}
	s.log.Info("updated client secret", "secret", name)
	return nil
}

// Get returns the live secret value. A missing secret is a legitimate
// control-flow signal surfaced as a not-found error.
func (s *Store) Get(ctx context.Context, name string) (string, error) {
	out, err := s.api.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(name),
	})
	if err != nil {
		var notFound *types.ResourceNotFoundException
		if errors.As(err, &notFound) {
			return "", domain.NotFound("secret_missing", fmt.Errorf("secrets: secret %q not found: %w", name, err))
		}
		return "", fmt.Errorf("secrets: get secret %q: %w", name, err)
	}
	if out.SecretString == nil {
		return "", fmt.Errorf("secrets: secret %q has no string value", name)
	}
	return aws.ToString(out.SecretString), nil
}

// Delete removes the secret without a recovery window. Absence is not an
// error, only logged.
func (s *Store) Delete(ctx context.Context, name string) error {
	_, err := s.api.DeleteSecret(ctx, &secretsmanager.DeleteSecretInput{
		SecretId:                   aws.String(name),
		ForceDeleteWithoutRecovery: aws.Bool(true),
	})
	if err != nil {
		var notFound *types.ResourceNotFoundException
		if errors.As(err, &notFound) {
			s.log.Warn("secret not found, skipping deletion", "secret", name)
			return nil
		}
		return fmt.Errorf("secrets: delete secret %q: %w", name, err)
	}
	s.log.Info("deleted client secret", "secret", name)
	return nil
}

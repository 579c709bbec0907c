package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/secretsmanager"
	"github.com/hashicorp/vault/api"
)

// Secret keys resolved by LoadSecrets
const (
	SecretClickHousePassword = "clickhouse_password"
	SecretMongoDBURI         = "mongodb_uri"
	SecretRedisPassword      = "redis_password"
)

// ErrSecretNotFound is returned when a provider has no value for a key
var ErrSecretNotFound = errors.New("secret not found")

// SecretManager retrieves backend credentials
type SecretManager interface {
	GetSecret(key string) (string, error)
}

// EnvSecretManager reads IOCHUNT_<KEY> environment variables (default)
type EnvSecretManager struct{}

func (e *EnvSecretManager) GetSecret(key string) (string, error) {
	envKey := "IOCHUNT_" + strings.ToUpper(key)
	value := os.Getenv(envKey)
	if value == "" {
		return "", fmt.Errorf("environment variable %s not set: %w", envKey, ErrSecretNotFound)
	}
	return value, nil
}

// VaultSecretManager retrieves secrets from one HashiCorp Vault KV path
type VaultSecretManager struct {
	path   string
	client *api.Client
}

func NewVaultSecretManager(config *Config) (*VaultSecretManager, error) {
	client, err := api.NewClient(&api.Config{
		Address: config.Secrets.Vault.Address,
		Timeout: 10 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Vault client: %w", err)
	}

	if config.Secrets.Vault.Token != "" {
		client.SetToken(config.Secrets.Vault.Token)
	} else if token := os.Getenv("VAULT_TOKEN"); token != "" {
		client.SetToken(token)
	}

	path := config.Secrets.Vault.Path
	if path == "" {
		path = "secret/iochunt"
	}
	return &VaultSecretManager{path: path, client: client}, nil
}

func (v *VaultSecretManager) GetSecret(key string) (string, error) {
	secret, err := v.client.Logical().Read(v.path)
	if err != nil {
		return "", fmt.Errorf("failed to read from Vault: %w", err)
	}
	if secret == nil || secret.Data == nil {
		return "", fmt.Errorf("no secret at path %s: %w", v.path, ErrSecretNotFound)
	}

	// KV v2 nests the payload under "data"
	data := secret.Data
	if nested, ok := data["data"].(map[string]interface{}); ok {
		data = nested
	}

	value, ok := data[key]
	if !ok {
		return "", fmt.Errorf("key %s not in Vault secret: %w", key, ErrSecretNotFound)
	}
	strValue, ok := value.(string)
	if !ok {
		return "", fmt.Errorf("secret value for key %s is not a string", key)
	}
	return strValue, nil
}

// AWSSecretManager retrieves secrets from one AWS Secrets Manager JSON secret
type AWSSecretManager struct {
	secretID string
	client   *secretsmanager.SecretsManager
}

func NewAWSSecretManager(config *Config) (*AWSSecretManager, error) {
	awsCfg := &aws.Config{Region: aws.String(config.Secrets.AWS.Region)}
	if config.Secrets.AWS.Endpoint != "" {
		awsCfg.Endpoint = aws.String(config.Secrets.AWS.Endpoint)
	}
	if config.Secrets.AWS.AccessKey != "" && config.Secrets.AWS.SecretKey != "" {
		awsCfg.Credentials = credentials.NewStaticCredentials(
			config.Secrets.AWS.AccessKey,
			config.Secrets.AWS.SecretKey,
			"",
		)
	}

	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	secretID := config.Secrets.AWS.SecretID
	if secretID == "" {
		secretID = "iochunt/secrets"
	}
	return &AWSSecretManager{secretID: secretID, client: secretsmanager.New(sess)}, nil
}

func (a *AWSSecretManager) GetSecret(key string) (string, error) {
	result, err := a.client.GetSecretValue(&secretsmanager.GetSecretValueInput{
		SecretId: aws.String(a.secretID),
	})
	if err != nil {
		return "", fmt.Errorf("failed to get secret from AWS: %w", err)
	}
	if result.SecretString == nil {
		return "", fmt.Errorf("secret %s has no string value: %w", a.secretID, ErrSecretNotFound)
	}

	var secrets map[string]string
	if err := json.Unmarshal([]byte(*result.SecretString), &secrets); err != nil {
		return "", fmt.Errorf("failed to parse AWS secret JSON: %w", err)
	}

	value, ok := secrets[key]
	if !ok {
		return "", fmt.Errorf("key %s not in AWS secret: %w", key, ErrSecretNotFound)
	}
	return value, nil
}

// NewSecretManager creates the secret manager named by secrets.provider
func NewSecretManager(config *Config) (SecretManager, error) {
	provider := config.Secrets.Provider
	if provider == "" {
		provider = "env"
	}

	switch provider {
	case "env":
		return &EnvSecretManager{}, nil
	case "vault":
		return NewVaultSecretManager(config)
	case "aws":
		return NewAWSSecretManager(config)
	default:
		return nil, fmt.Errorf("unsupported secret provider: %s", provider)
	}
}

// LoadSecrets overlays backend credentials from the configured provider.
// A key the provider does not hold keeps its configured value.
func LoadSecrets(config *Config) error {
	manager, err := NewSecretManager(config)
	if err != nil {
		return fmt.Errorf("failed to create secret manager: %w", err)
	}

	targets := map[string]*string{
		SecretClickHousePassword: &config.ClickHouse.Password,
		SecretMongoDBURI:         &config.MongoDB.URI,
		SecretRedisPassword:      &config.Redis.Password,
	}
	for key, dst := range targets {
		value, err := manager.GetSecret(key)
		if errors.Is(err, ErrSecretNotFound) {
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to load %s: %w", key, err)
		}
		*dst = value
	}
	return nil
}

// Redacted returns a copy safe to log
func (c *Config) Redacted() *Config {
	masked := *c
	if masked.ClickHouse.Password != "" {
		masked.ClickHouse.Password = "********"
	}
	if masked.Redis.Password != "" {
		masked.Redis.Password = "********"
	}
	if i := strings.Index(masked.MongoDB.URI, "@"); i > 0 {
		if j := strings.Index(masked.MongoDB.URI, "://"); j > 0 && j < i {
			masked.MongoDB.URI = masked.MongoDB.URI[:j+3] + "********" + masked.MongoDB.URI[i:]
		}
	}
	masked.Secrets.Vault.Token = ""
	masked.Secrets.AWS.SecretKey = ""
	return &masked
}

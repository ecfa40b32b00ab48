package cloud

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// SecretsAPI is the slice of the Secrets Manager API credential
// resolution needs.
type SecretsAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// Credentials is the access key pair handed to the probe containers via
// the rendered group variables. Long-lived credentials never come from the
// manifest: the environment wins, then the named Secrets Manager secret.
type Credentials struct {
	AccessKey string `json:"access_key"`
	SecretKey string `json:"secret_key"`
}

// ResolveCredentials sources the probe credentials from the environment
// (AWS_ACCESS_KEY_ID / AWS_SECRET_ACCESS_KEY) or, failing that, from the
// manifest's credentials_secret in Secrets Manager.
func ResolveCredentials(ctx context.Context, api SecretsAPI, secretName string) (Credentials, error) {
	access := os.Getenv("AWS_ACCESS_KEY_ID")
	secret := os.Getenv("AWS_SECRET_ACCESS_KEY")
	if access != "" && secret != "" {
		return Credentials{AccessKey: access, SecretKey: secret}, nil
	}

	if secretName == "" {
		return Credentials{}, fmt.Errorf("no probe credentials: set AWS_ACCESS_KEY_ID/AWS_SECRET_ACCESS_KEY or aws.credentials_secret in the manifest")
	}

	out, err := api.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(secretName),
	})
	if err != nil {
		return Credentials{}, fmt.Errorf("failed to read secret %s: %w", secretName, err)
	}
	if out.SecretString == nil {
		return Credentials{}, fmt.Errorf("secret %s has no string value", secretName)
	}

	var creds Credentials
	if err := json.Unmarshal([]byte(*out.SecretString), &creds); err != nil {
		return Credentials{}, fmt.Errorf("failed to parse secret %s: %w", secretName, err)
	}
	if creds.AccessKey == "" || creds.SecretKey == "" {
		return Credentials{}, fmt.Errorf("secret %s is missing access_key or secret_key", secretName)
	}
	return creds, nil
}

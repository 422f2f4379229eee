package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// SecretGetter es el subconjunto del cliente de Secrets Manager que usamos.
type SecretGetter interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// LoadSecrets vuelca un secreto JSON de AWS Secrets Manager en el entorno.
// Sin AWS_SECRETS_MANAGER_SECRET_ID no hace nada. Devuelve cuántas variables aplicó.
func LoadSecrets(ctx context.Context) (int, error) {
	secretID := strings.TrimSpace(os.Getenv("AWS_SECRETS_MANAGER_SECRET_ID"))
	if secretID == "" {
		return 0, nil
	}
	awsCfg, err := loadAWSConfig(ctx, os.Getenv("AWS_SECRETS_MANAGER_REGION"))
	if err != nil {
		return 0, fmt.Errorf("aws config: %w", err)
	}
	overwrite := strings.EqualFold(os.Getenv("AWS_SECRETS_MANAGER_OVERWRITE"), "true")
	return applySecret(ctx, secretsmanager.NewFromConfig(awsCfg), secretID, overwrite)
}

func applySecret(ctx context.Context, client SecretGetter, secretID string, overwrite bool) (int, error) {
	out, err := client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId:     aws.String(secretID),
		VersionStage: aws.String("AWSCURRENT"),
	})
	if err != nil {
		return 0, fmt.Errorf("fetching secret %s: %w", secretID, err)
	}

	var payload string
	switch {
	case out.SecretString != nil:
		payload = *out.SecretString
	case len(out.SecretBinary) > 0:
		payload = string(out.SecretBinary)
	default:
		return 0, errors.New("secret has no payload")
	}

	var kv map[string]any
	if err := json.Unmarshal([]byte(payload), &kv); err != nil {
		return 0, fmt.Errorf("parsing secret %s as JSON: %w", secretID, err)
	}

	applied := 0
	for key, val := range kv {
		if !overwrite && os.Getenv(key) != "" {
			continue
		}
		if err := os.Setenv(key, fmt.Sprint(val)); err != nil {
			return applied, fmt.Errorf("setting env %s: %w", key, err)
		}
		applied++
	}
	return applied, nil
}

func loadAWSConfig(ctx context.Context, region string) (aws.Config, error) {
	if strings.TrimSpace(region) != "" {
		return awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	}
	return awsconfig.LoadDefaultConfig(ctx)
}

// Package flags holds the CLI flag definitions and setup helpers shared by
// all pipeline entrypoints.
package flags

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/medarchive/content-pipeline/common"
	"github.com/medarchive/content-pipeline/httpclient"
	"github.com/urfave/cli/v2"
)

var LogJSONFlag = &cli.BoolFlag{
	Name:  "log-json",
	Value: false,
	Usage: "log in JSON format",
}

var LogDebugFlag = &cli.BoolFlag{
	Name:    "log-debug",
	Value:   false,
	Usage:   "log debug messages",
	EnvVars: []string{"LOG_DEBUG"},
}

var LogUIDFlag = &cli.BoolFlag{
	Name:  "log-uid",
	Value: false,
	Usage: "generate a uuid and add to all log messages",
}

var BaseNameFlag = &cli.StringFlag{
	Name:     "base-name",
	Required: true,
	Usage:    "base identifier for key material and store names",
	EnvVars:  []string{"BASE_NAME"},
}

var KeyIDFlag = &cli.StringFlag{
	Name:    "key-id",
	Usage:   "key ID carried in assertion headers (defaults to base-name)",
	EnvVars: []string{"KEY_ID"},
}

var RegionFlag = &cli.StringFlag{
	Name:    "region",
	Usage:   "AWS region for the catalog table",
	EnvVars: []string{"AWS_REGION"},
}

var TableFlag = &cli.StringFlag{
	Name:    "table",
	Usage:   "DynamoDB table holding the catalog",
	EnvVars: []string{"DYNAMODB_TABLE"},
}

var SecretStoreFlag = &cli.StringFlag{
	Name:    "secret-store",
	Value:   "awssm://",
	Usage:   "secret store location URI (awssm://<region>, vault://host:port/mount/path, mem://)",
	EnvVars: []string{"SECRET_STORE"},
}

var ParamStoreFlag = &cli.StringFlag{
	Name:    "param-store",
	Value:   "awsssm://",
	Usage:   "parameter store location URI (awsssm://<region>, mem://)",
	EnvVars: []string{"PARAM_STORE"},
}

var APIKeySecretFlag = &cli.StringFlag{
	Name:    "api-key-secret",
	Usage:   "secret store name holding the provider API key (defaults to <base-name>-api-key)",
	EnvVars: []string{"API_KEY_SECRET"},
}

var TokenURLFlag = &cli.StringFlag{
	Name:    "token-url",
	Value:   "https://int.api.service.nhs.uk/oauth2/token",
	Usage:   "provider token endpoint",
	EnvVars: []string{"TOKEN_URL"},
}

var ContentAPIFlag = &cli.StringFlag{
	Name:    "content-api-url",
	Value:   "https://int.api.service.nhs.uk/nhs-website-content",
	Usage:   "provider content API base URL",
	EnvVars: []string{"CONTENT_API_URL"},
}

var RetryMaxAttemptsFlag = &cli.IntFlag{
	Name:  "retry-max-attempts",
	Value: 5,
	Usage: "total attempts per provider request",
}

var RetryBaseDelayFlag = &cli.DurationFlag{
	Name:  "retry-base-delay",
	Value: 500 * time.Millisecond,
	Usage: "first retry delay, doubled each attempt",
}

var RetryMaxDelayFlag = &cli.DurationFlag{
	Name:  "retry-max-delay",
	Value: 30 * time.Second,
	Usage: "cap on a single retry delay",
}

var CommonFlags = []cli.Flag{
	LogJSONFlag,
	LogDebugFlag,
	LogUIDFlag,
}

var RetryFlags = []cli.Flag{
	RetryMaxAttemptsFlag,
	RetryBaseDelayFlag,
	RetryMaxDelayFlag,
}

// SetupLogger builds the process logger from the common logging flags.
func SetupLogger(cCtx *cli.Context, service string) *slog.Logger {
	logger := common.SetupLogger(&common.LoggingOpts{
		Debug:   cCtx.Bool(LogDebugFlag.Name),
		JSON:    cCtx.Bool(LogJSONFlag.Name),
		Service: service,
		Version: common.Version,
	})

	if cCtx.Bool(LogUIDFlag.Name) {
		id := uuid.Must(uuid.NewRandom())
		logger = logger.With("uid", id.String())
	}
	return logger
}

// RetryPolicy builds the resilient client policy from the retry flags.
func RetryPolicy(cCtx *cli.Context) httpclient.Policy {
	policy := httpclient.DefaultPolicy()
	policy.MaxAttempts = cCtx.Int(RetryMaxAttemptsFlag.Name)
	policy.BaseDelay = cCtx.Duration(RetryBaseDelayFlag.Name)
	policy.MaxDelay = cCtx.Duration(RetryMaxDelayFlag.Name)
	return policy
}

// KeyID resolves the assertion key ID, defaulting to the base identifier.
func KeyID(cCtx *cli.Context) string {
	if v := cCtx.String(KeyIDFlag.Name); v != "" {
		return v
	}
	return cCtx.String(BaseNameFlag.Name)
}

// APIKeySecretName resolves the secret name holding the provider API key.
func APIKeySecretName(cCtx *cli.Context) string {
	if v := cCtx.String(APIKeySecretFlag.Name); v != "" {
		return v
	}
	return cCtx.String(BaseNameFlag.Name) + "-api-key"
}

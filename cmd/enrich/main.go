// Command enrich performs bounded units of the fill-missing-field loop.
//
// By default it runs exactly one step and prints the step result as JSON,
// matching the contract expected by external re-invocation orchestrators
// (read moreItems, pause, invoke again). With --loop it drives the step to
// completion locally with serial invocations and a short pause in between.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/medarchive/content-pipeline/catalog"
	"github.com/medarchive/content-pipeline/cmd/flags"
	"github.com/medarchive/content-pipeline/driver"
	"github.com/medarchive/content-pipeline/httpclient"
	"github.com/medarchive/content-pipeline/interfaces"
	"github.com/medarchive/content-pipeline/keymaterial"
	"github.com/medarchive/content-pipeline/storage"
	"github.com/medarchive/content-pipeline/tokenbroker"
	"github.com/urfave/cli/v2"
)

var (
	fieldFlag = &cli.StringFlag{
		Name:     "field",
		Required: true,
		Usage:    "detail-document field to fetch and store",
		EnvVars:  []string{"ADDITIONAL_FIELD"},
	}
	batchSizeFlag = &cli.IntFlag{
		Name:  "batch-size",
		Value: 25,
		Usage: "entries processed per invocation",
	}
	runBudgetFlag = &cli.DurationFlag{
		Name:  "run-budget",
		Value: 60 * time.Second,
		Usage: "wall-clock budget for one invocation",
	}
	loopFlag = &cli.BoolFlag{
		Name:  "loop",
		Value: false,
		Usage: "drive the step to completion locally instead of running once",
	}
	pauseFlag = &cli.DurationFlag{
		Name:  "pause",
		Value: time.Second,
		Usage: "pause between invocations when looping",
	}
	maxInvocationsFlag = &cli.IntFlag{
		Name:  "max-invocations",
		Value: 0,
		Usage: "cap on invocations when looping (0 = unlimited)",
	}
)

func main() {
	_ = godotenv.Load()

	app := &cli.App{
		Name:  "enrich",
		Usage: "Fill one missing field across the archived catalog",
		Flags: append(append([]cli.Flag{
			flags.BaseNameFlag,
			flags.KeyIDFlag,
			flags.RegionFlag,
			flags.TableFlag,
			flags.SecretStoreFlag,
			flags.APIKeySecretFlag,
			flags.TokenURLFlag,
			fieldFlag,
			batchSizeFlag,
			runBudgetFlag,
			loopFlag,
			pauseFlag,
			maxInvocationsFlag,
		}, flags.RetryFlags...), flags.CommonFlags...),
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(cCtx *cli.Context) error {
	logger := flags.SetupLogger(cCtx, "enrich")
	ctx := context.Background()

	factory := storage.NewFactory(logger)

	store, err := factory.CatalogStoreFor(cCtx.String(flags.RegionFlag.Name), cCtx.String(flags.TableFlag.Name))
	if err != nil {
		logger.Error("Failed to create catalog store", "err", err)
		return err
	}
	secrets, err := factory.SecretStoreFor(cCtx.String(flags.SecretStoreFlag.Name))
	if err != nil {
		logger.Error("Failed to create secret store", "err", err)
		return err
	}

	apiKeyValue, err := secrets.GetSecret(ctx, flags.APIKeySecretName(cCtx))
	if err != nil {
		logger.Error("Failed to read API key secret", "err", err)
		return err
	}
	apiKey := tokenbroker.ParseAPIKeySecret(apiKeyValue)

	privateKey, err := keymaterial.LoadPrivateKey(ctx, secrets, cCtx.String(flags.BaseNameFlag.Name))
	if err != nil {
		logger.Error("Failed to load private key", "err", err)
		return err
	}

	client := httpclient.New(flags.RetryPolicy(cCtx), logger)
	broker, err := tokenbroker.New(tokenbroker.Config{
		TokenURL:   cCtx.String(flags.TokenURLFlag.Name),
		APIKey:     apiKey,
		KeyID:      flags.KeyID(cCtx),
		PrivateKey: privateKey,
	}, client, logger)
	if err != nil {
		return err
	}

	enricher, err := catalog.NewEnricher(catalog.EnricherConfig{
		Field:     cCtx.String(fieldFlag.Name),
		APIKey:    apiKey,
		BatchSize: cCtx.Int(batchSizeFlag.Name),
		RunBudget: cCtx.Duration(runBudgetFlag.Name),
	}, store, broker, client, logger)
	if err != nil {
		return err
	}

	var result interfaces.StepResult
	if cCtx.Bool(loopFlag.Name) {
		d := driver.New(driver.Config{
			Pause:          cCtx.Duration(pauseFlag.Name),
			MaxInvocations: cCtx.Int(maxInvocationsFlag.Name),
		}, enricher, logger)
		result, err = d.Run(ctx)
	} else {
		result, err = enricher.RunOnce(ctx)
	}
	if err != nil {
		logger.Error("Enrichment failed",
			slog.Int("enriched", result.Enriched),
			slog.Int("skipped", result.Skipped),
			"err", err)
		return err
	}

	out, _ := json.Marshal(map[string]any{
		"moreItems": result.MoreItems,
		"scanned":   result.Scanned,
		"enriched":  result.Enriched,
		"skipped":   result.Skipped,
	})
	fmt.Println(string(out))
	return nil
}

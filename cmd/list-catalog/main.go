// Command list-catalog enumerates the provider's catalog index and writes
// one record per item into the catalog store. Triggered manually per catalog
// refresh; safe to re-run.
package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/medarchive/content-pipeline/catalog"
	"github.com/medarchive/content-pipeline/cmd/flags"
	"github.com/medarchive/content-pipeline/httpclient"
	"github.com/medarchive/content-pipeline/keymaterial"
	"github.com/medarchive/content-pipeline/storage"
	"github.com/medarchive/content-pipeline/tokenbroker"
	"github.com/urfave/cli/v2"
)

func main() {
	_ = godotenv.Load()

	app := &cli.App{
		Name:  "list-catalog",
		Usage: "Archive the provider's catalog index into the item store",
		Flags: append(append([]cli.Flag{
			flags.BaseNameFlag,
			flags.KeyIDFlag,
			flags.RegionFlag,
			flags.TableFlag,
			flags.SecretStoreFlag,
			flags.APIKeySecretFlag,
			flags.TokenURLFlag,
			flags.ContentAPIFlag,
		}, flags.RetryFlags...), flags.CommonFlags...),
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(cCtx *cli.Context) error {
	logger := flags.SetupLogger(cCtx, "list-catalog")
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

	lister, err := catalog.NewLister(catalog.ListerConfig{
		IndexURL: cCtx.String(flags.ContentAPIFlag.Name) + "/medicines",
		APIKey:   apiKey,
	}, store, broker, client, logger)
	if err != nil {
		return err
	}

	count, err := lister.Run(ctx)
	if err != nil {
		logger.Error("Catalog listing failed", slog.Int("written", count), "err", err)
		return err
	}

	logger.Info("Catalog archived", slog.Int("entries", count))
	return nil
}

// Command generate-keys generates the pipeline's RSA key pair, derives the
// JWKS, and stores all material. Run manually, once per key rotation; the
// printed key-set must be re-registered with the provider before the
// pipeline can authenticate.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/medarchive/content-pipeline/cmd/flags"
	"github.com/medarchive/content-pipeline/keymaterial"
	"github.com/medarchive/content-pipeline/storage"
	"github.com/urfave/cli/v2"
)

var keyBitsFlag = &cli.IntFlag{
	Name:  "key-bits",
	Value: keymaterial.DefaultKeyBits,
	Usage: "RSA modulus size in bits",
}

func main() {
	_ = godotenv.Load()

	app := &cli.App{
		Name:  "generate-keys",
		Usage: "Generate and store the pipeline's signing key material",
		Flags: append([]cli.Flag{
			flags.BaseNameFlag,
			flags.SecretStoreFlag,
			flags.ParamStoreFlag,
			keyBitsFlag,
		}, flags.CommonFlags...),
		Action: func(cCtx *cli.Context) error {
			logger := flags.SetupLogger(cCtx, "generate-keys")
			ctx := context.Background()

			factory := storage.NewFactory(logger)
			secrets, err := factory.SecretStoreFor(cCtx.String(flags.SecretStoreFlag.Name))
			if err != nil {
				logger.Error("Failed to create secret store", "err", err)
				return err
			}
			params, err := factory.ParameterStoreFor(cCtx.String(flags.ParamStoreFlag.Name))
			if err != nil {
				logger.Error("Failed to create parameter store", "err", err)
				return err
			}

			manager, err := keymaterial.New(
				cCtx.String(flags.BaseNameFlag.Name),
				cCtx.Int(keyBitsFlag.Name),
				secrets, params, logger)
			if err != nil {
				return err
			}

			result, err := manager.GenerateAndStore(ctx)
			if err != nil {
				logger.Error("Key generation failed", "err", err)
				return err
			}

			out, _ := json.MarshalIndent(result, "", "  ")
			fmt.Println(string(out))
			return nil
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// Command jwks-server serves the published key-set, health probes, and
// Prometheus metrics.
package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/medarchive/content-pipeline/cmd/flags"
	"github.com/medarchive/content-pipeline/httpserver"
	"github.com/medarchive/content-pipeline/storage"
	"github.com/urfave/cli/v2"
)

var (
	listenAddrFlag = &cli.StringFlag{
		Name:  "listen-addr",
		Value: "127.0.0.1:8080",
		Usage: "address to listen on",
	}
	pprofFlag = &cli.BoolFlag{
		Name:  "pprof",
		Value: false,
		Usage: "enable pprof debug endpoint",
	}
)

func main() {
	_ = godotenv.Load()

	app := &cli.App{
		Name:  "jwks-server",
		Usage: "Serve the pipeline's public key-set and ops endpoints",
		Flags: append([]cli.Flag{
			flags.BaseNameFlag,
			flags.ParamStoreFlag,
			listenAddrFlag,
			pprofFlag,
		}, flags.CommonFlags...),
		Action: func(cCtx *cli.Context) error {
			logger := flags.SetupLogger(cCtx, "jwks-server")

			factory := storage.NewFactory(logger)
			params, err := factory.ParameterStoreFor(cCtx.String(flags.ParamStoreFlag.Name))
			if err != nil {
				logger.Error("Failed to create parameter store", "err", err)
				return err
			}

			server := httpserver.New(&httpserver.Config{
				ListenAddr:               cCtx.String(listenAddrFlag.Name),
				BaseName:                 cCtx.String(flags.BaseNameFlag.Name),
				EnablePprof:              cCtx.Bool(pprofFlag.Name),
				Log:                      logger,
				GracefulShutdownDuration: 30 * time.Second,
				ReadTimeout:              60 * time.Second,
				WriteTimeout:             30 * time.Second,
			}, params)

			server.RunInBackground()

			exit := make(chan os.Signal, 1)
			signal.Notify(exit, os.Interrupt, syscall.SIGTERM)

			logger.Info("Server is running, press Ctrl+C to stop")
			<-exit
			logger.Info("Shutdown signal received")

			server.Shutdown()
			return nil
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// Package serve implements the subcommand that runs the AutoLabel HTTP
// service: datastore, blob storage, classification pipeline and API server.
package serve

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/labstack/echo/v4"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/autolabelhq/autolabel-go/internal/api"
	"github.com/autolabelhq/autolabel-go/internal/classifier"
	"github.com/autolabelhq/autolabel-go/internal/conf"
	"github.com/autolabelhq/autolabel-go/internal/datastore"
	"github.com/autolabelhq/autolabel-go/internal/imagestore"
	"github.com/autolabelhq/autolabel-go/internal/ingest"
	"github.com/autolabelhq/autolabel-go/internal/labeling"
	"github.com/autolabelhq/autolabel-go/internal/logging"
	"github.com/autolabelhq/autolabel-go/internal/observability"
)

// Command creates a new command for running the labeling service.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the labeling service",
		Long:  "Start the HTTP API server, accepting uploads and serving the labeling workflow.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(settings)
		},
	}

	if err := setupFlags(cmd, settings); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
		os.Exit(1)
	}

	return cmd
}

// setupFlags configures flags specific to the serve command.
func setupFlags(cmd *cobra.Command, settings *conf.Settings) error {
	cmd.Flags().StringVar(&settings.WebServer.Port, "port", viper.GetString("webserver.port"), "Port for the HTTP API server")
	cmd.Flags().IntVar(&settings.Classifier.Concurrency, "concurrency", viper.GetInt("classifier.concurrency"), "Maximum concurrent classification requests")

	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("error binding flags: %v", err)
	}

	return nil
}

// runServer wires all service components together and blocks until the
// process receives an interrupt or termination signal.
func runServer(settings *conf.Settings) error {
	logger := logging.ForService("serve")

	store := datastore.New(settings)
	if err := store.Open(); err != nil {
		return fmt.Errorf("failed to open datastore: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("failed to close datastore", "error", err)
		}
	}()

	blobs, err := imagestore.NewFileStore(settings.Storage.UploadPath)
	if err != nil {
		return fmt.Errorf("failed to initialize image storage: %w", err)
	}

	oracle, err := classifier.NewHTTPClassifier(&settings.Classifier)
	if err != nil {
		return fmt.Errorf("failed to initialize classifier: %w", err)
	}
	dispatcher := classifier.NewDispatcher(oracle,
		settings.Classifier.Concurrency, settings.Classifier.Timeout)

	metrics, err := observability.NewMetrics()
	if err != nil {
		return fmt.Errorf("failed to initialize metrics: %w", err)
	}

	pipeline := ingest.New(store, blobs, dispatcher, metrics, settings.Storage.MaxFileSize)
	workflow := labeling.NewWorkflow(store, metrics)
	aggregator := labeling.NewAggregator(store, metrics)

	e := echo.New()
	e.HideBanner = true
	controller := api.New(e, store, settings, blobs, pipeline, workflow, aggregator, metrics)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("starting AutoLabel service",
		"port", settings.WebServer.Port,
		"classifier", settings.Classifier.Endpoint)

	return controller.Start(ctx)
}

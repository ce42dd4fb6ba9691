// Command cvsearch indexes résumés and answers hybrid filter and semantic
// queries over them.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/custodia-labs/cvsearch/internal/adapters/driven/config/file"
	"github.com/custodia-labs/cvsearch/internal/adapters/driven/embedding"
	"github.com/custodia-labs/cvsearch/internal/adapters/driving/cli"
	"github.com/custodia-labs/cvsearch/internal/app"
	"github.com/custodia-labs/cvsearch/internal/core/domain"
	"github.com/custodia-labs/cvsearch/internal/core/services"
)

var version = "dev"

func main() {
	if err := run(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	// A missing .env is not an error.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	configStore, err := file.NewConfigStore("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to open config: %v\n", err)
		return err
	}
	settingsService := services.NewSettingsService(configStore)

	svc, closeApp := openServices(ctx, settingsService)
	defer closeApp()

	cli.SetVersion(version)
	cli.SetServices(svc)

	return cli.Execute(ctx)
}

// openServices assembles the full service set. When the stores or the
// embedding provider are unreachable only settings are available, so that
// "cvsearch config" can still fix the configuration.
func openServices(ctx context.Context, settingsService *services.SettingsService) (cli.Services, func()) {
	ping := func(ctx context.Context, settings domain.EmbeddingSettings) error {
		provider, err := embedding.CreateAndValidate(ctx, settings)
		if err != nil {
			return err
		}
		return provider.Close()
	}

	degraded := func(err error) (cli.Services, func()) {
		return cli.Services{Settings: settingsService, PingEmbedding: ping, Unavailable: err}, func() {}
	}

	settings, err := settingsService.Get()
	if err != nil {
		return degraded(err)
	}
	if err := settingsService.Validate(); err != nil {
		return degraded(err)
	}

	a, err := app.Open(ctx, settings)
	if err != nil {
		return degraded(err)
	}
	closeApp := func() {
		if err := a.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}

	return cli.Services{
		Settings:      settingsService,
		Ingest:        a.Ingest,
		Search:        a.Search,
		Documents:     a.Documents,
		Health:        a.Health,
		Metrics:       a.Metrics,
		Schema:        a.Schema,
		PingEmbedding: ping,
	}, closeApp
}

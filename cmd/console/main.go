package main

import (
	"context"
	"os"

	"github.com/asedra/lonage-ai-platform/internal/cli"
	"github.com/asedra/lonage-ai-platform/internal/config"
	"github.com/asedra/lonage-ai-platform/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatalf("Failed to load config: %v", err)
	}
	logging.Configure(cfg.LogLevel)

	app := cli.NewApp(cfg)
	err = cli.NewRootCommand(app).ExecuteContext(context.Background())
	app.Client.Close()
	if err != nil {
		os.Exit(1)
	}
}

package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"hyperion/internal/pkg/app"
)

func main() {
	configPath := flag.String("config", app.DefaultConfigPath, "path to the JSON config file")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx, *configPath); err != nil {
		log.Fatal(err)
	}
}

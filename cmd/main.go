package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	cfgPkg "github.com/xhad/newschat/pkg/config"
)

func main() {
	// A missing .env is fine, the environment may already be set.
	_ = godotenv.Load()

	var configPath string
	var ingestOnce bool
	flag.StringVar(&configPath, "config", "", "Path to config file")
	flag.BoolVar(&ingestOnce, "ingest", false, "Run one ingestion pass and exit")
	flag.Parse()

	config, err := cfgPkg.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if errs := config.Validate(); len(errs) > 0 {
		for _, e := range errs {
			color.Red("config: %s: %s", e.Field, e.Message)
		}
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := newApp(ctx, config)
	if err != nil {
		log.Fatal(err)
	}
	defer app.Close()

	if ingestOnce {
		if err := runIngest(ctx, app); err != nil {
			log.Fatal(err)
		}
		return
	}

	if err := serve(ctx, app, config); err != nil {
		log.Fatal(err)
	}
}

package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/hbomb79/Syphon/internal"
	"github.com/hbomb79/Syphon/pkg/logger"
)

var log = logger.Get("Main")

// main is the entry point to the program; it loads the user's
// configuration (file and/or environment), then starts Syphon against a
// signal-aware context so SIGINT/SIGTERM shut the server down cleanly.
func main() {
	configPath := flag.String("config", "", "path to a YAML configuration file (optional; environment variables apply either way)")
	flag.Parse()

	config := internal.SyphonConfig{}
	var err error
	if *configPath != "" {
		err = config.LoadFromFile(*configPath)
	} else {
		err = config.LoadFromEnv()
	}
	if err != nil {
		log.Emit(logger.FATAL, "Failed to load configuration: %s\n", err.Error())
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := internal.New(config).Run(ctx); err != nil {
		log.Emit(logger.FATAL, "Syphon stopped due to error: %s\n", err.Error())
		os.Exit(1)
	}

	log.Emit(logger.STOP, "Syphon stopped\n")
}

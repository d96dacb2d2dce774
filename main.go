package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/hbomb79/Cinelog/internal"
	"github.com/hbomb79/Cinelog/pkg/logger"
)

var log = logger.Get("Main")

// main() is the entry point to the program, from here will
// we load the users Cinelog configuration (from the file provided, or
// the environment) and start the server.
func main() {
	configPath := flag.String("config", "", "path to a YAML config file (defaults to ~/.config/cinelog/config.yaml)")
	envOnly := flag.Bool("env", false, "load configuration solely from the environment")
	flag.Parse()

	var config internal.Config
	if *envOnly {
		if err := config.LoadFromEnv(); err != nil {
			log.Fatalf("Failed to load configuration: %v\n", err)
		}
	} else if err := config.LoadFromFile(*configPath); err != nil {
		log.Fatalf("Failed to load configuration: %v\n", err)
	}

	logger.SetMinLoggingLevel(logger.ParseLevel(config.LogLevel).Level())

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := internal.New(config).Run(ctx); err != nil {
		log.Emit(logger.FATAL, "Cinelog stopped due to error: %v\n", err)
		cancel()
		os.Exit(1)
	}

	log.Emit(logger.STOP, "Cinelog shutdown complete\n")
}

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mediamote/bridge/internal/bridge"
	"github.com/mediamote/bridge/internal/config"
	"github.com/mediamote/bridge/internal/observability"
)

func main() {
	configPath := flag.String("config", "", "path to TOML config file")
	printConfig := flag.Bool("print-config", false, "print an example config file and exit")
	flag.Parse()

	if *printConfig {
		example, err := exampleConfig()
		if err != nil {
			fmt.Fprintf(os.Stderr, "bridged: %v\n", err)
			os.Exit(1)
		}
		os.Stdout.Write(example)
		return
	}

	observability.InitLogger("bridged")

	cfg := config.DefaultConfig()
	if *configPath != "" {
		loaded, err := loadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "bridged: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc := bridge.NewService(cfg)
	if err := svc.Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "bridged: %v\n", err)
		os.Exit(1)
	}
}

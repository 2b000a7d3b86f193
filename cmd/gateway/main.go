package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/sensorgw/gateway/internal/config"
	"github.com/sensorgw/gateway/internal/logging"
	"github.com/sensorgw/gateway/internal/orchestrator"
)

const version = "v1.0.0"

func main() {
	configPath := flag.String("config", "gateway.yaml", "path to config file (missing file is not an error; defaults and env vars apply otherwise)")
	flag.Parse()

	args := flag.Args()
	if len(args) < 1 {
		fmt.Fprintf(os.Stderr, "usage: gateway [-config path] <port>\n")
		os.Exit(1)
	}
	port, err := strconv.Atoi(args[0])
	if err != nil || port < 1 || port > 65535 {
		fmt.Fprintf(os.Stderr, "usage: gateway [-config path] <port>\n")
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(*configPath, port)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := logging.New(os.Stderr, cfg.Logging.Format, cfg.Logging.Level)
	logger.Info().Str("version", version).Int("port", cfg.Server.Port).Msg("starting sensor gateway")

	o := orchestrator.New(cfg, logger)
	os.Exit(o.Run())
}

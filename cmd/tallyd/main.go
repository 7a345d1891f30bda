package main

import (
	"flag"
	"log"

	"github.com/joho/godotenv"

	"tallyd/internal/di"
	"tallyd/internal/structures"
)

func main() {
	flags := &structures.CliFlags{}
	flag.StringVar(&flags.ConfigPath, "config", "config.yaml", "path to the config file")
	flag.BoolVar(&flags.DebugMode, "debug", false, "enable debug logging to console")
	flag.Parse()

	// .env is optional, real env vars win either way.
	_ = godotenv.Load()

	if _, err := di.InitApp(flags); err != nil {
		log.Fatalf("tallyd: %s", err)
	}
}

package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/tillberg/autorestart"

	"github.com/ojoseleonardo/chatwoot-messenger-gateway/internal/cli"
)

func main() {
	go autorestart.RestartOnChange()

	// Secrets referenced from config as ${VAR} can live in a local .env.
	_ = godotenv.Load()

	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}

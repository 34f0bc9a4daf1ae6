package main

import (
	"os"

	"github.com/joho/godotenv"

	"postwatch/internal/cli"
)

func main() {
	// Optional .env for LINE credentials during local runs.
	_ = godotenv.Load()

	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}

package main

import (
	"os"

	"github.com/joho/godotenv"

	"github.com/couchcryptid/weather-yield-etl/internal/cli"
)

func main() {
	// A missing .env file is normal outside local development.
	_ = godotenv.Load()
	os.Exit(int(cli.Run()))
}

package main

import (
	"github.com/joho/godotenv"

	"github.com/otl-tools/otltemplate/internal/cli/commands"
)

func main() {
	// OTLTEMPLATE_* overrides may live in a local .env file
	_ = godotenv.Load()

	commands.Main()
}

package main

import (
	"github.com/BioHazard786/cafe/cmd"
	"github.com/BioHazard786/cafe/internal/logging"
	"github.com/joho/godotenv"
)

func main() {
	// A missing .env is fine; real environment variables still apply.
	_ = godotenv.Load(".env")

	closeLog := logging.Init()
	defer closeLog()
	cmd.Execute()
}

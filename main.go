package main

import (
	"os"

	"github.com/joho/godotenv"

	"sjsage522/dealwatch/cmd"
)

func main() {
	// Load environment variables
	godotenv.Load()

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

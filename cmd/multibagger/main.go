// Command multibagger screens Indian equities for multibagger potential. It
// serves the HTTP API and runs one-off discoveries from the terminal.
package main

import (
	"os"

	"github.com/joho/godotenv"
)

func main() {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

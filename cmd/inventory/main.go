package main

import (
	"os"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	rc, err := Run(os.Args[1:], NewCliConfig())
	if err != nil {
		writeError(os.Stderr, err)
	}
	os.Exit(rc)
}

package main

import (
	"os"

	"github.com/dshills/loupe/internal/cli"
)

func main() {
	os.Exit(cli.Run())
}

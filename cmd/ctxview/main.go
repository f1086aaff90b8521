package main

import (
	"os"

	"ctxview/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}

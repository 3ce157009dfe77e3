package main

import (
	"context"
	"os"

	"weather-widget/internal/cli"
)

var version = "dev"

func main() {
	os.Exit(cli.Execute(context.Background(), os.Args[1:], version, os.Stdout, os.Stderr))
}

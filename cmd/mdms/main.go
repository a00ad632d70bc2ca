// Package main is the entry point for the mdms CLI binary.
package main

import (
	"os"

	cli "mdms/pkg/cli"
)

func main() {
	os.Exit(cli.Execute())
}

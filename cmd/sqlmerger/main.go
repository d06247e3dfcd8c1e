// Package main provides the CLI for SQL Merger.
package main

import (
	"os"

	"github.com/leapstack-labs/sqlmerger/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}

// Package main is the insight command.
package main

import (
	"os"

	"github.com/kingdombarber/insight/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}

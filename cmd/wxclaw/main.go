// Package main is the entry point for the wxclaw CLI.
package main

import (
	"os"

	"github.com/WxClaw/WxClaw/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}

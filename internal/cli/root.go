// Package cli contains the wxclaw command tree.
package cli

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	// version can be overridden at build time via:
	// go build -ldflags "-X github.com/WxClaw/WxClaw/internal/cli.version=1.2.3"
	version = "0.3.0"
	logo    = "\n" +
		" __        __      ____ _\n" +
		" \\ \\      / /_  __/ ___| | __ ___      __\n" +
		"  \\ \\ /\\ / /\\ \\/ / |   | |/ _` \\ \\ /\\ / /\n" +
		"   \\ V  V /  >  <| |___| | (_| |\\ V  V /\n" +
		"    \\_/\\_/  /_/\\_\\\\____|_|\\__,_| \\_/\\_/\n"
)

var rootCmd = &cobra.Command{
	Use:   "wxclaw",
	Short: "WxClaw - WeChat Work AI relay",
	Long:  color.CyanString(logo) + "\nAn AI chat relay for WeChat Work, written in Go.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(serveCmd)
}

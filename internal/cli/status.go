package cli

import (
	"fmt"
	"os"

	"github.com/WxClaw/WxClaw/internal/config"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		printHeader("🏷️ WxClaw Version")
		fmt.Printf("Version: %s\n", version)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show system status",
	Run: func(cmd *cobra.Command, args []string) {
		printHeader("📊 WxClaw Status")
		fmt.Printf("Version: %s\n", version)

		// Check config
		configPath, err := config.ConfigPath()
		if err == nil {
			if _, statErr := os.Stat(configPath); statErr == nil {
				fmt.Println("Config:   ✓ Found (" + configPath + ")")
			} else {
				fmt.Println("Config:   ✗ Not found (" + configPath + ")")
			}
		}

		cfg, err := config.Load()
		if err != nil {
			fmt.Println("Config:   ? Unable to load:", err)
			return
		}

		if cfg.Provider.APIKey != "" {
			fmt.Println("API Key:  ✓ Found")
		} else {
			fmt.Println("API Key:  ✗ Not found (set WXCLAW_PROVIDER_API_KEY or DEEPSEEK_API_KEY)")
		}

		if cfg.WeCom.CorpID != "" && cfg.WeCom.Token != "" && cfg.WeCom.EncodingAESKey != "" {
			fmt.Println("WeCom:    ✓ Callback credentials configured")
		} else {
			fmt.Println("WeCom:    ✗ Missing callback credentials (corp_id/token/encoding_aes_key)")
		}
		if cfg.WeCom.CorpSecret != "" {
			fmt.Println("Send API: ✓ Corp secret configured")
		} else {
			fmt.Println("Send API: ✗ No corp secret (replies cannot be delivered)")
		}

		fmt.Printf("Callback: http://%s:%d%s\n", cfg.Server.Host, cfg.Server.Port, cfg.Server.CallbackPath)
		fmt.Println("Status:   Ready")
	},
}

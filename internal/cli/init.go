package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"postwatch/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create config directory with an example config",
	RunE:  initAction,
}

func initAction(_ *cobra.Command, _ []string) error {
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	configPath := filepath.Join(configDir, config.DefaultConfigFile)
	wrote, err := writeIfNotExists(configPath, []byte(exampleConfig))
	if err != nil {
		return err
	}

	if !wrote {
		fmt.Printf("Config directory %s already initialized.\n", configDir)
	} else {
		fmt.Printf("Initialized %s.\n", configDir)
	}
	return nil
}

// writeIfNotExists writes data to path if the file does not exist.
// Returns true if the file was created.
func writeIfNotExists(path string, data []byte) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		fmt.Printf("  exists: %s\n", path)
		return false, nil
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return false, fmt.Errorf("write %s: %w", path, err)
	}
	fmt.Printf("  created: %s\n", path)
	return true, nil
}

const exampleConfig = `# postwatch configuration

profile:
  url: https://truthsocial.com/@realDonaldTrump
  format: html   # html | rss
  # Selector overrides for sites whose markup differs from the defaults.
  # selectors:
  #   containers: ["div.status-card", "article.status"]
  #   content: [".status__content", ".post-content"]
  #   timestamp: ["time", ".status__relative-time"]
  #   link: ["a.status__relative-time", "a.post-link"]

line:
  endpoint: https://api.line.me/v2/bot/message/push
  token_env: LINE_CHANNEL_TOKEN
  user_env: LINE_USER_ID

cursor:
  path: .postwatch/last_post_id.txt

storage:
  path: .postwatch/postwatch.db
  retain_days: 90

watch:
  schedule: "@every 10m"

log:
  level: info
`

package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"postwatch/internal/config"
	"postwatch/internal/store"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recently notified posts",
	RunE:  historyAction,
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "maximum entries to show")
}

func historyAction(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configDir)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Storage.Disabled {
		return errors.New("storage is disabled in config, no history recorded")
	}

	db, err := store.Open(cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer func() { _ = db.Close() }()

	posts, err := db.Recent(cmd.Context(), historyLimit)
	if err != nil {
		return fmt.Errorf("read history: %w", err)
	}
	if len(posts) == 0 {
		fmt.Println("No notified posts recorded yet.")
		return nil
	}

	for _, p := range posts {
		status := "sent"
		if !p.Delivered {
			status = "failed"
		}
		fmt.Printf("%s  [%s]  %s\n", p.NotifiedAt.Local().Format("2006-01-02 15:04"), status, snippet(p.Content, 80))
		if p.Link != "" {
			fmt.Printf("    %s\n", p.Link)
		}
	}
	return nil
}

// snippet returns the first line of s, truncated to n runes.
func snippet(s string, n int) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}

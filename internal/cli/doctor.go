package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"postwatch/internal/config"
	"postwatch/internal/cursor"
	"postwatch/internal/store"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check configuration and dependencies",
	RunE:  doctorAction,
}

func doctorAction(_ *cobra.Command, _ []string) error {
	ok := true

	cfg, err := config.Load(configDir)
	if err != nil {
		printCheck(false, "config.yaml: %v", err)
		return fmt.Errorf("some checks failed")
	}
	printCheck(true, "config.yaml (profile %s, format %s)", cfg.Profile.URL, cfg.Profile.Format)

	// Cursor file
	cur, err := cursor.NewFileStore(cfg.Cursor.Path)
	if err != nil {
		printCheck(false, "cursor: %v", err)
		ok = false
	} else if last, err := cur.Load(); err != nil {
		printCheck(false, "cursor %s: %v", cfg.Cursor.Path, err)
		ok = false
	} else if last == "" {
		printCheck(true, "cursor %s (empty, first run pending)", cfg.Cursor.Path)
	} else {
		printCheck(true, "cursor %s (last post %s)", cfg.Cursor.Path, last)
	}

	// LINE credentials. Absence is not fatal for a run, but a doctor user
	// wants to know notifications would silently be skipped.
	if cfg.Line.Token == "" {
		printCheck(false, "%s not set (delivery will be skipped)", cfg.Line.TokenEnv)
		ok = false
	} else {
		printCheck(true, "line channel token")
	}
	if cfg.Line.UserID == "" {
		printCheck(false, "%s not set (delivery will be skipped)", cfg.Line.UserEnv)
		ok = false
	} else {
		printCheck(true, "line recipient")
	}

	// Archive
	if cfg.Storage.Disabled {
		printInfo("archive disabled")
	} else if db, err := store.Open(cfg.Storage.Path); err != nil {
		printCheck(false, "archive: %v", err)
		ok = false
	} else {
		_ = db.Close()
		printCheck(true, "archive %s", cfg.Storage.Path)
	}

	if !ok {
		return fmt.Errorf("some checks failed")
	}
	fmt.Println("\nAll checks passed.")
	return nil
}

func printCheck(pass bool, format string, args ...any) {
	mark := "FAIL"
	if pass {
		mark = " OK "
	}
	fmt.Printf("[%s] %s\n", mark, fmt.Sprintf(format, args...))
}

func printInfo(format string, args ...any) {
	fmt.Printf("[INFO] %s\n", fmt.Sprintf(format, args...))
}

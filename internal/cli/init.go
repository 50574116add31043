package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ppiankov/storyforge/internal/config"
)

var initForce bool

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing config file")
	rootCmd.AddCommand(initCmd)
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Bootstrap the storyforge configuration",
	Long: `Creates ~/.storyforge with a commented config file and the runs and
daemon directories. Existing files are left alone unless --force is set.`,
	RunE: runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	if _, err := os.UserHomeDir(); err != nil {
		return fmt.Errorf("cannot determine home directory: %w", err)
	}

	cfg := config.DefaultConfig()

	var created []string

	for _, dir := range []string{
		cfg.OutputDir,
		cfg.Daemon.Inbox,
		cfg.Daemon.Outbox,
		cfg.Daemon.State,
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}

	configPath := config.DefaultPath()
	if wrote, err := writeIfMissing(configPath, config.DefaultConfigYAML()); err != nil {
		return err
	} else if wrote {
		created = append(created, configPath)
	}

	fmt.Println("storyforge init complete.")
	fmt.Println()
	if len(created) == 0 {
		fmt.Println("Everything already in place (use --force to rewrite the config).")
	} else {
		fmt.Println("Created:")
		for _, p := range created {
			fmt.Println("  " + p)
		}
	}
	fmt.Println()
	fmt.Println("Next:")
	fmt.Println("  storyforge doctor")
	fmt.Println(`  storyforge generate --url https://demo.opencart.com --story "Search for 'laptop', select first product, add to cart"`)

	return nil
}

// writeIfMissing creates path with content unless it already exists.
// --force writes unconditionally. Reports whether a write happened.
func writeIfMissing(path, content string) (bool, error) {
	if !initForce {
		if _, err := os.Stat(path); err == nil {
			return false, nil
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, fmt.Errorf("create directory %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return false, fmt.Errorf("write %s: %w", path, err)
	}
	return true, nil
}

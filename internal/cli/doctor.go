package cli

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/ppiankov/storyforge/internal/config"
	"github.com/ppiankov/storyforge/internal/history"
)

func init() {
	rootCmd.AddCommand(doctorCmd)
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check the local setup and explain anything missing",
	RunE:  runDoctor,
}

type checkResult struct {
	label  string
	ok     bool
	detail string
	fix    string
}

func pass(label, detail string) checkResult {
	return checkResult{label: label, ok: true, detail: detail}
}

func fail(label, detail, fix string) checkResult {
	return checkResult{label: label, detail: detail, fix: fix}
}

func runDoctor(cmd *cobra.Command, args []string) error {
	var checks []checkResult

	// The binary itself.
	if execPath, _ := os.Executable(); execPath != "" {
		checks = append(checks, pass("storyforge binary", fmt.Sprintf("%s (v%s)", execPath, version)))
	} else {
		checks = append(checks, fail("storyforge binary", "cannot determine executable path", ""))
	}

	// Config file on disk.
	configPath := cfgFile
	if configPath == "" {
		configPath = config.DefaultPath()
	}
	if _, err := os.Stat(configPath); err == nil {
		checks = append(checks, pass("config file", configPath))
	} else {
		checks = append(checks, fail("config file", "missing", "storyforge init"))
	}

	cfg, err := config.Load(cfgFile)
	if err != nil {
		checks = append(checks, fail("config file", err.Error(), ""))
		report(checks)
		return fmt.Errorf("doctor found problems")
	}

	// LLM credential for the configured provider.
	switch {
	case !cfg.NeedsAPIKey():
		detail := fmt.Sprintf("not required (provider %s)", cfg.Provider)
		if cfg.Provider == config.ProviderBedrock {
			detail = "using the AWS credential chain"
		}
		checks = append(checks, pass("llm credential", detail))
	case cfg.ResolveAPIKey() != "":
		checks = append(checks, pass("llm credential", fmt.Sprintf("configured for provider %s", cfg.Provider)))
	default:
		checks = append(checks, fail("llm credential",
			fmt.Sprintf("no API key for provider %s", cfg.Provider),
			"set api_key in "+configPath+" or STORYFORGE_API_KEY"))
	}

	// A browser chromedp can drive.
	if path := findBrowser(); path != "" {
		checks = append(checks, pass("browser binary", path))
	} else {
		checks = append(checks, fail("browser binary", "not found", "install Google Chrome or Chromium"))
	}

	// Output directory must be writable.
	if err := os.MkdirAll(cfg.OutputDir, 0o755); err == nil {
		checks = append(checks, pass("output directory", cfg.OutputDir))
	} else {
		checks = append(checks, fail("output directory", err.Error(), ""))
	}

	// History database opens and migrates.
	if hist, err := history.Open(cfg.HistoryDB); err == nil {
		_ = hist.Close()
		checks = append(checks, pass("history database", cfg.HistoryDB))
	} else {
		checks = append(checks, fail("history database", err.Error(), ""))
	}

	if report(checks) {
		return fmt.Errorf("doctor found problems")
	}

	fmt.Println()
	fmt.Println("All checks passed.")
	return nil
}

// report renders the results and reports whether any check failed.
func report(checks []checkResult) bool {
	failed := false
	for _, c := range checks {
		mark := "✓"
		if !c.ok {
			mark = "✗"
			failed = true
		}
		fmt.Printf("%s %-20s %s", mark, c.label+":", c.detail)
		if !c.ok && c.fix != "" {
			fmt.Printf("   fix: %s", c.fix)
		}
		fmt.Println()
	}

	if failed {
		fmt.Println()
		fmt.Println("Some checks failed; the fix column tells you what to do.")
	}
	return failed
}

// findBrowser locates a Chrome or Chromium binary the way the session
// allocator would.
func findBrowser() string {
	candidates := []string{
		"google-chrome",
		"google-chrome-stable",
		"chromium",
		"chromium-browser",
		"headless-shell",
	}
	for _, name := range candidates {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}
	if runtime.GOOS == "darwin" {
		for _, path := range []string{
			"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
			"/Applications/Chromium.app/Contents/MacOS/Chromium",
		} {
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}

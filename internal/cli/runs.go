package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ppiankov/storyforge/internal/artifact"
	"github.com/ppiankov/storyforge/internal/config"
	"github.com/ppiankov/storyforge/internal/history"
)

var runsLimit int

func init() {
	rootCmd.AddCommand(runsCmd)
	runsCmd.AddCommand(runsShowCmd)
	runsCmd.Flags().IntVarP(&runsLimit, "limit", "n", 20, "Number of recent runs to show")
}

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recent generation runs",
	Long:  "Shows the run history, newest first. Use 'runs show <run-id>' for\none run's full summary and artifact paths.",
	RunE:  runRuns,
}

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show one run's summary and artifacts",
	Args:  cobra.ExactArgs(1),
	RunE:  runRunsShow,
}

func runRuns(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	hist, err := history.Open(cfg.HistoryDB)
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	defer hist.Close()

	records, err := hist.List(runsLimit)
	if err != nil {
		return err
	}

	if len(records) == 0 {
		fmt.Println("No runs recorded.")
		return nil
	}

	fmt.Printf("%-36s %-7s %-9s %-40s %s\n", "RUN", "STATUS", "STAGE", "STORY", "STARTED")
	for _, r := range records {
		stage := r.Stage
		if stage == "" {
			stage = "-"
		}
		fmt.Printf("%-36s %-7s %-9s %-40s %s\n",
			r.RunID,
			r.Status,
			stage,
			truncate(r.UseCase, 40),
			r.StartedAt.Local().Format("2006-01-02 15:04"),
		)
	}
	return nil
}

func runRunsShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	store := artifact.NewStore(cfg.OutputDir)
	sum, err := store.ReadSummary(args[0])
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("run %q not found under %s", args[0], cfg.OutputDir)
		}
		return err
	}

	out, _ := json.MarshalIndent(sum, "", "  ")
	fmt.Println(string(out))

	runDir := filepath.Join(cfg.OutputDir, args[0])
	fmt.Println()
	fmt.Println("Artifacts:")
	for _, name := range sum.Artifacts {
		fmt.Printf("  %s\n", filepath.Join(runDir, name))
	}
	return nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

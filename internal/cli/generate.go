package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ppiankov/storyforge/internal/artifact"
	"github.com/ppiankov/storyforge/internal/config"
	"github.com/ppiankov/storyforge/internal/pipeline"
)

var (
	generateURL          string
	generateStory        string
	generateMaxSteps     int
	generateOutput       string
	generateStorageState string
)

func init() {
	rootCmd.AddCommand(generateCmd)
	generateCmd.Flags().StringVar(&generateURL, "url", "", "Starting URL of the site under test (required)")
	generateCmd.Flags().StringVar(&generateStory, "story", "", "Natural-language user story (required)")
	generateCmd.Flags().IntVar(&generateMaxSteps, "max-steps", 0, "Navigation step ceiling (0 uses the configured default)")
	generateCmd.Flags().StringVar(&generateOutput, "output", "", "Artifact directory (overrides config)")
	generateCmd.Flags().StringVar(&generateStorageState, "storage-state", "", "Playwright storage state file referenced by the emitted test")
	generateCmd.MarkFlagRequired("url")
	generateCmd.MarkFlagRequired("story")
}

var generateCmd = &cobra.Command{
	Use:   "generate --url <url> --story <story>",
	Short: "Generate a Playwright test from a user story",
	Long: "Explores the site with an LLM-driven browser session, extracts\n" +
		"locators from the visited pages, plans a scenario, and emits a\n" +
		"Playwright spec.\n\n" +
		"Artifacts land in <output>/<run-id>/. A failed run keeps the\n" +
		"artifacts of every stage that completed before the failure.",
	RunE: runGenerate,
}

func runGenerate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if generateOutput != "" {
		cfg.OutputDir = generateOutput
	}
	if generateStorageState != "" {
		cfg.StorageState = generateStorageState
	}

	log := newLogger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\nCancelling run...")
		cancel()
	}()

	r, err := newRunner(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer r.Close()

	state, runErr := r.Run(ctx, generateURL, generateStory, generateMaxSteps)
	runDir := filepath.Join(cfg.OutputDir, state.RunID)

	if runErr != nil {
		var failure *pipeline.StageFailure
		if errors.As(runErr, &failure) {
			fmt.Fprintf(os.Stderr, "\nrun %s failed at the %s stage: %v\n", state.RunID, failure.Stage, failure.Err)
			fmt.Fprintf(os.Stderr, "partial artifacts: %s\n", runDir)
			return fmt.Errorf("generation failed at the %s stage", failure.Stage)
		}
		return runErr
	}

	fmt.Printf("run %s done: %d steps, %d locators, %d scenarios\n",
		state.RunID, state.Journey.Len(), len(state.Locators), len(state.Scenarios))
	fmt.Printf("test:      %s\n", filepath.Join(runDir, artifact.Slug(generateStory)+".spec.ts"))
	fmt.Printf("artifacts: %s\n", runDir)
	return nil
}

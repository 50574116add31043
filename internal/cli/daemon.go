package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ppiankov/storyforge/internal/config"
	"github.com/ppiankov/storyforge/internal/daemon"
)

var (
	daemonWorkers int
	daemonPoll    bool
)

func init() {
	rootCmd.AddCommand(daemonCmd)
	daemonCmd.Flags().IntVar(&daemonWorkers, "workers", 0, "Concurrent job workers (0 uses the configured default)")
	daemonCmd.Flags().BoolVar(&daemonPoll, "poll", false, "Poll the inbox instead of using filesystem events")
}

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the generation pipeline as a file-driven service",
	Long: "Watches the inbox directory for JSON job files and writes a result\n" +
		"file per job to the outbox. Jobs already in the inbox at startup are\n" +
		"processed; jobs interrupted by a crash are reported as failed on the\n" +
		"next start.\n\n" +
		"Use --poll on filesystems without inotify support (NFS, some\n" +
		"containers).",
	RunE: runDaemon,
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	log := newLogger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("shutting down")
		cancel()
	}()

	r, err := newRunner(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer r.Close()

	workers := cfg.Daemon.Workers
	if daemonWorkers > 0 {
		workers = daemonWorkers
	}

	d, err := daemon.New(daemon.Config{
		Dirs: daemon.DirConfig{
			Inbox:  cfg.Daemon.Inbox,
			Outbox: cfg.Daemon.Outbox,
			State:  cfg.Daemon.State,
		},
		Runner:       r,
		ArtifactRoot: cfg.OutputDir,
		Workers:      workers,
		PollMode:     daemonPoll || cfg.Daemon.UsePolling,
		Log:          log,
	})
	if err != nil {
		return err
	}

	return d.Run(ctx)
}

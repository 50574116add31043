package daemon

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// Config wires a Daemon: the directory layout, the pipeline runner
// that executes jobs, and watcher behavior.
type Config struct {
	Dirs         DirConfig
	Runner       Runner
	ArtifactRoot string
	Workers      int
	PollMode     bool
	PollInterval time.Duration
	Log          *slog.Logger
}

// Daemon watches the inbox directory and turns job files into results.
type Daemon struct {
	cfg       Config
	processor *Processor
	log       *slog.Logger
}

// New validates cfg and assembles the daemon.
func New(cfg Config) (*Daemon, error) {
	if cfg.Dirs.Inbox == "" || cfg.Dirs.Outbox == "" || cfg.Dirs.State == "" {
		return nil, fmt.Errorf("inbox, outbox, and state directories must be set")
	}
	if cfg.Runner == nil {
		return nil, fmt.Errorf("a pipeline runner is required")
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = pollDefault
	}
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}

	processor := NewProcessor(ProcessorConfig{
		Dirs:         cfg.Dirs,
		ArtifactRoot: cfg.ArtifactRoot,
	}, cfg.Runner)

	return &Daemon{cfg: cfg, processor: processor, log: log}, nil
}

// Run starts the daemon. Blocks until ctx is cancelled. On startup it
// recovers orphaned processing files and drains jobs already waiting
// in the inbox.
func (d *Daemon) Run(ctx context.Context) error {
	if err := EnsureDirs(d.cfg.Dirs); err != nil {
		return fmt.Errorf("create layout: %w", err)
	}

	// One daemon per state directory.
	pidPath := filepath.Join(d.cfg.Dirs.State, "daemon.pid")
	if err := acquirePIDLock(pidPath); err != nil {
		return fmt.Errorf("pid lock: %w", err)
	}
	defer func() { _ = os.Remove(pidPath) }()

	if err := d.recoverOrphans(); err != nil {
		return fmt.Errorf("recover interrupted jobs: %w", err)
	}

	handle := func(path string) {
		if err := d.processor.Process(ctx, path); err != nil {
			d.log.Error("process job", "file", filepath.Base(path), "error", err)
		}
	}

	if err := ScanExisting(d.cfg.Dirs.Inbox, handle); err != nil {
		return fmt.Errorf("drain inbox: %w", err)
	}

	d.log.Info("daemon watching", "inbox", d.cfg.Dirs.Inbox, "poll", d.cfg.PollMode)

	if d.cfg.PollMode {
		pw := NewPollWatcher(d.cfg.Dirs.Inbox, handle, d.cfg.PollInterval)
		return pw.Run(ctx)
	}
	w := NewInboxWatcher(d.cfg.Dirs.Inbox, handle, d.cfg.Workers)
	return w.Run(ctx)
}

// recoverOrphans fails every job still sitting in state/processing. A
// file there means a previous daemon died mid-run; the submitter gets
// a result instead of silence.
func (d *Daemon) recoverOrphans() error {
	procDir := d.cfg.Dirs.ProcessingDir()
	entries, err := os.ReadDir(procDir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}

	for _, e := range entries {
		if e.IsDir() || !isJobFile(e.Name()) {
			continue
		}
		msg := "interrupted: job was processing when the daemon stopped"
		if err := d.processor.writeFailedResult(e.Name(), msg); err != nil {
			d.log.Error("recover orphan", "file", e.Name(), "error", err)
		}
		_ = os.Remove(filepath.Join(procDir, e.Name()))
	}
	return nil
}

// acquirePIDLock claims path for this process. A lock held by a dead
// process is replaced; one held by a live process is an error.
func acquirePIDLock(path string) error {
	if pid, ok := readPID(path); ok {
		if pidAlive(pid) {
			return fmt.Errorf("daemon already running with PID %d", pid)
		}
		_ = os.Remove(path)
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0600)
}

func readPID(path string) (int, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, false
	}
	return pid, true
}

// pidAlive probes pid with signal 0.
func pidAlive(pid int) bool {
	p, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return p.Signal(syscall.Signal(0)) == nil
}

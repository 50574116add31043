package daemon

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounceDefault is how long the inbox watcher waits after the last
// event before dispatching. Submitters rename into place, but slow
// writers get a beat to settle.
const debounceDefault = 200 * time.Millisecond

// defaultWorkers is the pool size when the config does not set one.
// Each job drives its own browser session, so the pool stays small.
const defaultWorkers = 2

// queueDepth bounds the dispatch channel. Larger than the pool so an
// inbox burst does not stall the watcher loop.
const queueDepth = 200

// pollDefault is the polling interval when fsnotify is unavailable.
const pollDefault = 5 * time.Second

// InboxWatcher reacts to new .json files in the inbox via fsnotify and
// hands them to a fixed pool of workers.
type InboxWatcher struct {
	inbox    string
	handler  func(path string)
	debounce time.Duration
	workers  int
}

// NewInboxWatcher creates a watcher for the inbox directory. workers
// <= 0 uses the default pool size.
func NewInboxWatcher(inbox string, handler func(path string), workers int) *InboxWatcher {
	if workers <= 0 {
		workers = defaultWorkers
	}
	return &InboxWatcher{
		inbox:    inbox,
		handler:  handler,
		debounce: debounceDefault,
		workers:  workers,
	}
}

// Run watches the inbox until ctx is cancelled. Cancellation is the
// normal way to stop and returns nil.
func (w *InboxWatcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = fw.Close() }()

	if err := fw.Add(w.inbox); err != nil {
		return err
	}

	pool := newWorkPool(w.workers, w.handler)
	defer pool.stop()

	// Paths sit in pending between the event that announced them and
	// the debounce tick that dispatches them. Only this goroutine
	// touches the set, and no goroutine exists per file, so a dumped
	// directory of a hundred jobs costs a hundred map keys.
	pending := make(map[string]struct{})
	dispatch := func() {
		for p := range pending {
			pool.submit(ctx, p)
		}
		clear(pending)
	}
	defer dispatch()

	// The settle timer is armed lazily on the first event. While
	// settled is nil the timer case never fires.
	var settle *time.Timer
	var settled <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-settled:
			settled = nil
			dispatch()

		case ev, open := <-fw.Events:
			if !open {
				return nil
			}
			if !ev.Has(fsnotify.Create) || !isJobFile(ev.Name) {
				continue
			}
			pending[ev.Name] = struct{}{}
			if settle == nil {
				settle = time.NewTimer(w.debounce)
			} else {
				settle.Reset(w.debounce)
			}
			settled = settle.C

		case _, open := <-fw.Errors:
			if !open {
				return nil
			}
		}
	}
}

// workPool runs inbox handlers on a fixed set of goroutines.
type workPool struct {
	jobs chan string
	wg   sync.WaitGroup
}

func newWorkPool(size int, handle func(path string)) *workPool {
	p := &workPool{jobs: make(chan string, queueDepth)}
	p.wg.Add(size)
	for i := 0; i < size; i++ {
		go func() {
			defer p.wg.Done()
			for path := range p.jobs {
				guard(handle, path)
			}
		}()
	}
	return p
}

// submit queues a path for handling, giving up if ctx ends first.
func (p *workPool) submit(ctx context.Context, path string) {
	select {
	case p.jobs <- path:
	case <-ctx.Done():
	}
}

// stop closes the queue and waits for in-flight handlers to finish.
func (p *workPool) stop() {
	close(p.jobs)
	p.wg.Wait()
}

// guard keeps a panicking handler from taking the pool down with it.
func guard(handle func(path string), path string) {
	defer func() { _ = recover() }()
	handle(path)
}

// PollWatcher finds new .json files by rescanning the inbox on an
// interval. Fallback for filesystems where fsnotify does not work,
// NFS mounts in particular.
type PollWatcher struct {
	dir    string
	notify func(path string)
	every  time.Duration
	known  map[string]struct{}
}

// NewPollWatcher creates a polling watcher. A zero interval uses the
// default.
func NewPollWatcher(dir string, notify func(path string), every time.Duration) *PollWatcher {
	if every == 0 {
		every = pollDefault
	}
	return &PollWatcher{
		dir:    dir,
		notify: notify,
		every:  every,
		known:  make(map[string]struct{}),
	}
}

// Run polls until ctx is cancelled, which returns nil.
func (w *PollWatcher) Run(ctx context.Context) error {
	tick := time.NewTicker(w.every)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tick.C:
			w.sweep()
		}
	}
}

// sweep notifies for job files not seen on a previous pass. Paths stay
// in known forever; the daemon moves handled jobs out of the inbox, so
// the set tracks only the window between sweeps and unprocessed leftovers.
func (w *PollWatcher) sweep() {
	_ = ScanExisting(w.dir, func(path string) {
		if _, ok := w.known[path]; ok {
			return
		}
		w.known[path] = struct{}{}
		w.notify(path)
	})
}

// ScanExisting invokes handler for every job file already sitting in
// the inbox. Runs once at startup so jobs submitted while the daemon
// was down are not lost. An absent inbox is fine; the daemon creates
// it later.
func ScanExisting(inbox string, handler func(path string)) error {
	entries, err := os.ReadDir(inbox)
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
		handler(filepath.Join(inbox, e.Name()))
	}
	return nil
}

// isJobFile reports whether path names a submitted job: a .json file
// that is not a .tmp partial write.
func isJobFile(path string) bool {
	name := filepath.Base(path)
	if strings.HasSuffix(name, ".tmp") {
		return false
	}
	return filepath.Ext(name) == ".json"
}

package watch

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Op is the kind of change seen for a path.
type Op int

const (
	OpWrite Op = iota
	OpCreate
	OpRemove
	OpRename
)

func (op Op) String() string {
	switch op {
	case OpWrite:
		return "write"
	case OpCreate:
		return "create"
	case OpRemove:
		return "remove"
	case OpRename:
		return "rename"
	default:
		return "unknown"
	}
}

// Change represents a detected file change.
type Change struct {
	Path string
	Op   Op
}

// WatcherConfig configures the file watcher.
type WatcherConfig struct {
	// Paths are files or directories to watch.
	Paths []string

	// Ignore lists base-name globs to skip.
	Ignore []string

	// Debounce is how long the watcher waits for further events before
	// reporting a batch.
	Debounce time.Duration

	Logger *zap.Logger
}

// DefaultIgnore contains editor scratch files.
var DefaultIgnore = []string{
	"*.swp",
	"*.swx",
	"*.tmp",
	"*~",
	".#*",
	"4913",
}

// Watcher monitors files for changes.
type Watcher struct {
	config   WatcherConfig
	fsw      *fsnotify.Watcher
	logger   *zap.Logger
	onChange func([]Change)

	// files holds the watched regular files; events for their siblings are
	// dropped. dirs holds directories watched as a whole.
	files map[string]struct{}
	dirs  map[string]struct{}

	mu       sync.Mutex
	running  bool
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewWatcher creates a watcher. Paths must exist.
func NewWatcher(config WatcherConfig) (*Watcher, error) {
	if config.Debounce == 0 {
		config.Debounce = 100 * time.Millisecond
	}
	if len(config.Ignore) == 0 {
		config.Ignore = DefaultIgnore
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		config: config,
		fsw:    fsw,
		logger: logger.With(zap.String("component", "watch")),
		files:  make(map[string]struct{}),
		dirs:   make(map[string]struct{}),
		stopCh: make(chan struct{}),
	}
	if err := w.addPaths(); err != nil {
		fsw.Close()
		return nil, err
	}
	return w, nil
}

func (w *Watcher) addPaths() error {
	added := make(map[string]struct{})
	for _, p := range w.config.Paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return err
		}
		info, err := os.Stat(abs)
		if err != nil {
			return err
		}

		dir := abs
		if info.IsDir() {
			w.dirs[abs] = struct{}{}
		} else {
			w.files[abs] = struct{}{}
			dir = filepath.Dir(abs)
		}
		if _, ok := added[dir]; ok {
			continue
		}
		if err := w.fsw.Add(dir); err != nil {
			return err
		}
		added[dir] = struct{}{}
	}
	return nil
}

// OnChange sets the callback for a batch of changes. Batches are delivered
// from the Start goroutine, one at a time.
func (w *Watcher) OnChange(fn func([]Change)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onChange = fn
}

// Start watches until ctx is done or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
		w.fsw.Close()
	}()

	pending := make(map[string]Op)
	var timer *time.Timer
	var timerC <-chan time.Time

	flush := func() {
		timerC = nil
		if len(pending) == 0 {
			return
		}
		changes := make([]Change, 0, len(pending))
		for p, op := range pending {
			changes = append(changes, Change{Path: p, Op: op})
		}
		sort.Slice(changes, func(i, j int) bool { return changes[i].Path < changes[j].Path })
		clear(pending)

		w.mu.Lock()
		callback := w.onChange
		w.mu.Unlock()
		if callback != nil {
			callback(changes)
		}
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-w.stopCh:
			return nil

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event.Name) {
				continue
			}
			// The latest event for a path wins.
			pending[event.Name] = convertOp(event.Op)
			if timer == nil {
				timer = time.NewTimer(w.config.Debounce)
			} else {
				timer.Reset(w.config.Debounce)
			}
			timerC = timer.C

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", zap.Error(err))

		case <-timerC:
			flush()
		}
	}
}

// Stop stops the watcher.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
}

// IsRunning returns whether the watcher is running.
func (w *Watcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// relevant reports whether an event for name should be reported.
func (w *Watcher) relevant(name string) bool {
	if w.shouldIgnore(name) {
		return false
	}
	if _, ok := w.files[name]; ok {
		return true
	}
	_, ok := w.dirs[filepath.Dir(name)]
	return ok
}

// shouldIgnore checks the base name of path against the ignore globs.
func (w *Watcher) shouldIgnore(path string) bool {
	name := filepath.Base(path)
	for _, pattern := range w.config.Ignore {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}
		if name == pattern {
			return true
		}
		if matched, _ := filepath.Match(pattern, name); matched {
			return true
		}
	}
	return false
}

func convertOp(op fsnotify.Op) Op {
	switch {
	case op.Has(fsnotify.Remove):
		return OpRemove
	case op.Has(fsnotify.Rename):
		return OpRename
	case op.Has(fsnotify.Create):
		return OpCreate
	default:
		return OpWrite
	}
}

// Package watcher reports debounced changes to the page and template files
// the dev server serves.
package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/conneroisu/whiteboard/internal/logging"
)

// Watcher watches files and directories and hands batches of changes to its
// handlers once activity settles.
type Watcher struct {
	fsw       *fsnotify.Watcher
	debouncer *debouncer
	logger    logging.Logger
	filters   []Filter
	handlers  []Handler
	mutex     sync.RWMutex
}

// Change is one file's latest change within a batch.
type Change struct {
	Op      Op
	Path    string
	ModTime time.Time
}

// Op is the kind of change.
type Op int

const (
	OpCreated Op = iota
	OpModified
	OpDeleted
	OpRenamed
)

func (o Op) String() string {
	switch o {
	case OpCreated:
		return "created"
	case OpModified:
		return "modified"
	case OpDeleted:
		return "deleted"
	case OpRenamed:
		return "renamed"
	default:
		return "unknown"
	}
}

// Filter reports whether a changed path is of interest. All filters must
// accept a path for it to be reported.
type Filter func(path string) bool

// Handler receives a batch of changes, one per path, sorted by path.
type Handler func(ctx context.Context, changes []Change) error

type debouncer struct {
	delay   time.Duration
	input   chan Change
	output  chan []Change
	timer   *time.Timer
	pending map[string]Change
	mutex   sync.Mutex
}

// New creates a watcher that waits for delay of quiet before reporting.
func New(delay time.Duration, logger logging.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	return &Watcher{
		fsw: fsw,
		debouncer: &debouncer{
			delay:   delay,
			input:   make(chan Change, 100),
			output:  make(chan []Change, 10),
			pending: make(map[string]Change),
		},
		logger: logger.WithComponent("watcher"),
	}, nil
}

// AddFilter adds a filter.
func (w *Watcher) AddFilter(filter Filter) {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	w.filters = append(w.filters, filter)
}

// AddHandler adds a handler.
func (w *Watcher) AddHandler(handler Handler) {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	w.handlers = append(w.handlers, handler)
}

// Add watches path. A directory is watched with all its subdirectories; a
// file is watched through its parent directory and a filter limits reports
// for that directory to the file itself.
func (w *Watcher) Add(path string) error {
	clean := filepath.Clean(path)
	info, err := os.Stat(clean)
	if err != nil {
		return fmt.Errorf("watch %s: %w", path, err)
	}

	if !info.IsDir() {
		return w.fsw.Add(filepath.Dir(clean))
	}

	return filepath.WalkDir(clean, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if NoHidden(p) || p == clean {
			return w.fsw.Add(p)
		}
		return filepath.SkipDir
	})
}

// Watched returns the directories being watched.
func (w *Watcher) Watched() []string {
	list := w.fsw.WatchList()
	sort.Strings(list)
	return list
}

// Start runs the watcher until ctx is done.
func (w *Watcher) Start(ctx context.Context) {
	go w.debouncer.run(ctx)
	go w.dispatch(ctx)
	go w.watchLoop(ctx)
}

// Stop releases the fsnotify watcher.
func (w *Watcher) Stop() error {
	w.debouncer.mutex.Lock()
	if w.debouncer.timer != nil {
		w.debouncer.timer.Stop()
	}
	w.debouncer.mutex.Unlock()

	return w.fsw.Close()
}

func (w *Watcher) watchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn(ctx, err, "file watcher error")
		}
	}
}

func (w *Watcher) accepts(path string) bool {
	w.mutex.RLock()
	defer w.mutex.RUnlock()
	for _, filter := range w.filters {
		if !filter(path) {
			return false
		}
	}
	return true
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !w.accepts(event.Name) {
		return
	}

	change := Change{Op: opOf(event.Op), Path: event.Name}
	if info, err := os.Stat(event.Name); err == nil {
		change.ModTime = info.ModTime()
	}

	select {
	case w.debouncer.input <- change:
	default:
		w.logger.Debug(context.Background(), "dropping file change, queue full", "path", event.Name)
	}
}

func opOf(op fsnotify.Op) Op {
	switch {
	case op.Has(fsnotify.Create):
		return OpCreated
	case op.Has(fsnotify.Write):
		return OpModified
	case op.Has(fsnotify.Remove):
		return OpDeleted
	case op.Has(fsnotify.Rename):
		return OpRenamed
	default:
		return OpModified
	}
}

func (w *Watcher) dispatch(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case changes := <-w.debouncer.output:
			w.mutex.RLock()
			handlers := w.handlers
			w.mutex.RUnlock()

			for _, handler := range handlers {
				if err := handler(ctx, changes); err != nil {
					w.logger.Error(ctx, err, "file change handler failed", "changes", len(changes))
				}
			}
		}
	}
}

func (d *debouncer) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case change := <-d.input:
			d.add(change)
		}
	}
}

func (d *debouncer) add(change Change) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	d.pending[change.Path] = change

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, d.flush)
}

func (d *debouncer) flush() {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if len(d.pending) == 0 {
		return
	}

	changes := make([]Change, 0, len(d.pending))
	for _, c := range d.pending {
		changes = append(changes, c)
	}
	sort.Slice(changes, func(i, j int) bool { return changes[i].Path < changes[j].Path })

	select {
	case d.output <- changes:
	default:
	}

	d.pending = make(map[string]Change)
}

// HTMLFilter accepts .html and .htm files.
func HTMLFilter(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".html" || ext == ".htm"
}

// NoHidden rejects paths with a dot-prefixed element, such as editor swap
// files and .git.
func NoHidden(path string) bool {
	for _, part := range strings.Split(filepath.ToSlash(filepath.Clean(path)), "/") {
		if len(part) > 1 && part[0] == '.' && part != ".." {
			return false
		}
	}
	return true
}

// Within accepts paths equal to or below one of roots.
func Within(roots ...string) Filter {
	cleaned := make([]string, len(roots))
	for i, r := range roots {
		cleaned[i] = filepath.Clean(r)
	}
	return func(path string) bool {
		p := filepath.Clean(path)
		for _, r := range cleaned {
			if r == "." && !filepath.IsAbs(p) && !strings.HasPrefix(p, "..") {
				return true
			}
			if p == r || strings.HasPrefix(p, r+string(filepath.Separator)) {
				return true
			}
		}
		return false
	}
}

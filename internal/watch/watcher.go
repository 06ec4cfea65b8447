// Package watch regenerates templates when their subset or model directory changes.
package watch

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce is the quiet period used when none is configured
const DefaultDebounce = 300 * time.Millisecond

// modelPattern selects the definition files below a model directory
const modelPattern = "**/*.{yaml,yml}"

// Targets names what a FileWatcher observes
type Targets struct {
	// Subset is a single subset file
	Subset string
	// ModelDirectory is watched recursively for YAML definitions; empty disables it
	ModelDirectory string
}

// FileWatcher monitors the subset file and model directory and reports changed paths
type FileWatcher struct {
	watcher   *fsnotify.Watcher
	debouncer *Debouncer
	subset    string
	modelDir  string
	onChange  func([]string) error
	logger    *zap.Logger
	stopChan  chan struct{}
	wg        sync.WaitGroup
}

// NewFileWatcher creates a watcher for targets. onChange receives the changed paths once
// per debounce window.
func NewFileWatcher(targets Targets, debounce time.Duration, onChange func([]string) error, logger *zap.Logger) (*FileWatcher, error) {
	if targets.Subset == "" {
		return nil, fmt.Errorf("subset path is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	subset, err := filepath.Abs(targets.Subset)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve subset path: %w", err)
	}
	var modelDir string
	if targets.ModelDirectory != "" {
		if modelDir, err = filepath.Abs(targets.ModelDirectory); err != nil {
			return nil, fmt.Errorf("failed to resolve model directory: %w", err)
		}
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	fw := &FileWatcher{
		watcher:   watcher,
		debouncer: NewDebouncer(debounce),
		subset:    subset,
		modelDir:  modelDir,
		onChange:  onChange,
		logger:    logger,
		stopChan:  make(chan struct{}),
	}
	fw.debouncer.SetCallback(func(files []string) {
		if err := fw.onChange(files); err != nil {
			fw.logger.Error("failed to handle changes", zap.Strings("files", files), zap.Error(err))
		}
	})
	return fw, nil
}

// Start begins watching. The subset is watched through its directory so that editors that
// replace the file on save are still seen.
func (fw *FileWatcher) Start() error {
	dirs := []string{filepath.Dir(fw.subset)}
	if fw.modelDir != "" {
		sub, err := directories(fw.modelDir)
		if err != nil {
			return fmt.Errorf("failed to find directories: %w", err)
		}
		dirs = append(dirs, sub...)
	}

	for _, dir := range dirs {
		if err := fw.watcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch directory %s: %w", dir, err)
		}
		fw.logger.Debug("watching directory", zap.String("dir", dir))
	}

	fw.wg.Add(1)
	go fw.watch()
	return nil
}

// Stop stops the file watcher. It is safe to call more than once.
func (fw *FileWatcher) Stop() error {
	select {
	case <-fw.stopChan:
		return nil
	default:
		close(fw.stopChan)
	}

	fw.wg.Wait()
	fw.debouncer.Stop()
	return fw.watcher.Close()
}

func (fw *FileWatcher) watch() {
	defer fw.wg.Done()

	for {
		select {
		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			fw.handle(event)

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.logger.Warn("watch error", zap.Error(err))

		case <-fw.stopChan:
			return
		}
	}
}

func (fw *FileWatcher) handle(event fsnotify.Event) {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Remove) {
		return
	}

	// new sub directories of the model directory are watched as they appear
	if event.Has(fsnotify.Create) && fw.inModelDir(event.Name) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := fw.watcher.Add(event.Name); err != nil {
				fw.logger.Warn("failed to watch directory", zap.String("dir", event.Name), zap.Error(err))
			}
			return
		}
	}

	if !fw.relevant(event.Name) {
		return
	}
	if event.Has(fsnotify.Remove) && event.Name == fw.subset {
		// the replacement file arrives as a Create
		return
	}
	fw.logger.Debug("file changed", zap.String("file", event.Name), zap.String("op", event.Op.String()))
	fw.debouncer.Add(event.Name)
}

// relevant reports whether path is the subset or a definition file of the model directory
func (fw *FileWatcher) relevant(path string) bool {
	if path == fw.subset {
		return true
	}
	if !fw.inModelDir(path) {
		return false
	}
	if strings.HasPrefix(filepath.Base(path), ".") {
		return false
	}
	rel, err := filepath.Rel(fw.modelDir, path)
	if err != nil {
		return false
	}
	matched, _ := doublestar.Match(modelPattern, filepath.ToSlash(rel))
	return matched
}

func (fw *FileWatcher) inModelDir(path string) bool {
	return fw.modelDir != "" && strings.HasPrefix(path, fw.modelDir+string(filepath.Separator))
}

// directories lists root and every directory below it
func directories(root string) ([]string, error) {
	var dirs []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		dirs = append(dirs, path)
		return nil
	})
	return dirs, err
}

// Debouncer collects changed paths and reports them once no change arrived for a while
type Debouncer struct {
	duration time.Duration
	timer    *time.Timer
	files    map[string]struct{}
	mutex    sync.Mutex
	callback func([]string)
	stopped  bool
}

// NewDebouncer creates a new debouncer instance
func NewDebouncer(duration time.Duration) *Debouncer {
	return &Debouncer{
		duration: duration,
		files:    make(map[string]struct{}),
	}
}

// Add records a changed path and restarts the quiet period
func (d *Debouncer) Add(file string) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.stopped {
		return
	}
	d.files[file] = struct{}{}

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.duration, d.flush)
}

// flush hands the accumulated paths, sorted, to the callback. The callback runs without the
// lock held so that changes arriving during a long regeneration are still collected.
func (d *Debouncer) flush() {
	d.mutex.Lock()
	if d.stopped || len(d.files) == 0 {
		d.mutex.Unlock()
		return
	}

	files := make([]string, 0, len(d.files))
	for file := range d.files {
		files = append(files, file)
	}
	sort.Strings(files)
	d.files = make(map[string]struct{})
	callback := d.callback
	d.mutex.Unlock()

	if callback != nil {
		callback(files)
	}
}

// SetCallback sets the callback function
func (d *Debouncer) SetCallback(callback func([]string)) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.callback = callback
}

// Stop cancels a pending flush; later Adds are ignored
func (d *Debouncer) Stop() {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
	d.stopped = true
}

package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/otl-tools/otltemplate/internal/pipeline"
)

// waitFor polls cond until it holds or the deadline passes
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return cond()
}

type recorder struct {
	mu      sync.Mutex
	batches [][]string
}

func (r *recorder) record(files []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, files)
	return nil
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.batches)
}

func (r *recorder) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var files []string
	for _, b := range r.batches {
		files = append(files, b...)
	}
	return files
}

func TestFileWatcher_SubsetChange(t *testing.T) {
	dir := t.TempDir()
	subset := filepath.Join(dir, "subset.db")
	if err := os.WriteFile(subset, []byte("v1"), 0o644); err != nil {
		t.Fatalf("Failed to create subset: %v", err)
	}

	rec := &recorder{}
	watcher, err := NewFileWatcher(Targets{Subset: subset}, 30*time.Millisecond, rec.record, nil)
	if err != nil {
		t.Fatalf("Failed to create watcher: %v", err)
	}
	defer watcher.Stop()
	if err := watcher.Start(); err != nil {
		t.Fatalf("Failed to start watcher: %v", err)
	}

	// unrelated files next to the subset are ignored
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond)
	if rec.count() != 0 {
		t.Fatalf("Expected unrelated file to be ignored, got %v", rec.all())
	}

	if err := os.WriteFile(subset, []byte("v2"), 0o644); err != nil {
		t.Fatal(err)
	}
	if !waitFor(t, 2*time.Second, func() bool { return rec.count() > 0 }) {
		t.Fatal("Expected subset change to be detected")
	}
	for _, f := range rec.all() {
		if f != subset {
			t.Errorf("Unexpected changed file %q", f)
		}
	}
}

func TestFileWatcher_ModelDirectory(t *testing.T) {
	dir := t.TempDir()
	subset := filepath.Join(dir, "subset.yaml")
	modelDir := filepath.Join(dir, "model")
	if err := os.MkdirAll(filepath.Join(modelDir, "nested"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(subset, []byte("classes: []\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	rec := &recorder{}
	watcher, err := NewFileWatcher(Targets{Subset: subset, ModelDirectory: modelDir}, 30*time.Millisecond, rec.record, nil)
	if err != nil {
		t.Fatalf("Failed to create watcher: %v", err)
	}
	defer watcher.Stop()
	if err := watcher.Start(); err != nil {
		t.Fatalf("Failed to start watcher: %v", err)
	}

	def := filepath.Join(modelDir, "nested", "camera.yaml")
	if err := os.WriteFile(def, []byte("classes: []\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if !waitFor(t, 2*time.Second, func() bool { return rec.count() > 0 }) {
		t.Fatal("Expected model definition change to be detected")
	}
	if got := rec.all(); len(got) != 1 || got[0] != def {
		t.Errorf("Expected %q, got %v", def, got)
	}
}

func TestFileWatcher_Relevant(t *testing.T) {
	fw := &FileWatcher{
		subset:   "/work/subset.db",
		modelDir: "/work/model",
	}

	tests := []struct {
		path     string
		expected bool
	}{
		{"/work/subset.db", true},
		{"/work/other.db", false},
		{"/work/model/camera.yaml", true},
		{"/work/model/deep/er/camera.yml", true},
		{"/work/model/camera.json", false},
		{"/work/model/.camera.yaml", false},
		{"/work/modelx/camera.yaml", false},
	}

	for _, tt := range tests {
		if got := fw.relevant(filepath.FromSlash(tt.path)); got != tt.expected {
			t.Errorf("relevant(%q) = %v, expected %v", tt.path, got, tt.expected)
		}
	}
}

func TestFileWatcher_Stop(t *testing.T) {
	subset := filepath.Join(t.TempDir(), "subset.db")
	watcher, err := NewFileWatcher(Targets{Subset: subset}, 0, func([]string) error { return nil }, nil)
	if err != nil {
		t.Fatalf("Failed to create watcher: %v", err)
	}
	if err := watcher.Start(); err != nil {
		t.Fatalf("Failed to start watcher: %v", err)
	}
	if err := watcher.Stop(); err != nil {
		t.Errorf("Stop() returned error: %v", err)
	}
	if err := watcher.Stop(); err != nil {
		t.Errorf("second Stop() returned error: %v", err)
	}
}

func TestNewFileWatcher_RequiresSubset(t *testing.T) {
	if _, err := NewFileWatcher(Targets{}, 0, nil, nil); err == nil {
		t.Error("Expected an error without a subset path")
	}
}

func TestDebouncer_Add(t *testing.T) {
	var mu sync.Mutex
	var calls int
	var files []string

	debouncer := NewDebouncer(50 * time.Millisecond)
	debouncer.SetCallback(func(f []string) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		files = f
	})

	debouncer.Add("b.yaml")
	debouncer.Add("a.yaml")
	debouncer.Add("b.yaml")

	time.Sleep(150 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if calls != 1 {
		t.Fatalf("Expected one callback, got %d", calls)
	}
	if len(files) != 2 || files[0] != "a.yaml" || files[1] != "b.yaml" {
		t.Errorf("Expected sorted unique files, got %v", files)
	}
}

func TestDebouncer_MultipleFlushes(t *testing.T) {
	var mu sync.Mutex
	var callCount int

	debouncer := NewDebouncer(30 * time.Millisecond)
	debouncer.SetCallback(func(f []string) {
		mu.Lock()
		defer mu.Unlock()
		callCount++
	})

	debouncer.Add("subset.db")
	time.Sleep(80 * time.Millisecond)
	debouncer.Add("subset.db")
	time.Sleep(80 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if callCount != 2 {
		t.Errorf("Expected 2 callback calls, got %d", callCount)
	}
}

func TestDebouncer_StopCancelsPending(t *testing.T) {
	called := make(chan struct{}, 1)
	debouncer := NewDebouncer(30 * time.Millisecond)
	debouncer.SetCallback(func([]string) { called <- struct{}{} })

	debouncer.Add("subset.db")
	debouncer.Stop()
	debouncer.Add("subset.db")

	select {
	case <-called:
		t.Error("Expected no callback after Stop")
	case <-time.After(100 * time.Millisecond):
	}
}

type fakeGenerator struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (g *fakeGenerator) Generate(ctx context.Context, req pipeline.TemplateRequest) (*pipeline.Result, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.err != nil {
		return nil, g.err
	}
	return &pipeline.Result{Outputs: []string{req.Destination}}, nil
}

func TestRegenerator_Run(t *testing.T) {
	dir := t.TempDir()
	subset := filepath.Join(dir, "subset.db")
	if err := os.WriteFile(subset, []byte("v1"), 0o644); err != nil {
		t.Fatal(err)
	}

	gen := &fakeGenerator{}
	var mu sync.Mutex
	var reports []Report
	req := pipeline.DefaultRequest(subset, filepath.Join(dir, "out.xlsx"))
	regen := NewRegenerator(gen, req, 30*time.Millisecond, func(r Report) {
		mu.Lock()
		defer mu.Unlock()
		reports = append(reports, r)
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- regen.Run(ctx) }()

	reportCount := func() int {
		mu.Lock()
		defer mu.Unlock()
		return len(reports)
	}
	if !waitFor(t, 2*time.Second, func() bool { return reportCount() == 1 }) {
		t.Fatal("Expected the initial generation")
	}

	// give the watcher time to register before touching the subset
	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(subset, []byte("v2"), 0o644); err != nil {
		t.Fatal(err)
	}
	if !waitFor(t, 2*time.Second, func() bool { return reportCount() >= 2 }) {
		t.Fatal("Expected a regeneration after the subset changed")
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run returned error: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if reports[0].Changed != nil {
		t.Errorf("Expected no changed files for the initial run, got %v", reports[0].Changed)
	}
	if len(reports[1].Changed) != 1 || reports[1].Changed[0] != subset {
		t.Errorf("Expected the subset as changed file, got %v", reports[1].Changed)
	}
}

func TestRegenerator_ReportsFailures(t *testing.T) {
	boom := errors.New("boom")
	gen := &fakeGenerator{err: boom}
	var got Report
	regen := NewRegenerator(gen, pipeline.DefaultRequest("subset.db", "out.xlsx"), 0, func(r Report) { got = r }, nil)

	regen.generate(context.Background(), []string{"subset.db"})
	if !errors.Is(got.Err, boom) {
		t.Errorf("Expected failure to be reported, got %v", got.Err)
	}
	if got.Result != nil {
		t.Errorf("Expected no result, got %+v", got.Result)
	}
}

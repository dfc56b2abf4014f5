// Package orchestrator turns configured pipelines into runnable structures
// and owns the shared resources they need: drivers, breakers, the vector
// store and child processes.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/aristath/griptape/internal/artifact"
	"github.com/aristath/griptape/internal/config"
	"github.com/aristath/griptape/internal/driver"
	"github.com/aristath/griptape/internal/engine"
	"github.com/aristath/griptape/internal/events"
	"github.com/aristath/griptape/internal/loader"
	"github.com/aristath/griptape/internal/logging"
	"github.com/aristath/griptape/internal/structure"
	"github.com/aristath/griptape/internal/task"
	"github.com/aristath/griptape/internal/tokenizer"
	"github.com/aristath/griptape/internal/vectorstore"
)

const embeddingCacheSize = 1024

// DriverFactory creates the prompt driver registered under name.
type DriverFactory func(ctx context.Context, name string, cfg config.DriverConfig) (driver.PromptDriver, error)

// ImageDriverFactory creates the image generation driver registered under name.
type ImageDriverFactory func(ctx context.Context, name string, cfg config.DriverConfig) (driver.ImageGenerationDriver, error)

// RunnerConfig configures a Runner.
type RunnerConfig struct {
	Config         *config.Config
	Bus            *events.EventBus        // Optional; run events are published here
	ProcessManager *driver.ProcessManager  // Tracks "command" driver processes
	Breakers       *driver.BreakerRegistry // Optional; one is created when nil
	DriverFactory  DriverFactory           // Optional factory for testing (overrides driver.New)
	ImageFactory   ImageDriverFactory      // Optional factory for testing (overrides driver.NewImageGeneration)
	Store          *vectorstore.Store      // Optional; opened from Config.VectorStore.Path when nil
	Logger         *slog.Logger
}

// TaskResult is the final state of one task of a run.
type TaskResult struct {
	ID     string
	Kind   string
	State  task.State
	Output string
}

// RunResult is the outcome of a pipeline run.
type RunResult struct {
	StructureID string
	Pipeline    string
	Output      string
	Tasks       []TaskResult
	Duration    time.Duration
	Err         error
}

// Runner builds and runs configured pipelines.
type Runner struct {
	config RunnerConfig
	logger *slog.Logger

	mu        sync.Mutex
	drivers   map[string]driver.PromptDriver
	images    map[string]driver.ImageGenerationDriver
	store     *vectorstore.Store
	ownsStore bool
}

// NewRunner creates a Runner. A nil Config uses the defaults.
func NewRunner(cfg RunnerConfig) *Runner {
	if cfg.Config == nil {
		cfg.Config = config.DefaultConfig()
	}
	if cfg.ProcessManager == nil {
		cfg.ProcessManager = driver.NewProcessManager()
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.New("orchestrator")
	}
	if cfg.Breakers == nil {
		cfg.Breakers = driver.NewBreakerRegistry(cfg.Logger)
	}
	return &Runner{
		config:  cfg,
		logger:  cfg.Logger,
		drivers: make(map[string]driver.PromptDriver),
		images:  make(map[string]driver.ImageGenerationDriver),
		store:   cfg.Store,
	}
}

// Build turns the named pipeline definition into a Pipeline.
func (r *Runner) Build(ctx context.Context, name string) (*structure.Pipeline, error) {
	if err := r.config.Config.ValidatePipeline(name); err != nil {
		return nil, err
	}
	def := r.config.Config.Pipelines[name]

	opts := []structure.Option{structure.WithLogger(r.logger.With("pipeline", name))}
	if r.config.Bus != nil {
		opts = append(opts, structure.WithEventBus(r.config.Bus))
	}
	p := structure.NewPipeline(opts...)

	for i, tc := range def.Tasks {
		t, err := r.buildTask(ctx, tc)
		if err != nil {
			return nil, fmt.Errorf("pipeline %q task %d: %w", name, i, err)
		}
		if _, err := p.AddTask(t); err != nil {
			return nil, fmt.Errorf("pipeline %q task %d: %w", name, i, err)
		}
	}
	return p, nil
}

func (r *Runner) buildTask(ctx context.Context, tc config.TaskConfig) (task.Task, error) {
	var opts []task.Option
	if tc.ID != "" {
		opts = append(opts, task.WithID(tc.ID))
	}
	input := tc.Input
	if input == "" {
		input = task.DefaultInput
	}

	switch tc.Type {
	case config.TaskTypePrompt:
		d, err := r.promptDriver(ctx, tc.Driver)
		if err != nil {
			return nil, err
		}
		t := task.NewPromptTask(input, d, opts...)
		t.SystemPrompt = tc.SystemPrompt
		return t, nil

	case config.TaskTypeTextQuery:
		driverName := tc.Driver
		if driverName == "" {
			driverName = "echo"
		}
		d, err := r.promptDriver(ctx, driverName)
		if err != nil {
			return nil, err
		}
		store, err := r.Store(ctx)
		if err != nil {
			return nil, err
		}
		e := &engine.VectorQueryEngine{Store: store, PromptDriver: d, SystemPrompt: tc.SystemPrompt}
		return task.NewTextQueryTask(input, e, tc.Namespace, opts...), nil

	case config.TaskTypeImage:
		driverName := tc.Driver
		if driverName == "" {
			driverName = "echo"
		}
		d, err := r.imageDriver(ctx, driverName)
		if err != nil {
			return nil, err
		}
		e := &engine.PromptImageGenerationEngine{Driver: d, Rules: tc.Rules, NegativeRules: tc.NegativeRules}
		t := task.NewPromptImageGenerationTask(input, e, opts...)
		t.NegativeInput = tc.NegativeInput
		t.OutputDir = tc.OutputDir
		t.OutputFile = tc.OutputFile
		return t, nil

	default:
		return nil, fmt.Errorf("unknown task type %q", tc.Type)
	}
}

// promptDriver returns the resilient driver registered under name, creating
// it on first use. Drivers are shared between tasks of all pipelines.
func (r *Runner) promptDriver(ctx context.Context, name string) (driver.PromptDriver, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if d, ok := r.drivers[name]; ok {
		return d, nil
	}

	dc, ok := r.config.Config.Drivers[name]
	if !ok {
		return nil, fmt.Errorf("unknown driver %q", name)
	}

	var (
		d   driver.PromptDriver
		err error
	)
	if r.config.DriverFactory != nil {
		d, err = r.config.DriverFactory(ctx, name, dc)
	} else {
		d, err = driver.New(ctx, dc.DriverConfig(), r.config.ProcessManager)
	}
	if err != nil {
		return nil, fmt.Errorf("creating driver %q: %w", name, err)
	}

	rd := driver.NewResilientPromptDriver(d, name, r.config.Breakers, r.config.Config.Retry.DriverRetry())
	r.drivers[name] = rd
	return rd, nil
}

// imageDriver returns the resilient image driver registered under name. Its
// breaker is keyed apart from prompt drivers of the same name.
func (r *Runner) imageDriver(ctx context.Context, name string) (driver.ImageGenerationDriver, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if d, ok := r.images[name]; ok {
		return d, nil
	}

	dc, ok := r.config.Config.ImageDrivers[name]
	if !ok {
		if name != "echo" {
			return nil, fmt.Errorf("unknown image driver %q", name)
		}
		dc = config.DriverConfig{Type: "echo"}
	}

	var (
		d   driver.ImageGenerationDriver
		err error
	)
	if r.config.ImageFactory != nil {
		d, err = r.config.ImageFactory(ctx, name, dc)
	} else {
		d, err = driver.NewImageGeneration(ctx, dc.DriverConfig())
	}
	if err != nil {
		return nil, fmt.Errorf("creating image driver %q: %w", name, err)
	}

	rd := driver.NewResilientImageGenerationDriver(d, "image:"+name, r.config.Breakers, r.config.Config.Retry.DriverRetry())
	r.images[name] = rd
	return rd, nil
}

// Store returns the vector store, opening the configured SQLite file on
// first use.
func (r *Runner) Store(ctx context.Context) (*vectorstore.Store, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.store != nil {
		return r.store, nil
	}

	cfg := r.config.Config
	tok, err := tokenizer.NewSimpleTokenizer(cfg.Tokenizer.CharactersPerToken, cfg.Tokenizer.MaxInputTokens, cfg.Tokenizer.MaxOutputTokens)
	if err != nil {
		return nil, fmt.Errorf("creating tokenizer: %w", err)
	}

	emb, err := driver.NewEmbedding(ctx, cfg.Embedding.DriverConfig())
	if err != nil {
		return nil, fmt.Errorf("creating embedding driver: %w", err)
	}
	cached, err := driver.NewCachedEmbeddingDriver(emb, embeddingCacheSize)
	if err != nil {
		return nil, err
	}
	resilient := driver.NewResilientEmbeddingDriver(cached, "embedding", r.config.Breakers, cfg.Retry.DriverRetry())

	path := cfg.VectorStore.Path
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating vector store directory: %w", err)
		}
	}

	store, err := vectorstore.NewSQLiteStore(ctx, path, resilient, vectorstore.WithTokenizer(tok))
	if err != nil {
		return nil, fmt.Errorf("opening vector store: %w", err)
	}
	r.store = store
	r.ownsStore = true
	return store, nil
}

// Run builds the named pipeline and runs it with args. A task failure is
// reported both in the result and as the returned error.
func (r *Runner) Run(ctx context.Context, name string, args ...string) (*RunResult, error) {
	p, err := r.Build(ctx, name)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	r.logger.Info("running pipeline", "pipeline", name, "structure_id", p.ID(), "tasks", len(p.Tasks()))
	out, runErr := p.Run(ctx, args...)

	result := &RunResult{
		StructureID: p.ID(),
		Pipeline:    name,
		Duration:    time.Since(start),
		Err:         runErr,
	}
	if out != nil {
		result.Output = out.ToText()
	}
	for _, t := range p.Tasks() {
		b := t.Base()
		tr := TaskResult{ID: b.ID(), Kind: task.Kind(t), State: b.State()}
		if o := b.Output(); o != nil {
			tr.Output = o.ToText()
		}
		result.Tasks = append(result.Tasks, tr)
	}

	if runErr != nil {
		r.logger.Warn("pipeline failed", "pipeline", name, "error", runErr)
		return result, runErr
	}
	r.logger.Info("pipeline finished", "pipeline", name, "duration", result.Duration)
	return result, nil
}

// Ingest loads JSON files and stores every value as text in namespace.
// It returns the stored entry ids in file order.
func (r *Runner) Ingest(ctx context.Context, namespace string, paths ...string) ([]string, error) {
	store, err := r.Store(ctx)
	if err != nil {
		return nil, err
	}

	l := &loader.JsonLoader{}
	collection, err := l.LoadCollection(ctx, paths)
	if err != nil {
		return nil, err
	}

	var texts []*artifact.TextArtifact
	for _, path := range paths {
		for _, a := range collection[loader.PathKey(path)] {
			texts = append(texts, artifact.NewText(a.ToText()))
		}
	}
	if len(texts) == 0 {
		return nil, nil
	}

	ids, err := store.UpsertTextArtifacts(ctx, texts, namespace)
	if err != nil {
		return nil, fmt.Errorf("storing artifacts: %w", err)
	}
	r.logger.Info("ingested", "files", len(paths), "entries", len(ids), "namespace", namespace)
	return ids, nil
}

// Close kills tracked processes and closes a store the runner opened.
func (r *Runner) Close() error {
	var errs []error
	if err := r.config.ProcessManager.KillAll(); err != nil {
		errs = append(errs, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ownsStore && r.store != nil {
		errs = append(errs, r.store.Close())
		r.store = nil
		r.ownsStore = false
	}
	return errors.Join(errs...)
}

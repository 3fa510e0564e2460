// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/course-engine/internal/config"
	"github.com/pdiddy/course-engine/internal/course"
	"github.com/pdiddy/course-engine/internal/ledger"
	"github.com/pdiddy/course-engine/internal/llm"
	"github.com/pdiddy/course-engine/internal/logging"
	"github.com/pdiddy/course-engine/internal/secrets"
	"github.com/pdiddy/course-engine/internal/sink"
	"github.com/pdiddy/course-engine/internal/source"
	"github.com/pdiddy/course-engine/pkg/types"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a course from a text file or literal text",
	Long: `Generate reads the source content, asks the model for a table of
contents and produces one chapter per entry. Chapters are generated
sequentially, in parallel on a worker pool, or in cascade mode where each
chapter sees the summaries of the chapters before it.

Each chapter is saved under <output-dir>/<course title>/ as soon as it is
ready, followed by the course summary. The command exits non-zero when the
run fails or any chapter could not be generated.`,
	RunE: runGenerate,
}

// generateFlags maps each flag to the config key it overrides.
var generateFlags = map[string]string{
	"input":               config.KeyInputPath,
	"text":                config.KeyInputText,
	"title":               config.KeyTitle,
	"output-dir":          config.KeyOutputDir,
	"custom-prompt":       config.KeyCustomPrompt,
	"mode":                config.KeyMode,
	"parallel":            config.KeyParallel,
	"max-chapters":        config.KeyMaxChapters,
	"fixed-chapter-count": config.KeyFixedChapterCount,
	"max-workers":         config.KeyMaxWorkers,
	"delay-min":           config.KeyDelayMin,
	"delay-max":           config.KeyDelayMax,
	"max-retries":         config.KeyMaxRetries,
	"retry-delay":         config.KeyRetryDelay,
	"temperature":         config.KeyTemperature,
	"model":               config.KeyModel,
	"provider":            config.KeyProvider,
	"log-file":            config.KeyLogFile,
}

func init() {
	f := generateCmd.Flags()
	f.StringP("input", "i", "", "path to the source text file")
	f.String("text", "", "source text given directly (takes precedence over --input)")
	f.StringP("title", "t", "", "course title, also used as the output folder name")
	f.StringP("output-dir", "o", "output", "root directory for generated files")
	f.String("custom-prompt", "", "extra chapter instructions, literal text or a path to a file")
	f.String("mode", "", "generation mode: sequential, parallel or cascade")
	f.Bool("parallel", false, "generate chapters on a worker pool (same as --mode parallel)")
	f.Int("max-chapters", 10, "maximum number of chapters in the table of contents")
	f.Bool("fixed-chapter-count", false, "ask for exactly --max-chapters chapters")
	f.Int("max-workers", 0, "parallel workers (0 = number of CPUs)")
	f.Duration("delay-min", 100*time.Millisecond, "minimum pause before each parallel submission")
	f.Duration("delay-max", 500*time.Millisecond, "maximum pause before each parallel submission")
	f.Int("max-retries", 3, "retries per chapter after the first attempt")
	f.Duration("retry-delay", time.Second, "base delay of the exponential retry backoff")
	f.Float64("temperature", 0, "sampling temperature")
	f.String("model", "", "model name (default depends on the provider)")
	f.String("provider", "gemini", "LLM provider: gemini or anthropic")
	f.BoolP("verbose", "v", false, "log at debug level")
	f.String("log-file", "", "also write logs to this file")
	f.Bool("no-ledger", false, "do not record the run in the ledger")

	for name, key := range generateFlags {
		_ = viper.BindPFlag(key, f.Lookup(name))
	}

	rootCmd.AddCommand(generateCmd)
}

func runGenerate(cmd *cobra.Command, args []string) error {
	v := viper.GetViper()
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		v.Set(config.KeyLogLevel, "debug")
	}
	if noLedger, _ := cmd.Flags().GetBool("no-ledger"); noLedger {
		v.Set(config.KeyLedgerEnabled, false)
	}

	cfg, err := config.Load(v)
	if err != nil {
		return err
	}

	g := &generator{
		cfg:     cfg,
		stdout:  cmd.OutOrStdout(),
		stderr:  cmd.ErrOrStderr(),
		factory: llm.New,
	}
	return g.run(cmd.Context())
}

// generator runs one generate invocation from a loaded config.
type generator struct {
	cfg      types.CourseConfig
	stdout   io.Writer
	stderr   io.Writer
	factory  llm.Factory
	resolver secrets.Resolver
}

func (g *generator) run(ctx context.Context) error {
	cfg := g.cfg

	content, err := inputSource(cfg).Resolve()
	if err != nil {
		return fmt.Errorf("reading input: %w", err)
	}
	if cfg.CustomPrompt != "" {
		instructions, err := source.Detect(cfg.CustomPrompt).Resolve()
		if err != nil && !errors.Is(err, source.ErrEmpty) {
			return fmt.Errorf("reading custom prompt: %w", err)
		}
		cfg.Generation.CustomInstructions = instructions
	}

	key, origin, err := g.resolver.APIKey(cfg.LLM.Provider, cfg.LLM.APIKey)
	if err != nil {
		return err
	}
	cfg.LLM.APIKey = key

	logger, closer, err := logging.New(cfg.Logging, g.stderr)
	if err != nil {
		return err
	}
	defer closer.Close()
	logger.Debug("api key resolved", "provider", cfg.LLM.Provider, "origin", origin)

	out := sink.New(cfg.OutputDir)
	observers := course.Observers{&progress{w: g.stdout}}

	orch := &course.Orchestrator{
		LLM:        cfg.LLM,
		Generation: cfg.Generation,
		Parallel:   cfg.Parallel,
		Factory:    g.factory,
		Sink:       out,
		Logger:     logger,
	}

	led, runID := g.startRun(ctx, orch.Mode(), logger)
	if led != nil {
		defer led.Close()
		observers = append(observers, &ledger.Recorder{Ledger: led, RunID: runID, Logger: logger})
	}
	orch.Observer = observers

	fmt.Fprintf(g.stdout, "Generating %q with %s (%s, %s mode)\n",
		cfg.Title, cfg.LLM.Model, cfg.LLM.Provider, orch.Mode())

	start := time.Now()
	c, runErr := orch.Run(ctx, cfg.Title, content)
	elapsed := time.Since(start)

	if led != nil {
		// The run context may already be cancelled; the ledger still
		// needs the final state.
		if err := led.FinishRun(context.WithoutCancel(ctx), runID, c, runErr); err != nil {
			logger.Warn("ledger write failed", "run", runID, "error", err)
		}
	}

	printSummary(g.stdout, c, out.CourseDir(cfg.Title), runID, elapsed)

	if runErr != nil {
		return runErr
	}
	if failed := c.FailedChapters(); failed > 0 {
		return fmt.Errorf("%d chapter(s) failed generation", failed)
	}
	return nil
}

// startRun opens the ledger and records the run. Ledger problems are logged
// and the run continues without one.
func (g *generator) startRun(ctx context.Context, mode types.Mode, logger *slog.Logger) (*ledger.Ledger, string) {
	if !g.cfg.Ledger.Enabled {
		return nil, ""
	}
	led, err := ledger.Open(g.cfg.Ledger)
	if err != nil {
		logger.Warn("ledger unavailable", "error", err)
		return nil, ""
	}
	runID, err := led.StartRun(ctx, ledger.Run{
		Title:     g.cfg.Title,
		Mode:      mode,
		Provider:  g.cfg.LLM.Provider,
		Model:     g.cfg.LLM.Model,
		OutputDir: g.cfg.OutputDir,
	})
	if err != nil {
		logger.Warn("ledger unavailable", "error", err)
		led.Close()
		return nil, ""
	}
	return led, runID
}

// inputSource prefers literal text over a file path.
func inputSource(cfg types.CourseConfig) source.Source {
	if cfg.InputText != "" {
		return source.Literal(cfg.InputText)
	}
	return source.FilePath(cfg.InputPath)
}

// progress prints one line per chapter as it is saved or fails.
type progress struct {
	mu sync.Mutex
	w  io.Writer
}

func (p *progress) ChapterSaved(spec types.ChapterSpec, rec types.ChapterRecord, path string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if rec.IsError() {
		fmt.Fprintf(p.w, "  [%2d] FAILED %s: %s\n", spec.Number(), spec.Title, rec.Summary)
		return
	}
	fmt.Fprintf(p.w, "  [%2d] saved  %s -> %s\n", spec.Number(), spec.Title, path)
}

func (p *progress) ChapterFailed(spec types.ChapterSpec, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, "  [%2d] FAILED %s: %v\n", spec.Number(), spec.Title, err)
}

func printSummary(w io.Writer, c *types.Course, dir, runID string, elapsed time.Duration) {
	chapters, failed := 0, 0
	if c != nil {
		chapters = len(c.Chapters)
		failed = c.FailedChapters()
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "%-10s %d\n", "Chapters:", chapters)
	fmt.Fprintf(w, "%-10s %d\n", "Failed:", failed)
	fmt.Fprintf(w, "%-10s %s\n", "Duration:", elapsed.Round(time.Millisecond))
	fmt.Fprintf(w, "%-10s %s\n", "Output:", dir)
	if runID != "" {
		fmt.Fprintf(w, "%-10s %s\n", "Run:", runID)
	}
}

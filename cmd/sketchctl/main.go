// Command sketchctl drives the sketch tooling from the command line: it
// checks sketch files for consistency, converts between the interchange
// formats, runs candidate inference, and serves the HTTP API.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"sketchcore/internal/adapters/formats"
	"sketchcore/internal/adapters/runs"
	"sketchcore/internal/config"
	"sketchcore/internal/core"
	"sketchcore/internal/engine"
	"sketchcore/internal/solver"
	"sketchcore/pkg/sketch"
)

var version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:          "sketchctl",
		Short:        "Boolean network sketch tooling",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("sketchctl v%s\n", version)
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "check <sketch-file>",
		Short: "Run the consistency checks over a sketch file",
		Args:  cobra.ExactArgs(1),
		RunE:  runCheck,
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "convert <in-file> <out-file>",
		Short: "Convert a sketch between interchange formats",
		Long: `Convert reads the sketch at in-file and writes it to out-file.
Both formats are detected from the file extensions (.aeon, .json, .sbml).`,
		Args: cobra.ExactArgs(2),
		RunE: runConvert,
	})

	inferCmd := &cobra.Command{
		Use:   "infer <sketch-file>",
		Short: "Run candidate inference over a sketch file",
		Args:  cobra.ExactArgs(1),
		RunE:  runInfer,
	}
	addEngineFlags(inferCmd)
	inferCmd.Flags().Int("parallelism", 1, "worker goroutines evaluating properties within a stage")
	inferCmd.Flags().Duration("timeout", 0, "abort inference after this long (0 means no limit)")
	rootCmd.AddCommand(inferCmd)

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the sketch and run HTTP API",
		RunE:  runServe,
	}
	serveCmd.Flags().String("config", "", "path to a YAML config file")
	addEngineFlags(serveCmd)
	rootCmd.AddCommand(serveCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// addEngineFlags registers the flags selecting the inference engine. The
// scripted engine answers every query from an explicit table, so a run
// against it is only as meaningful as the script behind it; without a
// script file it falls back to a permissive universe that never narrows.
func addEngineFlags(cmd *cobra.Command) {
	cmd.Flags().String("script", "", "YAML script programming the engine's query results")
	cmd.Flags().Int("colors", 64, "universe size of the fallback permissive engine")
}

// scriptFile is the on-disk YAML form of an engine script. Query tables map
// lookup keys to colour indices inside the universe.
type scriptFile struct {
	Colors int `yaml:"colors"`

	Formulas     map[string][]int `yaml:"formulas"`
	FnFormulas   map[string][]int `yaml:"fn_formulas"`
	Constraints  map[string][]int `yaml:"constraints"`
	Partition    map[int][]int    `yaml:"partition"`
	FixedPoints  map[string][]int `yaml:"fixed_points"`
	TrapSpaces   map[string][]int `yaml:"trap_spaces"`
	Trajectories map[string][]int `yaml:"trajectories"`
	Attractors   map[string][]int `yaml:"attractors"`

	Permissive bool `yaml:"permissive"`
}

func loadEngine(cmd *cobra.Command) (engine.Engine, error) {
	path, _ := cmd.Flags().GetString("script")
	if path == "" {
		colors, _ := cmd.Flags().GetInt("colors")
		return engine.NewScripted(engine.Script{Colors: colors, Permissive: true}), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}
	var file scriptFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse script %s: %w", path, err)
	}
	return engine.NewScripted(engine.Script{
		Colors:       file.Colors,
		Formulas:     file.Formulas,
		FnFormulas:   file.FnFormulas,
		Constraints:  file.Constraints,
		Partition:    file.Partition,
		FixedPoints:  file.FixedPoints,
		TrapSpaces:   file.TrapSpaces,
		Trajectories: file.Trajectories,
		Attractors:   file.Attractors,
		Permissive:   file.Permissive,
	}), nil
}

func loadSketchFile(path string) (*sketch.Sketch, error) {
	format, err := formats.DetectPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sketch: %w", err)
	}
	return formats.Import(format, data)
}

func runCheck(cmd *cobra.Command, args []string) error {
	s, err := loadSketchFile(args[0])
	if err != nil {
		return err
	}
	report, err := sketch.DefaultChecker().Run(context.Background(), s)
	if err != nil {
		return err
	}
	if !report.Consistent() {
		fmt.Print(report.Message())
		return fmt.Errorf("sketch %s is not consistent", args[0])
	}
	fmt.Println("Consistency checks passed.")
	return nil
}

func runConvert(cmd *cobra.Command, args []string) error {
	s, err := loadSketchFile(args[0])
	if err != nil {
		return err
	}
	outFormat, err := formats.DetectPath(args[1])
	if err != nil {
		return err
	}
	data, err := formats.Export(outFormat, s)
	if err != nil {
		return err
	}
	if err := os.WriteFile(args[1], data, 0o600); err != nil {
		return fmt.Errorf("write sketch: %w", err)
	}
	fmt.Printf("Wrote %s (%s, %d bytes)\n", args[1], outFormat, len(data))
	return nil
}

func runInfer(cmd *cobra.Command, args []string) error {
	s, err := loadSketchFile(args[0])
	if err != nil {
		return err
	}
	eng, err := loadEngine(cmd)
	if err != nil {
		return err
	}
	parallelism, _ := cmd.Flags().GetInt("parallelism")
	timeout, _ := cmd.Flags().GetDuration("timeout")

	ctx := context.Background()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	results, err := solver.New(eng, solver.WithWorkers(parallelism)).Run(ctx, s)
	if err != nil {
		return err
	}

	fmt.Printf("Candidate colors: %g\n", results.ApproxCardinality)
	fmt.Printf("Duration: %s\n", results.Duration)
	for _, narrowing := range results.Narrowings {
		fmt.Printf("  %s %q: %g remaining\n", narrowing.Kind, narrowing.Property, narrowing.Remaining)
	}
	return nil
}

// slogAdapter bridges the service logging seam onto a slog.Logger. The
// service emits alternating key-value pairs, matching slog's convention.
type slogAdapter struct {
	logger *slog.Logger
}

func (a slogAdapter) Debug(msg string, kv ...any) { a.logger.Debug(msg, kv...) }
func (a slogAdapter) Info(msg string, kv ...any)  { a.logger.Info(msg, kv...) }
func (a slogAdapter) Warn(msg string, kv ...any)  { a.logger.Warn(msg, kv...) }
func (a slogAdapter) Error(msg string, kv ...any) { a.logger.Error(msg, kv...) }

func runServe(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	eng, err := loadEngine(cmd)
	if err != nil {
		return err
	}

	checker := sketch.DefaultChecker()
	store, err := cfg.OpenStore(checker)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if closer, ok := store.(io.Closer); ok {
			if cerr := closer.Close(); cerr != nil {
				fmt.Fprintf(os.Stderr, "close store: %v\n", cerr)
			}
		}
	}()

	blobs, err := cfg.OpenBlobs(context.Background())
	if err != nil {
		return fmt.Errorf("open blob store: %w", err)
	}

	registry := prometheus.NewRegistry()
	metrics, err := core.NewPrometheusMetricsRecorder(registry)
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}
	logger := slogAdapter{logger: slog.New(slog.NewTextHandler(os.Stderr, nil))}
	service := core.NewService(store,
		core.WithLogger(logger),
		core.WithMetricsRecorder(metrics),
	)

	worker := runs.NewWorker(service, eng, blobs,
		runs.WithWorkers(cfg.Runs.Workers),
		runs.WithParallelism(cfg.Runs.Parallelism),
		runs.WithQueueCapacity(cfg.Runs.QueueCapacity),
	)
	worker.Start()

	handler := runs.NewHandler(service)
	handler.Runs = worker
	handler.Blobs = blobs

	mux := http.NewServeMux()
	mux.Handle("/api/v1/", handler)
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("ok")); err != nil {
			return
		}
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	fmt.Printf("Starting sketchcore server: %s\n", cfg)
	errCh := make(chan error, 1)
	go func() {
		if serveErr := srv.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			errCh <- serveErr
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case serveErr := <-errCh:
		stopWorker(worker)
		return fmt.Errorf("serve: %w", serveErr)
	case sig := <-sigCh:
		fmt.Printf("Received %s, shutting down\n", sig)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		stopWorker(worker)
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := worker.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("stop worker: %w", err)
	}
	fmt.Println("Server stopped.")
	return nil
}

// stopWorker drains the scheduler on the error paths where no shutdown
// deadline is available.
func stopWorker(worker *runs.Worker) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := worker.Stop(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "stop worker: %v\n", err)
	}
}

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"runtime"
	"time"

	"github.com/spf13/pflag"

	"github.com/klarvik/schemascope/pkg/analytics"
	"github.com/klarvik/schemascope/pkg/builder"
	"github.com/klarvik/schemascope/pkg/cache"
	"github.com/klarvik/schemascope/pkg/config"
	"github.com/klarvik/schemascope/pkg/csn"
	"github.com/klarvik/schemascope/pkg/facade"
	"github.com/klarvik/schemascope/pkg/graph"
	"github.com/klarvik/schemascope/pkg/logging"
	"github.com/klarvik/schemascope/pkg/output"
	"github.com/klarvik/schemascope/pkg/watcher"
	"github.com/klarvik/schemascope/pkg/web"
)

func main() {
	flags := pflag.NewFlagSet("schemascope", pflag.ExitOnError)
	flags.String("csn_directory", ".", "Directory containing *_CSN.json documents")
	flags.String("cache_db_path", "schemascope.db", "Path to the cache database file")
	flags.Bool("enable_cascade_fk", true, "Assert foreign-key cascading at session start")
	flags.Bool("web", false, "Start web server instead of printing to console")
	flags.Int("port", 8080, "Port for web server (only used with --web)")
	flags.Bool("watch", false, "Watch the CSN directory and rebuild on changes")
	flags.Bool("open", false, "Open the browser when the web server starts")
	flags.CountP("verbose", "v", "Increase logging verbosity")
	_ = flags.Parse(os.Args[1:])

	cfg, err := config.Load(flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	applyVerbosity(cfg)

	repo, err := cache.NewSQLiteRepository(cfg.CacheDBPath, cache.WithCascadeFK(cfg.EnableCascadeFK))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = repo.Close() }()

	parser := csn.NewParser(cfg.CSNDirectory)
	b := builder.New(parser, parser)
	service := cache.NewService(repo, b, builder.SchemaGraphID, graph.GraphTypeSchema)
	f := facade.New(service, cfg.CSNDirectory, facade.WithQueryEngine(analytics.NewEngine()))

	if cfg.WebMode {
		runWebServer(cfg, f)
		return
	}

	result := f.GetSchemaGraph(context.Background(), true)
	if success, _ := result["success"].(bool); !success {
		fmt.Fprintf(os.Stderr, "Error: %v\n", result["error"])
		os.Exit(1)
	}

	stats := graphStatistics(f)
	output.PrintGraphReport(cfg.CSNDirectory, stats, true)
}

// runWebServer serves the API and, when configured, keeps the cache in
// sync with the CSN corpus.
func runWebServer(cfg *config.Config, f *facade.Facade) {
	server := web.NewServer(f)

	go func() {
		if err := server.Start(cfg.Port); err != nil {
			logging.Fatal("web server failed", "error", err)
		}
	}()

	if cfg.OpenBrowser {
		// Give the listener a moment before pointing a browser at it.
		time.Sleep(500 * time.Millisecond)
		openBrowser(fmt.Sprintf("http://localhost:%d", cfg.Port))
	}

	ctx := context.Background()

	// Warm the cache in the background so the first request is fast.
	go func() {
		_ = server.PublishCacheStatus("rebuilding", "Warming schema graph cache")
		result := f.GetSchemaGraph(ctx, true)
		if success, _ := result["success"].(bool); success {
			_ = server.PublishCacheStatus("ready", "Schema graph ready")
		} else {
			_ = server.PublishCacheStatus("failed", fmt.Sprintf("%v", result["error"]))
		}
	}()

	if cfg.Watch {
		if err := watchCorpus(ctx, cfg, f, server); err != nil {
			logging.Warn("corpus watching disabled", "error", err)
		}
	}

	select {}
}

// watchCorpus forces a cache rebuild whenever CSN documents change.
func watchCorpus(ctx context.Context, cfg *config.Config, f *facade.Facade, server *web.Server) error {
	corpusWatcher, err := watcher.NewCorpusWatcher(cfg.CSNDirectory)
	if err != nil {
		return err
	}
	if err := corpusWatcher.Start(ctx); err != nil {
		return err
	}

	debouncer := watcher.NewDebouncer(corpusWatcher.Events(), 2*time.Second, 10*time.Second)
	debouncer.Start(ctx)

	go func() {
		for change := range debouncer.Events() {
			logging.Info("CSN corpus changed, rebuilding", "files", len(change.Paths))
			_ = server.PublishCacheStatus("rebuilding", "CSN corpus changed")

			result := f.RebuildSchemaGraph(ctx)
			if success, _ := result["success"].(bool); success {
				_ = server.PublishCacheStatus("ready", "Schema graph rebuilt")
			} else {
				_ = server.PublishCacheStatus("failed", fmt.Sprintf("%v", result["error"]))
			}
		}
	}()
	return nil
}

func graphStatistics(f *facade.Facade) graph.Statistics {
	stats := graph.Statistics{
		NodesByType: make(map[string]int),
		EdgesByType: make(map[string]int),
	}
	result := f.GetGraphStatistics(context.Background())
	payload, ok := result["statistics"].(facade.Result)
	if !ok {
		return stats
	}
	if v, ok := payload["node_count"].(int); ok {
		stats.NodeCount = v
	}
	if v, ok := payload["edge_count"].(int); ok {
		stats.EdgeCount = v
	}
	if v, ok := payload["nodes_by_type"].(map[string]int); ok {
		stats.NodesByType = v
	}
	if v, ok := payload["edges_by_type"].(map[string]int); ok {
		stats.EdgesByType = v
	}
	return stats
}

func applyVerbosity(cfg *config.Config) {
	level := slog.LevelInfo
	switch {
	case cfg.Verbosity == "debug" || cfg.VerboseCnt >= 1:
		level = slog.LevelDebug
	case cfg.Verbosity == "warn":
		level = slog.LevelWarn
	case cfg.Verbosity == "error":
		level = slog.LevelError
	}
	logging.SetLevel(level)
}

func openBrowser(url string) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", url)
	default:
		return
	}
	if err := cmd.Start(); err != nil {
		logging.Warn("failed to open browser", "url", url, "error", err)
	}
}

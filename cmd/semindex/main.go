package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/tessellate-dev/semindex/internal/config"
	"github.com/tessellate-dev/semindex/internal/engine"
	mcpserver "github.com/tessellate-dev/semindex/internal/mcp"
	"github.com/tessellate-dev/semindex/internal/searcher"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	// Optional; missing .env is fine.
	_ = godotenv.Load()

	app := &cli.App{
		Name:    "semindex",
		Usage:   "Local semantic code search",
		Version: fmt.Sprintf("%s (built %s)", version, buildTime),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a YAML config file",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:      "index",
				Usage:     "Build or refresh the index for a source tree",
				ArgsUsage: "[path]",
				Action:    indexCommand,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "force",
						Usage: "Rebuild even when the tree matches the published index",
					},
				},
			},
			{
				Name:      "search",
				Usage:     "Search the index with a natural language query",
				ArgsUsage: "<query>",
				Action:    searchCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "limit",
						Aliases: []string{"n"},
						Usage:   "Maximum number of results",
						Value:   10,
					},
					&cli.StringSliceFlag{
						Name:  "language",
						Usage: "Restrict results to these languages",
					},
					&cli.StringFlag{
						Name:  "path-prefix",
						Usage: "Restrict results to paths under this prefix",
					},
					&cli.Float64Flag{
						Name:  "min-score",
						Usage: "Minimum similarity score (0.0-1.0)",
					},
					&cli.IntFlag{
						Name:  "ef-search",
						Usage: "Search beam width override",
					},
				},
			},
			{
				Name:      "status",
				Usage:     "Report index statistics and staleness",
				ArgsUsage: "[path]",
				Action:    statusCommand,
			},
			{
				Name:   "serve",
				Usage:  "Run the MCP server on stdio",
				Action: serveCommand,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newEngine(c *cli.Context) (*engine.Engine, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return engine.New(cfg.Engine())
}

func indexCommand(c *cli.Context) error {
	root := c.Args().First()
	if root == "" {
		var err error
		root, err = os.Getwd()
		if err != nil {
			return fmt.Errorf("resolve working directory: %w", err)
		}
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("resolve path: %w", err)
	}

	eng, err := newEngine(c)
	if err != nil {
		return err
	}
	defer eng.Close()

	stats, err := eng.Index(c.Context, root, c.Bool("force"))
	if err != nil {
		return fmt.Errorf("indexing failed: %w", err)
	}

	if stats.UpToDate {
		fmt.Println("Index is up to date.")
		return nil
	}
	fmt.Printf("Indexed %d files (%d chunks, %d vectors) in %s\n",
		stats.FilesIndexed, stats.Chunks, stats.Vectors, stats.Duration.Round(10*time.Millisecond))
	fmt.Printf("Cache: %d hits, %d misses\n", stats.CacheHits, stats.CacheMisses)
	if stats.FilesSkipped > 0 {
		fmt.Printf("Skipped %d files\n", stats.FilesSkipped)
	}
	if stats.FilesFailed > 0 {
		fmt.Printf("Failed %d files:\n", stats.FilesFailed)
		for _, w := range stats.Warnings {
			fmt.Printf("  %s\n", w)
		}
	}
	return nil
}

func searchCommand(c *cli.Context) error {
	query := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if query == "" {
		return fmt.Errorf("query is required")
	}

	eng, err := newEngine(c)
	if err != nil {
		return err
	}
	defer eng.Close()

	resp, err := eng.Search(c.Context, searcher.SearchRequest{
		Query:      query,
		Limit:      c.Int("limit"),
		EfSearch:   c.Int("ef-search"),
		MinScore:   c.Float64("min-score"),
		Languages:  c.StringSlice("language"),
		PathPrefix: c.String("path-prefix"),
	})
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if len(resp.Results) == 0 {
		fmt.Println("No results.")
		return nil
	}
	for _, r := range resp.Results {
		fmt.Printf("%2d. %.3f  %s:%d-%d (%s)\n", r.Rank, r.Score, r.Path, r.StartLine, r.EndLine, r.Language)
		for _, line := range strings.Split(strings.TrimRight(r.Snippet, "\n"), "\n") {
			fmt.Printf("      %s\n", line)
		}
		fmt.Println()
	}
	fmt.Printf("%d results in %s", resp.TotalResults, resp.Duration.Round(time.Millisecond))
	if resp.StaleExcluded > 0 {
		fmt.Printf(" (%d stale chunks excluded)", resp.StaleExcluded)
	}
	fmt.Println()
	return nil
}

func statusCommand(c *cli.Context) error {
	eng, err := newEngine(c)
	if err != nil {
		return err
	}
	defer eng.Close()

	status, err := eng.Status(c.Context, c.Args().First())
	if err != nil {
		return fmt.Errorf("status failed: %w", err)
	}

	if !status.Loaded {
		fmt.Println("No index. Run 'semindex index <path>' first.")
		return nil
	}

	fmt.Printf("Generation:  %s\n", status.Generation)
	fmt.Printf("Model:       %s (%d dims)\n", status.ModelID, status.Dimension)
	fmt.Printf("Files:       %d\n", status.FileCount)
	fmt.Printf("Chunks:      %d (%d vectors)\n", status.ChunkCount, status.VectorCount)
	fmt.Printf("Created:     %s\n", status.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Printf("Staleness:   %d unchanged, %d modified, %d deleted, %d new (ratio %.2f)\n",
		status.Unchanged, status.Modified, status.Deleted, status.New, status.StaleRatio)
	if status.RebuildRecommended {
		fmt.Println("Rebuild recommended: run 'semindex index' to refresh.")
	}
	return nil
}

func serveCommand(c *cli.Context) error {
	eng, err := newEngine(c)
	if err != nil {
		return err
	}
	defer eng.Close()

	server := mcpserver.NewServer(eng)

	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		slog.Info("MCP server ready, listening on stdio")
		errChan <- server.Serve(ctx)
	}()

	select {
	case sig := <-sigChan:
		slog.Info("shutting down", "signal", sig.String())
		cancel()
		<-errChan
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}
	return nil
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	// stdout carries search output and the MCP protocol.
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}

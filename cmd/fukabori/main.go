// Package main is the Fukabori CLI entry point.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/fukabori/internal/chunker"
	"github.com/hyperjump/fukabori/internal/config"
	"github.com/hyperjump/fukabori/internal/embedding"
	"github.com/hyperjump/fukabori/internal/extract"
	"github.com/hyperjump/fukabori/internal/keyword"
	"github.com/hyperjump/fukabori/internal/metrics"
	"github.com/hyperjump/fukabori/internal/models"
	"github.com/hyperjump/fukabori/internal/pipeline"
	"github.com/hyperjump/fukabori/internal/server"
	"github.com/hyperjump/fukabori/internal/storage"
	"github.com/hyperjump/fukabori/internal/vector"
	"github.com/hyperjump/fukabori/internal/watcher"
	"github.com/hyperjump/fukabori/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/fukabori/config.yaml"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	switch os.Args[1] {
	case "server":
		runServer()
	case "index":
		runIndex()
	case "search":
		runSearch()
	case "evaluate":
		runEvaluate()
	case "version", "--version", "-v":
		fmt.Printf("fukabori version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Print(`Usage: fukabori <command> [flags]

Commands:
  server    Run the HTTP API server
  index     Extract and index document files
  search    Query the index from the command line
  evaluate  Score a retrieval run against relevance judgments
  version   Print the version
`)
}

// loadConfig loads config from path. When path is the default, a config.yaml
// in the current directory takes precedence (for development). Returns the
// config and the path that was actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

// newEmbedder builds the configured embedder: ONNX when a model path is set,
// the deterministic hash embedder otherwise.
func newEmbedder(cfg *config.Config) (embedding.Embedder, error) {
	if cfg.Embedding.ModelPath != "" {
		e, err := embedding.NewONNXEmbedder(
			cfg.Embedding.ModelPath,
			cfg.Embedding.Dimensions,
			cfg.Embedding.MaxTokens,
			cfg.Embedding.CacheSize,
		)
		if err != nil {
			return nil, fmt.Errorf("load ONNX embedder: %w", err)
		}
		return e, nil
	}
	return embedding.NewHashEmbedder(cfg.Embedding.Dimensions), nil
}

// openIndex restores the snapshot at the configured path when one exists,
// otherwise builds an empty index of the configured variant.
func openIndex(cfg *config.Config) (vector.Index, error) {
	if _, err := os.Stat(filepath.Join(cfg.Storage.SnapshotPath, "meta.json")); err == nil {
		return vector.Open(cfg.Storage.SnapshotPath)
	}
	return vector.New(vector.Variant(cfg.Index.Variant), cfg.Embedding.Dimensions, &vector.Options{
		NList:          cfg.Index.NList,
		NProbe:         cfg.Index.NProbe,
		M:              cfg.Index.M,
		EfConstruction: cfg.Index.EfConstruction,
		EfSearch:       cfg.Index.EfSearch,
	})
}

func newPipeline(cfg *config.Config, logger *zap.Logger) (*pipeline.Pipeline, error) {
	emb, err := newEmbedder(cfg)
	if err != nil {
		return nil, err
	}
	ix, err := openIndex(cfg)
	if err != nil {
		return nil, err
	}
	return pipeline.New(emb, ix, logger)
}

func chunkParams(cfg *config.Config) (chunker.Policy, chunker.Params) {
	return chunker.Policy(cfg.Chunking.Policy), chunker.Params{
		ChunkSize:     cfg.Chunking.ChunkSize,
		Overlap:       cfg.Chunking.Overlap,
		MaxTokens:     cfg.Chunking.MaxTokens,
		OverlapTokens: cfg.Chunking.OverlapTokens,
		MinLength:     cfg.Chunking.MinLength,
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode))

	p, err := newPipeline(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize pipeline", zap.Error(err))
	}
	defer p.Close()

	matcher, err := keyword.NewMatcher(cfg.Storage.KeywordIndexPath)
	if err != nil {
		logger.Fatal("Failed to open keyword index", zap.Error(err))
	}
	defer matcher.Close()

	history, err := storage.NewHistory(cfg.Storage.DatabasePath, cfg.History.MaxEntries)
	if err != nil {
		logger.Fatal("Failed to open history database", zap.Error(err))
	}
	defer history.Close()

	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	if len(cfg.Watch.Directories) > 0 {
		extractor := extract.NewExtractor()
		policy, params := chunkParams(cfg)
		w := watcher.New(
			cfg.Watch.Directories,
			cfg.Watch.Extensions,
			cfg.Watch.RecursiveOrDefault(),
			time.Duration(cfg.Watch.DebounceMS)*time.Millisecond,
			func(path string) {
				doc, err := extractor.File(path)
				if err != nil {
					logger.Warn("watch extract failed", zap.String("path", path), zap.Error(err))
					return
				}
				if _, err := p.AddDocuments(context.Background(), []models.Document{doc}, policy, params); err != nil {
					logger.Warn("watch ingest failed", zap.String("path", path), zap.Error(err))
				}
			},
			logger,
		)
		if err := w.Start(watchCtx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		defer w.Stop()
		w.SyncExisting()
	}

	srv := server.NewServer(p, matcher, history, cfg, logger)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	if err := p.Save(cfg.Storage.SnapshotPath); err != nil {
		logger.Warn("snapshot save failed", zap.Error(err))
	}
	watchCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

func runIndex() {
	fs := flag.NewFlagSet("index", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(os.Args[2:])
	files := fs.Args()
	if len(files) == 0 {
		fmt.Println("Usage: fukabori index [flags] <file> [file...]")
		os.Exit(1)
	}

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	p, err := newPipeline(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize pipeline", zap.Error(err))
	}
	defer p.Close()

	extractor := extract.NewExtractor()
	docs := make([]models.Document, 0, len(files))
	for _, path := range files {
		doc, err := extractor.File(path)
		if err != nil {
			logger.Fatal("Failed to extract file", zap.String("path", path), zap.Error(err))
		}
		docs = append(docs, doc)
	}

	policy, params := chunkParams(cfg)
	chunks, err := p.AddDocuments(context.Background(), docs, policy, params)
	if err != nil {
		logger.Fatal("Failed to index documents", zap.Error(err))
	}
	if err := p.Save(cfg.Storage.SnapshotPath); err != nil {
		logger.Fatal("Failed to save snapshot", zap.Error(err))
	}
	fmt.Printf("Indexed %d files (%d chunks) into %s\n", len(docs), chunks, cfg.Storage.SnapshotPath)
}

func runSearch() {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	limit := fs.Int("limit", 0, "maximum results (default from config)")
	threshold := fs.Float64("threshold", -1, "maximum distance; negative disables filtering")
	_ = fs.Parse(os.Args[2:])
	query := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if query == "" {
		fmt.Println("Usage: fukabori search [flags] <query>")
		os.Exit(1)
	}

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger := zap.NewNop()

	p, err := newPipeline(cfg, logger)
	if err != nil {
		fmt.Printf("Failed to initialize pipeline: %v\n", err)
		os.Exit(1)
	}
	defer p.Close()

	n := *limit
	if n <= 0 {
		n = cfg.Search.DefaultLimit
	}
	results, err := p.Search(context.Background(), query, n, *threshold)
	if err != nil {
		fmt.Printf("Search failed: %v\n", err)
		os.Exit(1)
	}
	if len(results) == 0 {
		fmt.Println("No results.")
		return
	}
	for i, r := range results {
		fmt.Printf("%2d. score=%.4f distance=%.4f\n    %s\n", i+1, r.Score, r.Distance, utils.Truncate(r.Text, 200))
	}
}

// judgedQuery is one line of a judgments file: the ranked IDs a retrieval run
// returned, the IDs judged relevant, and optional graded relevance.
type judgedQuery struct {
	Query     string             `json:"query"`
	Ranked    []string           `json:"ranked"`
	Relevant  []string           `json:"relevant"`
	Relevance map[string]float64 `json:"relevance,omitempty"`
}

type queryScores struct {
	Query     string  `json:"query"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	AP        float64 `json:"average_precision"`
	NDCG      float64 `json:"ndcg"`
}

func runEvaluate() {
	fs := flag.NewFlagSet("evaluate", flag.ExitOnError)
	k := fs.Int("k", 0, "NDCG cutoff (0 = full ranking)")
	_ = fs.Parse(os.Args[2:])
	if fs.NArg() != 1 {
		fmt.Println("Usage: fukabori evaluate [flags] <judgments.json>")
		os.Exit(1)
	}

	data, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		fmt.Printf("Failed to read judgments: %v\n", err)
		os.Exit(1)
	}
	var queries []judgedQuery
	if err := json.Unmarshal(data, &queries); err != nil {
		fmt.Printf("Failed to parse judgments: %v\n", err)
		os.Exit(1)
	}

	judgments := make([]metrics.Judgment[string], len(queries))
	perQuery := make([]queryScores, len(queries))
	for i, q := range queries {
		relevant := metrics.SetOf(q.Relevant...)
		retrieved := metrics.SetOf(q.Ranked...)
		judgments[i] = metrics.Judgment[string]{Ranked: q.Ranked, Relevant: relevant}

		// Graded relevance falls back to binary when the file has no grades.
		relevance := q.Relevance
		if relevance == nil {
			relevance = make(map[string]float64, len(q.Relevant))
			for _, id := range q.Relevant {
				relevance[id] = 1
			}
		}
		cutoff := *k
		if cutoff <= 0 {
			cutoff = len(q.Ranked)
		}
		perQuery[i] = queryScores{
			Query:     q.Query,
			Precision: metrics.Precision(retrieved, relevant),
			Recall:    metrics.Recall(retrieved, relevant),
			F1:        metrics.F1(retrieved, relevant),
			AP:        metrics.AveragePrecision(q.Ranked, relevant),
			NDCG:      metrics.NDCG(q.Ranked, relevance, cutoff),
		}
	}

	report := map[string]interface{}{
		"queries": perQuery,
		"map":     metrics.MeanAveragePrecision(judgments),
		"mrr":     metrics.MRR(judgments),
	}
	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		fmt.Printf("Failed to render report: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(out))
}

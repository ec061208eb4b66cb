// Package main is the campusbot CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/hyperjump/campusbot/internal/background"
	"github.com/hyperjump/campusbot/internal/cli"
	"github.com/hyperjump/campusbot/internal/config"
	"github.com/hyperjump/campusbot/internal/errs"
	"github.com/hyperjump/campusbot/internal/generation"
	"github.com/hyperjump/campusbot/internal/intent"
	"github.com/hyperjump/campusbot/internal/keyword"
	"github.com/hyperjump/campusbot/internal/knowledge"
	"github.com/hyperjump/campusbot/internal/metrics"
	"github.com/hyperjump/campusbot/internal/models"
	"github.com/hyperjump/campusbot/internal/resolver"
	"github.com/hyperjump/campusbot/internal/server"
	"github.com/hyperjump/campusbot/internal/storage"
	"github.com/hyperjump/campusbot/internal/telemetry"
	"github.com/hyperjump/campusbot/internal/tracker"
	"github.com/hyperjump/campusbot/internal/watcher"
	"github.com/hyperjump/campusbot/pkg/utils"
)

var version = "dev"

const (
	defaultConfigPath = "/usr/local/etc/campusbot/config.yaml"
	defaultServerURL  = "http://localhost:8080"
)

// loadConfig loads config from path. When path is the default, it first looks for
// config.yaml in the current directory (for development); if that exists it is used.
// Returns the config and the path that was actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				path = fallback
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "ask":
		runAsk()
	case "import":
		runImport()
	case "knowledge":
		runKnowledge()
	case "patterns":
		runPatterns()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("campusbot version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

// setup loads config, creates the logger and builds components. withGeneration
// also builds the generation client and resolver.
func setup(configPath string, debugFlag, withGeneration bool) (*config.Config, *zap.Logger, *Components) {
	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		fatalf("Failed to load config: %v", err)
	}
	debugMode := cfg.Debug || debugFlag
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fatalf("Failed to create logger: %v", err)
	}
	logger.Debug("config loaded", zap.String("config_path", resolved), zap.Bool("debug", debugMode))

	components, err := initializeComponents(cfg, logger, withGeneration)
	if err != nil {
		_ = logger.Sync()
		fatalf("Failed to initialize: %v", err)
	}
	return cfg, logger, components
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging (requests, seed reloads, resolutions)")
	_ = fs.Parse(os.Args[2:])

	cfg, logger, components := setup(*configPath, *debug, true)
	defer logger.Sync()
	defer components.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var seed server.SeedService
	if len(cfg.Seed.Directories) > 0 {
		recursive := cfg.Seed.RecursiveOrDefault()
		for _, dir := range cfg.Seed.Directories {
			res, err := components.Knowledge.ImportDirectory(ctx, dir, recursive, cfg.Seed.Extensions)
			if err != nil {
				logger.Warn("seed import failed", zap.String("dir", dir), zap.Error(err))
			}
			logger.Info("seed directory imported",
				zap.String("dir", dir),
				zap.Int("files", res.Files),
				zap.Int("created", res.Created),
				zap.Int("updated", res.Updated),
				zap.Int("deactivated", res.Deactivated),
				zap.Int("errors", len(res.Errors)),
			)
		}
		w := watcher.New(cfg.Seed.Directories, cfg.Seed.Extensions, recursive,
			seedHandler(components.Knowledge, logger), watcher.WithLogger(logger))
		if err := w.Start(ctx); err != nil {
			logger.Fatal("Failed to start seed watcher", zap.Error(err))
		}
		defer w.Stop()
		seed = w
	}

	srv := server.NewServer(server.Deps{
		Storage:   components.Storage,
		Knowledge: components.Knowledge,
		Resolver:  components.Resolver,
		Recorder:  components.Recorder,
		Tracker:   components.Tracker,
		Runner:    components.Runner,
		Gatherer:  components.Registry,
		Seed:      seed,
	}, &cfg.Server, logger,
		server.WithAssistant(cfg.Assistant),
		server.WithDebug(cfg.Debug || *debug),
		server.WithDiskPaths(diskPaths(cfg)...),
	)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = srv.Stop(shutdownCtx)
	if err := components.Runner.Shutdown(shutdownCtx); err != nil {
		logger.Warn("background tasks did not finish", zap.Error(err))
	}
}

func seedHandler(svc *knowledge.Service, logger *zap.Logger) watcher.Handler {
	return watcher.HandlerFuncs{
		OnReload: func(ctx context.Context, path string) error {
			res, err := svc.ImportFile(ctx, path)
			if err != nil {
				return err
			}
			logger.Info("seed file reloaded",
				zap.String("path", path),
				zap.Int("created", res.Created),
				zap.Int("updated", res.Updated),
				zap.Int("deactivated", res.Deactivated),
				zap.Strings("errors", res.Errors),
			)
			return nil
		},
		OnDrop: func(ctx context.Context, path string) error {
			n, err := svc.DeactivateSource(ctx, path)
			if err != nil {
				return err
			}
			logger.Info("seed file removed", zap.String("path", path), zap.Int("deactivated", n))
			return nil
		},
	}
}

func diskPaths(cfg *config.Config) []string {
	var paths []string
	if cfg.Storage.Driver == config.DriverSQLite {
		paths = append(paths, storage.SQLiteFiles(cfg.Storage.DatabasePath)...)
	}
	return append(paths, cfg.Storage.BleveIndexPath)
}

// argsReorder moves any flags (and their values) that appear after the
// positional arguments to the front so that flag.Parse() sees them. Go's flag
// package stops at the first non-flag argument.
func argsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

// joinArgs joins positional args with spaces so multi-word messages work with
// or without shell quoting.
func joinArgs(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

func parseFormat(s string) cli.OutputFormat {
	format, err := cli.ParseOutputFormat(s)
	if err != nil {
		fatalf("%v", err)
	}
	return format
}

func runAsk() {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (direct mode)")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = resolve directly against storage)")
	conversationID := fs.String("conversation", "", "continue an existing conversation")
	outputFormat := fs.String("output", "text", "output format: text or json")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: campusbot ask [flags] <message>\n\n")
		fs.PrintDefaults()
	}
	_ = fs.Parse(argsReorder(os.Args[2:]))

	message := joinArgs(fs.Args())
	if message == "" {
		fs.Usage()
		os.Exit(1)
	}
	format := parseFormat(*outputFormat)

	var res *resolver.Result
	if *serverURL != "" {
		resp, err := chatViaHTTP(*serverURL, chatRequest{ConversationID: *conversationID, Message: message})
		if err != nil {
			fatalf("Ask failed: %v", err)
		}
		res = resp.result()
	} else {
		cfg, logger, components := setup(*configPath, false, true)
		defer logger.Sync()
		defer components.Close()
		var err error
		res, err = askDirect(context.Background(), cfg, components, *conversationID, message)
		if err != nil {
			fatalf("Ask failed: %v", err)
		}
	}
	if err := cli.WriteAnswer(os.Stdout, res, format); err != nil {
		fatalf("Output failed: %v", err)
	}
}

// askDirect resolves one message in-process. Background tasks run to
// completion before it returns.
func askDirect(ctx context.Context, cfg *config.Config, c *Components, conversationID, message string) (*resolver.Result, error) {
	var state models.ConversationState
	if conversationID == "" {
		conv, err := c.Recorder.StartConversation(ctx, "cli", utils.Truncate(message, 60))
		if err != nil {
			return nil, err
		}
		state.ConversationID = conv.ID
	} else {
		loaded, err := c.Recorder.State(ctx, conversationID)
		if err != nil {
			return nil, err
		}
		state = loaded
	}

	res, err := c.Resolver.Resolve(ctx, state, message)
	if errs.IsKind(err, errs.KindUpstreamGeneration) {
		label := intent.Detect(message)
		if _, rerr := c.Recorder.RecordFailure(ctx, state.ConversationID, message, label, cfg.Assistant.FallbackMessage, err); rerr != nil {
			return nil, rerr
		}
		return &resolver.Result{
			Content: cfg.Assistant.FallbackMessage,
			Source:  telemetry.SourceFallback,
			Intent:  label,
			State:   state,
		}, nil
	}
	if err != nil {
		return nil, err
	}
	if n := len(res.State.Turns); n >= 2 {
		if _, _, err := c.Recorder.RecordTurn(ctx, res.State.Turns[n-2], res.State.Turns[n-1]); err != nil {
			return nil, err
		}
	}
	if err := c.Runner.RunSync(ctx, res.Tasks...); err != nil {
		c.logger.Warn("background task failed", zap.Error(err))
	}
	return res, nil
}

type chatRequest struct {
	ConversationID string `json:"conversation_id,omitempty"`
	UserID         string `json:"user_id,omitempty"`
	Message        string `json:"message"`
}

type chatResponse struct {
	ConversationID string          `json:"conversation_id"`
	MessageID      string          `json:"message_id,omitempty"`
	Content        string          `json:"content"`
	Confidence     float64         `json:"confidence"`
	Source         string          `json:"source"`
	Intent         models.Category `json:"intent"`
	KnowledgeID    string          `json:"knowledge_id,omitempty"`
	LatencyMs      int64           `json:"latency_ms"`
	Error          bool            `json:"error,omitempty"`
}

func (c *chatResponse) result() *resolver.Result {
	return &resolver.Result{
		Content:     c.Content,
		Confidence:  c.Confidence,
		Source:      c.Source,
		Intent:      c.Intent,
		KnowledgeID: c.KnowledgeID,
		Latency:     time.Duration(c.LatencyMs) * time.Millisecond,
		State:       models.ConversationState{ConversationID: c.ConversationID},
	}
}

func chatViaHTTP(serverURL string, req chatRequest) (*chatResponse, error) {
	var resp chatResponse
	if err := apiRequest(http.MethodPost, serverURL+"/api/v1/chat", req, http.StatusOK, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// apiRequest sends body as JSON (when non-nil) and decodes the response into out.
func apiRequest(method, endpoint string, body interface{}, wantStatus int, out interface{}) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, endpoint, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != wantStatus {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func runImport() {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	recursive := fs.Bool("recursive", true, "descend into subdirectories")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(argsReorder(os.Args[2:]))

	if fs.NArg() < 1 {
		fmt.Println("Usage: campusbot import [flags] <file-or-directory>")
		os.Exit(1)
	}
	path := fs.Arg(0)
	format := parseFormat(*outputFormat)

	cfg, logger, components := setup(*configPath, false, false)
	defer logger.Sync()
	defer components.Close()

	info, err := os.Stat(path)
	if err != nil {
		fatalf("Failed to stat path: %v", err)
	}
	ctx := context.Background()
	var res knowledge.ImportResult
	if info.IsDir() {
		res, err = components.Knowledge.ImportDirectory(ctx, path, *recursive, cfg.Seed.Extensions)
	} else {
		res, err = components.Knowledge.ImportFile(ctx, path)
	}
	if werr := cli.WriteImportResult(os.Stdout, res, format); werr != nil {
		fatalf("Output failed: %v", werr)
	}
	if err != nil {
		fatalf("Import failed: %v", err)
	}
}

func runKnowledge() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: campusbot knowledge <list|add|search> [flags]")
		fmt.Println("  campusbot knowledge list      List knowledge entries")
		fmt.Println("  campusbot knowledge add       Add a knowledge entry")
		fmt.Println("  campusbot knowledge search    Full-text search over active entries")
		os.Exit(1)
	}
	sub := os.Args[2]
	args := argsReorder(os.Args[3:])
	switch sub {
	case "list":
		knowledgeList(args)
	case "add":
		knowledgeAdd(args)
	case "search":
		knowledgeSearch(args)
	default:
		fatalf("Unknown knowledge subcommand: %s", sub)
	}
}

func knowledgeList(args []string) {
	fs := flag.NewFlagSet("knowledge list", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	category := fs.String("category", "", "only this category")
	active := fs.String("active", "", "true or false (empty = both)")
	learned := fs.Bool("learned", false, "only learned entries")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(args)
	format := parseFormat(*outputFormat)

	filter, err := buildFilter(*category, *active, *learned)
	if err != nil {
		fatalf("%v", err)
	}
	_, logger, components := setup(*configPath, false, false)
	defer logger.Sync()
	defer components.Close()

	entries, err := components.Knowledge.List(context.Background(), filter)
	if err != nil {
		fatalf("List failed: %v", err)
	}
	if err := cli.WriteEntries(os.Stdout, entries, format); err != nil {
		fatalf("Output failed: %v", err)
	}
}

func buildFilter(category, active string, learned bool) (models.KnowledgeFilter, error) {
	var filter models.KnowledgeFilter
	if category != "" {
		c, err := models.ParseCategory(category)
		if err != nil {
			return filter, err
		}
		filter.Category = &c
	}
	if active != "" {
		v, err := strconv.ParseBool(active)
		if err != nil {
			return filter, fmt.Errorf("invalid --active value %q", active)
		}
		filter.Active = &v
	}
	if learned {
		p := models.ProvenanceLearned
		filter.Provenance = &p
	}
	return filter, nil
}

// splitKeywords splits a comma separated flag value.
func splitKeywords(s string) []string {
	var out []string
	for _, k := range strings.Split(s, ",") {
		if k = strings.TrimSpace(k); k != "" {
			out = append(out, k)
		}
	}
	return out
}

func knowledgeAdd(args []string) {
	fs := flag.NewFlagSet("knowledge add", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	question := fs.String("question", "", "question text (required)")
	answer := fs.String("answer", "", "answer text (required)")
	category := fs.String("category", "general", "category: programs, admissions, contact, costs, schedule, general")
	keywords := fs.String("keywords", "", "comma separated keywords (default: extracted from the question)")
	id := fs.String("id", "", "explicit id (updates the entry when it exists)")
	_ = fs.Parse(args)

	if strings.TrimSpace(*question) == "" || strings.TrimSpace(*answer) == "" {
		fmt.Println("Usage: campusbot knowledge add --question <text> --answer <text> [--category c] [--keywords a,b]")
		os.Exit(1)
	}
	_, logger, components := setup(*configPath, false, false)
	defer logger.Sync()
	defer components.Close()

	newID, err := components.Knowledge.Add(context.Background(), models.KnowledgeInput{
		ID:       *id,
		Question: *question,
		Answer:   *answer,
		Category: *category,
		Keywords: splitKeywords(*keywords),
	})
	if err != nil {
		fatalf("Add failed: %v", err)
	}
	if newID == "" {
		fmt.Println("Skipped: question is empty after normalization")
		return
	}
	fmt.Printf("Knowledge entry saved: %s\n", newID)
}

func knowledgeSearch(args []string) {
	fs := flag.NewFlagSet("knowledge search", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (direct mode)")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = search the index directly)")
	limit := fs.Int("limit", 10, "number of results")
	category := fs.String("category", "", "only this category")
	fuzzy := fs.Bool("fuzzy", false, "enable fuzzy matching for typo tolerance")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(args)

	query := models.KnowledgeSearchQuery{Query: joinArgs(fs.Args()), Limit: *limit, Category: *category, Fuzzy: *fuzzy}
	if query.Query == "" {
		fmt.Println("Usage: campusbot knowledge search [flags] <query>")
		os.Exit(1)
	}
	format := parseFormat(*outputFormat)

	var response *models.KnowledgeSearchResponse
	var err error
	if *serverURL != "" {
		// Use the HTTP API when the server is running (avoids the bleve index lock).
		response, err = searchViaHTTP(*serverURL, query)
		if err == nil && response.Total == 0 && !query.Fuzzy {
			query.Fuzzy = true
			if fuzzyResp, ferr := searchViaHTTP(*serverURL, query); ferr == nil && fuzzyResp.Total > 0 {
				response = fuzzyResp
			}
		}
	} else {
		_, logger, components := setup(*configPath, false, false)
		defer logger.Sync()
		defer components.Close()
		ctx := context.Background()
		response, err = components.Knowledge.Search(ctx, query)
		if err == nil && response.Total == 0 && !query.Fuzzy {
			query.Fuzzy = true
			if fuzzyResp, ferr := components.Knowledge.Search(ctx, query); ferr == nil && fuzzyResp.Total > 0 {
				response = fuzzyResp
			}
		}
	}
	if err != nil {
		fatalf("Search failed: %v", err)
	}
	if err := cli.WriteSearchResults(os.Stdout, response, format); err != nil {
		fatalf("Output failed: %v", err)
	}
}

func searchViaHTTP(serverURL string, q models.KnowledgeSearchQuery) (*models.KnowledgeSearchResponse, error) {
	v := url.Values{}
	v.Set("q", q.Query)
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Category != "" {
		v.Set("category", q.Category)
	}
	if q.Fuzzy {
		v.Set("fuzzy", "true")
	}
	var resp models.KnowledgeSearchResponse
	if err := apiRequest(http.MethodGet, serverURL+"/api/v1/knowledge/search?"+v.Encode(), nil, http.StatusOK, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

type patternsResponse struct {
	Patterns []*models.LearningPattern `json:"patterns"`
}

func runPatterns() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: campusbot patterns <list|detect> [flags]")
		os.Exit(1)
	}
	sub := os.Args[2]
	fs := flag.NewFlagSet("patterns", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (direct mode)")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = use storage directly)")
	limit := fs.Int("limit", 50, "maximum patterns to list")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[3:])
	format := parseFormat(*outputFormat)

	var patterns []*models.LearningPattern
	var err error
	switch sub {
	case "list":
		if *serverURL != "" {
			var resp patternsResponse
			err = apiRequest(http.MethodGet, fmt.Sprintf("%s/api/v1/patterns?limit=%d", *serverURL, *limit), nil, http.StatusOK, &resp)
			patterns = resp.Patterns
		} else {
			_, logger, components := setup(*configPath, false, false)
			defer logger.Sync()
			defer components.Close()
			patterns, err = components.Storage.ListPatterns(context.Background(), "", *limit)
		}
	case "detect":
		if *serverURL != "" {
			var resp patternsResponse
			err = apiRequest(http.MethodPost, *serverURL+"/api/v1/patterns/detect", nil, http.StatusOK, &resp)
			patterns = resp.Patterns
		} else {
			_, logger, components := setup(*configPath, false, false)
			defer logger.Sync()
			defer components.Close()
			patterns, err = components.Tracker.DetectPatterns(context.Background())
		}
	default:
		fatalf("Unknown patterns subcommand: %s", sub)
	}
	if err != nil {
		fatalf("Patterns %s failed: %v", sub, err)
	}
	if err := cli.WritePatterns(os.Stdout, patterns, format); err != nil {
		fatalf("Output failed: %v", err)
	}
}

// statusResponse is the shape of GET /api/v1/stats.
type statusResponse struct {
	Stats           models.Stats `json:"stats"`
	DiskUsageBytes  *int64       `json:"disk_usage_bytes,omitempty"`
	SeedDirectories []string     `json:"seed_directories,omitempty"`
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (direct mode)")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = use storage directly)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])
	format := parseFormat(*outputFormat)

	var status statusResponse
	if *serverURL != "" {
		if err := apiRequest(http.MethodGet, *serverURL+"/api/v1/stats", nil, http.StatusOK, &status); err != nil {
			fatalf("Status failed: %v", err)
		}
	} else {
		cfg, logger, components := setup(*configPath, false, false)
		defer logger.Sync()
		defer components.Close()
		stats, err := components.Storage.Stats(context.Background())
		if err != nil {
			fatalf("Stats failed: %v", err)
		}
		status.Stats = *stats
		if n, err := storage.DiskUsageBytes(diskPaths(cfg)...); err == nil {
			status.DiskUsageBytes = &n
		}
		status.SeedDirectories = cfg.Seed.Directories
	}

	if format == cli.OutputJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(status); err != nil {
			fatalf("Output failed: %v", err)
		}
		return
	}
	_ = cli.WriteStats(os.Stdout, &status.Stats, format)
	if status.DiskUsageBytes != nil {
		fmt.Printf("Disk usage:        %d bytes\n", *status.DiskUsageBytes)
	}
	for _, d := range status.SeedDirectories {
		fmt.Printf("Seed directory:    %s\n", d)
	}
}

// Components holds initialized services.
type Components struct {
	Storage      storage.Storage
	KeywordIndex keyword.Index
	Knowledge    *knowledge.Service
	Tracker      *tracker.Tracker
	Recorder     *telemetry.Recorder
	Generator    generation.Generator
	Resolver     *resolver.Resolver
	Metrics      *metrics.Metrics
	Registry     *prometheus.Registry
	Runner       *background.Runner

	logger *zap.Logger
}

// Close cancels background work and releases the index and storage.
func (c *Components) Close() {
	if c.Runner != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = c.Runner.Shutdown(ctx)
		cancel()
	}
	if c.KeywordIndex != nil {
		_ = c.KeywordIndex.Close()
	}
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger, withGeneration bool) (*Components, error) {
	logger = utils.LoggerOrNop(logger)
	store, err := storage.NewSQLStorage(cfg.Storage.Driver, cfg.Storage.DataSource())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	c := &Components{Storage: store, logger: logger}

	keywordIndex, err := keyword.NewBleveIndex(cfg.Storage.BleveIndexPath)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize keyword index: %w", err)
	}
	c.KeywordIndex = keywordIndex

	c.Metrics = metrics.New()
	c.Registry = prometheus.NewRegistry()
	c.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	if err := metrics.RegisterWith(c.Registry, c.Metrics); err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	c.Knowledge = knowledge.New(store, keywordIndex, knowledge.WithLogger(logger))
	c.Tracker = tracker.New(store, tracker.WithLogger(logger))
	c.Recorder = telemetry.New(store, telemetry.WithUsage(c.Tracker), telemetry.WithLogger(logger))
	c.Runner = background.NewRunner(
		background.WithTimeout(cfg.Server.TaskTimeout),
		background.WithLogger(logger),
		background.WithFailureHook(c.Metrics.IncTaskFailure),
	)

	if !withGeneration {
		return c, nil
	}
	gen, err := generation.New(cfg.Generation, logger)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.Generator = gen
	c.Resolver = resolver.New(store, gen,
		resolver.WithLogger(logger),
		resolver.WithMetrics(c.Metrics),
		resolver.WithTracker(c.Tracker),
		resolver.WithLearner(c.Knowledge),
		resolver.WithPatternDetector(c.Tracker),
		resolver.WithPersona(resolver.Persona{Name: cfg.Assistant.Name, Institution: cfg.Assistant.Institution}),
		resolver.WithGenerationParams(generation.ParamsFromConfig(cfg.Generation)),
	)
	return c, nil
}

func printUsage() {
	fmt.Println(`campusbot - University assistant with knowledge base and generated answers

Usage:
  campusbot server [flags]                  Start the HTTP server
  campusbot ask [flags] <message>           Ask a question
  campusbot import [flags] <file-or-dir>    Import knowledge seed files (.yaml, .yml, .xlsx, .csv)
  campusbot knowledge list [flags]          List knowledge entries
  campusbot knowledge add [flags]           Add a knowledge entry
  campusbot knowledge search [flags] <q>    Search knowledge entries
  campusbot patterns <list|detect> [flags]  Show or mine recurring question terms
  campusbot status [flags]                  Show storage statistics
  campusbot version                         Show version
  campusbot help                            Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/campusbot/config.yaml)
  --debug            Enable debug logging

Ask Flags:
  --server string          Server URL (default: http://localhost:8080). Use --server "" to resolve directly.
  --conversation string    Continue an existing conversation
  --output string          Output format: text or json (default: text)

Import Flags:
  --recursive        Descend into subdirectories (default: true)

Knowledge Flags:
  list:   --category, --active true|false, --learned, --output
  add:    --question, --answer, --category, --keywords a,b,c, --id
  search: --server, --limit, --category, --fuzzy, --output

Patterns and Status Flags:
  --server string    Server URL (default: http://localhost:8080). Use --server "" for direct storage.
  --output string    Output format: text or json (default: text)

Examples:
  campusbot server
  campusbot ask "¿Cuáles son los requisitos de admisión?"
  campusbot ask --server "" --output json ¿Cuánto cuesta la maestría?
  campusbot import ./seed
  campusbot knowledge add --question "¿Hay becas?" --answer "Sí, hasta el 50%." --category costs
  campusbot knowledge search becas
  campusbot patterns detect
  campusbot status --output json`)
}

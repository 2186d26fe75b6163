// Package codescope provides a retrieval engine over extracted codebase
// units: classified search, signal ranking, token-budgeted context assembly,
// and a safe read-only console, served over stdio, HTTP, or MCP.
//
// Basic usage:
//
//	client, err := codescope.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	result, err := client.Retrieve(ctx, "how does user registration work", 0)
package codescope

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/redis/go-redis/v9"

	"github.com/codescope/codescope/application/service"
	"github.com/codescope/codescope/domain/feedback"
	"github.com/codescope/codescope/domain/rank"
	"github.com/codescope/codescope/domain/store"
	"github.com/codescope/codescope/infrastructure/breaker"
	"github.com/codescope/codescope/infrastructure/console"
	"github.com/codescope/codescope/infrastructure/memstore"
	"github.com/codescope/codescope/infrastructure/persistence"
	"github.com/codescope/codescope/infrastructure/pipeline"
	"github.com/codescope/codescope/infrastructure/provider"
	"github.com/codescope/codescope/infrastructure/toolserver"
	"github.com/codescope/codescope/internal/config"
	"github.com/codescope/codescope/internal/database"
	"github.com/codescope/codescope/internal/log"
	"github.com/codescope/codescope/internal/mcp"
)

// Client is the main entry point. It owns the store handles and the wired
// retrieval pipeline; all serving surfaces dispatch through one registry.
type Client struct {
	Retriever *service.Retriever
	Executor  *service.SearchExecutor
	Tools     *service.ToolService
	Feedback  *feedback.Store

	cfg      config.AppConfig
	logger   *log.Logger
	db       database.Database
	hasDB    bool
	appDB    database.Database
	hasAppDB bool
	redis    *redis.Client

	vectors  store.VectorStore
	metadata store.MetadataStore
	graph    store.GraphStore
	embedder *breaker.GuardedEmbedder

	registry        *toolserver.Registry
	consoleRegistry *toolserver.Registry

	confirmation *console.Confirmation
}

// New creates a Client. Configuration comes from the environment unless
// WithConfig overrides it.
func New(opts ...Option) (*Client, error) {
	cc := &clientConfig{}
	for _, opt := range opts {
		opt(cc)
	}

	cfg := cc.appConfig
	if !cc.haveConfig {
		loaded, err := config.Load(cc.envFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	logger := cc.logger
	if logger == nil {
		logger = log.New(log.Format(cfg.LogFormat()), cfg.LogLevel())
	}

	c := &Client{
		cfg:          cfg,
		logger:       logger,
		confirmation: cc.confirmation,
	}

	if err := c.openStores(cc.inMemory); err != nil {
		return nil, err
	}
	c.buildEmbedder(cc.embedder)
	c.buildPipeline()
	return c, nil
}

func (c *Client) openStores(inMemory bool) error {
	if inMemory {
		c.vectors = memstore.NewVectorStore()
		c.metadata = memstore.NewMetadataStore()
		c.graph = memstore.NewGraphStore()
		return nil
	}

	db, err := database.Open(c.cfg.DBURL())
	if err != nil {
		return fmt.Errorf("open index database: %w", err)
	}
	if err := persistence.Migrate(db); err != nil {
		db.Close()
		return fmt.Errorf("migrate index database: %w", err)
	}
	c.db = db
	c.hasDB = true

	// Persistence-backed stores sit behind circuit breakers so a failing
	// backend degrades retrieval tier by tier instead of stalling it.
	breakerOpts := []breaker.Option{
		breaker.WithThreshold(uint32(c.cfg.BreakerThreshold())),
		breaker.WithReset(c.cfg.BreakerReset()),
		breaker.WithLogger(c.logger.Slog()),
	}
	c.vectors = breaker.NewGuardedVectorStore(persistence.NewVectorStore(db), breakerOpts...)
	c.metadata = breaker.NewGuardedMetadataStore(persistence.NewMetadataStore(db), breakerOpts...)
	c.graph = breaker.NewGuardedGraphStore(persistence.NewGraphStore(db), breakerOpts...)
	return nil
}

func (c *Client) buildEmbedder(override Embedder) {
	var inner Embedder
	switch {
	case override != nil:
		inner = override
	case c.cfg.OpenAIKey() != "":
		opts := []provider.OpenAIOption{provider.WithModel(c.cfg.EmbeddingModel())}
		if c.cfg.EmbeddingBaseURL() != "" {
			opts = append(opts, provider.WithBaseURL(c.cfg.EmbeddingBaseURL()))
		}
		inner = provider.NewOpenAIProvider(c.cfg.OpenAIKey(), opts...)
	// Voyage and Cohere speak the OpenAI embeddings wire format on their
	// compatibility endpoints, so they reuse the same client.
	case c.cfg.VoyageKey() != "":
		inner = provider.NewOpenAIProvider(c.cfg.VoyageKey(),
			provider.WithBaseURL("https://api.voyageai.com/v1"),
			provider.WithModel("voyage-code-2"))
	case c.cfg.CohereKey() != "":
		inner = provider.NewOpenAIProvider(c.cfg.CohereKey(),
			provider.WithBaseURL("https://api.cohere.ai/compatibility/v1"),
			provider.WithModel("embed-v4.0"))
	default:
		// Offline fallback: deterministic hash vectors keep vector search
		// functional without an API key.
		inner = provider.NewHashProvider(0)
	}

	c.embedder = breaker.NewGuardedEmbedder(inner,
		breaker.WithThreshold(uint32(c.cfg.BreakerThreshold())),
		breaker.WithReset(c.cfg.BreakerReset()),
		breaker.WithLogger(c.logger.Slog()),
	)
}

func (c *Client) buildPipeline() {
	executor := service.NewSearchExecutor(c.vectors, c.metadata, c.graph, c.embedder,
		service.WithCandidateLimit(c.cfg.SearchLimit()))
	ranker := rank.NewRanker(c.metadata)
	retriever := service.NewRetriever(executor, ranker,
		service.WithBudget(c.cfg.TokenBudget()),
		service.WithIndexDir(c.cfg.IndexDir()),
		service.WithRetrieverLogger(c.logger),
	)

	guard := pipeline.NewGuard(c.cfg.IndexDir(), c.cfg.Cooldown())
	indexer := pipeline.NewIncrementalIndexer(c.embedder, c.vectors, c.metadata, c.graph,
		pipeline.WithIndexerLogger(c.logger))
	reporter := pipeline.NewStatusReporter(c.cfg.IndexDir(), c.vectors, c.metadata)

	feedbackStore := feedback.NewStore(c.cfg.FeedbackLogPath())
	gaps := feedback.NewGapDetector(0, 0)

	formatter := service.NewFormatter(c.cfg.Format())
	tools := service.NewToolService(retriever, executor, c.metadata, c.graph, formatter, c.cfg.IndexDir(),
		service.WithPipelineControl(guard, indexer, reporter),
		service.WithFeedback(feedbackStore, gaps),
		service.WithToolLogger(c.logger),
	)

	registry := toolserver.NewRegistry(toolserver.WithDeadline(c.cfg.HandlerDeadline()))
	tools.Register(registry)

	c.Retriever = retriever
	c.Executor = executor
	c.Tools = tools
	c.Feedback = feedbackStore
	c.registry = registry
}

// Registry returns the read-side tool registry.
func (c *Client) Registry() *toolserver.Registry { return c.registry }

// Retrieve runs the full retrieval pipeline for query. budget <= 0 uses the
// configured default.
func (c *Client) Retrieve(ctx context.Context, query string, budget int) (service.RetrievalResult, error) {
	return c.Retriever.Retrieve(ctx, query, budget)
}

// Console returns the embedded console registry, building it on first use.
// It requires APP_DB_URL: the console inspects the live application
// database, not the index.
func (c *Client) Console(ctx context.Context) (*toolserver.Registry, error) {
	if c.consoleRegistry != nil {
		return c.consoleRegistry, nil
	}
	if c.cfg.AppDBURL() == "" {
		return nil, fmt.Errorf("console requires APP_DB_URL")
	}

	appDB, err := database.Open(c.cfg.AppDBURL())
	if err != nil {
		return nil, fmt.Errorf("open application database: %w", err)
	}
	c.appDB = appDB
	c.hasAppDB = true

	validator, err := console.BuildModelValidator(ctx, c.metadata)
	if err != nil {
		return nil, fmt.Errorf("build model validator: %w", err)
	}

	consoleCfg, err := config.LoadConsoleConfig(c.cfg.ConsoleConfigPath())
	if err != nil {
		return nil, fmt.Errorf("load console config: %w", err)
	}
	safe := console.NewSafeContext(appDB, consoleCfg.StatementTimeoutMS)

	opts := []console.ServerOption{
		console.WithAuditLogger(console.NewAuditLogger(c.cfg.AuditLogPath())),
		console.WithLogger(c.logger),
	}
	if c.confirmation != nil {
		opts = append(opts, console.WithConfirmation(c.confirmation))
	}
	if c.cfg.RedisURL() != "" {
		redisOpts, err := redis.ParseURL(c.cfg.RedisURL())
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		c.redis = redis.NewClient(redisOpts)
		opts = append(opts, console.WithRedis(c.redis))
	}

	server := console.NewServerFromConsoleConfig(validator, safe, consoleCfg, opts...)
	c.consoleRegistry = server.Registry(toolserver.WithDeadline(c.cfg.HandlerDeadline()))
	return c.consoleRegistry, nil
}

// ConsoleBridge returns a console registry that forwards every tool to an
// external bridge process instead of executing locally.
func (c *Client) ConsoleBridge(adapter console.Adapter) *toolserver.Registry {
	return console.NewBridgeRegistry(adapter, toolserver.WithDeadline(c.cfg.HandlerDeadline()))
}

// HTTPServer builds the HTTP server over the registry; the caller runs
// Start and Shutdown.
func (c *Client) HTTPServer() *toolserver.HTTPServer {
	return toolserver.NewHTTPServer(c.registry, c.cfg.Addr(), c.logger)
}

// ServeStdio serves the registry over stdin/stdout until EOF or ctx
// cancellation.
func (c *Client) ServeStdio(ctx context.Context) error {
	return c.StdioServer(os.Stdin, os.Stdout).Serve(ctx)
}

// StdioServer builds a stdio server over custom streams.
func (c *Client) StdioServer(in io.Reader, out io.Writer) *toolserver.StdioServer {
	return toolserver.NewStdioServer(c.registry, in, out, c.logger)
}

// MCP builds the Model Context Protocol server over the registry.
func (c *Client) MCP() *mcp.Server {
	return mcp.NewServer(c.registry, c.metadata, c.cfg.IndexDir(), c.logger)
}

// Config returns the resolved configuration.
func (c *Client) Config() config.AppConfig { return c.cfg }

// Logger returns the client logger.
func (c *Client) Logger() *log.Logger { return c.logger }

// Stores returns the wired store handles, mostly for CLI subcommands that
// operate on the index directly.
func (c *Client) Stores() (store.VectorStore, store.MetadataStore, store.GraphStore) {
	return c.vectors, c.metadata, c.graph
}

// Embedder returns the breaker-guarded embedding provider.
func (c *Client) Embedder() Embedder { return c.embedder }

// Close releases the database and redis handles.
func (c *Client) Close() error {
	var firstErr error
	if c.hasDB {
		if err := c.db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if c.hasAppDB {
		if err := c.appDB.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if c.redis != nil {
		if err := c.redis.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Package bootstrap wires configuration, infrastructure adapters and use
// cases into one App shared by every binary.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	natsio "github.com/nats-io/nats.go"

	"github.com/voronkovm/diagramflow/internal/config"
	"github.com/voronkovm/diagramflow/internal/core/ports"
	"github.com/voronkovm/diagramflow/internal/core/usecase"
	"github.com/voronkovm/diagramflow/internal/infrastructure/chunking"
	"github.com/voronkovm/diagramflow/internal/infrastructure/extractor"
	"github.com/voronkovm/diagramflow/internal/infrastructure/graph"
	"github.com/voronkovm/diagramflow/internal/infrastructure/llm/ollama"
	"github.com/voronkovm/diagramflow/internal/infrastructure/queue/nats"
	"github.com/voronkovm/diagramflow/internal/infrastructure/repository/postgres"
	"github.com/voronkovm/diagramflow/internal/infrastructure/resilience"
	"github.com/voronkovm/diagramflow/internal/infrastructure/storage/localfs"
	"github.com/voronkovm/diagramflow/internal/observability/logging"
)

type App struct {
	Config config.Config
	Logger *slog.Logger

	DocumentRepo ports.DocumentRepository
	DiagramRepo  ports.DiagramRepository

	Tasks  *nats.TaskQueue
	Events *nats.EventBus

	IngestUC   ports.DocumentIngestor
	ProcessUC  ports.DocumentProcessor
	DiagramsUC ports.DiagramService
	LibraryUC  ports.DiagramLibrary
	AdminUC    ports.ModerationAdmin

	analyzer ports.ContentAnalyzer
	closeFn  func()
}

func New(ctx context.Context, cfg config.Config, service string) (*App, error) {
	return NewWithLogger(ctx, cfg, service, logging.NewJSONLogger(service, cfg.LogLevel))
}

// NewWithLogger wires the app around a caller-built logger. The MCP binary
// needs this because its stdout belongs to the protocol stream.
func NewWithLogger(ctx context.Context, cfg config.Config, service string, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = logging.NewJSONLogger(service, cfg.LogLevel)
	}

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	documents := postgres.NewDocumentRepository(db)
	diagrams := postgres.NewDiagramRepository(db)
	usage := postgres.NewUsageRepository(db)

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	conn, err := nats.Connect(cfg.NATSURL, service, nats.ConnectOptions{}, logging.WithComponent(logger, "nats"))
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect nats: %w", err)
	}

	executor := resilience.NewExecutor(resilience.DefaultConfig(), logging.WithComponent(logger, "resilience"))

	tasks := nats.NewTaskQueue(conn, nats.TaskQueueOptions{
		MaxAttempts: cfg.TaskMaxAttempts,
		RetryDelay:  time.Duration(cfg.TaskRetryDelaySeconds) * time.Second,
		Executor:    executor,
	}, logging.WithComponent(logger, "tasks"))
	events := nats.NewEventBus(conn, logging.WithComponent(logger, "events"))

	model := ollama.New(
		cfg.OllamaURL,
		cfg.OllamaModel,
		time.Duration(cfg.OllamaTimeoutSeconds)*time.Second,
		executor,
	)
	analyzer := ollama.NewAnalyzer(model)

	index, err := graph.NewRelatedIndex(ctx, graph.Config{
		URI:      cfg.Neo4jURI,
		User:     cfg.Neo4jUser,
		Password: cfg.Neo4jPassword,
		Database: cfg.Neo4jDatabase,
	}, logging.WithComponent(logger, "graph"))
	if err != nil {
		closeConn(conn)
		_ = db.Close()
		return nil, fmt.Errorf("init related index: %w", err)
	}
	// A disabled index comes back as a nil pointer; leave the port nil so
	// the use cases see "no index" instead of a non-nil interface around it.
	var related ports.RelatedIndex
	if index != nil {
		related = index
	}

	segmenter := chunking.NewSegmenter(cfg.ChunkSize)
	extract := extractor.NewRegistry(storage)
	generator := usecase.NewGenerateDiagramUseCase(model, usage, logger)

	app := &App{
		Config: cfg,
		Logger: logger,

		DocumentRepo: documents,
		DiagramRepo:  diagrams,

		Tasks:  tasks,
		Events: events,

		IngestUC:   usecase.NewIngestDocumentUseCase(documents, storage, tasks),
		ProcessUC:  usecase.NewProcessDocumentUseCase(documents, diagrams, extract, segmenter, generator, events, related, logger),
		DiagramsUC: usecase.NewDiagramServiceUseCase(diagrams, generator, tasks, events, related, logger),
		LibraryUC:  usecase.NewLibraryUseCase(documents, diagrams),
		AdminUC:    usecase.NewModerationAdminUseCase(diagrams, logger),

		analyzer: analyzer,
		closeFn: func() {
			if index != nil {
				closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				if err := index.Close(closeCtx); err != nil {
					logger.Warn("related index close failed", slog.String("error", err.Error()))
				}
				cancel()
			}
			closeConn(conn)
			_ = db.Close()
		},
	}
	return app, nil
}

// NewModerator builds a moderation engine for the given policy. The engine
// is immutable; callers swap the whole engine to apply a policy change.
func (a *App) NewModerator(policy config.ModerationPolicy) *usecase.ModerateDiagramUseCase {
	return usecase.NewModerateDiagramUseCase(a.DiagramRepo, a.analyzer, usecase.ModerationPolicy{
		Enabled:              policy.Enabled,
		AutoApproveThreshold: policy.AutoApproveThreshold,
	}, a.Logger)
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

func closeConn(conn *natsio.Conn) {
	if conn == nil || conn.IsClosed() {
		return
	}
	conn.Close()
}

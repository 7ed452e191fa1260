package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/voronkovm/diagramflow/internal/bootstrap"
	"github.com/voronkovm/diagramflow/internal/config"
	"github.com/voronkovm/diagramflow/internal/core/domain"
	"github.com/voronkovm/diagramflow/internal/core/usecase"
	"github.com/voronkovm/diagramflow/internal/infrastructure/queue/nats"
	"github.com/voronkovm/diagramflow/internal/observability/metrics"
)

const service = "worker"

func main() {
	cfg := config.Load()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, service)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	policy, err := config.LoadModerationPolicy(cfg.ModerationPolicyPath)
	if err != nil {
		log.Fatalf("moderation policy error: %v", err)
	}

	var moderator atomic.Pointer[usecase.ModerateDiagramUseCase]
	moderator.Store(app.NewModerator(policy))

	go func() {
		err := config.WatchModerationPolicy(ctx, cfg.ModerationPolicyPath, app.Logger, func(p config.ModerationPolicy) {
			moderator.Store(app.NewModerator(p))
		})
		if err != nil {
			app.Logger.Warn("policy watcher stopped", slog.String("error", err.Error()))
		}
	}()

	workerMetrics := metrics.NewWorkerMetrics(service)
	app.Tasks.OnQueueLag(func(subject string, lag time.Duration) {
		workerMetrics.ObserveQueueLag(service, taskName(subject), lag)
	})
	metricsServer := startMetricsServer(cfg.WorkerMetricsPort, workerMetrics)

	ingest := instrument(workerMetrics, "ingest", func(handlerCtx context.Context, documentID string) error {
		processCtx, cancel := context.WithTimeout(handlerCtx, 5*time.Minute)
		defer cancel()
		return app.ProcessUC.ProcessByID(processCtx, documentID)
	})
	moderate := instrument(workerMetrics, "moderate", func(handlerCtx context.Context, diagramID string) error {
		moderateCtx, cancel := context.WithTimeout(handlerCtx, 2*time.Minute)
		defer cancel()
		return moderator.Load().ModerateByID(moderateCtx, diagramID)
	})

	log.Printf("worker consuming %s and %s", nats.SubjectIngest, nats.SubjectModerate)
	errs := make(chan error, 2)
	go func() { errs <- app.Tasks.ConsumeIngestion(ctx, ingest) }()
	go func() { errs <- app.Tasks.ConsumeModeration(ctx, moderate) }()

	for i := 0; i < 2; i++ {
		if err := <-errs; err != nil {
			app.Logger.Error("consumer stopped", slog.String("error", err.Error()))
			stop()
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("worker metrics shutdown error: %v", err)
	}
}

// instrument wraps a task handler with timing and outcome accounting. A
// temporary-kind error counts as a retry because the queue will redeliver it.
func instrument(m *metrics.WorkerMetrics, task string, handler nats.TaskHandler) nats.TaskHandler {
	return func(ctx context.Context, id string) error {
		m.StartTask(service, task)
		start := time.Now()
		err := handler(ctx, id)

		outcome := metrics.OutcomeSuccess
		switch {
		case err == nil:
		case domain.IsKind(err, domain.ErrTemporary):
			outcome = metrics.OutcomeRetry
		default:
			outcome = metrics.OutcomeError
		}
		m.FinishTask(service, task, outcome, time.Since(start))
		return err
	}
}

func taskName(subject string) string {
	switch subject {
	case nats.SubjectIngest:
		return "ingest"
	case nats.SubjectModerate:
		return "moderate"
	default:
		return subject
	}
}

func startMetricsServer(port string, m *metrics.WorkerMetrics) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	server := &http.Server{
		Addr:              ":" + port,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Printf("worker metrics listening on :%s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("worker metrics server error: %v", err)
		}
	}()
	return server
}

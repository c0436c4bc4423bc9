// The facilitator service runs the chunked audio capture pipeline
// behind a workshop facilitation UI: it records answers in segments,
// transcribes and extracts checklist information per segment, and
// streams live status to connected clients.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/skillsenselab/workshopkit/checklist"
	checklistsqlite "github.com/skillsenselab/workshopkit/checklist/sqlite"
	"github.com/skillsenselab/workshopkit/config"
	"github.com/skillsenselab/workshopkit/extraction"
	"github.com/skillsenselab/workshopkit/llm"
	"github.com/skillsenselab/workshopkit/llm/ollama"
	llmopenai "github.com/skillsenselab/workshopkit/llm/openai"
	"github.com/skillsenselab/workshopkit/logger"
	"github.com/skillsenselab/workshopkit/observability"
	"github.com/skillsenselab/workshopkit/server"
	"github.com/skillsenselab/workshopkit/server/endpoint"
	"github.com/skillsenselab/workshopkit/session"
	"github.com/skillsenselab/workshopkit/sse"
	"github.com/skillsenselab/workshopkit/storage"
	"github.com/skillsenselab/workshopkit/transcription"
	transcriptionoai "github.com/skillsenselab/workshopkit/transcription/openai"
	"github.com/skillsenselab/workshopkit/transcription/whisper"
	"github.com/skillsenselab/workshopkit/version"

	// Storage backends register themselves.
	_ "github.com/skillsenselab/workshopkit/storage/local"
	_ "github.com/skillsenselab/workshopkit/storage/s3"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "facilitator: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var cfg Config
	if err := config.LoadConfig("facilitator", &cfg); err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger.Init(cfg.Logging)
	log := logger.New(&cfg.Logging, cfg.Name)
	logger.SetGlobalLogger(log)

	log.Info("starting facilitator", logger.Fields(
		"version", version.GetShortVersion(),
		"environment", cfg.Environment,
	))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics, shutdownObs, err := initObservability(ctx, &cfg)
	if err != nil {
		return err
	}
	defer shutdownObs()

	store, err := storage.New(cfg.Storage, log)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}

	transcriber, err := buildTranscriber(&cfg)
	if err != nil {
		return err
	}
	llmProvider, err := buildLLM(&cfg)
	if err != nil {
		return err
	}
	extractor := extraction.NewLLMExtractor(llmProvider, log)

	snapshots, closeSnapshots, err := openSnapshotStore(&cfg)
	if err != nil {
		return err
	}
	defer closeSnapshots()

	answers := session.NewMemoryAnswerStore()
	aggregator := checklist.NewAggregator(snapshots, log, metrics)

	hub := sse.NewHub(log)
	go hub.Run()
	defer hub.Stop()
	events := server.EventBridge(hub, log)

	worker := session.NewWorker(session.WorkerDeps{
		Storage:     store,
		Transcriber: transcriber,
		Extractor:   extractor,
		Answers:     answers,
		Aggregator:  aggregator,
		Timeouts:    cfg.Timeouts,
		Events:      events,
		Logger:      log,
		Metrics:     metrics,
	})

	manager := session.NewManager(session.ManagerDeps{
		Source:    cfg.newSource(),
		Capture:   cfg.Capture,
		Answers:   answers,
		Snapshots: snapshots,
		Worker:    worker,
		Events:    events,
		Logger:    log,
	})

	srv := server.New(cfg.Server, log)
	srv.ApplyMiddleware()
	srv.RegisterDefaultEndpoints(cfg.Name, healthChecker(transcriber, llmProvider))
	server.NewAPI(manager, hub, store, log).Register(srv.GinEngine())

	if err := srv.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	log.Info("shutdown signal received")
	return srv.Stop(context.Background())
}

// initObservability starts the OTLP exporters when enabled. The
// returned metrics are nil-safe either way.
func initObservability(ctx context.Context, cfg *Config) (*observability.PipelineMetrics, func(), error) {
	if !cfg.Observability.Enabled {
		return nil, func() {}, nil
	}

	tcfg := observability.DefaultTracerConfig(cfg.Name)
	tcfg.ServiceVersion = version.GetShortVersion()
	tcfg.Environment = cfg.Environment
	tcfg.Endpoint = cfg.Observability.Endpoint
	tp, err := observability.InitTracer(ctx, tcfg)
	if err != nil {
		return nil, nil, fmt.Errorf("initializing tracer: %w", err)
	}

	mcfg := observability.DefaultMeterConfig(cfg.Name)
	mcfg.ServiceVersion = version.GetShortVersion()
	mcfg.Environment = cfg.Environment
	mcfg.Endpoint = cfg.Observability.Endpoint
	mp, err := observability.InitMeter(ctx, &mcfg)
	if err != nil {
		return nil, nil, fmt.Errorf("initializing meter: %w", err)
	}

	metrics, err := observability.NewPipelineMetrics(observability.Meter("pipeline"))
	if err != nil {
		return nil, nil, fmt.Errorf("creating pipeline metrics: %w", err)
	}

	shutdown := func() {
		sctx := context.Background()
		_ = tp.Shutdown(sctx)
		_ = mp.Shutdown(sctx)
	}
	return metrics, shutdown, nil
}

func buildTranscriber(cfg *Config) (transcription.Provider, error) {
	reg := transcription.NewRegistry()
	reg.RegisterFactory(whisper.ProviderName, whisper.Factory())
	reg.RegisterFactory(transcriptionoai.ProviderName, transcriptionoai.Factory())

	p, err := reg.Create(cfg.Transcription.Provider, cfg.Transcription.Settings)
	if err != nil {
		return nil, fmt.Errorf("creating transcription provider: %w", err)
	}
	return p, nil
}

func buildLLM(cfg *Config) (llm.Provider, error) {
	reg := llm.NewRegistry()
	reg.RegisterFactory(ollama.ProviderName, ollama.Factory())
	reg.RegisterFactory(llmopenai.ProviderName, llmopenai.Factory())

	p, err := reg.Create(cfg.LLM.Provider, cfg.LLM.Settings)
	if err != nil {
		return nil, fmt.Errorf("creating llm provider: %w", err)
	}
	return p, nil
}

func openSnapshotStore(cfg *Config) (checklist.Store, func(), error) {
	if cfg.Snapshots.Backend == "sqlite" {
		s, err := checklistsqlite.Open(cfg.Snapshots.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("opening snapshot store: %w", err)
		}
		return s, func() { _ = s.Close() }, nil
	}
	return checklist.NewMemoryStore(), func() {}, nil
}

// healthChecker reports the reachability of the external providers the
// pipeline depends on. They are degraded rather than unhealthy: the
// service can still record and store audio, and failed stages are
// retryable once the provider recovers.
func healthChecker(t transcription.Provider, l llm.Provider) endpoint.HealthChecker {
	return func(ctx context.Context) []endpoint.ComponentHealth {
		out := make([]endpoint.ComponentHealth, 0, 2)

		th := endpoint.ComponentHealth{Name: "transcription/" + t.Name(), Status: endpoint.StatusHealthy}
		if !t.IsAvailable(ctx) {
			th.Status = endpoint.StatusDegraded
			th.Message = "provider unreachable"
		}
		out = append(out, th)

		lh := endpoint.ComponentHealth{Name: "llm/" + l.Name(), Status: endpoint.StatusHealthy}
		if !l.IsAvailable(ctx) {
			lh.Status = endpoint.StatusDegraded
			lh.Message = "provider unreachable"
		}
		return append(out, lh)
	}
}

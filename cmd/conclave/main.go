// Command conclave is the Conclave MCP server: AI-assisted software
// engineering tools over the Model Context Protocol on stdio.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MrWong99/conclave/internal/config"
	"github.com/MrWong99/conclave/internal/conversation"
	"github.com/MrWong99/conclave/internal/health"
	mcpserver "github.com/MrWong99/conclave/internal/mcp"
	"github.com/MrWong99/conclave/internal/observe"
	"github.com/MrWong99/conclave/internal/registry"
	"github.com/MrWong99/conclave/internal/resilience"
	"github.com/MrWong99/conclave/internal/tools"
	"github.com/MrWong99/conclave/internal/workflow"
	"github.com/MrWong99/conclave/pkg/provider/llm"
	"github.com/MrWong99/conclave/pkg/provider/llm/custom"
	"github.com/MrWong99/conclave/pkg/provider/llm/dial"
	"github.com/MrWong99/conclave/pkg/provider/llm/gemini"
	"github.com/MrWong99/conclave/pkg/provider/llm/openai"
	"github.com/MrWong99/conclave/pkg/provider/llm/openrouter"
	"github.com/MrWong99/conclave/pkg/provider/llm/xai"
)

// Overridable via -ldflags "-X main.version=... -X main.commit=...".
var (
	version = "dev"
	commit  = ""
)

// sweepInterval is how often expired conversation threads are evicted.
const sweepInterval = 10 * time.Minute

func main() {
	os.Exit(run())
}

func run() int {
	// ── Configuration ─────────────────────────────────────────────────────────
	settings, err := config.FromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "conclave: %v\n", err)
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	// stdout belongs to the MCP protocol; everything else goes to stderr.
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: settings.LogLevel.SlogLevel(),
	}))
	slog.SetDefault(logger)

	slog.Info("conclave starting",
		"version", version,
		"log_level", settings.LogLevel,
		"default_model", settings.DefaultModel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Observability ─────────────────────────────────────────────────────────
	var metrics *observe.Metrics
	var ops *observe.OpsServer
	if settings.MetricsAddr != "" {
		shutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
			ServiceVersion: version,
		})
		if err != nil {
			slog.Error("failed to initialise telemetry", "err", err)
			return 1
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				slog.Warn("telemetry shutdown error", "err", err)
			}
		}()
		metrics = observe.DefaultMetrics()
	}

	// ── Providers ─────────────────────────────────────────────────────────────
	reg := registry.New()
	if err := registerProviders(ctx, settings, reg); err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}
	if len(reg.Kinds()) == 0 {
		slog.Warn("no provider API keys configured; model-backed tools will fail until one is set")
	}
	for kind, models := range settings.AllowedModels {
		reg.Restrict(kind, registry.Restriction{
			EnvVar: config.AllowListVar(kind),
			Models: models,
		})
	}

	// ── Readiness endpoint ────────────────────────────────────────────────────
	if settings.MetricsAddr != "" {
		ops = observe.NewOpsServer(settings.MetricsAddr, metrics, health.Checker{
			Name: "providers",
			Check: func(context.Context) error {
				if len(reg.Kinds()) == 0 {
					return errors.New("no providers configured")
				}
				return nil
			},
		})
		if err := ops.Start(); err != nil {
			slog.Error("failed to start ops server", "addr", settings.MetricsAddr, "err", err)
			return 1
		}
		slog.Info("ops server listening", "addr", settings.MetricsAddr)
	}

	// ── Conversation store ────────────────────────────────────────────────────
	storeCfg := conversation.StoreConfig{
		TTL:      settings.ConversationTTL,
		MaxTurns: settings.MaxConversationTurns,
	}
	if metrics != nil {
		storeCfg.ThreadGauge = metrics.ActiveThreads
	}
	store := conversation.NewStore(storeCfg)
	go sweepLoop(ctx, store)

	// ── Tool wiring ───────────────────────────────────────────────────────────
	deps := &tools.Deps{
		Settings: settings,
		Registry: reg,
		Store:    store,
		Guard:    resilience.NewGuard(resilience.RetryConfig{}),
		Metrics:  metrics,
	}

	server := mcpserver.NewServer(version, metrics)
	server.AddTool(tools.NewChat(deps), false)
	server.AddTool(tools.NewChallenge(), false)
	server.AddTool(tools.NewConsensus(deps), false)
	server.AddTool(tools.NewListModels(deps), false)
	server.AddTool(tools.NewVersion(deps, tools.BuildInfo{Version: version, Commit: commit}), false)

	engine := workflow.NewEngine(deps)
	for _, def := range workflow.Definitions() {
		server.AddTool(workflow.NewTool(def, engine), true)
	}

	// ── Serve ─────────────────────────────────────────────────────────────────
	slog.Info("conclave ready", "providers", reg.Kinds())
	err = server.Run(ctx)

	if ops != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := ops.Shutdown(shutdownCtx); shutdownErr != nil {
			slog.Warn("ops server shutdown error", "err", shutdownErr)
		}
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("server error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// registerProviders constructs every configured provider in precedence order.
func registerProviders(ctx context.Context, settings *config.Settings, reg *registry.Registry) error {
	for _, kind := range settings.EnabledKinds() {
		var (
			p   llm.Provider
			err error
		)
		switch kind {
		case llm.KindGoogle:
			p, err = gemini.New(ctx, settings.Google.APIKey)
		case llm.KindOpenAI:
			p, err = openai.New(settings.OpenAI.APIKey)
		case llm.KindXAI:
			p, err = xai.New(settings.XAI.APIKey)
		case llm.KindOpenRouter:
			p, err = openrouter.New(settings.OpenRouter.APIKey)
		case llm.KindDIAL:
			var opts []dial.Option
			if settings.DIAL.APIVersion != "" {
				opts = append(opts, dial.WithAPIVersion(settings.DIAL.APIVersion))
			}
			p, err = dial.New(settings.DIAL.APIKey, settings.DIAL.Host, opts...)
		case llm.KindCustom:
			p, err = buildCustomProvider(settings.Custom)
		}
		if err != nil {
			return fmt.Errorf("create %s provider: %w", kind, err)
		}
		reg.Register(p)
		slog.Info("provider registered", "kind", kind)
	}
	return nil
}

// buildCustomProvider wires the user-declared OpenAI-compatible endpoint,
// loading its model registry file when one is configured.
func buildCustomProvider(cfg config.CustomSettings) (llm.Provider, error) {
	opts := []custom.Option{}
	if cfg.APIKey != "" {
		opts = append(opts, custom.WithAPIKey(cfg.APIKey))
	}
	if cfg.DefaultModel != "" {
		opts = append(opts, custom.WithDefaultModel(cfg.DefaultModel))
	}
	if cfg.ModelsFile != "" {
		models, err := config.LoadModelsFile(cfg.ModelsFile, llm.KindCustom)
		if err != nil {
			return nil, fmt.Errorf("load custom models file: %w", err)
		}
		opts = append(opts, custom.WithModels(models))
	}
	return custom.New(cfg.BaseURL, opts...)
}

// sweepLoop evicts expired conversation threads until ctx is cancelled.
func sweepLoop(ctx context.Context, store *conversation.Store) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := store.Sweep(); n > 0 {
				slog.Debug("swept expired conversation threads", "count", n)
			}
		}
	}
}

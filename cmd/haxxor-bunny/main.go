package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/basket/haxxor-bunny/internal/audit"
	"github.com/basket/haxxor-bunny/internal/bus"
	"github.com/basket/haxxor-bunny/internal/cdn"
	"github.com/basket/haxxor-bunny/internal/commands"
	"github.com/basket/haxxor-bunny/internal/config"
	"github.com/basket/haxxor-bunny/internal/cron"
	"github.com/basket/haxxor-bunny/internal/discord"
	"github.com/basket/haxxor-bunny/internal/gateway"
	"github.com/basket/haxxor-bunny/internal/interactions"
	otelPkg "github.com/basket/haxxor-bunny/internal/otel"
	"github.com/basket/haxxor-bunny/internal/persistence"
	"github.com/basket/haxxor-bunny/internal/policy"
	"github.com/basket/haxxor-bunny/internal/telemetry"
)

// Version is set via ldflags at build time: -ldflags "-X main.Version=..."
var Version = "v1.2.0"

func printUsage(w io.Writer) {
	fmt.Fprintf(w, `usage: haxxor-bunny [command]

COMMANDS:
  serve                       Run the interactions webhook (default)
  deploy [-global|-guild id]  Push slash command descriptors
         [-dry-run]           Print the payload instead of sending it
  commands                    Print command descriptors as JSON
  emoji <emoji>               Cache one emoji image for /cdn
  status                      Query a running server's /healthz
  backup <path>               Write a consistent copy of the database
  help                        Show this message

ENVIRONMENT VARIABLES:
  HAXXOR_HOME                 Data directory (default: ~/.haxxor-bunny)
  DISCORD_APP_ID              Application id
  DISCORD_APP_PUBLIC_KEY      Hex ed25519 key for request signatures
  DISCORD_BOT_TOKEN           Bot credential for the REST API
  DISCORD_BOT_OWNER_IDS       Comma separated ids allowed to run manage-* commands
  DISCORD_DEV_GUILD_ID        Guild used by "deploy" without -global
  PORT                        Listen port when HAXXOR_BIND_ADDR is unset

haxxor-bunny %s
`, Version)
}

func main() {
	config.LoadDotEnv(".env")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	args := os.Args[1:]
	cmd := "serve"
	if len(args) > 0 {
		cmd = strings.ToLower(strings.TrimSpace(args[0]))
		args = args[1:]
	}
	switch cmd {
	case "serve":
		serve(ctx)
	case "deploy":
		os.Exit(runDeployCommand(ctx, args))
	case "commands":
		os.Exit(runCommandsCommand(os.Stdout, args))
	case "emoji":
		os.Exit(runEmojiCommand(ctx, args))
	case "status":
		os.Exit(runStatusCommand(ctx, args))
	case "backup":
		os.Exit(runBackupCommand(ctx, args))
	case "help", "-h", "--help":
		printUsage(os.Stdout)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", cmd)
		printUsage(os.Stderr)
		os.Exit(2)
	}
}

func serve(ctx context.Context) {
	cfg, err := config.Load()
	if err != nil {
		fatalStartup(nil, nil, "E_CONFIG_LOAD", err)
	}

	// Audit comes before the logger so logger failures are audited too.
	auditLog, err := audit.Open(cfg.HomeDir)
	if err != nil {
		fatalStartup(nil, nil, "E_AUDIT_INIT", err)
	}
	defer func() { _ = auditLog.Close() }()

	logger, closer, err := telemetry.NewLogger(cfg.HomeDir, cfg.LogLevel, false)
	if err != nil {
		fatalStartup(nil, auditLog, "E_LOGGER_INIT", err)
	}
	defer closer.Close()
	slog.SetDefault(logger)
	logger.Info("startup phase", "phase", "config_loaded", "version", Version, "config_fingerprint", cfg.Fingerprint())

	if err := cfg.ValidateServe(); err != nil {
		fatalStartup(logger, auditLog, "E_CONFIG_DISCORD", err)
	}
	verifier, err := interactions.NewVerifier(cfg.Discord.PublicKey)
	if err != nil {
		fatalStartup(logger, auditLog, "E_PUBLIC_KEY", err)
	}

	eventBus := bus.New()

	otelProvider, err := otelPkg.Init(ctx, otelPkg.Config{
		Enabled:     cfg.Telemetry.Enabled,
		Exporter:    cfg.Telemetry.Exporter,
		Endpoint:    cfg.Telemetry.Endpoint,
		ServiceName: cfg.Telemetry.ServiceName,
		SampleRate:  cfg.Telemetry.SampleRate,
	})
	if err != nil {
		fatalStartup(logger, auditLog, "E_OTEL_INIT", err)
	}
	defer func() { _ = otelProvider.Shutdown(context.Background()) }()
	metrics, err := otelPkg.NewMetrics(otelProvider.Meter)
	if err != nil {
		fatalStartup(logger, auditLog, "E_METRICS_INIT", err)
	}
	recorder := otelPkg.NewRecorder(eventBus, metrics)
	recorder.Start(ctx)
	defer recorder.Stop()

	store, err := persistence.Open(cfg.DBPath)
	if err != nil {
		fatalStartup(logger, auditLog, "E_STORE_OPEN", err)
	}
	defer store.Close()
	auditLog.SetDB(store.DB())
	logger.Info("startup phase", "phase", "schema_migrated", "db_path", cfg.DBPath)

	pol, err := policy.Load(policyPath(cfg))
	if err != nil {
		fatalStartup(logger, auditLog, "E_POLICY_LOAD", err)
	}
	pol = pol.WithOwners(cfg.Discord.OwnerIDs...)
	if len(pol.Owners) == 0 {
		logger.Warn("no owners configured; manage-* commands are denied to everyone")
	}
	live := policy.NewLivePolicy(pol)
	logger.Info("startup phase", "phase", "policy_loaded", "policy_version", live.PolicyVersion())

	watcher := config.NewWatcher(cfg.HomeDir, logger)
	if err := watcher.Start(ctx); err != nil {
		logger.Warn("config watcher disabled", "error", err)
	} else {
		go func() {
			for ev := range watcher.Events() {
				switch ev.Kind {
				case config.FilePolicy:
					reloadPolicy(cfg, live, logger)
				case config.FileConfig:
					logger.Warn("config.yaml changed; restart to apply", "path", ev.Path)
				}
			}
		}()
	}

	rest := discord.NewClient(discord.ClientConfig{
		BaseURL:  cfg.Discord.APIBaseURL,
		BotToken: cfg.Discord.BotToken,
		Tracer:   otelProvider.Tracer,
		Logger:   logger,
	})

	var media *cdn.Service
	deps := commands.Deps{
		Store:         store,
		Users:         rest,
		PublicBaseURL: cfg.PublicBaseURL,
		Logger:        logger,
	}
	if cfg.CDN.Enabled {
		media = cdn.New(cdn.Config{
			Store:    store,
			Policy:   live,
			Audit:    auditLog,
			Bus:      eventBus,
			Logger:   logger,
			MaxBytes: cfg.CDN.MaxBytes,
		})
		deps.CDN = media
	}
	registry, err := commands.NewRegistry(deps)
	if err != nil {
		fatalStartup(logger, auditLog, "E_COMMANDS_INVALID", err)
	}

	dispatcher := interactions.NewDispatcher(interactions.DispatcherConfig{
		Registry: registry,
		Rest:     rest,
		Policy:   live,
		Audit:    auditLog,
		Bus:      eventBus,
		Tracer:   otelProvider.Tracer,
		Logger:   logger,
		Timeout:  cfg.FollowupTimeout(),
	})

	gwCfg := gateway.Config{
		Verifier:          verifier,
		Dispatcher:        dispatcher,
		Store:             store,
		Policy:            live,
		Bus:               eventBus,
		Tracer:            otelProvider.Tracer,
		Logger:            logger,
		ConfigFingerprint: cfg.Fingerprint(),
		InviteURL:         cfg.InviteURL(),
		ReplyTimeout:      cfg.ReplyTimeout(),
		RateLimit:         cfg.RateLimit,
	}
	if media != nil {
		gwCfg.Media = media
	}
	gw := gateway.New(gwCfg)
	gw.Limiter().StartEviction(ctx, 5*time.Minute, 10*time.Minute)

	server := &http.Server{
		Handler:           gw.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
	}
	ln, err := net.Listen("tcp", cfg.BindAddr)
	if err != nil {
		fatalStartup(logger, auditLog, "E_GATEWAY_LISTEN", err)
	}
	serverErr := make(chan error, 1)
	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()
	logger.Info("startup phase", "phase", "gateway_listening", "addr", ln.Addr().String(), "commands", registry.Names())

	if media != nil && cfg.CDN.SyncSchedule != "" {
		sched, err := cron.NewScheduler(cron.Config{
			Store:  store,
			Logger: logger,
			Jobs: []cron.Job{{
				Name: "cdn-sync",
				Expr: cfg.CDN.SyncSchedule,
				Run: func(ctx context.Context) error {
					_, err := media.Sync(ctx)
					return err
				},
			}},
		})
		if err != nil {
			fatalStartup(logger, auditLog, "E_CRON_INIT", err)
		}
		sched.Start(ctx)
		defer sched.Stop()
	}

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		logger.Error("gateway server error", "error", err)
	}

	// Stop intake, then let deferred commands finish their edits.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)

	drainCtx, cancelDrain := context.WithTimeout(context.Background(), cfg.DrainTimeout())
	defer cancelDrain()
	if err := gw.Drain(drainCtx); err != nil {
		logger.Warn("drain timed out; abandoning in-flight interactions", "error", err)
	}
	logger.Info("shutdown complete")
}

// reloadPolicy applies an edited policy.yaml. The environment owners are
// merged in again; a broken file keeps the previous policy.
func reloadPolicy(cfg config.Config, live *policy.LivePolicy, logger *slog.Logger) {
	next, err := policy.Load(policyPath(cfg))
	if err != nil {
		logger.Error("policy reload failed; keeping previous policy", "error", err)
		return
	}
	live.Reload(next.WithOwners(cfg.Discord.OwnerIDs...))
	logger.Info("policy reloaded", "policy_version", live.PolicyVersion())
}

func fatalStartup(logger *slog.Logger, auditLog *audit.Log, reasonCode string, err error) {
	message := ""
	if err != nil {
		message = err.Error()
	}
	auditLog.Record(context.Background(), audit.Entry{
		Decision: "fatal",
		Command:  "runtime.startup",
		Reason:   reasonCode,
		Subject:  message,
	})

	if logger != nil {
		logger.Error("startup failure", "reason_code", reasonCode, "error", message)
	} else {
		fmt.Fprintf(
			os.Stderr,
			`{"timestamp":"%s","level":"ERROR","component":"bot","trace_id":"-","msg":"startup failure","reason_code":%q,"error":%q}`+"\n",
			time.Now().UTC().Format(time.RFC3339Nano),
			reasonCode,
			message,
		)
	}
	os.Exit(1)
}

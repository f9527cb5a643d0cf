package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/helmward/agentgov/pkg/auth"
	"github.com/helmward/agentgov/pkg/authz"
	"github.com/helmward/agentgov/pkg/config"
	"github.com/helmward/agentgov/pkg/killswitch"
	"github.com/helmward/agentgov/pkg/model"
	"github.com/helmward/agentgov/pkg/observer"
	"github.com/helmward/agentgov/pkg/ratelimit"
	"github.com/helmward/agentgov/pkg/signing"
	"github.com/helmward/agentgov/pkg/storage"
	"github.com/helmward/agentgov/pkg/telemetry"
	"github.com/helmward/agentgov/pkg/trust"
)

// runServer wires up the governance stack and serves until a shutdown
// signal arrives, mirroring the teacher's runServer: a degraded-but-up
// Lite Mode (SQLite) when DATABASE_URL is unset, a full Postgres mode
// otherwise, non-fatal logging for optional subsystems.
func runServer(stdout, stderr io.Writer) {
	fmt.Fprintln(stdout, "agentgov starting...")
	ctx := context.Background()
	logger := slog.Default()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Printf("[agentgov] config: %v (continuing in degraded mode)", err)
	}

	liteMode := cfg.DatabaseURL == "" || cfg.ShadowMode

	db, err := openDB(ctx, cfg, liteMode)
	if err != nil {
		log.Fatalf("[agentgov] connect database: %v", err)
	}

	store, err := openAgentStore(ctx, db, liteMode)
	if err != nil {
		log.Fatalf("[agentgov] init agent store: %v", err)
	}
	log.Println("[agentgov] agent store: ready")

	keyring := signing.NewKeyringFromSeed(seedFromString(cfg.SigningKeySeed))
	fmt.Fprintf(stdout, "trust root: %x\n", keyring.PublicKey())

	obsLog := observer.New(func(agentID string) ([]byte, error) {
		return keyring.DeriveForAgent(agentID)
	})

	limiter := ratelimit.NewMemoryLimiter()
	pipeline := trust.NewPipeline(trust.NewMemoryStageStore())
	ks := killswitch.New()

	engine, err := authz.NewEngine("policy-v1", loadHooks(cfg), authz.WithKillSwitch(
		func(intent model.Intent, profile model.TrustProfile) (bool, string) {
			scopes := []string{killswitch.ScopeAll}
			blocked, scope := ks.Denies(scopes...)
			return blocked, scope
		},
	))
	if err != nil {
		log.Fatalf("[agentgov] init authz engine: %v", err)
	}

	provider, err := telemetry.New(ctx, &telemetry.Config{
		ServiceName:  "agentgov",
		OTLPEndpoint: cfg.OTLPEndpoint,
		Enabled:      cfg.TelemetryEnabled,
		SampleRate:   1.0,
		Insecure:     true,
	})
	if err != nil {
		log.Printf("[agentgov] telemetry init (non-fatal): %v", err)
		provider, _ = telemetry.New(ctx, &telemetry.Config{Enabled: false})
	}
	defer func() { _ = provider.Shutdown(ctx) }()

	server := &governanceServer{
		cfg:      cfg,
		store:    store,
		obsLog:   obsLog,
		limiter:  limiter,
		pipeline: pipeline,
		killSw:   ks,
		engine:   engine,
		provider: provider,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	mux.HandleFunc("/v1/authorize", server.handleAuthorize)

	var jwtSecret []byte
	if cfg.JWTSecret != "" {
		jwtSecret = []byte(cfg.JWTSecret)
	}
	authMiddleware := auth.NewMiddleware(auth.NewValidator(jwtSecret))

	go func() {
		log.Printf("[agentgov] listening on :%s", cfg.Port)
		if err := http.ListenAndServe(":"+cfg.Port, authMiddleware(mux)); err != nil {
			logger.Error("server failed", "error", err)
		}
	}()

	log.Println("[agentgov] ready")
	log.Println("[agentgov] press ctrl+c to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	log.Println("[agentgov] shutting down")
}

func openDB(ctx context.Context, cfg *config.Config, liteMode bool) (*sql.DB, error) {
	if liteMode {
		return sql.Open("sqlite", cfg.SQLitePath)
	}
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return db, nil
}

func openAgentStore(ctx context.Context, db *sql.DB, liteMode bool) (agentStore, error) {
	if liteMode {
		return storage.NewSQLiteAgentStore(db)
	}
	store := storage.NewPostgresAgentStore(db)
	if err := store.Init(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

// agentStore is the minimal surface the dispatcher needs from either
// concrete store implementation.
type agentStore interface {
	GetAgent(ctx context.Context, agentID string) (model.Agent, bool, error)
	CreateAgent(ctx context.Context, agent model.Agent) error
}

func seedFromString(s string) []byte {
	seed := make([]byte, 32)
	copy(seed, []byte(s))
	return seed
}

func loadHooks(cfg *config.Config) []authz.Hook {
	hooks, err := config.LoadPolicySet(cfg.PolicySetPath)
	if err != nil {
		log.Printf("[agentgov] policy set (non-fatal, running with no extra hooks): %v", err)
		return nil
	}
	return hooks
}

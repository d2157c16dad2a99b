package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/lumenhealth/checkin/backend/internal/analysis/trend"
	"github.com/lumenhealth/checkin/backend/internal/config"
	"github.com/lumenhealth/checkin/backend/internal/handler"
	"github.com/lumenhealth/checkin/backend/internal/logger"
	"github.com/lumenhealth/checkin/backend/internal/model/patient"
	"github.com/lumenhealth/checkin/backend/internal/model/questionnaire"
	"github.com/lumenhealth/checkin/backend/internal/notify"
	"github.com/lumenhealth/checkin/backend/internal/service/ai"
	"github.com/lumenhealth/checkin/backend/internal/service/checkin"
	"github.com/lumenhealth/checkin/backend/internal/storage"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	slog, err := logger.New(cfg.Log.Mode)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer slog.Sync()

	store, err := openStore(cfg.Database, slog)
	if err != nil {
		slog.Fatalw("failed to initialize storage", "error", err)
	}

	templates, err := loadTemplates(cfg.Checkin.TemplateDir, slog)
	if err != nil {
		slog.Fatalw("failed to load questionnaire templates", "error", err)
	}

	var generator ai.Generator
	if cfg.AI.Enabled() {
		aiService, err := ai.NewService(ctx, cfg.AI)
		if err != nil {
			slog.Warnw("failed to initialize AI service, falling back to templated replies", "error", err)
		} else {
			slog.Infow("AI companion service initialized", "model", cfg.AI.Model)
			generator = aiService
		}
	} else {
		slog.Info("Ark credentials not configured, using templated companion replies")
	}

	hub := notify.NewHub()
	notifiers := []notify.Notifier{hub}
	if cfg.Notify.Enabled() {
		notifiers = append(notifiers, notify.NewTelegramNotifier(cfg.Notify.TelegramToken, cfg.Notify.CareTeamChatID))
		slog.Info("Telegram care-team notifier enabled")
	}

	engine := trend.NewEngine(riskConfig(cfg.Risk))

	orchestrator := checkin.NewOrchestrator(store, templates, engine, generator, notifiers, slog, checkin.Options{
		MaxQuestions:   cfg.Checkin.MaxQuestions,
		PersistTimeout: cfg.Checkin.PersistTimeout,
	})

	router := handler.NewRouter(orchestrator, hub, slog)

	startServer(ctx, cfg.Server, router, slog)
}

func riskConfig(rc config.RiskConfig) trend.Config {
	cfg := trend.DefaultConfig()
	if rc.Threshold > 0 {
		cfg.Threshold = rc.Threshold
	}
	if rc.AcuteJumpSteps > 0 {
		cfg.AcuteJump = rc.AcuteJumpSteps
	}
	for family, weight := range rc.Weights {
		cfg.Weights[family] = weight
	}
	return cfg
}

// openStore connects to Postgres when DATABASE_URL is set and runs pending
// migrations; otherwise it falls back to an in-memory store seeded with a
// demo patient for local development.
func openStore(dbCfg config.DatabaseConfig, slog *zap.SugaredLogger) (storage.Store, error) {
	if dbCfg.URL == "" {
		slog.Info("DATABASE_URL not set, using in-memory storage")
		mem := storage.NewMemoryStore()
		seedDemoPatient(mem, slog)
		return mem, nil
	}

	db, err := sql.Open("postgres", dbCfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	for attempt := 1; ; attempt++ {
		if err = db.Ping(); err == nil {
			break
		}
		if attempt >= dbCfg.ConnectRetries {
			return nil, fmt.Errorf("ping database after %d attempts: %w", attempt, err)
		}
		slog.Warnw("database not ready, retrying", "attempt", attempt, "error", err)
		time.Sleep(2 * time.Second)
	}

	m, err := migrate.New("file://"+dbCfg.MigrationsDir, dbCfg.URL)
	if err != nil {
		return nil, fmt.Errorf("init migrations: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("database migrations applied")

	return storage.NewPostgresStore(db), nil
}

func seedDemoPatient(store storage.Store, slog *zap.SugaredLogger) {
	now := time.Now().UTC()
	demo := patient.Patient{
		ID:         "demo-patient",
		FullName:   "Alex Demo",
		Language:   "en",
		Conditions: []string{"general"},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := store.SavePatient(context.Background(), demo); err != nil {
		slog.Warnw("failed to seed demo patient", "error", err)
		return
	}
	slog.Infow("seeded demo patient", "patientID", demo.ID)
}

func loadTemplates(dir string, slog *zap.SugaredLogger) (questionnaire.Store, error) {
	if dir == "" {
		slog.Info("TEMPLATE_DIR not set, using built-in questionnaire templates")
		return questionnaire.NewMemoryStore(questionnaire.Seed()), nil
	}
	items, err := questionnaire.LoadDir(dir)
	if err != nil {
		return nil, err
	}
	slog.Infow("loaded questionnaire templates", "dir", dir, "count", len(items))
	return questionnaire.NewMemoryStore(items), nil
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler, slog *zap.SugaredLogger) {
	srv := &http.Server{
		Addr:              serverCfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	slog.Infow("check-in backend listening", "addr", serverCfg.Addr)
	if err := runServer(ctx, srv); err != nil {
		slog.Fatalw("server error", "error", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

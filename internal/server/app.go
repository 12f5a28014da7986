// Package server initializes and runs the application: it opens the
// database, applies migrations, wires the services and the event bus, and
// starts the HTTP server and the reminder worker with graceful shutdown.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/dkurganov/taskflow/internal/logging"
	"github.com/dkurganov/taskflow/internal/server/auth"
	"github.com/dkurganov/taskflow/internal/server/config"
	"github.com/dkurganov/taskflow/internal/server/events"
	"github.com/dkurganov/taskflow/internal/server/httpapi"
	"github.com/dkurganov/taskflow/internal/server/repositories/repomanager"
	"github.com/dkurganov/taskflow/internal/server/services"
)

// reminderScanInterval is how often the reminder worker checks for due tasks.
const reminderScanInterval = time.Minute

type App struct {
	config     *config.Config
	logger     logging.Logger
	db         *sql.DB
	httpServer *httpapi.Server
	reminders  *services.ReminderWorker
	bus        *events.Bus
}

func NewApp(cfg *config.Config) (*App, error) {
	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	repos := repomanager.NewPostgresRepositoryManager()
	if err := repos.RunMigrations(context.Background(), db); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	bus := events.NewBus(cfg.EventBufferSize, logger)
	issuer := auth.NewTokenIssuer([]byte(cfg.SecretKey), cfg.AccessTokenValidityDuration)
	google := auth.NewGoogleClient(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURL)

	sessions := services.NewSessionService(db, repos, issuer, google, bus, logger, cfg)
	tasks := services.NewTaskService(db, repos, bus, logger)
	notifications := services.NewNotificationService(db, repos, bus, logger)
	messages := services.NewMessageService(db, repos, bus, logger)
	users := services.NewUserService(db, repos, logger)

	httpServer := httpapi.NewServer(cfg, &httpapi.Services{
		Sessions:      sessions,
		OAuth:         google,
		Tasks:         tasks,
		Notifications: notifications,
		Messages:      messages,
		Users:         users,
		Bus:           bus,
	}, logger)

	reminders := services.NewReminderWorker(db, repos, notifications, logger, reminderScanInterval)

	return &App{
		config:     cfg,
		logger:     logger,
		db:         db,
		httpServer: httpServer,
		reminders:  reminders,
		bus:        bus,
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "starting app")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := app.httpServer.Run(ctx); err != nil {
			app.logger.Error(ctx, err.Error())
			cancelFunc()
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.reminders.Run(ctx)
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "closing db", "error", err.Error())
	}
	app.logger.Info(ctx, "app stopped")
}

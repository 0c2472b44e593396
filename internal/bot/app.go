// Package bot initializes and runs the consultation bot: storage and
// migrations, the crypto pipeline, the Telegram long-poll loop, the
// retention scheduler, and the ops HTTP listener, with graceful shutdown.
package bot

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dkurilov/counselbot/internal/bot/config"
	"github.com/dkurilov/counselbot/internal/bot/llm"
	"github.com/dkurilov/counselbot/internal/bot/metrics"
	"github.com/dkurilov/counselbot/internal/bot/ops"
	"github.com/dkurilov/counselbot/internal/bot/repositories/repomanager"
	"github.com/dkurilov/counselbot/internal/bot/scheduler"
	"github.com/dkurilov/counselbot/internal/bot/services"
	"github.com/dkurilov/counselbot/internal/bot/telegram"
	"github.com/dkurilov/counselbot/internal/logging"
)

type App struct {
	cfg    *config.Config
	logger logging.Logger

	db        *sql.DB
	bot       *telegram.Bot
	scheduler *scheduler.Scheduler
	opsServer *http.Server
}

func NewApp(cfg *config.Config) (*App, error) {
	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(context.Background(), db); err != nil {
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)

	pseudonymSvc := services.NewPseudonymService(db, rm, cfg, logger)
	keySvc, err := services.NewKeyService(db, rm, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("key service error: %w", err)
	}
	cipherSvc := services.NewCipherService(keySvc, cfg.EncryptMessages)
	dialogueSvc := services.NewDialogueService(db, rm, cipherSvc, cfg, logger)
	dialogueSvc.SetDecryptionFailureHook(collector.DecryptionFailureInc)

	retentionSvc := services.NewRetentionService(db, rm, cfg, logger)
	retentionSvc.SetDeletedHook(collector.RetentionDeletedAdd)

	completer := llm.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.LLMModel)
	actionsRepo := rm.Actions(db)
	consultSvc := services.NewConsultService(pseudonymSvc, dialogueSvc, actionsRepo, completer, cfg, logger)
	consultSvc.SetMetrics(collector)

	exportSvc := services.NewExportService(db, rm, cipherSvc, cfg, logger)
	feedbackSvc := services.NewFeedbackService(db, rm)

	api, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		return nil, fmt.Errorf("telegram init error: %w", err)
	}
	bot := telegram.NewBot(api, consultSvc, retentionSvc, retentionSvc,
		pseudonymSvc, exportSvc, actionsRepo, feedbackSvc, cfg, logger)

	opsServer := &http.Server{
		Addr:    cfg.OpsAddr,
		Handler: ops.NewRouter(reg, db, retentionSvc, logger),
	}

	return &App{
		cfg:       cfg,
		logger:    logger,
		db:        db,
		bot:       bot,
		scheduler: scheduler.New(cfg.RetentionCheckInterval, retentionSvc, logger),
		opsServer: opsServer,
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

	app.logger.Info("starting bot")
	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.bot.Run(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.scheduler.Run(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := app.opsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.logger.Error("ops listener failed", "error", err)
			cancelFunc()
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := app.opsServer.Shutdown(shutdownCtx); err != nil {
		app.logger.Warn("ops shutdown error", "error", err)
	}

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Warn("db close error", "error", err)
	}
	app.logger.Info("bot stopped")
}

package botapp

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ivankudzin/roadreport/internal/config"
	"github.com/ivankudzin/roadreport/internal/domain/enums"
	s3infra "github.com/ivankudzin/roadreport/internal/infra/s3"
	tginfra "github.com/ivankudzin/roadreport/internal/infra/telegram"
	pgrepo "github.com/ivankudzin/roadreport/internal/repo/postgres"
	redrepo "github.com/ivankudzin/roadreport/internal/repo/redis"
	sqliterepo "github.com/ivankudzin/roadreport/internal/repo/sqlite"
	archivesvc "github.com/ivankudzin/roadreport/internal/services/archive"
	modsvc "github.com/ivankudzin/roadreport/internal/services/moderation"
	notifysvc "github.com/ivankudzin/roadreport/internal/services/notify"
	pendingsvc "github.com/ivankudzin/roadreport/internal/services/pending"
	pubsvc "github.com/ivankudzin/roadreport/internal/services/publisher"
	ratesvc "github.com/ivankudzin/roadreport/internal/services/rate"
	reportsvc "github.com/ivankudzin/roadreport/internal/services/reports"
)

const shutdownTimeout = 10 * time.Second

type reportStore interface {
	reportsvc.ReportRepo
	modsvc.ReportRepo
	CountByStatus(ctx context.Context, status enums.ReportStatus) (int, error)
}

type userStore interface {
	reportsvc.UserRepo
	modsvc.UserRepo
}

type App struct {
	cfg      config.Config
	logger   *zap.Logger
	sqlite   *sql.DB
	postgres *pgxpool.Pool
	redis    *goredis.Client
	server   *http.Server
	bot      *tginfra.Bot
	archiver *archivesvc.Archiver
	notifier *notifysvc.Notifier
	reports  reportStore

	handlers *Handlers
}

func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is nil")
	}

	app := &App{cfg: cfg, logger: logger}

	users, reports, err := app.openStorage(ctx)
	if err != nil {
		return nil, err
	}
	app.reports = reports

	bot, err := tginfra.NewBot(cfg.Bot.Token, cfg.Bot.PollTimeoutSeconds, logger)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("init telegram bot: %w", err)
	}
	app.bot = bot

	var (
		windows ratesvc.WindowStore
		locker  modsvc.Locker
		pending pendingsvc.Store
	)
	if redisClient := redrepo.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB); redisClient != nil {
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Warn("redis ping failed, continuing in degraded mode", zap.Error(err))
		}
		app.redis = redisClient
		windows = redrepo.NewRateRepo(redisClient)
		locker = modsvc.NewFallbackLocker(redrepo.NewLockRepo(redisClient, cfg.Moderation.LockTTL), logger)
		if cfg.Bot.PendingStore == config.PendingStoreRedis {
			pending = redrepo.NewPendingRepo(redisClient, pendingsvc.DefaultTTL)
		}
	} else if cfg.Limits.ReportsPerHour > 0 {
		logger.Warn("redis is not configured, report rate limit disabled")
	}

	var archiver pubsvc.Archiver
	if cfg.ArchiveEnabled() {
		s3Client, err := s3infra.NewClient(s3infra.Config{
			Endpoint:  cfg.S3.Endpoint,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			UseSSL:    cfg.S3.UseSSL,
		})
		if err != nil {
			logger.Warn("s3 init failed, media archive disabled", zap.Error(err))
		} else {
			app.archiver = archivesvc.New(bot, archivesvc.NewS3Storage(s3Client, cfg.S3.Bucket), logger)
			archiver = app.archiver
		}
	}

	app.notifier = notifysvc.New(bot, cfg.AdminDestination(), logger)
	publisher := pubsvc.New(bot, pubsvc.Config{
		Feed:       cfg.Channels.Feed,
		Moderation: cfg.Channels.Moderation,
	}, archiver, logger)
	if cfg.Moderation.TrustQuota > 0 && !publisher.ModerationConfigured() {
		logger.Warn("moderation destination is not configured, reports are published directly")
	}

	moderation := modsvc.NewService(reports, users, publisher, locker, app.notifier, logger, modsvc.Config{
		TrustQuota: cfg.Moderation.TrustQuota,
	})
	reportService := reportsvc.NewService(
		reports,
		users,
		ratesvc.NewLimiter(windows, cfg.Limits.ReportsPerHour),
		moderation,
		pending,
		logger,
	)

	handlers, err := NewHandlers(bot, reportService, moderation, HandlersConfig{
		AdminDestination:      cfg.AdminDestination(),
		ModerationDestination: cfg.Channels.Moderation,
	}, logger)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.handlers = handlers

	if cfg.HTTP.Addr != "" {
		r := chi.NewRouter()
		ApplyMiddlewares(r, logger)
		RegisterRoutes(r, Dependencies{
			WebhookEnabled: cfg.Bot.Mode == config.BotModeWebhook,
			WebhookSecret:  cfg.Bot.WebhookSecret,
			HandleUpdate:   app.handleUpdate,
			Logger:         logger,
		})
		app.server = &http.Server{
			Addr:         cfg.HTTP.Addr,
			Handler:      r,
			ReadTimeout:  cfg.HTTP.ReadTimeout,
			WriteTimeout: cfg.HTTP.WriteTimeout,
			IdleTimeout:  cfg.HTTP.IdleTimeout,
		}
	} else if cfg.Bot.Mode == config.BotModeWebhook {
		app.Close()
		return nil, fmt.Errorf("http.addr is required in webhook mode")
	}

	return app, nil
}

func (a *App) openStorage(ctx context.Context) (userStore, reportStore, error) {
	switch a.cfg.Storage.Driver {
	case config.StorageDriverPostgres:
		pool, err := pgrepo.NewPool(ctx, a.cfg.Storage.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("init postgres for bot app: %w", err)
		}
		if err := pgrepo.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("migrate postgres: %w", err)
		}
		a.postgres = pool
		return pgrepo.NewUserRepo(pool), pgrepo.NewReportRepo(pool), nil
	default:
		db, err := sqliterepo.Open(ctx, a.cfg.Storage.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("init sqlite for bot app: %w", err)
		}
		a.sqlite = db
		return sqliterepo.NewUserRepo(db), sqliterepo.NewReportRepo(db), nil
	}
}

func (a *App) Run(ctx context.Context) error {
	a.logger.Info("bot app started",
		zap.String("mode", a.cfg.Bot.Mode),
		zap.String("storage", a.cfg.Storage.Driver),
		zap.Bool("dry_run", a.bot.DryRun()),
	)
	a.logBacklog(ctx)

	go a.notifier.Run(ctx)

	errCh := make(chan error, 2)
	if a.server != nil {
		go func() {
			a.logger.Info("http server started", zap.String("addr", a.cfg.HTTP.Addr))
			err := a.server.ListenAndServe()
			if errors.Is(err, http.ErrServerClosed) {
				err = nil
			}
			errCh <- err
		}()
	}
	if a.cfg.Bot.Mode == config.BotModePolling {
		go func() {
			errCh <- a.bot.Listen(ctx, a.handlers.Telegram())
		}()
	}

	for {
		select {
		case <-ctx.Done():
			a.shutdownServer()
			a.notifier.Wait()
			a.archiver.Wait()
			a.logger.Info("bot app stopped")
			return nil
		case err := <-errCh:
			if err == nil || errors.Is(err, context.Canceled) {
				continue
			}
			a.shutdownServer()
			return err
		}
	}
}

func (a *App) Close() {
	if a.sqlite != nil {
		if err := a.sqlite.Close(); err != nil {
			a.logger.Warn("close sqlite", zap.Error(err))
		}
	}
	if a.postgres != nil {
		a.postgres.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("close redis", zap.Error(err))
		}
	}
}

func (a *App) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	a.bot.Handle(ctx, a.handlers.Telegram(), update)
}

func (a *App) shutdownServer() {
	if a.server == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.server.Shutdown(ctx); err != nil {
		a.logger.Warn("http server shutdown", zap.Error(err))
	}
}

func (a *App) logBacklog(ctx context.Context) {
	count, err := a.reports.CountByStatus(ctx, enums.ReportStatusAwaitingModeration)
	if err != nil {
		a.logger.Warn("count reports awaiting moderation", zap.Error(err))
		return
	}
	if count > 0 {
		a.logger.Info("reports awaiting moderation", zap.Int("count", count))
	}
}

// Package main - точка входа для фоновых процессов (Worker) Phoenix Recovery Hub.
//
// Worker отвечает за периодические задачи:
// - Утренний прекомпьют рекомендаций для активных пользователей
// - Детектирование пользователей без чек-инов (lapse detection)
// - Обновление кеша карты квестов
//
// Философия: "Каждый день - шаг к себе" - Worker готовит утреннюю
// рекомендацию заранее, чтобы главный экран никогда не был пустым,
// и замечает тех, кто начал пропадать.
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

	"github.com/phoenixpath/phoenix-recovery-hub/config"

	// Application layer
	"github.com/phoenixpath/phoenix-recovery-hub/internal/application/command"
	"github.com/phoenixpath/phoenix-recovery-hub/internal/application/eventhandler"
	"github.com/phoenixpath/phoenix-recovery-hub/internal/application/query"

	// Domain layer
	"github.com/phoenixpath/phoenix-recovery-hub/internal/domain/quest"
	"github.com/phoenixpath/phoenix-recovery-hub/internal/domain/recommendation"
	"github.com/phoenixpath/phoenix-recovery-hub/internal/domain/shared"

	// Infrastructure layer
	"github.com/phoenixpath/phoenix-recovery-hub/internal/infrastructure/external/gemini"
	"github.com/phoenixpath/phoenix-recovery-hub/internal/infrastructure/messaging"
	"github.com/phoenixpath/phoenix-recovery-hub/internal/infrastructure/persistence/postgres"
	"github.com/phoenixpath/phoenix-recovery-hub/internal/infrastructure/persistence/redis"
	"github.com/phoenixpath/phoenix-recovery-hub/internal/infrastructure/scheduler"
	"github.com/phoenixpath/phoenix-recovery-hub/internal/infrastructure/scheduler/jobs"

	// Packages
	"github.com/phoenixpath/phoenix-recovery-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN
// ══════════════════════════════════════════════════════════════════════════════

func main() {
	// Создаём корневой контекст с возможностью отмены
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Запускаем приложение
	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. ЗАГРУЗКА КОНФИГУРАЦИИ
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if !cfg.Scheduler.Enabled {
		return errors.New("scheduler is disabled (SCHEDULER_ENABLED=false), nothing for the worker to do")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. НАСТРОЙКА ЛОГИРОВАНИЯ
	// ─────────────────────────────────────────────────────────────────────────
	slogger := setupSlog(cfg)
	appLogger := logger.New(logger.Options{
		Level:     logger.ParseLevel(cfg.Observability.LogLevel),
		AddCaller: true,
	})

	slogger.Info("starting Phoenix Recovery Hub Worker",
		"env", string(cfg.App.Environment),
		"version", cfg.App.Version,
		"timezone", cfg.App.Timezone,
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. ПОДКЛЮЧЕНИЕ К БАЗЕ ДАННЫХ (PostgreSQL)
	// ─────────────────────────────────────────────────────────────────────────
	slogger.Info("connecting to database...")
	dbConn, err := postgres.NewConnectionFromURL(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		slogger.Info("closing database connection...")
		dbConn.Close()
	}()

	if err := dbConn.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	slogger.Info("database connection established")

	// Worker тоже должен видеть актуальную схему.
	slogger.Info("checking database migrations...")
	migrator := postgres.NewMigrator(dbConn)
	if err := migrator.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	slogger.Info("database schema is up to date")

	// ─────────────────────────────────────────────────────────────────────────
	// 4. ПОДКЛЮЧЕНИЕ К REDIS (опционально)
	// Без Redis worker продолжает работать: прекомпьют и lapse detection
	// не зависят от кеша, выпадает только обновление карты квестов.
	// ─────────────────────────────────────────────────────────────────────────
	var redisCache *redis.Cache
	var pathCache *redis.PathCache

	if !cfg.Redis.Disabled {
		slogger.Info("connecting to Redis...")
		redisCfg := redis.DefaultConfig()
		redisCfg.Host = cfg.Redis.Host
		redisCfg.Port = cfg.Redis.Port
		redisCfg.Password = cfg.Redis.Password
		redisCfg.DB = cfg.Redis.DB
		redisCfg.PoolSize = cfg.Redis.PoolSize
		redisCfg.MinIdleConns = cfg.Redis.MinIdleConns
		redisCfg.DialTimeout = cfg.Redis.DialTimeout
		redisCfg.ReadTimeout = cfg.Redis.ReadTimeout
		redisCfg.WriteTimeout = cfg.Redis.WriteTimeout

		redisCache, err = redis.NewCache(redisCfg)
		if err != nil {
			slogger.Warn("failed to connect to Redis, path cache refresh disabled", "error", err)
			redisCache = nil
		} else {
			defer redisCache.Close()
			pathCache = redis.NewPathCache(redisCache)
			slogger.Info("Redis connection established")
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. ИНИЦИАЛИЗАЦИЯ РЕПОЗИТОРИЕВ
	// ─────────────────────────────────────────────────────────────────────────
	slogger.Info("initializing repositories...")
	profileRepo := postgres.NewProfileRepository(dbConn)
	progressRepo := postgres.NewProgressRepository(dbConn)
	questRepo := postgres.NewQuestRepository(dbConn)
	checkinRepo := postgres.NewCheckInRepository(dbConn)
	recRepo := postgres.NewRecommendationRepository(dbConn)

	// ─────────────────────────────────────────────────────────────────────────
	// 6. ИНИЦИАЛИЗАЦИЯ EVENT BUS
	// Через Redis Pub/Sub события lapse detection доходят до API сервера.
	// ─────────────────────────────────────────────────────────────────────────
	slogger.Info("initializing event bus...")
	localBusConfig := messaging.DefaultInMemoryEventBusConfig()
	localBusConfig.Logger = slogger

	var eventBus shared.EventBus
	if redisCache != nil {
		redisBus, err := messaging.NewRedisEventBus(messaging.RedisEventBusConfig{
			Client:         messaging.NewGoRedisPubSub(redisCache.Client()),
			LocalBusConfig: localBusConfig,
			Logger:         slogger,
		})
		if err != nil {
			return fmt.Errorf("failed to create event bus: %w", err)
		}
		defer func() { _ = redisBus.Close() }()
		eventBus = redisBus
	} else {
		localBus := messaging.NewInMemoryEventBus(localBusConfig)
		defer func() { _ = localBus.Close() }()
		eventBus = localBus
	}

	dispatcherConfig := messaging.DefaultDispatcherConfig(eventBus)
	dispatcherConfig.Logger = slogger
	dispatcher := messaging.NewDispatcher(dispatcherConfig)

	if err := dispatcher.Register(shared.EventProfileLapsed, "log_lapsed_profile",
		eventhandler.NewOnProfileLapsedHandler(appLogger).Handle); err != nil {
		return fmt.Errorf("failed to register profile lapsed handler: %w", err)
	}
	if err := dispatcher.Start(); err != nil {
		return fmt.Errorf("failed to start event dispatcher: %w", err)
	}
	defer func() { _ = dispatcher.Stop() }()

	// ─────────────────────────────────────────────────────────────────────────
	// 7. ИНИЦИАЛИЗАЦИЯ GEMINI КЛИЕНТА
	// ─────────────────────────────────────────────────────────────────────────
	var generator recommendation.Generator
	if cfg.Gemini.Disabled || cfg.Gemini.APIKey == "" || !cfg.Features.GeminiEnabled(nil) {
		slogger.Warn("gemini disabled, precompute will store nothing (fallback is never persisted)")
	} else {
		slogger.Info("initializing Gemini client...", "model", cfg.Gemini.Model)
		geminiCfg := gemini.DefaultConfig(cfg.Gemini.APIKey)
		geminiCfg.Model = cfg.Gemini.Model
		geminiCfg.Timeout = cfg.Gemini.RequestTimeout
		geminiCfg.Temperature = float32(cfg.Gemini.Temperature)
		geminiCfg.MaxAttempts = cfg.Gemini.MaxRetries
		geminiCfg.RateLimiterConfig.RequestsPerSecond = cfg.Gemini.RateLimit
		geminiCfg.RateLimiterConfig.BurstSize = cfg.Gemini.RateLimitBurst
		geminiCfg.FailureThreshold = cfg.Gemini.CircuitBreakerThreshold
		geminiCfg.BreakerTimeout = cfg.Gemini.CircuitBreakerTimeout
		geminiCfg.Logger = appLogger

		geminiClient, err := gemini.NewClient(ctx, geminiCfg)
		if err != nil {
			return fmt.Errorf("failed to create Gemini client: %w", err)
		}
		generator = geminiClient
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 8. ИНИЦИАЛИЗАЦИЯ HANDLERS ДЛЯ ДЖОБОВ
	// ─────────────────────────────────────────────────────────────────────────
	evaluator := quest.NewEvaluator(quest.DefaultCatalog())

	generateRecCmd := command.NewGenerateRecommendationHandler(
		profileRepo, progressRepo, checkinRepo, recRepo,
		generator, eventBus,
		command.DefaultGenerateRecommendationConfig(),
	)
	var questCache quest.Cache
	if pathCache != nil {
		questCache = pathCache
	}
	questPathQuery := query.NewGetQuestPathHandler(evaluator, questRepo, profileRepo, questCache, 0)

	// ─────────────────────────────────────────────────────────────────────────
	// 9. РЕГИСТРАЦИЯ ДЖОБОВ
	// Прекомпьют привязан ко времени суток (cron), остальные - интервальные.
	// ─────────────────────────────────────────────────────────────────────────
	slogger.Info("registering jobs...")

	cron := scheduler.NewCronScheduler(
		scheduler.WithLocation(cfg.App.Location),
		scheduler.WithCronLogger(slogger),
	)

	if cfg.Features.IsEnabled(config.FeatureRecommendationsPrecompute, nil) {
		precomputeCfg := jobs.DefaultPrecomputeRecommendationsConfig()
		precomputeCfg.Concurrency = cfg.Scheduler.MaxConcurrentJobs
		precomputeCfg.Timeout = cfg.Scheduler.JobTimeout

		precomputeJob := jobs.NewPrecomputeRecommendationsJob(profileRepo, generateRecCmd, slogger, precomputeCfg)

		expr := fmt.Sprintf("%d %d * * *", cfg.Scheduler.PrecomputeMinute, cfg.Scheduler.PrecomputeHour)
		if err := cron.AddJob(precomputeJob.Name(), expr, precomputeJob); err != nil {
			return fmt.Errorf("failed to register precompute job: %w", err)
		}
		slogger.Info("registered job", "name", precomputeJob.Name(), "cron", expr)
	} else {
		slogger.Info("precompute job disabled by feature flag")
	}

	intervalSched := scheduler.NewScheduler(scheduler.SchedulerConfig{
		Logger:   slogger,
		Timezone: cfg.App.Location,
	})

	if cfg.Features.LapseDetectionEnabled(nil) {
		lapsedCfg := jobs.DefaultDetectLapsedConfig()
		lapsedCfg.LapseThreshold = cfg.Scheduler.LapseThreshold

		lapsedJob := jobs.NewDetectLapsedJob(profileRepo, eventBus, slogger, lapsedCfg)
		if err := intervalSched.Register(lapsedJob, scheduler.NewIntervalSchedule(cfg.Scheduler.DetectLapsedInterval)); err != nil {
			return fmt.Errorf("failed to register detect lapsed job: %w", err)
		}
		slogger.Info("registered job", "name", lapsedJob.Name(), "interval", cfg.Scheduler.DetectLapsedInterval.String())
	} else {
		slogger.Info("lapse detection disabled by feature flag")
	}

	if pathCache != nil {
		refreshJob := jobs.NewRefreshPathCacheJob(profileRepo, questPathQuery, slogger, jobs.DefaultRefreshPathCacheConfig())
		if err := intervalSched.Register(refreshJob, scheduler.NewIntervalSchedule(cfg.Scheduler.RefreshPathCacheInterval)); err != nil {
			return fmt.Errorf("failed to register path cache refresh job: %w", err)
		}
		slogger.Info("registered job", "name", refreshJob.Name(), "interval", cfg.Scheduler.RefreshPathCacheInterval.String())
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 10. ЗАПУСК SCHEDULER'ОВ
	// ─────────────────────────────────────────────────────────────────────────
	if err := cron.Start(ctx); err != nil {
		return fmt.Errorf("failed to start cron scheduler: %w", err)
	}
	if err := intervalSched.Start(ctx); err != nil {
		cron.Stop()
		return fmt.Errorf("failed to start interval scheduler: %w", err)
	}

	slogger.Info("Phoenix Recovery Hub Worker is running",
		"precompute_at", fmt.Sprintf("%02d:%02d %s", cfg.Scheduler.PrecomputeHour, cfg.Scheduler.PrecomputeMinute, cfg.App.Timezone),
		"gemini_enabled", generator != nil,
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 11. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	sig := <-sigCh
	slogger.Info("received shutdown signal", "signal", sig.String())

	slogger.Info("starting graceful shutdown...", "timeout", cfg.App.ShutdownTimeout.String())

	done := make(chan struct{})
	go func() {
		cron.Stop()
		if err := intervalSched.Stop(); err != nil {
			slogger.Warn("interval scheduler stop", "error", err)
		}
		close(done)
	}()

	select {
	case <-done:
		slogger.Info("shutdown completed successfully")
	case <-time.After(cfg.App.ShutdownTimeout):
		slogger.Warn("shutdown timed out, jobs may have been interrupted")
	}

	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// setupSlog настраивает slog для инфраструктурных компонентов
// (event bus, scheduler), которые логируют через стандартный интерфейс.
func setupSlog(cfg *config.Config) *slog.Logger {
	var level slog.Level
	switch cfg.Observability.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Observability.LogFormat == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		// JSON для production (лучше для агрегаторов логов)
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	log := slog.New(handler)
	slog.SetDefault(log)

	return log
}

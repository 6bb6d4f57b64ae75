// Package main - точка входа для API сервера Phoenix Recovery Hub.
//
// Философия: "Каждый день - шаг к себе" - сервер ведёт человека после
// черепно-мозговой травмы по Пути Феникса: квесты восстановления,
// ежедневные чек-ины и персональные рекомендации, которые никогда
// не оставляют главный экран пустым.
//
// Архитектура следует принципам Clean Architecture и DDD:
// - Domain: чистая бизнес-логика без внешних зависимостей
// - Application: оркестрация use cases (Commands/Queries/Sagas)
// - Infrastructure: реализация репозиториев, Gemini API, Redis
// - Interface: REST API endpoints
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/phoenixpath/phoenix-recovery-hub/config"

	// Application layer
	"github.com/phoenixpath/phoenix-recovery-hub/internal/application/command"
	"github.com/phoenixpath/phoenix-recovery-hub/internal/application/eventhandler"
	"github.com/phoenixpath/phoenix-recovery-hub/internal/application/query"
	"github.com/phoenixpath/phoenix-recovery-hub/internal/application/saga"

	// Domain layer
	"github.com/phoenixpath/phoenix-recovery-hub/internal/domain/quest"
	"github.com/phoenixpath/phoenix-recovery-hub/internal/domain/recommendation"
	"github.com/phoenixpath/phoenix-recovery-hub/internal/domain/shared"

	// Infrastructure layer
	"github.com/phoenixpath/phoenix-recovery-hub/internal/infrastructure/external/gemini"
	"github.com/phoenixpath/phoenix-recovery-hub/internal/infrastructure/messaging"
	"github.com/phoenixpath/phoenix-recovery-hub/internal/infrastructure/persistence/postgres"
	"github.com/phoenixpath/phoenix-recovery-hub/internal/infrastructure/persistence/redis"
	"github.com/phoenixpath/phoenix-recovery-hub/internal/infrastructure/service"

	// Interface layer
	httpserver "github.com/phoenixpath/phoenix-recovery-hub/internal/interface/http"
	"github.com/phoenixpath/phoenix-recovery-hub/internal/interface/http/handlers"

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

	// ─────────────────────────────────────────────────────────────────────────
	// 2. НАСТРОЙКА ЛОГИРОВАНИЯ
	// ─────────────────────────────────────────────────────────────────────────
	slogger := setupSlog(cfg)
	appLogger := logger.New(logger.Options{
		Level:     logger.ParseLevel(cfg.Observability.LogLevel),
		AddCaller: true,
	})

	slogger.Info("starting Phoenix Recovery Hub API",
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

	// ─────────────────────────────────────────────────────────────────────────
	// 4. ЗАПУСК МИГРАЦИЙ
	// ─────────────────────────────────────────────────────────────────────────
	slogger.Info("running database migrations...")
	migrator := postgres.NewMigrator(dbConn)
	if err := migrator.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	status, err := migrator.Status(ctx)
	if err != nil {
		slogger.Warn("failed to get migration status", "error", err)
	} else {
		appliedCount := 0
		for _, m := range status {
			if m.IsApplied {
				appliedCount++
			}
		}
		slogger.Info("migrations completed", "applied", appliedCount, "total", len(status))
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. ПОДКЛЮЧЕНИЕ К REDIS
	// Сессии живут в Redis, поэтому для API сервера он обязателен.
	// ─────────────────────────────────────────────────────────────────────────
	if cfg.Redis.Disabled {
		return errors.New("redis is required for the API server: sessions and caches live there (unset REDIS_DISABLED)")
	}

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

	redisCache, err := redis.NewCache(redisCfg)
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	defer redisCache.Close()

	sessionStore := redis.NewSessionStore(redisCache)
	pathCache := redis.NewPathCache(redisCache)
	profileCache := redis.NewProfileCache(redisCache)
	slogger.Info("Redis connection established")

	// ─────────────────────────────────────────────────────────────────────────
	// 6. ИНИЦИАЛИЗАЦИЯ РЕПОЗИТОРИЕВ
	// ─────────────────────────────────────────────────────────────────────────
	slogger.Info("initializing repositories...")
	profileRepo := postgres.NewProfileRepository(dbConn)
	progressRepo := postgres.NewProgressRepository(dbConn)
	questRepo := postgres.NewQuestRepository(dbConn)
	checkinRepo := postgres.NewCheckInRepository(dbConn)
	recRepo := postgres.NewRecommendationRepository(dbConn)
	uowFactory := postgres.NewUnitOfWorkFactory(dbConn)

	// ─────────────────────────────────────────────────────────────────────────
	// 7. ИНИЦИАЛИЗАЦИЯ EVENT BUS
	// С Redis события уходят и в другие инстансы (worker регенерирует
	// рекомендации, инвалидирует кеши).
	// ─────────────────────────────────────────────────────────────────────────
	slogger.Info("initializing event bus...")
	localBusConfig := messaging.DefaultInMemoryEventBusConfig()
	localBusConfig.Logger = slogger

	eventBus, err := messaging.NewRedisEventBus(messaging.RedisEventBusConfig{
		Client:         messaging.NewGoRedisPubSub(redisCache.Client()),
		LocalBusConfig: localBusConfig,
		Logger:         slogger,
	})
	if err != nil {
		return fmt.Errorf("failed to create event bus: %w", err)
	}
	defer func() {
		slogger.Info("closing event bus...")
		_ = eventBus.Close()
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 8. ИНИЦИАЛИЗАЦИЯ GEMINI КЛИЕНТА
	// Без ключа (или с выключенным флагом) генератор остаётся nil:
	// каждая рекомендация - статический fallback для фазы пользователя.
	// ─────────────────────────────────────────────────────────────────────────
	var generator recommendation.Generator
	if cfg.Gemini.Disabled || cfg.Gemini.APIKey == "" || !cfg.Features.GeminiEnabled(nil) {
		slogger.Warn("gemini disabled, serving static fallback recommendations only")
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
	// 9. ИНИЦИАЛИЗАЦИЯ APPLICATION LAYER (Commands, Queries, Saga)
	// ─────────────────────────────────────────────────────────────────────────
	slogger.Info("initializing application layer...")

	evaluator := quest.NewEvaluator(quest.DefaultCatalog())

	authService := service.NewAuthService(profileRepo, sessionStore, service.AuthConfig{
		SessionTTL: cfg.Auth.SessionTTL,
		Logger:     appLogger,
	})

	beginQuestCmd := command.NewBeginQuestHandler(evaluator, profileRepo, questRepo, pathCache, eventBus)
	completeQuestCmd := command.NewCompleteQuestHandler(evaluator, uowFactory, pathCache, eventBus)
	recordCheckInCmd := command.NewRecordCheckInHandler(checkinRepo, profileRepo, eventBus)
	updateProfileCmd := command.NewUpdateProfileHandler(profileRepo, profileCache)
	generateRecCmd := command.NewGenerateRecommendationHandler(
		profileRepo, progressRepo, checkinRepo, recRepo,
		generator, eventBus,
		command.DefaultGenerateRecommendationConfig(),
	)

	questPathQuery := query.NewGetQuestPathHandler(evaluator, questRepo, profileRepo, pathCache, 0)
	checkInHistoryQuery := query.NewGetCheckInHistoryHandler(checkinRepo)
	progressSummaryQuery := query.NewGetProgressSummaryHandler(evaluator, profileRepo, progressRepo, questRepo, checkinRepo)
	recHistoryQuery := query.NewGetRecommendationHistoryHandler(recRepo)

	// Приветственная рекомендация при регистрации - отключаемая фича.
	welcomeGenerator := generator
	if !cfg.Features.IsEnabled(config.FeatureRecommendationsWelcome, nil) {
		welcomeGenerator = nil
	}

	onboardingSaga := saga.NewOnboardingSaga(
		profileRepo, progressRepo, checkinRepo, sessionStore,
		welcomeGenerator, recRepo, eventBus,
		authService, authService,
		saga.OnboardingSagaConfig{
			SessionTTL: cfg.Auth.SessionTTL,
			BcryptCost: cfg.Auth.BcryptCost,
		},
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 10. РЕГИСТРАЦИЯ EVENT HANDLERS
	// ─────────────────────────────────────────────────────────────────────────
	slogger.Info("registering event handlers...")

	dispatcherConfig := messaging.DefaultDispatcherConfig(eventBus)
	dispatcherConfig.Logger = slogger
	dispatcher := messaging.NewDispatcher(dispatcherConfig)

	refresher := service.NewRecommendationRefresher(generateRecCmd)

	if err := dispatcher.Register(shared.EventQuestCompleted, "invalidate_path_cache",
		eventhandler.NewOnQuestCompletedHandler(pathCache, appLogger).Handle); err != nil {
		return fmt.Errorf("failed to register quest completed handler: %w", err)
	}
	if err := dispatcher.Register(shared.EventPhaseAdvanced, "refresh_recommendation",
		eventhandler.NewOnPhaseAdvancedHandler(refresher, appLogger).Handle); err != nil {
		return fmt.Errorf("failed to register phase advanced handler: %w", err)
	}
	if err := dispatcher.Register(shared.EventProfileLapsed, "log_lapsed_profile",
		eventhandler.NewOnProfileLapsedHandler(appLogger).Handle); err != nil {
		return fmt.Errorf("failed to register profile lapsed handler: %w", err)
	}

	if err := dispatcher.Start(); err != nil {
		return fmt.Errorf("failed to start event dispatcher: %w", err)
	}
	defer func() { _ = dispatcher.Stop() }()

	// ─────────────────────────────────────────────────────────────────────────
	// 11. СОЗДАНИЕ HTTP SERVER
	// ─────────────────────────────────────────────────────────────────────────
	slogger.Info("initializing HTTP server...")

	healthChecker := handlers.NewCompositeHealthChecker(cfg.App.Version)
	healthChecker.AddCheck("database", handlers.NewDatabaseCheck(dbConn))
	healthChecker.AddCheck("redis", handlers.NewCacheCheck(redisCache))

	httpConfig := httpserver.DefaultConfig()
	httpConfig.Host = cfg.HTTP.Host
	httpConfig.Port = cfg.HTTP.Port
	httpConfig.ReadTimeout = cfg.HTTP.ReadTimeout
	httpConfig.WriteTimeout = cfg.HTTP.WriteTimeout
	httpConfig.IdleTimeout = cfg.HTTP.IdleTimeout
	httpConfig.EnableCORS = cfg.HTTP.EnableCORS
	httpConfig.AllowedOrigins = cfg.HTTP.AllowedOrigins
	httpConfig.RateLimitPerMinute = cfg.HTTP.RateLimitPerMinute

	httpServer := httpserver.NewServer(httpConfig, httpserver.Dependencies{
		Onboarding: onboardingSaga,
		Auth:       authService,

		BeginQuestHandler:             beginQuestCmd,
		CompleteQuestHandler:          completeQuestCmd,
		RecordCheckInHandler:          recordCheckInCmd,
		UpdateProfileHandler:          updateProfileCmd,
		GenerateRecommendationHandler: generateRecCmd,

		GetQuestPathHandler:             questPathQuery,
		GetCheckInHistoryHandler:        checkInHistoryQuery,
		GetProgressSummaryHandler:       progressSummaryQuery,
		GetRecommendationHistoryHandler: recHistoryQuery,

		ProfileRepo:   profileRepo,
		Counters:      redisCache,
		Logger:        appLogger,
		HealthChecker: healthChecker,
	})

	// ─────────────────────────────────────────────────────────────────────────
	// 12. ЗАПУСК СЕРВИСА
	// ─────────────────────────────────────────────────────────────────────────
	errCh := make(chan error, 1)

	go func() {
		slogger.Info("starting HTTP server", "address", httpServer.Address())
		if err := httpServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 13. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	slogger.Info("Phoenix Recovery Hub API is running",
		"http_address", httpServer.Address(),
		"gemini_enabled", generator != nil,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	select {
	case sig := <-sigCh:
		slogger.Info("received shutdown signal", "signal", sig.String())
	case err := <-errCh:
		slogger.Error("service error", "error", err)
		return err
	}

	slogger.Info("starting graceful shutdown...", "timeout", cfg.App.ShutdownTimeout.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slogger.Error("failed to stop HTTP server gracefully", "error", err)
		return err
	}

	// Dispatcher, event bus, Redis и база закрываются через defer.

	slogger.Info("shutdown completed successfully")
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

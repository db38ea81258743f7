package internal

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	gumtree_adapter "flat-crawler-service/internal/adapters/gumtreefetcher"
	"flat-crawler-service/internal/adapters/imaging"
	logger_adapter "flat-crawler-service/internal/adapters/logger"
	postgres_adapter "flat-crawler-service/internal/adapters/postgres"
	rabbitmq_adapter "flat-crawler-service/internal/adapters/rabbitmq"
	"flat-crawler-service/internal/adapters/rest"
	"flat-crawler-service/internal/configs"
	"flat-crawler-service/internal/constants"
	"flat-crawler-service/internal/core/domain"
	"flat-crawler-service/internal/core/matching"
	"flat-crawler-service/internal/core/port"
	"flat-crawler-service/internal/core/usecase"

	"github.com/fluent/fluent-logger-golang/fluent"
	"github.com/jackc/pgx/v5/pgxpool"
)

type App struct {
	config    *configs.AppConfig
	apiServer *rest.Server

	pgPool        *pgxpool.Pool
	connManager   *rabbitmq_adapter.ConnectionManager
	eventProducer *rabbitmq_adapter.Publisher
	taskListener  port.EventListenerPort

	logger       port.LoggerPort
	fluentClient *fluent.Fluent
}

func NewApp() (*App, error) {
	appConfig, err := configs.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("error loading application configuration: %w", err)
	}

	// --- 1. Логгеры ---
	var activeLoggers []port.LoggerPort

	slogCfg := logger_adapter.SlogConfig{
		Level:    parseLogLevel(appConfig.StdoutLogger.Level),
		IsJSON:   false,
		UseColor: true,
	}
	stdoutLogger := logger_adapter.NewSlogAdapter(slogCfg)
	activeLoggers = append(activeLoggers, stdoutLogger)

	var fluentClient *fluent.Fluent
	if appConfig.FluentBit.Enabled {
		fluentClient, err = logger_adapter.NewFluentClient(logger_adapter.FluentConfig{
			Host:      appConfig.FluentBit.Host,
			Port:      appConfig.FluentBit.Port,
			TagPrefix: appConfig.AppName,
		})
		if err != nil {
			stdoutLogger.Error("Failed to create fluentbit client", err, nil)
			return nil, fmt.Errorf("failed to create fluentbit client: %w", err)
		}

		fluentAdapter, err := logger_adapter.NewFluentLoggerAdapter(fluentClient, parseLogLevel(appConfig.FluentBit.Level))
		if err != nil {
			stdoutLogger.Error("Failed to create fluentbit adapter", err, nil)
			fluentClient.Close()
			return nil, err
		}
		activeLoggers = append(activeLoggers, fluentAdapter)
	}

	multiLogger, err := logger_adapter.NewMultiloggerAdapter(activeLoggers...)
	if err != nil {
		return nil, fmt.Errorf("failed to create multi-logger: %w", err)
	}

	baseLogger := multiLogger.WithFields(port.Fields{
		"service_name": appConfig.AppName,
	})

	appLogger := baseLogger.WithFields(port.Fields{"component": "app"})
	appLogger.Info("Logger system initialized", port.Fields{
		"active_loggers": len(activeLoggers), "fluent_enabled": appConfig.FluentBit.Enabled,
	})

	// --- 2. PostgreSQL ---
	pgPool, err := postgres_adapter.NewClient(context.Background(), postgres_adapter.Config{
		DatabaseURL: appConfig.Postgres.URL,
	})
	if err != nil {
		appLogger.Error("Failed to connect to PostgreSQL", err, nil)
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	appLogger.Info("PostgreSQL connection pool initialized.", nil)

	postStorage, err := postgres_adapter.NewPostgresPostStorageAdapter(pgPool)
	if err != nil {
		return nil, fmt.Errorf("failed to create post storage adapter: %w", err)
	}
	flatStorage, err := postgres_adapter.NewPostgresFlatStorageAdapter(pgPool)
	if err != nil {
		return nil, fmt.Errorf("failed to create flat storage adapter: %w", err)
	}
	imageMatchStorage, err := postgres_adapter.NewPostgresImageMatchStorageAdapter(pgPool)
	if err != nil {
		return nil, fmt.Errorf("failed to create image match storage adapter: %w", err)
	}
	crawlLog, err := postgres_adapter.NewPostgresCrawlLogAdapter(pgPool)
	if err != nil {
		return nil, fmt.Errorf("failed to create crawl log adapter: %w", err)
	}
	locationLookup, err := postgres_adapter.NewPostgresLocationLookupAdapter(pgPool)
	if err != nil {
		return nil, fmt.Errorf("failed to create location lookup adapter: %w", err)
	}

	// --- 3. RabbitMQ ---
	connManagerLogger := baseLogger.WithFields(port.Fields{"component": "rabbitmq_conn_manager"})
	connManager, err := rabbitmq_adapter.NewConnectionManager(appConfig.RabbitMQ.URL,
		rabbitmq_adapter.NewPortLoggerBridge(connManagerLogger))
	if err != nil {
		appLogger.Error("Failed to create connection manager", err, nil)
		return nil, fmt.Errorf("failed to create connection manager: %w", err)
	}
	appLogger.Info("RabbitMQ Connection Manager initialized.", nil)

	producerLogger := baseLogger.WithFields(port.Fields{"component": "rabbitmq_producer"})
	eventProducer, err := rabbitmq_adapter.NewPublisher(rabbitmq_adapter.PublisherConfig{
		ExchangeName:             constants.TasksExchange,
		ExchangeType:             constants.TasksExchangeType,
		DurableExchange:          true,
		DeclareExchangeIfMissing: true,
		Logger:                   rabbitmq_adapter.NewPortLoggerBridge(producerLogger),
	}, connManager)
	if err != nil {
		return nil, fmt.Errorf("failed to create event producer: %w", err)
	}
	appLogger.Info("RabbitMQ Event Producer initialized.", nil)

	taskReporter, err := rabbitmq_adapter.NewTaskReporterAdapter(eventProducer, constants.TaskReportsRoutingKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create task reporter: %w", err)
	}

	// --- 4. Скрейперы и изображения ---
	gumtreeFetcher, err := gumtree_adapter.NewGumtreeFetcherAdapter(appConfig.Crawler.GumtreeBaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create gumtree fetcher: %w", err)
	}
	fetchers := map[domain.Source]port.PostFetcherPort{
		gumtreeFetcher.Source(): gumtreeFetcher,
	}

	imageLoader := imaging.NewPostImageLoader()

	// --- 5. Use cases ---
	policy := matching.Policy{
		ExactThreshold:     appConfig.Matching.ExactPairs,
		ConfidentThreshold: appConfig.Matching.ConfidentPairs,
		MaybeThreshold:     appConfig.Matching.MaybePairs,
		RelaxDelta:         appConfig.Matching.RelaxDelta,
		FuzzyPriceMargin:   appConfig.Matching.FuzzyPriceMargin,
	}

	matchUseCase := usecase.NewMatchPostsUseCase(postStorage, flatStorage, imageMatchStorage, imageLoader, taskReporter, policy).
		WithCandidateWindow(appConfig.Matching.PriceBand, appConfig.Matching.SizeTolerance)
	rematchUseCase := usecase.NewRematchPostsUseCase(postStorage, flatStorage, imageMatchStorage, imageLoader, taskReporter, policy).
		WithCandidateWindow(appConfig.Matching.PriceBand, appConfig.Matching.SizeTolerance)
	resetUseCase := usecase.NewResetMatchingUseCase(postStorage, flatStorage, imageMatchStorage)
	crawlUseCase := usecase.NewCrawlSourceUseCase(fetchers, postStorage, crawlLog, taskReporter)

	crawlQueries, err := configs.LoadCrawlQueries(appConfig.Crawler.QueriesPath)
	if err != nil {
		// Без файла запросов работает только явный POST /crawl
		appLogger.Warn("Could not load crawl queries file, /crawl/all will be unavailable", port.Fields{
			"path":  appConfig.Crawler.QueriesPath,
			"error": err.Error(),
		})
	}
	crawlAllUseCase := usecase.NewCrawlAllUseCase(crawlQueries, crawlUseCase)
	findFlatsUseCase := usecase.NewFindFlatsUseCase(flatStorage)
	rateFlatUseCase := usecase.NewRateFlatUseCase(flatStorage)
	findLocationsUseCase := usecase.NewFindLocationsUseCase(locationLookup)
	appLogger.Info("All use cases initialized", nil)

	// --- 6. Входящие интерфейсы ---
	consumerLogger := baseLogger.WithFields(port.Fields{"component": "tasks_consumer"})
	taskListener, err := rabbitmq_adapter.NewTasksConsumerAdapter(rabbitmq_adapter.ConsumerConfig{
		QueueName:              constants.CrawlTasksQueue,
		DeclareQueue:           true,
		DurableQueue:           true,
		ExchangeNameForBind:    constants.TasksExchange,
		DeclareExchangeForBind: true,
		ExchangeTypeForBind:    constants.TasksExchangeType,
		DurableExchangeForBind: true,
		RoutingKeyForBind:      constants.CrawlTasksRoutingKey,
		PrefetchCount:          1,
		ConsumerTag:            constants.CrawlTasksConsumerTag,
	}, crawlUseCase, matchUseCase, rematchUseCase, consumerLogger, connManager)
	if err != nil {
		return nil, fmt.Errorf("failed to create tasks consumer: %w", err)
	}

	apiHandlers := rest.NewCrawlerHandler(findFlatsUseCase, rateFlatUseCase,
		matchUseCase, rematchUseCase, resetUseCase, crawlUseCase, crawlAllUseCase, findLocationsUseCase)
	apiServer := rest.NewServer(appConfig.Rest.PORT, apiHandlers, baseLogger)

	return &App{
		config:        appConfig,
		apiServer:     apiServer,
		pgPool:        pgPool,
		connManager:   connManager,
		eventProducer: eventProducer,
		taskListener:  taskListener,
		logger:        appLogger,
		fluentClient:  fluentClient,
	}, nil
}

// Run запускает все компоненты приложения и управляет их жизненным циклом.
func (a *App) Run() error {
	appCtx, cancelApp := context.WithCancel(context.Background())

	defer func() {
		a.logger.Info("Shutdown sequence initiated...", nil)

		if a.taskListener != nil {
			if err := a.taskListener.Close(); err != nil {
				a.logger.Error("Error closing tasks consumer", err, nil)
			}
		}

		if a.apiServer != nil {
			if err := a.apiServer.Stop(context.Background()); err != nil {
				a.logger.Error("Error during API server shutdown", err, nil)
			}
		}

		if a.eventProducer != nil {
			if err := a.eventProducer.Close(); err != nil {
				a.logger.Error("Error closing event producer", err, nil)
			}
		}

		if a.connManager != nil {
			if err := a.connManager.Close(); err != nil {
				a.logger.Error("Error closing RabbitMQ connection", err, nil)
			}
		}

		if a.pgPool != nil {
			a.pgPool.Close()
		}

		a.logger.Info("Application shut down gracefully.", nil)

		if a.fluentClient != nil {
			if err := a.fluentClient.Close(); err != nil {
				// fluent может быть уже недоступен, пишем в stdout
				fmt.Printf("ERROR: Error closing fluent client: %v\n", err)
			}
		}
	}()

	a.logger.Info("Application is starting...", nil)

	serverErrors := make(chan error, 1)
	go func() {
		a.logger.Info("Starting HTTP server...", port.Fields{"port": a.config.Rest.PORT})
		if err := a.apiServer.Start(); err != nil && err != http.ErrServerClosed {
			serverErrors <- fmt.Errorf("failed to start HTTP server: %w", err)
		}
	}()

	go func() {
		a.logger.Info("Starting tasks consumer...", nil)
		if err := a.taskListener.Start(appCtx); err != nil {
			serverErrors <- fmt.Errorf("tasks consumer stopped: %w", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	a.logger.Info("Application running. Waiting for signals or server error...", nil)
	select {
	case receivedSignal := <-quit:
		a.logger.Info("Received shutdown signal", port.Fields{"signal": receivedSignal.String()})
	case err := <-serverErrors:
		a.logger.Error("Component failed, shutting down", err, nil)
		cancelApp()
		return err
	}

	cancelApp()
	return nil
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

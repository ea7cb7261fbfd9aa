package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/mikiasgoitom/articulate-engage/internal/domain/contract"
	handlerHttp "github.com/mikiasgoitom/articulate-engage/internal/handler/http"
	"github.com/mikiasgoitom/articulate-engage/internal/handler/presenter"
	"github.com/mikiasgoitom/articulate-engage/internal/infrastructure/config"
	"github.com/mikiasgoitom/articulate-engage/internal/infrastructure/credential"
	"github.com/mikiasgoitom/articulate-engage/internal/infrastructure/database"
	"github.com/mikiasgoitom/articulate-engage/internal/infrastructure/engagementclient"
	"github.com/mikiasgoitom/articulate-engage/internal/infrastructure/logger"
	"github.com/mikiasgoitom/articulate-engage/internal/infrastructure/metrics"
	"github.com/mikiasgoitom/articulate-engage/internal/infrastructure/repository/mongodb"
	"github.com/mikiasgoitom/articulate-engage/internal/infrastructure/scheduler"
	"github.com/mikiasgoitom/articulate-engage/internal/infrastructure/store"
	"github.com/mikiasgoitom/articulate-engage/internal/infrastructure/uuidgen"
	"github.com/mikiasgoitom/articulate-engage/internal/infrastructure/validator"
	"github.com/mikiasgoitom/articulate-engage/internal/usecase"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	appConfig := config.NewConfig()

	zapLogger, err := logger.New(logger.Config{Level: appConfig.GetLogLevel(), Encoding: appConfig.GetLogEncoding()})
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = zapLogger.Sync() }()
	appLogger := zapLogger.With("service", "articulate-engage")

	// Register custom validators
	validator.RegisterCustomValidators()
	appValidator := validator.NewValidator()

	appMetrics := metrics.New(prometheus.DefaultRegisterer)
	sched := scheduler.New()

	session := credential.NewSessionTokenProvider(appConfig.GetAccessToken())

	// Dependency Injection: Cache store with an optional Redis mirror
	storeOpts := []store.Option{
		store.WithLogger(appLogger),
		store.WithInvalidationDelay(appConfig.GetInvalidationDelay()),
		store.WithPropagationObserver(appMetrics.ObservePropagation),
	}
	if redisURL := appConfig.GetRedisURL(); redisURL != "" {
		rdb, err := database.NewRedisFromURL(context.Background(), redisURL)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer rdb.Close()
		viewer := func() string {
			if key := session.ViewerKey(); key != "" {
				return key
			}
			return appConfig.GetViewerID()
		}
		storeOpts = append(storeOpts, store.WithMirror(store.NewRedisMirror(rdb, store.WithViewer(viewer))))
		appLogger.Infof("cache mirror enabled")
	}
	cache := store.NewMemoryCacheStore(sched, storeOpts...)

	// Dependency Injection: Credentials
	var credentials contract.ICredentialProvider = session
	if appConfig.GetOAuthClientID() != "" && appConfig.GetOAuthTokenURL() != "" {
		credentials = credential.NewClientCredentialsProvider(context.Background(),
			appConfig.GetOAuthClientID(), appConfig.GetOAuthClientSecret(), appConfig.GetOAuthTokenURL())
		appLogger.Infof("using client credentials from %s", appConfig.GetOAuthTokenURL())
	}
	redirector := credential.NewSessionRedirector(session, appConfig.GetAuthRedirectURL(), appLogger)

	// Dependency Injection: Engagement transport and subject source
	client := engagementclient.NewClient(appConfig.GetEngagementBaseURL(), credentials,
		engagementclient.WithTimeout(appConfig.GetRequestTimeout()),
		engagementclient.WithRequestIDs(uuidgen.NewGenerator()),
	)
	var source contract.ISubjectSource = engagementclient.NewSubjectSource(client)
	if appConfig.GetSubjectSource() == "mongo" {
		mongoClient, err := database.NewMongoDBClient(appConfig.GetMongoURI())
		if err != nil {
			log.Fatalf("Failed to connect to MongoDB: %v", err)
		}
		defer func() { _ = mongoClient.Disconnect() }()
		source = mongodb.NewSubjectRepository(mongoClient.Database(appConfig.GetMongoDBName()), appConfig.GetViewerID())
		appLogger.Infof("reading subjects from mongodb database %s", appConfig.GetMongoDBName())
	}

	// Dependency Injection: Usecases
	engagementUsecase := usecase.NewEngagementUseCase(cache, client, source, sched, appValidator, appLogger,
		usecase.WithRevalidationDelay(appConfig.GetRevalidationDelay()),
		usecase.WithErrorFlagTTL(appConfig.GetErrorFlagTTL()),
		usecase.WithFetchTimeout(appConfig.GetRequestTimeout()),
		usecase.WithMetrics(appMetrics),
		usecase.WithAuthRedirector(redirector),
	)
	presenters := presenter.NewRegistry(engagementUsecase, cache, appLogger,
		presenter.WithIdleEviction(sched, appConfig.GetRevalidationDelay()+appConfig.GetRequestTimeout()),
	)
	defer presenters.Close()

	// Setup API routes
	router := gin.New()
	router.Use(gin.Recovery())
	appRouter := handlerHttp.NewRouter(
		handlerHttp.NewInteractionHandler(presenters, redirector.RedirectURL()),
		handlerHttp.NewListHandler(engagementUsecase, cache),
		handlerHttp.NewSessionHandler(session, engagementUsecase, redirector.RedirectURL()),
		handlerHttp.NewStreamHandler(presenters, appConfig.GetAllowedOrigins(), appLogger),
		appConfig,
	)
	appRouter.SetupRoutes(router)

	srv := &http.Server{
		Addr:    ":" + appConfig.GetPort(),
		Handler: router,
	}
	go func() {
		appLogger.Infof("Server running on port %s", appConfig.GetPort())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLogger.Infof("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Errorf("server shutdown: %v", err)
	}
}

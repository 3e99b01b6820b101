package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/tempizhere/prowly/internal/app"
	"github.com/tempizhere/prowly/internal/cache"
	"github.com/tempizhere/prowly/internal/config"
	"github.com/tempizhere/prowly/internal/geoip"
	grpcserver "github.com/tempizhere/prowly/internal/grpc"
	"github.com/tempizhere/prowly/internal/grpc/proto"
	"github.com/tempizhere/prowly/internal/log"
	"github.com/tempizhere/prowly/internal/ratelimit"
	"github.com/tempizhere/prowly/internal/repository"
	"github.com/tempizhere/prowly/internal/service"
	"go.uber.org/zap"
	"google.golang.org/grpc"
)

func main() {
	cfg, err := config.NewConfig()
	if err != nil {
		panic(err)
	}

	logger := log.NewLogger(cfg.LogLevel)
	defer func() {
		_ = logger.Sync()
	}()

	// Хранилище: Postgres при заданном DSN, иначе память
	var (
		links  repository.LinkRepository
		clicks repository.ClickRepository
		db     repository.Database
	)
	if cfg.DatabaseDSN != "" {
		db, err = app.NewDB(cfg.DatabaseDSN)
		if err != nil {
			logger.Fatal("Failed to connect to database", zap.Error(err))
		}
		defer func() {
			_ = db.Close()
		}()
		links = repository.NewPostgresLinkRepository(db, logger)
		clicks = repository.NewPostgresClickRepository(db, logger)
		logger.Info("Using PostgreSQL storage")
	} else {
		memClicks := repository.NewMemoryClickRepository()
		links = repository.NewMemoryLinkRepository(memClicks)
		clicks = memClicks
		logger.Info("Using in-memory storage")
	}

	// Redis: кэш сессий и лимитер, при пустом адресе работаем в памяти
	var (
		sessionCache cache.Cache
		limiter      ratelimit.Limiter
	)
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer func() {
			_ = client.Close()
		}()
		sessionCache = cache.NewRedisCache(client)
		limiter = ratelimit.NewRedisLimiter(client, cfg.RateLimit, cfg.RateLimitWindow, logger)
		logger.Info("Using Redis", zap.String("addr", cfg.RedisAddr))
	} else {
		sessionCache = cache.NewMemoryCache()
		limiter = ratelimit.NewMemoryLimiter(cfg.RateLimit, cfg.RateLimitWindow)
		logger.Info("Using in-memory session cache and rate limiter")
	}

	// Геолокация: локальная база, при недоступности внешний сервис
	var local geoip.Locator
	if cfg.GeoIPDBPath != "" {
		fl, err := geoip.NewFileLocator(cfg.GeoIPDBPath)
		if err != nil {
			logger.Warn("Failed to open GeoIP database", zap.String("path", cfg.GeoIPDBPath), zap.Error(err))
		} else {
			defer func() {
				_ = fl.Close()
			}()
			local = fl
		}
	}
	var remote geoip.Locator
	if cfg.GeoIPFallbackURL != "" {
		remote = geoip.NewHTTPLocator(cfg.GeoIPFallbackURL)
	}
	locator := geoip.NewChainLocator(local, remote, logger)

	tracker := service.NewTracker(clicks, locator, logger)
	shortener := service.NewShortener(links, clicks, cfg.BaseURL, logger)
	resolver := service.NewResolver(links, tracker, logger)
	analytics := service.NewAnalytics(clicks, logger)
	sessions := service.NewSessions(cfg.SessionSecret, cfg.CookieTTL, sessionCache, logger)
	auth := service.NewJWTAuthProvider(cfg.AuthSecret)
	metadata := service.NewMetadataFetcher(logger)

	appInstance := app.NewApp(shortener, resolver, tracker, analytics, sessions, auth, metadata, db, logger)
	router := app.NewRouter(appInstance, sessions, limiter, cfg.TrustedSubnet, logger)

	httpServer := &http.Server{
		Addr:    cfg.RunAddr,
		Handler: router,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", cfg.RunAddr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	var grpcSrv *grpc.Server
	if cfg.GRPCAddr != "" {
		grpcSrv = grpc.NewServer(grpc.ChainUnaryInterceptor(
			grpcserver.LoggingInterceptor(logger),
			grpcserver.AuthInterceptor(sessions, logger),
			grpcserver.TrustedSubnetInterceptor(cfg.TrustedSubnet, logger),
		))
		proto.RegisterShortenerServiceServer(grpcSrv, grpcserver.NewServer(shortener, db, logger))

		go func() {
			lis, err := net.Listen("tcp", cfg.GRPCAddr)
			if err != nil {
				logger.Fatal("Failed to listen for gRPC", zap.Error(err))
			}
			logger.Info("Starting gRPC server", zap.String("addr", cfg.GRPCAddr))
			if err := grpcSrv.Serve(lis); err != nil {
				logger.Fatal("gRPC server failed", zap.Error(err))
			}
		}()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("HTTP shutdown failed", zap.Error(err))
	}
	if grpcSrv != nil {
		grpcSrv.GracefulStop()
	}
}

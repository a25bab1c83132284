package main

import (
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mselim/campaign-gateway/internal/config"
	"github.com/mselim/campaign-gateway/internal/executor"
	gateway "github.com/mselim/campaign-gateway/internal/gateways"
	"github.com/mselim/campaign-gateway/internal/handlers"
	"github.com/mselim/campaign-gateway/internal/repository"
	"github.com/mselim/campaign-gateway/internal/services"
	xhttp "github.com/mselim/campaign-gateway/pkg/http"
	"github.com/mselim/campaign-gateway/pkg/logger"
	"github.com/mselim/campaign-gateway/pkg/pg"
	"github.com/mselim/campaign-gateway/pkg/prom"
	"github.com/mselim/campaign-gateway/pkg/ratelimit"
	"github.com/mselim/campaign-gateway/pkg/redis"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	err := config.Load(argContainsEnvPath())
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return
	}

	s := xhttp.NewServer(xhttp.DefaultServerOption)
	s.Server.ReadBufferSize = 1024 * 16
	s.Server.WriteBufferSize = 1024 * 16
	s.Use(xhttp.CompressMiddleware(6))
	s.Use(xhttp.TimeoutMiddleware(time.Second * 30))
	s.Use(xhttp.RequestLoggerMiddleware)
	s.Use(xhttp.RecoverMiddleware)
	s.Router = xhttp.CreateDefaultRouter()

	readConf := pg.Config{
		User:     config.Get().PostgresReadUser,
		Host:     config.Get().PostgresReadHost,
		Port:     config.Get().PostgresReadPort,
		Password: config.Get().PostgresReadPassword,
		Database: config.Get().PostgresReadDatabase,
	}
	writeConf := pg.Config{
		User:     config.Get().PostgresWriteUser,
		Host:     config.Get().PostgresWriteHost,
		Port:     config.Get().PostgresWritePort,
		Password: config.Get().PostgresWritePassword,
		Database: config.Get().PostgresWriteDatabase,
	}

	pgDebug := config.Get().AppEnv == "dev"
	db, err := pg.CreateReadWrite(readConf, writeConf, pgDebug)
	if err != nil {
		logger.Error("failed connecting to pg", "error", err)
		return
	}

	redisAdap, err := redis.NewRedisAdapter("default", config.Get().RedisUniversalKeyPrefix, &redis.Options{
		Addrs:      []string{config.Get().RedisAddr},
		ClientName: "default",
		DB:         config.Get().RedisDatabase,
		Username:   config.Get().RedisUsername,
		Password:   config.Get().RedisPassword,
	})
	if err != nil {
		logger.Error("failed connecting to redis", "error", err)
		return
	}

	if addr := config.Get().AppDebugMetricsAddr; addr != "" {
		if err := prom.Create(config.Get().AppName, config.Get().AppEnv, config.Get().PromNamespace); err != nil {
			logger.Error("failed to register metrics", "error", err)
		}
		go prom.ListenAndServer(addr, config.Get().AppDebugMetricsURI)
	}

	bridge, err := gateway.NewClient(&gateway.Config{
		BaseURL: config.Get().TelegramBridgeURL,
		Timeout: config.Get().TelegramBridgeTimeout,
	})
	if err != nil {
		logger.Error("failed creating telegram bridge client", "error", err)
		return
	}

	limiter, err := ratelimit.New(redisAdap, ratelimit.Config{
		Key:    config.Get().AuthScope,
		Limit:  config.Get().RateLimitSends,
		Window: config.Get().RateLimitWindow,
	})
	if err != nil {
		logger.Error("failed creating rate limiter", "error", err)
		return
	}

	sessionRepo := repository.NewSessionRepository(db)
	campaignRepo := repository.NewCampaignRepository(db)
	contactRepo := repository.NewContactRepository(db)
	crmRepo := repository.NewCrmContactRepository(db)

	engine := executor.New(campaignRepo, contactRepo, bridge, limiter)

	authService := services.NewAuthService(sessionRepo, bridge, redisAdap,
		config.Get().AuthScope, config.Get().AuthCodeCooldown)
	importService := services.NewImportService(contactRepo, campaignRepo, crmRepo)
	campaignService := services.NewCampaignService(campaignRepo, contactRepo, authService, engine,
		config.Get().BatchSize)

	authHandler := handlers.NewAuthHandler(authService)
	campaignHandler := handlers.NewCampaignHandler(campaignService)
	contactHandler := handlers.NewContactHandler(importService)

	g := s.Router.Group("/api/v1")
	handlers.RegisterAuthRoutes(g, authHandler)
	handlers.RegisterCampaignRoutes(g, campaignHandler)
	handlers.RegisterContactRoutes(g, contactHandler)
	handlers.RegisterHealthRoutes(s.Router)

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("campaign gateway listening", "addr", config.Get().HttpListenAddr, "version", version, "commit", commit, "built", date)
		if err := s.ListenAndServe(config.Get().HttpListenAddr); err != nil {
			logger.Error("error in running http-server", "error", err)
		}
	}()

	<-c
	s.Shutdown()
}

func argContainsEnvPath() string {
	for _, v := range os.Args {
		if strings.Contains(v, "--env=") {
			s := strings.Split(v, "=")
			if _, err := os.Open(s[1]); err != nil {
				logger.Error("failed to open the passed env file, got error" + err.Error())
				return ""
			}
			return s[1]
		}
	}
	return ""
}

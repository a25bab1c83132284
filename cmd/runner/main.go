package main

import (
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mselim/campaign-gateway/internal/config"
	"github.com/mselim/campaign-gateway/internal/executor"
	gateway "github.com/mselim/campaign-gateway/internal/gateways"
	"github.com/mselim/campaign-gateway/internal/queue"
	"github.com/mselim/campaign-gateway/internal/repository"
	"github.com/mselim/campaign-gateway/internal/runner"
	"github.com/mselim/campaign-gateway/internal/services"
	"github.com/mselim/campaign-gateway/pkg/logger"
	"github.com/mselim/campaign-gateway/pkg/pg"
	"github.com/mselim/campaign-gateway/pkg/prom"
	"github.com/mselim/campaign-gateway/pkg/ratelimit"
	"github.com/mselim/campaign-gateway/pkg/redis"
)

func main() {
	err := config.Load(argContainsEnvPath())
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return
	}

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

	db, err := pg.CreateReadWrite(readConf, writeConf, config.Get().AppEnv == "dev")
	if err != nil {
		logger.Error("failed connecting to pg", "error", err)
		return
	}

	redisAdap, err := redis.NewRedisAdapter("default", config.Get().RedisUniversalKeyPrefix, &redis.Options{
		Addrs:      []string{config.Get().RedisAddr},
		ClientName: config.Get().RunnerConsumerName,
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

	engine := executor.New(campaignRepo, contactRepo, bridge, limiter)
	authService := services.NewAuthService(sessionRepo, bridge, redisAdap,
		config.Get().AuthScope, config.Get().AuthCodeCooldown)

	q, err := queue.NewQueue(redisAdap, queue.QueueConfig{
		Name:          config.Get().RunnerQueueName,
		ConsumerGroup: config.Get().RunnerConsumerGroup,
		ConsumerName:  config.Get().RunnerConsumerName,
		EnableDLQ:     true,
	})
	if err != nil {
		logger.Error("failed creating run queue", "error", err)
		return
	}

	r := runner.New(campaignRepo, contactRepo, authService, engine, q, redisAdap, runner.Config{
		PollInterval: config.Get().RunnerPollInterval,
		ClaimTTL:     config.Get().RunnerClaimTTL,
		BatchSize:    config.Get().BatchSize,
		Workers:      config.Get().RunnerWorkers,
	})

	if err := r.Start(); err != nil {
		logger.Error("failed starting runner", "error", err)
		return
	}
	logger.Info("campaign runner started", "queue", config.Get().RunnerQueueName, "workers", config.Get().RunnerWorkers)

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c

	logger.Info("shutting down campaign runner...")
	r.Stop()
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

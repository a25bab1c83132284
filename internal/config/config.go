package config

import (
	"time"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
	"github.com/mselim/campaign-gateway/pkg/logger"
	"github.com/pkg/errors"
)

const ConfigTagName = "env"
const ConfigDefaultTagName = "default"

var config *Config

// Config holds every env-driven setting of the gateway. Only this struct may
// be used to read configuration values; no direct access to env, ini or any
// other config source should be made elsewhere.
type Config struct {
	AppEnv              string `env:"APP_ENV" default:"dev"`
	AppName             string `env:"APP_NAME" default:"campaign_gateway"`
	AppDebug            bool   `env:"APP_DEBUG" default:"1"`
	AppDebugMetricsAddr string `env:"APP_DEBUG_METRIC_ADDR"`
	AppDebugMetricsURI  string `env:"APP_DEBUG_METRIC_URI"`

	// Scope is the operator tenancy; one authenticated session exists per scope.
	AuthScope        string        `env:"AUTH_SCOPE" default:"default"`
	AuthCodeCooldown time.Duration `env:"AUTH_CODE_COOLDOWN" default:"60s"`

	HttpListenAddr         string `env:"HTTP_LISTEN_ADDR" validation:"mustExists"`
	HttpServerReadTimeout  int    `env:"HTTP_SERVER_READ_TIMEOUT"`
	HttpServerWriteTimeout int    `env:"HTTP_SERVER_WRITE_TIMEOUT"`

	PostgresReadHost     string `env:"POSTGRES_READ_HOST"`
	PostgresReadPort     string `env:"POSTGRES_READ_PORT"`
	PostgresReadUser     string `env:"POSTGRES_READ_USER"`
	PostgresReadPassword string `env:"POSTGRES_READ_PASSWORD"`
	PostgresReadDatabase string `env:"POSTGRES_READ_DBNAME"`

	PostgresWriteHost     string `env:"POSTGRES_WRITE_HOST"`
	PostgresWritePort     string `env:"POSTGRES_WRITE_PORT"`
	PostgresWriteUser     string `env:"POSTGRES_WRITE_USER"`
	PostgresWritePassword string `env:"POSTGRES_WRITE_PASSWORD"`
	PostgresWriteDatabase string `env:"POSTGRES_WRITE_DBNAME"`

	RedisAddr               string `env:"REDIS_ADDR"`
	RedisUsername           string `env:"REDIS_USER"`
	RedisPassword           string `env:"REDIS_PASS"`
	RedisDatabase           int    `env:"REDIS_DATABASE"`
	RedisUniversalKeyPrefix string `env:"REDIS_UNIVERSAL_KEY_PREFIX"`

	PromNamespace string `env:"PROM_NAMESPACE"`

	LogLevel []string `env:"LOG_LEVEL"`

	// Telegram MTProto bridge
	TelegramBridgeURL     string        `env:"TELEGRAM_BRIDGE_URL"`
	TelegramBridgeTimeout time.Duration `env:"TELEGRAM_BRIDGE_TIMEOUT" default:"10s"`

	// Sends allowed per window for the whole session identity.
	RateLimitSends  int64         `env:"RATE_LIMIT_SENDS" default:"30"`
	RateLimitWindow time.Duration `env:"RATE_LIMIT_WINDOW" default:"1m"`

	// Executor
	BatchSize int `env:"BATCH_SIZE" default:"10"`

	// Runner daemon
	RunnerPollInterval  time.Duration `env:"RUNNER_POLL_INTERVAL" default:"5s"`
	RunnerQueueName     string        `env:"RUNNER_QUEUE_NAME" default:"campaign:runs"`
	RunnerConsumerGroup string        `env:"RUNNER_CONSUMER_GROUP" default:"runner"`
	RunnerConsumerName  string        `env:"RUNNER_CONSUMER_NAME" default:"runner-0"`
	RunnerWorkers       int           `env:"RUNNER_WORKERS" default:"4"`
	RunnerClaimTTL      time.Duration `env:"RUNNER_CLAIM_TTL" default:"2m"`
}

func Load(path string) error {
	logger.Info("loading configs..", "path", path)
	c := &Config{}
	var err error
	if path != "" {
		logger.Info("trying to publish env from file", "path", path)
		if err = godotenv.Load(path); err != nil {
			return errors.Wrap(err, "failed to load configuration file "+path)
		}
	}

	if _, err = env.UnmarshalFromEnviron(c); err != nil {
		return errors.Wrap(err, "failed to map env variables to Config object")
	}

	config = c
	return nil
}

func Get() *Config {
	if config == nil {
		logger.Panic("Config is not initialized")
	}
	return config
}

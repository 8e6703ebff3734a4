package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/fastflow/nexus/internal/agent/model"
	"github.com/fastflow/nexus/internal/chat"
	"github.com/fastflow/nexus/internal/core"
	"github.com/fastflow/nexus/internal/llm"
	"github.com/fastflow/nexus/internal/server"
	"github.com/fastflow/nexus/internal/session"
	"github.com/fastflow/nexus/internal/tools"
	"github.com/fastflow/nexus/internal/upstream"
	logx "github.com/fastflow/nexus/pkg/logger"
	pkgredis "github.com/fastflow/nexus/pkg/redis"
)

// AppConfig defines all configurable parameters for the service, sourced
// from environment variables (loaded from .env for local runs).
type AppConfig struct {
	Server   model.ServerConfig
	Session  model.SessionConfig
	Upstream model.UpstreamConfig
}

func main() {
	// Load .env file
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	logx.Init(logx.LoggerOpts{Environment: core.ParseEnvironment(os.Getenv("APP_ENV"))})

	// Load structured config from env
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("Failed to process environment config: %v", err)
	}

	upstreamTimeout, err := time.ParseDuration(cfg.Upstream.Timeout)
	if err != nil {
		log.Fatalf("Invalid UPSTREAM_TIMEOUT '%s': %v", cfg.Upstream.Timeout, err)
	}

	store, err := buildSessionStore(cfg.Session)
	if err != nil {
		log.Fatalf("Failed to initialise session store: %v", err)
	}

	client := upstream.NewClient(cfg.Upstream.BaseURL, upstreamTimeout)
	factory := llm.NewFactory(client)
	agent := chat.NewAgent(factory, store, tools.NewContextCache())

	logx.Info().
		Str("addr", cfg.Server.Addr).
		Str("session_backend", cfg.Session.Backend).
		Msg("Starting chat agent server")
	if err := server.New(agent).Start(cfg.Server.Addr); err != nil {
		log.Fatalf("Server stopped: %v", err)
	}
}

// buildSessionStore selects the session backend: in-process memory by
// default, Redis when SESSION_BACKEND=redis. Redis connection settings are
// only read when the Redis backend is requested.
func buildSessionStore(cfg model.SessionConfig) (session.Store, error) {
	ttl, err := time.ParseDuration(cfg.TTL)
	if err != nil {
		return nil, fmt.Errorf("invalid SESSION_TTL '%s': %w", cfg.TTL, err)
	}

	if cfg.Backend != "redis" {
		return session.NewMemoryStore(), nil
	}

	var redisCfg pkgredis.Config
	if err := envconfig.Process("redis", &redisCfg); err != nil {
		return nil, err
	}
	rdb, err := redisCfg.New()
	if err != nil {
		return nil, err
	}
	logx.Info().Msg("Connected to Redis successfully")
	return session.NewRedisStore(rdb, ttl), nil
}

package main

import (
	"log"
	"os"
	"runtime"
	"runtime/debug"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"discord-guardian-bot/internal/actions"
	"discord-guardian-bot/internal/bot"
	"discord-guardian-bot/internal/cache"
	"discord-guardian-bot/internal/config"
	"discord-guardian-bot/internal/database"
	"discord-guardian-bot/internal/engine"
	"discord-guardian-bot/internal/metrics"
	"discord-guardian-bot/internal/redis"
)

// Config is the bootstrap file: secrets and connection endpoints.
// Engine tuning lives in config.yaml and per-guild overrides in
// Postgres.
type Config struct {
	Token       string                  `json:"token"`
	MetricsAddr string                  `json:"metrics_addr"`
	Redis       redis.Config            `json:"redis"`
	Postgres    database.PostgresConfig `json:"postgres"`
}

func main() {
	// GC tuned for burst traffic: raid storms arrive as thousands of
	// events in seconds and a latency spike means missed enforcement
	runtime.GOMAXPROCS(runtime.NumCPU())
	debug.SetGCPercent(200)

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Error creating logger: %v", err)
	}
	defer logger.Sync()

	file, err := os.ReadFile("config.json")
	if err != nil {
		logger.Fatal("reading config.json", zap.Error(err))
	}
	var cfg Config
	if err := json.Unmarshal(file, &cfg); err != nil {
		logger.Fatal("parsing config.json", zap.Error(err))
	}

	// Engine defaults, optionally overlaid by config.yaml
	defaults := config.LoadFile("config.yaml", logger)

	rdb, err := redis.New(cfg.Redis)
	if err != nil {
		logger.Fatal("initializing redis", zap.Error(err))
	}
	defer rdb.Close()

	db, err := database.NewDatabase(cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("initializing database", zap.Error(err))
	}
	defer db.Close()

	b, err := bot.New(cfg.Token, logger)
	if err != nil {
		logger.Fatal("initializing bot", zap.Error(err))
	}

	exCache, err := cache.New(rdb, func(guildID string) (*cache.ExemptionSet, error) {
		rows, err := db.LoadExemptions(guildID)
		if err != nil {
			return nil, err
		}
		set := &cache.ExemptionSet{
			Users:    map[string]struct{}{},
			Roles:    map[string]struct{}{},
			Channels: map[string]struct{}{},
		}
		for _, row := range rows {
			switch row.TargetType {
			case "user":
				set.Users[row.TargetID] = struct{}{}
			case "role":
				set.Roles[row.TargetID] = struct{}{}
			case "channel":
				set.Channels[row.TargetID] = struct{}{}
			}
		}
		return set, nil
	})
	if err != nil {
		logger.Fatal("initializing exemption cache", zap.Error(err))
	}
	defer exCache.Close()

	exec := actions.New(b.Session, logger)
	exempter := bot.NewExempter(b.Session, exCache)

	eng := engine.New(logger, exec, db, rdb, exempter, defaults)
	if err := eng.Restore(); err != nil {
		// Boot with empty state rather than refusing to serve
		logger.Warn("state restore failed, starting fresh", zap.Error(err))
	}
	b.AttachEngine(eng)
	b.AttachVerifier(exec.Captchas())

	if cfg.MetricsAddr != "" {
		go metrics.Serve(cfg.MetricsAddr, logger)
	}

	logger.Info("guardian engine ready")
	if err := b.Start(); err != nil {
		logger.Fatal("bot stopped", zap.Error(err))
	}
}

package main

import (
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/e14n/pump2status/bridge"
	"github.com/e14n/pump2status/foreign"
	"github.com/e14n/pump2status/httpclient"
	"github.com/e14n/pump2status/pump"
	"github.com/e14n/pump2status/store"
	"github.com/e14n/pump2status/tokens"
)

const (
	hostCacheTTL  = 30 * time.Minute
	hostCacheSize = 1024
)

// app holds the components shared by every command.
type app struct {
	config   Config
	logger   *slog.Logger
	db       *gorm.DB
	rdb      *redis.Client
	store    *store.Store
	registry *foreign.Registry
	networks foreign.Networks
	pump     *pump.Client
	tokens   *tokens.Store
	bridge   *bridge.Service
	closers  []func()
}

func newLogger(level, format string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if strings.ToLower(format) == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func newApp(config Config, appLogger *slog.Logger) (*app, error) {
	a := &app{config: config, logger: appLogger}

	gormLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             300 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  true,
		},
	)

	db, err := gorm.Open(postgres.Open(config.Server.Dsn), &gorm.Config{
		Logger:         gormLogger,
		TranslateError: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "connect database")
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.Wrap(err, "connect database")
	}
	a.closers = append(a.closers, func() { sqlDB.Close() })
	a.db = db

	err = db.Use(tracing.NewPlugin(
		tracing.WithDBName("postgres"),
	))
	if err != nil {
		a.close()
		return nil, errors.Wrap(err, "setup tracing plugin")
	}

	a.store = store.NewStore(db)
	appLogger.Info("start migrate")
	if err := a.store.Migrate(); err != nil {
		a.close()
		return nil, errors.Wrap(err, "migrate")
	}

	a.rdb = redis.NewClient(&redis.Options{
		Addr: config.Server.RedisAddr,
		DB:   config.Server.RedisDB,
	})
	a.closers = append(a.closers, func() { a.rdb.Close() })
	err = redisotel.InstrumentTracing(
		a.rdb,
		redisotel.WithAttributes(
			attribute.KeyValue{
				Key:   "db.name",
				Value: attribute.StringValue("redis"),
			},
		),
	)
	if err != nil {
		a.close()
		return nil, errors.Wrap(err, "setup redis tracing")
	}
	a.tokens = tokens.NewStore(a.rdb, config.Worker.RequestTokenTTL)

	var cache foreign.HostCache
	if config.Server.MemcachedAddr != "" {
		mc := memcache.New(config.Server.MemcachedAddr)
		a.closers = append(a.closers, func() { mc.Close() })
		cache = foreign.NewMemcacheHostCache(mc)
	} else {
		cache = foreign.NewMemoryHostCache(hostCacheTTL, hostCacheSize)
	}

	userAgent := config.Site.UserAgent
	if userAgent == "" {
		userAgent = "pump2status/" + version
	}
	client := httpclient.NewClient(config.Worker, userAgent)

	a.registry = foreign.NewRegistry(a.store, cache, client, config.StatusNet)
	a.networks = foreign.NewNetworks(
		foreign.NewStatusNet(a.registry, client, config.Worker.MaxFollowingPages),
		foreign.NewTwitter(client, config.Twitter, config.Worker.MaxFollowingPages),
	)
	a.pump = pump.NewClient(client, config.Pump, config.Worker.MaxFollowingPages)

	a.bridge = bridge.NewService(
		a.store,
		a.pump,
		a.networks,
		foreign.NewResolver(a.store),
		config.Worker,
		appLogger,
	)

	return a, nil
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/wfunc/wordchain/chain"
	"github.com/wfunc/wordchain/config"
	"github.com/wfunc/wordchain/karma"
	"github.com/wfunc/wordchain/lexicon"
	"github.com/wfunc/wordchain/logger"
	"github.com/wfunc/wordchain/monitor"
	"github.com/wfunc/wordchain/persistence"
	"github.com/wfunc/wordchain/server"
	"github.com/wfunc/wordchain/services"
)

func openRepository(cfg config.DatabaseConfig) (persistence.Repository, error) {
	if cfg.Driver == "memory" {
		logger.Log.Warn("Using the in-memory repository, nothing will survive a restart.")
		return persistence.NewMemory(), nil
	}
	return persistence.NewGormPostgreSQL(
		cfg.Postgres.Host,
		cfg.Postgres.Port,
		cfg.Postgres.User,
		cfg.Postgres.Password,
		cfg.Postgres.DBName,
	)
}

// openCache builds the word cache. The returned closers must run on exit.
func openCache(cfg config.LexiconConfig, repo persistence.Repository) (lexicon.Cache, []io.Closer, error) {
	var closers []io.Closer
	var durable lexicon.Cache
	switch cfg.Cache {
	case "bolt":
		bolt, err := lexicon.OpenBoltCache(cfg.BoltPath)
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, bolt)
		durable = bolt
	case "memory":
		durable = lexicon.NewMemoryCache()
	default:
		durable = lexicon.NewRepositoryCache(repo)
	}

	if cfg.RedisURL == "" {
		return durable, closers, nil
	}
	redis, err := lexicon.NewRedisCache(cfg.RedisURL)
	if err != nil {
		for _, c := range closers {
			c.Close()
		}
		return nil, nil, err
	}
	closers = append(closers, redis)
	return lexicon.NewTiered(redis, durable), closers, nil
}

func main() {
	// Initialize logger
	logger.Init()
	defer logger.Sync()

	// .env is optional
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logger.Log.Warnf("Failed to read .env: %v", err)
	}

	// Load configuration
	cfg, err := config.LoadConfig(".")
	if err != nil {
		logger.Log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize Database
	repo, err := openRepository(cfg.Database)
	if err != nil {
		logger.Log.Fatalf("Failed to connect to database: %v", err)
	}
	defer repo.Close()
	logger.Log.Info("Database connection successful.")

	cache, closers, err := openCache(cfg.Lexicon, repo)
	if err != nil {
		logger.Log.Fatalf("Failed to open word cache: %v", err)
	}
	defer func() {
		for _, c := range closers {
			c.Close()
		}
	}()

	mon := monitor.NewMonitor(cfg.Monitor.Namespace, prometheus.NewRegistry())
	lookup := lexicon.NewService(lexicon.NewWiktionarySource(cfg.Lexicon.SourceURL, cfg.Lexicon.Timeout), cache, lexicon.Options{
		Timeout:        cfg.Lexicon.Timeout,
		CacheNegative:  cfg.Lexicon.CacheNegative,
		MaxConcurrency: cfg.Lexicon.MaxConcurrency,
		Recorder:       mon.Metrics,
	})
	engine := karma.NewEngine(karma.NewFrequencyScorer(), cfg.Game.HistoryLength, cfg.Game.MistakePenalty)
	chains := chain.NewManager()

	validator := services.NewChainValidator(repo, chains, lookup, engine, services.ValidatorOptions{
		CommandPrefix:    cfg.Server.CommandPrefix,
		SinglePlayer:     cfg.Server.SinglePlayer,
		DefaultLanguages: cfg.Game.DefaultLanguages,
		GlobalBlacklist:  cfg.Game.GlobalBlacklist,
		Roles: services.RolePolicy{
			FailedRecovery:    cfg.Game.FailedRoleRecovery,
			KarmaThreshold:    cfg.Game.ReliableKarmaThreshold,
			AccuracyThreshold: cfg.Game.ReliableAccuracyThreshold,
		},
		Recorder: mon.Metrics,
	})

	// Initialize Game Server
	gameServer := server.NewGameServer(server.Options{
		HTTPAddress: cfg.Server.HTTPAddress,
		RPCAddress:  cfg.Server.RPCAddress,
	}, server.Deps{
		Validator:   validator,
		Leaderboard: services.NewLeaderboardAggregator(repo),
		Admin:       services.NewAdminService(repo, validator, chains, engine),
		Chains:      chains,
		Monitor:     mon,
	})

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-stop
		logger.Log.Info("Shutting down...")
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := gameServer.Shutdown(ctx); err != nil {
			logger.Log.Errorf("Shutdown failed: %v", err)
		}
	}()

	// Start Server
	logger.Log.Infof("Starting game server on %s", cfg.Server.HTTPAddress)
	if err := gameServer.Start(); err != nil {
		logger.Log.Fatalf("Failed to start server: %v", err)
	}

	<-stopped
	// let background lookups finish populating the cache
	lookup.Wait()
}

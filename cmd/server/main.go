package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"

	"github.com/fenggwsx/RoomChat/internal/config"
	"github.com/fenggwsx/RoomChat/internal/server"
	"github.com/fenggwsx/RoomChat/internal/storage"
	"github.com/fenggwsx/RoomChat/internal/storage/memory"
	"github.com/fenggwsx/RoomChat/internal/storage/redis"
	"github.com/fenggwsx/RoomChat/internal/storage/sqlite"
)

func main() {
	cfg, err := config.LoadServerConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	stores, err := openStores(cfg, logger)
	if err != nil {
		logger.Error("init storage", "err", err)
		os.Exit(1)
	}

	logger.Info("stores ready", "message_store", cfg.MessageStore, "presence_store", cfg.PresenceStore)

	app := server.NewApp(cfg, stores.messages, stores.presence, logger)

	go func() {
		if err := app.ListenAndServe(); err != nil {
			logger.Error("server stopped", "err", err)
			os.Exit(1)
		}
	}()

	drained := make(chan struct{})
	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		cfg.ShutdownTimeout,
		map[string]gfshutdown.Operation{
			"http": func(ctx context.Context) error {
				defer close(drained)
				logger.Info("graceful shutdown initiated")
				return app.Shutdown(ctx)
			},
			"storage": func(ctx context.Context) error {
				select {
				case <-drained:
				case <-ctx.Done():
				}
				return stores.Close()
			},
		},
	)

	exitCode := <-wait
	logger.Info("server exited", "code", exitCode)
	os.Exit(exitCode)
}

func newLogger(cfg config.ServerConfig) *slog.Logger {
	level, _ := cfg.Level()
	opts := &slog.HandlerOptions{Level: level}
	var out io.Writer = os.Stdout
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(out, opts))
	}
	return slog.New(slog.NewTextHandler(out, opts))
}

type storeSet struct {
	messages storage.MessageStore
	presence storage.PresenceStore
	closers  []io.Closer
}

func (s *storeSet) Close() error {
	var errs []error
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func openStores(cfg config.ServerConfig, logger *slog.Logger) (*storeSet, error) {
	set := &storeSet{}
	var (
		db  *sqlite.Store
		mem *memory.Store
	)

	sqliteStore := func() (*sqlite.Store, error) {
		if db != nil {
			return db, nil
		}
		s, err := sqlite.NewStore(cfg.Database)
		if err != nil {
			return nil, err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.Migrate(ctx); err != nil {
			s.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		logger.Info("sqlite store ready", "path", cfg.Database.Path)
		db = s
		set.closers = append(set.closers, s)
		return s, nil
	}
	memoryStore := func() *memory.Store {
		if mem == nil {
			mem = memory.NewStore()
		}
		return mem
	}

	switch cfg.MessageStore {
	case config.DriverSQLite:
		s, err := sqliteStore()
		if err != nil {
			return nil, err
		}
		set.messages = s
	case config.DriverMemory:
		set.messages = memoryStore()
	default:
		return nil, fmt.Errorf("unsupported message store %q", cfg.MessageStore)
	}

	switch cfg.PresenceStore {
	case config.DriverSQLite:
		s, err := sqliteStore()
		if err != nil {
			set.Close()
			return nil, err
		}
		set.presence = s
	case config.DriverMemory:
		set.presence = memoryStore()
	case config.DriverRedis:
		p := redis.New(redis.NewClient(cfg.Redis), cfg.Redis.Prefix)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := p.Ping(ctx); err != nil {
			p.Close()
			set.Close()
			return nil, fmt.Errorf("redis ping %s: %w", cfg.Redis.Addr, err)
		}
		logger.Info("redis presence store ready", "addr", cfg.Redis.Addr)
		set.presence = p
		set.closers = append(set.closers, p)
	default:
		set.Close()
		return nil, fmt.Errorf("unsupported presence store %q", cfg.PresenceStore)
	}
	return set, nil
}

package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/sheikh-saqib/wallet-ledger/internal/config"
	kafkaevents "github.com/sheikh-saqib/wallet-ledger/internal/events/kafka"
	"github.com/sheikh-saqib/wallet-ledger/internal/events/noop"
	"github.com/sheikh-saqib/wallet-ledger/internal/events/rabbitmq"
	interfaces "github.com/sheikh-saqib/wallet-ledger/internal/interfaces"
	"github.com/sheikh-saqib/wallet-ledger/internal/ledger"
	"github.com/sheikh-saqib/wallet-ledger/internal/logging"
	"github.com/sheikh-saqib/wallet-ledger/internal/storage/memory"
	"github.com/sheikh-saqib/wallet-ledger/internal/storage/postgres"
	redisstore "github.com/sheikh-saqib/wallet-ledger/internal/storage/redis"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(".env")
	if err != nil {
		return err
	}
	logger, err := logging.New(os.Stderr, cfg.LogLevel, cfg.LogPretty)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}

	publisher, err := openPublisher(cfg)
	if err != nil {
		return err
	}
	defer publisher.Close()

	opts := []ledger.Option{
		ledger.WithLogger(logger),
		ledger.WithPublisher(publisher, cfg.EventsTopic),
		ledger.WithLockTimeout(cfg.LockTimeout),
	}
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer client.Close()
		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("ping redis: %w", err)
		}
		opts = append(opts, ledger.WithIdempotencyStore(redisstore.NewIdempotencyStore(client, cfg.IdempotencyTTL)))
	} else {
		opts = append(opts, ledger.WithIdempotencyStore(memory.NewIdempotencyStore(cfg.IdempotencyTTL)))
	}
	svc := ledger.NewLedger(store, opts...)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           newRouter(svc, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.HTTPAddr).Str("store", cfg.Store).Str("events", cfg.Events).Msg("ledger listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
	return svc.Quiesced(closeStore)
}

// openStore returns the ledger store and a func that flushes and releases
// it; the func runs while no transfer is applying.
func openStore(ctx context.Context, cfg config.Config, logger zerolog.Logger) (interfaces.LedgerStore, func() error, error) {
	switch cfg.Store {
	case config.StorePostgres:
		db, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		if err := postgres.Migrate(ctx, db); err != nil {
			db.Close()
			return nil, nil, err
		}
		return postgres.NewPostgresLedgerStore(db), db.Close, nil

	default:
		store := memory.NewMemoryLedgerStore()
		if cfg.SnapshotPath == "" {
			return store, func() error { return nil }, nil
		}

		snap, err := memory.LoadSnapshot(cfg.SnapshotPath)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			logger.Info().Str("path", cfg.SnapshotPath).Msg("no snapshot, starting empty")
		case err != nil:
			return nil, nil, err
		default:
			if err := store.Restore(snap); err != nil {
				return nil, nil, err
			}
			logger.Info().Str("path", cfg.SnapshotPath).Int("accounts", len(snap.Accounts)).Msg("snapshot restored")
		}

		return store, func() error {
			return memory.SaveSnapshot(cfg.SnapshotPath, store.Snapshot())
		}, nil
	}
}

func openPublisher(cfg config.Config) (interfaces.EventPublisher, error) {
	switch cfg.Events {
	case config.EventsKafka:
		return kafkaevents.NewPublisher(cfg.KafkaBrokers), nil
	case config.EventsRabbitMQ:
		return rabbitmq.Dial(cfg.RabbitMQURL, cfg.RabbitMQExchange)
	default:
		return noop.Publisher{}, nil
	}
}

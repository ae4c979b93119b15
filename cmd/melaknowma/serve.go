package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"melaknowma/internal/config"
	"melaknowma/internal/crowd"
	"melaknowma/internal/ingest"
	"melaknowma/internal/jobs"
	"melaknowma/internal/objectstore"
	"melaknowma/internal/record"
	"melaknowma/internal/server"
	"melaknowma/internal/store"
	memorystore "melaknowma/internal/store/memory"
	redisstore "melaknowma/internal/store/redis"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP service",
	Long: `Start the HTTP service: the provider webhook, image upload, job
configuration, and record views. Shuts down gracefully on SIGINT/SIGTERM.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, err := newLogger()
		if err != nil {
			return fmt.Errorf("building logger: %w", err)
		}
		defer func() { _ = logger.Sync() }()

		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		kv, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer kv.Close()

		objects, objectsDir, err := openObjectStore(ctx, cfg)
		if err != nil {
			return err
		}

		repo := record.New(kv)
		jobCfg := jobs.New(kv)
		pusher := crowd.New(crowd.Options{
			BaseURL:           cfg.Crowd.BaseURL,
			APIKey:            cfg.Crowd.APIKey,
			RequestsPerSecond: cfg.Crowd.RequestsPerSecond,
		}, logger.Named("crowd"))
		handler := ingest.NewHandler(repo, jobCfg, cfg.ScoringWeights(), cfg.ClassifyPolicy(), logger.Named("ingest"))

		srv := &http.Server{
			Addr: cfg.ListenAddr,
			Handler: server.New(server.Options{
				Handler:    handler,
				Repo:       repo,
				Jobs:       jobCfg,
				Crowd:      pusher,
				Objects:    objects,
				Store:      kv,
				Logger:     logger.Named("http"),
				ObjectsDir: objectsDir,
			}),
			ReadHeaderTimeout: 10 * time.Second,
		}

		group, ctx := errgroup.WithContext(ctx)
		group.Go(func() error {
			logger.Info("listening", zap.String("addr", cfg.ListenAddr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		group.Go(func() error {
			<-ctx.Done()
			logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
		return group.Wait()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func openStore(ctx context.Context, cfg config.Config) (store.Store, error) {
	lock := store.DefaultLockOptions()
	if cfg.Store.LockWait > 0 {
		lock.Wait = cfg.Store.LockWait
	}
	if cfg.Store.LockTTL > 0 {
		lock.TTL = cfg.Store.LockTTL
	}
	switch cfg.Store.Backend {
	case "memory":
		return memorystore.New(lock), nil
	case "redis":
		s, err := redisstore.New(ctx, redisstore.Options{
			Addr:     cfg.Store.Addr,
			Password: cfg.Store.Password,
			DB:       cfg.Store.DB,
			Lock:     lock,
		})
		if err != nil {
			return nil, fmt.Errorf("connecting to record store: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

func openObjectStore(ctx context.Context, cfg config.Config) (objectstore.Store, string, error) {
	switch cfg.ObjectStore.Backend {
	case "s3":
		s, err := objectstore.NewS3(ctx, cfg.ObjectStore.Bucket, cfg.ObjectStore.Region)
		if err != nil {
			return nil, "", fmt.Errorf("connecting to object store: %w", err)
		}
		return s, "", nil
	case "fs":
		s, err := objectstore.NewFS(cfg.ObjectStore.Dir, cfg.ObjectStore.BaseURL)
		if err != nil {
			return nil, "", err
		}
		return s, cfg.ObjectStore.Dir, nil
	default:
		return nil, "", fmt.Errorf("unknown object store backend %q", cfg.ObjectStore.Backend)
	}
}

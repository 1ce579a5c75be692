package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"paradash/api/internal/app"
	"paradash/api/internal/backup"
	"paradash/api/internal/cache"
	"paradash/api/internal/config"
	"paradash/api/internal/seed"
	"paradash/api/internal/store"
)

type rootOptions struct {
	configPath string
	verbose    bool
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	serve := newServeCommand(opts)

	root := &cobra.Command{
		Use:          "paradash",
		Short:        "PARA productivity API",
		SilenceUsage: true,
		RunE:         serve.RunE,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to a YAML config file")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(serve, newMigrateCommand(opts), newSeedCommand(opts), newBackupCommand(opts))
	return root
}

func newLogger(verbose bool) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	zcfg.EncoderConfig.TimeKey = "ts"
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if verbose {
		zcfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return zcfg.Build()
}

// deps bundles what every subcommand needs.
type deps struct {
	cfg    config.Config
	logger *zap.Logger
	db     *sql.DB
}

func (opts *rootOptions) open(ctx context.Context) (*deps, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(opts.verbose)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	db, err := store.Open(ctx, cfg.DatabaseURL, store.DefaultPoolOptions())
	if err != nil {
		_ = logger.Sync()
		return nil, fmt.Errorf("database connection failed: %w", err)
	}
	return &deps{cfg: cfg, logger: logger, db: db}, nil
}

func (rt *deps) close() {
	_ = rt.db.Close()
	_ = rt.logger.Sync()
}

func (rt *deps) migrate(ctx context.Context) error {
	migrations, err := store.Migrations(rt.cfg.MigrationsDir)
	if err != nil {
		return err
	}
	if err := store.ApplyMigrations(ctx, rt.db, migrations); err != nil {
		return fmt.Errorf("migrations failed: %w", err)
	}
	return nil
}

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			rt, err := opts.open(ctx)
			if err != nil {
				return err
			}
			defer rt.close()

			if err := rt.migrate(ctx); err != nil {
				return err
			}

			dataStore := store.NewPostgresStore(rt.db)
			var serviceOpts []app.Option
			if strings.TrimSpace(rt.cfg.RedisURL) != "" {
				favoritesCache, err := cache.NewRedisCache(rt.cfg.RedisURL, rt.cfg.FavoritesTTL)
				if err != nil {
					return fmt.Errorf("redis connection failed: %w", err)
				}
				defer favoritesCache.Close()
				rt.logger.Info("favorites cache enabled", zap.Duration("ttl", rt.cfg.FavoritesTTL))
				serviceOpts = append(serviceOpts, app.WithCache(favoritesCache))
			}
			service := app.New(rt.cfg, dataStore, rt.logger, serviceOpts...)

			httpServer := app.NewHTTPServer(service, rt.cfg.CORSOrigin)
			server := &http.Server{
				Addr:              rt.cfg.Addr,
				Handler:           httpServer.Handler(),
				ReadHeaderTimeout: 10 * time.Second,
				ReadTimeout:       15 * time.Second,
				WriteTimeout:      30 * time.Second,
				IdleTimeout:       60 * time.Second,
			}

			serveErr := make(chan error, 1)
			go func() {
				rt.logger.Info("paradash API listening", zap.String("addr", rt.cfg.Addr))
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serveErr <- err
				}
				close(serveErr)
			}()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(sigCh)

			select {
			case err := <-serveErr:
				if err != nil {
					return fmt.Errorf("server failed: %w", err)
				}
				return nil
			case sig := <-sigCh:
				rt.logger.Info("shutting down", zap.String("signal", sig.String()))
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				rt.logger.Error("shutdown error", zap.Error(err))
			}
			return nil
		},
	}
}

func newMigrateCommand(opts *rootOptions) *cobra.Command {
	var down int
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending migrations, or roll back with --down",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			rt, err := opts.open(ctx)
			if err != nil {
				return err
			}
			defer rt.close()

			if down <= 0 {
				if err := rt.migrate(ctx); err != nil {
					return err
				}
				rt.logger.Info("migrations applied")
				return nil
			}

			migrations, err := store.Migrations(rt.cfg.MigrationsDir)
			if err != nil {
				return err
			}
			reverted, err := store.RollbackMigrations(ctx, rt.db, migrations, down)
			if err != nil {
				return fmt.Errorf("rollback failed: %w", err)
			}
			rt.logger.Info("migrations rolled back", zap.Strings("versions", reverted))
			return nil
		},
	}
	cmd.Flags().IntVar(&down, "down", 0, "number of migrations to roll back")
	return cmd
}

func newSeedCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Replace all data with the sample data set",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			rt, err := opts.open(ctx)
			if err != nil {
				return err
			}
			defer rt.close()

			if err := rt.migrate(ctx); err != nil {
				return err
			}
			summary, err := seed.Run(ctx, store.NewPostgresStore(rt.db), rt.logger)
			if err != nil {
				return fmt.Errorf("seed failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d areas, %d projects, %d tasks, %d resources\n",
				summary.Areas, summary.Projects, summary.Tasks, summary.Resources)
			return nil
		},
	}
}

func newBackupCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "backup",
		Short: "Upload a JSON dump of every table to object storage",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			rt, err := opts.open(ctx)
			if err != nil {
				return err
			}
			defer rt.close()

			uploader, err := backup.NewMinioUploader(rt.cfg)
			if err != nil {
				return err
			}
			if err := uploader.EnsureBucket(ctx); err != nil {
				return err
			}
			result, err := backup.NewService(store.NewPostgresStore(rt.db), uploader, backup.WithLogger(rt.logger)).Run(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "uploaded %s (%d bytes)\n", result.Key, result.Size)
			return nil
		},
	}
}

package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"github.com/openconf/regdesk/api"
	"github.com/openconf/regdesk/config"
	"github.com/openconf/regdesk/mail"
	"github.com/openconf/regdesk/migrations"
	"github.com/openconf/regdesk/objstore"
	"github.com/openconf/regdesk/storage"
	bboltstorage "github.com/openconf/regdesk/storage/bbolt"
	memorystorage "github.com/openconf/regdesk/storage/memory"
	pgstorage "github.com/openconf/regdesk/storage/postgres"
	"github.com/openconf/regdesk/web"
)

var (
	listenAddr  string
	storageKind string
	dataDir     string
	databaseDSN string
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the registration service server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromEnv()
		if cmd.Flags().Changed("listen") {
			cfg.ListenAddr = listenAddr
		}
		if cmd.Flags().Changed("storage") {
			cfg.Storage = storageKind
		}
		if cmd.Flags().Changed("data-dir") {
			cfg.DataDir = dataDir
		}
		if cmd.Flags().Changed("database-dsn") {
			cfg.DatabaseDSN = databaseDSN
		}

		logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))

		repo, err := openRepository(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer repo.Close()

		var objects objstore.Store
		if cfg.S3Bucket != "" {
			s3, err := objstore.NewS3Store(cmd.Context(), cfg)
			if err != nil {
				return fmt.Errorf("configuring object storage: %w", err)
			}
			objects = s3
		} else {
			logger.Warn("no S3 bucket configured, uploads are kept in memory")
			objects = objstore.NewMemory()
		}

		a := api.New(repo, objects, cfg,
			api.WithLogger(logger),
			api.WithMailer(mail.NewHTTPSender(cfg)))

		r := chi.NewRouter()
		r.Use(middleware.Logger)
		r.Use(middleware.Recoverer)
		r.Use(api.SecurityHeaders)

		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("OK"))
		})
		r.Handle("/metrics", a.MetricsHandler())
		r.Mount("/api", a.Router())

		webHandler, err := web.Handler()
		if err != nil {
			return err
		}
		r.Handle("/*", webHandler)

		server := &http.Server{
			Addr:              cfg.ListenAddr,
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		}

		// Graceful shutdown on SIGINT/SIGTERM.
		done := make(chan error, 1)
		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				done <- fmt.Errorf("server failed: %w", err)
				return
			}
			done <- nil
		}()

		logger.Info("server started",
			"addr", cfg.ListenAddr, "storage", cfg.Storage, "version", Version)

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			logger.Info("shutting down", "signal", sig.String())
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.Shutdown(ctx); err != nil {
				return fmt.Errorf("server shutdown failed: %w", err)
			}
			return nil
		case err := <-done:
			return err
		}
	},
}

func openRepository(ctx context.Context, cfg *config.Config) (storage.Repository, error) {
	switch cfg.Storage {
	case "memory":
		return memorystorage.NewRepository(), nil
	case "bbolt":
		if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		repo, err := bboltstorage.NewRepositoryFromFile(cfg.DataDir+"/regdesk.db", nil)
		if err != nil {
			return nil, fmt.Errorf("opening bbolt storage: %w", err)
		}
		return repo, nil
	case "postgres":
		if cfg.DatabaseDSN == "" {
			return nil, errors.New("postgres storage requires a database DSN")
		}
		if err := migrations.Up(ctx, cfg.DatabaseDSN); err != nil {
			return nil, err
		}
		repo, err := pgstorage.NewRepositoryFromDSN(ctx, cfg.DatabaseDSN)
		if err != nil {
			return nil, fmt.Errorf("opening postgres storage: %w", err)
		}
		return repo, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage)
	}
}

func init() {
	rootCmd.AddCommand(serverCmd)
	serverCmd.Flags().StringVarP(&listenAddr, "listen", "l", ":8080", "Address to listen on")
	serverCmd.Flags().StringVar(&storageKind, "storage", "memory", "Storage backend: memory, bbolt or postgres")
	serverCmd.Flags().StringVar(&dataDir, "data-dir", "./data", "Directory for bbolt data")
	serverCmd.Flags().StringVar(&databaseDSN, "database-dsn", "", "Postgres connection string")
}

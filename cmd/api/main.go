package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/zhouzirui/gemini-chat/backend/internal/config"
	"github.com/zhouzirui/gemini-chat/backend/internal/handler"
	"github.com/zhouzirui/gemini-chat/backend/internal/logging"
	"github.com/zhouzirui/gemini-chat/backend/internal/service/ai"
	chatservice "github.com/zhouzirui/gemini-chat/backend/internal/service/chat"
	"github.com/zhouzirui/gemini-chat/backend/internal/store"
)

func main() {
	var (
		addr    string
		envFile string
	)

	rootCmd := &cobra.Command{
		Use:   "gemini-chat",
		Short: "Web chat backed by a Gemini chat session per browser session",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, envFile, addr)
		},
		SilenceUsage: true,
	}
	rootCmd.Flags().StringVar(&addr, "addr", "", "listen address, overrides PORT")
	rootCmd.Flags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, envFile, addr string) error {
	// Load .env file
	envErr := godotenv.Load(envFile)

	cfg, err := config.Load()
	if err != nil {
		logging.Setup("info", "console")
		log.Error().Err(err).Msg("failed to load configuration")
		return err
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	if envErr != nil {
		log.Warn().Err(envErr).Str("file", envFile).Msg("continuing with system environment variables only")
	}
	if addr != "" {
		cfg.Server.Addr = addr
	}

	archive, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DSN)
	if err != nil {
		log.Error().Err(err).Str("driver", cfg.Store.Driver).Msg("failed to open transcript store")
		return err
	}
	if archive != nil {
		defer func() {
			if err := archive.Close(); err != nil {
				log.Warn().Err(err).Msg("failed to close transcript store")
			}
		}()
	}

	connector, err := ai.NewConnector(cfg.AI)
	if err != nil {
		log.Error().Err(err).Msg("failed to build model connector")
		return err
	}
	if !cfg.AI.Enabled() {
		log.Warn().Str("provider", cfg.AI.Provider).Msg("credential not configured, submissions will report a configuration error")
	}

	opts := []chatservice.RegistryOption{
		chatservice.WithIdleTTL(cfg.Session.IdleTTL),
		chatservice.WithArchiveRetention(cfg.Store.Retention),
	}
	if archive != nil {
		opts = append(opts, chatservice.WithArchive(archive))
	}
	registry := chatservice.NewRegistry(connector, ai.SessionConfig(cfg.AI, cfg.Chat), opts...)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler.NewRouter(registry, cfg.Chat, cfg.Session),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return registry.Run(egCtx)
	})
	eg.Go(func() error {
		log.Info().
			Str("addr", srv.Addr).
			Str("provider", cfg.AI.Provider).
			Str("model", cfg.AI.ModelName()).
			Str("store", cfg.Store.Driver).
			Msg("gemini chat listening")
		return runServer(egCtx, srv)
	})

	if err := eg.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("server error")
		return err
	}
	log.Info().Msg("server shutdown complete")
	return nil
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

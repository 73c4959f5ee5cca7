package main

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

	"lexia/archive"
	"lexia/config"
	"lexia/controllers"
	"lexia/credentials"
	dbpkg "lexia/db"
	"lexia/observability"
	"lexia/relay"
	"lexia/router"
	"lexia/tools"
	"lexia/workers"

	"github.com/gin-gonic/gin"
	"github.com/jinzhu/gorm"
	"github.com/spf13/cobra"
)

var (
	version    = "1.0.0"
	configPath string
)

func main() {
	root := &cobra.Command{
		Use:          "lexia",
		Short:        "Léxia: atendimento automático Kommo ⇄ OpenAI",
		Long:         "Léxia receives Kommo CRM webhooks, answers customers with OpenAI and keeps the Kommo OAuth token alive.",
		SilenceUsage: true,
		RunE:         runServe,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML or JSON config file (env vars override it)")

	root.AddCommand(serveCmd())
	root.AddCommand(authCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the webhook server (default)",
		RunE:  runServe,
	}
}

func authCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage the Kommo OAuth token",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "url",
		Short: "Print the Kommo authorization URL",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap()
			if err != nil {
				return err
			}
			defer a.close()
			fmt.Fprintln(cmd.OutOrStdout(), a.manager.AuthorizationURL())
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "exchange CODE",
		Short: "Exchange an authorization code for tokens and store them",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap()
			if err != nil {
				return err
			}
			defer a.close()
			ts, err := a.manager.ExchangeCode(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "tokens salvos (expira em %d segundos, %.2f horas)\n", ts.ExpiresIn, float64(ts.ExpiresIn)/3600)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "refresh",
		Short: "Refresh the access token with the stored refresh token",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap()
			if err != nil {
				return err
			}
			defer a.close()
			if _, err := a.manager.RefreshAccessToken(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Token renovado com sucesso")
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Check the access token, refreshing it once if Kommo rejects it",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap()
			if err != nil {
				return err
			}
			defer a.close()
			if _, err := a.manager.Restore(cmd.Context()); err != nil {
				a.logger.Warn("stored tokens unreadable", "err", err)
			}
			if !a.manager.EnsureValidToken(cmd.Context()) {
				return errors.New("token do Kommo inválido: autorização manual necessária")
			}
			fmt.Fprintln(cmd.OutOrStdout(), "token válido")
			return nil
		},
	})

	return cmd
}

// app is everything both the server and the auth commands need.
type app struct {
	cfg      config.Configuration
	logger   *slog.Logger
	database *gorm.DB
	cell     *credentials.TokenCell
	kommo    *tools.KommoClient
	openai   *tools.OpenAIClient
	manager  *credentials.Manager
	closers  []func() error
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("close failed", "err", err)
		}
	}
}

func bootstrap() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("invalid configuration", "err", err)
		return nil, err
	}

	logger, closeLog, err := observability.New(cfg.LogLevel, cfg.LogFormat, cfg.LogPath)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: logger, closers: []func() error{closeLog}}

	if cfg.UsesDatabase() {
		database, err := dbpkg.Connect(cfg, logger)
		if err != nil {
			a.close()
			return nil, err
		}
		a.database = database
		a.closers = append(a.closers, database.Close)
	}

	var store credentials.TokenStore
	switch cfg.TokenStore {
	case "database":
		store = credentials.NewDBTokenStore(a.database)
	case "memory":
		store = credentials.NewMemoryTokenStore(nil)
	default:
		store = credentials.NewFileTokenStore(cfg.TokenFile)
	}

	a.cell = credentials.NewTokenCell(cfg.Kommo.AccessToken)
	a.kommo = tools.NewKommoClient(tools.KommoClientConfig{
		BaseURL: cfg.Kommo.APIBase(),
		Token:   a.cell,
		Logger:  logger,
	})
	a.manager = credentials.NewManager(credentials.ManagerConfig{
		BaseURL:      cfg.Kommo.APIBase(),
		ClientID:     cfg.Kommo.ClientID,
		ClientSecret: cfg.Kommo.ClientSecret,
		RedirectURI:  cfg.Kommo.RedirectURI,
		Store:        store,
		Cell:         a.cell,
		Validator:    a.kommo,
		Logger:       logger,
	})
	a.openai = tools.NewOpenAIClient(tools.OpenAIConfig{
		APIKey:       cfg.OpenAI.APIKey,
		BaseURL:      cfg.OpenAI.BaseURL,
		Model:        cfg.OpenAI.Model,
		SystemPrompt: cfg.OpenAI.SystemPrompt,
		Temperature:  cfg.OpenAI.Temperature,
		MaxTokens:    cfg.OpenAI.MaxTokens,
		MaxRetries:   2,
		Logger:       logger,
	})

	return a, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := bootstrap()
	if err != nil {
		return err
	}
	defer a.close()
	logger := a.logger

	logger.Info("starting Léxia", "version", version, "port", a.cfg.ApiPort)

	if restored, err := a.manager.Restore(ctx); err != nil {
		logger.Warn("stored tokens unreadable, using KOMMO_ACCESS_TOKEN", "err", err)
	} else if restored {
		logger.Info("using access token from token store", "store", a.cfg.TokenStore)
	}
	if !a.manager.EnsureValidToken(ctx) {
		logger.Warn("Kommo token may be invalid or expired; the server keeps running but sends may fail")
	}

	archives := archive.NewMulti(logger)
	if a.cfg.ArchiveEnabled("file") {
		archives.Add("file", archive.NewFileArchive(a.cfg.Archive.Dir))
	}
	if a.cfg.ArchiveEnabled("database") {
		archives.Add("database", archive.NewDBArchive(a.database))
	}
	if a.cfg.ArchiveEnabled("nats") {
		na, err := archive.DialNATS(ctx, a.cfg.Archive.NatsURL, a.cfg.Archive.NatsSubject, logger)
		if err != nil {
			logger.Warn("nats archive disabled", "err", err)
		} else {
			archives.Add("nats", na)
			a.closers = append(a.closers, na.Close)
		}
	}

	runner := workers.NewRunner(context.Background(), 0, logger)
	workers.StartTokenKeeper(ctx, a.cfg.TokenCheckInterval, a.manager.EnsureValidToken, logger)

	ctl := &controllers.Controller{
		Credentials: a.manager,
		Replier:     a.openai,
		Relay: &relay.Relay{
			Replier:             a.openai,
			Gateway:             a.kommo,
			Refresher:           a.manager,
			RetryOnUnauthorized: a.cfg.Kommo.RetryOnUnauthorized,
			Logger:              logger.With("component", "relay"),
		},
		Runner:      runner,
		RedirectURI: a.cfg.Kommo.RedirectURI,
		Version:     version,
		Started:     time.Now(),
		Logger:      logger,
	}
	if archives.Len() > 0 {
		ctl.Archive = archives
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	if err := router.Initialize(r, a.cfg, ctl, a.database, logger); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              ":" + a.cfg.ApiPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server online", "addr", srv.Addr, "webhook", "POST /webhook/kommo")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", "err", err)
	}
	if err := runner.Wait(shutdownCtx); err != nil {
		logger.Warn("in-flight webhooks abandoned", "err", err)
	}
	logger.Info("server stopped")
	return nil
}

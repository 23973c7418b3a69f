package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/djobea/djobea-ai/internal/api"
	"github.com/djobea/djobea-ai/internal/config"
	"github.com/djobea/djobea-ai/internal/conversation"
	"github.com/djobea/djobea-ai/internal/janitor"
	"github.com/djobea/djobea-ai/internal/llm"
	"github.com/djobea/djobea-ai/internal/models"
	"github.com/djobea/djobea-ai/internal/notify"
	"github.com/djobea/djobea-ai/internal/scheduler"
	"github.com/djobea/djobea-ai/internal/storage"
)

var version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "djobea",
		Short: "Djobea AI — conversational backend for home-service requests over WhatsApp",
	}

	var configPath string
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file")

	rootCmd.AddCommand(serveCmd(&configPath))
	rootCmd.AddCommand(migrateCmd(&configPath))
	rootCmd.AddCommand(providersCmd(&configPath))
	rootCmd.AddCommand(statsCmd(&configPath))
	rootCmd.AddCommand(secretCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the Djobea AI server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			log := setupLogger(cfg.Logging)

			store, err := setupStorage(cfg.Storage, log)
			if err != nil {
				return fmt.Errorf("failed to setup storage: %w", err)
			}
			defer store.Close()

			if err := store.Migrate(context.Background()); err != nil {
				return fmt.Errorf("failed to run migrations: %w", err)
			}
			log.Info().Msg("database migrations completed")

			providers := buildProviders(cfg.LLM, log)
			if len(providers) == 0 {
				log.Warn().Msg("no LLM providers configured, every reply will use the static fallback")
			}
			tracker := llm.NewHealthTracker(providers, cfg.LLM.FailureThreshold, cfg.LLM.RateLimitCooldown)
			router := llm.NewRouter(tracker, cfg.LLM.Timeout, log)

			post := conversation.NewPostProcessor(cfg.Conversation.MaxSuggestions, log)
			engine := conversation.NewEngine(router, post, cfg.LLM.FallbackReply, 0, log)

			transport, err := notify.NewTransport(cfg.Notify, log)
			if err != nil {
				return fmt.Errorf("failed to setup notification transport: %w", err)
			}
			queue := notify.NewService(store, log)
			pool := notify.NewPool(cfg.Notify, store, transport, log)

			supervisor := scheduler.NewSupervisor(cfg.Proactive, store, queue, log)

			sweeper, err := janitor.New(cfg.Retention, cfg.Notify.TTL, store, log)
			if err != nil {
				return fmt.Errorf("failed to setup janitor: %w", err)
			}

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			pool.Start(ctx)
			supervisor.Start(ctx)
			sweeper.Start()

			server := api.NewServer(cfg.Server, api.Deps{
				Store:        store,
				Engine:       engine,
				Queue:        queue,
				Supervisor:   supervisor,
				Tracker:      tracker,
				HistoryLimit: cfg.Conversation.HistoryLimit,
			}, log)
			go func() {
				if err := server.Start(); err != nil && err != http.ErrServerClosed {
					log.Fatal().Err(err).Msg("server error")
				}
			}()

			log.Info().
				Str("version", version).
				Int("port", cfg.Server.Port).
				Int("providers", len(providers)).
				Int("workers", cfg.Notify.Workers).
				Str("transport", transport.Name()).
				Msg("Djobea AI is running")

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
			<-quit

			log.Info().Msg("shutting down...")

			if err := server.Shutdown(10 * time.Second); err != nil {
				log.Error().Err(err).Msg("server shutdown error")
			}

			supervisor.Stop()
			pool.Stop()
			sweeper.Stop()

			log.Info().Msg("Djobea AI stopped")
			return nil
		},
	}
}

func migrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			log := setupLogger(cfg.Logging)

			store, err := setupStorage(cfg.Storage, log)
			if err != nil {
				return fmt.Errorf("failed to setup storage: %w", err)
			}
			defer store.Close()

			if err := store.Migrate(context.Background()); err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			log.Info().Msg("migrations completed successfully")
			return nil
		},
	}
}

func providersCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "providers",
		Short: "Inspect configured LLM providers",
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Probe every configured provider with a live health check",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			log := setupLogger(cfg.Logging)
			providers := buildProviders(cfg.LLM, log)
			if len(providers) == 0 {
				fmt.Println("No providers configured.")
				return nil
			}

			ctx, cancel := context.WithTimeout(context.Background(), cfg.LLM.Timeout)
			defer cancel()

			results := make([]error, len(providers))
			g, gctx := errgroup.WithContext(ctx)
			for i, rp := range providers {
				i, rp := i, rp
				g.Go(func() error {
					results[i] = rp.Provider.HealthCheck(gctx)
					return nil
				})
			}
			g.Wait()

			for i, rp := range providers {
				if results[i] != nil {
					fmt.Printf("  %-10s priority=%d  UNHEALTHY  %v\n", rp.Provider.Name(), rp.Priority, results[i])
					continue
				}
				fmt.Printf("  %-10s priority=%d  ok\n", rp.Provider.Name(), rp.Priority)
			}
			return nil
		},
	}

	resetCmd := &cobra.Command{
		Use:   "reset <name>",
		Short: "Clear a provider's failure state on the running server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			// Tracker state lives in the serve process, so reset goes
			// through its API rather than touching storage.
			url := fmt.Sprintf("http://%s:%d/api/v1/providers/%s/reset", cfg.Server.Host, cfg.Server.Port, args[0])
			client := &http.Client{Timeout: 10 * time.Second}
			resp, err := client.Post(url, "application/json", nil)
			if err != nil {
				return fmt.Errorf("failed to reach server: %w", err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
				return fmt.Errorf("reset rejected: %s: %s", resp.Status, strings.TrimSpace(string(body)))
			}
			fmt.Printf("provider %s reset\n", args[0])
			return nil
		},
	}

	cmd.AddCommand(statusCmd)
	cmd.AddCommand(resetCmd)
	return cmd
}

func statsCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show conversation and notification stats",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, cleanup, err := storeFromConfig(*configPath)
			if err != nil {
				return err
			}
			defer cleanup()

			stats, err := store.GetStats(context.Background())
			if err != nil {
				return fmt.Errorf("failed to get stats: %w", err)
			}

			out, _ := json.MarshalIndent(stats, "", "  ")
			fmt.Println(string(out))
			return nil
		},
	}
}

func secretCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "secret",
		Short: "Generate a webhook signing secret",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(models.NewSecret())
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("Djobea AI v%s\n", version)
		},
	}
}

func buildProviders(cfg config.LLMConfig, log zerolog.Logger) []llm.RankedProvider {
	type candidate struct {
		name string
		cfg  config.ProviderConfig
		make func(llm.Options) llm.Provider
	}

	candidates := []candidate{
		{"anthropic", cfg.Anthropic, func(o llm.Options) llm.Provider { return llm.NewAnthropic(o) }},
		{"gemini", cfg.Gemini, func(o llm.Options) llm.Provider { return llm.NewGemini(o) }},
		{"openai", cfg.OpenAI, func(o llm.Options) llm.Provider { return llm.NewOpenAI(o) }},
	}

	var out []llm.RankedProvider
	for _, c := range candidates {
		if !c.cfg.Enabled {
			continue
		}
		if c.cfg.APIKey == "" {
			log.Warn().Str("provider", c.name).Msg("provider enabled but no api key set, skipping")
			continue
		}
		out = append(out, llm.RankedProvider{
			Provider: c.make(llm.Options{
				APIKey:    c.cfg.APIKey,
				Model:     c.cfg.Model,
				BaseURL:   c.cfg.BaseURL,
				MaxTokens: c.cfg.MaxTokens,
				Timeout:   cfg.Timeout,
			}),
			Priority: c.cfg.Priority,
		})
	}
	return out
}

func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == "console" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).
			With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func setupStorage(cfg config.StorageConfig, log zerolog.Logger) (storage.Storage, error) {
	switch cfg.Driver {
	case "sqlite":
		log.Info().Str("path", cfg.SQLite.Path).Msg("using SQLite storage")
		return storage.NewSQLite(cfg.SQLite.Path)
	default:
		return nil, fmt.Errorf("unsupported storage driver: %s", cfg.Driver)
	}
}

func storeFromConfig(configPath string) (storage.Storage, func(), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	log := setupLogger(cfg.Logging)
	store, err := setupStorage(cfg.Storage, log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to setup storage: %w", err)
	}

	if err := store.Migrate(context.Background()); err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, func() { store.Close() }, nil
}

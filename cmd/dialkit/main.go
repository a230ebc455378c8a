// Package main provides the CLI entry point for the dialkit voice
// assistant service.
//
// dialkit answers Twilio voice webhooks with a staged, bilingual
// (English/Hindi) conversation driven by a local or hosted language
// model, and can place outbound test calls.
//
// # Basic Usage
//
// Start the webhook server:
//
//	dialkit serve --config dialkit.yaml
//
// Place an outbound test call:
//
//	dialkit call --to +15551234567 --config dialkit.yaml
//
// # Environment Variables
//
//   - DIALKIT_CONFIG: Path to configuration file (default: dialkit.yaml)
//   - TWILIO_ACCOUNT_SID / TWILIO_AUTH_TOKEN: Twilio credentials,
//     referenced from the config file via ${VAR} expansion
//   - OPENAI_API_KEY: API key when the openai generator is selected
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/dialkit/dialkit/internal/config"
	"github.com/dialkit/dialkit/internal/generator"
	"github.com/dialkit/dialkit/internal/observability"
	"github.com/dialkit/dialkit/internal/server"
	"github.com/dialkit/dialkit/internal/sessions"
	"github.com/dialkit/dialkit/internal/turns"
	"github.com/dialkit/dialkit/internal/voice"
)

// Build information - populated by ldflags during build.
//
// Example build command:
//
//	go build -ldflags "-X main.version=v1.0.0 -X main.commit=$(git rev-parse HEAD) -X main.date=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := buildRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "dialkit",
		Short: "Bilingual voice assistant over Twilio webhooks",
		Long: "dialkit runs a webhook service that carries automated phone\n" +
			"conversations: it tracks per-call sessions, advances a staged\n" +
			"dialog, and generates replies with a language model.",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPath(), "path to configuration file")

	rootCmd.AddCommand(buildServeCmd(&configPath))
	rootCmd.AddCommand(buildCallCmd(&configPath))
	rootCmd.AddCommand(buildVersionCmd())
	return rootCmd
}

func defaultConfigPath() string {
	if path := os.Getenv("DIALKIT_CONFIG"); path != "" {
		return path
	}
	return "dialkit.yaml"
}

// loadConfig tolerates a missing default config file so the server can
// run on pure defaults plus environment variables.
func loadConfig(path string) (*config.Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) && path == "dialkit.yaml" {
		return config.Load("")
	}
	return config.Load(path)
}

func buildServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the voice webhook server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg)
		},
	}
}

func runServe(ctx context.Context, cfg *config.Config) error {
	logger := observability.NewLogger(observability.LogConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	metrics := observability.NewMetrics(nil)

	store, err := newStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	locks := sessions.NewLockManager(cfg.Session.LockTimeout)
	defer locks.Close()
	locking := sessions.NewLockingStore(store, locks, cfg.Session.LockTimeout)

	gen, err := newGenerator(cfg)
	if err != nil {
		return err
	}

	orch := turns.New(locking, gen, turns.Config{
		ContextWindow:    cfg.Session.ContextWindow,
		GeneratorTimeout: cfg.Generator.Timeout,
		Logger:           logger.WithComponent("turns"),
		Metrics:          metrics,
	})

	provider, err := newProvider(cfg)
	if err != nil {
		return err
	}

	sweeper := sessions.NewSweeper(locking, sessions.SweeperConfig{
		IdleTimeout: cfg.Session.IdleTimeout,
		Interval:    cfg.Session.SweepInterval,
		Logger:      logger.WithComponent("sweeper").Slog(),
		OnSweep: func(removed int) {
			metrics.SweepEvictions.Add(float64(removed))
			if counter, ok := store.(interface{ Len() int }); ok {
				metrics.ActiveSessions.Set(float64(counter.Len()))
			}
		},
	})
	if err := sweeper.Start(ctx); err != nil {
		return fmt.Errorf("start sweeper: %w", err)
	}
	defer sweeper.Stop()

	srv := server.New(server.Config{
		Host:             cfg.Server.Host,
		Port:             cfg.Server.Port,
		PublicURL:        cfg.Server.PublicURL,
		VerifySignatures: cfg.Twilio.VerifySignatures,
		Logger:           logger,
		Metrics:          metrics,
	}, provider, orch)

	if err := srv.Start(ctx); err != nil {
		return err
	}

	logger.Info(ctx, "dialkit started",
		"version", version,
		"generator", gen.Name(),
		"store", cfg.Session.Store,
	)

	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-sigCtx.Done()

	logger.Info(ctx, "shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Stop(shutdownCtx)
}

func buildCallCmd(configPath *string) *cobra.Command {
	var to, webhookURL string

	cmd := &cobra.Command{
		Use:   "call",
		Short: "Place an outbound test call",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			if to == "" {
				return fmt.Errorf("--to is required")
			}
			if cfg.Twilio.PhoneNumber == "" {
				return fmt.Errorf("twilio.phone_number is not configured")
			}
			if webhookURL == "" {
				webhookURL = cfg.WebhookURL()
			}
			if webhookURL == "" {
				return fmt.Errorf("server.public_url or --url is required for outbound calls")
			}

			provider, err := newProvider(cfg)
			if err != nil {
				return err
			}

			result, err := provider.InitiateCall(cmd.Context(), &voice.InitiateCallInput{
				CallID:     uuid.New().String(),
				From:       cfg.Twilio.PhoneNumber,
				To:         to,
				WebhookURL: webhookURL,
			})
			if err != nil {
				return err
			}

			fmt.Printf("call %s: %s\n", result.ProviderCallID, result.Status)
			return nil
		},
	}
	cmd.Flags().StringVar(&to, "to", "", "destination phone number in E.164 format")
	cmd.Flags().StringVar(&webhookURL, "url", "", "voice webhook URL (defaults to server.public_url + /voice)")
	return cmd
}

func buildVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("dialkit %s (commit %s, built %s)\n", version, commit, date)
		},
	}
}

func newStore(cfg *config.Config) (sessions.Store, error) {
	switch cfg.Session.Store {
	case "sqlite":
		return sessions.NewSQLiteStore(cfg.Session.SQLitePath)
	default:
		return sessions.NewMemoryStore(), nil
	}
}

func newGenerator(cfg *config.Config) (generator.Generator, error) {
	switch cfg.Generator.Provider {
	case "openai":
		return generator.NewOpenAIProvider(generator.OpenAIConfig{
			APIKey:  cfg.Generator.APIKey,
			BaseURL: cfg.Generator.BaseURL,
			Model:   cfg.Generator.Model,
		}), nil
	default:
		return generator.NewOllamaProvider(generator.OllamaConfig{
			BaseURL: cfg.Generator.BaseURL,
			Model:   cfg.Generator.Model,
			Timeout: cfg.Generator.Timeout,
		}), nil
	}
}

func newProvider(cfg *config.Config) (voice.Provider, error) {
	return voice.NewTwilioProvider(voice.TwilioConfig{
		AccountSID: cfg.Twilio.AccountSID,
		AuthToken:  cfg.Twilio.AuthToken,
	})
}

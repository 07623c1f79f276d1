// Command stagingctl runs ad hoc checks against the Golden Path staging
// environment: service health and a single golden-path smoke exchange.
// Exit code is 0 on success, 1 on any failure, so CI can gate on it.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	staging "github.com/goldenpath/goldenpath/e2e/go"
	"github.com/goldenpath/goldenpath/e2e/go/auth"
	"github.com/goldenpath/goldenpath/e2e/go/ws"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type cliOptions struct {
	backendURL   string
	authURL      string
	suite        string
	timeout      time.Duration
	scenarioFile string
	verbose      bool
}

func newRootCmd() *cobra.Command {
	opts := &cliOptions{}
	root := &cobra.Command{
		Use:           "stagingctl",
		Short:         "Ad hoc checks against the Golden Path staging environment",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.backendURL, "backend-url", "", "staging backend base URL (default: STAGING_BACKEND_URL)")
	root.PersistentFlags().StringVar(&opts.authURL, "auth-url", "", "staging auth base URL (default: STAGING_AUTH_URL)")
	root.PersistentFlags().StringVar(&opts.suite, "suite", "stagingctl", "X-Test-Suite tag for staging log correlation")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 90*time.Second, "overall command timeout")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging")
	root.AddCommand(newHealthCmd(opts), newSmokeCmd(opts))
	return root
}

func newLogger(verbose bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()
}

func loadConfig(opts *cliOptions) staging.Config {
	cfg := staging.LoadConfig()
	if opts.backendURL != "" {
		cfg.BackendURL = opts.backendURL
	}
	if opts.authURL != "" {
		cfg.AuthURL = opts.authURL
	}
	cfg.TestSuite = opts.suite
	return cfg
}

func newHealthCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Probe staging service health endpoints",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := newLogger(opts.verbose)
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()

			client, err := staging.NewClient(loadConfig(opts))
			if err != nil {
				logger.Error().Err(err).Msg("invalid configuration")
				return err
			}
			report := client.Health.Check(ctx)
			if report.Bypassed {
				logger.Warn().Msg("health check bypassed (BYPASS_STAGING_HEALTH_CHECK)")
				return nil
			}
			for _, svc := range report.Services {
				event := logger.Info()
				if !svc.Healthy {
					event = logger.Error()
				}
				event.
					Str("service", svc.Service).
					Str("url", svc.URL).
					Int("status", svc.Status).
					Dur("latency", svc.Latency).
					Str("error", svc.Error).
					Msg("health probe")
			}
			if !report.AllHealthy() {
				return fmt.Errorf("staging unhealthy")
			}
			logger.Info().Msg("all staging services healthy")
			return nil
		},
	}
}

func newSmokeCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "smoke",
		Short: "Run a single golden-path exchange against staging",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := newLogger(opts.verbose)
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()
			return runSmoke(ctx, logger, opts)
		},
	}
	cmd.Flags().StringVar(&opts.scenarioFile, "scenarios", "", "YAML scenario file (default: built-in smoke scenario)")
	return cmd
}

func runSmoke(ctx context.Context, logger zerolog.Logger, opts *cliOptions) error {
	cfg := loadConfig(opts)
	if err := cfg.Validate(); err != nil {
		logger.Error().Err(err).Msg("invalid configuration")
		return err
	}
	if !cfg.ValidateConfiguration() {
		logger.Warn().Msg("no bypass key and no JWT secret: auth will run on an unsigned local fallback")
	}

	scenarios := staging.DefaultScenarios()
	if opts.scenarioFile != "" {
		var err error
		scenarios, err = staging.LoadScenarios(opts.scenarioFile)
		if err != nil {
			logger.Error().Err(err).Msg("load scenarios")
			return err
		}
	}
	if len(scenarios) == 0 {
		return fmt.Errorf("no scenarios in %s", opts.scenarioFile)
	}
	scenario := scenarios[0]
	logger.Info().Str("scenario", scenario.Name).Str("agent", scenario.Agent).Msg("running smoke scenario")

	authClient, err := auth.NewClient(auth.Config{
		BaseURL:     cfg.AuthURL,
		BypassKey:   cfg.BypassKey,
		JWTSecret:   cfg.JWTSecret,
		Environment: cfg.Environment,
		OnFallback: func(reason string, err error) {
			logger.Warn().Err(err).Str("reason", reason).Msg("auth fell back to local token")
		},
	})
	if err != nil {
		return err
	}
	bundle, err := authClient.GetAuthToken(ctx, auth.TokenRequest{Email: "smoke@goldenpath.dev"})
	if err != nil {
		logger.Error().Err(err).Msg("auth failed")
		return err
	}
	logger.Info().Str("source", string(bundle.Source)).Str("user_id", bundle.User.ID).Msg("authenticated")

	wsURL, err := cfg.WebSocketURL()
	if err != nil {
		return err
	}
	session, err := ws.Dial(ctx, ws.Config{
		URL:         wsURL,
		AccessToken: bundle.AccessToken,
		Environment: cfg.Environment,
		TestSuite:   opts.suite,
		OnEvent: func(e ws.Event) {
			logger.Debug().Str("type", string(e.Kind)).Msg("event")
		},
	})
	if err != nil {
		logger.Error().Err(err).Msg("websocket dial failed")
		return err
	}
	defer session.Close()

	req := ws.NewAgentRequest(scenario.Agent, scenario.Message, bundle.User.ID)
	if err := session.Send(req); err != nil {
		return err
	}
	events, err := session.Collect(ctx, ws.CollectOptions{
		Until:   ws.EventAgentCompleted,
		Timeout: cfg.AgentResponseTimeout,
	})
	if err != nil {
		logger.Error().Err(err).Interface("seen", ws.Kinds(events)).Msg("event collection failed")
		return err
	}
	if err := ws.VerifyGoldenPath(events); err != nil {
		logger.Error().Err(err).Msg("golden path broken")
		return err
	}

	content := ws.CompletedContent(events)
	score := staging.ScoreResponse(content)
	logger.Info().
		Int("events", len(events)).
		Int("response_length", score.Length).
		Int("score", score.Score).
		Strs("signals", score.Signals).
		Msg("golden path completed")
	if scenario.Expect.MinLength > 0 && score.Length < scenario.Expect.MinLength {
		return fmt.Errorf("response too short: %d < %d", score.Length, scenario.Expect.MinLength)
	}
	if !score.MeetsBar(scenario.Expect.MinScore) {
		return fmt.Errorf("business value score %d below bar %d", score.Score, scenario.Expect.MinScore)
	}
	return nil
}

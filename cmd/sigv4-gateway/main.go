// Command sigv4-gateway runs the SigV4 authenticating reverse proxy.
package main

import (
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/danthegoodman1/IAMTheService/config"
	"github.com/danthegoodman1/IAMTheService/internal/credentials"
	"github.com/danthegoodman1/IAMTheService/internal/gatewaymetrics"
	"github.com/danthegoodman1/IAMTheService/internal/pipeline"
	"github.com/danthegoodman1/IAMTheService/internal/proxy"
	"github.com/danthegoodman1/IAMTheService/internal/ratelimit"
	"github.com/danthegoodman1/IAMTheService/internal/upstream"
)

// Version is stamped at build time with -ldflags.
var Version = "dev"

func main() {
	root := &cobra.Command{
		Use:           "sigv4-gateway",
		Short:         "SigV4 authenticating reverse proxy",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, _ := cmd.Flags().GetString("addr")
			logLevel, _ := cmd.Flags().GetString("log-level")
			return run(addr, logLevel)
		},
	}
	bindFlags(root.Flags())
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the gateway version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(Version)
		},
	})

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// bindFlags registers the flag overrides for the env-driven config.
func bindFlags(fs *pflag.FlagSet) {
	fs.String("addr", "", "listen address (overrides GATEWAY_ADDR)")
	fs.String("log-level", "", "log level (overrides GATEWAY_LOG_LEVEL)")
}

func run(addrOverride, logLevelOverride string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if addrOverride != "" {
		cfg.Addr = addrOverride
	}
	if logLevelOverride != "" {
		cfg.LogLevel = logLevelOverride
	}

	logger := newLogger(cfg.LogLevel)

	store, closeStore, err := openCredentialStore(cfg, logger)
	if err != nil {
		return err
	}

	router, err := buildRouter(cfg)
	if err != nil {
		closeStore()
		return err
	}

	metrics := gatewaymetrics.New(prometheus.DefaultRegisterer)
	limiter := ratelimit.New(cfg.RateLimitCapacity, cfg.RateLimitWindow)

	pipe := pipeline.New(pipeline.Config{
		MaxBodyBytes:      cfg.MaxRequestBodyBytes,
		RequestTimeout:    cfg.RequestTimeout,
		AdmissionCapacity: cfg.AdmissionCapacity,
	}, pipeline.Deps{
		Limiter:     limiter,
		Credentials: store,
		Router:      router,
		Forwarder:   proxy.NewForwarder(),
		Metrics:     metrics,
		ClientIP: func(r *http.Request) string {
			return clientIP(r, cfg.TrustedProxyCIDRs)
		},
		Logger: logger,
	})

	srv := newServer(cfg, logger, pipe, store, metrics)
	err = srv.run()
	closeStore()
	return err
}

func newLogger(level string) zerolog.Logger {
	parsed, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		parsed = zerolog.InfoLevel
	}
	return zerolog.New(os.Stderr).Level(parsed).With().Timestamp().Logger()
}

// openCredentialStore prefers a static credential map from the environment
// and falls back to the encrypted badger store under the data directory.
func openCredentialStore(cfg config.Config, logger zerolog.Logger) (credentials.Store, func(), error) {
	if strings.TrimSpace(os.Getenv(config.CredentialsEnvVar)) != "" {
		store, err := credentials.NewStaticStoreFromEnv(config.CredentialsEnvVar)
		if err != nil {
			return nil, nil, fmt.Errorf("load static credentials: %w", err)
		}
		logger.Info().Int("credentials", len(store.AccessKeyIDs())).Msg("using static credential store")
		return store, func() {}, nil
	}

	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return nil, nil, fmt.Errorf("create data directory %q: %w", cfg.DataDir, err)
	}
	store, err := credentials.OpenBadgerStore(cfg.DataDir, cfg.MasterKey)
	if err != nil {
		return nil, nil, fmt.Errorf("open credential store: %w", err)
	}
	logger.Info().Str("data_dir", cfg.DataDir).Msg("using badger credential store")
	closeStore := func() {
		if err := store.Close(); err != nil {
			logger.Warn().Err(err).Msg("close credential store")
		}
	}
	return store, closeStore, nil
}

// buildRouter prefers an explicit host map from the environment and falls
// back to service-label routing against the configured endpoint suffix.
func buildRouter(cfg config.Config) (upstream.Router, error) {
	if strings.TrimSpace(os.Getenv(config.UpstreamsEnvVar)) != "" {
		router, err := upstream.NewHostMapRouterFromEnv(config.UpstreamsEnvVar)
		if err != nil {
			return nil, fmt.Errorf("load upstream map: %w", err)
		}
		return router, nil
	}
	return upstream.NewServiceRouter(cfg.ServiceHostSuffix, nil)
}

package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/wayfarer-app/wayfarer/internal/api"
	"github.com/wayfarer-app/wayfarer/internal/atlas"
	"github.com/wayfarer-app/wayfarer/internal/identity"
	"github.com/wayfarer-app/wayfarer/internal/lockfile"
	"github.com/wayfarer-app/wayfarer/internal/session"
	"github.com/wayfarer-app/wayfarer/internal/store"
	"github.com/wayfarer-app/wayfarer/internal/util"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for Wayfarer state data
	DefaultStateDir = "/var/lib/wayfarer"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "wayfarer.db"
)

func main() {
	initializeLogger()

	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(config)

	// One daemon per state directory; a second instance would corrupt the
	// SQLite store.
	lock, err := lockfile.AcquireLock(*flags.stateDir)
	if err != nil {
		slog.Error("Failed to acquire state directory lock", "error", err)
		os.Exit(1)
	}
	defer lock.Release()

	st, err := buildStore(flags)
	if err != nil {
		slog.Error("Failed to initialize store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	idClient := identity.NewClient(buildIdentityOptions(flags)...)
	deps := session.Deps{
		Identity: idClient,
		Profiles: idClient,
		Atlas:    atlas.NewClient(buildAtlasOptions(flags)...),
		Store:    st,
	}
	manager := session.NewManager(loadSessionConfig(), deps)

	// Rebuild sessions that were mid-onboarding when the last process died.
	if err := session.RecoverSessions(context.Background(), manager); err != nil {
		slog.Error("Session recovery failed, continuing with empty registry", "error", err)
	}

	server := api.NewServer(manager, buildAPIOptions(flags)...)

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		slog.Info("Shutdown signal received")
		if err := server.Shutdown(context.Background()); err != nil {
			slog.Error("Graceful shutdown failed", "error", err)
		}
	}()

	slog.Info("Bootstrapping Wayfarer session service")
	if err := server.Run(); err != nil {
		slog.Error("Wayfarer failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("Wayfarer exited successfully")
}

// Config holds environment configuration
type Config struct {
	DatabaseURL     string
	StateDir        string
	APIAddr         string
	IdentityBaseURL string
	AtlasBaseURL    string
	Debug           bool
}

// Flags holds command line flag values
type Flags struct {
	stateDir        *string
	dbDSN           *string
	apiAddr         *string
	identityBaseURL *string
	atlasBaseURL    *string
}

// initializeLogger sets up structured logging with the level taken from the environment
func initializeLogger() {
	level := slog.LevelInfo
	if util.ParseBoolEnv("WAYFARER_DEBUG", false) {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		StateDir:        os.Getenv("WAYFARER_STATE_DIR"),
		APIAddr:         os.Getenv("API_ADDR"),
		IdentityBaseURL: os.Getenv("IDENTITY_BASE_URL"),
		AtlasBaseURL:    os.Getenv("ATLAS_BASE_URL"),
	}

	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No WAYFARER_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}

	// If no database URL is provided, default to SQLite in the state directory
	if config.DatabaseURL == "" {
		config.DatabaseURL = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", config.DatabaseURL)
	}

	slog.Debug("environment variables loaded",
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"WAYFARER_STATE_DIR", config.StateDir,
		"API_ADDR", config.APIAddr,
		"IDENTITY_BASE_URL", config.IdentityBaseURL,
		"ATLAS_BASE_URL", config.AtlasBaseURL)

	return config
}

// loadSessionConfig reads the orchestration timing policies from the
// environment. The poll caps are product decisions, kept configurable.
func loadSessionConfig() session.Config {
	cfg := session.DefaultConfig()
	cfg.ProfilePoll.Interval = util.ParseDurationEnv("PROFILE_POLL_INTERVAL", cfg.ProfilePoll.Interval)
	cfg.ProfilePoll.MaxAttempts = util.ParseIntEnv("PROFILE_POLL_ATTEMPTS", cfg.ProfilePoll.MaxAttempts)
	cfg.TransitionPoll.Interval = util.ParseDurationEnv("TRANSITION_POLL_INTERVAL", cfg.TransitionPoll.Interval)
	cfg.TransitionPoll.MaxAttempts = util.ParseIntEnv("TRANSITION_POLL_ATTEMPTS", cfg.TransitionPoll.MaxAttempts)
	cfg.CompletionGrace = util.ParseDurationEnv("COMPLETION_GRACE", cfg.CompletionGrace)
	cfg.LocationDelay = util.ParseDurationEnv("LOCATION_MODAL_DELAY", cfg.LocationDelay)
	return cfg
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		stateDir:        flag.String("state-dir", config.StateDir, "state directory for Wayfarer data (overrides $WAYFARER_STATE_DIR)"),
		dbDSN:           flag.String("db-dsn", config.DatabaseURL, "database DSN for the session store (overrides $DATABASE_URL)"),
		apiAddr:         flag.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
		identityBaseURL: flag.String("identity-base-url", config.IdentityBaseURL, "identity API base URL (overrides $IDENTITY_BASE_URL)"),
		atlasBaseURL:    flag.String("atlas-base-url", config.AtlasBaseURL, "map data API base URL (overrides $ATLAS_BASE_URL)"),
	}

	flag.Parse()

	slog.Debug("flags parsed",
		"stateDir", *flags.stateDir,
		"dbDSN_set", *flags.dbDSN != "",
		"apiAddr", *flags.apiAddr,
		"identityBaseURL", *flags.identityBaseURL,
		"atlasBaseURL", *flags.atlasBaseURL)

	return flags
}

// buildStore constructs the session store from the configured DSN.
func buildStore(flags Flags) (store.Store, error) {
	dsn := *flags.dbDSN
	if dsn == "" {
		slog.Debug("No database DSN provided, using in-memory store")
		return store.NewInMemoryStore(), nil
	}
	if store.DetectDSNType(dsn) == "postgres" {
		slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL store")
		return store.NewPostgresStore(store.WithPostgresDSN(dsn))
	}
	slog.Debug("Detected SQLite DSN, configuring SQLite store", "db_path", dsn)
	return store.NewSQLiteStore(store.WithSQLiteDSN(dsn))
}

// buildIdentityOptions constructs identity client configuration options
func buildIdentityOptions(flags Flags) []identity.Option {
	var opts []identity.Option
	if *flags.identityBaseURL != "" {
		opts = append(opts, identity.WithBaseURL(*flags.identityBaseURL))
	}
	return opts
}

// buildAtlasOptions constructs atlas client configuration options
func buildAtlasOptions(flags Flags) []atlas.Option {
	var opts []atlas.Option
	if *flags.atlasBaseURL != "" {
		opts = append(opts, atlas.WithBaseURL(*flags.atlasBaseURL))
	}
	return opts
}

// buildAPIOptions constructs API server configuration options
func buildAPIOptions(flags Flags) []api.Option {
	var opts []api.Option
	if *flags.apiAddr != "" {
		opts = append(opts, api.WithAddr(*flags.apiAddr))
	}
	return opts
}

package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/teemow/goaltiers/internal/instrumentation"
	"github.com/teemow/goaltiers/internal/logging"
	"github.com/teemow/goaltiers/internal/tasks"
)

// StorageConfig holds the task snapshot backend configuration
type StorageConfig struct {
	// Type is the storage backend type: "memory" or "valkey" (default: "memory")
	Type string

	// Valkey configuration (used when Type is "valkey")
	Valkey tasks.ValkeyConfig

	// SQLitePath is the database file (used when Type is "sqlite")
	SQLitePath string

	// Location resolves date-only due dates (default: local time zone)
	Location *time.Location
}

// MetricsConfig holds configuration for the metrics server
type MetricsConfig struct {
	// Enabled determines whether to start the metrics server (default: true)
	Enabled bool

	// Addr is the address for the metrics server (e.g., ":9090")
	Addr string
}

// LogConfig selects the process logger
type LogConfig struct {
	Debug  bool
	Format string
}

// addStorageFlags registers the task storage flags shared by serve and mcp.
func addStorageFlags(cmd *cobra.Command, cfg *StorageConfig) {
	cmd.Flags().StringVar(&cfg.Type, "task-storage", string(tasks.StorageTypeMemory), "Task storage type: memory, valkey or sqlite. Can also use TASK_STORAGE_TYPE env var.")
	cmd.Flags().StringVar(&cfg.Valkey.URL, "valkey-url", "", "Valkey server address (e.g., valkey.namespace.svc:6379). Can also use VALKEY_URL env var.")
	cmd.Flags().StringVar(&cfg.Valkey.Password, "valkey-password", "", "Valkey authentication password. Can also use VALKEY_PASSWORD env var.")
	cmd.Flags().BoolVar(&cfg.Valkey.TLSEnabled, "valkey-tls", false, "Enable TLS for Valkey connections. Can also use VALKEY_TLS_ENABLED env var.")
	cmd.Flags().StringVar(&cfg.Valkey.KeyPrefix, "valkey-key-prefix", tasks.DefaultKeyPrefix, "Prefix for all Valkey keys. Can also use VALKEY_KEY_PREFIX env var.")
	cmd.Flags().IntVar(&cfg.Valkey.DB, "valkey-db", 0, "Valkey database number. Can also use VALKEY_DB env var.")
	cmd.Flags().StringVar(&cfg.SQLitePath, "sqlite-path", "goaltiers.db", "SQLite database file for sqlite task storage. Can also use SQLITE_PATH env var.")
}

func addLogFlags(cmd *cobra.Command, cfg *LogConfig) {
	cmd.Flags().BoolVar(&cfg.Debug, "debug", false, "Enable debug logging")
	cmd.Flags().StringVar(&cfg.Format, "log-format", logging.FormatText, "Log format: text or json. Can also use LOG_FORMAT env var.")
}

// loadTaskStorageEnvVars loads task storage configuration from environment variables.
// Environment variables only override flag values when the flag was not explicitly set.
func loadTaskStorageEnvVars(cmd *cobra.Command, config *StorageConfig) {
	if !cmd.Flags().Changed("task-storage") {
		if storageType := os.Getenv("TASK_STORAGE_TYPE"); storageType != "" {
			config.Type = storageType
		}
	}

	if !cmd.Flags().Changed("valkey-url") {
		if url := os.Getenv("VALKEY_URL"); url != "" && config.Valkey.URL == "" {
			config.Valkey.URL = url
		}
	}

	if !cmd.Flags().Changed("valkey-password") {
		if password := os.Getenv("VALKEY_PASSWORD"); password != "" && config.Valkey.Password == "" {
			config.Valkey.Password = password
		}
	}

	if !cmd.Flags().Changed("valkey-key-prefix") {
		if keyPrefix := os.Getenv("VALKEY_KEY_PREFIX"); keyPrefix != "" {
			config.Valkey.KeyPrefix = keyPrefix
		}
	}

	if !cmd.Flags().Changed("valkey-tls") {
		if os.Getenv("VALKEY_TLS_ENABLED") == "true" {
			config.Valkey.TLSEnabled = true
		}
	}

	if config.Valkey.TLSCAFile == "" {
		if caFile := os.Getenv("VALKEY_TLS_CA_FILE"); caFile != "" {
			config.Valkey.TLSCAFile = caFile
		}
	}

	if !cmd.Flags().Changed("valkey-db") {
		if dbStr := os.Getenv("VALKEY_DB"); dbStr != "" {
			if db, err := strconv.Atoi(dbStr); err == nil {
				config.Valkey.DB = db
			}
		}
	}

	if !cmd.Flags().Changed("sqlite-path") {
		if path := os.Getenv("SQLITE_PATH"); path != "" {
			config.SQLitePath = path
		}
	}

	if tz := os.Getenv("GOALTIERS_TIMEZONE"); tz != "" && config.Location == nil {
		if loc, err := time.LoadLocation(tz); err == nil {
			config.Location = loc
		}
	}
}

func loadLogEnvVars(cmd *cobra.Command, config *LogConfig) {
	if !cmd.Flags().Changed("log-format") {
		if format := os.Getenv("LOG_FORMAT"); format != "" {
			config.Format = format
		}
	}
	if !cmd.Flags().Changed("debug") && os.Getenv("DEBUG") == "true" {
		config.Debug = true
	}
}

func loadMetricsEnvVars(cmd *cobra.Command, config *MetricsConfig) {
	if !cmd.Flags().Changed("metrics-enabled") {
		if v := os.Getenv("METRICS_ENABLED"); v != "" {
			config.Enabled = v == "true"
		}
	}
	if !cmd.Flags().Changed("metrics-addr") {
		if addr := os.Getenv("METRICS_ADDR"); addr != "" {
			config.Addr = addr
		}
	}
}

// setupLogger builds the process logger and installs it as the slog default.
func setupLogger(cfg LogConfig) (*slog.Logger, error) {
	logger, err := logging.NewLogger(os.Stderr, cfg.Format, cfg.Debug)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)
	return logger, nil
}

// newInstrumentation creates the OpenTelemetry provider for this process.
func newInstrumentation(ctx context.Context) (*instrumentation.Provider, instrumentation.Config, error) {
	instrConfig := instrumentation.DefaultConfig()
	instrConfig.ServiceVersion = version

	provider, err := instrumentation.NewProvider(ctx, instrConfig)
	if err != nil {
		return nil, instrConfig, fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	return provider, instrConfig, nil
}

// taskBackend is an opened task store and its storage backend.
type taskBackend struct {
	store *tasks.Store

	// ping checks the backend; nil for in-memory storage.
	ping func(ctx context.Context) error

	close func()
}

// openStore creates the task store for the configured backend and loads
// the last snapshot.
func openStore(ctx context.Context, cfg StorageConfig, logger *slog.Logger) (*taskBackend, error) {
	backend := &taskBackend{close: func() {}}
	opts := []tasks.Option{
		tasks.WithLogger(logger),
		tasks.WithLocation(cfg.Location),
	}

	switch tasks.StorageType(strings.ToLower(cfg.Type)) {
	case "", tasks.StorageTypeMemory:
	case tasks.StorageTypeValkey:
		persister, err := tasks.NewValkeyPersister(cfg.Valkey)
		if err != nil {
			return nil, err
		}
		opts = append(opts, tasks.WithPersister(persister))
		backend.ping = persister.Ping
		backend.close = persister.Close
	case tasks.StorageTypeSQLite:
		persister, err := tasks.NewSQLitePersister(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		opts = append(opts, tasks.WithPersister(persister))
		backend.ping = persister.Ping
		backend.close = persister.Close
	default:
		return nil, fmt.Errorf("unsupported task storage type: %s (supported: memory, valkey, sqlite)", cfg.Type)
	}

	backend.store = tasks.NewStore(opts...)
	if err := backend.store.Load(ctx); err != nil {
		backend.close()
		return nil, err
	}

	logger.Info("task store ready",
		slog.String("storage", cfg.Type),
		slog.Int("tasks", backend.store.ListAll().Count()))
	return backend, nil
}

// seedDemo loads the demo hierarchy into an empty store. A store restored
// from a snapshot is left alone.
func seedDemo(ctx context.Context, store *tasks.Store, logger *slog.Logger) error {
	logger = logging.WithOperation(logger, instrumentation.OperationSeed)
	if n := store.ListAll().Count(); n > 0 {
		logger.Info("skipping demo data, store is not empty", slog.Int("tasks", n))
		return nil
	}
	if err := store.Seed(ctx, tasks.DemoTasks(time.Now())); err != nil {
		return fmt.Errorf("failed to seed demo tasks: %w", err)
	}
	logger.Info("seeded demo tasks", slog.Int("tasks", store.ListAll().Count()))
	return nil
}

// parseCommaSeparatedList parses a comma-separated string into a slice,
// trimming whitespace from each element and filtering out empty strings.
// Returns nil if the input is empty or contains only whitespace/commas.
func parseCommaSeparatedList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	if len(result) == 0 {
		return nil
	}
	return result
}

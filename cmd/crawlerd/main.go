package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/VeRJiL/crawlerd/internal/broker"
	"github.com/VeRJiL/crawlerd/internal/config"
	"github.com/VeRJiL/crawlerd/internal/configloader"
	"github.com/VeRJiL/crawlerd/internal/configvault"
	"github.com/VeRJiL/crawlerd/internal/debugsink"
	"github.com/VeRJiL/crawlerd/internal/eventcontroller"
	"github.com/VeRJiL/crawlerd/internal/inflight"
	"github.com/VeRJiL/crawlerd/internal/jobhandler"
	"github.com/VeRJiL/crawlerd/internal/jobhandler/videodownloader"
	"github.com/VeRJiL/crawlerd/internal/listener"
	"github.com/VeRJiL/crawlerd/internal/metrics"
	"github.com/VeRJiL/crawlerd/internal/objectstore"
	"github.com/VeRJiL/crawlerd/internal/pkg/logger"
	"github.com/VeRJiL/crawlerd/internal/schemacache"
	"github.com/VeRJiL/crawlerd/internal/schemavault"
	"github.com/VeRJiL/crawlerd/internal/servicediscovery"
	"github.com/VeRJiL/crawlerd/internal/vaultmodel"
)

func main() {
	cmd := rootCommand()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCommand() *cobra.Command {
	var enableDebugStorage bool
	var debugStorageDir string

	cmd := &cobra.Command{
		Use:   "crawlerd",
		Short: "crawlerd consumes ProcessOrders and dispatches them to job handlers",
		Long: "crawlerd is the worker that listens on the services exchange for one " +
			"(provider, service) pipeline's ProcessOrders, runs each through the " +
			"Event Controller lifecycle, and publishes the resulting feedback.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(enableDebugStorage, debugStorageDir)
		},
	}

	cmd.Flags().BoolVar(&enableDebugStorage, "enable-debug-storage", false, "capture job handler intermediate artifacts to disk")
	cmd.Flags().StringVar(&debugStorageDir, "debug-storage-dir", "", "directory debug artifacts are written under (overrides DEBUG_STORAGE_DIR)")

	return cmd
}

func run(enableDebugStorage bool, debugStorageDir string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if enableDebugStorage {
		cfg.DebugStorage.Enabled = true
	}
	if debugStorageDir != "" {
		cfg.DebugStorage.Dir = debugStorageDir
	}

	log := logger.NewWithFile(cfg.Logging.Level, cfg.Logging.Format, fileConfig(cfg.Logging.File))
	log.Info("starting crawlerd", "service", cfg.App.Service, "provider", cfg.App.Provider)

	sd := servicediscovery.NewFromEnv()
	if err := resolveFromServiceDiscovery(cfg, sd); err != nil {
		return fmt.Errorf("resolving service endpoints: %w", err)
	}

	m := metrics.New()
	if cfg.Metrics.Enabled {
		go serveMetrics(cfg.Metrics.Addr, m, log)
	}

	configVault := configvault.New(cfg.Vaults.ConfigVaultURL, cfg.Vaults.MaxCalls, cfg.Vaults.Period, cfg.Vaults.RequestTimeout, cfg.Vaults.MaxRetries)
	schemaVault := schemavault.New(cfg.Vaults.SchemaVaultURL, cfg.Vaults.MaxCalls, cfg.Vaults.Period, cfg.Vaults.RequestTimeout, cfg.Vaults.MaxRetries)

	var redisClient *redis.Client
	if cfg.SchemaCache.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.SchemaCache.RedisAddr,
			Password: cfg.SchemaCache.RedisPassword,
			DB:       cfg.SchemaCache.RedisDB,
		})
	}
	schemas := newCachedSchemaSource(schemaVault, cfg.SchemaCache.LocalCapacity, cfg.SchemaCache.TTL, redisClient)

	store, err := objectstore.New(objectstore.Config{
		Endpoint:  cfg.MinIO.Endpoint,
		AccessKey: cfg.MinIO.AccessKey,
		SecretKey: cfg.MinIO.SecretKey,
		UseSSL:    cfg.MinIO.UseSSL,
	})
	if err != nil {
		return fmt.Errorf("building object store: %w", err)
	}

	dbg, err := debugsink.New(cfg.DebugStorage.Enabled, cfg.DebugStorage.Dir)
	if err != nil {
		return fmt.Errorf("building debug sink: %w", err)
	}

	handlers := jobhandler.NewRegistry()
	handlers.Register(videodownloader.ParserModule, videodownloader.NewFactory(store, &http.Client{Timeout: 30 * time.Second}))

	brokerAdapter, err := broker.Connect(broker.Config{
		URL:               cfg.RabbitMQ.Endpoint,
		Exchange:          cfg.RabbitMQ.Exchange,
		ConnectionTimeout: cfg.RabbitMQ.ConnectionTimeout,
		HeartbeatInterval: cfg.RabbitMQ.HeartbeatInterval,
		PrefetchCount:     cfg.RabbitMQ.PrefetchCount,
		ConnectRetries:    cfg.RabbitMQ.ConnectRetries,
		ConnectBackoff:    cfg.RabbitMQ.ConnectBackoff,
	})
	if err != nil {
		return fmt.Errorf("connecting to broker: %w", err)
	}
	defer brokerAdapter.Close()

	loader := configloader.New(configVault)
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if _, err := loader.FetchConfigsForService(ctx, cfg.App.Service, cfg.App.Provider); err != nil {
		return fmt.Errorf("loading configs: %w", err)
	}
	configs := loader.Configs()
	log.Info("loaded configs", "count", len(configs))

	if err := checkParserModulesRegistered(configs, handlers); err != nil {
		return err
	}

	inFlight := inflight.New(int64(cfg.RabbitMQ.PrefetchCount)*int64(len(configs))+1, m.InFlightJobs)

	supervisor := &listener.Supervisor{
		Broker:        brokerAdapter,
		PrefetchCount: cfg.RabbitMQ.PrefetchCount,
		NewController: func(listenerConfig vaultmodel.Config, ch *broker.Channel) listener.Runner {
			return &eventcontroller.Controller{
				Config:        listenerConfig,
				Schemas:       schemas,
				Broker:        ch,
				Handlers:      handlers,
				InFlight:      inFlight,
				Debug:         dbg,
				Log:           log,
				FeedbackDelay: cfg.Feedback.PrePublishDelay,
			}
		},
		Log: log,
	}

	return supervisor.Run(ctx, configs)
}

// checkParserModulesRegistered fails startup if any loaded Config names a
// parser_module with no registered handler, per spec: unknown names must
// fail at startup, never at message time.
func checkParserModulesRegistered(configs []vaultmodel.Config, handlers *jobhandler.Registry) error {
	for _, cfg := range configs {
		if !handlers.Has(cfg.JobParameters.ParserModule) {
			return fmt.Errorf("config %s: %w", cfg.ConfigID, &jobhandler.UnknownParserModuleError{ParserModule: cfg.JobParameters.ParserModule})
		}
	}
	return nil
}

func fileConfig(path string) *logger.FileConfig {
	if path == "" {
		return nil
	}
	return &logger.FileConfig{Path: path}
}

func resolveFromServiceDiscovery(cfg *config.Config, sd *servicediscovery.ServiceDiscovery) error {
	configVaultURL, err := sd.ConfigVaultEndpoint()
	if err != nil {
		return err
	}
	schemaVaultURL, err := sd.SchemaVaultEndpoint()
	if err != nil {
		return err
	}
	rabbitmqURL, err := sd.RabbitMQEndpoint()
	if err != nil {
		return err
	}
	minioEndpoint, err := sd.MinIOEndpoint()
	if err != nil {
		return err
	}

	cfg.Vaults.ConfigVaultURL = configVaultURL
	cfg.Vaults.SchemaVaultURL = schemaVaultURL
	cfg.RabbitMQ.Endpoint = rabbitmqURL
	cfg.MinIO.Endpoint = minioEndpoint
	if cfg.MinIO.AccessKey == "" {
		cfg.MinIO.AccessKey = sd.MinIOAccessKey()
	}
	if cfg.MinIO.SecretKey == "" {
		cfg.MinIO.SecretKey = sd.MinIOSecretKey()
	}
	return nil
}

func serveMetrics(addr string, m *metrics.Metrics, log *logger.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	log.Info("serving metrics", "address", addr)
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		log.Error("metrics server stopped", "error", err)
	}
}

// cachedSchemaSource adapts schemacache.Cache (which only resolves
// ListSchemasByServiceSourceProviderAndSchemaType lookups) onto
// eventcontroller.SchemaSource by forwarding validation straight to the
// Schema Vault client the cache itself wraps.
type cachedSchemaSource struct {
	cache *schemacache.Cache
	vault *schemavault.Client
}

func newCachedSchemaSource(vault *schemavault.Client, capacity int, ttl time.Duration, redisClient *redis.Client) *cachedSchemaSource {
	return &cachedSchemaSource{
		cache: schemacache.New(vault, capacity, ttl, redisClient),
		vault: vault,
	}
}

func (s *cachedSchemaSource) Get(ctx context.Context, key schemacache.Key) (vaultmodel.Schema, error) {
	return s.cache.Get(ctx, key)
}

func (s *cachedSchemaSource) ValidateSchema(ctx context.Context, data vaultmodel.SchemaData) (bool, error) {
	return s.vault.ValidateSchema(ctx, data)
}

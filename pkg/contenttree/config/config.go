package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tendant/content-tree/pkg/contenttree"
	fsarchive "github.com/tendant/content-tree/pkg/contenttree/archive/fs"
	memoryarchive "github.com/tendant/content-tree/pkg/contenttree/archive/memory"
	s3archive "github.com/tendant/content-tree/pkg/contenttree/archive/s3"
	redisguard "github.com/tendant/content-tree/pkg/contenttree/guard/redis"
	"github.com/tendant/content-tree/pkg/contenttree/metrics"
	"github.com/tendant/content-tree/pkg/contenttree/repo/memory"
	repopg "github.com/tendant/content-tree/pkg/contenttree/repo/postgres"
)

// Option applies configuration to a ServerConfig instance.
type Option func(*ServerConfig) error

// Load constructs a ServerConfig by applying the supplied options on top of library defaults.
func Load(opts ...Option) (*ServerConfig, error) {
	cfg := defaults()

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func defaults() ServerConfig {
	return ServerConfig{
		Port:               "8080",
		Environment:        "development",
		DatabaseType:       "memory",
		DBSchema:           "content",
		Archive:            ArchiveConfig{Type: "none"},
		PublishGuard:       "none",
		EnableEventLogging: true,
	}
}

// ServerConfig represents server configuration for the content tree service
type ServerConfig struct {
	Port        string
	Environment string // development, production, testing

	// Database configuration
	DatabaseURL  string
	DatabaseType string // "memory", "postgres"
	DBSchema     string // Postgres schema to use (default: content)
	AutoMigrate  bool   // Create tables on startup (postgres only)

	// Published snapshot archive
	Archive ArchiveConfig

	// Publish serialization
	PublishGuard string // "none", "local", "redis"
	RedisURL     string

	// Server options
	EnableEventLogging bool

	logger  *slog.Logger
	metrics *metrics.Recorder
	closers []func()
}

// ArchiveConfig represents configuration for the published snapshot archive
type ArchiveConfig struct {
	Type    string // "none", "memory", "fs", "s3"
	BaseDir string // fs only
	Prefix  string // Key prefix (default: "published")

	// S3 only
	Bucket          string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Endpoint        string
	UsePathStyle    bool
	EnableSSE       bool
	SSEAlgorithm    string
	SSEKMSKeyID     string
}

// Validate validates the server configuration
func (c *ServerConfig) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}

	if c.DatabaseType != "memory" && c.DatabaseType != "postgres" {
		return errors.New("database_type must be 'memory' or 'postgres'")
	}

	if c.DatabaseType == "postgres" && c.DatabaseURL == "" {
		return errors.New("database_url is required when using postgres")
	}

	switch c.Archive.Type {
	case "none", "memory":
	case "fs":
		if c.Archive.BaseDir == "" {
			return errors.New("archive base_dir is required for fs archive")
		}
	case "s3":
		if c.Archive.Bucket == "" {
			return errors.New("archive bucket is required for s3 archive")
		}
	default:
		return fmt.Errorf("unsupported archive type: %s", c.Archive.Type)
	}

	switch c.PublishGuard {
	case "none", "local":
	case "redis":
		if c.RedisURL == "" {
			return errors.New("redis_url is required when using the redis publish guard")
		}
	default:
		return fmt.Errorf("publish_guard must be 'none', 'local' or 'redis', got: %s", c.PublishGuard)
	}

	return nil
}

// BuildService creates a Service instance from the server configuration.
// Extra options are applied after the configured ones.
func (c *ServerConfig) BuildService(extra ...contenttree.Option) (contenttree.Service, error) {
	logger := c.logger
	if logger == nil {
		logger = slog.Default()
	}
	options := []contenttree.Option{contenttree.WithLogger(logger)}

	// Set up stores
	storeOptions, err := c.buildStores()
	if err != nil {
		return nil, fmt.Errorf("failed to build stores: %w", err)
	}
	options = append(options, storeOptions...)

	// Set up archive
	archive, err := c.buildArchive()
	if err != nil {
		return nil, fmt.Errorf("failed to build archive: %w", err)
	}
	if archive != nil {
		options = append(options, contenttree.WithSnapshotArchive(archive))
	}

	// Set up publish guard
	guard, err := c.buildGuard()
	if err != nil {
		return nil, fmt.Errorf("failed to build publish guard: %w", err)
	}
	if guard != nil {
		options = append(options, contenttree.WithPublishGuard(guard))
	}

	// Set up event sinks
	var sinks contenttree.MultiEventSink
	if c.EnableEventLogging {
		sinks = append(sinks, contenttree.NewLoggingEventSink(logger))
	}
	if c.metrics != nil {
		sinks = append(sinks, c.metrics.EventSink())
	}
	if len(sinks) > 0 {
		options = append(options, contenttree.WithEventSink(sinks))
	}

	options = append(options, extra...)
	return contenttree.New(options...)
}

// Close releases connections opened by BuildService
func (c *ServerConfig) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}

// buildStores creates the three document stores based on the configuration
func (c *ServerConfig) buildStores() ([]contenttree.Option, error) {
	var (
		contents  contenttree.Store[contenttree.Content]
		versions  contenttree.Store[contenttree.ContentVersion]
		published contenttree.Store[contenttree.PublishedContent]
	)

	switch c.DatabaseType {
	case "memory":
		contents = memory.NewContentStore()
		versions = memory.NewVersionStore()
		published = memory.NewPublishedStore()
	case "postgres":
		pool, err := c.buildPool(context.Background())
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, pool.Close)
		stores := repopg.NewWithPool(pool)
		contents, versions, published = stores.Contents, stores.Versions, stores.Published
	default:
		return nil, fmt.Errorf("unsupported database type: %s", c.DatabaseType)
	}

	if c.metrics != nil {
		contents = metrics.InstrumentStore(c.metrics, repopg.ContentTable, contents)
		versions = metrics.InstrumentStore(c.metrics, repopg.ContentVersionTable, versions)
		published = metrics.InstrumentStore(c.metrics, repopg.PublishedContentTable, published)
	}

	return []contenttree.Option{
		contenttree.WithContentStore(contents),
		contenttree.WithVersionStore(versions),
		contenttree.WithPublishedStore(published),
	}, nil
}

func (c *ServerConfig) buildPool(ctx context.Context) (*pgxpool.Pool, error) {
	if c.DatabaseURL == "" {
		return nil, errors.New("database_url is required for postgres")
	}
	cfg, err := pgxpool.ParseConfig(c.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DATABASE_URL: %w", err)
	}
	schema := c.DBSchema
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		if schema == "" {
			return nil
		}
		_, err := conn.Exec(ctx, fmt.Sprintf("SET search_path TO %s", pgx.Identifier{schema}.Sanitize()))
		return err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}

	if c.AutoMigrate {
		mctx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if err := repopg.Migrate(mctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
	}
	return pool, nil
}

// PingPostgres verifies connectivity to Postgres and optionally sets search_path for the session.
func PingPostgres(databaseURL, schema string) error {
	c := ServerConfig{DatabaseURL: databaseURL, DBSchema: schema}
	pool, err := c.buildPool(context.Background())
	if err != nil {
		return err
	}
	defer pool.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}

// buildArchive creates a SnapshotArchive based on the archive configuration.
// It returns nil when archiving is disabled.
func (c *ServerConfig) buildArchive() (contenttree.SnapshotArchive, error) {
	a := c.Archive
	switch a.Type {
	case "", "none":
		return nil, nil
	case "memory":
		return memoryarchive.New(), nil
	case "fs":
		return fsarchive.New(fsarchive.Config{BaseDir: a.BaseDir, Prefix: a.Prefix})
	case "s3":
		return s3archive.New(s3archive.Config{
			Region:          a.Region,
			Bucket:          a.Bucket,
			Prefix:          a.Prefix,
			AccessKeyID:     a.AccessKeyID,
			SecretAccessKey: a.SecretAccessKey,
			Endpoint:        a.Endpoint,
			UsePathStyle:    a.UsePathStyle,
			EnableSSE:       a.EnableSSE,
			SSEAlgorithm:    a.SSEAlgorithm,
			SSEKMSKeyID:     a.SSEKMSKeyID,
		})
	default:
		return nil, fmt.Errorf("unsupported archive type: %s", a.Type)
	}
}

// buildGuard creates a PublishGuard. It returns nil for "none", which keeps
// concurrent publishes of one id racing with last write wins.
func (c *ServerConfig) buildGuard() (contenttree.PublishGuard, error) {
	switch c.PublishGuard {
	case "", "none":
		return nil, nil
	case "local":
		return contenttree.NewLocalGuard(), nil
	case "redis":
		guard, err := redisguard.NewFromURL(c.RedisURL, redisguard.Config{})
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, func() { _ = guard.Close() })
		return guard, nil
	default:
		return nil, fmt.Errorf("unsupported publish guard: %s", c.PublishGuard)
	}
}

package config

import (
	"fmt"
	"log/slog"

	"github.com/tendant/content-tree/pkg/contenttree/metrics"
)

// WithPort sets the server port
func WithPort(port string) Option {
	return func(c *ServerConfig) error {
		if port == "" {
			return fmt.Errorf("port cannot be empty")
		}
		c.Port = port
		return nil
	}
}

// WithEnvironment sets the environment (development, production, testing)
func WithEnvironment(env string) Option {
	return func(c *ServerConfig) error {
		if env == "" {
			return fmt.Errorf("environment cannot be empty")
		}
		c.Environment = env
		return nil
	}
}

// WithDatabase configures the database backend
func WithDatabase(dbType, url string) Option {
	return func(c *ServerConfig) error {
		if dbType != "memory" && dbType != "postgres" {
			return fmt.Errorf("database type must be 'memory' or 'postgres', got: %s", dbType)
		}
		if dbType == "postgres" && url == "" {
			return fmt.Errorf("database URL is required for postgres")
		}
		c.DatabaseType = dbType
		c.DatabaseURL = url
		return nil
	}
}

// WithDatabaseSchema sets the database schema (for Postgres)
func WithDatabaseSchema(schema string) Option {
	return func(c *ServerConfig) error {
		c.DBSchema = schema
		return nil
	}
}

// WithAutoMigrate creates the collection tables when the pool is opened
func WithAutoMigrate(enabled bool) Option {
	return func(c *ServerConfig) error {
		c.AutoMigrate = enabled
		return nil
	}
}

// WithMemoryArchive keeps published snapshots in memory
func WithMemoryArchive() Option {
	return func(c *ServerConfig) error {
		c.Archive = ArchiveConfig{Type: "memory"}
		return nil
	}
}

// WithFilesystemArchive writes published snapshots under baseDir
func WithFilesystemArchive(baseDir, prefix string) Option {
	return func(c *ServerConfig) error {
		if baseDir == "" {
			return fmt.Errorf("archive base directory cannot be empty")
		}
		c.Archive = ArchiveConfig{Type: "fs", BaseDir: baseDir, Prefix: prefix}
		return nil
	}
}

// WithS3Archive uploads published snapshots to bucket
func WithS3Archive(bucket, region, prefix string) Option {
	return func(c *ServerConfig) error {
		if bucket == "" {
			return fmt.Errorf("archive bucket cannot be empty")
		}
		c.Archive = ArchiveConfig{Type: "s3", Bucket: bucket, Region: region, Prefix: prefix}
		return nil
	}
}

// WithS3Credentials sets static credentials on the S3 archive
func WithS3Credentials(accessKeyID, secretAccessKey string) Option {
	return func(c *ServerConfig) error {
		if c.Archive.Type != "s3" {
			return fmt.Errorf("S3 archive must be configured before setting credentials")
		}
		c.Archive.AccessKeyID = accessKeyID
		c.Archive.SecretAccessKey = secretAccessKey
		return nil
	}
}

// WithS3Endpoint points the S3 archive at an S3-compatible service such as MinIO
func WithS3Endpoint(endpoint string, usePathStyle bool) Option {
	return func(c *ServerConfig) error {
		if c.Archive.Type != "s3" {
			return fmt.Errorf("S3 archive must be configured before setting the endpoint")
		}
		c.Archive.Endpoint = endpoint
		c.Archive.UsePathStyle = usePathStyle
		return nil
	}
}

// WithPublishGuard selects how publishes of one content id are serialized
func WithPublishGuard(kind string) Option {
	return func(c *ServerConfig) error {
		switch kind {
		case "none", "local", "redis":
			c.PublishGuard = kind
			return nil
		default:
			return fmt.Errorf("publish guard must be 'none', 'local' or 'redis', got: %s", kind)
		}
	}
}

// WithRedisGuard serializes publishes through the Redis server at url
func WithRedisGuard(url string) Option {
	return func(c *ServerConfig) error {
		if url == "" {
			return fmt.Errorf("redis URL cannot be empty")
		}
		c.PublishGuard = "redis"
		c.RedisURL = url
		return nil
	}
}

// WithEventLogging enables or disables lifecycle event logging
func WithEventLogging(enabled bool) Option {
	return func(c *ServerConfig) error {
		c.EnableEventLogging = enabled
		return nil
	}
}

// WithLogger sets the logger handed to the service
func WithLogger(logger *slog.Logger) Option {
	return func(c *ServerConfig) error {
		c.logger = logger
		return nil
	}
}

// WithMetrics instruments the stores and lifecycle events with recorder
func WithMetrics(recorder *metrics.Recorder) Option {
	return func(c *ServerConfig) error {
		c.metrics = recorder
		return nil
	}
}

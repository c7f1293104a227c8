package config

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/inkwell-cms/inkwell/pkg/inkwell"
	"github.com/inkwell-cms/inkwell/pkg/inkwell/blob"
	fsblob "github.com/inkwell-cms/inkwell/pkg/inkwell/blob/fs"
	memoryblob "github.com/inkwell-cms/inkwell/pkg/inkwell/blob/memory"
	s3blob "github.com/inkwell-cms/inkwell/pkg/inkwell/blob/s3"
	"github.com/inkwell-cms/inkwell/pkg/inkwell/plugin"
	"github.com/inkwell-cms/inkwell/pkg/inkwell/plugin/image"
	"github.com/inkwell-cms/inkwell/pkg/inkwell/plugin/markdown"
	"github.com/inkwell-cms/inkwell/pkg/inkwell/plugin/text"
	repomemory "github.com/inkwell-cms/inkwell/pkg/inkwell/repo/memory"
	repopg "github.com/inkwell-cms/inkwell/pkg/inkwell/repo/postgres"
)

// Option applies configuration to a ServerConfig instance.
type Option func(*ServerConfig) error

// Load constructs a ServerConfig by applying the supplied options on top
// of library defaults.
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
		Port:         "8080",
		Environment:  "development",
		DatabaseType: "memory",
		DBSchema:     "inkwell",
		BlobBackend:  "memory",
		FSBaseDir:    "./data/media",
		URLPrefix:    "/media",
		CacheSize:    inkwell.DefaultCacheSize,
	}
}

// ServerConfig represents server configuration for the inkwell service
type ServerConfig struct {
	Port        string
	Environment string // development, production, testing

	// Database configuration
	DatabaseURL  string
	DatabaseType string // "memory", "postgres"
	DBSchema     string // Postgres schema to use (default: inkwell)

	// Blob store configuration
	BlobBackend string // "memory", "fs", "s3"
	FSBaseDir   string
	URLPrefix   string
	S3          S3Config

	// Published-node cache capacity; zero disables caching.
	CacheSize int
}

// S3Config holds the s3 backend settings.
type S3Config struct {
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	Endpoint        string
	UsePathStyle    bool
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

	switch c.BlobBackend {
	case "memory":
	case "fs":
		if c.FSBaseDir == "" {
			return errors.New("fs base dir is required for the fs blob backend")
		}
	case "s3":
		if c.S3.Bucket == "" {
			return errors.New("s3 bucket is required for the s3 blob backend")
		}
	default:
		return fmt.Errorf("blob_backend must be 'memory', 'fs' or 's3', got %q", c.BlobBackend)
	}

	if c.CacheSize < 0 {
		return errors.New("cache size cannot be negative")
	}

	return nil
}

// BuildService creates a Service instance from the server configuration.
func (c *ServerConfig) BuildService() (inkwell.Service, error) {
	repo, err := c.buildRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to build repository: %w", err)
	}

	store, err := c.BuildBlobStore()
	if err != nil {
		return nil, fmt.Errorf("failed to build blob store: %w", err)
	}

	registry := plugin.NewRegistry(
		text.New(),
		markdown.New(),
		image.New(store),
	)

	return inkwell.New(
		inkwell.WithRepository(repo),
		inkwell.WithRegistry(registry),
		inkwell.WithCacheSize(c.CacheSize),
	)
}

// buildRepository creates a Repository based on the configuration
func (c *ServerConfig) buildRepository() (inkwell.Repository, error) {
	switch c.DatabaseType {
	case "memory":
		return repomemory.New(), nil
	case "postgres":
		if c.DatabaseURL == "" {
			return nil, errors.New("database_url is required for postgres")
		}
		cfg, err := pgxpool.ParseConfig(c.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse DATABASE_URL: %w", err)
		}
		// Optionally set search_path for the connection
		schema := c.DBSchema
		cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
			if schema == "" {
				return nil
			}
			_, err := conn.Exec(ctx, fmt.Sprintf("SET search_path TO %s", schema))
			return err
		}
		pool, err := pgxpool.NewWithConfig(context.Background(), cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create pgx pool: %w", err)
		}
		return repopg.NewWithPool(pool), nil
	default:
		return nil, fmt.Errorf("unsupported database type: %s", c.DatabaseType)
	}
}

// BuildBlobStore creates the blob.Store named by the configuration.
func (c *ServerConfig) BuildBlobStore() (blob.Store, error) {
	switch c.BlobBackend {
	case "memory":
		if c.URLPrefix != "" {
			return memoryblob.NewWithURLPrefix(c.URLPrefix), nil
		}
		return memoryblob.New(), nil

	case "fs":
		return fsblob.New(fsblob.Config{
			BaseDir:   c.FSBaseDir,
			URLPrefix: c.URLPrefix,
		})

	case "s3":
		return s3blob.New(s3blob.Config{
			Region:          c.S3.Region,
			Bucket:          c.S3.Bucket,
			AccessKeyID:     c.S3.AccessKeyID,
			SecretAccessKey: c.S3.SecretAccessKey,
			Endpoint:        c.S3.Endpoint,
			UsePathStyle:    c.S3.UsePathStyle,
			URLPrefix:       c.URLPrefix,
		})

	default:
		return nil, fmt.Errorf("unsupported blob backend: %s", c.BlobBackend)
	}
}

// PingPostgres verifies connectivity to Postgres and optionally sets
// search_path for the session. It fails if the schema (when provided)
// does not exist.
func PingPostgres(databaseURL, schema string) error {
	if databaseURL == "" {
		return errors.New("database_url is required")
	}
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return fmt.Errorf("failed to parse DATABASE_URL: %w", err)
	}
	if schema != "" {
		cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
			_, err := conn.Exec(ctx, fmt.Sprintf("SET search_path TO %s", schema))
			return err
		}
	}
	pool, err := pgxpool.NewWithConfig(context.Background(), cfg)
	if err != nil {
		return fmt.Errorf("failed to create pgx pool: %w", err)
	}
	defer pool.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}

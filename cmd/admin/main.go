package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
)

const usage = `Inkwell Admin CLI

A lightweight admin tool for the content store that only requires database
access.

USAGE:
  admin <command>

COMMANDS:
  migrate   Apply the SQL migrations in order
  list      List stored nodes with revision counts
  stats     Print aggregated store statistics

ENVIRONMENT VARIABLES:
  DATABASE_URL      PostgreSQL connection string (required)
  DB_SCHEMA         PostgreSQL schema name (default: inkwell)
  MIGRATIONS_DIR    Directory holding *.sql migrations (default: migrations)

  Configuration can be loaded from a .env file in the current directory.
  Command line environment variables override .env file values.
`

type Config struct {
	DatabaseURL   string `env:"DATABASE_URL"`
	DBSchema      string `env:"DB_SCHEMA" env-default:"inkwell"`
	MigrationsDir string `env:"MIGRATIONS_DIR" env-default:"migrations"`
}

func main() {
	// Load .env file if present; real environment wins.
	_ = godotenv.Load()

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		log.Fatalf("failed to read configuration: %v", err)
	}

	if len(os.Args) < 2 {
		fmt.Print(usage)
		os.Exit(1)
	}

	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := connect(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to connect: %v", err)
	}
	defer pool.Close()

	switch os.Args[1] {
	case "migrate":
		err = runMigrate(ctx, pool, cfg.MigrationsDir)
	case "list":
		err = runList(ctx, pool)
	case "stats":
		err = runStats(ctx, pool)
	default:
		fmt.Print(usage)
		os.Exit(1)
	}

	if err != nil {
		log.Fatalf("%s failed: %v", os.Args[1], err)
	}
}

func connect(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if cfg.DBSchema != "" {
		if _, err := pool.Exec(ctx, fmt.Sprintf("SET search_path TO %s", cfg.DBSchema)); err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to set search_path: %w", err)
		}
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

func runMigrate(ctx context.Context, pool *pgxpool.Pool, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read migrations dir: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)

	if len(files) == 0 {
		return fmt.Errorf("no .sql files in %s", dir)
	}

	for _, name := range files {
		sql, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return err
		}
		if _, err := pool.Exec(ctx, string(sql)); err != nil {
			return fmt.Errorf("migration %s: %w", name, err)
		}
		fmt.Printf("applied %s\n", name)
	}
	return nil
}

func runList(ctx context.Context, pool *pgxpool.Pool) error {
	rows, err := pool.Query(ctx, `
		SELECT n.namespace, n.path, n.extension,
		       count(r.revision) FILTER (WHERE r.revision > 0) AS revisions,
		       count(*) FILTER (WHERE r.revision = 0) > 0 AS has_draft,
		       coalesce(max(r.revision) FILTER (WHERE r.is_published), 0) AS published
		FROM node n
		LEFT JOIN node_revision r ON r.node_id = n.id
		GROUP BY n.id
		ORDER BY n.namespace, n.path, n.extension`)
	if err != nil {
		return err
	}
	defer rows.Close()

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAMESPACE\tPATH\tEXT\tREVISIONS\tDRAFT\tPUBLISHED")

	for rows.Next() {
		var namespace, path, extension string
		var revisions, published int
		var hasDraft bool
		if err := rows.Scan(&namespace, &path, &extension, &revisions, &hasDraft, &published); err != nil {
			return err
		}

		publishedCol := "-"
		if published > 0 {
			publishedCol = fmt.Sprintf("#%d", published)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%t\t%s\n", namespace, path, extension, revisions, hasDraft, publishedCol)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	return w.Flush()
}

func runStats(ctx context.Context, pool *pgxpool.Pool) error {
	var nodes, revisions, drafts, published int
	err := pool.QueryRow(ctx, `
		SELECT (SELECT count(*) FROM node),
		       (SELECT count(*) FROM node_revision WHERE revision > 0),
		       (SELECT count(*) FROM node_revision WHERE revision = 0),
		       (SELECT count(*) FROM node_revision WHERE is_published)`).
		Scan(&nodes, &revisions, &drafts, &published)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "nodes\t%d\n", nodes)
	fmt.Fprintf(w, "revisions\t%d\n", revisions)
	fmt.Fprintf(w, "drafts\t%d\n", drafts)
	fmt.Fprintf(w, "published\t%d\n", published)
	return w.Flush()
}

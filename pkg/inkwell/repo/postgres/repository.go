// Package postgres provides a PostgreSQL implementation of the node
// versioning engine. The schema is in migrations/0001_nodes.sql; a
// partial unique index backs the at-most-one-published invariant and
// publish transitions run in a single transaction holding a row lock on
// the node.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/inkwell-cms/inkwell/pkg/inkwell"
	"github.com/inkwell-cms/inkwell/pkg/inkwell/uri"
)

// DB is the subset of pgxpool.Pool the repository needs. Using an
// interface keeps the repository testable against a single connection.
type DB interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Repository implements inkwell.Repository using PostgreSQL.
type Repository struct {
	db DB
}

// New creates a new PostgreSQL repository.
func New(db DB) *Repository {
	return &Repository{db: db}
}

// NewWithPool creates a new PostgreSQL repository with a connection pool.
func NewWithPool(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool}
}

func (r *Repository) CreateDraft(ctx context.Context, key inkwell.NodeKey, data []byte, meta inkwell.NodeMeta) (*inkwell.Revision, error) {
	if data == nil {
		return nil, inkwell.ErrPersistence
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, wrapPgError("create draft", err)
	}
	defer tx.Rollback(ctx)

	nodeID, _, err := upsertNode(ctx, tx, key)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	rev := &inkwell.Revision{Key: key, Number: 0, Data: data}

	// An existing draft keeps its created_at; everything else is
	// overwritten in place.
	err = tx.QueryRow(ctx, `
		INSERT INTO node_revision (node_id, revision, data, author, message, created_at, modified_at)
		VALUES ($1, 0, $2, $3, $4, $5, $5)
		ON CONFLICT (node_id, revision) DO UPDATE SET
			data = EXCLUDED.data,
			author = EXCLUDED.author,
			message = EXCLUDED.message,
			modified_at = EXCLUDED.modified_at
		RETURNING author, message, created_at, modified_at`,
		nodeID, data, meta.Author, meta.Message, now).
		Scan(&rev.Meta.Author, &rev.Meta.Message, &rev.Meta.CreatedAt, &rev.Meta.ModifiedAt)
	if err != nil {
		return nil, wrapPgError("create draft", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, wrapPgError("create draft", err)
	}
	return rev, nil
}

func (r *Repository) Get(ctx context.Context, key inkwell.NodeKey, sel uri.Revision) (*inkwell.Revision, error) {
	query := `
		SELECT r.revision, r.data, r.author, r.message, r.created_at, r.modified_at, r.published_at, r.is_published
		FROM node_revision r
		JOIN node n ON n.id = r.node_id
		WHERE n.namespace = $1 AND n.path = $2 AND n.extension = $3`

	args := []interface{}{key.Namespace, key.Path, key.Extension}
	switch {
	case sel.Draft:
		query += ` AND r.revision = 0`
	case sel.Number > 0:
		query += ` AND r.revision = $4`
		args = append(args, sel.Number)
	default:
		query += ` AND r.is_published`
	}

	rev := &inkwell.Revision{Key: key}
	err := r.db.QueryRow(ctx, query, args...).Scan(
		&rev.Number, &rev.Data, &rev.Meta.Author, &rev.Meta.Message,
		&rev.Meta.CreatedAt, &rev.Meta.ModifiedAt, &rev.Meta.PublishedAt, &rev.Meta.IsPublished)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, inkwell.ErrNodeNotFound
		}
		return nil, wrapPgError("get revision", err)
	}
	return rev, nil
}

func (r *Repository) Publish(ctx context.Context, key inkwell.NodeKey, sel uri.Revision) (*inkwell.Revision, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, wrapPgError("publish", err)
	}
	defer tx.Rollback(ctx)

	// Serialize publish transitions per node.
	var nodeID int64
	var nextRevision int
	err = tx.QueryRow(ctx, `
		SELECT id, next_revision FROM node
		WHERE namespace = $1 AND path = $2 AND extension = $3
		FOR UPDATE`,
		key.Namespace, key.Path, key.Extension).Scan(&nodeID, &nextRevision)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, inkwell.ErrNodeNotFound
		}
		return nil, wrapPgError("publish", err)
	}

	target := sel.Number
	if target == 0 {
		// Zero and draft selectors both promote the draft slot.
		tag, err := tx.Exec(ctx, `
			UPDATE node_revision SET revision = $2
			WHERE node_id = $1 AND revision = 0`,
			nodeID, nextRevision)
		if err != nil {
			return nil, wrapPgError("publish", err)
		}
		if tag.RowsAffected() == 0 {
			return nil, inkwell.ErrNodeNotFound
		}
		if _, err := tx.Exec(ctx, `UPDATE node SET next_revision = $2 WHERE id = $1`,
			nodeID, nextRevision+1); err != nil {
			return nil, wrapPgError("publish", err)
		}
		target = nextRevision
	}

	// Demote before promote; the partial unique index on is_published
	// rejects any other ordering.
	if _, err := tx.Exec(ctx, `
		UPDATE node_revision SET is_published = FALSE
		WHERE node_id = $1 AND is_published AND revision <> $2`,
		nodeID, target); err != nil {
		return nil, wrapPgError("publish", err)
	}

	now := time.Now().UTC()
	rev := &inkwell.Revision{Key: key}
	err = tx.QueryRow(ctx, `
		UPDATE node_revision
		SET is_published = TRUE, published_at = $3, modified_at = $3
		WHERE node_id = $1 AND revision = $2
		RETURNING revision, data, author, message, created_at, modified_at, published_at, is_published`,
		nodeID, target, now).Scan(
		&rev.Number, &rev.Data, &rev.Meta.Author, &rev.Meta.Message,
		&rev.Meta.CreatedAt, &rev.Meta.ModifiedAt, &rev.Meta.PublishedAt, &rev.Meta.IsPublished)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, inkwell.ErrNodeNotFound
		}
		return nil, wrapPgError("publish", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, wrapPgError("publish", err)
	}
	return rev, nil
}

func (r *Repository) ListRevisions(ctx context.Context, key inkwell.NodeKey) ([]inkwell.RevisionRef, error) {
	var nodeID int64
	err := r.db.QueryRow(ctx, `
		SELECT id FROM node WHERE namespace = $1 AND path = $2 AND extension = $3`,
		key.Namespace, key.Path, key.Extension).Scan(&nodeID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, inkwell.ErrNodeNotFound
		}
		return nil, wrapPgError("list revisions", err)
	}

	rows, err := r.db.Query(ctx, `
		SELECT revision, is_published FROM node_revision
		WHERE node_id = $1 AND revision > 0
		ORDER BY revision`,
		nodeID)
	if err != nil {
		return nil, wrapPgError("list revisions", err)
	}
	defer rows.Close()

	refs := make([]inkwell.RevisionRef, 0)
	for rows.Next() {
		var number int
		var published bool
		if err := rows.Scan(&number, &published); err != nil {
			return nil, wrapPgError("list revisions", err)
		}
		refs = append(refs, inkwell.RevisionRef{
			URI:       key.URI().WithRevision(uri.Numbered(number)),
			Published: published,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, wrapPgError("list revisions", err)
	}
	return refs, nil
}

func (r *Repository) Delete(ctx context.Context, key inkwell.NodeKey, sel uri.Revision) error {
	if sel.IsZero() {
		tag, err := r.db.Exec(ctx, `
			DELETE FROM node WHERE namespace = $1 AND path = $2 AND extension = $3`,
			key.Namespace, key.Path, key.Extension)
		if err != nil {
			return wrapPgError("delete node", err)
		}
		if tag.RowsAffected() == 0 {
			return inkwell.ErrNodeNotFound
		}
		return nil
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return wrapPgError("delete revision", err)
	}
	defer tx.Rollback(ctx)

	var nodeID int64
	err = tx.QueryRow(ctx, `
		SELECT id FROM node
		WHERE namespace = $1 AND path = $2 AND extension = $3
		FOR UPDATE`,
		key.Namespace, key.Path, key.Extension).Scan(&nodeID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return inkwell.ErrNodeNotFound
		}
		return wrapPgError("delete revision", err)
	}

	target := sel.Number // 0 for the draft slot
	if _, err := tx.Exec(ctx, `
		DELETE FROM node_revision WHERE node_id = $1 AND revision = $2`,
		nodeID, target); err != nil {
		return wrapPgError("delete revision", err)
	}

	// Removing the last revision destroys the node.
	var remaining int
	if err := tx.QueryRow(ctx, `
		SELECT count(*) FROM node_revision WHERE node_id = $1`,
		nodeID).Scan(&remaining); err != nil {
		return wrapPgError("delete revision", err)
	}
	if remaining == 0 {
		if _, err := tx.Exec(ctx, `DELETE FROM node WHERE id = $1`, nodeID); err != nil {
			return wrapPgError("delete revision", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return wrapPgError("delete revision", err)
	}
	return nil
}

func upsertNode(ctx context.Context, tx pgx.Tx, key inkwell.NodeKey) (int64, int, error) {
	var nodeID int64
	var nextRevision int
	// The no-op DO UPDATE makes the statement return the existing row.
	err := tx.QueryRow(ctx, `
		INSERT INTO node (namespace, path, extension)
		VALUES ($1, $2, $3)
		ON CONFLICT (namespace, path, extension) DO UPDATE SET namespace = EXCLUDED.namespace
		RETURNING id, next_revision`,
		key.Namespace, key.Path, key.Extension).Scan(&nodeID, &nextRevision)
	if err != nil {
		return 0, 0, wrapPgError("upsert node", err)
	}
	return nodeID, nextRevision, nil
}

func wrapPgError(operation string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return fmt.Errorf("%s: publish conflict: %s", operation, pgErr.ConstraintName)
		case "42P01": // undefined_table
			return fmt.Errorf("%s: table does not exist - database migration required", operation)
		default:
			return fmt.Errorf("database error in %s: %s (code: %s)", operation, pgErr.Message, pgErr.Code)
		}
	}
	return fmt.Errorf("database error in %s: %w", operation, err)
}

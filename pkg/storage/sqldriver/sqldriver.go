// Package sqldriver implements the export archive on top of ent's dialect/sql
// builders. It is dialect-agnostic and is wrapped by the sqlite and postgres
// packages, which own opening the database.
package sqldriver

import (
	"context"
	stdsql "database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"

	"github.com/papercomputeco/voxtap/pkg/export"
	"github.com/papercomputeco/voxtap/pkg/storage"
)

// Table is the archive table name.
const Table = "call_exports"

var columns = []string{
	"call_id",
	"session_id",
	"agent_id",
	"status",
	"http_status",
	"error",
	"record",
	"created_at",
	"updated_at",
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS call_exports (
		call_id     VARCHAR(255) PRIMARY KEY,
		session_id  VARCHAR(255) NOT NULL,
		agent_id    VARCHAR(255) NOT NULL,
		status      VARCHAR(32)  NOT NULL,
		http_status INTEGER      NOT NULL DEFAULT 0,
		error       TEXT         NOT NULL DEFAULT '',
		record      TEXT         NOT NULL,
		created_at  BIGINT       NOT NULL,
		updated_at  BIGINT       NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS call_exports_agent_id ON call_exports (agent_id)`,
	`CREATE INDEX IF NOT EXISTS call_exports_created_at ON call_exports (created_at)`,
}

// Driver implements storage.Driver over an ent SQL driver.
type Driver struct {
	drv *entsql.Driver
	now func() time.Time
}

// New wraps drv and creates the archive schema if it does not exist.
func New(ctx context.Context, drv *entsql.Driver) (*Driver, error) {
	switch drv.Dialect() {
	case dialect.SQLite, dialect.Postgres:
	default:
		return nil, fmt.Errorf("unsupported dialect %q", drv.Dialect())
	}

	d := &Driver{drv: drv, now: time.Now}
	if err := d.migrate(ctx); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Driver) migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if err := d.drv.Exec(ctx, stmt, []any{}, nil); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

// Put upserts entry by call id.
func (d *Driver) Put(ctx context.Context, entry *storage.Entry) error {
	if entry == nil || entry.CallID == "" {
		return storage.ErrNilEntry
	}

	record, err := json.Marshal(entry.Record)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	now := d.now()
	created := entry.CreatedAt
	if created.IsZero() {
		created = now
	}

	query, args := entsql.Dialect(d.drv.Dialect()).
		Insert(Table).
		Columns(columns...).
		Values(
			entry.CallID,
			entry.SessionID,
			entry.AgentID,
			entry.Status,
			entry.HTTPStatus,
			entry.Error,
			string(record),
			created.UnixNano(),
			now.UnixNano(),
		).
		OnConflict(
			entsql.ConflictColumns("call_id"),
			entsql.ResolveWith(func(u *entsql.UpdateSet) {
				u.SetExcluded("session_id").
					SetExcluded("agent_id").
					SetExcluded("status").
					SetExcluded("http_status").
					SetExcluded("error").
					SetExcluded("record").
					SetExcluded("updated_at")
			}),
		).
		Query()

	if err := d.drv.Exec(ctx, query, args, nil); err != nil {
		return fmt.Errorf("failed to store call %s: %w", entry.CallID, err)
	}
	return nil
}

// Get returns the entry for callID.
func (d *Driver) Get(ctx context.Context, callID string) (*storage.Entry, error) {
	query, args := entsql.Dialect(d.drv.Dialect()).
		Select(columns...).
		From(entsql.Table(Table)).
		Where(entsql.EQ("call_id", callID)).
		Query()

	entries, err := d.query(ctx, query, args)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, storage.NotFoundError{CallID: callID}
	}
	return entries[0], nil
}

// List returns matching entries, newest first.
func (d *Driver) List(ctx context.Context, opts storage.ListOptions) ([]*storage.Entry, error) {
	sel := entsql.Dialect(d.drv.Dialect()).
		Select(columns...).
		From(entsql.Table(Table)).
		OrderBy(entsql.Desc("created_at"), entsql.Desc("call_id"))

	if opts.AgentID != "" {
		sel.Where(entsql.EQ("agent_id", opts.AgentID))
	}
	if opts.Status != "" {
		sel.Where(entsql.EQ("status", opts.Status))
	}
	if opts.Limit > 0 {
		sel.Limit(opts.Limit)
	}

	query, args := sel.Query()
	return d.query(ctx, query, args)
}

func (d *Driver) query(ctx context.Context, query string, args []any) ([]*storage.Entry, error) {
	rows := &entsql.Rows{}
	if err := d.drv.Query(ctx, query, args, rows); err != nil {
		return nil, fmt.Errorf("failed to query calls: %w", err)
	}
	defer rows.Close()

	var out []*storage.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read calls: %w", err)
	}
	return out, nil
}

func scanEntry(rows *entsql.Rows) (*storage.Entry, error) {
	var (
		e                storage.Entry
		record           string
		created, updated int64
		httpStatus       stdsql.NullInt64
	)
	if err := rows.Scan(
		&e.CallID,
		&e.SessionID,
		&e.AgentID,
		&e.Status,
		&httpStatus,
		&e.Error,
		&record,
		&created,
		&updated,
	); err != nil {
		return nil, fmt.Errorf("failed to scan call: %w", err)
	}

	e.HTTPStatus = int(httpStatus.Int64)
	e.CreatedAt = time.Unix(0, created)
	e.UpdatedAt = time.Unix(0, updated)

	if record != "" && record != "null" {
		e.Record = &export.Record{}
		if err := json.Unmarshal([]byte(record), e.Record); err != nil {
			return nil, fmt.Errorf("failed to unmarshal record of call %s: %w", e.CallID, err)
		}
	}
	return &e, nil
}

// DB returns the underlying database handle.
func (d *Driver) DB() *stdsql.DB {
	return d.drv.DB()
}

// Close closes the underlying database.
func (d *Driver) Close() error {
	if err := d.drv.Close(); err != nil && !errors.Is(err, stdsql.ErrConnDone) {
		return err
	}
	return nil
}

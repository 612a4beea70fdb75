package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"

	"github.com/ahrav/go-pricescout/internal/ports"
)

const postgresStore = "postgres_history"

const createHistorySchema = `
CREATE TABLE IF NOT EXISTS conversation_turns (
	id         BIGSERIAL PRIMARY KEY,
	caller_id  TEXT        NOT NULL,
	role       TEXT        NOT NULL,
	content    TEXT        NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS conversation_turns_caller_idx
	ON conversation_turns (caller_id, id DESC);`

const insertTurn = `INSERT INTO conversation_turns (caller_id, role, content, created_at) VALUES ($1, $2, $3, $4)`

// trimTurns keeps the newest $2 rows of a caller.
const trimTurns = `
DELETE FROM conversation_turns
WHERE caller_id = $1
  AND id NOT IN (
	SELECT id FROM conversation_turns WHERE caller_id = $1 ORDER BY id DESC LIMIT $2
  )`

const selectRecent = `
SELECT role, content, created_at FROM (
	SELECT id, role, content, created_at
	FROM conversation_turns
	WHERE caller_id = $1
	ORDER BY id DESC
	LIMIT $2
) recent
ORDER BY id ASC`

var _ ports.HistoryStore = (*PostgresHistory)(nil)

// PostgresOptions tunes the connection pool.
type PostgresOptions struct {
	// MaxConns caps the pool size. Defaults to 4.
	MaxConns int32
	// SimpleProtocol disables prepared statements for use behind PgBouncer.
	SimpleProtocol bool
	// MaxTurns is how many turns are kept per caller.
	MaxTurns int
	Logger   log.FieldLogger
}

// PostgresHistory stores conversation turns in PostgreSQL.
type PostgresHistory struct {
	pool     *pgxpool.Pool
	maxTurns int
	logger   log.FieldLogger
	now      func() time.Time
}

// NewPostgresHistory connects to dsn, verifies the connection and creates
// the schema if needed.
func NewPostgresHistory(ctx context.Context, dsn string, opts PostgresOptions) (*PostgresHistory, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, ports.NewStoreError(postgresStore, "parse_dsn", err)
	}
	cfg.MaxConns = opts.MaxConns
	if cfg.MaxConns <= 0 {
		cfg.MaxConns = 4
	}
	if opts.SimpleProtocol {
		cfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, ports.NewStoreError(postgresStore, "connect", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, ports.NewStoreError(postgresStore, "ping", err)
	}
	if _, err := pool.Exec(ctx, createHistorySchema); err != nil {
		pool.Close()
		return nil, ports.NewStoreError(postgresStore, "migrate", err)
	}

	h := &PostgresHistory{
		pool:     pool,
		maxTurns: opts.MaxTurns,
		logger:   opts.Logger,
		now:      time.Now,
	}
	if h.maxTurns < 2 {
		h.maxTurns = 2
	}
	if h.logger == nil {
		h.logger = log.StandardLogger()
	}
	h.logger.WithFields(log.Fields{
		"event":     "history_connected",
		"max_conns": cfg.MaxConns,
	}).Info("PostgreSQL history connected")
	return h, nil
}

// Save writes both turns of the exchange and trims the caller's history in
// a single round trip.
func (h *PostgresHistory) Save(ctx context.Context, callerID, itemName, reply string) error {
	now := h.now().UTC()

	b := &pgx.Batch{}
	b.Queue(insertTurn, callerID, RoleUser, itemName, now)
	b.Queue(insertTurn, callerID, RoleAssistant, reply, now)
	b.Queue(trimTurns, callerID, h.maxTurns)

	br := h.pool.SendBatch(ctx, b)
	for i := 0; i < b.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return ports.NewStoreError(postgresStore, "save", fmt.Errorf("statement %d: %w", i, err))
		}
	}
	if err := br.Close(); err != nil {
		return ports.NewStoreError(postgresStore, "save", err)
	}
	return nil
}

// Recent returns up to limit most recent turns, oldest first.
func (h *PostgresHistory) Recent(ctx context.Context, callerID string, limit int) ([]ports.Turn, error) {
	if limit <= 0 {
		limit = h.maxTurns
	}

	rows, err := h.pool.Query(ctx, selectRecent, callerID, limit)
	if err != nil {
		return nil, ports.NewStoreError(postgresStore, "recent", err)
	}
	turns, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (ports.Turn, error) {
		var t ports.Turn
		err := row.Scan(&t.Role, &t.Content, &t.At)
		return t, err
	})
	if err != nil {
		return nil, ports.NewStoreError(postgresStore, "recent", err)
	}
	return turns, nil
}

// Close releases the pool.
func (h *PostgresHistory) Close() { h.pool.Close() }

package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema is the DDL for the substrate tables. Applied via InitSchema;
// idempotent so it can run on every startup.
const Schema = `
CREATE TABLE IF NOT EXISTS ledger_state (
    key   TEXT PRIMARY KEY,
    value BYTEA NOT NULL
);

CREATE TABLE IF NOT EXISTS ledger_history (
    id        BIGSERIAL PRIMARY KEY,
    key       TEXT NOT NULL,
    tx_id     TEXT NOT NULL,
    ts        TIMESTAMPTZ NOT NULL,
    is_delete BOOLEAN NOT NULL DEFAULT FALSE,
    value     BYTEA
);

CREATE INDEX IF NOT EXISTS ledger_history_key_idx ON ledger_history (key, id);
`

// PostgresSubstrate persists the ledger in PostgreSQL via pgx. Transaction
// timestamps come from the database clock, guarded to stay monotonic across
// this process's transactions.
type PostgresSubstrate struct {
	pool   *pgxpool.Pool
	mu     sync.Mutex
	lastTS time.Time
	closed bool
}

var _ Substrate = (*PostgresSubstrate)(nil)

// NewPostgresSubstrate connects to dsn and verifies the connection.
func NewPostgresSubstrate(ctx context.Context, dsn string) (*PostgresSubstrate, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return &PostgresSubstrate{pool: pool}, nil
}

// InitSchema applies the substrate DDL.
func (s *PostgresSubstrate) InitSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("exec schema: %w", err)
	}
	return nil
}

func (s *PostgresSubstrate) Begin(ctx context.Context) (Tx, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	var now time.Time
	if err := tx.QueryRow(ctx, `SELECT now()`).Scan(&now); err != nil {
		_ = tx.Rollback(ctx)
		return nil, fmt.Errorf("transaction timestamp: %w", err)
	}
	now = now.UTC()

	s.mu.Lock()
	if !now.After(s.lastTS) {
		now = s.lastTS.Add(time.Nanosecond)
	}
	s.lastTS = now
	s.mu.Unlock()

	return &pgTx{
		tx:     tx,
		id:     uuid.NewString(),
		ts:     now,
		writes: make(map[string]stateWrite),
	}, nil
}

func (s *PostgresSubstrate) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.pool.Close()
	return nil
}

// pgTx runs on a single pooled connection, so at most one iterator can be
// open at a time: close it before issuing further reads or writes on the
// same transaction.
type pgTx struct {
	tx     pgx.Tx
	id     string
	ts     time.Time
	writes map[string]stateWrite
	done   bool
}

func (t *pgTx) GetState(ctx context.Context, key string) ([]byte, bool, error) {
	if t.done {
		return nil, false, ErrTxDone
	}
	const q = `SELECT value FROM ledger_state WHERE key = $1`
	var value []byte
	err := t.tx.QueryRow(ctx, q, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get state: %w", err)
	}
	return value, true, nil
}

func (t *pgTx) PutState(ctx context.Context, key string, value []byte) error {
	if t.done {
		return ErrTxDone
	}
	if err := validateKey(key); err != nil {
		return err
	}
	const q = `INSERT INTO ledger_state (key, value) VALUES ($1, $2)
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`
	if _, err := t.tx.Exec(ctx, q, key, value); err != nil {
		return fmt.Errorf("put state: %w", err)
	}
	t.writes[key] = stateWrite{value: append([]byte(nil), value...)}
	return nil
}

func (t *pgTx) DelState(ctx context.Context, key string) error {
	if t.done {
		return ErrTxDone
	}
	if err := validateKey(key); err != nil {
		return err
	}
	const q = `DELETE FROM ledger_state WHERE key = $1`
	if _, err := t.tx.Exec(ctx, q, key); err != nil {
		return fmt.Errorf("del state: %w", err)
	}
	t.writes[key] = stateWrite{delete: true}
	return nil
}

func (t *pgTx) GetStateByRange(ctx context.Context, startKey, endKey string) (StateIterator, error) {
	if t.done {
		return nil, ErrTxDone
	}
	var rows pgx.Rows
	var err error
	if endKey == "" {
		const q = `SELECT key, value FROM ledger_state WHERE key >= $1 ORDER BY key`
		rows, err = t.tx.Query(ctx, q, startKey)
	} else {
		const q = `SELECT key, value FROM ledger_state WHERE key >= $1 AND key < $2 ORDER BY key`
		rows, err = t.tx.Query(ctx, q, startKey, endKey)
	}
	if err != nil {
		return nil, fmt.Errorf("range query: %w", err)
	}
	return &pgStateIterator{rows: rows}, nil
}

func (t *pgTx) GetHistoryForKey(ctx context.Context, key string) (HistoryIterator, error) {
	if t.done {
		return nil, ErrTxDone
	}
	const q = `SELECT tx_id, ts, is_delete, value FROM ledger_history WHERE key = $1 ORDER BY id`
	rows, err := t.tx.Query(ctx, q, key)
	if err != nil {
		return nil, fmt.Errorf("history query: %w", err)
	}
	return &pgHistoryIterator{rows: rows}, nil
}

func (t *pgTx) TxID() string { return t.id }

func (t *pgTx) Timestamp() time.Time { return t.ts }

func (t *pgTx) Commit(ctx context.Context) error {
	if t.done {
		return ErrTxDone
	}
	t.done = true

	keys := make([]string, 0, len(t.writes))
	for k := range t.writes {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	const q = `INSERT INTO ledger_history (key, tx_id, ts, is_delete, value) VALUES ($1, $2, $3, $4, $5)`
	for _, key := range keys {
		w := t.writes[key]
		if _, err := t.tx.Exec(ctx, q, key, t.id, t.ts, w.delete, w.value); err != nil {
			_ = t.tx.Rollback(ctx)
			return fmt.Errorf("write history: %w", err)
		}
	}
	if err := t.tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (t *pgTx) Rollback(ctx context.Context) error {
	if t.done {
		return ErrTxDone
	}
	t.done = true
	return t.tx.Rollback(ctx)
}

type pgStateIterator struct {
	rows  pgx.Rows
	key   string
	value []byte
	err   error
}

func (it *pgStateIterator) Next() bool {
	if it.err != nil {
		return false
	}
	if !it.rows.Next() {
		it.err = it.rows.Err()
		return false
	}
	if err := it.rows.Scan(&it.key, &it.value); err != nil {
		it.err = err
		return false
	}
	return true
}

func (it *pgStateIterator) Key() string   { return it.key }
func (it *pgStateIterator) Value() []byte { return it.value }
func (it *pgStateIterator) Err() error    { return it.err }

func (it *pgStateIterator) Close() error {
	it.rows.Close()
	return nil
}

type pgHistoryIterator struct {
	rows pgx.Rows
	mod  KeyModification
	err  error
}

func (it *pgHistoryIterator) Next() bool {
	if it.err != nil {
		return false
	}
	if !it.rows.Next() {
		it.err = it.rows.Err()
		return false
	}
	var mod KeyModification
	if err := it.rows.Scan(&mod.TxID, &mod.Timestamp, &mod.IsDelete, &mod.Value); err != nil {
		it.err = err
		return false
	}
	mod.Timestamp = mod.Timestamp.UTC()
	it.mod = mod
	return true
}

func (it *pgHistoryIterator) Modification() KeyModification { return it.mod }
func (it *pgHistoryIterator) Err() error                    { return it.err }

func (it *pgHistoryIterator) Close() error {
	it.rows.Close()
	return nil
}

// Package ledger defines the key-value substrate the registry persists
// certificates on, and ships three implementations of it: in-memory,
// Badger, and Postgres. The substrate contract is deliberately narrow:
// atomic get/put of a byte value by key inside a transaction, an
// ordered-range scan, a per-key modification history, and a
// substrate-assigned monotonic transaction timestamp. Everything the
// validator knows about storage goes through it.
package ledger

import (
	"context"
	"errors"
	"time"
)

// ErrClosed is returned by Begin after the substrate has been closed.
var ErrClosed = errors.New("ledger: substrate is closed")

// ErrTxDone is returned when a transaction is used after Commit or Rollback.
var ErrTxDone = errors.New("ledger: transaction has already been committed or rolled back")

// Substrate opens transactions against one ledger store. Implementations
// assign each transaction a unique id and a timestamp that never moves
// backwards across transactions of the same substrate.
type Substrate interface {
	Begin(ctx context.Context) (Tx, error)
	Close() error
}

// Tx is one atomic read-modify-write unit. Writes are visible to reads in
// the same transaction and become durable only at Commit; Rollback (or a
// Commit error) leaves the store untouched. Keys must not contain NUL.
//
// Use the pgx shape: Begin, defer Rollback, work, Commit. Rollback after
// Commit returns ErrTxDone and changes nothing, so it is safe to defer.
type Tx interface {
	GetState(ctx context.Context, key string) ([]byte, bool, error)
	PutState(ctx context.Context, key string, value []byte) error
	DelState(ctx context.Context, key string) error

	// GetStateByRange iterates keys in [startKey, endKey) in lexical
	// order. An empty startKey starts at the beginning; an empty endKey
	// means unbounded. Substrates allow one open iterator per
	// transaction; close it before further calls and before Commit.
	GetStateByRange(ctx context.Context, startKey, endKey string) (StateIterator, error)

	// GetHistoryForKey iterates the committed modifications of one key,
	// oldest first. Writes pending in this transaction do not appear.
	GetHistoryForKey(ctx context.Context, key string) (HistoryIterator, error)

	// TxID is the substrate-assigned transaction identifier.
	TxID() string

	// Timestamp is the substrate-assigned commit timestamp for this
	// transaction: monotonic across transactions, never client-supplied.
	Timestamp() time.Time

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// StateIterator walks (key, value) pairs the way pgx rows do: Next, read,
// check Err once Next returns false, Close when done.
type StateIterator interface {
	Next() bool
	Key() string
	Value() []byte
	Err() error
	Close() error
}

// HistoryIterator walks the modification records of one key.
type HistoryIterator interface {
	Next() bool
	Modification() KeyModification
	Err() error
	Close() error
}

// KeyModification is one committed change to one key. A transaction that
// writes the same key several times records a single modification carrying
// the final value.
type KeyModification struct {
	TxID      string    `json:"tx_id"`
	Timestamp time.Time `json:"ts"`
	IsDelete  bool      `json:"is_delete"`
	Value     []byte    `json:"value,omitempty"`
}

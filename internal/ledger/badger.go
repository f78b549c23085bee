package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/badger"
	"github.com/dgraph-io/badger/options"
	"github.com/google/uuid"
)

// Badger key layout. State rows live under one prefix; each key's
// modification history lives under another, ordered by a fixed-width
// per-key sequence number, with a counter row tracking the next sequence.
// The NUL separator is why ledger keys must not contain NUL.
const (
	statePrefix   = "s:"
	historyPrefix = "h:"
	counterPrefix = "c:"
	historySep    = "\x00"
)

// BadgerSubstrate persists the ledger in an embedded Badger store.
type BadgerSubstrate struct {
	db     *badger.DB
	mu     sync.Mutex
	lastTS time.Time
	closed bool
}

var _ Substrate = (*BadgerSubstrate)(nil)

// NewBadgerSubstrate opens (creating if needed) a Badger store at dir.
// lowMemory switches value-log and table loading to FileIO for small hosts.
func NewBadgerSubstrate(dir string, lowMemory bool) (*BadgerSubstrate, error) {
	opts := badger.DefaultOptions("")
	opts.Dir = dir
	opts.ValueDir = dir
	opts.Logger = nil
	if lowMemory {
		opts.ValueLogLoadingMode = options.FileIO
		opts.TableLoadingMode = options.FileIO
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %s: %w", dir, err)
	}
	return &BadgerSubstrate{db: db}, nil
}

func (s *BadgerSubstrate) Begin(_ context.Context) (Tx, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	now := time.Now().UTC()
	if !now.After(s.lastTS) {
		now = s.lastTS.Add(time.Nanosecond)
	}
	s.lastTS = now
	return &badgerTx{
		sub:    s,
		txn:    s.db.NewTransaction(true),
		id:     uuid.NewString(),
		ts:     now,
		writes: make(map[string]stateWrite),
	}, nil
}

func (s *BadgerSubstrate) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

type badgerTx struct {
	sub    *BadgerSubstrate
	txn    *badger.Txn
	id     string
	ts     time.Time
	writes map[string]stateWrite
	done   bool
}

func (t *badgerTx) GetState(_ context.Context, key string) ([]byte, bool, error) {
	if t.done {
		return nil, false, ErrTxDone
	}
	item, err := t.txn.Get([]byte(statePrefix + key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	val, err := item.ValueCopy(nil)
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

func (t *badgerTx) PutState(_ context.Context, key string, value []byte) error {
	if t.done {
		return ErrTxDone
	}
	if err := validateKey(key); err != nil {
		return err
	}
	val := append([]byte(nil), value...)
	if err := t.txn.Set([]byte(statePrefix+key), val); err != nil {
		return err
	}
	t.writes[key] = stateWrite{value: val}
	return nil
}

func (t *badgerTx) DelState(_ context.Context, key string) error {
	if t.done {
		return ErrTxDone
	}
	if err := validateKey(key); err != nil {
		return err
	}
	if err := t.txn.Delete([]byte(statePrefix + key)); err != nil {
		return err
	}
	t.writes[key] = stateWrite{delete: true}
	return nil
}

func (t *badgerTx) GetStateByRange(_ context.Context, startKey, endKey string) (StateIterator, error) {
	if t.done {
		return nil, ErrTxDone
	}
	it := t.txn.NewIterator(badger.DefaultIteratorOptions)
	return &badgerStateIterator{
		it:   it,
		seek: []byte(statePrefix + startKey),
		end:  endKey,
	}, nil
}

func (t *badgerTx) GetHistoryForKey(_ context.Context, key string) (HistoryIterator, error) {
	if t.done {
		return nil, ErrTxDone
	}
	it := t.txn.NewIterator(badger.DefaultIteratorOptions)
	return &badgerHistoryIterator{
		it:     it,
		prefix: []byte(historyPrefix + key + historySep),
	}, nil
}

func (t *badgerTx) TxID() string { return t.id }

func (t *badgerTx) Timestamp() time.Time { return t.ts }

func (t *badgerTx) Commit(_ context.Context) error {
	if t.done {
		return ErrTxDone
	}
	t.done = true

	keys := make([]string, 0, len(t.writes))
	for k := range t.writes {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		w := t.writes[key]
		seq, err := t.nextHistorySeq(key)
		if err != nil {
			t.txn.Discard()
			return err
		}
		row, err := json.Marshal(KeyModification{
			TxID:      t.id,
			Timestamp: t.ts,
			IsDelete:  w.delete,
			Value:     w.value,
		})
		if err != nil {
			t.txn.Discard()
			return err
		}
		rowKey := historyPrefix + key + historySep + fmt.Sprintf("%016d", seq)
		if err := t.txn.Set([]byte(rowKey), row); err != nil {
			t.txn.Discard()
			return err
		}
	}
	return t.txn.Commit()
}

func (t *badgerTx) Rollback(_ context.Context) error {
	if t.done {
		return ErrTxDone
	}
	t.done = true
	t.txn.Discard()
	return nil
}

// nextHistorySeq reads and bumps the per-key history counter inside the
// same transaction, so history rows commit atomically with the state write.
func (t *badgerTx) nextHistorySeq(key string) (uint64, error) {
	ck := []byte(counterPrefix + key)
	var seq uint64
	item, err := t.txn.Get(ck)
	switch {
	case errors.Is(err, badger.ErrKeyNotFound):
	case err != nil:
		return 0, err
	default:
		raw, verr := item.ValueCopy(nil)
		if verr != nil {
			return 0, verr
		}
		seq, verr = strconv.ParseUint(string(raw), 10, 64)
		if verr != nil {
			return 0, fmt.Errorf("corrupt history counter for %q: %w", key, verr)
		}
	}
	if err := t.txn.Set(ck, []byte(fmt.Sprintf("%016d", seq+1))); err != nil {
		return 0, err
	}
	return seq, nil
}

type badgerStateIterator struct {
	it      *badger.Iterator
	seek    []byte
	end     string
	started bool
	key     string
	value   []byte
	err     error
	closed  bool
}

func (b *badgerStateIterator) Next() bool {
	if b.closed || b.err != nil {
		return false
	}
	if !b.started {
		b.it.Seek(b.seek)
		b.started = true
	} else {
		b.it.Next()
	}
	if !b.it.ValidForPrefix([]byte(statePrefix)) {
		return false
	}
	item := b.it.Item()
	key := string(item.Key()[len(statePrefix):])
	if b.end != "" && key >= b.end {
		return false
	}
	val, err := item.ValueCopy(nil)
	if err != nil {
		b.err = err
		return false
	}
	b.key, b.value = key, val
	return true
}

func (b *badgerStateIterator) Key() string   { return b.key }
func (b *badgerStateIterator) Value() []byte { return b.value }
func (b *badgerStateIterator) Err() error    { return b.err }

func (b *badgerStateIterator) Close() error {
	if !b.closed {
		b.closed = true
		b.it.Close()
	}
	return nil
}

type badgerHistoryIterator struct {
	it      *badger.Iterator
	prefix  []byte
	started bool
	mod     KeyModification
	err     error
	closed  bool
}

func (b *badgerHistoryIterator) Next() bool {
	if b.closed || b.err != nil {
		return false
	}
	if !b.started {
		b.it.Seek(b.prefix)
		b.started = true
	} else {
		b.it.Next()
	}
	if !b.it.ValidForPrefix(b.prefix) {
		return false
	}
	raw, err := b.it.Item().ValueCopy(nil)
	if err != nil {
		b.err = err
		return false
	}
	var mod KeyModification
	if err := json.Unmarshal(raw, &mod); err != nil {
		b.err = fmt.Errorf("corrupt history row: %w", err)
		return false
	}
	b.mod = mod
	return true
}

func (b *badgerHistoryIterator) Modification() KeyModification { return b.mod }
func (b *badgerHistoryIterator) Err() error                    { return b.err }

func (b *badgerHistoryIterator) Close() error {
	if !b.closed {
		b.closed = true
		b.it.Close()
	}
	return nil
}

func validateKey(key string) error {
	if key == "" {
		return errors.New("ledger: key must not be empty")
	}
	if strings.Contains(key, historySep) {
		return errors.New("ledger: key must not contain NUL")
	}
	return nil
}

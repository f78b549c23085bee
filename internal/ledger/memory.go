package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemSubstrate is a process-local substrate backed by maps. It carries the
// full Substrate contract, history included, so it doubles as the reference
// implementation the other substrates are tested against.
type MemSubstrate struct {
	mu      sync.Mutex
	state   map[string][]byte
	history map[string][]KeyModification
	lastTS  time.Time
	closed  bool
}

var _ Substrate = (*MemSubstrate)(nil)

// NewMemSubstrate returns an empty in-memory substrate.
func NewMemSubstrate() *MemSubstrate {
	return &MemSubstrate{
		state:   make(map[string][]byte),
		history: make(map[string][]KeyModification),
	}
}

// Begin opens a transaction with a fresh id and a monotonic timestamp.
func (m *MemSubstrate) Begin(_ context.Context) (Tx, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	now := time.Now().UTC()
	if !now.After(m.lastTS) {
		now = m.lastTS.Add(time.Nanosecond)
	}
	m.lastTS = now
	return &memTx{
		sub:    m,
		id:     uuid.NewString(),
		ts:     now,
		writes: make(map[string]stateWrite),
	}, nil
}

// Close marks the substrate closed. Open transactions can still finish.
func (m *MemSubstrate) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// stateWrite is one buffered mutation: the final value a transaction leaves
// a key with, or its deletion.
type stateWrite struct {
	value  []byte
	delete bool
}

type memTx struct {
	sub    *MemSubstrate
	id     string
	ts     time.Time
	writes map[string]stateWrite
	done   bool
}

func (t *memTx) GetState(_ context.Context, key string) ([]byte, bool, error) {
	if t.done {
		return nil, false, ErrTxDone
	}
	if w, ok := t.writes[key]; ok {
		if w.delete {
			return nil, false, nil
		}
		return append([]byte(nil), w.value...), true, nil
	}
	t.sub.mu.Lock()
	defer t.sub.mu.Unlock()
	v, ok := t.sub.state[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (t *memTx) PutState(_ context.Context, key string, value []byte) error {
	if t.done {
		return ErrTxDone
	}
	if err := validateKey(key); err != nil {
		return err
	}
	t.writes[key] = stateWrite{value: append([]byte(nil), value...)}
	return nil
}

func (t *memTx) DelState(_ context.Context, key string) error {
	if t.done {
		return ErrTxDone
	}
	if err := validateKey(key); err != nil {
		return err
	}
	t.writes[key] = stateWrite{delete: true}
	return nil
}

func (t *memTx) GetStateByRange(_ context.Context, startKey, endKey string) (StateIterator, error) {
	if t.done {
		return nil, ErrTxDone
	}

	merged := make(map[string][]byte)
	t.sub.mu.Lock()
	for k, v := range t.sub.state {
		merged[k] = v
	}
	t.sub.mu.Unlock()
	for k, w := range t.writes {
		if w.delete {
			delete(merged, k)
			continue
		}
		merged[k] = w.value
	}

	keys := make([]string, 0, len(merged))
	for k := range merged {
		if k < startKey {
			continue
		}
		if endKey != "" && k >= endKey {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]statePair, len(keys))
	for i, k := range keys {
		pairs[i] = statePair{key: k, value: append([]byte(nil), merged[k]...)}
	}
	return &sliceStateIterator{pairs: pairs}, nil
}

func (t *memTx) GetHistoryForKey(_ context.Context, key string) (HistoryIterator, error) {
	if t.done {
		return nil, ErrTxDone
	}
	t.sub.mu.Lock()
	mods := append([]KeyModification(nil), t.sub.history[key]...)
	t.sub.mu.Unlock()
	return &sliceHistoryIterator{mods: mods}, nil
}

func (t *memTx) TxID() string { return t.id }

func (t *memTx) Timestamp() time.Time { return t.ts }

func (t *memTx) Commit(_ context.Context) error {
	if t.done {
		return ErrTxDone
	}
	t.done = true

	keys := make([]string, 0, len(t.writes))
	for k := range t.writes {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	t.sub.mu.Lock()
	defer t.sub.mu.Unlock()
	for _, k := range keys {
		w := t.writes[k]
		if w.delete {
			delete(t.sub.state, k)
		} else {
			t.sub.state[k] = w.value
		}
		t.sub.history[k] = append(t.sub.history[k], KeyModification{
			TxID:      t.id,
			Timestamp: t.ts,
			IsDelete:  w.delete,
			Value:     w.value,
		})
	}
	return nil
}

func (t *memTx) Rollback(_ context.Context) error {
	if t.done {
		return ErrTxDone
	}
	t.done = true
	t.writes = nil
	return nil
}

type statePair struct {
	key   string
	value []byte
}

type sliceStateIterator struct {
	pairs []statePair
	cur   statePair
}

func (it *sliceStateIterator) Next() bool {
	if len(it.pairs) == 0 {
		return false
	}
	it.cur = it.pairs[0]
	it.pairs = it.pairs[1:]
	return true
}

func (it *sliceStateIterator) Key() string   { return it.cur.key }
func (it *sliceStateIterator) Value() []byte { return it.cur.value }
func (it *sliceStateIterator) Err() error    { return nil }
func (it *sliceStateIterator) Close() error  { return nil }

type sliceHistoryIterator struct {
	mods []KeyModification
	cur  KeyModification
}

func (it *sliceHistoryIterator) Next() bool {
	if len(it.mods) == 0 {
		return false
	}
	it.cur = it.mods[0]
	it.mods = it.mods[1:]
	return true
}

func (it *sliceHistoryIterator) Modification() KeyModification { return it.cur }
func (it *sliceHistoryIterator) Err() error                    { return nil }
func (it *sliceHistoryIterator) Close() error                  { return nil }

package store

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/casdoc/casdoc/internal/document"
)

// Memory is a mutex-guarded in-process store used for unit tests and
// single-node development. Tokens are a per-store monotonic counter; expiry
// is enforced lazily on access.
type Memory struct {
	mu      sync.Mutex
	entries map[string]*memEntry
	seq     uint64
	now     func() time.Time
}

type memEntry struct {
	doc       document.Document
	cas       CAS
	expiresAt time.Time // zero means no expiry
}

func NewMemory() *Memory {
	return &Memory{entries: make(map[string]*memEntry), now: time.Now}
}

func (m *Memory) nextCAS() CAS {
	m.seq++
	return CAS(strconv.FormatUint(m.seq, 10))
}

// live returns the entry for key, reaping it first if expired.
func (m *Memory) live(key string) *memEntry {
	e, ok := m.entries[key]
	if !ok {
		return nil
	}
	if !e.expiresAt.IsZero() && m.now().After(e.expiresAt) {
		delete(m.entries, key)
		return nil
	}
	return e
}

func (m *Memory) Get(ctx context.Context, key string) (document.Document, CAS, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.live(key)
	if e == nil {
		return nil, "", ErrNotFound
	}
	return e.doc.Clone(), e.cas, nil
}

func (m *Memory) Put(ctx context.Context, key string, doc document.Document, opts PutOptions) (CAS, error) {
	if err := checkPut(key, doc); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	e := m.live(key)
	if opts.IfAbsent && e != nil {
		return "", ErrKeyExists
	}
	if opts.IfCAS != nil && (e == nil || e.cas != *opts.IfCAS) {
		return "", ErrCASMismatch
	}

	next := &memEntry{doc: doc.Clone(), cas: m.nextCAS()}
	if opts.TTL > 0 {
		next.expiresAt = m.now().Add(opts.TTL)
	}
	m.entries[key] = next
	return next.cas, nil
}

func (m *Memory) Remove(ctx context.Context, key string, ifCAS *CAS) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.live(key)
	if e == nil {
		return ErrNotFound
	}
	if ifCAS != nil && e.cas != *ifCAS {
		return ErrCASMismatch
	}
	delete(m.entries, key)
	return nil
}

// SetClock overrides the time source. Test hook.
func (m *Memory) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

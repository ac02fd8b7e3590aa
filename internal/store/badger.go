package store

import (
	"context"
	"encoding/json"

	"github.com/cockroachdb/errors"
	badger "github.com/dgraph-io/badger/v4"

	"github.com/casdoc/casdoc/internal/document"
)

// Badger is an embedded single-node store. Each key holds a JSON envelope
// {cas, doc}; the CAS check runs inside a badger read-write transaction, so
// badger's own conflict detection guards the window between compare and
// swap. TTL maps to badger entry TTL.
type Badger struct {
	db *badger.DB
}

// NewBadger opens the database at path, or fully in memory when path is
// empty (tests). Callers own Close.
func NewBadger(path string) (*Badger, error) {
	var opts badger.Options
	if path == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(path)
	}
	opts = opts.WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrap(err, "badger open")
	}
	return &Badger{db: db}, nil
}

func (b *Badger) Close() error { return b.db.Close() }

type badgerEnvelope struct {
	CAS uint64            `json:"cas"`
	Doc document.Document `json:"doc"`
}

func badgerCAS(env badgerEnvelope) CAS {
	return CAS(casUintString(env.CAS))
}

func (b *Badger) Get(ctx context.Context, key string) (document.Document, CAS, error) {
	var env badgerEnvelope
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &env)
		})
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, "", ErrNotFound
		}
		return nil, "", errors.Wrap(err, "badger get")
	}
	return env.Doc, badgerCAS(env), nil
}

func (b *Badger) Put(ctx context.Context, key string, doc document.Document, opts PutOptions) (CAS, error) {
	if err := checkPut(key, doc); err != nil {
		return "", err
	}
	conditional := opts.IfAbsent || opts.IfCAS != nil

	var newCAS CAS
	attempt := func(txn *badger.Txn) error {
		var cur uint64
		exists := true
		item, err := txn.Get([]byte(key))
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
			exists = false
		case err != nil:
			return errors.Wrap(err, "badger get")
		default:
			var env badgerEnvelope
			if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &env) }); err != nil {
				return errors.Wrap(err, "badger envelope decode")
			}
			cur = env.CAS
		}

		if opts.IfAbsent && exists {
			return ErrKeyExists
		}
		if opts.IfCAS != nil {
			if !exists || CAS(casUintString(cur)) != *opts.IfCAS {
				return ErrCASMismatch
			}
		}

		next := badgerEnvelope{CAS: cur + 1, Doc: doc}
		payload, err := json.Marshal(next)
		if err != nil {
			return errors.Wrap(err, "badger envelope encode")
		}
		entry := badger.NewEntry([]byte(key), payload)
		if opts.TTL > 0 {
			entry = entry.WithTTL(opts.TTL)
		}
		if err := txn.SetEntry(entry); err != nil {
			return err
		}
		newCAS = badgerCAS(next)
		return nil
	}

	for i := 0; i < maxTxRetries; i++ {
		err := b.db.Update(attempt)
		if err == nil {
			return newCAS, nil
		}
		if errors.Is(err, badger.ErrConflict) {
			if conditional {
				return "", ErrCASMismatch
			}
			continue
		}
		return "", err
	}
	return "", errors.Wrap(badger.ErrConflict, "badger put retries exhausted")
}

func (b *Badger) Remove(ctx context.Context, key string, ifCAS *CAS) error {
	attempt := func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return errors.Wrap(err, "badger get")
		}
		if ifCAS != nil {
			var env badgerEnvelope
			if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &env) }); err != nil {
				return errors.Wrap(err, "badger envelope decode")
			}
			if badgerCAS(env) != *ifCAS {
				return ErrCASMismatch
			}
		}
		return txn.Delete([]byte(key))
	}

	err := b.db.Update(attempt)
	if errors.Is(err, badger.ErrConflict) {
		if ifCAS != nil {
			return ErrCASMismatch
		}
		return b.db.Update(attempt)
	}
	return err
}

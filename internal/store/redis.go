package store

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"

	"github.com/casdoc/casdoc/internal/document"
)

// maxTxRetries bounds WATCH retries for unconditional writes. Conditional
// writes never retry: a touched key means the token changed, which is a
// conflict the caller must observe.
const maxTxRetries = 5

// Redis stores each document as a JSON envelope {cas, doc} under
// prefix+key. The conditional write runs as a WATCH/MULTI transaction so the
// compare and the swap are atomic; TTL maps to the key's native expiry.
type Redis struct {
	client *redis.Client
	prefix string

	// invoked inside the transaction window, between the read and the
	// pipelined write. Test hook for forcing WATCH failures.
	beforeCommit func()
}

type redisEnvelope struct {
	CAS uint64            `json:"cas"`
	Doc document.Document `json:"doc"`
}

// NewRedis creates a Redis-backed store. Prefix may be empty.
func NewRedis(client *redis.Client, prefix string) *Redis {
	if prefix == "" {
		prefix = "doc:"
	}
	return &Redis{client: client, prefix: prefix}
}

func (r *Redis) key(k string) string { return r.prefix + k }

func casOf(env redisEnvelope) CAS {
	return CAS(strconv.FormatUint(env.CAS, 10))
}

func (r *Redis) Get(ctx context.Context, key string) (document.Document, CAS, error) {
	b, err := r.client.Get(ctx, r.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, "", ErrNotFound
		}
		return nil, "", errors.Wrap(err, "redis get")
	}
	var env redisEnvelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, "", errors.Wrap(err, "redis envelope decode")
	}
	return env.Doc, casOf(env), nil
}

func (r *Redis) Put(ctx context.Context, key string, doc document.Document, opts PutOptions) (CAS, error) {
	if err := checkPut(key, doc); err != nil {
		return "", err
	}
	rkey := r.key(key)

	var newCAS CAS
	attempt := func(tx *redis.Tx) error {
		var cur uint64
		exists := true
		b, err := tx.Get(ctx, rkey).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
			exists = false
		case err != nil:
			return errors.Wrap(err, "redis get")
		default:
			var env redisEnvelope
			if err := json.Unmarshal(b, &env); err != nil {
				return errors.Wrap(err, "redis envelope decode")
			}
			cur = env.CAS
		}

		if opts.IfAbsent && exists {
			return ErrKeyExists
		}
		if opts.IfCAS != nil {
			if !exists || casOf(redisEnvelope{CAS: cur}) != *opts.IfCAS {
				return ErrCASMismatch
			}
		}

		next := redisEnvelope{CAS: cur + 1, Doc: doc}
		payload, err := json.Marshal(next)
		if err != nil {
			return errors.Wrap(err, "redis envelope encode")
		}
		if r.beforeCommit != nil {
			r.beforeCommit()
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, rkey, payload, opts.TTL)
			return nil
		})
		if err != nil {
			return err
		}
		newCAS = casOf(next)
		return nil
	}

	for i := 0; i < maxTxRetries; i++ {
		err := r.client.Watch(ctx, attempt, rkey)
		if err == nil {
			return newCAS, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			// the watched key changed under us
			if opts.IfAbsent {
				// a raced insert-only write means someone created the key
				return "", ErrKeyExists
			}
			if opts.IfCAS != nil {
				// the token is stale
				return "", ErrCASMismatch
			}
			continue
		}
		return "", err
	}
	return "", errors.Wrap(redis.TxFailedErr, "redis put retries exhausted")
}

func (r *Redis) Remove(ctx context.Context, key string, ifCAS *CAS) error {
	rkey := r.key(key)
	attempt := func(tx *redis.Tx) error {
		b, err := tx.Get(ctx, rkey).Bytes()
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		if err != nil {
			return errors.Wrap(err, "redis get")
		}
		if ifCAS != nil {
			var env redisEnvelope
			if err := json.Unmarshal(b, &env); err != nil {
				return errors.Wrap(err, "redis envelope decode")
			}
			if casOf(env) != *ifCAS {
				return ErrCASMismatch
			}
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, rkey)
			return nil
		})
		return err
	}

	err := r.client.Watch(ctx, attempt, rkey)
	if errors.Is(err, redis.TxFailedErr) {
		if ifCAS != nil {
			return ErrCASMismatch
		}
		// unconditional remove raced a writer; the delete still wins
		return r.client.Del(ctx, rkey).Err()
	}
	return err
}

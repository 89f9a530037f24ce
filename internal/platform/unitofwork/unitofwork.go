// Package unitofwork serializes per-entity mutations and scopes each state
// transition plus its audit append into one atomic unit.
package unitofwork

import (
	"context"
	"database/sql"
	"sync"
	"time"

	dErrors "kycvault/pkg/domain-errors"
	txcontext "kycvault/pkg/platform/tx"
)

// Runner executes fn as one unit of work keyed by entity ID. Two concurrent
// units with the same key never interleave.
type Runner interface {
	RunInTx(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

// numShards spreads entity keys over independent mutexes so unrelated
// entities do not contend.
const numShards = 128

// defaultTimeout bounds a unit of work; these operations are in-memory scale
// and should never take seconds.
const defaultTimeout = 5 * time.Second

// Memory serializes units with sharded mutexes keyed by a hash of the entity
// ID. It provides mutual exclusion, not rollback: the in-memory stores it
// guards are append-only or last-write-wins, so a failed unit leaves no
// partial state behind (services re-check state inside the lock).
type Memory struct {
	shards  [numShards]sync.Mutex
	timeout time.Duration
}

func NewMemory() *Memory {
	return &Memory{timeout: defaultTimeout}
}

func (m *Memory) RunInTx(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "unit of work aborted: context cancelled")
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	shard := hashKey(key) % numShards
	m.shards[shard].Lock()
	defer m.shards[shard].Unlock()

	// Check again after acquiring the lock.
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "unit of work aborted: context cancelled")
	}

	return fn(ctx)
}

// hashKey uses FNV-1a for shard distribution.
func hashKey(s string) uint32 {
	const (
		fnvOffset = 2166136261
		fnvPrime  = 16777619
	)
	h := uint32(fnvOffset)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= fnvPrime
	}
	return h
}

// SQL runs each unit inside a database transaction carried through context,
// so stores that honor tx.From commit or roll back together. Row-level locks
// taken by the stores provide the per-entity serialization.
type SQL struct {
	db *sql.DB
}

func NewSQL(db *sql.DB) *SQL {
	return &SQL{db: db}
}

func (s *SQL) RunInTx(ctx context.Context, _ string, fn func(ctx context.Context) error) error {
	return txcontext.RunInTx(ctx, s.db, fn)
}

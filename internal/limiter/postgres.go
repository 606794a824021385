package limiter

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is the part of a pgx pool the limiter needs.
// *pgxpool.Pool and pgxmock pools satisfy it.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PG keeps counters in the validation_limiter table, so lockouts survive a
// daemon restart.
type PG struct {
	q        Querier
	window   time.Duration
	maxFails int
	blockFor time.Duration
	now      func() time.Time
}

// NewPG constructs a PostgreSQL-backed limiter with the same semantics as Memory.
func NewPG(q Querier, window time.Duration, maxFails int, blockFor time.Duration) *PG {
	return &PG{q: q, window: window, maxFails: maxFails, blockFor: blockFor, now: time.Now}
}

const (
	blockedUntilSQL = `SELECT blocked_until FROM validation_limiter WHERE email = $1 AND source_hash = $2`

	resetSQL = `DELETE FROM validation_limiter WHERE email = $1 AND source_hash = $2`

	// $3 now, $4 max fails, $5 block deadline, $6 window in seconds.
	failureSQL = `
INSERT INTO validation_limiter AS v (email, source_hash, fail_count, blocked_until, updated_at)
VALUES ($1, $2, 1, CASE WHEN $4 <= 1 THEN $5::timestamptz ELSE 'epoch'::timestamptz END, $3)
ON CONFLICT (email, source_hash) DO UPDATE SET
  fail_count = CASE WHEN $3 - v.updated_at > $6 * interval '1 second' THEN 1 ELSE v.fail_count + 1 END,
  blocked_until = CASE
    WHEN (CASE WHEN $3 - v.updated_at > $6 * interval '1 second' THEN 1 ELSE v.fail_count + 1 END) >= $4
    THEN $5::timestamptz
    ELSE v.blocked_until
  END,
  updated_at = $3
RETURNING blocked_until`
)

// Allow reports whether validation is currently allowed and a retry-after duration.
func (l *PG) Allow(ctx context.Context, email string, sourceHash []byte) (bool, time.Duration, error) {
	var until time.Time
	err := l.q.QueryRow(ctx, blockedUntilSQL, email, sourceHash).Scan(&until)
	if errors.Is(err, pgx.ErrNoRows) {
		return true, 0, nil
	}
	if err != nil {
		return false, 0, err
	}
	if now := l.now(); until.After(now) {
		return false, until.Sub(now), nil
	}
	return true, 0, nil
}

// Success forgets the counter.
func (l *PG) Success(ctx context.Context, email string, sourceHash []byte) error {
	_, err := l.q.Exec(ctx, resetSQL, email, sourceHash)
	return err
}

// Failure counts a rejected attempt and blocks at the threshold. Counting and
// blocking happen in one statement so concurrent attempts cannot skip the block.
func (l *PG) Failure(ctx context.Context, email string, sourceHash []byte) (bool, time.Duration, error) {
	now := l.now()
	deadline := now.Add(l.blockFor)
	windowSecs := int64(l.window / time.Second)

	var until time.Time
	err := l.q.QueryRow(ctx, failureSQL, email, sourceHash, now, l.maxFails, deadline, windowSecs).Scan(&until)
	if err != nil {
		return false, 0, err
	}
	if until.After(now) {
		return true, until.Sub(now), nil
	}
	return false, 0, nil
}

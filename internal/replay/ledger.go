// Package replay enforces single-use of voucher signatures.
package replay

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/redis/go-redis/v9"
)

// ErrSignatureUsed reports that a signature was already accepted in a
// successful redemption. Permanent: the caller needs a fresh voucher.
var ErrSignatureUsed = errors.New("signature already used")

const keyPrefix = "replay:sig:"

// Ledger is the append-only set of redeemed signatures. The replay key is
// keccak256 of the raw signature bytes; entries never expire and are never
// cleared.
type Ledger struct {
	rdb *redis.Client
}

func New(rdb *redis.Client) *Ledger {
	return &Ledger{rdb: rdb}
}

// Mark atomically checks-and-sets the used flag for sig. Of two redemptions
// racing to use the same signature, exactly one gets the mark.
func (l *Ledger) Mark(ctx context.Context, sig []byte) error {
	set, err := l.rdb.SetNX(ctx, key(sig), 1, 0).Result()
	if err != nil {
		return fmt.Errorf("mark signature: %w", err)
	}
	if !set {
		return ErrSignatureUsed
	}
	return nil
}

// IsUsed reports whether sig has been marked.
func (l *Ledger) IsUsed(ctx context.Context, sig []byte) (bool, error) {
	n, err := l.rdb.Exists(ctx, key(sig)).Result()
	if err != nil {
		return false, fmt.Errorf("replay lookup: %w", err)
	}
	return n == 1, nil
}

// Release removes the mark for sig. Only the redemption engine's
// compensation path calls this, when a later step of the same redemption
// fails: a failed attempt must leave the ledger untouched so the voucher
// stays retryable.
func (l *Ledger) Release(ctx context.Context, sig []byte) error {
	return l.rdb.Del(ctx, key(sig)).Err()
}

func key(sig []byte) string {
	return keyPrefix + crypto.Keccak256Hash(sig).Hex()
}

// Package registry is the non-fungible item collaborator: it assigns
// identifiers and persists item attributes.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"

	"github.com/gmnlabs/gmn-shop/internal/item"
)

// ErrNotFound reports a lookup of an identifier that was never minted or
// has been burned.
var ErrNotFound = errors.New("item not found")

// ItemRegistry is the minting capability the redemption engine consumes.
// Burn exists only for the engine's compensation path: a batch that fails
// mid-mint unwinds the items already created.
type ItemRegistry interface {
	Mint(ctx context.Context, owner common.Address, attrs item.Attributes) (uint64, error)
	Burn(ctx context.Context, id uint64) error
	Get(ctx context.Context, id uint64) (item.Attributes, error)
}

const (
	seqKey         = "item:seq"
	attrsKeyPrefix = "item:attrs:"
	ownerKeyPrefix = "item:owner:"
	countKeyPrefix = "item:count:"
)

// Registry implements ItemRegistry on Redis. Identifiers come from a Redis
// counter: strictly increasing, first identifier is 1, never reused. A
// burned identifier stays retired.
type Registry struct {
	rdb *redis.Client
}

func New(rdb *redis.Client) *Registry {
	return &Registry{rdb: rdb}
}

// Mint creates a new item owned by owner and returns its identifier.
func (r *Registry) Mint(ctx context.Context, owner common.Address, attrs item.Attributes) (uint64, error) {
	id, err := r.rdb.Incr(ctx, seqKey).Result()
	if err != nil {
		return 0, fmt.Errorf("next item id: %w", err)
	}
	raw, err := json.Marshal(attrs)
	if err != nil {
		return 0, fmt.Errorf("marshal attributes: %w", err)
	}
	pipe := r.rdb.TxPipeline()
	pipe.Set(ctx, attrsKey(uint64(id)), raw, 0)
	pipe.Set(ctx, ownerKey(uint64(id)), strings.ToLower(owner.Hex()), 0)
	pipe.Incr(ctx, countKey(owner))
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("persist item %d: %w", id, err)
	}
	return uint64(id), nil
}

// Burn removes an item. The identifier is not returned to the sequence.
func (r *Registry) Burn(ctx context.Context, id uint64) error {
	rawOwner, err := r.rdb.Get(ctx, ownerKey(id)).Result()
	if err == redis.Nil {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("load owner of %d: %w", id, err)
	}
	pipe := r.rdb.TxPipeline()
	pipe.Del(ctx, attrsKey(id))
	pipe.Del(ctx, ownerKey(id))
	pipe.Decr(ctx, countKey(common.HexToAddress(rawOwner)))
	_, err = pipe.Exec(ctx)
	return err
}

// Get returns the attributes of a minted item.
func (r *Registry) Get(ctx context.Context, id uint64) (item.Attributes, error) {
	raw, err := r.rdb.Get(ctx, attrsKey(id)).Result()
	if err == redis.Nil {
		return item.Attributes{}, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	if err != nil {
		return item.Attributes{}, fmt.Errorf("load item %d: %w", id, err)
	}
	var attrs item.Attributes
	if err := json.Unmarshal([]byte(raw), &attrs); err != nil {
		return item.Attributes{}, fmt.Errorf("unmarshal item %d: %w", id, err)
	}
	return attrs, nil
}

// OwnerOf returns the owner of a minted item.
func (r *Registry) OwnerOf(ctx context.Context, id uint64) (common.Address, error) {
	raw, err := r.rdb.Get(ctx, ownerKey(id)).Result()
	if err == redis.Nil {
		return common.Address{}, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	if err != nil {
		return common.Address{}, fmt.Errorf("load owner of %d: %w", id, err)
	}
	return common.HexToAddress(raw), nil
}

// BalanceOf returns how many items owner currently holds.
func (r *Registry) BalanceOf(ctx context.Context, owner common.Address) (int64, error) {
	raw, err := r.rdb.Get(ctx, countKey(owner)).Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("load item count: %w", err)
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("corrupt item count %q: %w", raw, err)
	}
	return n, nil
}

func attrsKey(id uint64) string {
	return attrsKeyPrefix + strconv.FormatUint(id, 10)
}

func ownerKey(id uint64) string {
	return ownerKeyPrefix + strconv.FormatUint(id, 10)
}

func countKey(owner common.Address) string {
	return countKeyPrefix + strings.ToLower(owner.Hex())
}

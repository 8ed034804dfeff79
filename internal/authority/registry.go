// Package authority tracks which identities may issue valid vouchers.
package authority

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"
)

// ErrUnauthorized reports an administrative action attempted by a caller
// that is not the administrator. The action has no effect.
var ErrUnauthorized = errors.New("unauthorized")

const (
	adminKey        = "authority:admin"
	issuerKeyPrefix = "authority:issuer:"
)

// Registry is a flat capability table: identity → "holds issuer authority".
// Mutations are guarded by a single administrator identity assigned at
// deployment and transferable only through TransferAdmin.
type Registry struct {
	rdb *redis.Client
}

func New(rdb *redis.Client) *Registry {
	return &Registry{rdb: rdb}
}

// Init seeds the administrator identity if none is stored yet. Safe to call
// on every startup: an existing administrator is never overwritten.
func (r *Registry) Init(ctx context.Context, admin common.Address) error {
	return r.rdb.SetNX(ctx, adminKey, strings.ToLower(admin.Hex()), 0).Err()
}

// Admin returns the current administrator identity.
func (r *Registry) Admin(ctx context.Context) (common.Address, error) {
	raw, err := r.rdb.Get(ctx, adminKey).Result()
	if err != nil {
		return common.Address{}, fmt.Errorf("load admin: %w", err)
	}
	return common.HexToAddress(raw), nil
}

// IsAdmin reports whether id is the current administrator.
func (r *Registry) IsAdmin(ctx context.Context, id common.Address) (bool, error) {
	admin, err := r.Admin(ctx)
	if err != nil {
		return false, err
	}
	return admin == id, nil
}

// TransferAdmin hands the administrator role to next. Administrator only.
func (r *Registry) TransferAdmin(ctx context.Context, caller, next common.Address) error {
	if err := r.requireAdmin(ctx, caller); err != nil {
		return err
	}
	return r.rdb.Set(ctx, adminKey, strings.ToLower(next.Hex()), 0).Err()
}

// Grant sets the issuer flag for id. Administrator only; granting an
// identity that already holds authority is a no-op success.
func (r *Registry) Grant(ctx context.Context, caller, id common.Address) error {
	if err := r.requireAdmin(ctx, caller); err != nil {
		return err
	}
	return r.rdb.Set(ctx, issuerKey(id), 1, 0).Err()
}

// Revoke clears the issuer flag for id. Administrator only, idempotent.
// Vouchers signed by id before revocation stop verifying: authority is
// checked at redemption time.
func (r *Registry) Revoke(ctx context.Context, caller, id common.Address) error {
	if err := r.requireAdmin(ctx, caller); err != nil {
		return err
	}
	return r.rdb.Del(ctx, issuerKey(id)).Err()
}

// IsAuthorized reports whether id currently holds issuer authority.
// Pure lookup, no side effects.
func (r *Registry) IsAuthorized(ctx context.Context, id common.Address) (bool, error) {
	n, err := r.rdb.Exists(ctx, issuerKey(id)).Result()
	if err != nil {
		return false, fmt.Errorf("issuer lookup: %w", err)
	}
	return n == 1, nil
}

func (r *Registry) requireAdmin(ctx context.Context, caller common.Address) error {
	ok, err := r.IsAdmin(ctx, caller)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s is not the administrator", ErrUnauthorized, caller.Hex())
	}
	return nil
}

func issuerKey(id common.Address) string {
	return issuerKeyPrefix + strings.ToLower(id.Hex())
}

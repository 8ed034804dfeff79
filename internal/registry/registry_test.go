package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"

	"github.com/gmnlabs/gmn-shop/internal/item"
)

var owner = common.HexToAddress("0x1111111111111111111111111111111111111111")

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	mr := miniredis.RunT(t)
	return New(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
}

func TestMint_AssignsSequentialIDsFromOne(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry(t)

	id1, err := r.Mint(ctx, owner, item.Character("Character 1", 1, 1, 3))
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if id1 != 1 {
		t.Fatalf("first id = %d, want 1", id1)
	}
	id2, err := r.Mint(ctx, owner, item.Machine("Machine 1", 2, 1))
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if id2 != 2 {
		t.Fatalf("second id = %d, want 2", id2)
	}
}

func TestMint_PersistsAttributesAndOwnership(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry(t)
	attrs := item.Character("Character 1", 1, 1, 3)

	id, err := r.Mint(ctx, owner, attrs)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	got, err := r.Get(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != attrs {
		t.Fatalf("attributes = %+v, want %+v", got, attrs)
	}

	gotOwner, err := r.OwnerOf(ctx, id)
	if err != nil {
		t.Fatalf("owner of: %v", err)
	}
	if gotOwner != owner {
		t.Fatalf("owner = %s, want %s", gotOwner.Hex(), owner.Hex())
	}
	n, err := r.BalanceOf(ctx, owner)
	if err != nil {
		t.Fatalf("balance of: %v", err)
	}
	if n != 1 {
		t.Fatalf("item count = %d, want 1", n)
	}
}

func TestGet_UnknownID(t *testing.T) {
	r := newTestRegistry(t)
	if _, err := r.Get(context.Background(), 99); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestBurn_RetiresIDWithoutReuse(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry(t)

	id, err := r.Mint(ctx, owner, item.Machine("Machine 1", 2, 1))
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := r.Burn(ctx, id); err != nil {
		t.Fatalf("burn: %v", err)
	}

	if _, err := r.Get(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("get after burn: err = %v, want ErrNotFound", err)
	}
	if err := r.Burn(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second burn: err = %v, want ErrNotFound", err)
	}
	if n, _ := r.BalanceOf(ctx, owner); n != 0 {
		t.Fatalf("item count after burn = %d, want 0", n)
	}

	// The burned identifier stays retired.
	next, err := r.Mint(ctx, owner, item.Machine("Machine 2", 2, 2))
	if err != nil {
		t.Fatalf("mint after burn: %v", err)
	}
	if next != id+1 {
		t.Fatalf("next id = %d, want %d", next, id+1)
	}
}

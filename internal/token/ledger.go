// Package token is the fungible-currency collaborator: a Redis-backed
// balance and allowance ledger with ERC-20 style transfer semantics.
package token

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"
)

var (
	// ErrInsufficientBalance reports a debit larger than the payer's balance.
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrInsufficientAllowance reports a TransferFrom beyond what the payer
	// approved for the spender.
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	// ErrNegativeAmount rejects negative transfer amounts outright.
	ErrNegativeAmount = errors.New("negative amount")
)

// Currency is the payment capability the redemption engine consumes.
type Currency interface {
	// TransferFrom moves amount from `from` to `to` on behalf of the
	// configured spender, consuming allowance. Fails on insufficient
	// balance or allowance.
	TransferFrom(ctx context.Context, from, to common.Address, amount *big.Int) error
	// Transfer moves amount directly between accounts (administrative
	// distribution). Fails on insufficient balance.
	Transfer(ctx context.Context, from, to common.Address, amount *big.Int) error
	// Refund reverses a completed TransferFrom: amount moves from `from`
	// back to `to` and to's consumed allowance is restored.
	Refund(ctx context.Context, from, to common.Address, amount *big.Int) error
}

const (
	balanceKeyPrefix   = "token:balance:"
	allowanceKeyPrefix = "token:allowance:"
)

// Ledger implements Currency on Redis. Amounts are stored as decimal strings
// so they are not capped at 64 bits. Redemptions are serialized by the
// engine's transaction model, so plain read-modify-write suffices here.
type Ledger struct {
	rdb *redis.Client
	// spender is the identity allowances are granted to: the shop.
	spender common.Address
}

func NewLedger(rdb *redis.Client, spender common.Address) *Ledger {
	return &Ledger{rdb: rdb, spender: spender}
}

// BalanceOf returns the current balance of addr (zero when absent).
func (l *Ledger) BalanceOf(ctx context.Context, addr common.Address) (*big.Int, error) {
	return l.getAmount(ctx, balanceKey(addr))
}

// Credit adds amount to addr's balance. Seeding and faucet use only.
func (l *Ledger) Credit(ctx context.Context, addr common.Address, amount *big.Int) error {
	if amount.Sign() < 0 {
		return ErrNegativeAmount
	}
	bal, err := l.getAmount(ctx, balanceKey(addr))
	if err != nil {
		return err
	}
	return l.setAmount(ctx, balanceKey(addr), new(big.Int).Add(bal, amount))
}

// Approve sets the absolute allowance owner grants the configured spender.
func (l *Ledger) Approve(ctx context.Context, owner common.Address, amount *big.Int) error {
	if amount.Sign() < 0 {
		return ErrNegativeAmount
	}
	return l.setAmount(ctx, allowanceKey(owner, l.spender), amount)
}

// Allowance returns what owner currently allows the configured spender.
func (l *Ledger) Allowance(ctx context.Context, owner common.Address) (*big.Int, error) {
	return l.getAmount(ctx, allowanceKey(owner, l.spender))
}

// TransferFrom consumes allowance and moves amount from → to.
func (l *Ledger) TransferFrom(ctx context.Context, from, to common.Address, amount *big.Int) error {
	if amount.Sign() < 0 {
		return ErrNegativeAmount
	}
	allowance, err := l.getAmount(ctx, allowanceKey(from, l.spender))
	if err != nil {
		return err
	}
	if allowance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: have %s, need %s", ErrInsufficientAllowance, allowance, amount)
	}
	if err := l.Transfer(ctx, from, to, amount); err != nil {
		return err
	}
	return l.setAmount(ctx, allowanceKey(from, l.spender), new(big.Int).Sub(allowance, amount))
}

// Transfer moves amount directly from → to.
func (l *Ledger) Transfer(ctx context.Context, from, to common.Address, amount *big.Int) error {
	if amount.Sign() < 0 {
		return ErrNegativeAmount
	}
	fromBal, err := l.getAmount(ctx, balanceKey(from))
	if err != nil {
		return err
	}
	if fromBal.Cmp(amount) < 0 {
		return fmt.Errorf("%w: have %s, need %s", ErrInsufficientBalance, fromBal, amount)
	}
	// A transfer to the same account is a no-op; reading the credit side
	// before the debit lands would double-count it.
	if from == to {
		return nil
	}
	toBal, err := l.getAmount(ctx, balanceKey(to))
	if err != nil {
		return err
	}
	if err := l.setAmount(ctx, balanceKey(from), new(big.Int).Sub(fromBal, amount)); err != nil {
		return err
	}
	return l.setAmount(ctx, balanceKey(to), new(big.Int).Add(toBal, amount))
}

// Refund reverses a TransferFrom: the payment moves back from `from` to
// the original payer `to`, and the payer's allowance is restored so a
// failed redemption leaves its state exactly as before.
func (l *Ledger) Refund(ctx context.Context, from, to common.Address, amount *big.Int) error {
	if err := l.Transfer(ctx, from, to, amount); err != nil {
		return err
	}
	allowance, err := l.getAmount(ctx, allowanceKey(to, l.spender))
	if err != nil {
		return err
	}
	return l.setAmount(ctx, allowanceKey(to, l.spender), new(big.Int).Add(allowance, amount))
}

func (l *Ledger) getAmount(ctx context.Context, key string) (*big.Int, error) {
	raw, err := l.rdb.Get(ctx, key).Result()
	if err == redis.Nil {
		return new(big.Int), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", key, err)
	}
	n, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return nil, fmt.Errorf("corrupt amount at %s: %q", key, raw)
	}
	return n, nil
}

func (l *Ledger) setAmount(ctx context.Context, key string, v *big.Int) error {
	return l.rdb.Set(ctx, key, v.String(), 0).Err()
}

func balanceKey(addr common.Address) string {
	return balanceKeyPrefix + strings.ToLower(addr.Hex())
}

func allowanceKey(owner, spender common.Address) string {
	return allowanceKeyPrefix + strings.ToLower(owner.Hex()) + ":" + strings.ToLower(spender.Hex())
}

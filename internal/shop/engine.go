// Package shop implements voucher redemption: a buyer submits an
// issuer-signed voucher (or batch) and receives freshly minted items after
// paying the committed price into the treasury.
package shop

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/gmnlabs/gmn-shop/internal/authority"
	"github.com/gmnlabs/gmn-shop/internal/item"
	"github.com/gmnlabs/gmn-shop/internal/registry"
	"github.com/gmnlabs/gmn-shop/internal/replay"
	"github.com/gmnlabs/gmn-shop/internal/token"
	"github.com/gmnlabs/gmn-shop/internal/voucher"
)

// Engine orchestrates redemption: expiry check, digest recomputation,
// signer authorization, replay marking, payment collection and minting.
// Side effects are unwound on any later failure, so an attempt either
// commits fully or leaves no trace.
type Engine struct {
	issuers  *authority.Registry
	replays  *replay.Ledger
	currency token.Currency
	items    registry.ItemRegistry
	shopAddr common.Address
	treasury common.Address
	events   EventSink
	now      func() time.Time
	log      *zap.Logger
}

func NewEngine(
	issuers *authority.Registry,
	replays *replay.Ledger,
	currency token.Currency,
	items registry.ItemRegistry,
	shopAddr, treasury common.Address,
	events EventSink,
	log *zap.Logger,
) *Engine {
	return &Engine{
		issuers:  issuers,
		replays:  replays,
		currency: currency,
		items:    items,
		shopAddr: shopAddr,
		treasury: treasury,
		events:   events,
		now:      time.Now,
		log:      log,
	}
}

// SetClock overrides the engine's time source. Tests inject fixed clocks;
// production keeps time.Now. Expiry is always evaluated against this clock,
// never against client-supplied time.
func (e *Engine) SetClock(now func() time.Time) { e.now = now }

// Buy redeems a single-item voucher. The buyer is the authenticated caller;
// its identity is committed into the digest, so a voucher issued to one
// buyer cannot be redeemed by another.
func (e *Engine) Buy(ctx context.Context, buyer common.Address, attrs item.Attributes, price *big.Int, expiry int64, sig []byte) (uint64, error) {
	if e.now().Unix() > expiry {
		return 0, ErrVoucherExpired
	}
	digest := voucher.ItemDigest(buyer, price, attrs, e.shopAddr, expiry)
	if err := e.requireAuthorizedSigner(ctx, digest, sig); err != nil {
		return 0, err
	}
	if err := e.replays.Mark(ctx, sig); err != nil {
		return 0, err
	}
	if err := e.currency.TransferFrom(ctx, buyer, e.treasury, price); err != nil {
		// Leave the replay ledger untouched: the voucher stays retryable
		// after a transient payment shortfall.
		e.release(ctx, sig)
		return 0, fmt.Errorf("%w: %v", ErrPaymentFailed, err)
	}
	id, err := e.items.Mint(ctx, buyer, attrs)
	if err != nil {
		e.refund(ctx, buyer, price)
		e.release(ctx, sig)
		return 0, fmt.Errorf("mint: %w", err)
	}
	e.events.EmitPurchased(ctx, Purchased{Buyer: buyer, ItemID: id, Price: price})
	e.log.Info("voucher redeemed",
		zap.String("buyer", buyer.Hex()),
		zap.Uint64("item", id),
		zap.String("price", price.String()),
	)
	return id, nil
}

// BuyMany redeems an ordered batch as one unit. The aggregate signature
// authorizes the batch as a whole; per-item signatures are tamper-evidence
// inside the aggregate digest and are not independently verified or
// replay-tracked.
func (e *Engine) BuyMany(ctx context.Context, buyer common.Address, attrs []item.Attributes, prices []*big.Int, itemSigs [][]byte, expiry int64, aggSig []byte) ([]uint64, error) {
	if len(attrs) == 0 {
		return nil, ErrEmptyBatch
	}
	if len(prices) != len(attrs) || len(itemSigs) != len(attrs) {
		return nil, fmt.Errorf("%w: %d attributes, %d prices, %d signatures",
			ErrLengthMismatch, len(attrs), len(prices), len(itemSigs))
	}
	if e.now().Unix() > expiry {
		return nil, ErrVoucherExpired
	}
	digest := voucher.BatchDigest(buyer, attrs, prices, itemSigs, expiry, e.shopAddr)
	if err := e.requireAuthorizedSigner(ctx, digest, aggSig); err != nil {
		return nil, err
	}
	if err := e.replays.Mark(ctx, aggSig); err != nil {
		return nil, err
	}

	total := new(big.Int)
	for _, p := range prices {
		total.Add(total, p)
	}
	if err := e.currency.TransferFrom(ctx, buyer, e.treasury, total); err != nil {
		e.release(ctx, aggSig)
		return nil, fmt.Errorf("%w: %v", ErrPaymentFailed, err)
	}

	ids := make([]uint64, 0, len(attrs))
	for i, a := range attrs {
		id, err := e.items.Mint(ctx, buyer, a)
		if err != nil {
			// All-or-nothing: unwind the items minted so far, the payment
			// and the replay mark.
			for _, minted := range ids {
				e.burn(ctx, minted)
			}
			e.refund(ctx, buyer, total)
			e.release(ctx, aggSig)
			return nil, fmt.Errorf("mint item %d: %w", i, err)
		}
		ids = append(ids, id)
	}

	for i, id := range ids {
		e.events.EmitPurchased(ctx, Purchased{Buyer: buyer, ItemID: id, Price: prices[i]})
	}
	e.events.EmitSold(ctx, Sold{Buyer: buyer, ItemIDs: ids, TotalPrice: total})
	e.log.Info("batch redeemed",
		zap.String("buyer", buyer.Hex()),
		zap.Int("items", len(ids)),
		zap.String("total", total.String()),
	)
	return ids, nil
}

// Withdraw distributes collected funds out of the treasury. Administrator
// only.
func (e *Engine) Withdraw(ctx context.Context, caller, to common.Address, amount *big.Int) error {
	ok, err := e.issuers.IsAdmin(ctx, caller)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s is not the administrator", authority.ErrUnauthorized, caller.Hex())
	}
	if err := e.currency.Transfer(ctx, e.treasury, to, amount); err != nil {
		return fmt.Errorf("withdraw: %w", err)
	}
	e.log.Info("treasury withdrawal",
		zap.String("to", to.Hex()),
		zap.String("amount", amount.String()),
	)
	return nil
}

// requireAuthorizedSigner recovers the signer of sig over digest and checks
// issuer authority at redemption time, so authority revoked after issuance
// correctly invalidates outstanding vouchers.
func (e *Engine) requireAuthorizedSigner(ctx context.Context, digest [32]byte, sig []byte) error {
	signer, err := voucher.RecoverSigner(digest, sig)
	if err != nil {
		return err
	}
	ok, err := e.issuers.IsAuthorized(ctx, signer)
	if err != nil {
		return fmt.Errorf("issuer lookup: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnauthorizedSigner, signer.Hex())
	}
	return nil
}

func (e *Engine) release(ctx context.Context, sig []byte) {
	if err := e.replays.Release(ctx, sig); err != nil {
		e.log.Error("release replay mark", zap.Error(err))
	}
}

func (e *Engine) refund(ctx context.Context, buyer common.Address, amount *big.Int) {
	if err := e.currency.Refund(ctx, e.treasury, buyer, amount); err != nil {
		e.log.Error("refund payment", zap.String("buyer", buyer.Hex()), zap.Error(err))
	}
}

func (e *Engine) burn(ctx context.Context, id uint64) {
	if err := e.items.Burn(ctx, id); err != nil {
		e.log.Error("unwind minted item", zap.Uint64("item", id), zap.Error(err))
	}
}

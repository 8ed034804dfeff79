// Package api exposes the shop over HTTP: voucher redemption for buyers and
// issuer administration for the administrator wallet.
package api

import (
	"context"
	"encoding/hex"
	"errors"
	"math/big"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/gmnlabs/gmn-shop/internal/auth"
	"github.com/gmnlabs/gmn-shop/internal/authority"
	"github.com/gmnlabs/gmn-shop/internal/item"
	"github.com/gmnlabs/gmn-shop/internal/receipts"
	"github.com/gmnlabs/gmn-shop/internal/replay"
	"github.com/gmnlabs/gmn-shop/internal/shop"
	"github.com/gmnlabs/gmn-shop/internal/voucher"
)

// Handler wires the shop routes onto a gin engine. The caller identity on
// every route is the wallet authenticated by the auth middleware.
type Handler struct {
	engine  *shop.Engine
	issuers *authority.Registry
	rdb     *redis.Client
	log     *zap.Logger
}

func NewHandler(engine *shop.Engine, issuers *authority.Registry, rdb *redis.Client, log *zap.Logger) *Handler {
	return &Handler{engine: engine, issuers: issuers, rdb: rdb, log: log}
}

// Register mounts all routes. The auth middleware should already be applied
// to the group.
func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.POST("/buy", h.handleBuy)
	rg.POST("/buy-batch", h.handleBuyBatch)
	rg.GET("/receipts", h.handleReceipts)

	rg.POST("/issuers/grant", h.handleGrant)
	rg.POST("/issuers/revoke", h.handleRevoke)
	rg.GET("/issuers/:address", h.handleIsAuthorized)

	rg.POST("/admin/withdraw", h.handleWithdraw)
	rg.POST("/admin/transfer", h.handleTransferAdmin)
}

// ── Redemption ──────────────────────────────────────────────────────────────

type buyRequest struct {
	Attributes item.Attributes `json:"attributes"`
	Price      string          `json:"price"`
	Expiry     int64           `json:"expiry"`
	Signature  string          `json:"signature"`
}

func (h *Handler) handleBuy(c *gin.Context) {
	buyer := callerAddress(c)

	var req buyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	price, ok := parseAmount(req.Price)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid price"})
		return
	}
	sig, err := parseSignature(req.Signature)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid signature hex"})
		return
	}

	id, err := h.engine.Buy(c.Request.Context(), buyer, req.Attributes, price, req.Expiry, sig)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"item_id": id})
}

type buyBatchRequest struct {
	Attributes     []item.Attributes `json:"attributes"`
	Prices         []string          `json:"prices"`
	ItemSignatures []string          `json:"item_signatures"`
	Expiry         int64             `json:"expiry"`
	Signature      string            `json:"signature"`
}

func (h *Handler) handleBuyBatch(c *gin.Context) {
	buyer := callerAddress(c)

	var req buyBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	prices := make([]*big.Int, 0, len(req.Prices))
	for _, p := range req.Prices {
		amount, ok := parseAmount(p)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid price"})
			return
		}
		prices = append(prices, amount)
	}
	itemSigs := make([][]byte, 0, len(req.ItemSignatures))
	for _, s := range req.ItemSignatures {
		sig, err := parseSignature(s)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid item signature hex"})
			return
		}
		itemSigs = append(itemSigs, sig)
	}
	aggSig, err := parseSignature(req.Signature)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid signature hex"})
		return
	}

	ids, err := h.engine.BuyMany(c.Request.Context(), buyer, req.Attributes, prices, itemSigs, req.Expiry, aggSig)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"item_ids": ids})
}

func (h *Handler) handleReceipts(c *gin.Context) {
	buyer := callerAddress(c)
	records, err := receipts.List(c.Request.Context(), h.rdb, buyer)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, records)
}

// ── Issuer administration ───────────────────────────────────────────────────

type identityRequest struct {
	Address string `json:"address"`
}

func (h *Handler) handleGrant(c *gin.Context) {
	h.mutateIssuer(c, h.issuers.Grant)
}

func (h *Handler) handleRevoke(c *gin.Context) {
	h.mutateIssuer(c, h.issuers.Revoke)
}

func (h *Handler) mutateIssuer(c *gin.Context, op func(ctx context.Context, caller, id common.Address) error) {
	caller := callerAddress(c)

	var req identityRequest
	if err := c.ShouldBindJSON(&req); err != nil || !common.IsHexAddress(req.Address) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid address"})
		return
	}

	if err := op(c.Request.Context(), caller, common.HexToAddress(req.Address)); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handler) handleIsAuthorized(c *gin.Context) {
	raw := c.Param("address")
	if !common.IsHexAddress(raw) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid address"})
		return
	}
	ok, err := h.issuers.IsAuthorized(c.Request.Context(), common.HexToAddress(raw))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"authorized": ok})
}

type withdrawRequest struct {
	To     string `json:"to"`
	Amount string `json:"amount"`
}

func (h *Handler) handleWithdraw(c *gin.Context) {
	caller := callerAddress(c)

	var req withdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil || !common.IsHexAddress(req.To) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	amount, ok := parseAmount(req.Amount)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid amount"})
		return
	}

	if err := h.engine.Withdraw(c.Request.Context(), caller, common.HexToAddress(req.To), amount); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handler) handleTransferAdmin(c *gin.Context) {
	caller := callerAddress(c)

	var req identityRequest
	if err := c.ShouldBindJSON(&req); err != nil || !common.IsHexAddress(req.Address) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid address"})
		return
	}

	if err := h.issuers.TransferAdmin(c.Request.Context(), caller, common.HexToAddress(req.Address)); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// ── Helpers ─────────────────────────────────────────────────────────────────

// fail maps the redemption error taxonomy onto HTTP responses. The error
// kind travels in the body so clients can distinguish a permanent
// "signature_already_used" from a retryable "payment_failed".
func (h *Handler) fail(c *gin.Context, err error) {
	status, kind := http.StatusInternalServerError, "internal"
	switch {
	case errors.Is(err, shop.ErrVoucherExpired):
		status, kind = http.StatusBadRequest, "voucher_expired"
	case errors.Is(err, voucher.ErrInvalidSignatureFormat):
		status, kind = http.StatusBadRequest, "invalid_signature_format"
	case errors.Is(err, shop.ErrUnauthorizedSigner):
		status, kind = http.StatusUnauthorized, "unauthorized_signer"
	case errors.Is(err, replay.ErrSignatureUsed):
		status, kind = http.StatusConflict, "signature_already_used"
	case errors.Is(err, shop.ErrLengthMismatch):
		status, kind = http.StatusBadRequest, "length_mismatch"
	case errors.Is(err, shop.ErrEmptyBatch):
		status, kind = http.StatusBadRequest, "empty_batch"
	case errors.Is(err, shop.ErrPaymentFailed):
		status, kind = http.StatusPaymentRequired, "payment_failed"
	case errors.Is(err, authority.ErrUnauthorized):
		status, kind = http.StatusForbidden, "unauthorized"
	default:
		h.log.Error("request failed", zap.Error(err))
	}
	c.JSON(status, gin.H{"error": kind})
}

func callerAddress(c *gin.Context) common.Address {
	return common.HexToAddress(c.GetString(auth.WalletKey))
}

func parseAmount(raw string) (*big.Int, bool) {
	n, ok := new(big.Int).SetString(raw, 10)
	if !ok || n.Sign() < 0 {
		return nil, false
	}
	return n, true
}

func parseSignature(raw string) ([]byte, error) {
	return hex.DecodeString(strings.TrimPrefix(raw, "0x"))
}

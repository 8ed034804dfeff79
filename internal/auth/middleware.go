package auth

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// SignedRequest is the JSON payload inside X-Signed-Message (fields sorted).
type SignedRequest struct {
	Action    string          `json:"action"`
	ExpiresAt int64           `json:"expires_at"`
	Nonce     string          `json:"nonce"`
	Payload   json.RawMessage `json:"payload"`
}

// WalletKey is the gin context key holding the authenticated wallet address.
const WalletKey = "wallet_address"

const maxFutureWindow = 5 * time.Minute

var errBadSignature = errors.New("invalid signature")

// Middleware returns a gin handler that validates EIP-191 wallet signatures
// on incoming requests. The recovered wallet becomes the caller identity:
// the buyer for redemption endpoints, the claimed administrator for admin
// endpoints.
func Middleware(rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		wallet, err := authenticate(c, rdb)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		c.Set(WalletKey, wallet)
		c.Next()
	}
}

// authenticate verifies the three auth headers and returns the checksummed
// wallet address. Request nonces are single-use within their expiry window,
// enforced with a Redis SETNX.
func authenticate(c *gin.Context, rdb *redis.Client) (string, error) {
	walletAddr := c.GetHeader("X-Wallet-Address")
	signedMsgB64 := c.GetHeader("X-Signed-Message")
	sigHex := c.GetHeader("X-Wallet-Signature")

	if walletAddr == "" || signedMsgB64 == "" || sigHex == "" {
		return "", errors.New("missing auth headers")
	}

	msgBytes, err := base64.StdEncoding.DecodeString(signedMsgB64)
	if err != nil {
		return "", errors.New("invalid X-Signed-Message encoding")
	}

	var req SignedRequest
	if err := json.Unmarshal(msgBytes, &req); err != nil {
		return "", errors.New("invalid signed message JSON")
	}

	now := time.Now().Unix()
	if req.ExpiresAt <= now {
		return "", errors.New("request expired")
	}
	if req.ExpiresAt > now+int64(maxFutureWindow.Seconds()) {
		return "", errors.New("expires_at too far in future")
	}

	sig, err := hex.DecodeString(strings.TrimPrefix(sigHex, "0x"))
	if err != nil {
		return "", errors.New("invalid signature hex")
	}

	recovered, err := Recover(msgBytes, sig)
	if err != nil {
		return "", errBadSignature
	}
	if !strings.EqualFold(recovered.Hex(), walletAddr) {
		return "", errBadSignature
	}

	// Nonce dedup: a signed request is accepted once per nonce.
	nonceKey := "auth:nonce:" + req.Nonce
	ttl := time.Duration(req.ExpiresAt-now) * time.Second
	set, err := rdb.SetNX(context.Background(), nonceKey, 1, ttl).Result()
	if err != nil {
		return "", errors.New("internal error")
	}
	if !set {
		return "", errors.New("nonce already used")
	}

	return recovered.Hex(), nil
}

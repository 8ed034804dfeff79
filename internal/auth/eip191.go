// Package auth implements the platform's signed-message convention:
// payloads are wrapped in the EIP-191 "\x19Ethereum Signed Message:\n"
// prefix before ECDSA signing and recovery. Two callers share it: the HTTP
// middleware authenticating wallets, and the voucher codec verifying issuer
// signatures over 32-byte digests.
package auth

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// HashMessage returns keccak256 of msg under the EIP-191 prefix, which
// binds the message length into the hash:
//
//	keccak256("\x19Ethereum Signed Message:\n" + len(msg) + msg)
func HashMessage(msg []byte) []byte {
	return crypto.Keccak256(fmt.Appendf(nil, "\x19Ethereum Signed Message:\n%d", len(msg)), msg)
}

// Recover returns the address whose key produced the 65-byte R||S||V
// signature over the prefixed hash of msg. V is accepted in both the raw
// {0,1} and the wallet {27,28} conventions; sig is never mutated.
func Recover(msg, sig []byte) (common.Address, error) {
	if len(sig) != 65 {
		return common.Address{}, errors.New("invalid signature length")
	}

	normalized := make([]byte, 65)
	copy(normalized, sig)
	if normalized[64] >= 27 {
		normalized[64] -= 27
	}

	pub, err := crypto.SigToPub(HashMessage(msg), normalized)
	if err != nil {
		return common.Address{}, fmt.Errorf("ecrecover: %w", err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

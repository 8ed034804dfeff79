package voucher

import (
	"crypto/ecdsa"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/gmnlabs/gmn-shop/internal/auth"
)

// ErrInvalidSignatureFormat reports a malformed signature: wrong length or
// an invalid recovery parameter.
var ErrInvalidSignatureFormat = errors.New("invalid signature format")

// RecoverSigner recovers the identity that produced sig over digest. The
// digest is wrapped in the EIP-191 signed-message prefix before recovery,
// matching how the off-chain issuer signs it (eth_sign over the 32-byte
// hash). This only adds voucher format checks on top of auth.Recover.
func RecoverSigner(digest [32]byte, sig []byte) (common.Address, error) {
	if len(sig) != 65 {
		return common.Address{}, fmt.Errorf("%w: length %d", ErrInvalidSignatureFormat, len(sig))
	}
	v := sig[64]
	if v >= 27 {
		v -= 27
	}
	if v > 1 {
		return common.Address{}, fmt.Errorf("%w: recovery id %d", ErrInvalidSignatureFormat, sig[64])
	}
	signer, err := auth.Recover(digest[:], sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrInvalidSignatureFormat, err)
	}
	return signer, nil
}

// SignDigest signs a codec digest with the issuer key, producing the 65-byte
// R||S||V signature with V in {27,28}, the form buyers submit.
func SignDigest(digest [32]byte, key *ecdsa.PrivateKey) ([]byte, error) {
	sig, err := crypto.Sign(auth.HashMessage(digest[:]), key)
	if err != nil {
		return nil, err
	}
	sig[64] += 27
	return sig, nil
}

// SignVoucher computes the single-item digest and signs it in place.
func SignVoucher(v *Voucher, key *ecdsa.PrivateKey) error {
	sig, err := SignDigest(ItemDigest(v.Buyer, v.Price, v.Attributes, v.Shop, v.Expiry), key)
	if err != nil {
		return fmt.Errorf("sign voucher: %w", err)
	}
	v.Signature = sig
	return nil
}

// SignBatchItems fills in the per-item signatures carried inside a batch.
// Each one commits to the shop identity in the buyer slot and an expiry
// offset by the item index, so a per-item signature lifted out of a batch
// never passes as a standalone single-item voucher. Per-item signatures are
// tamper-evidence for the batch contents; only the aggregate signature is
// verified at redemption.
func SignBatchItems(b *Batch, key *ecdsa.PrivateKey) error {
	b.ItemSignatures = make([][]byte, len(b.Attributes))
	for i, a := range b.Attributes {
		sig, err := SignDigest(ItemDigest(b.Shop, b.Prices[i], a, b.Shop, b.Expiry+int64(i)), key)
		if err != nil {
			return fmt.Errorf("sign item %d: %w", i, err)
		}
		b.ItemSignatures[i] = sig
	}
	return nil
}

// SignBatch computes the aggregate digest and signs it in place. Per-item
// signatures must already be present: they are part of the commitment.
func SignBatch(b *Batch, key *ecdsa.PrivateKey) error {
	sig, err := SignDigest(BatchDigest(b.Buyer, b.Attributes, b.Prices, b.ItemSignatures, b.Expiry, b.Shop), key)
	if err != nil {
		return fmt.Errorf("sign batch: %w", err)
	}
	b.Signature = sig
	return nil
}

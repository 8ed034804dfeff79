package voucher

import (
	"bytes"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
)

func TestSignDigest_Roundtrip(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	digest := ItemDigest(testBuyer, testPrice(), testAttrs(), testShop, testExpiry)

	sig, err := SignDigest(digest, key)
	if err != nil {
		t.Fatalf("SignDigest: %v", err)
	}
	if len(sig) != 65 {
		t.Fatalf("signature length = %d, want 65", len(sig))
	}
	if v := sig[64]; v != 27 && v != 28 {
		t.Fatalf("recovery byte = %d, want 27 or 28", v)
	}

	signer, err := RecoverSigner(digest, sig)
	if err != nil {
		t.Fatalf("RecoverSigner: %v", err)
	}
	if want := crypto.PubkeyToAddress(key.PublicKey); signer != want {
		t.Fatalf("recovered %s, want %s", signer.Hex(), want.Hex())
	}
}

func TestRecoverSigner_AcceptsBothVEncodings(t *testing.T) {
	key, _ := crypto.GenerateKey()
	digest := ItemDigest(testBuyer, testPrice(), testAttrs(), testShop, testExpiry)
	sig, err := SignDigest(digest, key)
	if err != nil {
		t.Fatalf("SignDigest: %v", err)
	}
	want := crypto.PubkeyToAddress(key.PublicKey)

	// V in {27,28} as produced by SignDigest.
	got, err := RecoverSigner(digest, sig)
	if err != nil || got != want {
		t.Fatalf("V=%d: got %s err %v", sig[64], got.Hex(), err)
	}

	// Same signature with V normalized to {0,1}.
	raw := make([]byte, 65)
	copy(raw, sig)
	raw[64] -= 27
	got, err = RecoverSigner(digest, raw)
	if err != nil || got != want {
		t.Fatalf("V=%d: got %s err %v", raw[64], got.Hex(), err)
	}

	// RecoverSigner must not mutate its input.
	if !bytes.Equal(sig[:64], raw[:64]) {
		t.Fatal("signature body mutated")
	}
}

func TestRecoverSigner_MalformedSignature(t *testing.T) {
	digest := ItemDigest(testBuyer, testPrice(), testAttrs(), testShop, testExpiry)

	if _, err := RecoverSigner(digest, make([]byte, 64)); !errors.Is(err, ErrInvalidSignatureFormat) {
		t.Errorf("64-byte signature: err = %v, want ErrInvalidSignatureFormat", err)
	}
	if _, err := RecoverSigner(digest, nil); !errors.Is(err, ErrInvalidSignatureFormat) {
		t.Errorf("nil signature: err = %v, want ErrInvalidSignatureFormat", err)
	}

	key, _ := crypto.GenerateKey()
	sig, _ := SignDigest(digest, key)
	sig[64] = 29 // not a valid recovery encoding in either convention
	if _, err := RecoverSigner(digest, sig); !errors.Is(err, ErrInvalidSignatureFormat) {
		t.Errorf("recovery id 29: err = %v, want ErrInvalidSignatureFormat", err)
	}
}

// TestRecoverSigner_TamperedDigest confirms that a signature over one digest
// recovers to a different (effectively random) identity over another, which
// is what makes authorization-by-recovery sound.
func TestRecoverSigner_TamperedDigest(t *testing.T) {
	key, _ := crypto.GenerateKey()
	digest := ItemDigest(testBuyer, testPrice(), testAttrs(), testShop, testExpiry)
	sig, err := SignDigest(digest, key)
	if err != nil {
		t.Fatalf("SignDigest: %v", err)
	}

	tampered := ItemDigest(testBuyer, testPrice(), testAttrs(), testShop, testExpiry+1)
	got, err := RecoverSigner(tampered, sig)
	if err != nil {
		// Recovery failing outright is also acceptable.
		return
	}
	if got == crypto.PubkeyToAddress(key.PublicKey) {
		t.Fatal("tampered digest recovered the original signer")
	}
}

func TestSignVoucher_PopulatesVerifiableSignature(t *testing.T) {
	key, _ := crypto.GenerateKey()
	v := &Voucher{
		Buyer:      testBuyer,
		Price:      testPrice(),
		Attributes: testAttrs(),
		Shop:       testShop,
		Expiry:     testExpiry,
	}
	if err := SignVoucher(v, key); err != nil {
		t.Fatalf("SignVoucher: %v", err)
	}

	digest := ItemDigest(v.Buyer, v.Price, v.Attributes, v.Shop, v.Expiry)
	signer, err := RecoverSigner(digest, v.Signature)
	if err != nil {
		t.Fatalf("RecoverSigner: %v", err)
	}
	if want := crypto.PubkeyToAddress(key.PublicKey); signer != want {
		t.Fatalf("recovered %s, want %s", signer.Hex(), want.Hex())
	}
}

func TestSignBatch_AggregateCommitsToItemSignatures(t *testing.T) {
	key, _ := crypto.GenerateKey()
	attrs, prices, _ := testBatchParts()
	b := &Batch{
		Buyer:      testBuyer,
		Attributes: attrs,
		Prices:     prices,
		Expiry:     testExpiry,
		Shop:       testShop,
	}
	if err := SignBatchItems(b, key); err != nil {
		t.Fatalf("SignBatchItems: %v", err)
	}
	if len(b.ItemSignatures) != len(attrs) {
		t.Fatalf("got %d item signatures, want %d", len(b.ItemSignatures), len(attrs))
	}
	if err := SignBatch(b, key); err != nil {
		t.Fatalf("SignBatch: %v", err)
	}

	digest := BatchDigest(b.Buyer, b.Attributes, b.Prices, b.ItemSignatures, b.Expiry, b.Shop)
	signer, err := RecoverSigner(digest, b.Signature)
	if err != nil {
		t.Fatalf("RecoverSigner: %v", err)
	}
	if want := crypto.PubkeyToAddress(key.PublicKey); signer != want {
		t.Fatalf("recovered %s, want %s", signer.Hex(), want.Hex())
	}

	// Per-item signatures must not verify as standalone vouchers for the
	// buyer: they commit to the shop identity and an offset expiry.
	standalone := ItemDigest(b.Buyer, b.Prices[0], b.Attributes[0], b.Shop, b.Expiry)
	got, err := RecoverSigner(standalone, b.ItemSignatures[0])
	if err == nil && got == crypto.PubkeyToAddress(key.PublicKey) {
		t.Fatal("per-item signature verified as a standalone voucher")
	}
}

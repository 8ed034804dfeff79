package voucher

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/gmnlabs/gmn-shop/internal/item"
)

// ItemDigest commits to every field of a single-item voucher. Field order is
// fixed: buyer, price, name, kind, sex (omitted when the item family carries
// none), rarity, shop, expiry. The name is prefixed with its 4-byte
// big-endian length so no two distinct field tuples collide by
// concatenation.
func ItemDigest(buyer common.Address, price *big.Int, attrs item.Attributes, shop common.Address, expiry int64) [32]byte {
	data := make([]byte, 0, 20+32+4+len(attrs.Name)+3+20+32)
	data = append(data, buyer.Bytes()...)
	data = appendUint256(data, price)
	data = appendAttributes(data, attrs)
	data = append(data, shop.Bytes()...)
	data = appendUint256(data, big.NewInt(expiry))
	return crypto.Keccak256Hash(data)
}

// AttributesHash commits to the item attributes alone. It deliberately
// excludes buyer, price and expiry so it can be combined positionally
// inside a batch digest.
func AttributesHash(attrs item.Attributes) [32]byte {
	data := appendAttributes(make([]byte, 0, 4+len(attrs.Name)+3), attrs)
	return crypto.Keccak256Hash(data)
}

// BatchDigest commits to the whole ordered batch as one unit:
//
//	H(buyer ‖ H(attrHash_0 … attrHash_n) ‖ price_0 … price_n ‖
//	  H(H(sig_0) … H(sig_n)) ‖ expiry ‖ shop)
//
// Index i of attributes, prices and per-item signatures must agree;
// permuting any list changes the digest. The slices must be index-aligned
// and non-empty; the redemption engine validates that before calling.
func BatchDigest(buyer common.Address, attrs []item.Attributes, prices []*big.Int, itemSigs [][]byte, expiry int64, shop common.Address) [32]byte {
	attrHashes := make([]byte, 0, 32*len(attrs))
	for _, a := range attrs {
		h := AttributesHash(a)
		attrHashes = append(attrHashes, h[:]...)
	}
	sigHashes := make([]byte, 0, 32*len(itemSigs))
	for _, sig := range itemSigs {
		h := crypto.Keccak256Hash(sig)
		sigHashes = append(sigHashes, h[:]...)
	}
	attrsCommit := crypto.Keccak256Hash(attrHashes)
	sigsCommit := crypto.Keccak256Hash(sigHashes)

	data := make([]byte, 0, 20+32+32*len(prices)+32+32+20)
	data = append(data, buyer.Bytes()...)
	data = append(data, attrsCommit[:]...)
	for _, p := range prices {
		data = appendUint256(data, p)
	}
	data = append(data, sigsCommit[:]...)
	data = appendUint256(data, big.NewInt(expiry))
	data = append(data, shop.Bytes()...)
	return crypto.Keccak256Hash(data)
}

func appendAttributes(b []byte, attrs item.Attributes) []byte {
	n := uint32(len(attrs.Name))
	b = append(b, byte(n>>24), byte(n>>16), byte(n>>8), byte(n))
	b = append(b, attrs.Name...)
	b = append(b, attrs.Kind)
	if attrs.HasSex {
		b = append(b, attrs.Sex)
	}
	b = append(b, attrs.Rarity)
	return b
}

func appendUint256(b []byte, v *big.Int) []byte {
	var buf [32]byte
	v.FillBytes(buf[:])
	return append(b, buf[:]...)
}

package voucher

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/gmnlabs/gmn-shop/internal/item"
)

// Voucher is the unit of authorization for one item purchase. The issuer
// signs the digest of every field; the buyer submits the voucher once.
// Vouchers are never persisted beyond the replay entry of their signature.
type Voucher struct {
	Buyer      common.Address
	Price      *big.Int
	Attributes item.Attributes
	Shop       common.Address
	Expiry     int64
	Signature  []byte
}

// Batch is an ordered sequence of voucher entries redeemed as one unit.
// Signature is the aggregate signature binding the buyer, the ordered
// attribute commitments, the ordered prices, the ordered per-item signature
// hashes, the shared expiry and the shop identity. Reordering, dropping or
// substituting any entry invalidates it.
type Batch struct {
	Buyer          common.Address
	Attributes     []item.Attributes
	Prices         []*big.Int
	ItemSignatures [][]byte
	Expiry         int64
	Shop           common.Address
	Signature      []byte
}

// Wire form shared by the issuer tool and the redemption API: prices travel
// as decimal strings (uint256 values do not survive JSON numbers) and
// signatures as 0x hex. A signed voucher serialized here submits directly to
// the buy endpoints.
type voucherWire struct {
	Buyer      common.Address  `json:"buyer"`
	Price      string          `json:"price"`
	Attributes item.Attributes `json:"attributes"`
	Shop       common.Address  `json:"shop"`
	Expiry     int64           `json:"expiry"`
	Signature  hexutil.Bytes   `json:"signature"`
}

func (v Voucher) MarshalJSON() ([]byte, error) {
	return json.Marshal(voucherWire{
		Buyer:      v.Buyer,
		Price:      decimal(v.Price),
		Attributes: v.Attributes,
		Shop:       v.Shop,
		Expiry:     v.Expiry,
		Signature:  v.Signature,
	})
}

func (v *Voucher) UnmarshalJSON(data []byte) error {
	var w voucherWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	price, err := parseDecimal(w.Price)
	if err != nil {
		return err
	}
	*v = Voucher{
		Buyer:      w.Buyer,
		Price:      price,
		Attributes: w.Attributes,
		Shop:       w.Shop,
		Expiry:     w.Expiry,
		Signature:  w.Signature,
	}
	return nil
}

type batchWire struct {
	Buyer          common.Address    `json:"buyer"`
	Attributes     []item.Attributes `json:"attributes"`
	Prices         []string          `json:"prices"`
	ItemSignatures []hexutil.Bytes   `json:"item_signatures"`
	Expiry         int64             `json:"expiry"`
	Shop           common.Address    `json:"shop"`
	Signature      hexutil.Bytes     `json:"signature"`
}

func (b Batch) MarshalJSON() ([]byte, error) {
	prices := make([]string, len(b.Prices))
	for i, p := range b.Prices {
		prices[i] = decimal(p)
	}
	itemSigs := make([]hexutil.Bytes, len(b.ItemSignatures))
	for i, sig := range b.ItemSignatures {
		itemSigs[i] = sig
	}
	return json.Marshal(batchWire{
		Buyer:          b.Buyer,
		Attributes:     b.Attributes,
		Prices:         prices,
		ItemSignatures: itemSigs,
		Expiry:         b.Expiry,
		Shop:           b.Shop,
		Signature:      b.Signature,
	})
}

func (b *Batch) UnmarshalJSON(data []byte) error {
	var w batchWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	prices := make([]*big.Int, len(w.Prices))
	for i, raw := range w.Prices {
		p, err := parseDecimal(raw)
		if err != nil {
			return err
		}
		prices[i] = p
	}
	itemSigs := make([][]byte, len(w.ItemSignatures))
	for i, sig := range w.ItemSignatures {
		itemSigs[i] = sig
	}
	*b = Batch{
		Buyer:          w.Buyer,
		Attributes:     w.Attributes,
		Prices:         prices,
		ItemSignatures: itemSigs,
		Expiry:         w.Expiry,
		Shop:           w.Shop,
		Signature:      w.Signature,
	}
	return nil
}

func decimal(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func parseDecimal(raw string) (*big.Int, error) {
	n, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return nil, fmt.Errorf("invalid price %q", raw)
	}
	return n, nil
}

package voucher

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/gmnlabs/gmn-shop/internal/item"
)

var (
	testBuyer = common.HexToAddress("0x1111111111111111111111111111111111111111")
	testShop  = common.HexToAddress("0xDeAdBeEfDeAdBeEfDeAdBeEfDeAdBeEfDeAdBeEf")
)

const testExpiry = int64(1_900_000_000)

func testAttrs() item.Attributes {
	return item.Character("Character 1", 1, 1, 3)
}

func testPrice() *big.Int {
	// 2000 units at 18 decimals
	return new(big.Int).Mul(big.NewInt(2000), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
}

// ── ItemDigest ─────────────────────────────────────────────────────────────

func TestItemDigest_Deterministic(t *testing.T) {
	d1 := ItemDigest(testBuyer, testPrice(), testAttrs(), testShop, testExpiry)
	d2 := ItemDigest(testBuyer, testPrice(), testAttrs(), testShop, testExpiry)
	if d1 != d2 {
		t.Fatal("ItemDigest is not deterministic")
	}
}

// TestItemDigest_EveryFieldBound mutates each field in turn; any alteration
// must change the digest.
func TestItemDigest_EveryFieldBound(t *testing.T) {
	base := ItemDigest(testBuyer, testPrice(), testAttrs(), testShop, testExpiry)

	otherBuyer := common.HexToAddress("0x2222222222222222222222222222222222222222")
	otherShop := common.HexToAddress("0x3333333333333333333333333333333333333333")

	mutations := map[string][32]byte{
		"buyer":  ItemDigest(otherBuyer, testPrice(), testAttrs(), testShop, testExpiry),
		"price":  ItemDigest(testBuyer, big.NewInt(1), testAttrs(), testShop, testExpiry),
		"name":   ItemDigest(testBuyer, testPrice(), item.Character("Character 2", 1, 1, 3), testShop, testExpiry),
		"kind":   ItemDigest(testBuyer, testPrice(), item.Character("Character 1", 2, 1, 3), testShop, testExpiry),
		"sex":    ItemDigest(testBuyer, testPrice(), item.Character("Character 1", 1, 2, 3), testShop, testExpiry),
		"rarity": ItemDigest(testBuyer, testPrice(), item.Character("Character 1", 1, 1, 1), testShop, testExpiry),
		"shop":   ItemDigest(testBuyer, testPrice(), testAttrs(), otherShop, testExpiry),
		"expiry": ItemDigest(testBuyer, testPrice(), testAttrs(), testShop, testExpiry+1),
	}
	for field, d := range mutations {
		if d == base {
			t.Errorf("mutating %s did not change the digest", field)
		}
	}
}

func TestItemDigest_SexOmittedDiffersFromSexZero(t *testing.T) {
	withSexZero := ItemDigest(testBuyer, testPrice(), item.Character("M1", 1, 0, 2), testShop, testExpiry)
	withoutSex := ItemDigest(testBuyer, testPrice(), item.Machine("M1", 1, 2), testShop, testExpiry)
	if withSexZero == withoutSex {
		t.Fatal("sex=0 and sex-omitted must produce different digests")
	}
}

// ── AttributesHash ─────────────────────────────────────────────────────────

func TestAttributesHash_ExcludesPriceBuyerExpiry(t *testing.T) {
	// Same attributes under different prices/buyers must commit identically.
	h1 := AttributesHash(testAttrs())
	h2 := AttributesHash(item.Character("Character 1", 1, 1, 3))
	if h1 != h2 {
		t.Fatal("AttributesHash must depend on attributes only")
	}
}

// TestAttributesHash_NoConcatenationCollision pins the length prefix: under
// naive concatenation Character("a", 'b', 1, 2) and Machine("ab", 1, 2)
// serialize to the same bytes.
func TestAttributesHash_NoConcatenationCollision(t *testing.T) {
	h1 := AttributesHash(item.Character("a", 'b', 1, 2))
	h2 := AttributesHash(item.Machine("ab", 1, 2))
	if h1 == h2 {
		t.Fatal("distinct attribute tuples collided")
	}
}

// ── BatchDigest ────────────────────────────────────────────────────────────

func testBatchParts() ([]item.Attributes, []*big.Int, [][]byte) {
	attrs := []item.Attributes{
		item.Character("Character 1", 1, 1, 3),
		item.Character("Character 2", 2, 1, 1),
	}
	prices := []*big.Int{testPrice(), testPrice()}
	sigs := [][]byte{
		{0x01, 0x02, 0x03},
		{0x04, 0x05, 0x06},
	}
	return attrs, prices, sigs
}

func TestBatchDigest_Deterministic(t *testing.T) {
	attrs, prices, sigs := testBatchParts()
	d1 := BatchDigest(testBuyer, attrs, prices, sigs, testExpiry, testShop)
	d2 := BatchDigest(testBuyer, attrs, prices, sigs, testExpiry, testShop)
	if d1 != d2 {
		t.Fatal("BatchDigest is not deterministic")
	}
}

func TestBatchDigest_OrderSensitive(t *testing.T) {
	attrs, prices, sigs := testBatchParts()
	base := BatchDigest(testBuyer, attrs, prices, sigs, testExpiry, testShop)

	swappedAttrs := []item.Attributes{attrs[1], attrs[0]}
	if BatchDigest(testBuyer, swappedAttrs, prices, sigs, testExpiry, testShop) == base {
		t.Error("permuting attributes did not change the batch digest")
	}

	swappedSigs := [][]byte{sigs[1], sigs[0]}
	if BatchDigest(testBuyer, attrs, prices, swappedSigs, testExpiry, testShop) == base {
		t.Error("permuting per-item signatures did not change the batch digest")
	}

	differentPrices := []*big.Int{testPrice(), big.NewInt(1)}
	if BatchDigest(testBuyer, attrs, differentPrices, sigs, testExpiry, testShop) == base {
		t.Error("altering a price did not change the batch digest")
	}
}

func TestBatchDigest_SignatureSubstitution(t *testing.T) {
	attrs, prices, sigs := testBatchParts()
	base := BatchDigest(testBuyer, attrs, prices, sigs, testExpiry, testShop)

	substituted := [][]byte{sigs[0], {0xFF, 0xFF, 0xFF}}
	if BatchDigest(testBuyer, attrs, prices, substituted, testExpiry, testShop) == base {
		t.Error("substituting a per-item signature did not change the batch digest")
	}
}

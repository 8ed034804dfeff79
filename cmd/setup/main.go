// cmd/setup performs the one-time state seeding required before the shop
// can redeem vouchers:
//
//  1. Grant:   the administrator grants issuer authority to the signer
//  2. Credit:  funds the buyer's currency balance
//  3. Approve: the buyer approves the shop to spend the allowance
//
// Usage:
//
//	go run ./cmd/setup/ \
//	  --redis    localhost:6379 \
//	  --admin    0x<admin> \
//	  --shop     0x<shop> \
//	  --issuer   0x<issuer> \
//	  --buyer    0x<buyer> \
//	  --credit   10000000000000000000000
package main

import (
	"context"
	"flag"
	"fmt"
	"math/big"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"

	"github.com/gmnlabs/gmn-shop/internal/authority"
	"github.com/gmnlabs/gmn-shop/internal/token"
)

func main() {
	redisAddr := flag.String("redis", "localhost:6379", "Redis address")
	adminHex := flag.String("admin", "", "administrator address")
	shopHex := flag.String("shop", "", "shop address (allowance spender)")
	issuerHex := flag.String("issuer", "", "issuer address to grant")
	buyerHex := flag.String("buyer", "", "buyer address to fund")
	credit := flag.String("credit", "10000000000000000000000", "currency amount to credit and approve")
	flag.Parse()

	for name, val := range map[string]string{
		"admin": *adminHex, "shop": *shopHex, "issuer": *issuerHex, "buyer": *buyerHex,
	} {
		if !common.IsHexAddress(val) {
			fatalf("invalid --%s address %q", name, val)
		}
	}
	amount, ok := new(big.Int).SetString(*credit, 10)
	if !ok || amount.Sign() < 0 {
		fatalf("invalid --credit amount %q", *credit)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	rdb := redis.NewClient(&redis.Options{Addr: *redisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		fatalf("redis ping: %v", err)
	}

	admin := common.HexToAddress(*adminHex)
	shopAddr := common.HexToAddress(*shopHex)
	issuer := common.HexToAddress(*issuerHex)
	buyer := common.HexToAddress(*buyerHex)

	// ── 1. Grant issuer authority ─────────────────────────────────────────────
	fmt.Println("[1/3] grant issuer authority...")
	issuers := authority.New(rdb)
	if err := issuers.Init(ctx, admin); err != nil {
		fatalf("authority init: %v", err)
	}
	if err := issuers.Grant(ctx, admin, issuer); err != nil {
		fatalf("grant issuer: %v", err)
	}

	// ── 2. Credit buyer balance ───────────────────────────────────────────────
	fmt.Printf("[2/3] credit buyer %s...\n", amount)
	currency := token.NewLedger(rdb, shopAddr)
	if err := currency.Credit(ctx, buyer, amount); err != nil {
		fatalf("credit buyer: %v", err)
	}

	// ── 3. Approve shop allowance ─────────────────────────────────────────────
	fmt.Println("[3/3] approve shop allowance...")
	if err := currency.Approve(ctx, buyer, amount); err != nil {
		fatalf("approve shop: %v", err)
	}

	bal, err := currency.BalanceOf(ctx, buyer)
	if err != nil {
		fatalf("read balance: %v", err)
	}
	fmt.Printf("\nSetup complete!\n")
	fmt.Printf("  issuer:        %s\n", issuer.Hex())
	fmt.Printf("  buyer balance: %s\n", bal.String())
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
	os.Exit(1)
}

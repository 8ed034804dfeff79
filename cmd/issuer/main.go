// The issuer tool signs purchase vouchers off-line. A buyer submits the
// resulting JSON to the shop's /api/buy or /api/buy-batch endpoint; the
// issuer never talks to the shop itself.
//
// Usage:
//
//	ISSUER_PRIVATE_KEY=<hex> issuer sign \
//	  --buyer 0x…  --shop 0x… \
//	  --name "Character 1" --kind 1 --sex 1 --rarity 3 \
//	  --price 2000000000000000000000 --expires-in 48h
//
//	ISSUER_PRIVATE_KEY=<hex> issuer sign-batch \
//	  --buyer 0x… --shop 0x… --expires-in 48h --items items.json
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"

	"github.com/gmnlabs/gmn-shop/internal/item"
	"github.com/gmnlabs/gmn-shop/internal/voucher"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "issuer",
		Short:        "Sign purchase vouchers for the shop",
		SilenceUsage: true,
	}
	cmd.AddCommand(signCmd(), signBatchCmd())
	return cmd
}

type commonFlags struct {
	buyer     string
	shopAddr  string
	expiresIn time.Duration
}

func (f *commonFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.buyer, "buyer", "", "buyer address (required)")
	cmd.Flags().StringVar(&f.shopAddr, "shop", "", "shop address (required)")
	cmd.Flags().DurationVar(&f.expiresIn, "expires-in", 48*time.Hour, "voucher validity window")
	cmd.MarkFlagRequired("buyer") //nolint:errcheck
	cmd.MarkFlagRequired("shop")  //nolint:errcheck
}

func (f *commonFlags) parse() (buyer, shop common.Address, expiry int64, err error) {
	if !common.IsHexAddress(f.buyer) {
		return common.Address{}, common.Address{}, 0, fmt.Errorf("invalid buyer address %q", f.buyer)
	}
	if !common.IsHexAddress(f.shopAddr) {
		return common.Address{}, common.Address{}, 0, fmt.Errorf("invalid shop address %q", f.shopAddr)
	}
	return common.HexToAddress(f.buyer), common.HexToAddress(f.shopAddr), time.Now().Add(f.expiresIn).Unix(), nil
}

func signCmd() *cobra.Command {
	var (
		flags  commonFlags
		name   string
		kind   uint8
		sex    int
		rarity uint8
		price  string
	)
	cmd := &cobra.Command{
		Use:   "sign",
		Short: "Sign a single-item voucher",
		RunE: func(cmd *cobra.Command, args []string) error {
			buyer, shop, expiry, err := flags.parse()
			if err != nil {
				return err
			}
			amount, ok := new(big.Int).SetString(price, 10)
			if !ok || amount.Sign() < 0 {
				return fmt.Errorf("invalid price %q", price)
			}

			attrs := item.Machine(name, kind, rarity)
			if sex >= 0 {
				attrs = item.Character(name, kind, uint8(sex), rarity)
			}

			key, err := signingKeyFromEnv()
			if err != nil {
				return err
			}

			v := &voucher.Voucher{
				Buyer:      buyer,
				Price:      amount,
				Attributes: attrs,
				Shop:       shop,
				Expiry:     expiry,
			}
			if err := voucher.SignVoucher(v, key); err != nil {
				return err
			}

			fmt.Fprintf(os.Stderr, "issuer: %s\n", crypto.PubkeyToAddress(key.PublicKey).Hex())
			return writeJSON(cmd, v)
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&name, "name", "", "item name (required)")
	cmd.Flags().Uint8Var(&kind, "kind", 0, "item kind")
	cmd.Flags().IntVar(&sex, "sex", -1, "item sex; omit for the machine family")
	cmd.Flags().Uint8Var(&rarity, "rarity", 0, "item rarity tier")
	cmd.Flags().StringVar(&price, "price", "", "price in base currency units (required)")
	cmd.MarkFlagRequired("name")  //nolint:errcheck
	cmd.MarkFlagRequired("price") //nolint:errcheck
	return cmd
}

// batchItem is one entry of the --items file for sign-batch.
type batchItem struct {
	Name   string `json:"name"`
	Kind   uint8  `json:"kind"`
	Sex    *uint8 `json:"sex,omitempty"`
	Rarity uint8  `json:"rarity"`
	Price  string `json:"price"`
}

func signBatchCmd() *cobra.Command {
	var (
		flags     commonFlags
		itemsFile string
	)
	cmd := &cobra.Command{
		Use:   "sign-batch",
		Short: "Sign an ordered batch of vouchers as one unit",
		RunE: func(cmd *cobra.Command, args []string) error {
			buyer, shop, expiry, err := flags.parse()
			if err != nil {
				return err
			}

			raw, err := os.ReadFile(itemsFile)
			if err != nil {
				return err
			}
			var entries []batchItem
			if err := json.Unmarshal(raw, &entries); err != nil {
				return fmt.Errorf("parse %s: %w", itemsFile, err)
			}
			if len(entries) == 0 {
				return errors.New("items file is empty: a batch needs at least one item")
			}

			b := &voucher.Batch{
				Buyer:  buyer,
				Shop:   shop,
				Expiry: expiry,
			}
			for _, e := range entries {
				attrs := item.Machine(e.Name, e.Kind, e.Rarity)
				if e.Sex != nil {
					attrs = item.Character(e.Name, e.Kind, *e.Sex, e.Rarity)
				}
				amount, ok := new(big.Int).SetString(e.Price, 10)
				if !ok || amount.Sign() < 0 {
					return fmt.Errorf("invalid price %q for item %q", e.Price, e.Name)
				}
				b.Attributes = append(b.Attributes, attrs)
				b.Prices = append(b.Prices, amount)
			}

			key, err := signingKeyFromEnv()
			if err != nil {
				return err
			}
			if err := voucher.SignBatchItems(b, key); err != nil {
				return err
			}
			if err := voucher.SignBatch(b, key); err != nil {
				return err
			}

			fmt.Fprintf(os.Stderr, "issuer: %s (%d items)\n",
				crypto.PubkeyToAddress(key.PublicKey).Hex(), len(entries))
			return writeJSON(cmd, b)
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&itemsFile, "items", "", "JSON file with the ordered item list (required)")
	cmd.MarkFlagRequired("items") //nolint:errcheck
	return cmd
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Package receipts archives redemption events for later lookup by buyers.
package receipts

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/gmnlabs/gmn-shop/internal/shop"
)

const receiptKeyPrefix = "shop:receipts:"

const popTimeout = 5 * time.Second

// Run is the receipts loop: BLPOP an event record from the shop's event
// queue, archive it under the buyer's receipt list, repeat. A record that
// fails to archive is pushed back so it is retried.
func Run(ctx context.Context, rdb *redis.Client, log *zap.Logger) {
	log.Info("receipts consumer started", zap.String("queue", shop.EventQueueKey))

	for {
		if ctx.Err() != nil {
			log.Info("receipts consumer stopped")
			return
		}

		results, err := rdb.BLPop(ctx, popTimeout, shop.EventQueueKey).Result()
		if err != nil {
			if err == redis.Nil {
				continue
			}
			if ctx.Err() != nil {
				return
			}
			log.Error("receipts: BLPOP", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}

		// results[0] = key, results[1] = value
		raw := results[1]
		if err := Archive(ctx, rdb, raw, log); err != nil {
			log.Error("receipts: archive", zap.Error(err))
			rdb.LPush(ctx, shop.EventQueueKey, raw) //nolint:errcheck
			time.Sleep(time.Second)
		}
	}
}

// Archive stores one serialized event record under the buyer's receipt
// list. Malformed records are dropped, not retried forever.
func Archive(ctx context.Context, rdb *redis.Client, raw string, log *zap.Logger) error {
	var rec shop.Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		log.Warn("receipts: malformed record", zap.String("raw", raw), zap.Error(err))
		return nil
	}

	switch {
	case rec.Purchased != nil:
		log.Info("item purchased",
			zap.String("buyer", rec.Purchased.Buyer.Hex()),
			zap.Uint64("item", rec.Purchased.ItemID),
			zap.String("price", rec.Purchased.Price.String()),
		)
		return rdb.RPush(ctx, receiptKey(rec.Purchased.Buyer), raw).Err()

	case rec.Sold != nil:
		log.Info("batch sold",
			zap.String("buyer", rec.Sold.Buyer.Hex()),
			zap.Int("items", len(rec.Sold.ItemIDs)),
			zap.String("total", rec.Sold.TotalPrice.String()),
		)
		return rdb.RPush(ctx, receiptKey(rec.Sold.Buyer), raw).Err()
	}

	log.Warn("receipts: record with no payload", zap.String("type", rec.Type))
	return nil
}

// List returns the archived records for a buyer, oldest first.
func List(ctx context.Context, rdb *redis.Client, buyer common.Address) ([]shop.Record, error) {
	raws, err := rdb.LRange(ctx, receiptKey(buyer), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	records := make([]shop.Record, 0, len(raws))
	for _, raw := range raws {
		var rec shop.Record
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

func receiptKey(buyer common.Address) string {
	return receiptKeyPrefix + strings.ToLower(buyer.Hex())
}

package shop

import (
	"context"
	"encoding/json"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Purchased is emitted once per minted item.
type Purchased struct {
	Buyer  common.Address `json:"buyer"`
	ItemID uint64         `json:"item_id"`
	Price  *big.Int       `json:"price"`
}

// Sold is emitted once per successful batch redemption.
type Sold struct {
	Buyer      common.Address `json:"buyer"`
	ItemIDs    []uint64       `json:"item_ids"`
	TotalPrice *big.Int       `json:"total_price"`
}

// Record is the envelope pushed onto the event queue; exactly one of the
// two fields is set.
type Record struct {
	Type      string     `json:"type"` // "purchased" | "sold"
	Purchased *Purchased `json:"purchased,omitempty"`
	Sold      *Sold      `json:"sold,omitempty"`
}

// EventSink receives redemption records. Sink failures are logged, never
// fatal: by the time an event fires the redemption has already committed.
type EventSink interface {
	EmitPurchased(ctx context.Context, e Purchased)
	EmitSold(ctx context.Context, e Sold)
}

// EventQueueKey is the Redis list the QueueSink pushes JSON records onto;
// the receipts consumer drains it.
const EventQueueKey = "shop:events"

// QueueSink pushes event records onto the Redis event queue.
type QueueSink struct {
	rdb *redis.Client
	log *zap.Logger
}

func NewQueueSink(rdb *redis.Client, log *zap.Logger) *QueueSink {
	return &QueueSink{rdb: rdb, log: log}
}

func (s *QueueSink) EmitPurchased(ctx context.Context, e Purchased) {
	s.push(ctx, Record{Type: "purchased", Purchased: &e})
}

func (s *QueueSink) EmitSold(ctx context.Context, e Sold) {
	s.push(ctx, Record{Type: "sold", Sold: &e})
}

func (s *QueueSink) push(ctx context.Context, rec Record) {
	raw, err := json.Marshal(rec)
	if err != nil {
		s.log.Error("marshal event record", zap.Error(err))
		return
	}
	if err := s.rdb.RPush(ctx, EventQueueKey, string(raw)).Err(); err != nil {
		s.log.Error("enqueue event record", zap.String("type", rec.Type), zap.Error(err))
	}
}

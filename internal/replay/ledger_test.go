package replay

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	mr := miniredis.RunT(t)
	return New(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
}

func TestMark_FirstUseSucceedsSecondFails(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)
	sig := []byte{0x01, 0x02, 0x03}

	if err := l.Mark(ctx, sig); err != nil {
		t.Fatalf("first mark: %v", err)
	}
	if err := l.Mark(ctx, sig); !errors.Is(err, ErrSignatureUsed) {
		t.Fatalf("second mark: err = %v, want ErrSignatureUsed", err)
	}

	used, err := l.IsUsed(ctx, sig)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if !used {
		t.Fatal("marked signature reported unused")
	}
}

func TestMark_DistinctSignaturesIndependent(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)

	if err := l.Mark(ctx, []byte{0x01}); err != nil {
		t.Fatalf("mark: %v", err)
	}
	if err := l.Mark(ctx, []byte{0x02}); err != nil {
		t.Fatalf("mark of distinct signature: %v", err)
	}
	if used, _ := l.IsUsed(ctx, []byte{0x03}); used {
		t.Fatal("unmarked signature reported used")
	}
}

func TestRelease_MakesSignatureReusable(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)
	sig := []byte{0xAA, 0xBB}

	if err := l.Mark(ctx, sig); err != nil {
		t.Fatalf("mark: %v", err)
	}
	if err := l.Release(ctx, sig); err != nil {
		t.Fatalf("release: %v", err)
	}
	if used, _ := l.IsUsed(ctx, sig); used {
		t.Fatal("released signature still marked")
	}
	if err := l.Mark(ctx, sig); err != nil {
		t.Fatalf("re-mark after release: %v", err)
	}
}

package stats

import (
	"bytes"
	"math/big"
	"testing"
	"time"

	"gigchain/core/state"
	storagepkg "gigchain/storage"
)

func newTestEngine(t *testing.T, now int64) *Engine {
	t.Helper()
	engine := NewEngine(state.NewManager(storagepkg.NewMemDB()))
	engine.SetNowFunc(func() int64 { return now })
	return engine
}

func testAddr(fill byte) [20]byte {
	var addr [20]byte
	copy(addr[:], bytes.Repeat([]byte{fill}, 20))
	return addr
}

func unixAt(year int, month time.Month, day int) int64 {
	return time.Date(year, month, day, 12, 0, 0, 0, time.UTC).Unix()
}

func TestCountersAccumulate(t *testing.T) {
	now := unixAt(2026, time.March, 5)
	engine := newTestEngine(t, now)
	addr := testAddr(0x01)

	if err := engine.RecordGigPosted(addr); err != nil {
		t.Fatalf("record gig: %v", err)
	}
	if err := engine.RecordGigPosted(addr); err != nil {
		t.Fatalf("record gig: %v", err)
	}
	if err := engine.RecordRevenue(addr, big.NewInt(1000)); err != nil {
		t.Fatalf("record revenue: %v", err)
	}
	if err := engine.RecordRevenue(addr, big.NewInt(250)); err != nil {
		t.Fatalf("record revenue: %v", err)
	}

	got, err := engine.Get(addr)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.TotalGigsPosted != 2 || got.MonthlyGigs != 2 {
		t.Fatalf("gig counters = %d/%d", got.TotalGigsPosted, got.MonthlyGigs)
	}
	if got.TotalRevenueEarned.Cmp(big.NewInt(1250)) != 0 || got.MonthlyRevenue.Cmp(big.NewInt(1250)) != 0 {
		t.Fatalf("revenue counters = %s/%s", got.TotalRevenueEarned, got.MonthlyRevenue)
	}
}

func TestMonthlyRolloverOnWrite(t *testing.T) {
	current := unixAt(2026, time.March, 5)
	engine := newTestEngine(t, current)
	addr := testAddr(0x01)

	if err := engine.RecordGigPosted(addr); err != nil {
		t.Fatalf("record gig: %v", err)
	}
	if err := engine.RecordRevenue(addr, big.NewInt(500)); err != nil {
		t.Fatalf("record revenue: %v", err)
	}

	// Next month: monthly fields reset, totals survive.
	engine.SetNowFunc(func() int64 { return unixAt(2026, time.April, 1) })
	if err := engine.RecordRevenue(addr, big.NewInt(100)); err != nil {
		t.Fatalf("record revenue: %v", err)
	}
	got, err := engine.Get(addr)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.MonthlyGigs != 0 || got.MonthlyRevenue.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("monthly counters after rollover = %d/%s", got.MonthlyGigs, got.MonthlyRevenue)
	}
	if got.TotalGigsPosted != 1 || got.TotalRevenueEarned.Cmp(big.NewInt(600)) != 0 {
		t.Fatalf("totals after rollover = %d/%s", got.TotalGigsPosted, got.TotalRevenueEarned)
	}
}

func TestMonthlyRolloverOnRead(t *testing.T) {
	engine := newTestEngine(t, unixAt(2026, time.December, 20))
	addr := testAddr(0x01)
	if err := engine.RecordGigPosted(addr); err != nil {
		t.Fatalf("record gig: %v", err)
	}

	// January of the next year: same calendar month number would collide
	// without the year folded into the comparison.
	engine.SetNowFunc(func() int64 { return unixAt(2027, time.January, 2) })
	got, err := engine.Get(addr)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.MonthlyGigs != 0 {
		t.Fatalf("monthly gigs = %d, want 0 after year boundary", got.MonthlyGigs)
	}
	if got.TotalGigsPosted != 1 {
		t.Fatalf("total gigs = %d", got.TotalGigsPosted)
	}
}

func TestUnknownAddressReadsZero(t *testing.T) {
	engine := newTestEngine(t, unixAt(2026, time.March, 5))
	got, err := engine.Get(testAddr(0x07))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.TotalGigsPosted != 0 || got.TotalRevenueEarned.Sign() != 0 {
		t.Fatalf("fresh stats not zero: %+v", got)
	}
}

func TestRecordRevenueRejectsNegative(t *testing.T) {
	engine := newTestEngine(t, unixAt(2026, time.March, 5))
	if err := engine.RecordRevenue(testAddr(0x01), big.NewInt(-1)); err == nil {
		t.Fatal("expected negative revenue rejection")
	}
}

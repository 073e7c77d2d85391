package stats

import (
	"errors"
	"fmt"
	"math/big"
	"time"
)

// storage abstracts the subset of state manager functionality required by the
// stats ledger.
type storage interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

var statsPrefix = []byte("stats/user/")

var errNilStore = errors.New("stats: storage unavailable")

func userStatsKey(addr [20]byte) []byte {
	return []byte(fmt.Sprintf("%s%x", statsPrefix, addr))
}

// UserStats carries rolling per-identity counters. The monthly fields reset
// whenever an update or read observes a month different from the stored one.
type UserStats struct {
	TotalGigsPosted    uint64
	TotalRevenueEarned *big.Int
	MonthlyGigs        uint64
	MonthlyRevenue     *big.Int
	LastUpdatedMonth   uint64
}

// Clone returns a deep copy of the stats record.
func (s *UserStats) Clone() *UserStats {
	if s == nil {
		return nil
	}
	clone := *s
	clone.TotalRevenueEarned = cloneBigInt(s.TotalRevenueEarned)
	clone.MonthlyRevenue = cloneBigInt(s.MonthlyRevenue)
	return &clone
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

// monthIndex collapses a unix timestamp to a monotonically increasing month
// counter so the rollover comparison survives year boundaries.
func monthIndex(ts int64) uint64 {
	t := time.Unix(ts, 0).UTC()
	return uint64(t.Year())*12 + uint64(t.Month()-1)
}

// Engine maintains the rolling counters. It is a peripheral collaborator fed
// after each state-changing marketplace call; it never participates in the
// core transition itself.
type Engine struct {
	store storage
	nowFn func() int64
}

// NewEngine constructs a stats engine backed by the provided storage.
func NewEngine(store storage) *Engine {
	return &Engine{
		store: store,
		nowFn: func() int64 { return time.Now().Unix() },
	}
}

// SetNowFunc overrides the wall clock, for deterministic tests.
func (e *Engine) SetNowFunc(now func() int64) {
	if e == nil {
		return
	}
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) load(addr [20]byte) (*storedUserStats, error) {
	if e == nil || e.store == nil {
		return nil, errNilStore
	}
	var stored storedUserStats
	ok, err := e.store.KVGet(userStatsKey(addr), &stored)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &storedUserStats{TotalRevenueEarned: big.NewInt(0), MonthlyRevenue: big.NewInt(0)}, nil
	}
	if stored.TotalRevenueEarned == nil {
		stored.TotalRevenueEarned = big.NewInt(0)
	}
	if stored.MonthlyRevenue == nil {
		stored.MonthlyRevenue = big.NewInt(0)
	}
	return &stored, nil
}

func rollover(stored *storedUserStats, month uint64) {
	if stored.LastUpdatedMonth == month {
		return
	}
	stored.MonthlyGigs = 0
	stored.MonthlyRevenue = big.NewInt(0)
	stored.LastUpdatedMonth = month
}

// RecordGigPosted bumps the posting counters for addr.
func (e *Engine) RecordGigPosted(addr [20]byte) error {
	stored, err := e.load(addr)
	if err != nil {
		return err
	}
	rollover(stored, monthIndex(e.now()))
	stored.TotalGigsPosted++
	stored.MonthlyGigs++
	return e.store.KVPut(userStatsKey(addr), stored)
}

// RecordRevenue adds a completed payout to addr's revenue counters.
func (e *Engine) RecordRevenue(addr [20]byte, amount *big.Int) error {
	amt := cloneBigInt(amount)
	if amt.Sign() < 0 {
		return fmt.Errorf("stats: revenue must not be negative")
	}
	stored, err := e.load(addr)
	if err != nil {
		return err
	}
	rollover(stored, monthIndex(e.now()))
	stored.TotalRevenueEarned = new(big.Int).Add(stored.TotalRevenueEarned, amt)
	stored.MonthlyRevenue = new(big.Int).Add(stored.MonthlyRevenue, amt)
	return e.store.KVPut(userStatsKey(addr), stored)
}

// Get returns the counters for addr. Monthly fields observed in a later month
// than their last update read as zero; the reset is persisted lazily on the
// next write.
func (e *Engine) Get(addr [20]byte) (*UserStats, error) {
	stored, err := e.load(addr)
	if err != nil {
		return nil, err
	}
	rollover(stored, monthIndex(e.now()))
	return &UserStats{
		TotalGigsPosted:    stored.TotalGigsPosted,
		TotalRevenueEarned: cloneBigInt(stored.TotalRevenueEarned),
		MonthlyGigs:        stored.MonthlyGigs,
		MonthlyRevenue:     cloneBigInt(stored.MonthlyRevenue),
		LastUpdatedMonth:   stored.LastUpdatedMonth,
	}, nil
}

type storedUserStats struct {
	TotalGigsPosted    uint64
	TotalRevenueEarned *big.Int
	MonthlyGigs        uint64
	MonthlyRevenue     *big.Int
	LastUpdatedMonth   uint64
}

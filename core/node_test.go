package core

import (
	"bytes"
	"math/big"
	"sync"
	"testing"
	"time"

	"gigchain/native/marketplace"
	"gigchain/storage"
)

func nodeTestAddr(fill byte) [20]byte {
	var addr [20]byte
	copy(addr[:], bytes.Repeat([]byte{fill}, 20))
	return addr
}

func newTestNode(t *testing.T, now int64) *Node {
	t.Helper()
	node := NewNode(storage.NewMemDB())
	node.SetNowFunc(func() int64 { return now })
	return node
}

func TestPostJobUpdatesClientStats(t *testing.T) {
	now := time.Date(2026, time.March, 5, 12, 0, 0, 0, time.UTC).Unix()
	node := newTestNode(t, now)
	client := nodeTestAddr(0x01)
	if err := node.Credit(client, big.NewInt(5000)); err != nil {
		t.Fatalf("credit: %v", err)
	}

	if _, err := node.PostJob(client, "job one", "first", big.NewInt(1000), now+1, now+2); err != nil {
		t.Fatalf("post: %v", err)
	}
	if _, err := node.PostJob(client, "job two", "second", big.NewInt(1000), now+1, now+2); err != nil {
		t.Fatalf("post: %v", err)
	}

	got, err := node.GetStats(client)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if got.TotalGigsPosted != 2 || got.MonthlyGigs != 2 {
		t.Fatalf("gig counters = %d/%d", got.TotalGigsPosted, got.MonthlyGigs)
	}
}

func TestFailedPostLeavesStatsUntouched(t *testing.T) {
	now := time.Date(2026, time.March, 5, 12, 0, 0, 0, time.UTC).Unix()
	node := newTestNode(t, now)
	client := nodeTestAddr(0x01)

	if _, err := node.PostJob(client, "job", "desc", big.NewInt(1000), now+1, now+2); err == nil {
		t.Fatal("expected underfunded post to fail")
	}
	got, err := node.GetStats(client)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if got.TotalGigsPosted != 0 {
		t.Fatalf("stats bumped on failed transition: %+v", got)
	}
}

func TestFullLifecycleUpdatesRevenue(t *testing.T) {
	now := time.Date(2026, time.March, 5, 12, 0, 0, 0, time.UTC).Unix()
	node := newTestNode(t, now)
	client := nodeTestAddr(0x01)
	freelancer := nodeTestAddr(0x02)
	if err := node.Credit(client, big.NewInt(5000)); err != nil {
		t.Fatalf("credit: %v", err)
	}

	job, err := node.PostJob(client, "site build", "marketing site", big.NewInt(1000), now+10, now+20)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	app, err := node.Apply(freelancer, job.ID, "https://cv", 30)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if _, err := node.ApproveApplication(client, job.ID, app.ID); err != nil {
		t.Fatalf("approve application: %v", err)
	}
	if _, err := node.SubmitWork(freelancer, job.ID, app.ID, "https://work", "first"); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := node.RejectSubmission(client, job.ID, app.ID, "rework"); err != nil {
		t.Fatalf("reject: %v", err)
	}
	if _, err := node.SubmitWork(freelancer, job.ID, app.ID, "https://work-v2", "second"); err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	final, err := node.ApproveSubmission(client, job.ID, app.ID, "ship it")
	if err != nil {
		t.Fatalf("approve submission: %v", err)
	}
	if !final.Completed || final.Rejected {
		t.Fatalf("unexpected final state: %+v", final)
	}

	balance, err := node.VaultBalance(job.ID)
	if err != nil {
		t.Fatalf("vault balance: %v", err)
	}
	if balance.Sign() != 0 {
		t.Fatalf("vault balance = %s, want 0", balance)
	}
	got, err := node.GetStats(freelancer)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if got.TotalRevenueEarned.Cmp(big.NewInt(1000)) != 0 || got.MonthlyRevenue.Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("revenue counters = %s/%s", got.TotalRevenueEarned, got.MonthlyRevenue)
	}
}

func TestConcurrentApprovalsFillJobOnce(t *testing.T) {
	now := time.Date(2026, time.March, 5, 12, 0, 0, 0, time.UTC).Unix()
	node := newTestNode(t, now)
	client := nodeTestAddr(0x01)
	if err := node.Credit(client, big.NewInt(5000)); err != nil {
		t.Fatalf("credit: %v", err)
	}
	job, err := node.PostJob(client, "race job", "desc", big.NewInt(1000), now+1, now+2)
	if err != nil {
		t.Fatalf("post: %v", err)
	}

	const applicants = 8
	appIDs := make([][32]byte, applicants)
	for i := 0; i < applicants; i++ {
		app, err := node.Apply(nodeTestAddr(byte(0x10+i)), job.ID, "https://cv", 30)
		if err != nil {
			t.Fatalf("apply %d: %v", i, err)
		}
		appIDs[i] = app.ID
	}

	var wg sync.WaitGroup
	results := make([]error, applicants)
	for i := 0; i < applicants; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = node.ApproveApplication(client, job.ID, appIDs[i])
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range results {
		if err == nil {
			wins++
		} else if err != marketplace.ErrJobAlreadyFilled {
			t.Fatalf("unexpected loser error: %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("approvals won = %d, want exactly 1", wins)
	}
}

package core

import (
	"math/big"
	"sync"

	"gigchain/core/events"
	"gigchain/core/state"
	"gigchain/core/types"
	"gigchain/native/marketplace"
	"gigchain/native/stats"
	"gigchain/storage"
)

// Node owns the ledger state and the native engines and provides the atomic
// boundary operations. Every transition runs under stateMu, which is the
// global ordering of the ledger: two transitions touching the same record are
// linearized, and a failed transition leaves no partial state because the
// engine validates everything before its first write.
type Node struct {
	db          storage.Database
	state       *state.Manager
	marketplace *marketplace.Engine
	stats       *stats.Engine

	stateMu sync.Mutex
	emitter events.Emitter
}

// NewNode wires a node over the provided database.
func NewNode(db storage.Database) *Node {
	manager := state.NewManager(db)
	engine := marketplace.NewEngine()
	engine.SetState(manager)
	node := &Node{
		db:          db,
		state:       manager,
		marketplace: engine,
		stats:       stats.NewEngine(manager),
		emitter:     events.NoopEmitter{},
	}
	engine.SetEmitter(events.FuncEmitter(node.forwardEvent))
	return node
}

// SetEmitter configures the downstream event sink (RPC subscriptions,
// indexers). Passing nil resets it to a no-op.
func (n *Node) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		n.emitter = events.NoopEmitter{}
		return
	}
	n.emitter = emitter
}

// SetNowFunc overrides the time source of both engines, for tests.
func (n *Node) SetNowFunc(now func() int64) {
	n.marketplace.SetNowFunc(now)
	n.stats.SetNowFunc(now)
}

func (n *Node) forwardEvent(evt events.Event) {
	if n.emitter != nil {
		n.emitter.Emit(evt)
	}
}

// PostJob creates a posting and locks the amount in its escrow vault, then
// bumps the client's posting counters. The stats update is a side effect of
// an already committed transition; its failure is reported but cannot undo
// the posting.
func (n *Node) PostJob(client [20]byte, title, description string, amount *big.Int, startDate, endDate int64) (*marketplace.JobPosting, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	job, err := n.marketplace.PostJob(client, title, description, amount, startDate, endDate)
	if err != nil {
		return nil, err
	}
	if err := n.stats.RecordGigPosted(client); err != nil {
		return job, err
	}
	return job, nil
}

// Apply records a freelancer's bid against an open posting.
func (n *Node) Apply(applicant [20]byte, jobID [32]byte, resumeLink string, expectedEndDate int64) (*marketplace.Application, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.marketplace.Apply(applicant, jobID, resumeLink, expectedEndDate)
}

// ApproveApplication fills the job with the chosen applicant.
func (n *Node) ApproveApplication(client [20]byte, jobID, applicationID [32]byte) (*marketplace.Application, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.marketplace.ApproveApplication(client, jobID, applicationID)
}

// SubmitWork records a submission, or a resubmission after rejection.
func (n *Node) SubmitWork(applicant [20]byte, jobID, applicationID [32]byte, submissionLink, narration string) (*marketplace.Application, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.marketplace.SubmitWork(applicant, jobID, applicationID, submissionLink, narration)
}

// ApproveSubmission completes the application, pays the freelancer from the
// vault and bumps the freelancer's revenue counters.
func (n *Node) ApproveSubmission(client [20]byte, jobID, applicationID [32]byte, clientReview string) (*marketplace.Application, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	app, err := n.marketplace.ApproveSubmission(client, jobID, applicationID, clientReview)
	if err != nil {
		return nil, err
	}
	job, ok, err := n.marketplace.GetJob(jobID)
	if err != nil || !ok {
		return app, err
	}
	if err := n.stats.RecordRevenue(app.Applicant, job.Amount); err != nil {
		return app, err
	}
	return app, nil
}

// RejectSubmission sends the submission back for rework.
func (n *Node) RejectSubmission(client [20]byte, jobID, applicationID [32]byte, clientReview string) (*marketplace.Application, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.marketplace.RejectSubmission(client, jobID, applicationID, clientReview)
}

// CancelJob cancels an unfilled posting and refunds the client.
func (n *Node) CancelJob(client [20]byte, jobID [32]byte) (*marketplace.JobPosting, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.marketplace.CancelJob(client, jobID)
}

// GetJob returns the posting stored under id.
func (n *Node) GetJob(id [32]byte) (*marketplace.JobPosting, bool, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.marketplace.GetJob(id)
}

// GetApplication returns the application stored under id.
func (n *Node) GetApplication(id [32]byte) (*marketplace.Application, bool, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.marketplace.GetApplication(id)
}

// VaultBalance reports the escrow balance held for a posting.
func (n *Node) VaultBalance(jobID [32]byte) (*big.Int, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.marketplace.VaultBalance(jobID)
}

// GetStats returns the rolling counters for an identity.
func (n *Node) GetStats(addr [20]byte) (*stats.UserStats, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.stats.Get(addr)
}

// GetAccount returns the balance-bearing account at addr.
func (n *Node) GetAccount(addr [20]byte) (*types.Account, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.state.GetAccount(addr[:])
}

// Credit adds funds to an account. Exposed for genesis allocation and tests;
// the surrounding ledger's account mechanics are out of scope here.
func (n *Node) Credit(addr [20]byte, amount *big.Int) error {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	acc, err := n.state.GetAccount(addr[:])
	if err != nil {
		return err
	}
	acc.Balance = new(big.Int).Add(acc.Balance, amount)
	return n.state.PutAccount(addr[:], acc)
}

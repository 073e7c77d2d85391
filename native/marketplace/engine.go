package marketplace

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"gigchain/core/events"
	"gigchain/core/types"
)

var errNilState = errors.New("marketplace engine: state not configured")

type marketplaceEvent struct {
	evt *types.Event
}

func (e marketplaceEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e marketplaceEvent) Event() *types.Event { return e.evt }

// Engine implements the job and application state machines and the escrow
// custody protocol over an abstract ledger state. Every operation validates
// all of its preconditions before writing anything, so a failed call leaves
// no partial state behind. Callers serialize operations; the engine holds no
// cross-call state of its own.
type Engine struct {
	state   engineState
	emitter events.Emitter
	nowFn   func() int64
}

// NewEngine creates a marketplace engine with a no-op emitter. Callers can
// override the emitter via SetEmitter.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetNowFunc overrides the time source used by the engine. Primarily intended
// for tests to provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(marketplaceEvent{evt: event})
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

func ensureAccount(acc *types.Account) *types.Account {
	if acc == nil {
		return &types.Account{Balance: big.NewInt(0)}
	}
	if acc.Balance == nil {
		acc.Balance = big.NewInt(0)
	}
	return acc
}

func (e *Engine) transfer(from, to [20]byte, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	amt := cloneBigInt(amount)
	if amt.Sign() == 0 {
		return nil
	}
	if amt.Sign() < 0 {
		return fmt.Errorf("marketplace: negative transfer amount")
	}
	fromAcc, err := e.state.GetAccount(from[:])
	if err != nil {
		return err
	}
	toAcc, err := e.state.GetAccount(to[:])
	if err != nil {
		return err
	}
	fromAcc = ensureAccount(fromAcc)
	toAcc = ensureAccount(toAcc)
	if fromAcc.Balance.Cmp(amt) < 0 {
		return ErrInsufficientBalance
	}
	fromAcc.Balance = new(big.Int).Sub(fromAcc.Balance, amt)
	toAcc.Balance = new(big.Int).Add(toAcc.Balance, amt)
	if err := e.state.PutAccount(from[:], fromAcc); err != nil {
		return err
	}
	return e.state.PutAccount(to[:], toAcc)
}

func (e *Engine) balanceOf(addr [20]byte) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	acc, err := e.state.GetAccount(addr[:])
	if err != nil {
		return nil, err
	}
	return ensureAccount(acc).Balance, nil
}

// vaultAuthority re-derives the custodial address from the posting identity
// and checks it against the stored pairing. This is the only spending proof a
// vault has; a posting whose stored vault does not re-derive is corrupt and
// its funds stay put.
func vaultAuthority(job *JobPosting) ([20]byte, error) {
	derived := DeriveVaultAddress(job.ID)
	if job.Vault != derived {
		return [20]byte{}, ErrInvalidAccount
	}
	return derived, nil
}

// PostJob creates a posting together with its escrow vault and locks exactly
// amount from the client into the vault.
func (e *Engine) PostJob(client [20]byte, title, description string, amount *big.Int, startDate, endDate int64) (*JobPosting, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	title = strings.TrimSpace(title)
	description = strings.TrimSpace(description)
	if title == "" || description == "" {
		return nil, ErrInvalidInput
	}
	if len(title) > MaxTitleLen || len(description) > MaxDescriptionLen {
		return nil, ErrInvalidInput
	}
	amt := cloneBigInt(amount)
	if amt.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	if startDate > endDate {
		return nil, ErrInvalidDates
	}
	now := e.now()
	if startDate < now {
		return nil, ErrInvalidDates
	}
	id, err := DeriveJobID(client, title)
	if err != nil {
		return nil, ErrInvalidInput
	}
	if _, exists, err := e.jobGet(id); err != nil {
		return nil, err
	} else if exists {
		return nil, ErrJobExists
	}
	balance, err := e.balanceOf(client)
	if err != nil {
		return nil, err
	}
	if balance.Cmp(amt) < 0 {
		return nil, ErrInsufficientBalance
	}
	job := &JobPosting{
		ID:          id,
		Client:      client,
		Title:       title,
		Description: description,
		Amount:      amt,
		StartDate:   startDate,
		EndDate:     endDate,
		Vault:       DeriveVaultAddress(id),
		CreatedAt:   now,
	}
	if err := e.jobPut(job); err != nil {
		return nil, err
	}
	if err := e.transfer(client, job.Vault, amt); err != nil {
		return nil, err
	}
	e.emit(NewJobPostedEvent(job))
	return job.Clone(), nil
}

// Apply records a freelancer's bid against an open posting. The application
// identifier is derived from the (job, applicant) pair, so a second call for
// the same pair fails as a duplicate record rather than a domain error.
func (e *Engine) Apply(applicant [20]byte, jobID [32]byte, resumeLink string, expectedEndDate int64) (*Application, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	resumeLink = strings.TrimSpace(resumeLink)
	if resumeLink == "" || len(resumeLink) > MaxResumeLinkLen {
		return nil, ErrInvalidInput
	}
	if expectedEndDate < 0 {
		return nil, ErrInvalidDates
	}
	job, ok, err := e.jobGet(jobID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrJobNotFound
	}
	if job.IsFilled {
		return nil, ErrJobAlreadyFilled
	}
	if job.Cancelled {
		return nil, ErrJobCancelled
	}
	id := DeriveApplicationID(jobID, applicant)
	if _, exists, err := e.applicationGet(id); err != nil {
		return nil, err
	} else if exists {
		return nil, ErrApplicationExists
	}
	app := &Application{
		ID:              id,
		Applicant:       applicant,
		Job:             jobID,
		ResumeLink:      resumeLink,
		ExpectedEndDate: expectedEndDate,
		CreatedAt:       e.now(),
	}
	if err := e.applicationPut(app); err != nil {
		return nil, err
	}
	e.emit(NewApplicationSubmittedEvent(app))
	return app.Clone(), nil
}

// ApproveApplication binds the applicant to the job. This is the single point
// where a posting transitions from open to filled; the IsFilled guard makes
// the second of two racing approvals fail rather than rebind the job.
func (e *Engine) ApproveApplication(client [20]byte, jobID, applicationID [32]byte) (*Application, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	app, ok, err := e.applicationGet(applicationID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrApplicationNotFound
	}
	job, ok, err := e.jobGet(jobID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrJobNotFound
	}
	if job.Client != client {
		return nil, ErrUnauthorized
	}
	if job.IsFilled {
		return nil, ErrJobAlreadyFilled
	}
	if job.Cancelled {
		return nil, ErrJobCancelled
	}
	if app.Job != job.ID {
		return nil, ErrInvalidAccount
	}
	if app.Approved {
		return nil, ErrApplicationAlreadyApproved
	}
	app.Approved = true
	job.IsFilled = true
	job.Freelancer = app.Applicant
	if err := e.applicationPut(app); err != nil {
		return nil, err
	}
	if err := e.jobPut(job); err != nil {
		return nil, err
	}
	e.emit(NewApplicationApprovedEvent(job, app))
	return app.Clone(), nil
}

// SubmitWork records the bound freelancer's submission. Resubmission after a
// rejection reuses this operation and clears the rejected flag. A second
// submission before review overwrites the pending one.
func (e *Engine) SubmitWork(applicant [20]byte, jobID, applicationID [32]byte, submissionLink, narration string) (*Application, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	submissionLink = strings.TrimSpace(submissionLink)
	narration = strings.TrimSpace(narration)
	if submissionLink == "" || len(submissionLink) > MaxSubmissionLen {
		return nil, ErrInvalidInput
	}
	if narration == "" || len(narration) > MaxNarrationLen {
		return nil, ErrInvalidInput
	}
	app, ok, err := e.applicationGet(applicationID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrApplicationNotFound
	}
	if app.Applicant != applicant {
		return nil, ErrUnauthorized
	}
	if app.Job != jobID {
		return nil, ErrInvalidAccount
	}
	if !app.Approved {
		return nil, ErrApplicationNotApproved
	}
	if app.Completed {
		return nil, ErrWorkAlreadyApproved
	}
	app.SubmissionLink = submissionLink
	app.Narration = narration
	app.Submitted = true
	app.Rejected = false
	if err := e.applicationPut(app); err != nil {
		return nil, err
	}
	e.emit(NewWorkSubmittedEvent(app))
	return app.Clone(), nil
}

// ApproveSubmission completes the application and releases the escrowed
// amount to the freelancer. This is the only path by which vault funds reach
// a freelancer, and it requires the vault authority to re-derive.
func (e *Engine) ApproveSubmission(client [20]byte, jobID, applicationID [32]byte, clientReview string) (*Application, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	clientReview = strings.TrimSpace(clientReview)
	if len(clientReview) > MaxReviewLen {
		return nil, ErrInvalidInput
	}
	app, ok, err := e.applicationGet(applicationID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrApplicationNotFound
	}
	job, ok, err := e.jobGet(jobID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrJobNotFound
	}
	if job.Client != client {
		return nil, ErrUnauthorized
	}
	if !app.Submitted {
		return nil, ErrWorkNotSubmitted
	}
	if app.Completed {
		return nil, ErrWorkAlreadyApproved
	}
	if app.Job != job.ID {
		return nil, ErrInvalidAccount
	}
	if job.Freelancer != app.Applicant {
		return nil, ErrUnauthorized
	}
	vault, err := vaultAuthority(job)
	if err != nil {
		return nil, err
	}
	balance, err := e.balanceOf(vault)
	if err != nil {
		return nil, err
	}
	if balance.Cmp(job.Amount) < 0 {
		return nil, ErrInsufficientEscrow
	}
	app.ClientReview = clientReview
	app.Completed = true
	if err := e.applicationPut(app); err != nil {
		return nil, err
	}
	if err := e.transfer(vault, app.Applicant, job.Amount); err != nil {
		return nil, err
	}
	e.emit(NewWorkApprovedEvent(job, app))
	return app.Clone(), nil
}

// RejectSubmission returns the application to a resubmittable state. No funds
// move; the vault keeps custody until approval or cancellation.
func (e *Engine) RejectSubmission(client [20]byte, jobID, applicationID [32]byte, clientReview string) (*Application, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	clientReview = strings.TrimSpace(clientReview)
	if len(clientReview) > MaxReviewLen {
		return nil, ErrInvalidInput
	}
	app, ok, err := e.applicationGet(applicationID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrApplicationNotFound
	}
	job, ok, err := e.jobGet(jobID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrJobNotFound
	}
	if job.Client != client {
		return nil, ErrUnauthorized
	}
	if app.Job != job.ID {
		return nil, ErrInvalidAccount
	}
	if job.Freelancer != app.Applicant {
		return nil, ErrUnauthorized
	}
	if app.Completed {
		return nil, ErrWorkAlreadyApproved
	}
	if app.Rejected && !app.Submitted {
		return nil, ErrWorkAlreadyRejected
	}
	if !app.Submitted {
		return nil, ErrWorkNotSubmitted
	}
	app.ClientReview = clientReview
	app.Rejected = true
	app.Submitted = false
	if err := e.applicationPut(app); err != nil {
		return nil, err
	}
	e.emit(NewWorkRejectedEvent(app))
	return app.Clone(), nil
}

// CancelJob cancels an unfilled posting and refunds the vault's entire
// balance to the client.
func (e *Engine) CancelJob(client [20]byte, jobID [32]byte) (*JobPosting, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	job, ok, err := e.jobGet(jobID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrJobNotFound
	}
	if job.Client != client {
		return nil, ErrUnauthorized
	}
	if job.IsFilled {
		return nil, ErrJobAlreadyFilled
	}
	if job.Cancelled {
		return nil, ErrJobAlreadyCancelled
	}
	vault, err := vaultAuthority(job)
	if err != nil {
		return nil, err
	}
	balance, err := e.balanceOf(vault)
	if err != nil {
		return nil, err
	}
	job.Cancelled = true
	if err := e.jobPut(job); err != nil {
		return nil, err
	}
	if err := e.transfer(vault, job.Client, balance); err != nil {
		return nil, err
	}
	e.emit(NewJobCancelledEvent(job))
	return job.Clone(), nil
}

// GetJob returns the posting stored under id.
func (e *Engine) GetJob(id [32]byte) (*JobPosting, bool, error) {
	job, ok, err := e.jobGet(id)
	if err != nil || !ok {
		return nil, ok, err
	}
	return job.Clone(), true, nil
}

// GetApplication returns the application stored under id.
func (e *Engine) GetApplication(id [32]byte) (*Application, bool, error) {
	app, ok, err := e.applicationGet(id)
	if err != nil || !ok {
		return nil, ok, err
	}
	return app.Clone(), true, nil
}

// VaultBalance reports the current custodial balance paired with a posting.
func (e *Engine) VaultBalance(jobID [32]byte) (*big.Int, error) {
	job, ok, err := e.jobGet(jobID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrJobNotFound
	}
	vault, err := vaultAuthority(job)
	if err != nil {
		return nil, err
	}
	balance, err := e.balanceOf(vault)
	if err != nil {
		return nil, err
	}
	return cloneBigInt(balance), nil
}

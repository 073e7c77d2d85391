package marketplace

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"gigchain/core/types"
)

// engineState abstracts the subset of state manager functionality required by
// the marketplace engine. Accounts hold spendable balances; the KV namespace
// holds job and application records.
type engineState interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	GetAccount(addr []byte) (*types.Account, error)
	PutAccount(addr []byte, account *types.Account) error
}

var (
	jobPrefix         = []byte("marketplace/job/")
	applicationPrefix = []byte("marketplace/application/")

	jobSeed         = []byte("gig/job")
	applicationSeed = []byte("gig/application")
	vaultSeed       = []byte("gig/escrow")
)

// DeriveJobID computes the deterministic posting identifier for a client and
// title. One posting may exist per (client, title) pair; re-posting the same
// pair collides on this identifier and fails as a duplicate record.
func DeriveJobID(client [20]byte, title string) ([32]byte, error) {
	trimmed := strings.TrimSpace(title)
	if trimmed == "" {
		return [32]byte{}, errors.New("marketplace: title required")
	}
	hash := ethcrypto.Keccak256(jobSeed, client[:], []byte(trimmed))
	var id [32]byte
	copy(id[:], hash)
	return id, nil
}

// DeriveApplicationID computes the deterministic application identifier for a
// job and applicant, enforcing one application per pair.
func DeriveApplicationID(jobID [32]byte, applicant [20]byte) [32]byte {
	hash := ethcrypto.Keccak256(applicationSeed, jobID[:], applicant[:])
	var id [32]byte
	copy(id[:], hash)
	return id
}

// DeriveVaultAddress computes the custodial address paired with a posting.
// The address is derived, never generated: no private key exists for it, and
// spending authority is proven by re-deriving the address from the posting
// the engine loaded. Only the engine's release and refund paths do so.
func DeriveVaultAddress(jobID [32]byte) [20]byte {
	hash := ethcrypto.Keccak256(vaultSeed, jobID[:])
	var addr [20]byte
	copy(addr[:], hash[12:])
	return addr
}

func jobKey(id [32]byte) []byte {
	return []byte(fmt.Sprintf("%s%x", jobPrefix, id))
}

func applicationKey(id [32]byte) []byte {
	return []byte(fmt.Sprintf("%s%x", applicationPrefix, id))
}

// storedJobPosting is the RLP wire form of a posting. RLP carries no signed
// integers, so timestamps are widened to uint64 (they are unix seconds and
// never negative by the posting validations).
type storedJobPosting struct {
	Client      [20]byte
	Title       string
	Description string
	Amount      *big.Int
	StartDate   uint64
	EndDate     uint64
	IsFilled    bool
	Cancelled   bool
	Freelancer  [20]byte
	Vault       [20]byte
	CreatedAt   uint64
}

type storedApplication struct {
	Applicant       [20]byte
	Job             [32]byte
	ResumeLink      string
	SubmissionLink  string
	Narration       string
	ClientReview    string
	Approved        bool
	Submitted       bool
	Completed       bool
	Rejected        bool
	ExpectedEndDate uint64
	CreatedAt       uint64
}

func (e *Engine) jobGet(id [32]byte) (*JobPosting, bool, error) {
	if e == nil || e.state == nil {
		return nil, false, errNilState
	}
	var stored storedJobPosting
	ok, err := e.state.KVGet(jobKey(id), &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	job := &JobPosting{
		ID:          id,
		Client:      stored.Client,
		Title:       stored.Title,
		Description: stored.Description,
		Amount:      new(big.Int).Set(stored.Amount),
		StartDate:   int64(stored.StartDate),
		EndDate:     int64(stored.EndDate),
		IsFilled:    stored.IsFilled,
		Cancelled:   stored.Cancelled,
		Freelancer:  stored.Freelancer,
		Vault:       stored.Vault,
		CreatedAt:   int64(stored.CreatedAt),
	}
	return job, true, nil
}

func (e *Engine) jobPut(job *JobPosting) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	sanitized, err := SanitizeJobPosting(job)
	if err != nil {
		return err
	}
	stored := storedJobPosting{
		Client:      sanitized.Client,
		Title:       sanitized.Title,
		Description: sanitized.Description,
		Amount:      sanitized.Amount,
		StartDate:   uint64(sanitized.StartDate),
		EndDate:     uint64(sanitized.EndDate),
		IsFilled:    sanitized.IsFilled,
		Cancelled:   sanitized.Cancelled,
		Freelancer:  sanitized.Freelancer,
		Vault:       sanitized.Vault,
		CreatedAt:   uint64(sanitized.CreatedAt),
	}
	return e.state.KVPut(jobKey(sanitized.ID), &stored)
}

func (e *Engine) applicationGet(id [32]byte) (*Application, bool, error) {
	if e == nil || e.state == nil {
		return nil, false, errNilState
	}
	var stored storedApplication
	ok, err := e.state.KVGet(applicationKey(id), &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	app := &Application{
		ID:              id,
		Applicant:       stored.Applicant,
		Job:             stored.Job,
		ResumeLink:      stored.ResumeLink,
		SubmissionLink:  stored.SubmissionLink,
		Narration:       stored.Narration,
		ClientReview:    stored.ClientReview,
		Approved:        stored.Approved,
		Submitted:       stored.Submitted,
		Completed:       stored.Completed,
		Rejected:        stored.Rejected,
		ExpectedEndDate: int64(stored.ExpectedEndDate),
		CreatedAt:       int64(stored.CreatedAt),
	}
	return app, true, nil
}

func (e *Engine) applicationPut(app *Application) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	sanitized, err := SanitizeApplication(app)
	if err != nil {
		return err
	}
	stored := storedApplication{
		Applicant:       sanitized.Applicant,
		Job:             sanitized.Job,
		ResumeLink:      sanitized.ResumeLink,
		SubmissionLink:  sanitized.SubmissionLink,
		Narration:       sanitized.Narration,
		ClientReview:    sanitized.ClientReview,
		Approved:        sanitized.Approved,
		Submitted:       sanitized.Submitted,
		Completed:       sanitized.Completed,
		Rejected:        sanitized.Rejected,
		ExpectedEndDate: uint64(sanitized.ExpectedEndDate),
		CreatedAt:       uint64(sanitized.CreatedAt),
	}
	return e.state.KVPut(applicationKey(sanitized.ID), &stored)
}

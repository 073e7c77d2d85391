package marketplace

import (
	"fmt"
	"math/big"
)

// Byte caps for the bounded text fields. Callers exceeding these bounds fail
// before any mutation is applied.
const (
	MaxTitleLen       = 100
	MaxDescriptionLen = 500
	MaxResumeLinkLen  = 200
	MaxSubmissionLen  = 200
	MaxNarrationLen   = 300
	MaxReviewLen      = 300
)

// JobPosting is the record of a job offer, its escrowed funding and its fill
// or cancellation status. Client, title, description, amount and the date
// range are immutable after creation. IsFilled and Cancelled each flip true
// at most once and are mutually exclusive.
type JobPosting struct {
	ID          [32]byte
	Client      [20]byte
	Title       string
	Description string
	Amount      *big.Int
	StartDate   int64
	EndDate     int64
	IsFilled    bool
	Cancelled   bool
	// Freelancer is zero until an application is approved, then fixed to
	// that applicant forever.
	Freelancer [20]byte
	// Vault is the derived custodial address paired 1:1 with this posting.
	Vault     [20]byte
	CreatedAt int64
}

// Clone returns a deep copy of the posting so callers can safely mutate the
// copy without affecting the stored instance.
func (j *JobPosting) Clone() *JobPosting {
	if j == nil {
		return nil
	}
	clone := *j
	if j.Amount != nil {
		clone.Amount = new(big.Int).Set(j.Amount)
	} else {
		clone.Amount = big.NewInt(0)
	}
	return &clone
}

// Application is one freelancer's bid against a posting and its review cycle
// state. Applicant, Job, ResumeLink and ExpectedEndDate are immutable after
// creation.
type Application struct {
	ID              [32]byte
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
	ExpectedEndDate int64
	CreatedAt       int64
}

// Clone returns a copy of the application.
func (a *Application) Clone() *Application {
	if a == nil {
		return nil
	}
	clone := *a
	return &clone
}

// SanitizeJobPosting validates structural invariants of a posting record,
// returning a cloned instance with a non-nil amount. It does not mutate the
// original value.
func SanitizeJobPosting(j *JobPosting) (*JobPosting, error) {
	if j == nil {
		return nil, fmt.Errorf("marketplace: nil job posting")
	}
	clone := j.Clone()
	if clone.Amount.Sign() <= 0 {
		return nil, fmt.Errorf("marketplace: job amount must be positive")
	}
	if len(clone.Title) == 0 || len(clone.Title) > MaxTitleLen {
		return nil, fmt.Errorf("marketplace: job title out of bounds")
	}
	if len(clone.Description) == 0 || len(clone.Description) > MaxDescriptionLen {
		return nil, fmt.Errorf("marketplace: job description out of bounds")
	}
	if clone.StartDate > clone.EndDate {
		return nil, fmt.Errorf("marketplace: job dates out of order")
	}
	if clone.IsFilled && clone.Cancelled {
		return nil, fmt.Errorf("marketplace: filled and cancelled are mutually exclusive")
	}
	if clone.IsFilled && clone.Freelancer == ([20]byte{}) {
		return nil, fmt.Errorf("marketplace: filled job must bind a freelancer")
	}
	return clone, nil
}

// SanitizeApplication validates structural invariants of an application
// record, returning a cloned instance.
func SanitizeApplication(a *Application) (*Application, error) {
	if a == nil {
		return nil, fmt.Errorf("marketplace: nil application")
	}
	clone := a.Clone()
	if len(clone.ResumeLink) == 0 || len(clone.ResumeLink) > MaxResumeLinkLen {
		return nil, fmt.Errorf("marketplace: resume link out of bounds")
	}
	if len(clone.SubmissionLink) > MaxSubmissionLen {
		return nil, fmt.Errorf("marketplace: submission link out of bounds")
	}
	if len(clone.Narration) > MaxNarrationLen {
		return nil, fmt.Errorf("marketplace: narration out of bounds")
	}
	if len(clone.ClientReview) > MaxReviewLen {
		return nil, fmt.Errorf("marketplace: client review out of bounds")
	}
	if clone.ExpectedEndDate < 0 {
		return nil, fmt.Errorf("marketplace: expected end date must not be negative")
	}
	if clone.Completed && (!clone.Submitted || !clone.Approved || clone.Rejected) {
		return nil, fmt.Errorf("marketplace: completed application must be submitted, approved and not rejected")
	}
	return clone, nil
}

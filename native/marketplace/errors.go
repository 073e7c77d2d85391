package marketplace

import "errors"

var (
	// ErrInvalidInput marks empty or over-length text fields.
	ErrInvalidInput = errors.New("marketplace: invalid input")
	// ErrInvalidAmount marks non-positive funding amounts.
	ErrInvalidAmount = errors.New("marketplace: invalid amount")
	// ErrInvalidDates marks ordering or future-date violations.
	ErrInvalidDates = errors.New("marketplace: invalid dates")
	// ErrUnauthorized marks caller mismatches against a record's owner.
	ErrUnauthorized = errors.New("marketplace: unauthorized")
	// ErrInvalidAccount marks referenced records that do not belong together.
	ErrInvalidAccount = errors.New("marketplace: invalid account relationship")

	ErrJobNotFound         = errors.New("marketplace: job not found")
	ErrJobExists           = errors.New("marketplace: job already exists")
	ErrJobAlreadyFilled    = errors.New("marketplace: job already filled")
	ErrJobCancelled        = errors.New("marketplace: job cancelled")
	ErrJobAlreadyCancelled = errors.New("marketplace: job already cancelled")

	ErrApplicationNotFound        = errors.New("marketplace: application not found")
	ErrApplicationExists          = errors.New("marketplace: application already exists")
	ErrApplicationAlreadyApproved = errors.New("marketplace: application already approved")
	ErrApplicationNotApproved     = errors.New("marketplace: application not approved")

	// ErrWorkNotSubmitted marks review attempts with no pending submission.
	ErrWorkNotSubmitted = errors.New("marketplace: work not submitted")
	// ErrWorkAlreadyApproved marks any mutation of a completed application.
	ErrWorkAlreadyApproved = errors.New("marketplace: work already approved")
	// ErrWorkAlreadyRejected marks a second rejection of the same submission.
	ErrWorkAlreadyRejected = errors.New("marketplace: work already rejected")

	// ErrInsufficientEscrow marks a vault holding less than the job amount.
	ErrInsufficientEscrow = errors.New("marketplace: insufficient escrow balance")
	// ErrInsufficientBalance marks a client unable to fund the escrow.
	ErrInsufficientBalance = errors.New("marketplace: insufficient balance")
)

package marketplace

import (
	"encoding/hex"
	"strconv"

	"gigchain/core/types"
)

const (
	EventTypeJobPosted            = "marketplace.job.posted"
	EventTypeJobCancelled         = "marketplace.job.cancelled"
	EventTypeApplicationSubmitted = "marketplace.application.submitted"
	EventTypeApplicationApproved  = "marketplace.application.approved"
	EventTypeWorkSubmitted        = "marketplace.work.submitted"
	EventTypeWorkApproved         = "marketplace.work.approved"
	EventTypeWorkRejected         = "marketplace.work.rejected"
)

// NewJobPostedEvent returns the canonical payload emitted when a posting is
// created and its escrow funded.
func NewJobPostedEvent(job *JobPosting) *types.Event {
	attrs := jobAttributes(job)
	return &types.Event{Type: EventTypeJobPosted, Attributes: attrs}
}

// NewJobCancelledEvent returns the payload emitted when a posting is
// cancelled and its escrow refunded.
func NewJobCancelledEvent(job *JobPosting) *types.Event {
	attrs := jobAttributes(job)
	return &types.Event{Type: EventTypeJobCancelled, Attributes: attrs}
}

// NewApplicationSubmittedEvent returns the payload emitted when a freelancer
// applies to a posting.
func NewApplicationSubmittedEvent(app *Application) *types.Event {
	attrs := applicationAttributes(app)
	return &types.Event{Type: EventTypeApplicationSubmitted, Attributes: attrs}
}

// NewApplicationApprovedEvent returns the payload emitted when a posting is
// filled by approving an application.
func NewApplicationApprovedEvent(job *JobPosting, app *Application) *types.Event {
	attrs := applicationAttributes(app)
	if job != nil {
		attrs["client"] = hex.EncodeToString(job.Client[:])
	}
	return &types.Event{Type: EventTypeApplicationApproved, Attributes: attrs}
}

// NewWorkSubmittedEvent returns the payload emitted on submission or
// resubmission of work.
func NewWorkSubmittedEvent(app *Application) *types.Event {
	attrs := applicationAttributes(app)
	return &types.Event{Type: EventTypeWorkSubmitted, Attributes: attrs}
}

// NewWorkApprovedEvent returns the payload emitted when escrowed funds are
// released to the freelancer. The amount attribute carries the payout.
func NewWorkApprovedEvent(job *JobPosting, app *Application) *types.Event {
	attrs := applicationAttributes(app)
	if job != nil {
		attrs["client"] = hex.EncodeToString(job.Client[:])
		if job.Amount != nil {
			attrs["amount"] = job.Amount.String()
		}
	}
	return &types.Event{Type: EventTypeWorkApproved, Attributes: attrs}
}

// NewWorkRejectedEvent returns the payload emitted when a submission is
// rejected for resubmission.
func NewWorkRejectedEvent(app *Application) *types.Event {
	attrs := applicationAttributes(app)
	return &types.Event{Type: EventTypeWorkRejected, Attributes: attrs}
}

func jobAttributes(job *JobPosting) map[string]string {
	attrs := make(map[string]string)
	if job == nil {
		return attrs
	}
	attrs["id"] = hex.EncodeToString(job.ID[:])
	attrs["client"] = hex.EncodeToString(job.Client[:])
	attrs["vault"] = hex.EncodeToString(job.Vault[:])
	if job.Amount != nil {
		attrs["amount"] = job.Amount.String()
	}
	attrs["startDate"] = strconv.FormatInt(job.StartDate, 10)
	attrs["endDate"] = strconv.FormatInt(job.EndDate, 10)
	attrs["createdAt"] = strconv.FormatInt(job.CreatedAt, 10)
	return attrs
}

func applicationAttributes(app *Application) map[string]string {
	attrs := make(map[string]string)
	if app == nil {
		return attrs
	}
	attrs["id"] = hex.EncodeToString(app.ID[:])
	attrs["job"] = hex.EncodeToString(app.Job[:])
	attrs["applicant"] = hex.EncodeToString(app.Applicant[:])
	attrs["approved"] = strconv.FormatBool(app.Approved)
	attrs["submitted"] = strconv.FormatBool(app.Submitted)
	attrs["completed"] = strconv.FormatBool(app.Completed)
	attrs["rejected"] = strconv.FormatBool(app.Rejected)
	return attrs
}

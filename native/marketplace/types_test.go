package marketplace

import (
	"math/big"
	"strings"
	"testing"
)

func validPosting() *JobPosting {
	job := &JobPosting{
		Client:      newTestAddress(0x01),
		Title:       "build landing page",
		Description: "responsive marketing site",
		Amount:      big.NewInt(1000),
		StartDate:   testNow + 10,
		EndDate:     testNow + 20,
		CreatedAt:   testNow,
	}
	var err error
	job.ID, err = DeriveJobID(job.Client, job.Title)
	if err != nil {
		panic(err)
	}
	job.Vault = DeriveVaultAddress(job.ID)
	return job
}

func TestSanitizeJobPosting(t *testing.T) {
	if _, err := SanitizeJobPosting(nil); err == nil {
		t.Fatal("nil posting must fail")
	}
	if _, err := SanitizeJobPosting(validPosting()); err != nil {
		t.Fatalf("valid posting rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*JobPosting)
	}{
		{"zero amount", func(j *JobPosting) { j.Amount = big.NewInt(0) }},
		{"nil amount", func(j *JobPosting) { j.Amount = nil }},
		{"empty title", func(j *JobPosting) { j.Title = "" }},
		{"oversized title", func(j *JobPosting) { j.Title = strings.Repeat("t", MaxTitleLen+1) }},
		{"oversized description", func(j *JobPosting) { j.Description = strings.Repeat("d", MaxDescriptionLen+1) }},
		{"dates out of order", func(j *JobPosting) { j.StartDate = j.EndDate + 1 }},
		{"filled and cancelled", func(j *JobPosting) {
			j.IsFilled = true
			j.Freelancer = newTestAddress(0x02)
			j.Cancelled = true
		}},
		{"filled without freelancer", func(j *JobPosting) { j.IsFilled = true }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			job := validPosting()
			tc.mutate(job)
			if _, err := SanitizeJobPosting(job); err == nil {
				t.Fatal("expected sanitize failure")
			}
		})
	}
}

func TestSanitizeJobPostingDoesNotMutate(t *testing.T) {
	job := validPosting()
	clone, err := SanitizeJobPosting(job)
	if err != nil {
		t.Fatalf("sanitize: %v", err)
	}
	clone.Amount.SetInt64(1)
	clone.Title = "changed"
	if job.Amount.Cmp(big.NewInt(1000)) != 0 || job.Title != "build landing page" {
		t.Fatal("sanitize must operate on a copy")
	}
}

func validApplication() *Application {
	job := validPosting()
	app := &Application{
		Applicant:       newTestAddress(0x02),
		Job:             job.ID,
		ResumeLink:      "https://cv.example",
		ExpectedEndDate: 30,
		CreatedAt:       testNow,
	}
	app.ID = DeriveApplicationID(job.ID, app.Applicant)
	return app
}

func TestSanitizeApplication(t *testing.T) {
	if _, err := SanitizeApplication(nil); err == nil {
		t.Fatal("nil application must fail")
	}
	if _, err := SanitizeApplication(validApplication()); err != nil {
		t.Fatalf("valid application rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Application)
	}{
		{"empty resume", func(a *Application) { a.ResumeLink = "" }},
		{"oversized resume", func(a *Application) { a.ResumeLink = strings.Repeat("r", MaxResumeLinkLen+1) }},
		{"oversized submission", func(a *Application) { a.SubmissionLink = strings.Repeat("s", MaxSubmissionLen+1) }},
		{"oversized narration", func(a *Application) { a.Narration = strings.Repeat("n", MaxNarrationLen+1) }},
		{"oversized review", func(a *Application) { a.ClientReview = strings.Repeat("c", MaxReviewLen+1) }},
		{"negative expected end", func(a *Application) { a.ExpectedEndDate = -1 }},
		{"completed without submission", func(a *Application) {
			a.Approved = true
			a.Completed = true
		}},
		{"completed while rejected", func(a *Application) {
			a.Approved = true
			a.Submitted = true
			a.Completed = true
			a.Rejected = true
		}},
		{"completed without approval", func(a *Application) {
			a.Submitted = true
			a.Completed = true
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			app := validApplication()
			tc.mutate(app)
			if _, err := SanitizeApplication(app); err == nil {
				t.Fatal("expected sanitize failure")
			}
		})
	}
}

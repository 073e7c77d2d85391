package routes

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"gigchain/core"
	"gigchain/crypto"
	"gigchain/gateway/middleware"
	"gigchain/native/marketplace"
	"gigchain/observability"
)

type marketplaceRoutes struct {
	node *core.Node
}

type jobView struct {
	ID          string `json:"id"`
	Client      string `json:"client"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Amount      string `json:"amount"`
	StartDate   int64  `json:"startDate"`
	EndDate     int64  `json:"endDate"`
	IsFilled    bool   `json:"isFilled"`
	Cancelled   bool   `json:"cancelled"`
	Freelancer  string `json:"freelancer,omitempty"`
	Vault       string `json:"vault"`
	CreatedAt   int64  `json:"createdAt"`
}

type applicationView struct {
	ID              string `json:"id"`
	Applicant       string `json:"applicant"`
	Job             string `json:"job"`
	ResumeLink      string `json:"resumeLink"`
	SubmissionLink  string `json:"submissionLink,omitempty"`
	Narration       string `json:"narration,omitempty"`
	ClientReview    string `json:"clientReview,omitempty"`
	Approved        bool   `json:"approved"`
	Submitted       bool   `json:"submitted"`
	Completed       bool   `json:"completed"`
	Rejected        bool   `json:"rejected"`
	ExpectedEndDate int64  `json:"expectedEndDate"`
	CreatedAt       int64  `json:"createdAt"`
}

func newJobView(job *marketplace.JobPosting) *jobView {
	view := &jobView{
		ID:          hex.EncodeToString(job.ID[:]),
		Client:      crypto.MustNewAddress(job.Client).String(),
		Title:       job.Title,
		Description: job.Description,
		Amount:      job.Amount.String(),
		StartDate:   job.StartDate,
		EndDate:     job.EndDate,
		IsFilled:    job.IsFilled,
		Cancelled:   job.Cancelled,
		Vault:       crypto.MustNewAddress(job.Vault).String(),
		CreatedAt:   job.CreatedAt,
	}
	if job.Freelancer != ([20]byte{}) {
		view.Freelancer = crypto.MustNewAddress(job.Freelancer).String()
	}
	return view
}

func newApplicationView(app *marketplace.Application) *applicationView {
	return &applicationView{
		ID:              hex.EncodeToString(app.ID[:]),
		Applicant:       crypto.MustNewAddress(app.Applicant).String(),
		Job:             hex.EncodeToString(app.Job[:]),
		ResumeLink:      app.ResumeLink,
		SubmissionLink:  app.SubmissionLink,
		Narration:       app.Narration,
		ClientReview:    app.ClientReview,
		Approved:        app.Approved,
		Submitted:       app.Submitted,
		Completed:       app.Completed,
		Rejected:        app.Rejected,
		ExpectedEndDate: app.ExpectedEndDate,
		CreatedAt:       app.CreatedAt,
	}
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeDomainError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, marketplace.ErrInvalidInput),
		errors.Is(err, marketplace.ErrInvalidAmount),
		errors.Is(err, marketplace.ErrInvalidDates),
		errors.Is(err, marketplace.ErrInvalidAccount):
		status = http.StatusBadRequest
	case errors.Is(err, marketplace.ErrUnauthorized):
		status = http.StatusForbidden
	case errors.Is(err, marketplace.ErrJobNotFound),
		errors.Is(err, marketplace.ErrApplicationNotFound):
		status = http.StatusNotFound
	case errors.Is(err, marketplace.ErrJobExists),
		errors.Is(err, marketplace.ErrApplicationExists),
		errors.Is(err, marketplace.ErrJobAlreadyFilled),
		errors.Is(err, marketplace.ErrJobCancelled),
		errors.Is(err, marketplace.ErrJobAlreadyCancelled),
		errors.Is(err, marketplace.ErrApplicationAlreadyApproved),
		errors.Is(err, marketplace.ErrApplicationNotApproved),
		errors.Is(err, marketplace.ErrWorkNotSubmitted),
		errors.Is(err, marketplace.ErrWorkAlreadyApproved),
		errors.Is(err, marketplace.ErrWorkAlreadyRejected),
		errors.Is(err, marketplace.ErrInsufficientEscrow),
		errors.Is(err, marketplace.ErrInsufficientBalance):
		status = http.StatusConflict
	}
	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "internal error"
	}
	writeJSON(w, status, map[string]string{"error": message})
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": message})
}

func caller(w http.ResponseWriter, r *http.Request) ([20]byte, bool) {
	addr, ok := middleware.CallerFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "authentication required"})
		return [20]byte{}, false
	}
	return addr, true
}

func pathID(r *http.Request) ([32]byte, error) {
	return parseHexID(chi.URLParam(r, "id"))
}

func pathAddress(r *http.Request) ([20]byte, error) {
	addr, err := crypto.DecodeAddress(strings.TrimSpace(chi.URLParam(r, "address")))
	if err != nil {
		return [20]byte{}, err
	}
	return addr.Fixed(), nil
}

func (m *marketplaceRoutes) postJob(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	client, ok := caller(w, r)
	if !ok {
		return
	}
	var body struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		Amount      string `json:"amount"`
		StartDate   int64  `json:"startDate"`
		EndDate     int64  `json:"endDate"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	amount, ok := new(big.Int).SetString(strings.TrimSpace(body.Amount), 10)
	if !ok {
		writeBadRequest(w, "amount must be a base-10 integer")
		return
	}
	job, err := m.node.PostJob(client, body.Title, body.Description, amount, body.StartDate, body.EndDate)
	observability.ModuleMetrics().Observe("gateway", "postJob", start, err)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newJobView(job))
}

func (m *marketplaceRoutes) cancelJob(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	client, ok := caller(w, r)
	if !ok {
		return
	}
	jobID, err := pathID(r)
	if err != nil {
		writeBadRequest(w, "invalid job id")
		return
	}
	job, err := m.node.CancelJob(client, jobID)
	observability.ModuleMetrics().Observe("gateway", "cancelJob", start, err)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newJobView(job))
}

func (m *marketplaceRoutes) apply(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	applicant, ok := caller(w, r)
	if !ok {
		return
	}
	jobID, err := pathID(r)
	if err != nil {
		writeBadRequest(w, "invalid job id")
		return
	}
	var body struct {
		ResumeLink      string `json:"resumeLink"`
		ExpectedEndDate int64  `json:"expectedEndDate"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	app, err := m.node.Apply(applicant, jobID, body.ResumeLink, body.ExpectedEndDate)
	observability.ModuleMetrics().Observe("gateway", "apply", start, err)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newApplicationView(app))
}

func (m *marketplaceRoutes) approveApplication(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	client, ok := caller(w, r)
	if !ok {
		return
	}
	appID, err := pathID(r)
	if err != nil {
		writeBadRequest(w, "invalid application id")
		return
	}
	var body struct {
		Job string `json:"job"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	jobID, err := parseHexID(body.Job)
	if err != nil {
		writeBadRequest(w, "invalid job id")
		return
	}
	app, err := m.node.ApproveApplication(client, jobID, appID)
	observability.ModuleMetrics().Observe("gateway", "approveApplication", start, err)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newApplicationView(app))
}

func (m *marketplaceRoutes) submitWork(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	applicant, ok := caller(w, r)
	if !ok {
		return
	}
	appID, err := pathID(r)
	if err != nil {
		writeBadRequest(w, "invalid application id")
		return
	}
	var body struct {
		Job            string `json:"job"`
		SubmissionLink string `json:"submissionLink"`
		Narration      string `json:"narration"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	jobID, err := parseHexID(body.Job)
	if err != nil {
		writeBadRequest(w, "invalid job id")
		return
	}
	app, err := m.node.SubmitWork(applicant, jobID, appID, body.SubmissionLink, body.Narration)
	observability.ModuleMetrics().Observe("gateway", "submitWork", start, err)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newApplicationView(app))
}

func (m *marketplaceRoutes) reviewSubmission(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	client, ok := caller(w, r)
	if !ok {
		return
	}
	appID, err := pathID(r)
	if err != nil {
		writeBadRequest(w, "invalid application id")
		return
	}
	var body struct {
		Job          string `json:"job"`
		Outcome      string `json:"outcome"`
		ClientReview string `json:"clientReview"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	jobID, err := parseHexID(body.Job)
	if err != nil {
		writeBadRequest(w, "invalid job id")
		return
	}
	var app *marketplace.Application
	switch strings.ToLower(strings.TrimSpace(body.Outcome)) {
	case "approve":
		app, err = m.node.ApproveSubmission(client, jobID, appID, body.ClientReview)
	case "reject":
		app, err = m.node.RejectSubmission(client, jobID, appID, body.ClientReview)
	default:
		writeBadRequest(w, `outcome must be "approve" or "reject"`)
		return
	}
	observability.ModuleMetrics().Observe("gateway", "reviewSubmission", start, err)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newApplicationView(app))
}

func (m *marketplaceRoutes) getJob(w http.ResponseWriter, r *http.Request) {
	jobID, err := pathID(r)
	if err != nil {
		writeBadRequest(w, "invalid job id")
		return
	}
	job, ok, err := m.node.GetJob(jobID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": marketplace.ErrJobNotFound.Error()})
		return
	}
	writeJSON(w, http.StatusOK, newJobView(job))
}

func (m *marketplaceRoutes) getVaultBalance(w http.ResponseWriter, r *http.Request) {
	jobID, err := pathID(r)
	if err != nil {
		writeBadRequest(w, "invalid job id")
		return
	}
	balance, err := m.node.VaultBalance(jobID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"balance": balance.String()})
}

func (m *marketplaceRoutes) getApplication(w http.ResponseWriter, r *http.Request) {
	appID, err := pathID(r)
	if err != nil {
		writeBadRequest(w, "invalid application id")
		return
	}
	app, ok, err := m.node.GetApplication(appID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": marketplace.ErrApplicationNotFound.Error()})
		return
	}
	writeJSON(w, http.StatusOK, newApplicationView(app))
}

func (m *marketplaceRoutes) getStats(w http.ResponseWriter, r *http.Request) {
	addr, err := pathAddress(r)
	if err != nil {
		writeBadRequest(w, "invalid address")
		return
	}
	got, err := m.node.GetStats(addr)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"totalGigsPosted":    got.TotalGigsPosted,
		"totalRevenueEarned": got.TotalRevenueEarned.String(),
		"monthlyGigs":        got.MonthlyGigs,
		"monthlyRevenue":     got.MonthlyRevenue.String(),
		"lastUpdatedMonth":   got.LastUpdatedMonth,
	})
}

func (m *marketplaceRoutes) getAccount(w http.ResponseWriter, r *http.Request) {
	addr, err := pathAddress(r)
	if err != nil {
		writeBadRequest(w, "invalid address")
		return
	}
	acct, err := m.node.GetAccount(addr)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"balance": acct.Balance.String(),
		"nonce":   new(big.Int).SetUint64(acct.Nonce).String(),
	})
}

func parseHexID(value string) ([32]byte, error) {
	decoded, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(value), "0x"))
	if err != nil {
		return [32]byte{}, err
	}
	if len(decoded) != 32 {
		return [32]byte{}, errors.New("identifier must be 32 bytes")
	}
	var id [32]byte
	copy(id[:], decoded)
	return id, nil
}

package rpc

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"strings"

	"gigchain/crypto"
	"gigchain/native/marketplace"
)

const (
	codeMarketplaceInvalidParams = -32021
	codeMarketplaceNotFound      = -32022
	codeMarketplaceForbidden     = -32023
	codeMarketplaceConflict      = -32024
	codeMarketplaceInternal      = -32025
)

type postJobParams struct {
	Client      string `json:"client"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Amount      string `json:"amount"`
	StartDate   int64  `json:"startDate"`
	EndDate     int64  `json:"endDate"`
}

type applyParams struct {
	Applicant       string `json:"applicant"`
	Job             string `json:"job"`
	ResumeLink      string `json:"resumeLink"`
	ExpectedEndDate int64  `json:"expectedEndDate"`
}

type approveApplicationParams struct {
	Client      string `json:"client"`
	Job         string `json:"job"`
	Application string `json:"application"`
}

type submitWorkParams struct {
	Applicant      string `json:"applicant"`
	Job            string `json:"job"`
	Application    string `json:"application"`
	SubmissionLink string `json:"submissionLink"`
	Narration      string `json:"narration"`
}

type reviewParams struct {
	Client       string `json:"client"`
	Job          string `json:"job"`
	Application  string `json:"application"`
	ClientReview string `json:"clientReview"`
}

type cancelJobParams struct {
	Client string `json:"client"`
	Job    string `json:"job"`
}

type jobIDParams struct {
	ID string `json:"id"`
}

type addressParams struct {
	Address string `json:"address"`
}

type jobJSON struct {
	ID          string  `json:"id"`
	Client      string  `json:"client"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Amount      string  `json:"amount"`
	StartDate   int64   `json:"startDate"`
	EndDate     int64   `json:"endDate"`
	IsFilled    bool    `json:"isFilled"`
	Cancelled   bool    `json:"cancelled"`
	Freelancer  *string `json:"freelancer,omitempty"`
	Vault       string  `json:"vault"`
	CreatedAt   int64   `json:"createdAt"`
}

type applicationJSON struct {
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

type statsJSON struct {
	TotalGigsPosted    uint64 `json:"totalGigsPosted"`
	TotalRevenueEarned string `json:"totalRevenueEarned"`
	MonthlyGigs        uint64 `json:"monthlyGigs"`
	MonthlyRevenue     string `json:"monthlyRevenue"`
	LastUpdatedMonth   uint64 `json:"lastUpdatedMonth"`
}

type accountJSON struct {
	Nonce   uint64 `json:"nonce"`
	Balance string `json:"balance"`
}

func jobToJSON(job *marketplace.JobPosting) *jobJSON {
	out := &jobJSON{
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
		encoded := crypto.MustNewAddress(job.Freelancer).String()
		out.Freelancer = &encoded
	}
	return out
}

func applicationToJSON(app *marketplace.Application) *applicationJSON {
	return &applicationJSON{
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

func parseAddress(value string) ([20]byte, error) {
	addr, err := crypto.DecodeAddress(strings.TrimSpace(value))
	if err != nil {
		return [20]byte{}, err
	}
	return addr.Fixed(), nil
}

func parseID(value string) ([32]byte, error) {
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

func parsePositiveBigInt(value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, errors.New("amount required")
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, errors.New("amount must be a base-10 integer")
	}
	if amount.Sign() <= 0 {
		return nil, errors.New("amount must be positive")
	}
	return amount, nil
}

func decodeSingleParam(req *RPCRequest, out interface{}) error {
	if len(req.Params) != 1 {
		return errors.New("exactly one parameter object expected")
	}
	return json.Unmarshal(req.Params[0], out)
}

// writeMarketplaceError maps every engine guard to a distinct, user-visible
// failure reason and a stable code.
func writeMarketplaceError(w http.ResponseWriter, id interface{}, err error) {
	switch {
	case errors.Is(err, marketplace.ErrInvalidInput),
		errors.Is(err, marketplace.ErrInvalidAmount),
		errors.Is(err, marketplace.ErrInvalidDates),
		errors.Is(err, marketplace.ErrInvalidAccount):
		writeError(w, http.StatusBadRequest, id, codeMarketplaceInvalidParams, err.Error(), nil)
	case errors.Is(err, marketplace.ErrUnauthorized):
		writeError(w, http.StatusForbidden, id, codeMarketplaceForbidden, err.Error(), nil)
	case errors.Is(err, marketplace.ErrJobNotFound),
		errors.Is(err, marketplace.ErrApplicationNotFound):
		writeError(w, http.StatusNotFound, id, codeMarketplaceNotFound, err.Error(), nil)
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
		writeError(w, http.StatusConflict, id, codeMarketplaceConflict, err.Error(), nil)
	default:
		writeError(w, http.StatusInternalServerError, id, codeMarketplaceInternal, "internal error", err.Error())
	}
}

func (s *Server) handlePostJob(w http.ResponseWriter, r *http.Request, req *RPCRequest) error {
	if authErr := s.requireAuth(r); authErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, nil)
		return errors.New(authErr.Message)
	}
	var params postJobParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return err
	}
	client, err := parseAddress(params.Client)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return err
	}
	amount, err := parsePositiveBigInt(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return err
	}
	job, err := s.node.PostJob(client, params.Title, params.Description, amount, params.StartDate, params.EndDate)
	if err != nil {
		writeMarketplaceError(w, req.ID, err)
		return err
	}
	writeResult(w, req.ID, jobToJSON(job))
	return nil
}

func (s *Server) handleApply(w http.ResponseWriter, r *http.Request, req *RPCRequest) error {
	if authErr := s.requireAuth(r); authErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, nil)
		return errors.New(authErr.Message)
	}
	var params applyParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return err
	}
	applicant, err := parseAddress(params.Applicant)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return err
	}
	jobID, err := parseID(params.Job)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return err
	}
	app, err := s.node.Apply(applicant, jobID, params.ResumeLink, params.ExpectedEndDate)
	if err != nil {
		writeMarketplaceError(w, req.ID, err)
		return err
	}
	writeResult(w, req.ID, applicationToJSON(app))
	return nil
}

func (s *Server) handleApproveApplication(w http.ResponseWriter, r *http.Request, req *RPCRequest) error {
	if authErr := s.requireAuth(r); authErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, nil)
		return errors.New(authErr.Message)
	}
	var params approveApplicationParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return err
	}
	client, err := parseAddress(params.Client)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return err
	}
	jobID, err := parseID(params.Job)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return err
	}
	appID, err := parseID(params.Application)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return err
	}
	app, err := s.node.ApproveApplication(client, jobID, appID)
	if err != nil {
		writeMarketplaceError(w, req.ID, err)
		return err
	}
	writeResult(w, req.ID, applicationToJSON(app))
	return nil
}

func (s *Server) handleSubmitWork(w http.ResponseWriter, r *http.Request, req *RPCRequest) error {
	if authErr := s.requireAuth(r); authErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, nil)
		return errors.New(authErr.Message)
	}
	var params submitWorkParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return err
	}
	applicant, err := parseAddress(params.Applicant)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return err
	}
	jobID, err := parseID(params.Job)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return err
	}
	appID, err := parseID(params.Application)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return err
	}
	app, err := s.node.SubmitWork(applicant, jobID, appID, params.SubmissionLink, params.Narration)
	if err != nil {
		writeMarketplaceError(w, req.ID, err)
		return err
	}
	writeResult(w, req.ID, applicationToJSON(app))
	return nil
}

func (s *Server) reviewCall(w http.ResponseWriter, r *http.Request, req *RPCRequest, approve bool) error {
	if authErr := s.requireAuth(r); authErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, nil)
		return errors.New(authErr.Message)
	}
	var params reviewParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return err
	}
	client, err := parseAddress(params.Client)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return err
	}
	jobID, err := parseID(params.Job)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return err
	}
	appID, err := parseID(params.Application)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return err
	}
	var app *marketplace.Application
	if approve {
		app, err = s.node.ApproveSubmission(client, jobID, appID, params.ClientReview)
	} else {
		app, err = s.node.RejectSubmission(client, jobID, appID, params.ClientReview)
	}
	if err != nil {
		writeMarketplaceError(w, req.ID, err)
		return err
	}
	writeResult(w, req.ID, applicationToJSON(app))
	return nil
}

func (s *Server) handleApproveSubmission(w http.ResponseWriter, r *http.Request, req *RPCRequest) error {
	return s.reviewCall(w, r, req, true)
}

func (s *Server) handleRejectSubmission(w http.ResponseWriter, r *http.Request, req *RPCRequest) error {
	return s.reviewCall(w, r, req, false)
}

func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request, req *RPCRequest) error {
	if authErr := s.requireAuth(r); authErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, nil)
		return errors.New(authErr.Message)
	}
	var params cancelJobParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return err
	}
	client, err := parseAddress(params.Client)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return err
	}
	jobID, err := parseID(params.Job)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return err
	}
	job, err := s.node.CancelJob(client, jobID)
	if err != nil {
		writeMarketplaceError(w, req.ID, err)
		return err
	}
	writeResult(w, req.ID, jobToJSON(job))
	return nil
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request, req *RPCRequest) error {
	var params jobIDParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return err
	}
	id, err := parseID(params.ID)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return err
	}
	job, ok, err := s.node.GetJob(id)
	if err != nil {
		writeMarketplaceError(w, req.ID, err)
		return err
	}
	if !ok {
		writeError(w, http.StatusNotFound, req.ID, codeMarketplaceNotFound, marketplace.ErrJobNotFound.Error(), nil)
		return marketplace.ErrJobNotFound
	}
	writeResult(w, req.ID, jobToJSON(job))
	return nil
}

func (s *Server) handleGetApplication(w http.ResponseWriter, r *http.Request, req *RPCRequest) error {
	var params jobIDParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return err
	}
	id, err := parseID(params.ID)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return err
	}
	app, ok, err := s.node.GetApplication(id)
	if err != nil {
		writeMarketplaceError(w, req.ID, err)
		return err
	}
	if !ok {
		writeError(w, http.StatusNotFound, req.ID, codeMarketplaceNotFound, marketplace.ErrApplicationNotFound.Error(), nil)
		return marketplace.ErrApplicationNotFound
	}
	writeResult(w, req.ID, applicationToJSON(app))
	return nil
}

func (s *Server) handleVaultBalance(w http.ResponseWriter, r *http.Request, req *RPCRequest) error {
	var params jobIDParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return err
	}
	id, err := parseID(params.ID)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return err
	}
	balance, err := s.node.VaultBalance(id)
	if err != nil {
		writeMarketplaceError(w, req.ID, err)
		return err
	}
	writeResult(w, req.ID, map[string]string{"balance": balance.String()})
	return nil
}

func (s *Server) handleGetStats(w http.ResponseWriter, r *http.Request, req *RPCRequest) error {
	var params addressParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return err
	}
	addr, err := parseAddress(params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return err
	}
	got, err := s.node.GetStats(addr)
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "internal error", err.Error())
		return err
	}
	writeResult(w, req.ID, &statsJSON{
		TotalGigsPosted:    got.TotalGigsPosted,
		TotalRevenueEarned: got.TotalRevenueEarned.String(),
		MonthlyGigs:        got.MonthlyGigs,
		MonthlyRevenue:     got.MonthlyRevenue.String(),
		LastUpdatedMonth:   got.LastUpdatedMonth,
	})
	return nil
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request, req *RPCRequest) error {
	var params addressParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return err
	}
	addr, err := parseAddress(params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return err
	}
	acc, err := s.node.GetAccount(addr)
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "internal error", err.Error())
		return err
	}
	writeResult(w, req.ID, &accountJSON{Nonce: acc.Nonce, Balance: acc.Balance.String()})
	return nil
}

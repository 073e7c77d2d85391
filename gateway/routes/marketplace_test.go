package routes

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"gigchain/core"
	"gigchain/crypto"
	"gigchain/gateway/middleware"
	"gigchain/storage"
)

const (
	testSecret = "gateway-test-secret"
	testIssuer = "gigchain-gateway"
	testNow    = int64(1_700_000_000)
)

func newTestGateway(t *testing.T) (http.Handler, *core.Node) {
	t.Helper()
	node := core.NewNode(storage.NewMemDB())
	node.SetNowFunc(func() int64 { return testNow })
	auth := middleware.NewAuthenticator(middleware.AuthConfig{
		Enabled:    true,
		HMACSecret: testSecret,
		Issuer:     testIssuer,
	}, slog.Default())
	handler := New(Config{Node: node, Authenticator: auth, Logger: slog.Default()})
	return handler, node
}

func testAddr(fill byte) [20]byte {
	var addr [20]byte
	for i := range addr {
		addr[i] = fill
	}
	return addr
}

func signToken(t *testing.T, addr [20]byte) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub": crypto.MustNewAddress(addr).String(),
		"iss": testIssuer,
		"exp": time.Now().Add(time.Hour).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return token
}

func doJSON(t *testing.T, handler http.Handler, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
}

func TestHealthAndMetricsEndpoints(t *testing.T) {
	handler, _ := newTestGateway(t)
	rec := doJSON(t, handler, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", rec.Body.String())
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = doJSON(t, handler, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestMutationsRequireValidToken(t *testing.T) {
	handler, _ := newTestGateway(t)
	body := map[string]interface{}{"title": "job", "description": "d", "amount": "10", "startDate": testNow + 1, "endDate": testNow + 2}

	rec := doJSON(t, handler, http.MethodPost, "/v1/jobs", "", body)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": crypto.MustNewAddress(testAddr(0x11)).String(),
		"iss": testIssuer,
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("wrong-secret"))
	require.NoError(t, err)
	rec = doJSON(t, handler, http.MethodPost, "/v1/jobs", forged, body)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestTokenSubjectBindsCaller(t *testing.T) {
	handler, node := newTestGateway(t)
	client := testAddr(0x11)
	stranger := testAddr(0x99)
	require.NoError(t, node.Credit(client, big.NewInt(10_000)))

	rec := doJSON(t, handler, http.MethodPost, "/v1/jobs", signToken(t, client), map[string]interface{}{
		"title": "build landing page", "description": "marketing site",
		"amount": "1500", "startDate": testNow + 100, "endDate": testNow + 1000,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var job jobView
	decodeBody(t, rec, &job)

	rec = doJSON(t, handler, http.MethodPost, "/v1/jobs/"+job.ID+"/cancel", signToken(t, stranger), nil)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = doJSON(t, handler, http.MethodPost, "/v1/jobs/"+job.ID+"/cancel", signToken(t, client), nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRESTLifecycle(t *testing.T) {
	handler, node := newTestGateway(t)
	client := testAddr(0x11)
	freelancer := testAddr(0x22)
	require.NoError(t, node.Credit(client, big.NewInt(10_000)))

	rec := doJSON(t, handler, http.MethodPost, "/v1/jobs", signToken(t, client), map[string]interface{}{
		"title": "build landing page", "description": "marketing site",
		"amount": "1500", "startDate": testNow + 100, "endDate": testNow + 1000,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var job jobView
	decodeBody(t, rec, &job)

	rec = doJSON(t, handler, http.MethodPost, "/v1/jobs/"+job.ID+"/applications", signToken(t, freelancer), map[string]interface{}{
		"resumeLink": "https://example.com/resume", "expectedEndDate": testNow + 900,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var app applicationView
	decodeBody(t, rec, &app)

	rec = doJSON(t, handler, http.MethodPost, "/v1/applications/"+app.ID+"/approve", signToken(t, client), map[string]string{"job": job.ID})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, handler, http.MethodPost, "/v1/applications/"+app.ID+"/submit", signToken(t, freelancer), map[string]string{
		"job": job.ID, "submissionLink": "https://example.com/work", "narration": "done per brief",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, handler, http.MethodPost, "/v1/applications/"+app.ID+"/review", signToken(t, client), map[string]string{
		"job": job.ID, "outcome": "approve", "clientReview": "great work",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var reviewed applicationView
	decodeBody(t, rec, &reviewed)
	require.True(t, reviewed.Completed)

	rec = doJSON(t, handler, http.MethodGet, "/v1/accounts/"+crypto.MustNewAddress(freelancer).String(), "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var acct map[string]string
	decodeBody(t, rec, &acct)
	require.Equal(t, "1500", acct["balance"])

	rec = doJSON(t, handler, http.MethodGet, "/v1/jobs/"+job.ID+"/vault", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var vault map[string]string
	decodeBody(t, rec, &vault)
	require.Equal(t, "0", vault["balance"])

	rec = doJSON(t, handler, http.MethodGet, "/v1/stats/"+crypto.MustNewAddress(freelancer).String(), "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got map[string]interface{}
	decodeBody(t, rec, &got)
	require.Equal(t, "1500", got["totalRevenueEarned"])
}

func TestReviewRejectsUnknownOutcome(t *testing.T) {
	handler, node := newTestGateway(t)
	client := testAddr(0x11)
	require.NoError(t, node.Credit(client, big.NewInt(10_000)))

	rec := doJSON(t, handler, http.MethodPost,
		"/v1/applications/00000000000000000000000000000000000000000000000000000000000000ff/review",
		signToken(t, client), map[string]string{
			"job":     "00000000000000000000000000000000000000000000000000000000000000aa",
			"outcome": "maybe",
		})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetJobNotFound(t *testing.T) {
	handler, _ := newTestGateway(t)
	rec := doJSON(t, handler, http.MethodGet,
		"/v1/jobs/00000000000000000000000000000000000000000000000000000000000000ff", "", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

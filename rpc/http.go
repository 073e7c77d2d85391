package rpc

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"gigchain/core"
	"gigchain/observability"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
	authTokenEnv    = "GIG_RPC_TOKEN"
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeServerError    = -32000
	codeUnauthorized   = -32001
	codeRateLimited    = -32020
)

// Server exposes the node's boundary operations over JSON-RPC 2.0. Each
// method call is a single atomic transition against the node; the transport
// adds auth, rate limiting and metrics but no semantics of its own.
type Server struct {
	node      *core.Node
	authToken string

	mu       sync.Mutex
	limiters map[string]*rate.Limiter

	ratePerSecond rate.Limit
	rateBurst     int
}

// NewServer constructs an RPC server for the given node. The auth token is
// read from the GIG_RPC_TOKEN environment variable; when unset, mutating
// methods are rejected.
func NewServer(node *core.Node) *Server {
	token := strings.TrimSpace(os.Getenv(authTokenEnv))
	return &Server{
		node:          node,
		authToken:     token,
		limiters:      make(map[string]*rate.Limiter),
		ratePerSecond: rate.Limit(50),
		rateBurst:     100,
	}
}

// SetRateLimit overrides the per-source request budget.
func (s *Server) SetRateLimit(perSecond float64, burst int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ratePerSecond = rate.Limit(perSecond)
	s.rateBurst = burst
	s.limiters = make(map[string]*rate.Limiter)
}

// Start serves RPC until the listener fails.
func (s *Server) Start(addr string) error {
	slog.Info("starting JSON-RPC server", "addr", addr)
	mux := http.NewServeMux()
	mux.Handle("/", s)
	return http.ListenAndServe(addr, mux)
}

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      int               `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (s *Server) limiterFor(source string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	limiter, ok := s.limiters[source]
	if !ok {
		limiter = rate.NewLimiter(s.ratePerSecond, s.rateBurst)
		s.limiters[source] = limiter
	}
	return limiter
}

func requestSource(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

type authError struct {
	Code    int
	Message string
}

func (s *Server) requireAuth(r *http.Request) *authError {
	if s.authToken == "" {
		return &authError{Code: codeUnauthorized, Message: "rpc auth token not configured"}
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return &authError{Code: codeUnauthorized, Message: "missing bearer token"}
	}
	if strings.TrimSpace(strings.TrimPrefix(header, prefix)) != s.authToken {
		return &authError{Code: codeUnauthorized, Message: "invalid bearer token"}
	}
	return nil
}

// ServeHTTP implements the JSON-RPC entry point.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, nil, codeInvalidRequest, "POST required", nil)
		return
	}
	if !s.limiterFor(requestSource(r)).Allow() {
		writeError(w, http.StatusTooManyRequests, nil, codeRateLimited, "rate limit exceeded", nil)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "unable to read request body", nil)
		return
	}
	var req RPCRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON payload", err.Error())
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported jsonrpc version", nil)
		return
	}

	handler, ok := s.routes()[req.Method]
	if !ok {
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, fmt.Sprintf("unknown method %q", req.Method), nil)
		return
	}

	start := time.Now()
	handlerErr := handler(w, r, &req)
	observability.ModuleMetrics().Observe("rpc", req.Method, start, handlerErr)
}

type handlerFunc func(http.ResponseWriter, *http.Request, *RPCRequest) error

func (s *Server) routes() map[string]handlerFunc {
	return map[string]handlerFunc{
		"gig_postJob":            s.handlePostJob,
		"gig_apply":              s.handleApply,
		"gig_approveApplication": s.handleApproveApplication,
		"gig_submitWork":         s.handleSubmitWork,
		"gig_approveSubmission":  s.handleApproveSubmission,
		"gig_rejectSubmission":   s.handleRejectSubmission,
		"gig_cancelJob":          s.handleCancelJob,
		"gig_getJob":             s.handleGetJob,
		"gig_getApplication":     s.handleGetApplication,
		"gig_vaultBalance":       s.handleVaultBalance,
		"gig_getStats":           s.handleGetStats,
		"gig_getAccount":         s.handleGetAccount,
	}
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(&RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result})
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(&RPCResponse{
		JSONRPC: jsonRPCVersion,
		ID:      id,
		Error:   &RPCError{Code: code, Message: message, Data: data},
	})
}

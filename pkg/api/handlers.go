package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/optoutdao/engine/pkg/credit"
	"github.com/optoutdao/engine/pkg/engine"
)

// Server exposes the engine over HTTP JSON.
type Server struct {
	engine *engine.Engine
}

// NewServer creates an API server over the engine.
func NewServer(e *engine.Engine) *Server {
	return &Server{engine: e}
}

// Routes registers all endpoints on a fresh mux.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/v1/brokers", s.handleBrokers)
	mux.HandleFunc("/v1/brokers/verify", s.handleVerifyBroker)
	mux.HandleFunc("/v1/brokers/get", s.handleGetBroker)
	mux.HandleFunc("/v1/processors", s.handleRegisterProcessor)
	mux.HandleFunc("/v1/processors/slash", s.handleSlashProcessor)
	mux.HandleFunc("/v1/processors/get", s.handleGetProcessor)
	mux.HandleFunc("/v1/stakes", s.handleStake)
	mux.HandleFunc("/v1/stakes/get", s.handleGetStake)
	mux.HandleFunc("/v1/tasks", s.handleRequestRemoval)
	mux.HandleFunc("/v1/tasks/complete", s.handleCompleteRemoval)
	mux.HandleFunc("/v1/tasks/get", s.handleGetTask)
	mux.HandleFunc("/v1/credit/mint", s.handleMint)
	mux.HandleFunc("/v1/credit/transfer", s.handleTransfer)
	mux.HandleFunc("/v1/balance", s.handleBalance)
	mux.HandleFunc("/v1/stats", s.handleStats)
	mux.HandleFunc("/v1/events", s.handleEvents)
	mux.HandleFunc("/v1/admin/pause", s.handlePause)
	mux.HandleFunc("/v1/admin/resume", s.handleResume)
	return mux
}

// Handler returns the routed mux wrapped with request-id, rate-limit, and
// idempotency middleware.
func (s *Server) Handler(rl *GlobalRateLimiter, idem IdempotencyStorer) http.Handler {
	var h http.Handler = s.Routes()
	if idem != nil {
		h = IdempotencyMiddleware(idem)(h)
	}
	if rl != nil {
		h = rl.Middleware(h)
	}
	return RequestIDMiddleware(h)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decodeCommand reads a bounded JSON command body.
func decodeCommand(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB limit
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		WriteBadRequest(w, "Invalid request body")
		return false
	}
	return true
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ok, reason := s.engine.VerifyJournal()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"journal": reason,
		"chain":   ok,
	})
}

func (s *Server) handleBrokers(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.engine.ListActiveBrokers())
	case http.MethodPost:
		var req struct {
			Caller       string `json:"caller"`
			Name         string `json:"name"`
			Website      string `json:"website"`
			Instructions string `json:"instructions"`
		}
		if !decodeCommand(w, r, &req) {
			return
		}
		id, err := s.engine.SubmitBroker(req.Caller, req.Name, req.Website, req.Instructions)
		if err != nil {
			WriteEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"broker_id": id})
	default:
		WriteMethodNotAllowed(w)
	}
}

func (s *Server) handleVerifyBroker(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteMethodNotAllowed(w)
		return
	}
	var req struct {
		Caller   string `json:"caller"`
		BrokerID uint64 `json:"broker_id"`
	}
	if !decodeCommand(w, r, &req) {
		return
	}
	if err := s.engine.VerifyBroker(req.Caller, req.BrokerID); err != nil {
		WriteEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"broker_id": req.BrokerID, "verified": true})
}

func (s *Server) handleGetBroker(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteMethodNotAllowed(w)
		return
	}
	id, err := strconv.ParseUint(r.URL.Query().Get("id"), 10, 64)
	if err != nil {
		WriteBadRequest(w, "Missing or invalid id")
		return
	}
	b, err := s.engine.GetBroker(id)
	if err != nil {
		WriteEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) handleRegisterProcessor(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteMethodNotAllowed(w)
		return
	}
	var req struct {
		Caller      string `json:"caller"`
		Stake       int64  `json:"stake"`
		Description string `json:"description"`
	}
	if !decodeCommand(w, r, &req) {
		return
	}
	if err := s.engine.RegisterProcessor(req.Caller, credit.Amount(req.Stake), req.Description); err != nil {
		WriteEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"processor": req.Caller})
}

func (s *Server) handleSlashProcessor(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteMethodNotAllowed(w)
		return
	}
	var req struct {
		Caller      string `json:"caller"`
		ProcessorID string `json:"processor_id"`
		Reason      string `json:"reason"`
	}
	if !decodeCommand(w, r, &req) {
		return
	}
	if err := s.engine.SlashProcessor(req.Caller, req.ProcessorID, req.Reason); err != nil {
		WriteEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"processor": req.ProcessorID, "slashed": true})
}

func (s *Server) handleGetProcessor(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteMethodNotAllowed(w)
		return
	}
	id := r.URL.Query().Get("id")
	if id == "" {
		WriteBadRequest(w, "Missing id")
		return
	}
	p, err := s.engine.GetProcessor(id)
	if err != nil {
		WriteEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleStake(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteMethodNotAllowed(w)
		return
	}
	var req struct {
		Caller     string   `json:"caller"`
		Amount     int64    `json:"amount"`
		Processors []string `json:"processors"`
	}
	if !decodeCommand(w, r, &req) {
		return
	}
	if err := s.engine.StakeForRemoval(req.Caller, credit.Amount(req.Amount), req.Processors); err != nil {
		WriteEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"user": req.Caller, "staking": true})
}

func (s *Server) handleGetStake(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteMethodNotAllowed(w)
		return
	}
	user := r.URL.Query().Get("user")
	if user == "" {
		WriteBadRequest(w, "Missing user")
		return
	}
	st, err := s.engine.GetUserStake(user)
	if err != nil {
		WriteEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleRequestRemoval(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteMethodNotAllowed(w)
		return
	}
	var req struct {
		Caller   string `json:"caller"`
		BrokerID uint64 `json:"broker_id"`
	}
	if !decodeCommand(w, r, &req) {
		return
	}
	id, err := s.engine.RequestRemoval(req.Caller, req.BrokerID)
	if err != nil {
		WriteEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"task_id": id})
}

func (s *Server) handleCompleteRemoval(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteMethodNotAllowed(w)
		return
	}
	var req struct {
		Caller   string `json:"caller"`
		TaskID   uint64 `json:"task_id"`
		Evidence string `json:"evidence"`
	}
	if !decodeCommand(w, r, &req) {
		return
	}
	if err := s.engine.CompleteRemoval(req.Caller, req.TaskID, req.Evidence); err != nil {
		WriteEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"task_id": req.TaskID, "completed": true})
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteMethodNotAllowed(w)
		return
	}
	id, err := strconv.ParseUint(r.URL.Query().Get("id"), 10, 64)
	if err != nil {
		WriteBadRequest(w, "Missing or invalid id")
		return
	}
	t, err := s.engine.GetTask(id)
	if err != nil {
		WriteEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleMint(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteMethodNotAllowed(w)
		return
	}
	var req struct {
		Caller  string `json:"caller"`
		Account string `json:"account"`
		Amount  int64  `json:"amount"`
	}
	if !decodeCommand(w, r, &req) {
		return
	}
	if err := s.engine.MintCredit(req.Caller, req.Account, credit.Amount(req.Amount)); err != nil {
		WriteEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"account": req.Account, "balance": s.engine.BalanceOf(req.Account)})
}

func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteMethodNotAllowed(w)
		return
	}
	var req struct {
		Caller string `json:"caller"`
		To     string `json:"to"`
		Amount int64  `json:"amount"`
	}
	if !decodeCommand(w, r, &req) {
		return
	}
	if err := s.engine.TransferCredit(req.Caller, req.To, credit.Amount(req.Amount)); err != nil {
		WriteEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"from": req.Caller, "to": req.To})
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteMethodNotAllowed(w)
		return
	}
	account := r.URL.Query().Get("account")
	if account == "" {
		WriteBadRequest(w, "Missing account")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"account": account,
		"balance": s.engine.BalanceOf(account),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteMethodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, s.engine.Stats())
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteMethodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, s.engine.Events())
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteMethodNotAllowed(w)
		return
	}
	var req struct {
		Caller string `json:"caller"`
	}
	if !decodeCommand(w, r, &req) {
		return
	}
	if err := s.engine.Pause(req.Caller); err != nil {
		WriteEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"paused": true})
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteMethodNotAllowed(w)
		return
	}
	var req struct {
		Caller string `json:"caller"`
	}
	if !decodeCommand(w, r, &req) {
		return
	}
	if err := s.engine.Resume(req.Caller); err != nil {
		WriteEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"paused": false})
}

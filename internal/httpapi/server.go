// Package httpapi serves the journal view API: composed view state, account
// listings and activation, per-account render data, and a server-sent event
// stream of transitions.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/hitched212-stack/Mytradelog.final30-sub002/internal/boot"
	"github.com/hitched212-stack/Mytradelog.final30-sub002/internal/directory"
	"github.com/hitched212-stack/Mytradelog.final30-sub002/internal/domain"
	"github.com/hitched212-stack/Mytradelog.final30-sub002/internal/gauge"
	"github.com/hitched212-stack/Mytradelog.final30-sub002/internal/store"
	"github.com/hitched212-stack/Mytradelog.final30-sub002/internal/viewstate"
)

// Server serves the journal HTTP API.
type Server struct {
	ctrl     *viewstate.Controller
	dir      *directory.Directory
	accounts store.AccountStore
	trades   store.TradeStore
	splash   *boot.Splash
	pnl      *gauge.Gauge
	log      *slog.Logger
}

// NewServer creates the API server. splash and pnl may be nil when the
// process runs without a boot overlay or an animated total.
func NewServer(
	ctrl *viewstate.Controller,
	dir *directory.Directory,
	accounts store.AccountStore,
	trades store.TradeStore,
	splash *boot.Splash,
	pnl *gauge.Gauge,
	log *slog.Logger,
) *Server {
	return &Server{
		ctrl:     ctrl,
		dir:      dir,
		accounts: accounts,
		trades:   trades,
		splash:   splash,
		pnl:      pnl,
		log:      log,
	}
}

// RegisterRoutes registers all API routes on the given mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/state", s.handleState)
	mux.HandleFunc("GET /api/boot", s.handleBoot)
	mux.HandleFunc("GET /api/accounts", s.handleListAccounts)
	mux.HandleFunc("POST /api/accounts", s.handleCreateAccount)
	mux.HandleFunc("POST /api/accounts/{accountID}/activate", s.handleActivate)
	mux.HandleFunc("POST /api/accounts/{accountID}/archive", s.handleArchive)
	mux.HandleFunc("POST /api/accounts/{accountID}/trades", s.handleCreateTrade)
	mux.HandleFunc("GET /api/render/{accountID}", s.handleRender)
	mux.HandleFunc("GET /api/gauge", s.handleGauge)
	mux.HandleFunc("GET /api/events", s.handleEvents)
}

// Handler returns an http.Handler with CORS middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return corsMiddleware(mux)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.ctrl.Snapshot())
}

func (s *Server) handleBoot(w http.ResponseWriter, r *http.Request) {
	if s.splash == nil {
		writeJSON(w, BootResponse{State: string(boot.StateDone)})
		return
	}
	writeJSON(w, BootResponse{State: string(s.splash.State())})
}

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, AccountsResponse{
		Accounts: s.dir.Accounts(),
		ActiveID: s.dir.ActiveAccountID(),
	})
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var req CreateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	sess := s.ctrl.SessionSnapshot()
	if !sess.SignedIn() {
		writeError(w, http.StatusUnauthorized, "not signed in")
		return
	}

	acct := &domain.Account{
		UserID:          sess.UserID,
		Name:            req.Name,
		Type:            req.Type,
		Status:          domain.AccountActive,
		Currency:        req.Currency,
		StartingBalance: req.StartingBalance,
		BrokerName:      req.BrokerName,
	}
	if err := s.accounts.CreateAccount(r.Context(), acct); err != nil {
		s.log.Error("creating account", "error", err)
		writeError(w, http.StatusInternalServerError, "creating account")
		return
	}
	s.dir.LoadForUser(r.Context(), sess.UserID)
	writeJSONStatus(w, http.StatusCreated, acct)
}

func (s *Server) handleActivate(w http.ResponseWriter, r *http.Request) {
	accountID := r.PathValue("accountID")
	acct, err := s.accounts.GetAccount(r.Context(), accountID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "account not found")
			return
		}
		s.log.Error("loading account", "accountID", accountID, "error", err)
		writeError(w, http.StatusInternalServerError, "loading account")
		return
	}

	if err := s.ctrl.SetActiveAccount(r.Context(), *acct); err != nil {
		switch {
		case errors.Is(err, store.ErrAccountArchived):
			writeError(w, http.StatusConflict, "account is archived")
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "account not in directory")
		default:
			s.log.Error("activating account", "accountID", accountID, "error", err)
			writeError(w, http.StatusInternalServerError, "activating account")
		}
		return
	}
	writeJSON(w, s.ctrl.Snapshot())
}

func (s *Server) handleArchive(w http.ResponseWriter, r *http.Request) {
	accountID := r.PathValue("accountID")
	if err := s.accounts.ArchiveAccount(r.Context(), accountID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "account not found")
			return
		}
		s.log.Error("archiving account", "accountID", accountID, "error", err)
		writeError(w, http.StatusInternalServerError, "archiving account")
		return
	}

	// Reload so an archived active selection is invalidated.
	sess := s.ctrl.SessionSnapshot()
	if sess.SignedIn() {
		s.dir.LoadForUser(r.Context(), sess.UserID)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCreateTrade(w http.ResponseWriter, r *http.Request) {
	accountID := r.PathValue("accountID")
	var req CreateTradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Symbol == "" {
		writeError(w, http.StatusBadRequest, "symbol is required")
		return
	}

	acct, err := s.accounts.GetAccount(r.Context(), accountID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "account not found")
			return
		}
		s.log.Error("loading account", "accountID", accountID, "error", err)
		writeError(w, http.StatusInternalServerError, "loading account")
		return
	}
	if acct.Status != domain.AccountActive {
		writeError(w, http.StatusConflict, "account is archived")
		return
	}

	trade := &domain.Trade{
		AccountID:  accountID,
		Symbol:     req.Symbol,
		Side:       req.Side,
		Qty:        req.Qty,
		Price:      req.Price,
		PnL:        req.PnL,
		ExecutedAt: req.ExecutedAt,
		Notes:      req.Notes,
	}
	if err := s.trades.SaveTrade(r.Context(), trade); err != nil {
		s.log.Error("saving trade", "accountID", accountID, "error", err)
		writeError(w, http.StatusInternalServerError, "saving trade")
		return
	}

	// Keep the render cache current when the journaled account is on
	// screen. Writes for other accounts stay store-only.
	if s.dir.ActiveAccountID() == accountID {
		trades, err := s.trades.ListTrades(r.Context(), accountID)
		if err != nil {
			s.log.Warn("reloading trades", "accountID", accountID, "error", err)
		} else {
			s.ctrl.RecordTrades(accountID, trades, acct.StartingBalance)
		}
	}

	writeJSONStatus(w, http.StatusCreated, trade)
}

func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	accountID := r.PathValue("accountID")
	data, fromPrev := s.ctrl.ReadForRender(accountID)

	var total float64
	for _, t := range data.Trades {
		total += t.PnL
	}
	trades := data.Trades
	if trades == nil {
		trades = []domain.Trade{}
	}
	writeJSON(w, RenderResponse{
		AccountID:       accountID,
		FromPrevious:    fromPrev,
		Trades:          trades,
		StartingBalance: data.StartingBalance,
		TotalPnL:        total,
	})
}

// handleGauge reports the animated total PnL display value. Clients poll it
// per frame while the phase is animating.
func (s *Server) handleGauge(w http.ResponseWriter, r *http.Request) {
	if s.pnl == nil {
		writeError(w, http.StatusNotFound, "gauge not configured")
		return
	}
	writeJSON(w, GaugeResponse{
		Value: s.pnl.Value(),
		Phase: string(s.pnl.Phase()),
	})
}

// handleEvents streams controller events as server-sent events until the
// client disconnects.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	id, ch := s.ctrl.Subscribe(32)
	defer s.ctrl.Unsubscribe(id)

	// Initial snapshot so clients do not render stale state until the
	// first transition.
	snap, _ := json.Marshal(s.ctrl.Snapshot())
	fmt.Fprintf(w, "event: snapshot\ndata: %s\n\n", snap)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case e, ok := <-ch:
			if !ok {
				return
			}
			payload, err := json.Marshal(e)
			if err != nil {
				s.log.Error("encoding event", "error", err)
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
		}
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding JSON response", "error", err)
	}
}

func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

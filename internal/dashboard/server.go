// Package dashboard exposes the desk over a JSON HTTP API for the mobile
// client. It is glue only: every computation lives in the ledger, strategy,
// analytics, and risk packages.
package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/eddiefleurent/schrute_spreads/internal/analytics"
	"github.com/eddiefleurent/schrute_spreads/internal/autoclose"
	"github.com/eddiefleurent/schrute_spreads/internal/ledger"
	"github.com/eddiefleurent/schrute_spreads/internal/marketdata"
	"github.com/eddiefleurent/schrute_spreads/internal/models"
	"github.com/eddiefleurent/schrute_spreads/internal/risk"
	"github.com/eddiefleurent/schrute_spreads/internal/storage"
	"github.com/eddiefleurent/schrute_spreads/internal/strategy"
)

// Config carries the server settings and the desk parameters the API
// needs for previews and reports.
type Config struct {
	ListenAddr    string
	AuthToken     string
	AccountSize   float64
	Budget        float64
	RewardFloor   float64
	RangeFraction float64
	Templates     strategy.TemplateConfig
}

// Server is the dashboard HTTP server.
type Server struct {
	router  *chi.Mux
	server  *http.Server
	ledger  *ledger.Ledger
	market  marketdata.Provider
	monitor *autoclose.Monitor
	logger  *logrus.Logger
	cfg     Config
}

// NewServer wires the routes. monitor may be nil when auto-close is
// disabled; the log endpoint then returns an empty list.
func NewServer(cfg Config, lgr *ledger.Ledger, market marketdata.Provider, monitor *autoclose.Monitor, logger *logrus.Logger) *Server {
	s := &Server{
		router:  chi.NewRouter(),
		ledger:  lgr,
		market:  market,
		monitor: monitor,
		logger:  logger,
		cfg:     cfg,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(60 * time.Second))

	if s.cfg.AuthToken != "" {
		s.router.Use(s.authMiddleware)
	}

	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/positions", s.handleListPositions)
		r.Post("/positions", s.handleCreatePosition)
		r.Get("/positions/{id}", s.handleGetPosition)
		r.Post("/positions/{id}/close", s.handleClosePosition)
		r.Delete("/positions/{id}", s.handleDeletePosition)

		r.Post("/preview", s.handlePreview)
		r.Get("/templates", s.handleTemplates)
		r.Get("/analytics", s.handleAnalytics)
		r.Get("/risk", s.handleRisk)
		r.Get("/autoclose/log", s.handleAutoCloseLog)
	})
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		token := r.Header.Get("X-Auth-Token")
		if token == "" {
			token = r.URL.Query().Get("token")
		}

		if token != s.cfg.AuthToken {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Start blocks serving HTTP until the listener fails or Shutdown runs.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              s.cfg.ListenAddr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Infof("Starting dashboard server on %s", s.cfg.ListenAddr)
	return s.server.ListenAndServe()
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().Unix(),
	})
}

// PositionView is a position enriched with live valuation. The mark fields
// are nil when any leg's chain lookup missed.
type PositionView struct {
	models.Position
	Mark          *float64 `json:"mark,omitempty"`
	UnrealizedPnL *float64 `json:"unrealized_pnl,omitempty"`
	PLPercent     *float64 `json:"pl_percent,omitempty"`
	DTE           int      `json:"dte"`
}

func (s *Server) handleListPositions(w http.ResponseWriter, r *http.Request) {
	var positions []models.Position
	switch r.URL.Query().Get("status") {
	case "closed":
		positions = s.ledger.History()
	case "all":
		positions = append(s.ledger.OpenPositions(), s.ledger.History()...)
	default:
		positions = s.ledger.OpenPositions()
	}

	now := time.Now()
	views := make([]PositionView, 0, len(positions))
	for i := range positions {
		views = append(views, s.toView(r.Context(), &positions[i], now))
	}
	s.writeJSON(w, views)
}

func (s *Server) handleGetPosition(w http.ResponseWriter, r *http.Request) {
	pos, err := s.ledger.Position(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.writeJSON(w, s.toView(r.Context(), pos, time.Now()))
}

// CreateRequest is the POST /api/positions body. Strategy type and entry
// price are derived from the legs, never trusted from the client.
type CreateRequest struct {
	Symbol       string       `json:"symbol"`
	StrategyName string       `json:"strategy_name"`
	Legs         []models.Leg `json:"legs"`
	Quantity     int          `json:"quantity"`
	Notes        string       `json:"notes,omitempty"`
}

func (s *Server) handleCreatePosition(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	candidate := strategy.NewCandidate(req.Legs, req.Quantity)
	pos, err := s.ledger.CreatePosition(ledger.CreateParams{
		Symbol:       req.Symbol,
		StrategyType: candidate.Type,
		StrategyName: req.StrategyName,
		Legs:         req.Legs,
		EntryPrice:   candidate.EntryPrice,
		Quantity:     req.Quantity,
		Notes:        req.Notes,
	})
	if err != nil {
		s.respondError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(s.toView(r.Context(), pos, time.Now())); err != nil {
		s.logger.WithError(err).Error("Failed to encode response")
	}
}

// CloseRequest is the POST /api/positions/{id}/close body. ExitPrice is
// signed the same way entry prices are: positive cost to buy back a credit
// structure, negative proceeds from selling a debit structure.
type CloseRequest struct {
	ExitPrice float64 `json:"exit_price"`
	Notes     string  `json:"notes,omitempty"`
}

func (s *Server) handleClosePosition(w http.ResponseWriter, r *http.Request) {
	var req CloseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	pos, err := s.ledger.ClosePosition(chi.URLParam(r, "id"), req.ExitPrice, req.Notes)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.writeJSON(w, pos)
}

func (s *Server) handleDeletePosition(w http.ResponseWriter, r *http.Request) {
	if err := s.ledger.DeletePosition(chi.URLParam(r, "id")); err != nil {
		s.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PreviewRequest is the POST /api/preview body. Center defaults to the
// symbol's last quote when omitted.
type PreviewRequest struct {
	Symbol   string       `json:"symbol"`
	Legs     []models.Leg `json:"legs"`
	Quantity int          `json:"quantity"`
	Center   float64      `json:"center,omitempty"`
}

// PreviewResponse is the classification, curve, and sizing for draft legs.
// Sizing is omitted when the shape has no bounded loss.
type PreviewResponse struct {
	StrategyType models.StrategyType  `json:"strategy_type"`
	EntryPrice   float64              `json:"entry_price"`
	Curve        *strategy.Curve      `json:"curve"`
	Sizing       *strategy.SizeResult `json:"sizing,omitempty"`
	SizingError  string               `json:"sizing_error,omitempty"`
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	var req PreviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	center := req.Center
	if center <= 0 {
		quote, err := s.market.GetQuote(r.Context(), req.Symbol)
		if err != nil {
			s.logger.WithError(err).Error("Failed to get quote for preview")
			http.Error(w, "quote unavailable", http.StatusBadGateway)
			return
		}
		center = quote.Last
	}

	candidate := strategy.NewCandidate(req.Legs, req.Quantity)
	curve, err := strategy.BuildCurve(candidate, center, s.cfg.RangeFraction)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	resp := PreviewResponse{
		StrategyType: candidate.Type,
		EntryPrice:   candidate.EntryPrice,
		Curve:        curve,
	}

	// Sizing works on per-contract bounds.
	perContract := float64(max(1, candidate.Quantity))
	result, err := strategy.Size(-curve.LossBound()/perContract, curve.ProfitBound()/perContract, s.cfg.Budget, s.cfg.RewardFloor)
	if err != nil {
		resp.SizingError = err.Error()
	} else {
		resp.Sizing = &result
	}

	s.writeJSON(w, resp)
}

// TemplateView is one generated strategy draft, priced from the requested
// chain. Legs with no tradable quote keep a zero price.
type TemplateView struct {
	Name         string              `json:"name"`
	StrategyType models.StrategyType `json:"strategy_type"`
	EntryPrice   float64             `json:"entry_price"`
	Legs         []models.Leg        `json:"legs"`
}

func (s *Server) handleTemplates(w http.ResponseWriter, r *http.Request) {
	symbol := r.URL.Query().Get("symbol")
	expiration := r.URL.Query().Get("expiration")
	if symbol == "" || expiration == "" {
		http.Error(w, "symbol and expiration are required", http.StatusBadRequest)
		return
	}

	quote, err := s.market.GetQuote(r.Context(), symbol)
	if err != nil {
		s.logger.WithError(err).Error("Failed to get quote for templates")
		http.Error(w, "quote unavailable", http.StatusBadGateway)
		return
	}
	snapshot, err := s.market.GetOptionsChain(r.Context(), symbol, expiration)
	if err != nil {
		s.logger.WithError(err).Error("Failed to get chain for templates")
		http.Error(w, "chain unavailable", http.StatusBadGateway)
		return
	}

	center := quote.Last
	q := chainQuoteFunc(snapshot)
	tc := s.cfg.Templates

	drafts := []struct {
		name      string
		candidate strategy.Candidate
	}{
		{"bull put spread", tc.BullPut(center, q)},
		{"bear call spread", tc.BearCall(center, q)},
		{"iron condor", tc.IronCondor(center, q)},
		{"iron butterfly", tc.IronButterfly(center, q)},
		{"long straddle", tc.Straddle(center, q)},
		{"long strangle", tc.Strangle(center, q)},
	}

	views := make([]TemplateView, 0, len(drafts)+1)
	for _, d := range drafts {
		views = append(views, TemplateView{
			Name:         d.name,
			StrategyType: d.candidate.Type,
			EntryPrice:   d.candidate.EntryPrice,
			Legs:         d.candidate.Legs,
		})
	}

	if cal, ok := s.calendarTemplate(r.Context(), symbol, expiration, center, q); ok {
		views = append(views, cal)
	}

	s.writeJSON(w, views)
}

// calendarTemplate builds a calendar draft when a later expiration exists.
// Any market-data failure just drops the draft from the list.
func (s *Server) calendarTemplate(ctx context.Context, symbol, nearExpStr string, center float64, nearQ strategy.QuoteFunc) (TemplateView, bool) {
	nearExp, err := time.Parse("2006-01-02", nearExpStr)
	if err != nil {
		return TemplateView{}, false
	}

	expirations, err := s.market.GetExpirations(ctx, symbol)
	if err != nil {
		return TemplateView{}, false
	}
	var farExpStr string
	for _, e := range expirations {
		if e > nearExpStr {
			farExpStr = e
			break
		}
	}
	if farExpStr == "" {
		return TemplateView{}, false
	}
	farExp, err := time.Parse("2006-01-02", farExpStr)
	if err != nil {
		return TemplateView{}, false
	}

	farChain, err := s.market.GetOptionsChain(ctx, symbol, farExpStr)
	if err != nil {
		return TemplateView{}, false
	}

	cal := s.cfg.Templates.Calendar(center, nearExp, farExp, nearQ, chainQuoteFunc(farChain))
	return TemplateView{
		Name:         "calendar spread",
		StrategyType: cal.Type,
		EntryPrice:   cal.EntryPrice,
		Legs:         cal.Legs,
	}, true
}

func chainQuoteFunc(snapshot *marketdata.ChainSnapshot) strategy.QuoteFunc {
	return func(strike float64, t models.OptionType) float64 {
		c, ok := snapshot.Lookup(strike, t)
		if !ok {
			return 0
		}
		return c.MarkPrice()
	}
}

func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	window := analytics.ParseWindow(r.URL.Query().Get("window"))
	report := analytics.BuildReport(s.ledger.History(), window, time.Now())
	s.writeJSON(w, report)
}

func (s *Server) handleRisk(w http.ResponseWriter, _ *http.Request) {
	report := risk.BuildReport(s.ledger.OpenPositions(), s.cfg.AccountSize, time.Now())
	s.writeJSON(w, report)
}

func (s *Server) handleAutoCloseLog(w http.ResponseWriter, _ *http.Request) {
	if s.monitor == nil {
		s.writeJSON(w, []autoclose.Event{})
		return
	}
	s.writeJSON(w, s.monitor.RecentEvents(50))
}

// toView appends live valuation to a position. Open positions are marked
// against fresh chains; terminal positions carry their realized figures.
func (s *Server) toView(ctx context.Context, pos *models.Position, now time.Time) PositionView {
	view := PositionView{Position: *pos, DTE: pos.DTE(now)}
	if pos.Status != models.StatusOpen {
		return view
	}

	chains := make(marketdata.ChainSet)
	for _, leg := range pos.Legs {
		exp := leg.ExpirationOr(pos.Expiration).Format("2006-01-02")
		if _, ok := chains[exp]; ok {
			continue
		}
		snapshot, err := s.market.GetOptionsChain(ctx, pos.Symbol, exp)
		if err != nil {
			s.logger.WithError(err).WithField("position", pos.ID).Warn("Chain fetch failed, leaving mark unset")
			return view
		}
		chains[exp] = snapshot
	}

	mark := s.ledger.MarkToMarket(pos, chains)
	if mark == nil {
		return view
	}
	pnl := s.ledger.UnrealizedPnL(pos, *mark)
	view.Mark = mark
	view.UnrealizedPnL = &pnl
	view.PLPercent = s.ledger.PLPercent(pos, *mark)
	return view
}

func (s *Server) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.WithError(err).Error("Failed to encode response")
	}
}

// respondError maps domain errors to HTTP statuses.
func (s *Server) respondError(w http.ResponseWriter, err error) {
	var vErr *models.ValidationError
	switch {
	case errors.Is(err, storage.ErrPositionNotFound):
		http.Error(w, "position not found", http.StatusNotFound)
	case errors.Is(err, ledger.ErrPositionNotOpen):
		http.Error(w, "position is not open", http.StatusConflict)
	case errors.As(err, &vErr):
		http.Error(w, vErr.Error(), http.StatusBadRequest)
	default:
		s.logger.WithError(err).Error("Request failed")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

// Package server exposes the lending engine over an authenticated JSON API.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"crosslend/core/state"
	"crosslend/crypto"
	"crosslend/native/custody"
	"crosslend/native/lending"
	"crosslend/native/oracle"
	"crosslend/native/tier"
	"crosslend/services/lendingd/eventstore"
	"crosslend/services/lendingd/stream"
)

// EventLog serves committed event history.
type EventLog interface {
	List(ctx context.Context, f eventstore.Filter) ([]eventstore.Record, error)
}

// Config captures the dependencies required to construct the server.
type Config struct {
	Lending   *lending.Engine
	Tiers     *tier.Engine
	State     *state.Manager
	Authority *lending.Authority
	Prices    *oracle.ManualFeed
	Events    EventLog
	Stream    *stream.Hub
	Auth      AuthConfig
	RateLimit RateLimit
	Logger    *slog.Logger
	Now       func() time.Time
}

// Server encapsulates dependencies for the HTTP API.
type Server struct {
	lending   *lending.Engine
	tiers     *tier.Engine
	state     *state.Manager
	authority *lending.Authority
	prices    *oracle.ManualFeed
	events    EventLog
	stream    *stream.Hub
	auth      *Authenticator
	limiter   *RateLimiter
	logger    *slog.Logger
	now       func() time.Time

	router http.Handler
}

func New(cfg Config) (*Server, error) {
	if cfg.Lending == nil || cfg.Tiers == nil || cfg.State == nil {
		return nil, errors.New("server: lending, tier and state dependencies required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	authn, err := NewAuthenticator(cfg.Auth, logger)
	if err != nil {
		return nil, err
	}
	srv := &Server{
		lending:   cfg.Lending,
		tiers:     cfg.Tiers,
		state:     cfg.State,
		authority: cfg.Authority,
		prices:    cfg.Prices,
		events:    cfg.Events,
		stream:    cfg.Stream,
		auth:      authn,
		limiter:   NewRateLimiter(cfg.RateLimit),
		logger:    logger,
		now:       cfg.Now,
	}
	if srv.now == nil {
		srv.now = time.Now
	}
	srv.router = srv.buildRouter()
	return srv, nil
}

// Handler exposes the configured HTTP router.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(observeCalls)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(api chi.Router) {
		api.Use(s.auth.Middleware)
		api.Use(s.limiter.Middleware)

		api.Post("/tiers", op("create_tier", s.createTier))
		api.Get("/tiers/{id}", op("get_tier", s.getTier))
		api.Delete("/tiers/{id}", op("close_tier", s.closeTier))

		api.Post("/lend-offers", op("create_lend_offer", s.createLendOffer))
		api.Get("/lend-offers", op("list_lend_offers", s.listLendOffers))
		api.Get("/lend-offers/{id}", op("get_lend_offer", s.getLendOffer))
		api.Patch("/lend-offers/{id}/interest", op("update_lend_offer_interest", s.updateLendOfferInterest))
		api.Post("/lend-offers/{id}/cancel-request", op("request_cancel", s.requestCancel))
		api.Post("/lend-offers/{id}/close", op("close_lend_offer", s.closeLendOffer))

		api.Post("/loans", op("match_lend_offer", s.matchLendOffer))
		api.Get("/loans", op("list_loan_offers", s.listLoanOffers))
		api.Get("/loans/{id}", op("get_loan_offer", s.getLoanOffer))
		api.Post("/loans/{id}/collateral", op("deposit_collateral", s.depositCollateral))
		api.Post("/loans/{id}/activate", op("activate", s.activate))
		api.Get("/loans/{id}/repay-quote", op("repay_quote", s.repayQuote))
		api.Post("/loans/{id}/repay", op("repay", s.repay))
		api.Post("/loans/{id}/expire", op("expire_withdraw", s.expireWithdraw))
		api.Get("/loans/{id}/health", op("health_ratio", s.healthRatio))

		api.Get("/balances/{mint}", op("balance", s.balance))
		api.Get("/events", op("list_events", s.listEvents))
		api.Get("/events/stream", op("stream_events", s.streamEvents))

		api.Route("/operator", func(opr chi.Router) {
			opr.Use(s.requireOperator)
			opr.Post("/lend-offers/{id}/cancel", op("execute_cancel", s.executeCancel))
			opr.Post("/loans/{id}/foreign-collateral", op("deposit_foreign_collateral", s.depositForeignCollateral))
			opr.Post("/loans/{id}/liquidate", op("liquidate", s.liquidate))
			opr.Post("/prices", op("push_price", s.pushPrice))
		})
	})
	return r
}

type capabilityContextKey struct{}

func (s *Server) requireOperator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller, _ := CallerFromContext(r.Context())
		capability, err := s.authority.Authorize(caller)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), capabilityContextKey{}, capability)))
	})
}

func capabilityFrom(r *http.Request) lending.OperatorCapability {
	capability, _ := r.Context().Value(capabilityContextKey{}).(lending.OperatorCapability)
	return capability
}

func caller(r *http.Request) crypto.Address {
	addr, _ := CallerFromContext(r.Context())
	return addr
}

// partyFromQuery reads an optional address query parameter, defaulting to
// the caller.
func partyFromQuery(r *http.Request, key string) (crypto.Address, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return caller(r), nil
	}
	return parseAddressField(key, raw)
}

func (s *Server) balance(w http.ResponseWriter, r *http.Request) {
	mint, err := parseAddressField("mint", chi.URLParam(r, "mint"))
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	owner, err := partyFromQuery(r, "owner")
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	var out amountResponse
	err = s.state.View(func(tx *state.Tx) error {
		bal, err := custody.NewLedger(tx).Balance(owner, mint)
		if err != nil {
			return err
		}
		out.Amount = amountString(bal)
		return nil
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) listEvents(w http.ResponseWriter, r *http.Request) {
	if s.events == nil {
		writeJSON(w, http.StatusOK, map[string]any{"events": []eventJSON{}})
		return
	}
	q := r.URL.Query()
	filter := eventstore.Filter{
		Type:    strings.TrimSpace(q.Get("type")),
		LoanID:  strings.TrimSpace(q.Get("loan_id")),
		OfferID: strings.TrimSpace(q.Get("offer_id")),
	}
	if raw := strings.TrimSpace(q.Get("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			badRequest(w, "limit must be a non-negative integer")
			return
		}
		filter.Limit = limit
	}
	records, err := s.events.List(r.Context(), filter)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]eventJSON, 0, len(records))
	for _, rec := range records {
		evt, err := eventToJSON(rec)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		out = append(out, evt)
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": out})
}

// Package transport exposes the read-only HTTP API.
package transport

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/goodnatureofminers/reach-engine/internal/merkle"
	"github.com/goodnatureofminers/reach-engine/internal/service/engine"
)

//go:generate mockgen -source=$GOFILE -destination=mocks_test.go -package=$GOPACKAGE

type (
	Engine interface {
		Token() engine.TokenView
		Distributions() []engine.DistributionView
		Distribution(addr common.Address) (engine.DistributionView, error)
		Claim(addr, account common.Address) (engine.ClaimView, error)
		Proof(addr, account common.Address) (merkle.ProofEntry, error)
		Credits(account common.Address) uint64
	}

	Metrics interface {
		ObserveRequest(route string, code int, started time.Time)
	}
)

// HealthStatus mirrors the health probe response.
type HealthStatus struct {
	Status      string `json:"status"`
	Description string `json:"description,omitempty"`
}

type CreditsView struct {
	Account common.Address `json:"account"`
	Credits uint64         `json:"credits"`
}

type errorView struct {
	Error string `json:"error"`
}

type Handler struct {
	engine  Engine
	metrics Metrics
	logger  *zap.Logger
}

func NewHandler(e Engine, metrics Metrics, logger *zap.Logger) *Handler {
	return &Handler{engine: e, metrics: metrics, logger: logger.Named("http")}
}

// Router returns the API with CORS, panic recovery, request metrics and /metrics.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(h.observe)
	r.Use(cors.Default().Handler)

	r.Get("/health", h.health)
	r.Get("/token", h.token)
	r.Route("/distributions", func(r chi.Router) {
		r.Get("/", h.distributions)
		r.Get("/{address}", h.distribution)
		r.Get("/{address}/claims/{account}", h.claim)
		r.Get("/{address}/proofs/{account}", h.proof)
	})
	r.Get("/factory/credits/{account}", h.credits)
	r.Handle("/metrics", promhttp.Handler())
	return r
}

func (h *Handler) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := ""
		if rc := chi.RouteContext(r.Context()); rc != nil {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		h.metrics.ObserveRequest(route, status, started)
	})
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	h.write(w, http.StatusOK, HealthStatus{Status: "healthy"})
}

func (h *Handler) token(w http.ResponseWriter, _ *http.Request) {
	h.write(w, http.StatusOK, h.engine.Token())
}

func (h *Handler) distributions(w http.ResponseWriter, _ *http.Request) {
	h.write(w, http.StatusOK, h.engine.Distributions())
}

func (h *Handler) distribution(w http.ResponseWriter, r *http.Request) {
	addr, ok := h.address(w, r, "address")
	if !ok {
		return
	}
	v, err := h.engine.Distribution(addr)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.write(w, http.StatusOK, v)
}

func (h *Handler) claim(w http.ResponseWriter, r *http.Request) {
	addr, ok := h.address(w, r, "address")
	if !ok {
		return
	}
	account, ok := h.address(w, r, "account")
	if !ok {
		return
	}
	v, err := h.engine.Claim(addr, account)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.write(w, http.StatusOK, v)
}

func (h *Handler) proof(w http.ResponseWriter, r *http.Request) {
	addr, ok := h.address(w, r, "address")
	if !ok {
		return
	}
	account, ok := h.address(w, r, "account")
	if !ok {
		return
	}
	v, err := h.engine.Proof(addr, account)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.write(w, http.StatusOK, v)
}

func (h *Handler) credits(w http.ResponseWriter, r *http.Request) {
	account, ok := h.address(w, r, "account")
	if !ok {
		return
	}
	h.write(w, http.StatusOK, CreditsView{Account: account, Credits: h.engine.Credits(account)})
}

func (h *Handler) address(w http.ResponseWriter, r *http.Request, param string) (common.Address, bool) {
	s := chi.URLParam(r, param)
	if !common.IsHexAddress(s) {
		h.write(w, http.StatusBadRequest, errorView{Error: "invalid " + param + " " + s})
		return common.Address{}, false
	}
	return common.HexToAddress(s), true
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, engine.ErrUnknownDistribution),
		errors.Is(err, engine.ErrNoCommitmentFile),
		errors.Is(err, merkle.ErrNotFound):
		h.write(w, http.StatusNotFound, errorView{Error: err.Error()})
	default:
		h.logger.Error("request failed", zap.Error(err))
		h.write(w, http.StatusInternalServerError, errorView{Error: "internal error"})
	}
}

func (h *Handler) write(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Warn("encode response", zap.Error(err))
	}
}

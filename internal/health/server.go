package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vietddude/commune/internal/core/domain"
	"github.com/vietddude/commune/internal/core/txerr"
	"github.com/vietddude/commune/internal/infra/prefs"
	"github.com/vietddude/commune/internal/infra/storage"
	"github.com/vietddude/commune/internal/txcore/encoder"
	"github.com/vietddude/commune/internal/txcore/reconcile"
)

// Coordinator is the action surface the server exposes.
type Coordinator interface {
	Submit(ctx context.Context, req reconcile.Request) reconcile.Outcome
	Active() []domain.PendingAction
	Refetch(ctx context.Context) error
}

// EntityLister lists the current view of an entity type.
type EntityLister interface {
	List(t domain.EntityType) []domain.OptimisticEntity
}

// PreferenceStore is the preferences surface the server exposes.
type PreferenceStore interface {
	Get(ctx context.Context, account, key string) (string, error)
	Set(ctx context.Context, account, key, value string) error
	All(ctx context.Context, account string) (map[string]string, error)
}

// NotificationLister returns recent notifications.
type NotificationLister interface {
	List() []domain.Notification
}

// Deps wires the server. Everything but Monitor is optional; routes whose
// dependency is missing answer 404.
type Deps struct {
	Monitor       *Monitor
	Coordinator   Coordinator
	View          EntityLister
	History       storage.ActionRepository
	Prefs         PreferenceStore
	Notifications NotificationLister
	Account       func() string
}

// Server provides HTTP endpoints for health monitoring and actions.
type Server struct {
	deps   Deps
	server *http.Server
	log    *slog.Logger
}

// NewServer creates a new server listening on port.
func NewServer(deps Deps, port int) *Server {
	s := &Server{deps: deps, log: slog.Default().With("component", "http")}
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Get("/health/detailed", s.handleDetailed)
	r.Handle("/metrics", promhttp.Handler())

	if s.deps.Coordinator != nil {
		r.Get("/actions", s.handleActive)
		r.Post("/actions", s.handleSubmit)
		r.Post("/view/refetch", s.handleRefetch)
	}
	if s.deps.History != nil {
		r.Get("/actions/history", s.handleHistory)
		r.Get("/actions/history/{id}", s.handleAction)
	}
	if s.deps.View != nil {
		r.Get("/view/{type}", s.handleView)
	}
	if s.deps.Notifications != nil {
		r.Get("/notifications", s.handleNotifications)
	}
	if s.deps.Prefs != nil && s.deps.Account != nil {
		r.Get("/prefs", s.handlePrefs)
		r.Put("/prefs/{key}", s.handleSetPref)
	}
	return r
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.log.Info("HTTP server listening", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Stop stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.deps.Monitor.CheckHealth(r.Context())
	status := http.StatusOK
	if report.SystemStatus == StatusCritical {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]string{"status": string(report.SystemStatus)})
}

func (s *Server) handleDetailed(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Monitor.CheckHealth(r.Context()))
}

func (s *Server) handleActive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Coordinator.Active())
}

type submitRequest struct {
	Kind    domain.ActionKind `json:"kind"`
	Args    map[string]string `json:"args"`
	Sponsor bool              `json:"sponsor"`
}

type outcomeResponse struct {
	Outcome   reconcile.OutcomeKind `json:"outcome"`
	Action    domain.PendingAction  `json:"action"`
	Entity    string                `json:"entity,omitempty"`
	Receipt   *domain.Receipt       `json:"receipt,omitempty"`
	Message   string                `json:"message"`
	ErrorKind string                `json:"error_kind,omitempty"`
	Retryable bool                  `json:"retryable,omitempty"`
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}

	// A client hanging up must not abandon a sent transaction.
	out := s.deps.Coordinator.Submit(context.WithoutCancel(r.Context()), reconcile.Request{
		Kind:    req.Kind,
		Args:    encoder.Args(req.Args),
		Sponsor: req.Sponsor,
	})

	resp := outcomeResponse{
		Outcome: out.Kind,
		Action:  out.Action,
		Receipt: out.Receipt,
		Message: out.Message,
	}
	if out.Entity.ID != "" {
		resp.Entity = out.Entity.String()
	}
	if out.Err != nil {
		resp.ErrorKind = txerr.Kind(out.Err)
		resp.Retryable = txerr.Retryable(out.Err)
	}
	writeJSON(w, outcomeStatus(out), resp)
}

func outcomeStatus(out reconcile.Outcome) int {
	switch out.Kind {
	case reconcile.OutcomeConfirmed:
		return http.StatusOK
	case reconcile.OutcomeRejected:
		return http.StatusConflict
	case reconcile.OutcomeCancelled:
		return http.StatusServiceUnavailable
	}
	switch txerr.Kind(out.Err) {
	case "validation", "encoding", "not_connected", "wrong_chain":
		return http.StatusUnprocessableEntity
	}
	return http.StatusBadGateway
}

func (s *Server) handleRefetch(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Coordinator.Refetch(r.Context()); err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := storage.ActionFilter{
		Kind:     domain.ActionKind(q.Get("kind")),
		Status:   domain.ActionStatus(q.Get("status")),
		TargetID: q.Get("target"),
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid limit %q", v))
			return
		}
		filter.Limit = n
	}
	actions, err := s.deps.History.ListActions(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, actions)
}

func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	a, err := s.deps.History.GetAction(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, storage.ErrActionNotFound) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	t := domain.EntityType(chi.URLParam(r, "type"))
	writeJSON(w, http.StatusOK, s.deps.View.List(t))
}

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Notifications.List())
}

func (s *Server) handlePrefs(w http.ResponseWriter, r *http.Request) {
	all, err := s.deps.Prefs.All(r.Context(), s.deps.Account())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, all)
}

func (s *Server) handleSetPref(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Value string `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	err := s.deps.Prefs.Set(r.Context(), s.deps.Account(), chi.URLParam(r, "key"), body.Value)
	if errors.Is(err, prefs.ErrInvalidKey) || errors.Is(err, prefs.ErrInvalidValue) {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/callkeeper/callkeeper/internal/call"
	"github.com/callkeeper/callkeeper/internal/config"
	"github.com/callkeeper/callkeeper/internal/events"
	"github.com/callkeeper/callkeeper/internal/keeper"
	"github.com/callkeeper/callkeeper/internal/observability"
	"github.com/callkeeper/callkeeper/internal/settings"
)

type Server struct {
	cfg      config.Config
	keeper   *keeper.Coordinator
	queue    *events.Queue
	metrics  *observability.Metrics
	upgrader websocket.Upgrader
}

func New(cfg config.Config, k *keeper.Coordinator, queue *events.Queue, metrics *observability.Metrics) *Server {
	return &Server{
		cfg:     cfg,
		keeper:  k,
		queue:   queue,
		metrics: metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Default: only allow browser websocket connections from
				// the same origin, so another site cannot attach to the
				// event stream if the coordinator is exposed beyond
				// localhost.
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					// Non-browser clients often omit Origin. Allow them.
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Post("/v1/provider/initialize", s.handleInitialize)
	r.Get("/v1/provider/config", s.handleProviderConfig)

	r.Post("/v1/calls/incoming", s.handleIncoming)
	r.Post("/v1/calls/outgoing", s.handleOutgoing)
	r.Post("/v1/calls/end-all", s.handleEndAll)
	r.Get("/v1/calls", s.handleListCalls)

	r.Post("/v1/calls/{id}/answer", s.handleAnswer)
	r.Post("/v1/calls/{id}/reject", s.handleReject)
	r.Post("/v1/calls/{id}/end", s.handleEnd)
	r.Post("/v1/calls/{id}/mute", s.handleMute)
	r.Post("/v1/calls/{id}/hold", s.handleHold)
	r.Post("/v1/calls/{id}/connected", s.handleConnected)
	r.Post("/v1/calls/{id}/report-end", s.handleReportEnd)
	r.Post("/v1/calls/{id}/display", s.handleDisplay)
	r.Post("/v1/calls/{id}/active", s.handleSetActive)

	r.Post("/v1/app/reachable", s.handleReachable)
	r.Post("/v1/app/available", s.handleAvailable)

	r.Get("/v1/events/ws", s.handleEventsWS)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"engine": s.keeper.EngineName(),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":      "ready",
		"initialized": s.keeper.Ready(),
	})
}

func (s *Server) handleInitialize(w http.ResponseWriter, r *http.Request) {
	var req settings.ProviderConfiguration
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if err := s.keeper.Initialize(r.Context(), req); err != nil {
		s.respondActionError(w, "initialize", err)
		return
	}
	cfg, err := s.keeper.CurrentSettings()
	if err != nil {
		s.respondActionError(w, "initialize", err)
		return
	}
	respondJSON(w, http.StatusOK, cfg)
}

func (s *Server) handleProviderConfig(w http.ResponseWriter, _ *http.Request) {
	cfg, err := s.keeper.CurrentSettings()
	if err != nil {
		respondError(w, http.StatusNotFound, "not_configured", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, cfg)
}

type incomingCallRequest struct {
	CallID     string `json:"callUUID"`
	Handle     string `json:"handle"`
	HandleType string `json:"handleType"`
	CallerName string `json:"localizedCallerName"`
	HasVideo   bool   `json:"hasVideo"`
}

func (s *Server) handleIncoming(w http.ResponseWriter, r *http.Request) {
	var req incomingCallRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	info, err := s.keeper.CreateIncoming(r.Context(), keeper.IncomingCall{
		ID:         req.CallID,
		Handle:     req.Handle,
		HandleType: req.HandleType,
		CallerName: req.CallerName,
		HasVideo:   req.HasVideo,
	})
	if err != nil {
		s.respondActionError(w, "incoming", err)
		return
	}
	respondJSON(w, http.StatusCreated, info)
}

type outgoingCallRequest struct {
	CallID     string `json:"callUUID"`
	Handle     string `json:"handle"`
	HandleType string `json:"handleType"`
	ContactID  string `json:"contactIdentifier"`
	HasVideo   bool   `json:"hasVideo"`
}

func (s *Server) handleOutgoing(w http.ResponseWriter, r *http.Request) {
	var req outgoingCallRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	info, err := s.keeper.CreateOutgoing(r.Context(), keeper.OutgoingCall{
		ID:         req.CallID,
		Handle:     req.Handle,
		HandleType: req.HandleType,
		ContactID:  req.ContactID,
		HasVideo:   req.HasVideo,
	})
	if err != nil {
		s.respondActionError(w, "outgoing", err)
		return
	}
	respondJSON(w, http.StatusCreated, info)
}

func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	info, err := s.keeper.Answer(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondActionError(w, "answer", err)
		return
	}
	respondJSON(w, http.StatusOK, info)
}

func (s *Server) handleReject(w http.ResponseWriter, r *http.Request) {
	if err := s.keeper.Reject(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.respondActionError(w, "reject", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleEnd(w http.ResponseWriter, r *http.Request) {
	if err := s.keeper.End(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.respondActionError(w, "end", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleEndAll(w http.ResponseWriter, r *http.Request) {
	failed := s.keeper.EndAll(r.Context())
	out := make(map[string]string, len(failed))
	for id, err := range failed {
		out[id] = err.Error()
	}
	respondJSON(w, http.StatusOK, map[string]any{"failed": out})
}

type muteRequest struct {
	Muted bool `json:"muted"`
}

func (s *Server) handleMute(w http.ResponseWriter, r *http.Request) {
	var req muteRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if err := s.keeper.SetMuted(r.Context(), chi.URLParam(r, "id"), req.Muted); err != nil {
		s.respondActionError(w, "mute", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type holdRequest struct {
	Hold bool `json:"hold"`
}

func (s *Server) handleHold(w http.ResponseWriter, r *http.Request) {
	var req holdRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if err := s.keeper.SetOnHold(r.Context(), chi.URLParam(r, "id"), req.Hold); err != nil {
		s.respondActionError(w, "hold", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleConnected(w http.ResponseWriter, r *http.Request) {
	if err := s.keeper.ReportConnected(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.respondActionError(w, "connected", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type reportEndRequest struct {
	Reason int `json:"reason"`
}

func (s *Server) handleReportEnd(w http.ResponseWriter, r *http.Request) {
	var req reportEndRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if err := s.keeper.ReportEnded(r.Context(), chi.URLParam(r, "id"), req.Reason); err != nil {
		s.respondActionError(w, "report_end", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type displayRequest struct {
	DisplayName string `json:"displayName"`
	Handle      string `json:"handle"`
}

func (s *Server) handleDisplay(w http.ResponseWriter, r *http.Request) {
	var req displayRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if err := s.keeper.UpdateDisplay(r.Context(), chi.URLParam(r, "id"), req.DisplayName, req.Handle); err != nil {
		s.respondActionError(w, "display", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSetActive(w http.ResponseWriter, r *http.Request) {
	if err := s.keeper.SetActive(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.respondActionError(w, "active", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleReachable(w http.ResponseWriter, _ *http.Request) {
	s.keeper.SetReachable()
	w.WriteHeader(http.StatusNoContent)
}

type availableRequest struct {
	Available bool `json:"available"`
}

func (s *Server) handleAvailable(w http.ResponseWriter, r *http.Request) {
	var req availableRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	s.keeper.SetAvailable(req.Available)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListCalls(w http.ResponseWriter, _ *http.Request) {
	calls := s.keeper.ActiveCalls()
	if calls == nil {
		calls = []call.Info{}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"calls":         calls,
		"inManagedCall": s.keeper.InManagedCall(),
	})
}

// respondActionError maps a coordinator error to its HTTP status and
// counts it.
func (s *Server) respondActionError(w http.ResponseWriter, action string, err error) {
	status, code := statusFor(err)
	s.metrics.ActionErrors.WithLabelValues(action, code).Inc()
	respondError(w, status, code, err.Error())
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, call.ErrNotInitialized):
		return http.StatusConflict, "not_initialized"
	case errors.Is(err, call.ErrDuplicateID):
		return http.StatusConflict, "duplicate_call_id"
	case errors.Is(err, call.ErrSessionNotFound):
		return http.StatusNotFound, "call_not_found"
	case errors.Is(err, call.ErrInvalidState):
		return http.StatusConflict, "invalid_state"
	case errors.Is(err, call.ErrOperationInProgress):
		return http.StatusConflict, "operation_in_progress"
	case errors.Is(err, call.ErrInvalidIdentifier):
		return http.StatusBadRequest, "invalid_call_id"
	case errors.Is(err, call.ErrEngineRejected):
		return http.StatusBadGateway, "engine_rejected"
	case errors.Is(err, call.ErrUnavailable):
		return http.StatusServiceUnavailable, "unavailable"
	case errors.Is(err, settings.ErrMissingAppName):
		return http.StatusBadRequest, "invalid_configuration"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, msg string) {
	respondJSON(w, status, errorResponse{Error: msg, Code: code})
}

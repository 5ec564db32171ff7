package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/punchamoorthee/creatorpay/internal/domain"
	"github.com/punchamoorthee/creatorpay/internal/models"
	"github.com/punchamoorthee/creatorpay/internal/service"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "creatorpay_http_requests_total",
		Help: "Total HTTP requests processed, labeled by status code",
	}, []string{"method", "endpoint", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "creatorpay_http_request_duration_seconds",
		Help:    "Latency distribution of HTTP requests",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}, []string{"method", "endpoint"})
)

const (
	headerUserID    = "X-User-ID"
	headerUserRole  = "X-User-Role"
	headerRequestID = "X-Request-ID"
)

type ctxKey int

const (
	actorKey ctxKey = iota
	requestIDKey
)

type Handler struct {
	svc    *service.Service
	logger *slog.Logger
}

func NewHandler(svc *service.Service, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger.With("module", "api", "layer", "transport")}
}

// NewRouter registers every route on a gorilla/mux router.
func NewRouter(h *Handler) *mux.Router {
	r := mux.NewRouter()
	r.Use(h.requestID, h.instrument)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/health", h.HealthCheckHandler).Methods(http.MethodGet)

	v1 := r.PathPrefix("/api/v1").Subrouter()
	v1.Use(h.identity)
	v1.HandleFunc("/wallets", h.OpenWalletHandler).Methods(http.MethodPost)
	v1.HandleFunc("/wallets/{ownerId}", h.GetWalletHandler).Methods(http.MethodGet)
	v1.HandleFunc("/wallets/{ownerId}/transactions", h.ListTransactionsHandler).Methods(http.MethodGet)

	v1.HandleFunc("/deposits/intents", h.CreateDepositIntentHandler).Methods(http.MethodPost)
	v1.HandleFunc("/deposits/confirm", h.ConfirmDepositHandler).Methods(http.MethodPost)
	v1.HandleFunc("/deposits/fail", h.FailDepositHandler).Methods(http.MethodPost)

	v1.HandleFunc("/campaigns", h.CreateCampaignHandler).Methods(http.MethodPost)
	v1.HandleFunc("/campaigns", h.ListCampaignsHandler).Methods(http.MethodGet)
	v1.HandleFunc("/campaigns/{id}", h.GetCampaignHandler).Methods(http.MethodGet)
	v1.HandleFunc("/campaigns/{id}/status", h.SetCampaignStatusHandler).Methods(http.MethodPut)
	v1.HandleFunc("/campaigns/{id}/apply", h.ApplyHandler).Methods(http.MethodPost)
	v1.HandleFunc("/campaigns/{id}/applications", h.ListApplicationsHandler).Methods(http.MethodGet)
	v1.HandleFunc("/applications/{id}/respond", h.RespondToApplicationHandler).Methods(http.MethodPut)
	v1.HandleFunc("/campaigns/{id}/submit", h.SubmitContentHandler).Methods(http.MethodPost)
	v1.HandleFunc("/submissions/{id}", h.GetSubmissionHandler).Methods(http.MethodGet)
	v1.HandleFunc("/submissions/{id}/review", h.ReviewSubmissionHandler).Methods(http.MethodPut)
	return r
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// instrument records request count and latency per route template.
func (h *Handler) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		endpoint := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if tpl, err := route.GetPathTemplate(); err == nil {
				endpoint = tpl
			}
		}
		timer := prometheus.NewTimer(httpRequestDuration.WithLabelValues(r.Method, endpoint))
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		timer.ObserveDuration()
		httpRequestsTotal.WithLabelValues(r.Method, endpoint, strconv.Itoa(rec.status)).Inc()
	})
}

func (h *Handler) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(headerRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(headerRequestID, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

// identity reads the caller asserted by the upstream auth middleware. A
// request without headers proceeds anonymously; a malformed header is
// rejected.
func (h *Handler) identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rawID, rawRole := r.Header.Get(headerUserID), r.Header.Get(headerUserRole)
		if rawID == "" && rawRole == "" {
			next.ServeHTTP(w, r)
			return
		}
		id, err := uuid.Parse(rawID)
		if err != nil {
			h.respondError(w, r, "identity", domain.Unauthorizedf("invalid %s header", headerUserID))
			return
		}
		role, err := domain.ParseRole(rawRole)
		if err != nil {
			h.respondError(w, r, "identity", domain.Unauthorizedf("invalid %s header", headerUserRole))
			return
		}
		actor := domain.Actor{UserID: id, Role: role}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), actorKey, actor)))
	})
}

func actorFrom(r *http.Request) (domain.Actor, error) {
	actor, ok := r.Context().Value(actorKey).(domain.Actor)
	if !ok {
		return domain.Actor{}, domain.Unauthorizedf("missing caller identity")
	}
	return actor, nil
}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInsufficientFunds):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, operation string, err error) {
	code := statusFor(err)
	kind := domain.KindName(err)
	msg := domain.Message(err)
	if code == http.StatusInternalServerError {
		msg = "internal server error"
	}

	attrs := []any{
		"operation", operation,
		"method", r.Method,
		"path", r.URL.Path,
		"status_code", code,
		"error_kind", kind,
		"request_id", requestIDFrom(r.Context()),
		"error", err,
	}
	if code >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "request failed", attrs...)
	} else {
		h.logger.WarnContext(r.Context(), "request rejected", attrs...)
	}

	respondWithJSON(w, code, models.ErrorResponse{Error: models.ErrorBody{Kind: kind, Message: msg}})
}

func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil {
		_ = json.NewEncoder(w).Encode(payload)
	}
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return domain.Validationf("malformed JSON body: %v", err)
	}
	return nil
}

func pathID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(mux.Vars(r)[name])
	if err != nil {
		return uuid.Nil, domain.Validationf("invalid %s %q", name, mux.Vars(r)[name])
	}
	return id, nil
}

func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, domain.Validationf("%s must be a non-negative integer", name)
	}
	return n, nil
}

func (h *Handler) HealthCheckHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := h.svc.Ping(ctx); err != nil {
		h.logger.ErrorContext(ctx, "health check failed", "operation", "health", "error", err)
		respondWithJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

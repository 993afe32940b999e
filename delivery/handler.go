package delivery

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"storefront/apperr"
	"storefront/delivery/model"
	"storefront/metrics"
)

const maxBodyBytes = 1_048_576

// HTTPEndpoint holds a reference to the core application.
type HTTPEndpoint struct {
	app AppDependencies
}

func (h *HTTPEndpoint) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"phase":  h.app.Session().Phase().String(),
	})
}

// requestMetrics records the latency of every request by route pattern.
func requestMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.RecordRequest(route, strconv.Itoa(status), time.Since(start).Seconds())
	})
}

// decodeBody reads a JSON body into dst. An empty body leaves dst untouched.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, model.ErrorResponse{Error: model.ErrorDetail{
			Code:      "BAD_REQUEST",
			Message:   "invalid request body",
			ErrorType: "REQUEST_ERROR",
		}})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// writeError renders err in the standard error envelope with a status
// chosen from its kind.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperr.KindOf(err)
	status, errType := statusOf(kind)

	detail := model.ErrorDetail{
		Code:      string(kind),
		Message:   apperr.Message(err),
		ErrorType: errType,
	}
	var vErr *apperr.ValidationError
	if errors.As(err, &vErr) && vErr.Field != "" {
		detail.Attribute = map[string]any{"field": vErr.Field}
	}

	if status >= http.StatusInternalServerError {
		slog.Error("request failed",
			"path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()),
			"kind", kind,
			"error", err)
	}
	writeJSON(w, status, model.ErrorResponse{Error: detail})
}

func statusOf(kind apperr.Kind) (int, string) {
	switch kind {
	case apperr.KindValidation:
		return http.StatusBadRequest, "VALIDATION_ERROR"
	case apperr.KindWrongPhase, apperr.KindStaleResponse:
		return http.StatusConflict, "STATE_ERROR"
	case apperr.KindOTPThrottled:
		return http.StatusTooManyRequests, "RATE_LIMIT_ERROR"
	case apperr.KindInvalidCredentials, apperr.KindInvalidOTP,
		apperr.KindTokenRefreshFailed, apperr.KindTokenExpired:
		return http.StatusUnauthorized, "AUTH_ERROR"
	case apperr.KindNotInitialized:
		return http.StatusServiceUnavailable, "STATE_ERROR"
	case apperr.KindAddressFetch, apperr.KindAddressCreate, apperr.KindOrderSubmit,
		apperr.KindPaymentURL, apperr.KindNetworkFailure:
		return http.StatusBadGateway, "UPSTREAM_ERROR"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR"
	}
}

package httpx

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"comanda/internal/dto"
	apperrors "comanda/internal/errors"
)

const (
	HeaderTenantID = "X-Tenant-ID"
	HeaderActorID  = "X-Actor-ID"
	HeaderAPIKey   = "X-API-Key"
	HeaderTraceID  = "X-Trace-ID"
)

type ctxKey int

const (
	tenantKey ctxKey = iota
	actorKey
	traceKey
)

// Tenant requires X-Tenant-ID and stores it with the actor and a trace id in
// the request context. Identity is issued by the gateway and trusted as is.
func Tenant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID := r.Header.Get(HeaderTraceID)
		if traceID == "" {
			traceID = uuid.New().String()
		}
		ctx := context.WithValue(r.Context(), traceKey, traceID)

		tenantID := r.Header.Get(HeaderTenantID)
		if tenantID == "" {
			writeError(w, traceID, apperrors.NewValidationError("missing tenant", apperrors.ValidationDetail{
				Field:   HeaderTenantID,
				Message: "header is required",
			}))
			return
		}
		ctx = context.WithValue(ctx, tenantKey, tenantID)
		ctx = context.WithValue(ctx, actorKey, r.Header.Get(HeaderActorID))

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// APIKey rejects requests whose X-API-Key does not match. An empty key disables the check.
func APIKey(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if key != "" && subtle.ConstantTimeCompare([]byte(r.Header.Get(HeaderAPIKey)), []byte(key)) != 1 {
				writeError(w, TraceID(r.Context()), apperrors.NewUnauthorizedError("invalid api key"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func TenantID(ctx context.Context) string {
	s, _ := ctx.Value(tenantKey).(string)
	return s
}

func ActorID(ctx context.Context) string {
	s, _ := ctx.Value(actorKey).(string)
	return s
}

func TraceID(ctx context.Context) string {
	s, _ := ctx.Value(traceKey).(string)
	return s
}

// Logger returns logger tagged with the request's trace and tenant.
func Logger(r *http.Request, logger *zap.Logger) *zap.Logger {
	return logger.With(
		zap.String("traceId", TraceID(r.Context())),
		zap.String("tenantId", TenantID(r.Context())),
	)
}

// Decode reads a JSON body into v, returning a ValidationError on bad input.
func Decode(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperrors.NewValidationError("invalid JSON body", apperrors.ValidationDetail{
			Field:   "body",
			Message: "request body must be valid JSON",
		})
	}
	return nil
}

// DecodeOptional is Decode for endpoints whose body may be omitted.
func DecodeOptional(r *http.Request, v interface{}) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return apperrors.NewValidationError("invalid JSON body", apperrors.ValidationDetail{
		Field:   "body",
		Message: "request body must be valid JSON",
	})
}

func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	// Headers are already sent; nothing else can be reported to the client.
	_ = json.NewEncoder(w).Encode(data)
}

// WriteError maps err to its structured response. Internal errors are logged
// and their message is hidden from the caller.
func WriteError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	traceID := TraceID(r.Context())
	if apperrors.Code(err) == apperrors.CodeInternal {
		Logger(r, logger).Error("unexpected error", zap.Error(err))
		err = apperrors.NewInternalError("an unexpected error occurred", nil)
	}
	writeError(w, traceID, err)
}

func writeError(w http.ResponseWriter, traceID string, err error) {
	code := apperrors.Code(err)
	resp := dto.ErrorResponse{
		TraceID:   traceID,
		Code:      code,
		Error:     apperrors.Name(code),
		Message:   err.Error(),
		Timestamp: time.Now().UTC(),
	}
	if ve, ok := apperrors.IsValidationError(err); ok {
		resp.Details = ve.Details
	}
	WriteJSON(w, apperrors.HTTPStatus(code), resp)
}

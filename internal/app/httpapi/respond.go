package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"hive/internal/domain"
	"hive/internal/infra/telemetry"
)

const (
	maxBodyBytes  = 1 << 20
	// maxTTLSeconds keeps an explicit TTL representable as a time.Duration.
	maxTTLSeconds = math.MaxInt64 / int64(time.Second)
)

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

// writeJSON answers with an INTERNAL error when body cannot be encoded.
func (a *API) writeJSON(w http.ResponseWriter, r *http.Request, status int, body any) {
	raw, err := json.Marshal(body)
	if err != nil {
		telemetry.LoggerWithRequest(r.Context(), a.logger).Error("encode response failed",
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Error(err),
		)
		status = http.StatusInternalServerError
		raw, _ = json.Marshal(errorBody{Error: errorDetail{
			Code:    string(domain.CodeInternal),
			Message: "response could not be encoded",
		}})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(append(raw, '\n')); err != nil {
		telemetry.LoggerWithRequest(r.Context(), a.logger).Debug("write response failed", zap.Error(err))
	}
}

func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code, ok := domain.CodeFrom(err)
	if !ok {
		code = domain.CodeInternal
	}
	message := err.Error()
	var domainErr *domain.Error
	if errors.As(err, &domainErr) && domainErr.Message != "" {
		message = domainErr.Message
	}
	a.writeJSON(w, r, statusFor(code), errorBody{Error: errorDetail{Code: string(code), Message: message}})
}

func statusFor(code domain.ErrorCode) int {
	switch code {
	case domain.CodeInvalidArgument:
		return http.StatusBadRequest
	case domain.CodeNotFound:
		return http.StatusNotFound
	case domain.CodePermissionDenied:
		return http.StatusForbidden
	case domain.CodeFailedPrecond:
		return http.StatusConflict
	case domain.CodeResourceExhausted:
		return http.StatusTooManyRequests
	case domain.CodeUnavailable, domain.CodeCanceled:
		return http.StatusServiceUnavailable
	case domain.CodeDeadlineExceeded:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func decodeBody(r *http.Request, out any) error {
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := decoder.Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return domain.E(domain.CodeInvalidArgument, "decode body", fmt.Sprintf("invalid JSON body: %v", err), domain.ErrInvalidRequest)
	}
	return nil
}

func resolveOptions(r *http.Request) (domain.ResolveOptions, error) {
	query := r.URL.Query()
	var opts domain.ResolveOptions
	if raw := strings.TrimSpace(query.Get("bypassCache")); raw != "" {
		bypass, err := strconv.ParseBool(raw)
		if err != nil {
			return opts, domain.E(domain.CodeInvalidArgument, "parse query", "bypassCache must be a boolean", domain.ErrInvalidRequest)
		}
		opts.BypassCache = bypass
	}
	if raw := strings.TrimSpace(query.Get("ttlSeconds")); raw != "" {
		seconds, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || seconds < 0 || seconds > maxTTLSeconds {
			return opts, domain.E(domain.CodeInvalidArgument, "parse query",
				fmt.Sprintf("ttlSeconds must be an integer between 0 and %d", maxTTLSeconds), domain.ErrInvalidRequest)
		}
		opts.TTL = time.Duration(seconds) * time.Second
	}
	return opts, nil
}

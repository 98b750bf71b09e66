package endpoints

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/jackzampolin/papercheck/internal/analysis"
	"github.com/jackzampolin/papercheck/internal/pages"
	"github.com/jackzampolin/papercheck/internal/svcctx"
)

// maxBodyBytes bounds JSON request bodies. Base64 pages inflate by a third.
const maxBodyBytes = 64 << 20

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// ErrorResponse is a standard error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// decodeJSON reads a bounded JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return fmt.Errorf("%w: body exceeds %d bytes", analysis.ErrInvalidRequest, tooBig.Limit)
		}
		return fmt.Errorf("%w: %v", analysis.ErrInvalidRequest, err)
	}
	return nil
}

// analysisStatus maps pipeline errors onto HTTP status codes.
func analysisStatus(err error) (int, string) {
	switch {
	case errors.Is(err, analysis.ErrInvalidRequest), errors.Is(err, pages.ErrInvalidPage):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, analysis.ErrServiceUnavailable):
		return http.StatusServiceUnavailable, "unavailable"
	case errors.Is(err, analysis.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	case errors.Is(err, analysis.ErrStructuralParse):
		return http.StatusBadGateway, "parse_error"
	case errors.Is(err, analysis.ErrOracle):
		return http.StatusBadGateway, "oracle_error"
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable, "canceled"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

// writeAnalysisError logs err and writes it with its mapped status.
func writeAnalysisError(w http.ResponseWriter, r *http.Request, entry string, err error) {
	status, kind := analysisStatus(err)
	logger := svcctx.LoggerFrom(r.Context())
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "entry", entry, "kind", kind, "error", err)
	} else {
		logger.Info("request rejected", "entry", entry, "kind", kind, "error", err)
	}
	writeJSON(w, status, ErrorResponse{Error: err.Error(), Kind: kind})
}

package api

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"shokucho.jp/portal/internal/apperr"
)

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details any    `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any, logger zerolog.Logger) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error().Err(err).Msg("failed to encode JSON response")
	}
}

// writeError maps err to a status and JSON body. Anything that is not an
// *apperr.Error becomes a 500 and is logged.
func writeError(w http.ResponseWriter, err error, logger zerolog.Logger) {
	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		appErr = apperr.Wrap(err, apperr.CodeInternal, "internal server error")
	}

	status := appErr.HTTPStatus()
	if status >= http.StatusInternalServerError {
		logger.Error().Err(err).Str("code", string(appErr.Code)).Msg("request failed")
	} else {
		logger.Debug().Err(err).Str("code", string(appErr.Code)).Msg("request rejected")
	}

	writeJSON(w, status, ErrorResponse{
		Error:   appErr.Message,
		Code:    string(appErr.Code),
		Details: appErr.Details,
	}, logger)
}

// writeAttachment sends data as a download. Non-ASCII filenames are encoded
// with RFC 2231 (filename*=utf-8''...).
func writeAttachment(w http.ResponseWriter, filename, contentType string, data []byte) {
	disposition := mime.FormatMediaType("attachment", map[string]string{"filename": filename})
	if disposition == "" {
		disposition = "attachment"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", disposition)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"mercator-hq/courier/pkg/export"
	"mercator-hq/courier/pkg/telemetry/logging"
)

// ErrorResponse is the JSON body of every API error.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
	Field string `json:"field,omitempty"`
}

// errorStatus maps a domain error to an HTTP status and machine code.
func errorStatus(err error) (int, ErrorResponse) {
	var (
		verrs validator.ValidationErrors
		ferr  *export.FormatError
		terr  *export.TransferError
		rerr  *export.RecordStoreError
		rqerr *requestError
	)
	switch {
	case errors.As(err, &rqerr):
		return http.StatusBadRequest, ErrorResponse{Error: rqerr.msg, Code: "bad_request", Field: rqerr.field}
	case errors.As(err, &verrs):
		fe := verrs[0]
		return http.StatusBadRequest, ErrorResponse{
			Error: "invalid value for " + strings.ToLower(fe.Field()) + " (" + fe.Tag() + ")",
			Code:  "validation_failed",
			Field: strings.ToLower(fe.Field()),
		}
	case errors.Is(err, export.ErrJobNotFound):
		return http.StatusNotFound, ErrorResponse{Error: err.Error(), Code: "job_not_found"}
	case errors.Is(err, export.ErrFormatNotFound):
		return http.StatusNotFound, ErrorResponse{Error: err.Error(), Code: "format_not_found"}
	case errors.Is(err, export.ErrFormatInUse):
		return http.StatusConflict, ErrorResponse{Error: err.Error(), Code: "format_in_use"}
	case errors.Is(err, export.ErrJobLocked):
		return http.StatusConflict, ErrorResponse{Error: err.Error(), Code: "job_locked"}
	case errors.As(err, &ferr):
		return http.StatusUnprocessableEntity, ErrorResponse{Error: ferr.Error(), Code: "invalid_format", Field: ferr.Field}
	case errors.As(err, &terr):
		return http.StatusBadGateway, ErrorResponse{Error: terr.Error(), Code: "transfer_failed"}
	case errors.As(err, &rerr):
		return http.StatusServiceUnavailable, ErrorResponse{Error: "record store unavailable", Code: "record_store_unavailable"}
	default:
		return http.StatusInternalServerError, ErrorResponse{Error: "internal error", Code: "internal_error"}
	}
}

// respondError logs err with request context and writes the mapped response.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := errorStatus(err)
	log := logging.FromContext(r.Context())
	if status >= 500 {
		log.Error("request error", "path", r.URL.Path, "status", status, "error", err)
	} else {
		log.Debug("request rejected", "path", r.URL.Path, "status", status, "error", err)
	}
	writeJSON(w, status, body)
}

// requestError is a malformed request that never reached the domain layer.
type requestError struct {
	field string
	msg   string
}

func (e *requestError) Error() string { return e.msg }

func badRequest(field, msg string) error {
	return &requestError{field: field, msg: msg}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return badRequest("", "invalid JSON body: "+err.Error())
	}
	return nil
}

const maxBodyBytes = 4 << 20

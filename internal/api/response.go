package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"tickrun/internal/task"
	"tickrun/internal/task/scheduler"
)

const maxRequestBodySize = 1 << 20

// Response is the envelope of every successful reply that carries a body.
type Response struct {
	Data any `json:"data"`
}

// ErrorResponse is the envelope of every error reply.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

const (
	CodeInvalidJSON    = "invalid_json"
	CodeInvalidRequest = "invalid_request"
	CodeInvalidTask    = "invalid_task"
	CodeNotFound       = "not_found"
	CodeConflict       = "conflict"
	CodeInternal       = "internal"
)

// requestError is a client mistake detected by the handler itself.
type requestError struct {
	code string
	msg  string
}

func (e *requestError) Error() string { return e.msg }

func badRequest(code, msg string) error { return &requestError{code: code, msg: msg} }

func writeJSON(w http.ResponseWriter, status int, data any) {
	body, err := json.Marshal(data)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(ErrorResponse{Error: ErrorDetail{Code: CodeInternal, Message: "failed to marshal response"}})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, Response{Data: data})
}

// statusFor maps service errors onto HTTP. Unknown errors are 500 and their
// text is not echoed back.
func statusFor(err error) (int, ErrorDetail) {
	var re *requestError
	switch {
	case errors.As(err, &re):
		return http.StatusBadRequest, ErrorDetail{Code: re.code, Message: re.msg}
	case errors.Is(err, scheduler.ErrNotFound):
		return http.StatusNotFound, ErrorDetail{Code: CodeNotFound, Message: err.Error()}
	case errors.Is(err, task.ErrInvalid):
		return http.StatusBadRequest, ErrorDetail{Code: CodeInvalidTask, Message: err.Error()}
	case errors.Is(err, scheduler.ErrExists):
		return http.StatusConflict, ErrorDetail{Code: CodeConflict, Message: err.Error()}
	default:
		return http.StatusInternalServerError, ErrorDetail{Code: CodeInternal, Message: "an unexpected error occurred"}
	}
}

// decodeJSON reads one JSON value into dst with a size cap and strict fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return mapDecodeError(err)
	}
	if dec.More() {
		return badRequest(CodeInvalidJSON, "request body must contain a single JSON object")
	}
	return nil
}

func mapDecodeError(err error) error {
	var (
		maxBytes *http.MaxBytesError
		syntax   *json.SyntaxError
		typeErr  *json.UnmarshalTypeError
	)
	switch {
	case errors.As(err, &maxBytes):
		return badRequest(CodeInvalidJSON, "request body must not exceed 1MB")
	case errors.As(err, &syntax):
		return badRequest(CodeInvalidJSON, "malformed JSON in request body")
	case errors.As(err, &typeErr):
		return badRequest(CodeInvalidJSON, "invalid value for field "+typeErr.Field)
	case strings.HasPrefix(err.Error(), "json: unknown field"):
		return badRequest(CodeInvalidJSON, "unknown field in request body: "+strings.TrimPrefix(err.Error(), "json: unknown field "))
	case errors.Is(err, io.EOF):
		return badRequest(CodeInvalidJSON, "request body must not be empty")
	default:
		return badRequest(CodeInvalidJSON, "invalid request body")
	}
}

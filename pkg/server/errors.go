package server

import (
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/vango-dev/treediff/internal/errors"
	"github.com/vango-dev/treediff/pkg/protocol"
)

// errorResponse is the body of every failed HTTP request.
type errorResponse struct {
	Error *errors.Error `json:"error"`
}

// statusFor maps an error to its HTTP status.
func statusFor(err error) int {
	var e *errors.Error
	if !stderrors.As(err, &e) {
		return http.StatusInternalServerError
	}
	switch e.Code {
	case errors.CodeTooLarge:
		return http.StatusRequestEntityTooLarge
	case errors.CodeBadRequest, errors.CodeSnapshotSyntax, errors.CodeInvalidNode:
		return http.StatusBadRequest
	case errors.CodeRootMissing, errors.CodeDanglingChild, errors.CodeSharedChild,
		errors.CodeKeyMismatch, errors.CodeDuplicateKey:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// wireCode maps an error to the code carried by an Error frame.
func wireCode(err error) protocol.ErrorCode {
	var e *errors.Error
	if stderrors.As(err, &e) && e.Code == errors.CodeTooLarge {
		return protocol.ErrTooLarge
	}
	if isRequestError(err) {
		return protocol.ErrInvalidRequest
	}
	return protocol.ErrorCodeFor(err)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	e := errors.FromReconcile(err)
	writeJSON(w, statusFor(e), errorResponse{Error: e})
}

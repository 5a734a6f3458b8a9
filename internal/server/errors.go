package server

import (
	"database/sql"
	"errors"
	"net/http"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/alfredjeanlab/specs/internal/model"
)

// httpStatus maps an engine error to the HTTP status reported to clients.
func httpStatus(err error) int {
	var ie inputError
	var ve *model.ValidationError
	switch {
	case errors.As(err, &ie):
		return http.StatusBadRequest
	case errors.Is(err, sql.ErrNoRows), model.IsUnknownType(err):
		return http.StatusNotFound
	case model.IsDuplicateAttribute(err):
		return http.StatusConflict
	case model.IsConstraintViolation(err), errors.As(err, &ve):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// grpcCode maps an engine error to a gRPC status code.
func grpcCode(err error) codes.Code {
	var ie inputError
	var ve *model.ValidationError
	switch {
	case errors.As(err, &ie), errors.As(err, &ve):
		return codes.InvalidArgument
	case errors.Is(err, sql.ErrNoRows), model.IsUnknownType(err):
		return codes.NotFound
	case model.IsDuplicateAttribute(err):
		return codes.AlreadyExists
	case model.IsConstraintViolation(err):
		return codes.FailedPrecondition
	default:
		return codes.Internal
	}
}

// writeEngineError writes err with the status matching its kind.
func writeEngineError(w http.ResponseWriter, err error) {
	writeError(w, httpStatus(err), err.Error())
}

// grpcError wraps err in a gRPC status.
func grpcError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	return status.Error(grpcCode(err), err.Error())
}

package api

import (
	"errors"
	"net/http"

	repository "github.com/okian/ladder/internal/adapters/repository"
	service "github.com/okian/ladder/internal/app"
	"github.com/okian/ladder/internal/domain/lifecycle"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest   = errors.New("bad request")
	ErrBackpressure = errors.New("backpressure")
)

// statusFor translates upstream errors into an HTTP status and a stable
// machine-readable code. Validation problems map to 400, missing records
// to 404, and state conflicts to 409; anything unrecognized is a 500.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, service.ErrInvalidUsername),
		errors.Is(err, service.ErrInvalidCategory),
		errors.Is(err, lifecycle.ErrInvalidScore),
		errors.Is(err, lifecycle.ErrUnknownStatus):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, service.ErrPlayerBanned):
		return http.StatusForbidden, "banned"
	case errors.Is(err, repository.ErrNotFound),
		errors.Is(err, lifecycle.ErrNotInMatch),
		errors.Is(err, lifecycle.ErrTeamNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, repository.ErrConflict),
		errors.Is(err, service.ErrPlayerBusy),
		errors.Is(err, lifecycle.ErrMatchNotActive),
		errors.Is(err, lifecycle.ErrInvalidTransition),
		errors.Is(err, lifecycle.ErrResultIncomplete):
		return http.StatusConflict, "conflict"
	case errors.Is(err, ErrBackpressure):
		return http.StatusTooManyRequests, "backpressure"
	}
	return http.StatusInternalServerError, "internal_error"
}

// writeServiceError is the common translation path for handler failures.
func writeServiceError(w http.ResponseWriter, err error) {
	status, code := statusFor(err)
	writeError(w, status, code, err)
}

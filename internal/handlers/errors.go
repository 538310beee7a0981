package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/ivalora/gadget-rms/internal/inventory"
	"github.com/ivalora/gadget-rms/internal/locker"
	"github.com/ivalora/gadget-rms/internal/opname"
	"github.com/ivalora/gadget-rms/internal/services/notification"
	opnamesvc "github.com/ivalora/gadget-rms/internal/services/opname"
	"github.com/ivalora/gadget-rms/internal/services/printer"
	"github.com/ivalora/gadget-rms/internal/store"
)

// Standard error codes
const (
	CodeValidationError    = "VALIDATION_ERROR"
	CodeUnprocessable      = "UNPROCESSABLE"
	CodeInvalidState       = "INVALID_STATE"
	CodeNotFound           = "RESOURCE_NOT_FOUND"
	CodeConflict           = "CONFLICT"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeForbidden          = "FORBIDDEN"
	CodeUpstream           = "UPSTREAM_ERROR"
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	CodeInternalError      = "INTERNAL_ERROR"
)

// AppError is the JSON error body of every failed request.
type AppError struct {
	Code       string                 `json:"code"`
	Message    string                 `json:"message"`
	Details    map[string]interface{} `json:"details,omitempty"`
	HTTPStatus int                    `json:"-"`
	Err        error                  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error { return e.Err }

// WithDetail adds a single detail to the error
func (e *AppError) WithDetail(key string, value interface{}) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

func newAppError(code, message string, status int) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: status}
}

func errBadRequest(message string) *AppError {
	return newAppError(CodeValidationError, message, http.StatusBadRequest)
}

func errNotFound(resource string) *AppError {
	return newAppError(CodeNotFound, resource+" not found", http.StatusNotFound)
}

// toAppError maps domain and infrastructure errors onto HTTP errors.
func toAppError(err error) *AppError {
	var app *AppError
	if errors.As(err, &app) {
		return app
	}

	if errors.Is(err, opnamesvc.ErrInventory) {
		return &AppError{Code: CodeUpstream, Message: "inventory update failed", HTTPStatus: http.StatusBadGateway, Err: err}
	}

	if ve, ok := opname.AsValidation(err); ok {
		e := &AppError{Code: CodeValidationError, Message: ve.Error(), HTTPStatus: http.StatusBadRequest, Err: err}
		switch ve.Kind {
		case opname.KindApproverNotAuthorized:
			e.Code, e.HTTPStatus = CodeForbidden, http.StatusForbidden
		case opname.KindUnresolvedDiscrepancies, opname.KindActionNotPermitted:
			e.Code, e.HTTPStatus = CodeUnprocessable, http.StatusUnprocessableEntity
		}
		e.WithDetail("kind", ve.Kind)
		if len(ve.ItemIDs) > 0 {
			e.WithDetail("item_ids", ve.ItemIDs)
		}
		return e
	}

	if se, ok := opname.AsState(err); ok {
		e := &AppError{Code: CodeInvalidState, Message: se.Error(), HTTPStatus: http.StatusConflict, Err: err}
		e.WithDetail("kind", se.Kind)
		e.WithDetail("status", string(se.From))
		if se.To != "" {
			e.WithDetail("requested", string(se.To))
		}
		return e
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		e := &AppError{Code: CodeValidationError, Message: "invalid request", HTTPStatus: http.StatusBadRequest, Err: err}
		for _, fe := range verrs {
			e.WithDetail(strings.ToLower(fe.Field()), fe.Tag())
		}
		return e
	}

	switch {
	case errors.Is(err, store.ErrNotFound):
		return errNotFound("session")
	case errors.Is(err, opname.ErrItemNotFound):
		return errNotFound("item")
	case errors.Is(err, inventory.ErrUnitNotFound):
		return errNotFound("unit")
	case errors.Is(err, notification.ErrNotFound):
		return errNotFound("notification")
	case errors.Is(err, printer.ErrNoUnits):
		return errBadRequest("no units to print")
	case errors.Is(err, store.ErrConflict):
		return &AppError{Code: CodeConflict, Message: "session was changed concurrently, reload and retry", HTTPStatus: http.StatusConflict, Err: err}
	case errors.Is(err, store.ErrLocked):
		return &AppError{Code: CodeInvalidState, Message: "session is locked", HTTPStatus: http.StatusConflict, Err: err}
	case errors.Is(err, locker.ErrBusy):
		return &AppError{Code: CodeConflict, Message: "session is busy, retry shortly", HTTPStatus: http.StatusConflict, Err: err}
	}

	return &AppError{Code: CodeInternalError, Message: "internal server error", HTTPStatus: http.StatusInternalServerError, Err: err}
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError sends an AppError body for err and logs server-side failures.
func (r *Router) respondError(w http.ResponseWriter, req *http.Request, err error) {
	app := toAppError(err)
	if app.HTTPStatus >= http.StatusInternalServerError {
		r.log.WithError(err).WithField("path", req.URL.Path).Error("request failed")
	}
	respondJSON(w, app.HTTPStatus, app)
}

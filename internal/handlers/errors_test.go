package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/ivalora/gadget-rms/internal/inventory"
	"github.com/ivalora/gadget-rms/internal/locker"
	"github.com/ivalora/gadget-rms/internal/opname"
	opnamesvc "github.com/ivalora/gadget-rms/internal/services/opname"
	"github.com/ivalora/gadget-rms/internal/store"
	"github.com/stretchr/testify/assert"
)

func TestToAppError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"unresolved", &opname.ValidationError{Kind: opname.KindUnresolvedDiscrepancies, ItemIDs: []string{"1"}}, http.StatusUnprocessableEntity, CodeUnprocessable},
		{"not permitted", &opname.ValidationError{Kind: opname.KindActionNotPermitted}, http.StatusUnprocessableEntity, CodeUnprocessable},
		{"approver", &opname.ValidationError{Kind: opname.KindApproverNotAuthorized}, http.StatusForbidden, CodeForbidden},
		{"duplicate expected", &opname.ValidationError{Kind: opname.KindDuplicateExpectedIdentifier}, http.StatusBadRequest, CodeValidationError},
		{"state", &opname.StateError{Kind: opname.KindInvalidTransition, From: opname.StatusDraft, To: opname.StatusApproved}, http.StatusConflict, CodeInvalidState},
		{"inventory", fmt.Errorf("%w: write_off 111: %w", opnamesvc.ErrInventory, errors.New("timeout")), http.StatusBadGateway, CodeUpstream},
		{"session missing", fmt.Errorf("get: %w", store.ErrNotFound), http.StatusNotFound, CodeNotFound},
		{"item missing", opname.ErrItemNotFound, http.StatusNotFound, CodeNotFound},
		{"unit missing", inventory.ErrUnitNotFound, http.StatusNotFound, CodeNotFound},
		{"version conflict", store.ErrConflict, http.StatusConflict, CodeConflict},
		{"busy", fmt.Errorf("lock session: %w", locker.ErrBusy), http.StatusConflict, CodeConflict},
		{"locked", store.ErrLocked, http.StatusConflict, CodeInvalidState},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, CodeInternalError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := toAppError(tt.err)
			assert.Equal(t, tt.status, e.HTTPStatus)
			assert.Equal(t, tt.code, e.Code)
		})
	}
}

func TestToAppError_StateDetails(t *testing.T) {
	e := toAppError(&opname.StateError{Kind: opname.KindOperationNotAllowed, Op: "scan", From: opname.StatusLocked})
	assert.Equal(t, opname.StatusLocked, opname.SessionStatus(e.Details["status"].(string)))
	_, ok := e.Details["requested"]
	assert.False(t, ok)
}

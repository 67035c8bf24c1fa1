package handlers

import (
	"errors"
	"fmt"
	"testing"

	"github.com/edlight123/eventhaiti-payouts/services"
	"github.com/gofiber/fiber/v2"
)

func TestErrorBodyMapping(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{&services.ValidationError{Field: "amount", Message: "must be positive"}, fiber.StatusBadRequest, "validation_error"},
		{&services.NotFoundError{Resource: "payout"}, fiber.StatusNotFound, "not_found"},
		{&services.ConflictError{Resource: "payout", Action: "decline", Current: "completed"}, fiber.StatusConflict, "conflict"},
		{&services.ConflictError{Kind: services.ErrAlreadyPaid, Resource: "payout", Action: "mark paid", Current: "completed"}, fiber.StatusConflict, "already_paid"},
		{&services.AccountNotActiveError{Status: "on_hold"}, fiber.StatusBadRequest, "account_not_active"},
		{fmt.Errorf("tx: %w", services.ErrRetryable), fiber.StatusServiceUnavailable, "retryable"},
		{services.ErrForbidden, fiber.StatusForbidden, "forbidden"},
		{errors.New("boom"), fiber.StatusInternalServerError, "internal_error"},
	}
	for _, tt := range tests {
		status, body := errorBody(tt.err)
		if status != tt.status || body["code"] != tt.code {
			t.Fatalf("%v: expected %d/%s, got %d/%v", tt.err, tt.status, tt.code, status, body["code"])
		}
	}
}

func TestErrorBodyHidesInternalMessages(t *testing.T) {
	_, body := errorBody(errors.New("pq: relation does not exist"))
	if body["message"] != "Internal server error" {
		t.Fatalf("internal error leaked: %v", body["message"])
	}
}

func TestErrorBodyDiagnostics(t *testing.T) {
	_, body := errorBody(&services.ConflictError{Resource: "payout", Action: "decline", Current: "completed"})
	if body["current_status"] != "completed" || body["message"] != "cannot decline: payout is completed" {
		t.Fatalf("unexpected conflict body %v", body)
	}
	_, body = errorBody(&services.PayoutInProgressError{PayoutID: "p-1", Status: "pending"})
	if body["payout_id"] != "p-1" {
		t.Fatalf("expected payout id diagnostic, got %v", body)
	}
}

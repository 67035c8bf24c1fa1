package handlers

import (
	"errors"

	"github.com/edlight123/eventhaiti-payouts/services"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
)

type errorMapping struct {
	target error
	status int
	code   string
}

// Order matters: typed errors unwrap to one sentinel each, so the first match wins.
var errorMappings = []errorMapping{
	{services.ErrValidation, fiber.StatusBadRequest, "validation_error"},
	{services.ErrInsufficientBalance, fiber.StatusBadRequest, "insufficient_balance"},
	{services.ErrPayoutInProgress, fiber.StatusBadRequest, "payout_in_progress"},
	{services.ErrAccountNotActive, fiber.StatusBadRequest, "account_not_active"},
	{services.ErrForbidden, fiber.StatusForbidden, "forbidden"},
	{services.ErrNotFound, fiber.StatusNotFound, "not_found"},
	{services.ErrAlreadyPaid, fiber.StatusConflict, "already_paid"},
	{services.ErrInvalidTransition, fiber.StatusConflict, "invalid_transition"},
	{services.ErrConflict, fiber.StatusConflict, "conflict"},
	{services.ErrRetryable, fiber.StatusServiceUnavailable, "retryable"},
	{services.ErrExternalDependency, fiber.StatusServiceUnavailable, "external_dependency"},
}

// errorBody maps err onto an HTTP status and the error envelope, adding the
// diagnostics carried by typed service errors.
func errorBody(err error) (int, fiber.Map) {
	status, code := fiber.StatusInternalServerError, "internal_error"
	message := "Internal server error"

	var fe *fiber.Error
	if errors.As(err, &fe) {
		status, code, message = fe.Code, "http_error", fe.Message
	} else {
		for _, m := range errorMappings {
			if errors.Is(err, m.target) {
				status, code, message = m.status, m.code, err.Error()
				break
			}
		}
	}

	body := fiber.Map{"status": "error", "code": code, "message": message}

	var conflict *services.ConflictError
	if errors.As(err, &conflict) {
		body["current_status"] = conflict.Current
	}
	var inProgress *services.PayoutInProgressError
	if errors.As(err, &inProgress) {
		body["payout_id"] = inProgress.PayoutID
		body["current_status"] = inProgress.Status
	}
	var insufficient *services.InsufficientBalanceError
	if errors.As(err, &insufficient) {
		body["available_amount"] = insufficient.Available
		body["currency"] = insufficient.Currency
		if insufficient.Minimum > 0 {
			body["minimum_amount"] = insufficient.Minimum
		}
	}
	var notActive *services.AccountNotActiveError
	if errors.As(err, &notActive) {
		body["current_status"] = notActive.Status
	}
	var invalid *services.ValidationError
	if errors.As(err, &invalid) && invalid.Field != "" {
		body["field"] = invalid.Field
	}
	return status, body
}

// ErrorHandler is the app-wide fiber error handler. Handlers return service errors
// unchanged and this turns them into responses.
func ErrorHandler(log zerolog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status, body := errorBody(err)
		event := log.Warn()
		if status >= fiber.StatusInternalServerError {
			event = log.Error()
		}
		event.Err(err).
			Int("status", status).
			Str("method", c.Method()).
			Str("path", c.Path()).
			Msg("request failed")
		return c.Status(status).JSON(body)
	}
}

package handlers

import (
	"reflect"
	"strings"

	"github.com/edlight123/eventhaiti-payouts/middleware"
	"github.com/edlight123/eventhaiti-payouts/services"
	"github.com/edlight123/eventhaiti-payouts/websocket"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var validate = newValidator()

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Handler serves every HTTP operation of the payout engine.
type Handler struct {
	Balances       *services.BalanceService
	Payouts        *services.PayoutService
	Quotes         *services.QuoteService
	Withdrawals    *services.WithdrawalService
	Destinations   *services.DestinationService
	Verifications  *services.VerificationService
	Earnings       *services.EarningsService
	Settlement     *services.SettlementService
	PlatformConfig *services.PlatformConfigService
	Prefunding     *services.PrefundingService
	Rates          services.RateProvider
	Uploads        *UploadSigner
	Hub            *websocket.Hub
	JWTSecret      string

	log zerolog.Logger
}

func New(h Handler, log zerolog.Logger) *Handler {
	h.log = log.With().Str("component", "http").Logger()
	return &h
}

// parseBody decodes and validates a JSON body. Validation failures become
// ValidationErrors naming the first offending field.
func parseBody(c *fiber.Ctx, out interface{}) error {
	if err := c.BodyParser(out); err != nil {
		return &services.ValidationError{Message: "Cannot parse JSON"}
	}
	if err := validate.Struct(out); err != nil {
		if fieldErrs, ok := err.(validator.ValidationErrors); ok && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return &services.ValidationError{Field: fe.Field(), Message: "failed " + fe.Tag() + " validation"}
		}
		return &services.ValidationError{Message: err.Error()}
	}
	return nil
}

func uuidParam(c *fiber.Ctx, param, field string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(param))
	if err != nil {
		return uuid.Nil, &services.ValidationError{Field: field, Message: "must be a valid id"}
	}
	return id, nil
}

func principal(c *fiber.Ctx) middleware.Principal {
	if p, ok := c.Locals("principal").(middleware.Principal); ok {
		return p
	}
	p, _ := middleware.CurrentPrincipal(c)
	return p
}

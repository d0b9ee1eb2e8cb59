package controller

import (
	"context"
	"errors"
	"log"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"coursepay_backend/internals/features/payment/zoyktech/dto"
	"coursepay_backend/internals/features/payment/zoyktech/model"
	"coursepay_backend/internals/features/payment/zoyktech/repository"
	"coursepay_backend/internals/features/payment/zoyktech/service"
	helper "coursepay_backend/internals/helpers"
	"coursepay_backend/internals/middlewares/auth"
)

// PaymentInitiator is satisfied by *service.Initiator.
type PaymentInitiator interface {
	Initiate(ctx context.Context, in service.InitiateInput) (*model.Transaction, error)
}

type PaymentController struct {
	Initiator PaymentInitiator
	Store     repository.TransactionStore
	Validator *validator.Validate
}

func NewPaymentController(ini PaymentInitiator, store repository.TransactionStore) *PaymentController {
	return &PaymentController{Initiator: ini, Store: store, Validator: validator.New()}
}

// POST /api/u/payments/zoyktech/initiate
func (h *PaymentController) Initiate(c *fiber.Ctx) error {
	userID := auth.UserIDFrom(c)
	if userID == "" {
		return helper.JsonError(c, fiber.StatusUnauthorized, "Unauthorized")
	}

	var req dto.InitiatePaymentRequest
	if err := c.BodyParser(&req); err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "Invalid request body")
	}
	req.Normalize()
	if fe := req.Validate(h.Validator); len(fe) > 0 {
		return helper.JsonValidationError(c, fe)
	}
	in, err := req.ToInput(userID)
	if err != nil {
		return helper.JsonValidationError(c, map[string][]string{"amount": {"numeric"}})
	}

	tx, err := h.Initiator.Initiate(c.UserContext(), in)
	switch {
	case err == nil:
		return helper.JsonCreated(c, model.StatusMessage(tx.TransactionStatus), dto.FromTransactionModel(tx, false))
	case errors.Is(err, service.ErrInvalidPhone),
		errors.Is(err, service.ErrInvalidAmount),
		errors.Is(err, service.ErrUnsupportedProvider):
		return helper.JsonError(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrGatewayNotConfigured):
		return helper.JsonError(c, fiber.StatusServiceUnavailable, "Mobile money payments are not available")
	case errors.Is(err, service.ErrInitiationFailed):
		log.Printf("[INITIATE] ❌ user=%s course=%s: %v", userID, in.CourseID, err)
		return helper.JsonError(c, fiber.StatusBadGateway, "Payment could not be started, please try again")
	case errors.Is(err, repository.ErrDuplicateOrderID):
		return helper.JsonError(c, fiber.StatusConflict, "Duplicate order")
	default:
		log.Printf("[INITIATE] ❌ store error user=%s: %v", userID, err)
		if status, msg := helper.MapPGError(err); status != fiber.StatusInternalServerError {
			return helper.JsonError(c, status, msg)
		}
		return helper.JsonError(c, fiber.StatusInternalServerError, "Failed to create payment")
	}
}

// GET /api/u/payments/zoyktech?status=&course_id=&page=&per_page=
func (h *PaymentController) ListMine(c *fiber.Ctx) error {
	userID := auth.UserIDFrom(c)
	if userID == "" {
		return helper.JsonError(c, fiber.StatusUnauthorized, "Unauthorized")
	}
	pg := helper.ResolvePaging(c, 20, 100)

	f := repository.ListFilter{
		UserID:   userID,
		CourseID: strings.TrimSpace(c.Query("course_id")),
		Offset:   pg.Offset,
		Limit:    pg.Limit,
	}
	if s := strings.ToLower(strings.TrimSpace(c.Query("status"))); s != "" {
		st := model.TransactionStatus(s)
		if !st.IsValid() {
			return helper.JsonError(c, fiber.StatusBadRequest, "invalid status filter")
		}
		f.Status = &st
	}

	rows, total, err := h.Store.List(c.UserContext(), f)
	if err != nil {
		log.Printf("[PAYMENT] list user=%s: %v", userID, err)
		return helper.JsonError(c, fiber.StatusInternalServerError, "Failed to list payments")
	}
	return helper.JsonList(c, "ok", dto.FromTransactionModels(rows), helper.BuildPaginationFromPage(total, pg.Page, pg.PerPage))
}

// GET /api/u/payments/zoyktech/:provider_order_id/status
func (h *PaymentController) GetMyPaymentStatus(c *fiber.Ctx) error {
	userID := auth.UserIDFrom(c)
	orderID := strings.TrimSpace(c.Params("provider_order_id"))
	if orderID == "" {
		return helper.JsonError(c, fiber.StatusBadRequest, "provider_order_id is required")
	}

	tx, err := h.Store.FindByProviderOrderID(c.UserContext(), orderID)
	if errors.Is(err, repository.ErrTransactionNotFound) {
		return helper.JsonError(c, fiber.StatusNotFound, "Transaction not found")
	}
	if err != nil {
		return helper.JsonError(c, fiber.StatusInternalServerError, "Failed to load transaction")
	}
	// someone else's order looks exactly like a missing one
	if tx.TransactionUserID != userID {
		return helper.JsonError(c, fiber.StatusNotFound, "Transaction not found")
	}
	return helper.JsonOK(c, "ok", dto.FromTransactionStatus(tx))
}

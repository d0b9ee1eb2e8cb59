package controller

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"coursepay_backend/internals/features/payment/zoyktech/dto"
	"coursepay_backend/internals/features/payment/zoyktech/model"
	"coursepay_backend/internals/features/payment/zoyktech/repository"
	"coursepay_backend/internals/features/payment/zoyktech/service"
	helper "coursepay_backend/internals/helpers"
)

// SweepTrigger is satisfied by *service.Sweeper.
type SweepTrigger interface {
	RunOnce(ctx context.Context) (service.SweepReport, error)
}

type AdminController struct {
	Store   repository.TransactionStore
	Events  repository.EventStore
	Sweeper SweepTrigger
}

func NewAdminController(store repository.TransactionStore, events repository.EventStore, sweeper SweepTrigger) *AdminController {
	return &AdminController{Store: store, Events: events, Sweeper: sweeper}
}

// GET /api/a/payments/zoyktech/transactions?status=&course_id=&user_id=&page=&per_page=
func (h *AdminController) ListTransactions(c *fiber.Ctx) error {
	pg := helper.ResolvePaging(c, 20, 200)

	f := repository.ListFilter{
		CourseID: strings.TrimSpace(c.Query("course_id")),
		UserID:   strings.TrimSpace(c.Query("user_id")),
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
		log.Printf("[ADMIN] list transactions: %v", err)
		return helper.JsonError(c, fiber.StatusInternalServerError, "Failed to list transactions")
	}
	return helper.JsonList(c, "ok", dto.FromTransactionModels(rows), helper.BuildPaginationFromPage(total, pg.Page, pg.PerPage))
}

// GET /api/a/payments/zoyktech/transactions/:provider_order_id
func (h *AdminController) GetTransaction(c *fiber.Ctx) error {
	tx, err := h.Store.FindByProviderOrderID(c.UserContext(), strings.TrimSpace(c.Params("provider_order_id")))
	if errors.Is(err, repository.ErrTransactionNotFound) {
		return helper.JsonError(c, fiber.StatusNotFound, "Transaction not found")
	}
	if err != nil {
		return helper.JsonError(c, fiber.StatusInternalServerError, "Failed to load transaction")
	}
	return helper.JsonOK(c, "ok", dto.FromTransactionModel(tx, true))
}

// GET /api/a/payments/zoyktech/events?order_id=&outcome=
func (h *AdminController) ListEvents(c *fiber.Ctx) error {
	if h.Events == nil {
		return helper.JsonError(c, fiber.StatusNotFound, "callback event log is disabled")
	}
	pg := helper.ResolvePaging(c, 50, 200)

	f := repository.EventFilter{
		ProviderOrderID: strings.TrimSpace(c.Query("order_id")),
		Offset:          pg.Offset,
		Limit:           pg.Limit,
	}
	if o := strings.ToLower(strings.TrimSpace(c.Query("outcome"))); o != "" {
		oc := model.CallbackEventOutcome(o)
		f.Outcome = &oc
	}

	rows, total, err := h.Events.List(c.UserContext(), f)
	if err != nil {
		log.Printf("[ADMIN] list callback events: %v", err)
		return helper.JsonError(c, fiber.StatusInternalServerError, "Failed to list callback events")
	}
	return helper.JsonList(c, "ok", dto.FromCallbackEventModels(rows), helper.BuildPaginationFromPage(total, pg.Page, pg.PerPage))
}

// GET /api/a/payments/zoyktech/stats?course_id=&since=2026-01-02
func (h *AdminController) Stats(c *fiber.Ctx) error {
	f := repository.StatsFilter{CourseID: strings.TrimSpace(c.Query("course_id"))}
	if raw := strings.TrimSpace(c.Query("since")); raw != "" {
		since, err := parseSince(raw)
		if err != nil {
			return helper.JsonError(c, fiber.StatusBadRequest, "since must be YYYY-MM-DD or RFC3339")
		}
		f.Since = &since
	}

	stats, err := h.Store.Stats(c.UserContext(), f)
	if err != nil {
		log.Printf("[ADMIN] payment stats: %v", err)
		return helper.JsonError(c, fiber.StatusInternalServerError, "Failed to load payment stats")
	}
	return helper.JsonOK(c, "ok", dto.FromStatusStats(stats))
}

func parseSince(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", raw)
}

// POST /api/a/payments/zoyktech/sweep
func (h *AdminController) TriggerSweep(c *fiber.Ctx) error {
	if h.Sweeper == nil {
		return helper.JsonError(c, fiber.StatusServiceUnavailable, "sweep is not configured")
	}
	// outlives the per-request deadline
	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.UserContext()), 2*time.Minute)
	defer cancel()
	rep, err := h.Sweeper.RunOnce(ctx)
	if err != nil {
		log.Printf("[ADMIN] manual sweep: %v", err)
		return helper.JsonError(c, fiber.StatusInternalServerError, "Sweep failed: "+err.Error())
	}
	return helper.JsonOK(c, "sweep finished", rep)
}

package controller

import (
	"bytes"
	"context"
	"errors"
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"

	"coursepay_backend/internals/features/payment/zoyktech/dto"
	"coursepay_backend/internals/features/payment/zoyktech/model"
	"coursepay_backend/internals/features/payment/zoyktech/repository"
	"coursepay_backend/internals/features/payment/zoyktech/service"
	helper "coursepay_backend/internals/helpers"
)

// CallbackHandler is satisfied by *service.Reconciler.
type CallbackHandler interface {
	HandleCallback(ctx context.Context, req service.CallbackRequest) (*service.CallbackResult, error)
}

type CallbackController struct {
	Reconciler CallbackHandler
}

func NewCallbackController(r CallbackHandler) *CallbackController {
	return &CallbackController{Reconciler: r}
}

// headers never copied into the event log
var skippedHeaders = map[string]bool{
	"authorization": true,
	"cookie":        true,
}

/*
	========================================================
	  POST|GET /api/payments/zoyktech/callback

========================================================
*/
func (h *CallbackController) HandleCallback(c *fiber.Ctx) error {
	signed := parseCallbackObject(c)
	log.Printf("[CALLBACK] 📥 %s %s keys=%d reqid=%v", c.Method(), c.Path(), signed.Len(), c.Locals("reqid"))

	res, err := h.Reconciler.HandleCallback(c.UserContext(), service.CallbackRequest{
		Payload: signed.Map(),
		Signed:  signed,
		Headers: collectHeaders(c),
		Source:  model.CallbackEventSourceCallback,
	})
	if err != nil {
		status, msg := callbackErrorStatus(err)
		if status >= 500 {
			log.Printf("[CALLBACK] ❌ processing failed: %v", err)
		}
		return helper.Error(c, status, msg)
	}

	msg := "Callback processed"
	if res.Outcome == repository.OutcomeAlreadyFinal {
		msg = "Transaction already final"
	}
	return helper.Success(c, msg, dto.FromCallbackResult(res))
}

func callbackErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrBadRequest):
		return fiber.StatusBadRequest, err.Error()
	case errors.Is(err, service.ErrUnauthorized):
		return fiber.StatusUnauthorized, "Invalid signature"
	case errors.Is(err, service.ErrNotFound):
		return fiber.StatusNotFound, "Transaction not found"
	default:
		return fiber.StatusInternalServerError, "Failed to process callback"
	}
}

// ParseCallbackPayload reads form fields, then the query string, then a JSON
// body. The first source that yields any field wins. Bracketed form keys
// ("result[code]") become nested maps.
func ParseCallbackPayload(c *fiber.Ctx) map[string]any {
	return parseCallbackObject(c).Map()
}

func parseCallbackObject(c *fiber.Ctx) *service.OrderedObject {
	ct := strings.ToLower(string(c.Request().Header.ContentType()))

	if !strings.Contains(ct, "application/json") {
		var form []service.FormField
		c.Request().PostArgs().VisitAll(func(k, v []byte) {
			form = append(form, service.FormField{Key: string(k), Value: string(v)})
		})
		if obj := service.ParseFormFields(form); obj.Len() > 0 {
			return obj
		}
	}

	var query []service.FormField
	c.Request().URI().QueryArgs().VisitAll(func(k, v []byte) {
		query = append(query, service.FormField{Key: string(k), Value: string(v)})
	})
	if obj := service.ParseFormFields(query); obj.Len() > 0 {
		return obj
	}

	body := bytes.TrimSpace(c.Body())
	if len(body) == 0 || body[0] != '{' {
		return service.NewOrderedObject()
	}
	obj, err := service.DecodeJSONObject(body)
	if err != nil {
		log.Printf("[CALLBACK] [WARN] JSON parse failed: %v", err)
		return service.NewOrderedObject()
	}
	return obj
}

func collectHeaders(c *fiber.Ctx) map[string]string {
	out := map[string]string{}
	for k, vals := range c.GetReqHeaders() {
		if skippedHeaders[strings.ToLower(k)] {
			continue
		}
		out[k] = strings.Join(vals, ", ")
	}
	return out
}

package route

import (
	"github.com/gofiber/fiber/v2"

	zoyktechController "coursepay_backend/internals/features/payment/zoyktech/controller"
	"coursepay_backend/internals/features/payment/zoyktech/repository"
	"coursepay_backend/internals/middlewares"
)

// Deps carries the wired zoyktech services into the route builders.
type Deps struct {
	Reconciler zoyktechController.CallbackHandler
	Initiator  zoyktechController.PaymentInitiator
	Store      repository.TransactionStore
	Events     repository.EventStore
	Sweeper    zoyktechController.SweepTrigger
}

// Provider webhook, no auth: authenticity comes from the payload signature.
func ZoyktechCallbackRoutes(api fiber.Router, d Deps) {
	ctrl := zoyktechController.NewCallbackController(d.Reconciler)

	cb := api.Group("/payments/zoyktech", middlewares.CallbackRateLimiter())
	cb.Post("/callback", ctrl.HandleCallback)
	cb.Get("/callback", ctrl.HandleCallback) // some providers call back with GET + query string
}

func ZoyktechUserRoutes(api fiber.Router, d Deps) {
	ctrl := zoyktechController.NewPaymentController(d.Initiator, d.Store)

	u := api.Group("/payments/zoyktech")
	u.Get("/", ctrl.ListMine)
	u.Post("/initiate", middlewares.InitiateRateLimiter(), ctrl.Initiate)
	u.Get("/:provider_order_id/status", ctrl.GetMyPaymentStatus)
}

func ZoyktechAdminRoutes(api fiber.Router, d Deps) {
	ctrl := zoyktechController.NewAdminController(d.Store, d.Events, d.Sweeper)

	a := api.Group("/payments/zoyktech")
	a.Get("/transactions", ctrl.ListTransactions)
	a.Get("/transactions/:provider_order_id", ctrl.GetTransaction)
	a.Get("/events", ctrl.ListEvents)
	a.Get("/stats", ctrl.Stats)
	a.Post("/sweep", ctrl.TriggerSweep)
}

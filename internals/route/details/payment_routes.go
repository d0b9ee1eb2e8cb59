// file: internals/route/details/payment_routes.go
package details

import (
	"github.com/gofiber/fiber/v2"

	"coursepay_backend/internals/bootstrap"
	zoyktechRoute "coursepay_backend/internals/features/payment/zoyktech/routes"
)

func zoyktechDeps(svc *bootstrap.Services) zoyktechRoute.Deps {
	return zoyktechRoute.Deps{
		Reconciler: svc.Reconciler,
		Initiator:  svc.Initiator,
		Store:      svc.Store,
		Events:     svc.Events,
		Sweeper:    svc.Sweeper,
	}
}

func PaymentPublicRoutes(r fiber.Router, svc *bootstrap.Services) {
	zoyktechRoute.ZoyktechCallbackRoutes(r, zoyktechDeps(svc))
}

func PaymentUserRoutes(r fiber.Router, svc *bootstrap.Services) {
	zoyktechRoute.ZoyktechUserRoutes(r, zoyktechDeps(svc))
}

func PaymentAdminRoutes(r fiber.Router, svc *bootstrap.Services) {
	zoyktechRoute.ZoyktechAdminRoutes(r, zoyktechDeps(svc))
}

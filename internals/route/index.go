// file: internals/route/index.go
package routes

import (
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"coursepay_backend/internals/bootstrap"
	"coursepay_backend/internals/configs"
	"coursepay_backend/internals/constants"
	"coursepay_backend/internals/middlewares/auth"
	routeDetails "coursepay_backend/internals/route/details"
)

var startTime time.Time

func SetupRoutes(app *fiber.App, db *gorm.DB, svc *bootstrap.Services) {
	startTime = time.Now()

	BaseRoutes(app, db)

	// ===================== GROUPS =====================

	// PUBLIC → provider webhooks
	log.Println("[INFO] Setting up PUBLIC group...")
	public := app.Group("/api")

	// PRIVATE (USER)
	log.Println("[INFO] Setting up PRIVATE group...")
	private := app.Group("/api/u",
		auth.AuthJWT(auth.AuthJWTOpts{
			Secret:              configs.JWTSecret,
			AllowCookieFallback: true,
		}),
	)

	// ADMIN
	log.Println("[INFO] Setting up ADMIN group (Auth + RoleCheck)...")
	admin := app.Group("/api/a",
		auth.AuthJWT(auth.AuthJWTOpts{
			Secret:              configs.JWTSecret,
			AllowCookieFallback: true,
		}),
		auth.OnlyRoles(constants.RoleErrorAdmin("payments"), constants.PaymentAdmins...),
	)

	// ===================== MOUNT ROUTES =====================

	log.Println("[INFO] Mounting Payment routes...")
	routeDetails.PaymentPublicRoutes(public, svc)
	routeDetails.PaymentUserRoutes(private, svc)
	routeDetails.PaymentAdminRoutes(admin, svc)

	log.Println("[INFO] Mounting Course routes...")
	routeDetails.CourseUserRoutes(private, svc)
}

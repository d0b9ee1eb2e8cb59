package route

import (
	"github.com/gofiber/fiber/v2"

	enrollmentController "coursepay_backend/internals/features/courses/enrollments/controller"
	enrollmentService "coursepay_backend/internals/features/courses/enrollments/service"
)

func EnrollmentUserRoutes(api fiber.Router, svc *enrollmentService.EnrollmentService) {
	ctrl := enrollmentController.NewEnrollmentController(svc)

	g := api.Group("/courses")
	g.Get("/enrollments", ctrl.ListMine)
	g.Get("/:course_id/enrollment", ctrl.CheckMine)
}

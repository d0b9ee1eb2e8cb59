// file: internals/route/details/course_routes.go
package details

import (
	"github.com/gofiber/fiber/v2"

	"coursepay_backend/internals/bootstrap"
	enrollmentRoute "coursepay_backend/internals/features/courses/enrollments/routes"
)

func CourseUserRoutes(r fiber.Router, svc *bootstrap.Services) {
	enrollmentRoute.EnrollmentUserRoutes(r, svc.Enrollments)
}

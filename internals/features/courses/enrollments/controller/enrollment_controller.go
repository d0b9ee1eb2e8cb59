package controller

import (
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"

	enrollmentService "coursepay_backend/internals/features/courses/enrollments/service"
	helper "coursepay_backend/internals/helpers"
	"coursepay_backend/internals/middlewares/auth"
)

type EnrollmentController struct {
	Svc *enrollmentService.EnrollmentService
}

func NewEnrollmentController(svc *enrollmentService.EnrollmentService) *EnrollmentController {
	return &EnrollmentController{Svc: svc}
}

// GET /api/u/courses/enrollments
func (h *EnrollmentController) ListMine(c *fiber.Ctx) error {
	rows, err := h.Svc.ListByUser(c.UserContext(), auth.UserIDFrom(c))
	if err != nil {
		log.Printf("[ENROLLMENT] list: %v", err)
		return helper.JsonError(c, fiber.StatusInternalServerError, "Failed to load enrollments")
	}
	return helper.JsonOK(c, "ok", rows)
}

// GET /api/u/courses/:course_id/enrollment
func (h *EnrollmentController) CheckMine(c *fiber.Ctx) error {
	courseID := strings.TrimSpace(c.Params("course_id"))
	ok, err := h.Svc.IsEnrolled(c.UserContext(), courseID, auth.UserIDFrom(c))
	if err != nil {
		return helper.JsonError(c, fiber.StatusInternalServerError, "Failed to check enrollment")
	}
	return helper.JsonOK(c, "ok", fiber.Map{"course_id": courseID, "enrolled": ok})
}

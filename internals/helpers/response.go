package helper

import (
	"github.com/gofiber/fiber/v2"
)

// ✅ Success response (200)
func Success(c *fiber.Ctx, message string, data interface{}) error {
	return SuccessWithCode(c, fiber.StatusOK, message, data)
}

// ✅ Success response with custom code (e.g. 201 created)
func SuccessWithCode(c *fiber.Ctx, code int, message string, data interface{}) error {
	body := fiber.Map{
		"code":    code,
		"status":  "success",
		"message": message,
	}
	if data != nil {
		body["data"] = data
	}
	return c.Status(code).JSON(body)
}

// ✅ Simple error response
func Error(c *fiber.Ctx, code int, message string) error {
	return c.Status(code).JSON(fiber.Map{
		"code":    code,
		"status":  "error",
		"message": message,
	})
}

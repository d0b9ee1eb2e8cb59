package helper

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

// FromFiberError renders a *fiber.Error through helper.Error.
// Anything else becomes a 500 with the original message.
func FromFiberError(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return Error(c, fe.Code, fe.Message)
	}
	return Error(c, fiber.StatusInternalServerError, err.Error())
}

// ErrorHandler is the app-level fiber.Config.ErrorHandler.
func ErrorHandler(c *fiber.Ctx, err error) error {
	return FromFiberError(c, err)
}

package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/metamap/internal/core/domain"
)

// APIError is a structured error response.
type APIError struct {
	Status    int      `json:"status"`
	Code      string   `json:"code"`    // Error code: bad_request, not_found, internal_error, etc.
	Message   string   `json:"message"` // Human-readable message
	Errors    []string `json:"errors,omitempty"`
	RequestID string   `json:"request_id,omitempty"`
}

// newError builds a JSON error response with a request ID.
func newError(c *fiber.Ctx, status int, code string, message string, details ...string) error {
	reqID, _ := c.Locals("requestid").(string)
	return c.Status(status).JSON(APIError{
		Status:    status,
		Code:      code,
		Message:   message,
		Errors:    details,
		RequestID: reqID,
	})
}

// errBadRequest returns a 400 error.
func errBadRequest(c *fiber.Ctx, msg string) error {
	return newError(c, 400, "bad_request", msg)
}

// errNotFound returns a 404 error.
func errNotFound(c *fiber.Ctx, msg string) error {
	return newError(c, 404, "not_found", msg)
}

// errInternal returns a 500 error.
func errInternal(c *fiber.Ctx, msg string) error {
	return newError(c, 500, "internal_error", msg)
}

// errUnauthorized returns a 401 error.
func errUnauthorized(c *fiber.Ctx, msg string) error {
	return newError(c, 401, "unauthorized", msg)
}

// errConflict returns a 409 error.
func errConflict(c *fiber.Ctx, msg string) error {
	return newError(c, 409, "conflict", msg)
}

// errUnprocessable returns a 422 error listing validation failures.
func errUnprocessable(c *fiber.Ctx, details []string) error {
	return newError(c, 422, "validation_failed", "validation failed", details...)
}

// errUnavailable returns a 503 error.
func errUnavailable(c *fiber.Ctx, msg string) error {
	return newError(c, 503, "unavailable", msg)
}

// fromDomain maps a service error to its HTTP response.
func fromDomain(c *fiber.Ctx, err error) error {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		mapLogger(c).Debug("rejected by validation", "errors", len(verr.Result.Errors))
		return errUnprocessable(c, verr.Result.Errors)
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrIndexOutOfRange):
		return errNotFound(c, err.Error())
	case errors.Is(err, domain.ErrFormat):
		return errBadRequest(c, err.Error())
	case errors.Is(err, domain.ErrConflict):
		return errConflict(c, err.Error())
	default:
		mapLogger(c).Error("request failed", "path", c.Path(), "error", err)
		return errInternal(c, "internal error")
	}
}

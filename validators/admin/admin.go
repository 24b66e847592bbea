package adminValidator

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"lms/constants"
	"lms/middleware"
	"lms/services/roles"
)

type RoleListQuery struct {
	Search string `query:"search"`
	Page   int    `query:"page"`
	Limit  int    `query:"limit"`
}

type EnrollmentBody struct {
	Username string `json:"username" validate:"required"`
	CourseID string `json:"course_id" validate:"required"`
	Mode     string `json:"mode" validate:"omitempty,oneof=audit honor verified professional credit"`
}

// RoleForm only parses the body; the roles service validates the form so
// field and lookup errors come back together.
func RoleForm() fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqData := new(roles.CourseAccessRoleForm)
		if err := c.BodyParser(reqData); err != nil {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request body!", nil)
		}
		c.Locals("validatedRoleForm", reqData)
		return c.Next()
	}
}

func RoleList() fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqData := &RoleListQuery{Page: 1, Limit: 20}
		if err := c.QueryParser(reqData); err != nil {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid query parameters!", nil)
		}

		errors := make(map[string]string)
		if reqData.Page < 1 {
			errors["page"] = "Page must be greater than 0!"
		}
		if reqData.Limit < 1 || reqData.Limit > 100 {
			errors["limit"] = "Limit must be between 1 and 100!"
		}
		if len(errors) > 0 {
			return middleware.ValidationErrorResponse(c, errors)
		}

		c.Locals("validatedRoleList", reqData)
		return c.Next()
	}
}

func RoleID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := strconv.ParseUint(c.Params("id"), 10, 64)
		if err != nil || id == 0 {
			return middleware.ValidationErrorResponse(c, map[string]string{"id": "Invalid role id!"})
		}
		c.Locals("roleID", uint(id))
		return c.Next()
	}
}

func Enrollment() fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqData := new(EnrollmentBody)
		if err := c.BodyParser(reqData); err != nil {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request body!", nil)
		}
		if errors := constants.FieldErrors(reqData); len(errors) > 0 {
			return middleware.ValidationErrorResponse(c, errors)
		}
		c.Locals("validatedEnrollment", reqData)
		return c.Next()
	}
}

package creditValidator

import (
	"encoding/json"
	"fmt"

	"github.com/gofiber/fiber/v2"

	"lms/constants"
	"lms/coursekey"
	"lms/middleware"
	"lms/services/credit"
)

type CreditRequestBody struct {
	Username  string
	CourseKey coursekey.Key
}

type CallbackBody struct {
	RequestUUID string
	Status      string
	Timestamp   string
	Signature   string
	// Params holds every posted field for signature verification.
	Params map[string]interface{}
}

type EnableCourseBody struct {
	CourseKey string `json:"course_key" validate:"required"`
	Enabled   *bool  `json:"enabled"`
}

type RequirementStatusBody struct {
	Username  string                 `json:"username" validate:"required"`
	Namespace string                 `json:"namespace" validate:"required"`
	Name      string                 `json:"name" validate:"required"`
	Status    string                 `json:"status" validate:"required,oneof=satisfied failed"`
	Reason    map[string]interface{} `json:"reason"`
}

// jsonObject decodes the body as a JSON object. Arrays, scalars and
// malformed input are rejected.
func jsonObject(c *fiber.Ctx) (map[string]interface{}, bool) {
	var raw interface{}
	if err := json.Unmarshal(c.Body(), &raw); err != nil {
		return nil, false
	}
	obj, ok := raw.(map[string]interface{})
	return obj, ok
}

// requiredStrings checks that every key is present and reports the first
// missing one.
func requiredStrings(obj map[string]interface{}, keys ...string) (map[string]string, string) {
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		v, ok := obj[k]
		if !ok {
			return nil, k
		}
		out[k] = fmt.Sprint(v)
		if s, isString := v.(string); isString {
			out[k] = s
		}
	}
	return out, ""
}

// CreditRequest validates {username, course_key}.
func CreditRequest() fiber.Handler {
	return func(c *fiber.Ctx) error {
		obj, ok := jsonObject(c)
		if !ok {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request body!", nil)
		}
		values, missing := requiredStrings(obj, "username", "course_key")
		if missing != "" {
			return middleware.ValidationErrorResponse(c, map[string]string{missing: "This field is required."})
		}
		key, err := coursekey.Parse(values["course_key"])
		if err != nil {
			return middleware.ValidationErrorResponse(c, map[string]string{"course_key": "Invalid course key."})
		}

		c.Locals("validatedCreditRequest", &CreditRequestBody{Username: values["username"], CourseKey: key})
		return c.Next()
	}
}

// ProviderCallback validates {request_uuid, status, timestamp, signature}.
func ProviderCallback() fiber.Handler {
	return func(c *fiber.Ctx) error {
		obj, ok := jsonObject(c)
		if !ok {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request body!", nil)
		}
		values, missing := requiredStrings(obj, "request_uuid", "status", "timestamp", "signature")
		if missing != "" {
			return middleware.ValidationErrorResponse(c, map[string]string{missing: "This field is required."})
		}

		c.Locals("validatedCallback", &CallbackBody{
			RequestUUID: values["request_uuid"],
			Status:      values["status"],
			Timestamp:   values["timestamp"],
			Signature:   values["signature"],
			Params:      obj,
		})
		return c.Next()
	}
}

// Requirements validates a requirement list body. Entry-level checks are
// made by the credit service so every problem is reported together.
func Requirements() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var reqData []credit.RequirementInput
		if err := json.Unmarshal(c.Body(), &reqData); err != nil {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Request body must be a list of requirements!", nil)
		}
		c.Locals("validatedRequirements", reqData)
		return c.Next()
	}
}

func EnableCourse() fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqData := new(EnableCourseBody)
		if err := c.BodyParser(reqData); err != nil {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request body!", nil)
		}
		errors := constants.FieldErrors(reqData)
		if _, bad := errors["course_key"]; !bad {
			if _, err := coursekey.Parse(reqData.CourseKey); err != nil {
				errors["course_key"] = "Invalid course key."
			}
		}
		if len(errors) > 0 {
			return middleware.ValidationErrorResponse(c, errors)
		}
		c.Locals("validatedCreditCourse", reqData)
		return c.Next()
	}
}

func Provider() fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqData := new(credit.ProviderInput)
		if err := c.BodyParser(reqData); err != nil {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request body!", nil)
		}
		if errors := constants.FieldErrors(reqData); len(errors) > 0 {
			return middleware.ValidationErrorResponse(c, errors)
		}
		c.Locals("validatedProvider", reqData)
		return c.Next()
	}
}

func RequirementStatus() fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqData := new(RequirementStatusBody)
		if err := c.BodyParser(reqData); err != nil {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request body!", nil)
		}
		if errors := constants.FieldErrors(reqData); len(errors) > 0 {
			return middleware.ValidationErrorResponse(c, errors)
		}
		c.Locals("validatedRequirementStatus", reqData)
		return c.Next()
	}
}

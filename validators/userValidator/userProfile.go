package userValidator

import (
	"regexp"
	"strings"

	"github.com/gofiber/fiber/v2"

	"lms/middleware"
)

var countryCode = regexp.MustCompile(`^[A-Z]{2}$`)

type UpdateProfileRequest struct {
	Name           *string `json:"name"`
	MailingAddress *string `json:"mailing_address"`
	Country        *string `json:"country"`
}

// UpdateProfile validates the personal data shared with credit providers.
// Only the fields present in the body are changed.
func UpdateProfile() fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqData := new(UpdateProfileRequest)
		if err := c.BodyParser(reqData); err != nil {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request body!", nil)
		}

		errors := make(map[string]string)

		if reqData.Name != nil {
			name := strings.TrimSpace(*reqData.Name)
			if len(name) > 255 {
				errors["name"] = "Name must be at most 255 characters long!"
			}
			reqData.Name = &name
		}

		if reqData.Country != nil {
			country := strings.ToUpper(strings.TrimSpace(*reqData.Country))
			if country != "" && !countryCode.MatchString(country) {
				errors["country"] = "Country must be an ISO 3166-1 alpha-2 code!"
			}
			reqData.Country = &country
		}

		if reqData.Name == nil && reqData.MailingAddress == nil && reqData.Country == nil {
			errors["profile"] = "Nothing to update!"
		}

		if len(errors) > 0 {
			return middleware.ValidationErrorResponse(c, errors)
		}

		c.Locals("validatedProfile", reqData)
		return c.Next()
	}
}

package creditRoutes

import (
	"github.com/gofiber/fiber/v2"

	creditController "lms/controllers/credit"
	"lms/middleware"
	courseStructureValidator "lms/validators/courseStructure"
	creditValidator "lms/validators/credit"
)

func SetupCreditRoutes(app *fiber.App) {
	api := app.Group("/api/credit/v1")

	// Providers authenticate callbacks with their shared secret, not a JWT.
	api.Post("/provider/:provider_id/callback", creditValidator.ProviderCallback(), creditController.ProviderCallback)

	api.Post("/provider/:provider_id/request", middleware.JWTMiddleware, creditValidator.CreditRequest(), creditController.CreateCreditRequest)
	api.Get("/requests", middleware.JWTMiddleware, creditController.ListCreditRequests)
	api.Get("/eligibility", middleware.JWTMiddleware, creditController.ListEligibility)
	api.Get("/courses/:course_id/requirements", middleware.JWTMiddleware, courseStructureValidator.CourseID(), creditController.ListRequirements)

	admin := app.Group("/admin/credit", middleware.JWTMiddleware, middleware.RequireGlobalStaff())

	admin.Post("/courses", creditValidator.EnableCourse(), creditController.EnableCreditCourse)
	admin.Put("/courses/:course_id/requirements", courseStructureValidator.CourseID(), creditValidator.Requirements(), creditController.SetRequirements)
	admin.Post("/courses/:course_id/providers/:provider_id", courseStructureValidator.CourseID(), creditController.AddProviderToCourse)
	admin.Post("/courses/:course_id/requirement_status", courseStructureValidator.CourseID(), creditValidator.RequirementStatus(), creditController.SetRequirementStatus)
	admin.Post("/providers", creditValidator.Provider(), creditController.UpsertProvider)
	admin.Get("/dashboard", creditController.Dashboard)
}

package userProfileRoutes

import (
	"github.com/gofiber/fiber/v2"

	userProfileController "lms/controllers/userControllers"
	"lms/middleware"
	userProfileValidator "lms/validators/userValidator"
)

func SetupUserRoutes(app *fiber.App) {
	userGroup := app.Group("/user")

	userGroup.Get("/profile", middleware.JWTMiddleware, userProfileController.GetProfile)
	userGroup.Put("/profile", userProfileValidator.UpdateProfile(), middleware.JWTMiddleware, userProfileController.UpdateProfile)
}

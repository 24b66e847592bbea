package routers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"

	adminRoutes "lms/routers/adminRoutes"
	authRoutes "lms/routers/authRoutes"
	courseStructureRoutes "lms/routers/courseStructureRoutes"
	creditRoutes "lms/routers/creditRoutes"
	userProfileRoutes "lms/routers/userRoutes"
)

// New builds the HTTP application with every route group mounted.
func New(accessLog bool) *fiber.App {
	app := fiber.New()

	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE",        // Allowed HTTP methods
		AllowHeaders: "Content-Type,Authorization", // Allowed headers
	}))

	// Enable the built-in logger middleware to log all requests
	if accessLog {
		app.Use(logger.New(logger.Config{
			Format: "[${time}] ${ip} ${method} ${path} ${status} ${latency}\n",
		}))
	}

	authRoutes.SetupAuthRoutes(app)
	userProfileRoutes.SetupUserRoutes(app)
	courseStructureRoutes.SetupCourseStructureRoutes(app)
	creditRoutes.SetupCreditRoutes(app)
	adminRoutes.SetupAdminRoutes(app)

	return app
}

package adminRoutes

import (
	"github.com/gofiber/fiber/v2"

	adminController "lms/controllers/admin"
	"lms/middleware"
	adminValidator "lms/validators/admin"
)

func SetupAdminRoutes(app *fiber.App) {
	staff := []fiber.Handler{middleware.JWTMiddleware, middleware.RequireGlobalStaff()}

	roleGroup := app.Group("/admin/course_access_roles", staff...)
	roleGroup.Get("/", adminValidator.RoleList(), adminController.ListRoles)
	roleGroup.Post("/", adminValidator.RoleForm(), adminController.CreateRole)
	roleGroup.Delete("/:id", adminValidator.RoleID(), adminController.DeleteRole)

	enrollmentGroup := app.Group("/admin/enrollments", staff...)
	enrollmentGroup.Post("/", adminValidator.Enrollment(), adminController.Enroll)
}

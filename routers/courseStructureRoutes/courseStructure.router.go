package courseStructureRoutes

import (
	"github.com/gofiber/fiber/v2"

	courseStructureController "lms/controllers/courseStructure"
	"lms/middleware"
	courseStructureValidator "lms/validators/courseStructure"
)

func SetupCourseStructureRoutes(app *fiber.App) {
	api := app.Group("/api/course_structure/v0", middleware.JWTMiddleware)

	api.Get("/courses", courseStructureValidator.CourseList(), courseStructureController.ListCourses)
	api.Get("/courses/:course_id", courseStructureValidator.CourseID(), courseStructureController.GetCourse)
	api.Get("/courses/:course_id/:view", courseStructureValidator.CourseID(), courseStructureValidator.BlocksQuery(), courseStructureController.GetCourseBlocks)
	api.Get("/course_structures/:course_id", courseStructureValidator.CourseID(), courseStructureController.GetCourseStructure)
	api.Get("/grading_policies/:course_id", courseStructureValidator.CourseID(), courseStructureController.GetGradingPolicy)
}

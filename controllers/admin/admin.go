package adminController

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"lms/database"
	"lms/logger"
	"lms/middleware"
	"lms/models"
	"lms/modulestore"
	"lms/services/roles"
	adminValidator "lms/validators/admin"
)

func roleService() *roles.Service {
	db := database.Database.Db
	return roles.NewService(db, modulestore.New(db))
}

func ListRoles(c *fiber.Ctx) error {
	reqData, ok := c.Locals("validatedRoleList").(*adminValidator.RoleListQuery)
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid query parameters!", nil)
	}

	rows, total, err := roleService().List(c.UserContext(), reqData.Search, reqData.Page, reqData.Limit)
	if err != nil {
		logger.Log.Errorw("error listing course access roles", "error", err)
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to list roles!", nil)
	}

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Roles retrieved successfully.", fiber.Map{
		"roles": rows,
		"pagination": fiber.Map{
			"total": total,
			"page":  reqData.Page,
			"limit": reqData.Limit,
		},
	})
}

func CreateRole(c *fiber.Ctx) error {
	form, ok := c.Locals("validatedRoleForm").(*roles.CourseAccessRoleForm)
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request body!", nil)
	}

	role, err := roleService().Save(c.UserContext(), *form)
	var formErrs roles.FormErrors
	if errors.As(err, &formErrs) {
		return middleware.ValidationErrorResponse(c, formErrs)
	}
	if err != nil {
		logger.Log.Errorw("error saving course access role", "error", err)
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to save role!", nil)
	}
	return middleware.JsonResponse(c, fiber.StatusCreated, true, "Role granted successfully.", role)
}

func DeleteRole(c *fiber.Ctx) error {
	id, _ := c.Locals("roleID").(uint)
	err := roleService().Delete(c.UserContext(), id)
	if errors.Is(err, roles.ErrRoleNotFound) {
		return middleware.JsonResponse(c, fiber.StatusNotFound, false, "Role not found!", nil)
	}
	if err != nil {
		logger.Log.Errorw("error deleting course access role", "id", id, "error", err)
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to delete role!", nil)
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Role removed successfully.", nil)
}

func Enroll(c *fiber.Ctx) error {
	reqData, ok := c.Locals("validatedEnrollment").(*adminValidator.EnrollmentBody)
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request body!", nil)
	}
	ctx := c.UserContext()
	db := database.Database.Db
	store := modulestore.New(db)

	var user models.User
	err := db.WithContext(ctx).Where("username = ? AND is_deleted = ?", reqData.Username, false).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return middleware.JsonResponse(c, fiber.StatusNotFound, false, "User not found!", nil)
	}
	if err != nil {
		logger.Log.Errorw("error loading user", "username", reqData.Username, "error", err)
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to enroll user!", nil)
	}

	course, err := store.GetCourse(ctx, reqData.CourseID)
	if errors.Is(err, modulestore.ErrCourseNotFound) {
		return middleware.JsonResponse(c, fiber.StatusNotFound, false, "Course not found!", nil)
	}
	if err != nil {
		logger.Log.Errorw("error loading course", "course_id", reqData.CourseID, "error", err)
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to enroll user!", nil)
	}

	enrollment, err := store.Enroll(ctx, &user, course, reqData.Mode)
	if err != nil {
		logger.Log.Errorw("error enrolling user", "username", user.Username, "course_key", course.CourseKey, "error", err)
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to enroll user!", nil)
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "User enrolled successfully.", enrollment)
}

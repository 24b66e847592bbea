package creditController

import (
	"github.com/gofiber/fiber/v2"

	"lms/middleware"
	"lms/services/credit"
	creditValidator "lms/validators/credit"
)

func SetRequirements(c *fiber.Ctx) error {
	reqs, ok := c.Locals("validatedRequirements").([]credit.RequirementInput)
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request body!", nil)
	}
	courseID, _ := c.Locals("courseID").(string)
	courseKey := storedCourseKey(c, courseID)

	svc := service()
	if err := svc.SetCreditRequirements(c.UserContext(), courseKey, reqs); err != nil {
		return serviceError(c, err)
	}
	current, err := svc.GetCreditRequirements(c.UserContext(), courseKey, "")
	if err != nil {
		return serviceError(c, err)
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Credit requirements updated.", current)
}

func EnableCreditCourse(c *fiber.Ctx) error {
	reqData, ok := c.Locals("validatedCreditCourse").(*creditValidator.EnableCourseBody)
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request body!", nil)
	}
	enabled := true
	if reqData.Enabled != nil {
		enabled = *reqData.Enabled
	}
	cc, err := service().EnableCreditCourse(c.UserContext(), storedCourseKey(c, reqData.CourseKey), enabled)
	if err != nil {
		return serviceError(c, err)
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Credit course saved.", cc)
}

func UpsertProvider(c *fiber.Ctx) error {
	reqData, ok := c.Locals("validatedProvider").(*credit.ProviderInput)
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request body!", nil)
	}
	p, err := service().UpsertCreditProvider(c.UserContext(), *reqData)
	if err != nil {
		return serviceError(c, err)
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Credit provider saved.", p)
}

func AddProviderToCourse(c *fiber.Ctx) error {
	courseID, _ := c.Locals("courseID").(string)
	if err := service().AddProviderToCourse(c.UserContext(), storedCourseKey(c, courseID), c.Params("provider_id")); err != nil {
		return serviceError(c, err)
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Credit provider added to course.", nil)
}

func SetRequirementStatus(c *fiber.Ctx) error {
	reqData, ok := c.Locals("validatedRequirementStatus").(*creditValidator.RequirementStatusBody)
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request body!", nil)
	}
	courseID, _ := c.Locals("courseID").(string)
	courseKey := storedCourseKey(c, courseID)

	svc := service()
	err := svc.SetCreditRequirementStatus(c.UserContext(), reqData.Username, courseKey,
		reqData.Namespace, reqData.Name, reqData.Status, reqData.Reason)
	if err != nil {
		return serviceError(c, err)
	}
	eligible, err := svc.IsUserEligibleForCredit(c.UserContext(), reqData.Username, courseKey)
	if err != nil {
		return serviceError(c, err)
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Requirement status recorded.", fiber.Map{
		"eligible": eligible,
	})
}

func Dashboard(c *fiber.Ctx) error {
	stats, err := service().DashboardStats(c.UserContext())
	if err != nil {
		return serviceError(c, err)
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Dashboard stats retrieved successfully.", stats)
}

package creditController

import (
	"errors"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"

	"lms/config"
	"lms/database"
	"lms/logger"
	"lms/middleware"
	"lms/modulestore"
	"lms/services/credit"
	creditValidator "lms/validators/credit"
)

var (
	notifierMu sync.RWMutex
	notifier   credit.Notifier
)

// SetNotifier installs the notifier told about provider decisions.
func SetNotifier(n credit.Notifier) {
	notifierMu.Lock()
	defer notifierMu.Unlock()
	notifier = n
}

func service() *credit.Service {
	notifierMu.RLock()
	defer notifierMu.RUnlock()
	if notifier != nil {
		return credit.NewService(database.Database.Db, credit.WithNotifier(notifier))
	}
	return credit.NewService(database.Database.Db)
}

// storedCourseKey maps either key spelling onto the catalog's spelling.
func storedCourseKey(c *fiber.Ctx, raw string) string {
	course, err := modulestore.New(database.Database.Db).GetCourse(c.UserContext(), raw)
	if err != nil {
		return raw
	}
	return course.CourseKey
}

// serviceError maps credit errors onto responses.
func serviceError(c *fiber.Ctx, err error) error {
	var invalid *credit.InvalidCreditRequirementsError
	switch {
	case errors.As(err, &invalid):
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid credit requirements!", invalid.Messages)
	case errors.Is(err, credit.ErrUserIsNotEligible):
		return middleware.JsonResponse(c, fiber.StatusForbidden, false, err.Error(), nil)
	case errors.Is(err, credit.ErrCreditProviderNotFound),
		errors.Is(err, credit.ErrCreditRequestNotFound),
		errors.Is(err, credit.ErrRequirementNotFound):
		return middleware.JsonResponse(c, fiber.StatusNotFound, false, err.Error(), nil)
	case errors.Is(err, credit.ErrInvalidCreditCourse),
		errors.Is(err, credit.ErrCreditProviderNotConfigured),
		errors.Is(err, credit.ErrRequestAlreadyCompleted),
		errors.Is(err, credit.ErrInvalidCreditStatus),
		errors.Is(err, credit.ErrInvalidRequirementStatus):
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, err.Error(), nil)
	default:
		logger.Log.Errorw("credit operation failed", "path", c.Path(), "error", err)
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to process your request!", nil)
	}
}

// CreateCreditRequest answers with the signed parameters the learner's
// browser posts to the provider.
func CreateCreditRequest(c *fiber.Ctx) error {
	reqData, ok := c.Locals("validatedCreditRequest").(*creditValidator.CreditRequestBody)
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request body!", nil)
	}
	providerID := c.Params("provider_id")

	capability := middleware.CapabilityFrom(c)
	if capability.Username != reqData.Username {
		return middleware.JsonResponse(c, fiber.StatusForbidden, false, "You may only request credit for yourself!", nil)
	}

	descriptor, err := service().CreateCreditRequest(c.UserContext(), reqData.CourseKey, providerID, reqData.Username)
	if err != nil {
		return serviceError(c, err)
	}

	secret, ok := config.AppConfig.CreditProviderSecretKeys[providerID]
	if !ok {
		logger.Log.Errorw("missing shared secret for credit provider", "provider_id", providerID)
		return serviceError(c, credit.ErrCreditProviderNotConfigured)
	}
	params := descriptor.Parameters
	params["signature"] = credit.Signature(params, secret)

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Credit request created.", fiber.Map{
		"url":        descriptor.Provider.ProviderURL,
		"method":     "POST",
		"parameters": params,
	})
}

// ProviderCallback records an approve or reject decision signed by the provider.
func ProviderCallback(c *fiber.Ctx) error {
	reqData, ok := c.Locals("validatedCallback").(*creditValidator.CallbackBody)
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request body!", nil)
	}
	providerID := c.Params("provider_id")

	secret, ok := config.AppConfig.CreditProviderSecretKeys[providerID]
	if !ok {
		logger.Log.Errorw("callback from provider without a shared secret", "provider_id", providerID)
		return middleware.JsonResponse(c, fiber.StatusForbidden, false, "Invalid signature!", nil)
	}
	if !credit.VerifySignature(reqData.Params, secret, reqData.Signature) {
		logger.Log.Warnw("credit callback signature mismatch", "provider_id", providerID, "request_uuid", reqData.RequestUUID)
		return middleware.JsonResponse(c, fiber.StatusForbidden, false, "Invalid signature!", nil)
	}
	if !timestampIsFresh(reqData.Timestamp, time.Now()) {
		logger.Log.Warnw("credit callback timestamp rejected", "provider_id", providerID, "timestamp", reqData.Timestamp)
		return middleware.JsonResponse(c, fiber.StatusForbidden, false, "Timestamp is outside the allowed window!", nil)
	}

	svc := service()
	req, err := svc.GetCreditRequest(c.UserContext(), reqData.RequestUUID)
	if err != nil {
		return serviceError(c, err)
	}
	if req.CreditProvider.ProviderID != providerID {
		return middleware.JsonResponse(c, fiber.StatusNotFound, false, credit.ErrCreditRequestNotFound.Error(), nil)
	}

	if err := svc.UpdateCreditRequestStatus(c.UserContext(), reqData.RequestUUID, reqData.Status); err != nil {
		return serviceError(c, err)
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Credit request status updated.", nil)
}

// CallbackClockSkew is how far ahead of our clock a provider timestamp may be.
const CallbackClockSkew = time.Minute

func timestampIsFresh(raw string, now time.Time) bool {
	ts, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return false
	}
	maxAge := time.Duration(config.AppConfig.CreditCallbackMaxAgeSeconds) * time.Second
	age := now.Sub(ts)
	return age <= maxAge && age >= -CallbackClockSkew
}

func ListCreditRequests(c *fiber.Ctx) error {
	capability := middleware.CapabilityFrom(c)
	requests, err := service().GetCreditRequestsForUser(c.UserContext(), capability.Username)
	if err != nil {
		return serviceError(c, err)
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Credit requests retrieved successfully.", requests)
}

func ListRequirements(c *fiber.Ctx) error {
	courseID, _ := c.Locals("courseID").(string)
	reqs, err := service().GetCreditRequirements(c.UserContext(), storedCourseKey(c, courseID), c.Query("namespace"))
	if err != nil {
		return serviceError(c, err)
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Credit requirements retrieved successfully.", reqs)
}

func ListEligibility(c *fiber.Ctx) error {
	capability := middleware.CapabilityFrom(c)
	rows, err := service().GetCreditEligibility(c.UserContext(), capability.Username)
	if err != nil {
		return serviceError(c, err)
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Credit eligibility retrieved successfully.", rows)
}

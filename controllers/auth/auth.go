package authController

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"

	"lms/config"
	"lms/database"
	"lms/logger"
	"lms/middleware"
	"lms/models"
	authValidator "lms/validators/auth"
)

// HashPassword hashes with the configured bcrypt cost.
func HashPassword(password string) (string, error) {
	cost := config.AppConfig.SaltRound
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

func Login(c *fiber.Ctx) error {
	reqData, ok := c.Locals("validatedUser").(*authValidator.LoginRequest)
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Failed to parse request body!", nil)
	}

	db := database.Database.Db
	var user models.User

	// Retrieve user by username or email
	query := db.Where("is_deleted = ?", false)
	if reqData.Username != "" {
		query = query.Where("username = ?", reqData.Username)
	} else {
		query = query.Where("email = ?", reqData.Email)
	}
	if err := query.Preload("Profile").First(&user).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusUnauthorized, false, "Invalid credentials!", nil)
	}

	if user.IsBlocked {
		return middleware.JsonResponse(c, fiber.StatusUnauthorized, false, "Your account is blocked.", nil)
	}

	// Validate password
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(reqData.Password)); err != nil {
		logger.Log.Infow("login failed", "username", user.Username, "ip", c.IP())
		return middleware.JsonResponse(c, fiber.StatusUnauthorized, false, "Invalid credentials!", nil)
	}

	// Update last login time
	now := time.Now()
	if err := db.Model(&user).Update("last_login", now).Error; err != nil {
		logger.Log.Warnw("error saving last login time", "user_id", user.ID, "error", err)
	}
	user.LastLogin = &now

	token, err := middleware.GenerateJWT(user)
	if err != nil {
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to generate token", nil)
	}

	logger.Log.Infow("user logged in", "user_id", user.ID, "ip", c.IP(), "user_agent", c.Get("User-Agent"))

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Login successful.", fiber.Map{
		"user":  user,
		"token": token,
	})
}

// Me returns the caller's capability as the services see it.
func Me(c *fiber.Ctx) error {
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Profile retrieved successfully.", middleware.CapabilityFrom(c))
}

func ChangeLoginPassword(c *fiber.Ctx) error {
	reqData, ok := c.Locals("validatedPassword").(*authValidator.ChangePasswordRequest)
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Failed to parse request body!", nil)
	}
	userId, ok := c.Locals("userId").(uint)
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusUnauthorized, false, "Unauthorized!", nil)
	}

	db := database.Database.Db
	var user models.User
	if err := db.First(&user, userId).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusNotFound, false, "User not found!", nil)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(reqData.OldPassword)); err != nil {
		return middleware.JsonResponse(c, fiber.StatusUnauthorized, false, "Old password is incorrect!", nil)
	}

	hashed, err := HashPassword(reqData.NewPassword)
	if err != nil {
		logger.Log.Errorw("error hashing password", "error", err)
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to process your request!", nil)
	}
	if err := db.Model(&user).Update("password", hashed).Error; err != nil {
		logger.Log.Errorw("error updating password", "user_id", user.ID, "error", err)
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to update password!", nil)
	}

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Password changed successfully.", nil)
}

package middleware

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"

	"lms/auth"
	"lms/config"
	"lms/database"
	"lms/models"
	"lms/services/roles"
)

// GenerateJWT generates a JWT token for the user
func GenerateJWT(user models.User) (string, error) {
	claims := jwt.MapClaims{
		"userId":   user.ID,
		"username": user.Username,
		"email":    user.Email,
		"iat":      time.Now().Unix(),                     // issued at
		"exp":      time.Now().Add(24 * time.Hour).Unix(), // expiry 24h
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	jwtSecret := []byte(config.AppConfig.JWTKey)

	return token.SignedString(jwtSecret)
}

// JWTMiddleware checks the bearer token and stores the caller's capability
// in c.Locals("capability").
func JWTMiddleware(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return JsonResponse(c, fiber.StatusUnauthorized, false, "Missing or invalid Authorization header", nil)
	}

	// The token should be prefixed with "Bearer "
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return JsonResponse(c, fiber.StatusUnauthorized, false, "Invalid Authorization header format", nil)
	}
	tokenString := authHeader[len("Bearer "):]

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(config.AppConfig.JWTKey), nil
	})
	if err != nil || !token.Valid {
		return JsonResponse(c, fiber.StatusUnauthorized, false, "Invalid or expired token", nil)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || claims["userId"] == nil {
		return JsonResponse(c, fiber.StatusUnauthorized, false, "Invalid token payload", nil)
	}
	// JWT numbers decode as float64
	userID, ok := claims["userId"].(float64)
	if !ok {
		return JsonResponse(c, fiber.StatusUnauthorized, false, "Invalid token payload", nil)
	}

	capability, err := loadCapability(c.UserContext(), uint(userID))
	if err != nil {
		return JsonResponse(c, fiber.StatusUnauthorized, false, "Account not found or blocked", nil)
	}

	c.Locals("userId", capability.UserID)
	c.Locals("capability", capability)
	return c.Next()
}

func loadCapability(ctx context.Context, userID uint) (*auth.Capability, error) {
	db := database.Database.Db

	var user models.User
	if err := db.WithContext(ctx).Where("id = ? AND is_deleted = ? AND is_blocked = ?", userID, false, false).First(&user).Error; err != nil {
		return nil, err
	}

	grants, err := roles.NewService(db, nil).RolesForUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	return &auth.Capability{
		UserID:      user.ID,
		Username:    user.Username,
		Email:       user.Email,
		IsStaff:     user.IsStaff,
		IsSuperuser: user.IsSuperuser,
		Roles:       grants,
	}, nil
}

// CapabilityFrom returns the caller stored by JWTMiddleware, or Anonymous.
func CapabilityFrom(c *fiber.Ctx) *auth.Capability {
	if capability, ok := c.Locals("capability").(*auth.Capability); ok && capability != nil {
		return capability
	}
	return auth.Anonymous
}

func JsonResponse(c *fiber.Ctx, statusCode int, status bool, message string, data interface{}) error {
	return c.Status(statusCode).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"data":    data,
	})
}

func ValidationErrorResponse(c *fiber.Ctx, errors map[string]string) error {
	return JsonResponse(c, fiber.StatusBadRequest, false, "Validation failed!", errors)
}

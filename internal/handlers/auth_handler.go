package handlers

import (
	"time"

	"github.com/ahmetcoskunkizilkaya/confined-space-inventory/internal/config"
	"github.com/ahmetcoskunkizilkaya/confined-space-inventory/internal/dto"
	"github.com/ahmetcoskunkizilkaya/confined-space-inventory/internal/models"
	"github.com/ahmetcoskunkizilkaya/confined-space-inventory/internal/services"
	"github.com/gofiber/fiber/v2"
)

const (
	refreshCookieName = "refresh_token"
	refreshCookiePath = "/api/users"
)

type authService interface {
	Register(req *dto.RegisterRequest) (*models.User, error)
	Login(req *dto.LoginRequest) (*services.AuthResult, error)
	Refresh(rawToken string) (*services.AuthResult, error)
	Logout(rawToken string) error
}

type AuthHandler struct {
	authService  authService
	cookieSecure bool
}

func NewAuthHandler(authService authService, cfg *config.Config) *AuthHandler {
	return &AuthHandler{authService: authService, cookieSecure: cfg.CookieSecure}
}

func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	user, err := h.authService.Register(&req)
	if err != nil {
		return WriteError(c, err)
	}

	message := "Registration successful. Your account is pending administrator approval."
	if user.IsActive {
		message = "Registration successful."
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": message,
		"user":    dto.NewUserResponse(user),
	})
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	result, err := h.authService.Login(&req)
	if err != nil {
		return WriteError(c, err)
	}

	h.setRefreshCookie(c, result.RefreshToken, result.RefreshExpiresAt)
	return c.JSON(dto.AuthResponse{
		AccessToken: result.AccessToken,
		User:        dto.NewUserResponse(result.User),
	})
}

func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	result, err := h.authService.Refresh(c.Cookies(refreshCookieName))
	if err != nil {
		h.clearRefreshCookie(c)
		return WriteError(c, err)
	}

	h.setRefreshCookie(c, result.RefreshToken, result.RefreshExpiresAt)
	return c.JSON(dto.AuthResponse{
		AccessToken: result.AccessToken,
		User:        dto.NewUserResponse(result.User),
	})
}

func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	if err := h.authService.Logout(c.Cookies(refreshCookieName)); err != nil {
		return WriteError(c, err)
	}

	h.clearRefreshCookie(c)
	return c.JSON(dto.MessageResponse{Message: "Logged out successfully"})
}

func (h *AuthHandler) setRefreshCookie(c *fiber.Ctx, value string, expires time.Time) {
	c.Cookie(&fiber.Cookie{
		Name:     refreshCookieName,
		Value:    value,
		Path:     refreshCookiePath,
		Expires:  expires,
		HTTPOnly: true,
		Secure:   h.cookieSecure,
		SameSite: fiber.CookieSameSiteStrictMode,
	})
}

func (h *AuthHandler) clearRefreshCookie(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     refreshCookieName,
		Value:    "",
		Path:     refreshCookiePath,
		Expires:  time.Unix(0, 0),
		HTTPOnly: true,
		Secure:   h.cookieSecure,
		SameSite: fiber.CookieSameSiteStrictMode,
	})
}

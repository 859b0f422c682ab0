package controllers

import (
	"errors"
	"strconv"

	"github.com/MartinSchenk/CareerBoost/internal/pkg/cache"
	"github.com/MartinSchenk/CareerBoost/internal/pkg/database"
	"github.com/MartinSchenk/CareerBoost/internal/pkg/tokens"
	"github.com/gofiber/fiber/v2"
)

type consumeRequest struct {
	UserID      uint   `json:"user_id" validate:"required"`
	ServiceName string `json:"service_name" validate:"required"`
}

type createWalletRequest struct {
	UserID uint `json:"user_id" validate:"required"`
}

func tokenService() *tokens.Service {
	return tokens.NewServiceFromDB(database.GetDB(), cache.GetClient(), tokens.NewConfigFromEnv())
}

// HandleWalletCreate ensures the user's wallet exists, applying the welcome
// grant on first creation. Called by the registration flow.
func HandleWalletCreate(c *fiber.Ctx) error {
	var req createWalletRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request_body"})
	}
	if err := validate.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "validation_failed"})
	}

	wallet, err := tokenService().EnsureWalletWithWelcome(c.Context(), req.UserID)
	if err != nil {
		return tokenErrorResponse(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(wallet)
}

// HandleWalletShow returns the user's wallet state.
func HandleWalletShow(c *fiber.Ctx) error {
	userID, err := queryUserID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_user_id"})
	}

	wallet, err := tokenService().GetWallet(c.Context(), userID)
	if err != nil {
		return tokenErrorResponse(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(wallet)
}

// HandleTokenAccess reports whether the user may consume the named service.
// This is the read half of the contract other subsystems bill against.
func HandleTokenAccess(c *fiber.Ctx) error {
	userID, err := queryUserID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_user_id"})
	}
	serviceName := c.Query("service_name")

	allowed, err := tokenService().CanAccess(c.Context(), userID, serviceName)
	if err != nil {
		return tokenErrorResponse(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"allowed": allowed})
}

// HandleTokenConsume charges the user for one use of the named service.
func HandleTokenConsume(c *fiber.Ctx) error {
	var req consumeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request_body"})
	}
	if err := validate.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "validation_failed"})
	}

	if err := tokenService().DeductForService(c.Context(), req.UserID, req.ServiceName); err != nil {
		return tokenErrorResponse(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true})
}

// HandleTokenLedger returns a page of the user's transaction history,
// newest first.
func HandleTokenLedger(c *fiber.Ctx) error {
	userID, err := queryUserID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_user_id"})
	}
	offset := c.QueryInt("offset", 0)
	limit := c.QueryInt("limit", 50)

	rows, err := tokenService().ListTransactions(c.Context(), userID, offset, limit)
	if err != nil {
		return tokenErrorResponse(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"transactions": rows})
}

func queryUserID(c *fiber.Ctx) (uint, error) {
	id, err := strconv.ParseUint(c.Query("user_id"), 10, 32)
	if err != nil || id == 0 {
		return 0, errors.New("invalid user_id")
	}
	return uint(id), nil
}

// tokenErrorResponse maps token service errors onto HTTP statuses. The
// insufficient-balance message stays generic on purpose.
func tokenErrorResponse(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, tokens.ErrValidation):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "validation_failed"})
	case errors.Is(err, tokens.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found"})
	case errors.Is(err, tokens.ErrInsufficientTokens):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error":   "insufficient_tokens",
			"message": "insufficient tokens or no active subscription",
		})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_error"})
	}
}

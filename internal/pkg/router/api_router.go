package router

import (
	"github.com/MartinSchenk/CareerBoost/app/controllers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

type ApiRouter struct {
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api", limiter.New())
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Hello from api",
		})
	})

	v1 := api.Group("/v1")

	// Internal contract consumed by CV generation, recommendations and
	// market analysis.
	tokensGroup := v1.Group("/tokens")
	tokensGroup.Post("/wallet", controllers.HandleWalletCreate)
	tokensGroup.Get("/wallet", controllers.HandleWalletShow)
	tokensGroup.Get("/access", controllers.HandleTokenAccess)
	tokensGroup.Post("/consume", controllers.HandleTokenConsume)
	tokensGroup.Get("/ledger", controllers.HandleTokenLedger)

	// Purchase and subscription lifecycle.
	billingGroup := v1.Group("/billing")
	billingGroup.Post("/checkout", controllers.HandleCreateCheckout)
	billingGroup.Post("/subscription/cancel", controllers.HandleCancelSubscription)

	// Called by the payment processor, not by users.
	billingGroup.Post("/webhook", controllers.HandlePaymentWebhook)
}

func NewApiRouter() *ApiRouter {
	return &ApiRouter{}
}

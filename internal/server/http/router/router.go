package router

import (
	"log/slog"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"

	"github.com/polkiloo/storefront/internal/config"
	"github.com/polkiloo/storefront/internal/server/http/handlers"
	"github.com/polkiloo/storefront/internal/server/http/middleware"
)

const checkoutBucket = "checkout"

// Setup configures gin router with handlers and middleware.
func Setup(facade handlers.StoreFacade, limiter middleware.RateLimiter, cfg *config.Config, logger *slog.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	engine.Use(gin.Recovery())
	engine.Use(middleware.RequestLogger(logger))
	engine.Use(middleware.DecompressRequest())
	engine.Use(gzip.Gzip(gzip.DefaultCompression))

	authHandler := handlers.NewAuthHandler(facade)
	orderHandler := handlers.NewOrderHandler(facade, logger)
	adminHandler := handlers.NewAdminHandler(facade, logger)
	promoHandler := handlers.NewPromoHandler(facade, logger)
	webhookHandler := handlers.NewWebhookHandler(facade, logger)

	api := engine.Group("/api")
	user := api.Group("/user")
	user.POST("/register", authHandler.Register)
	user.POST("/login", authHandler.Login)

	api.POST("/payments/webhook", middleware.CallbackToken(cfg.WebhookCallbackToken, logger), webhookHandler.Handle)

	authed := api.Group("")
	authed.Use(middleware.AuthRequired(facade))

	orders := authed.Group("/orders")
	orders.POST("/checkout", middleware.RateLimit(limiter, checkoutBucket, logger), orderHandler.Checkout)
	orders.GET("", orderHandler.List)
	orders.GET("/:id", orderHandler.Get)
	orders.GET("/:id/payments", orderHandler.Payments)
	orders.POST("/:id/cancel", orderHandler.Cancel)
	orders.POST("/:id/repay", orderHandler.Repay)
	orders.POST("/:id/refund", orderHandler.Refund)

	authed.POST("/promos/validate", promoHandler.Validate)

	admin := authed.Group("/admin/orders")
	admin.Use(middleware.AdminRequired())
	admin.POST("/:id/refund", adminHandler.ProcessRefund)
	admin.POST("/:id/ship", adminHandler.Ship)
	admin.POST("/:id/complete", adminHandler.Complete)

	return engine
}

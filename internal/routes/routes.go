package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"classconnect-auth/internal/handlers"
	"classconnect-auth/internal/middleware"
	"classconnect-auth/internal/services"
)

func SetupRoutes(
	r *gin.Engine,
	tokens services.TokenIssuer,
	authHandler *handlers.AuthHandler,
	verifyHandler *handlers.VerifyHandler,
	healthHandler *handlers.HealthHandler,
) *gin.Engine {
	// ---- system
	r.GET("/healthz", healthHandler.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	auth := r.Group("/auth")
	{
		// ---- public
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
		auth.POST("/google", authHandler.Google)

		auth.POST("/notify", verifyHandler.Notify)
		auth.POST("/verify", verifyHandler.Verify)

		auth.POST("/recovery", verifyHandler.Recovery)
		auth.POST("/recovery/confirm", verifyHandler.ConfirmRecovery)
		auth.POST("/recovery/password", verifyHandler.ChangePassword)

		// ---- protected
		protected := auth.Group("", middleware.AuthMiddleware(tokens))
		{
			protected.GET("/protected", authHandler.Protected)
			protected.GET("/me", authHandler.Me)
		}
	}

	return r
}

package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/irongopher75/Techfest-Server/internal/access"
	"github.com/irongopher75/Techfest-Server/internal/security"
)

// RegisterRoutes wires the /api surface. Route classes: public,
// authenticated, superior-only and scoped event-admin.
func RegisterRoutes(
	r *gin.Engine,
	tokens *security.TokenService,
	eval *access.Evaluator,
	auth *AuthHandler,
	admins *AdminHandler,
	events *EventHandler,
	registrations *RegistrationHandler,
	payments *PaymentHandler,
) {
	authenticated := access.Authenticate(tokens)
	superior := access.RequireSuperior(eval)
	eventAdmin := access.RequireEventAdmin(eval)

	api := r.Group("/api")
	{
		authGroup := api.Group("/auth")
		{
			authGroup.POST("/signup", auth.Signup)
			authGroup.POST("/login", auth.Login)
			authGroup.POST("/refresh-token", auth.Refresh)
			authGroup.POST("/logout", authenticated, auth.Logout)
		}

		usersGroup := api.Group("/users")
		{
			usersGroup.GET("/find/:username", authenticated, admins.FindUser)
		}

		adminsGroup := api.Group("/admins", authenticated, superior)
		{
			adminsGroup.GET("", admins.List)
			adminsGroup.PUT("/update/:id", admins.Update)
		}

		eventsGroup := api.Group("/events")
		{
			eventsGroup.GET("", events.List)
			eventsGroup.GET("/:id", events.Get)
			eventsGroup.POST("", authenticated, superior, events.Create)
			eventsGroup.PUT("/:id", authenticated, eventAdmin, events.Update)
			eventsGroup.DELETE("/:id", authenticated, superior, events.Delete)
		}

		regGroup := api.Group("/registrations")
		{
			regGroup.POST("/register", authenticated, registrations.Register)
			regGroup.POST("/manual-upi", authenticated, registrations.ManualUPI)
			regGroup.GET("/upi-details", authenticated, registrations.UPIDetails)
			regGroup.GET("/my", authenticated, registrations.My)
			regGroup.GET("/all", authenticated, eventAdmin, registrations.ListAll)
			regGroup.POST("/verify/:id", authenticated, superior, registrations.Verify)
		}

		paymentsGroup := api.Group("/payments", authenticated)
		{
			paymentsGroup.POST("/create-order", payments.CreateOrder)
			paymentsGroup.POST("/verify", payments.VerifyPayment)
		}
	}
}

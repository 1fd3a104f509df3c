package api

import (
	"alcyxob/fitness-booking/internal/domain" // Needed for RoleMiddleware
	"alcyxob/fitness-booking/internal/service"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Services bundles what the HTTP layer depends on.
type Services struct {
	Auth      service.AuthService
	Classes   service.ClassService
	Scheduler service.SchedulerService
}

func SetupRoutes(router *gin.Engine, jwtSecret, webhookSecret string, svc Services) {
	authHandler := NewAuthHandler(svc.Auth, svc.Classes)
	classHandler := NewClassHandler(svc.Classes, svc.Scheduler)
	bookingHandler := NewBookingHandler(svc.Scheduler)
	paymentHandler := NewPaymentHandler(svc.Scheduler, webhookSecret)
	adminHandler := NewAdminHandler(svc.Scheduler)

	authMiddleware := AuthMiddleware(jwtSecret)

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	apiV1 := router.Group("/api/v1")
	{
		authGroup := apiV1.Group("/auth")
		{
			authGroup.POST("/register", authHandler.Register)
			authGroup.POST("/login", authHandler.Login)
		}

		apiV1.GET("/trainers", authHandler.ListTrainers)
		apiV1.GET("/classes", classHandler.ListClasses)
		apiV1.GET("/classes/:classId", classHandler.GetClass)

		// Authenticated by shared secret, not JWT
		apiV1.POST("/payments/webhook", paymentHandler.Webhook)
	}

	protected := apiV1.Group("")
	protected.Use(authMiddleware)
	{
		protected.GET("/me", func(c *gin.Context) {
			userID, role, ok := currentUser(c)
			if !ok {
				return
			}
			c.JSON(http.StatusOK, gin.H{"userId": userID.Hex(), "role": role})
		})

		// --- Sessions & Bookings ---
		sessions := protected.Group("/classes/:classId/sessions")
		{
			sessions.GET("", classHandler.ListSessions)
			sessions.POST("/:date/reserve", bookingHandler.Reserve)
			sessions.POST("/:date/rebook", bookingHandler.Rebook)
		}

		bookings := protected.Group("/bookings")
		{
			bookings.GET("/me", bookingHandler.MyBookings)
			// Owner or admin, checked by the service
			bookings.POST("/:bookingId/cancel", bookingHandler.Cancel)
		}

		// --- Trainer Specific Routes ---
		trainerApiGroup := protected.Group("/trainer")
		trainerApiGroup.Use(RoleMiddleware(domain.RoleTrainer))
		{
			trainerApiGroup.GET("/classes", classHandler.GetTrainerClasses)
			trainerApiGroup.POST("/classes", classHandler.CreateClass)
			trainerApiGroup.PUT("/classes/:classId", classHandler.UpdateClass)
			trainerApiGroup.DELETE("/classes/:classId", classHandler.DeleteClass)
			trainerApiGroup.POST("/classes/:classId/cover-upload-url", classHandler.RequestCoverUpload)
			trainerApiGroup.PUT("/classes/:classId/cover", classHandler.ConfirmCoverImage)
		}
		// Admins may read any roster but manage no classes.
		protected.GET("/trainer/classes/:classId/sessions/:date/roster",
			RoleMiddleware(domain.RoleTrainer, domain.RoleAdmin), classHandler.SessionRoster)

		adminGroup := protected.Group("/admin")
		adminGroup.Use(RoleMiddleware(domain.RoleAdmin))
		{
			adminGroup.POST("/cleanup", adminHandler.RunCleanup)
		}
	}
}

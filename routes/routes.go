package routes

import (
	"net/http"
	"time"

	"voicecab/handlers"
	"voicecab/utils"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// RegisterTwilioRoutes registers the telephony webhook endpoints.
func RegisterTwilioRoutes(r *gin.Engine, hb *handlers.HandlerBundle) {
	api := r.Group("/api/twilio")
	{
		api.POST("/call", hb.IncomingCallHandler)
		api.POST("/gather", hb.GatherHandler)
		api.GET("/simulate-call", hb.SimulateCallHandler)
	}
}

// RegisterDriverRoutes registers the driver heartbeat and status endpoints.
func RegisterDriverRoutes(r *gin.Engine, hb *handlers.HandlerBundle) {
	api := r.Group("/api/drivers")
	{
		api.POST("/:id/heartbeat", hb.HeartbeatHandler)
		api.POST("/:id/en-route", hb.EnRouteHandler)
		api.POST("/:id/arrived", hb.ArrivedHandler)
		api.POST("/:id/complete", hb.CompleteHandler)
	}
}

// RegisterBookingRoutes registers the operator booking endpoints.
func RegisterBookingRoutes(r *gin.Engine, hb *handlers.HandlerBundle) {
	api := r.Group("/api/bookings")
	{
		api.GET("", hb.ListBookingsHandler)
		api.GET("/:id", hb.GetBookingHandler)
		api.POST("/:id/assign", hb.AssignBookingHandler)
		api.POST("/:id/cancel", hb.CancelBookingHandler)
	}
}

// RegisterRealtimeRoute registers the event stream endpoint.
func RegisterRealtimeRoute(r *gin.Engine, hb *handlers.HandlerBundle) {
	r.GET("/ws", hb.SubscribeHandler)
}

// RegisterHealthRoute registers a health-check endpoint.
func RegisterHealthRoute(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "services": utils.GetHealthStatus()})
	})
}

// RegisterRoutes centralizes registration of all endpoints and middleware.
func RegisterRoutes(r *gin.Engine, hb *handlers.HandlerBundle) {
	// Setup global middleware (e.g., CORS) here.
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	RegisterTwilioRoutes(r, hb)
	RegisterDriverRoutes(r, hb)
	RegisterBookingRoutes(r, hb)
	RegisterRealtimeRoute(r, hb)
	RegisterHealthRoute(r)
}

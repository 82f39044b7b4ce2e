// File: voicecab/main.go
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"voicecab/config"
	"voicecab/cron"
	"voicecab/database"
	bookingRepoPkg "voicecab/database/repository/booking"
	userRepoPkg "voicecab/database/repository/user"
	"voicecab/handlers"
	"voicecab/middleware"
	"voicecab/routes"
	"voicecab/services/dialogue"
	"voicecab/services/dispatch"
	"voicecab/services/geo"
	"voicecab/services/nlu"
	"voicecab/services/realtime"
	"voicecab/utils"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
)

func main() {
	config.LoadConfig()
	logger := utils.GetLogger()

	database.InitDB()

	// Create the Gin router.
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(utils.ErrorHandler())
	router.Use(gin.Logger())
	router.Use(middleware.RateLimitMiddleware())

	// repositories.
	bookingRepo := bookingRepoPkg.NewMongoBookingRepo()
	userRepo := userRepoPkg.NewMongoUserRepo()

	// NLU stack: the geocoder is optional, the extractor degrades to raw
	// location text without it.
	var geocoder geo.Geocoder
	if config.AppConfig.GoogleMapsAPIKey != "" {
		geocoder = geo.NewGooglePlacesGeocoder(config.AppConfig.GoogleMapsAPIKey)
	} else {
		logger.Warn("no Maps API key configured; locations will not be geocoded")
	}

	var extractor nlu.Extractor
	switch config.AppConfig.NLUProvider {
	case "gemini":
		extractor = nlu.NewGeminiExtractor(config.AppConfig.GeminiAPIKey, geocoder)
	default:
		extractor = nlu.NewRulesExtractor(geocoder)
	}

	// Conversation session store.
	var redisClients []*redis.Client
	var sessionStore dialogue.SessionStore
	switch config.AppConfig.SessionStore {
	case "redis":
		utils.InitSessionCache()
		redisClients = append(redisClients, utils.GetSessionCacheClient())
		sessionStore = dialogue.NewRedisSessionStore(
			utils.GetSessionCacheClient(),
			time.Duration(config.AppConfig.SessionTTLMin)*time.Minute,
		)
	default:
		sessionStore = dialogue.NewMemorySessionStore()
	}

	utils.StartHealthMonitor(redisClients, database.MongoClient)

	// Dispatch stack.
	hub := realtime.NewHub()
	registry := dispatch.NewRegistry(time.Duration(config.AppConfig.DriverInactiveAfterMin) * time.Minute)
	coordinator := dispatch.NewCoordinator(registry, bookingRepo, hub)

	dispatchQueue := cron.NewDispatchQueue()
	defer dispatchQueue.Close()
	cron.InitDispatchWorker(coordinator, dispatchQueue)

	sweeper := dispatch.NewSweeper(registry, time.Duration(config.AppConfig.SweepIntervalSec)*time.Second)
	sweepCtx, stopSweeper := context.WithCancel(context.Background())
	defer stopSweeper()
	go sweeper.Run(sweepCtx)

	// Dialogue engine.
	engine := dialogue.NewEngine(
		sessionStore,
		extractor,
		bookingRepo,
		userRepo,
		dispatchQueue,
		time.Duration(config.AppConfig.NLUTimeoutMS)*time.Millisecond,
	)

	// handlers.
	voiceHandler := &handlers.VoiceHandler{Engine: engine}
	driverHandler := &handlers.DriverHandler{Registry: registry, Coordinator: coordinator}
	bookingHandler := &handlers.BookingHandler{Bookings: bookingRepo, Coordinator: coordinator}
	wsHandler := &handlers.WSHandler{Hub: hub}

	// Assemble the handler bundle.
	handlerBundle := &handlers.HandlerBundle{
		// Telephony endpoints.
		IncomingCallHandler: voiceHandler.IncomingCallHandler,
		GatherHandler:       voiceHandler.GatherHandler,
		SimulateCallHandler: voiceHandler.SimulateCallHandler,

		// Driver endpoints.
		HeartbeatHandler: driverHandler.HeartbeatHandler,
		EnRouteHandler:   driverHandler.EnRouteHandler,
		ArrivedHandler:   driverHandler.ArrivedHandler,
		CompleteHandler:  driverHandler.CompleteHandler,

		// Booking endpoints.
		ListBookingsHandler:  bookingHandler.ListBookingsHandler,
		GetBookingHandler:    bookingHandler.GetBookingHandler,
		AssignBookingHandler: bookingHandler.AssignBookingHandler,
		CancelBookingHandler: bookingHandler.CancelBookingHandler,

		// Realtime endpoint.
		SubscribeHandler: wsHandler.SubscribeHandler,
	}

	// Register routes with the assembled handler bundle.
	routes.RegisterRoutes(router, handlerBundle)

	// Start the HTTP server.
	port := config.AppConfig.AppPort
	if port == "" {
		port = "8080"
	}
	srv := &http.Server{
		Addr:    "0.0.0.0:" + port,
		Handler: router,
	}

	logger.Sugar().Infof("Starting server on %s...", srv.Addr)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Sugar().Fatalf("main: server failed to start: %v", err)
		}
	}()

	// Wait for an OS signal to gracefully shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Sugar().Info("main: server is shutting down...")

	stopSweeper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Sugar().Fatalf("main: server forced to shutdown: %v", err)
	}

	logger.Sugar().Info("main: server stopped gracefully")
}

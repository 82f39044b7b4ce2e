package handlers

import "github.com/gin-gonic/gin"

// HandlerBundle groups the wired handler funcs so route registration takes a
// single argument.
type HandlerBundle struct {
	// Telephony endpoints.
	IncomingCallHandler gin.HandlerFunc
	GatherHandler       gin.HandlerFunc
	SimulateCallHandler gin.HandlerFunc

	// Driver endpoints.
	HeartbeatHandler gin.HandlerFunc
	EnRouteHandler   gin.HandlerFunc
	ArrivedHandler   gin.HandlerFunc
	CompleteHandler  gin.HandlerFunc

	// Booking endpoints.
	ListBookingsHandler  gin.HandlerFunc
	GetBookingHandler    gin.HandlerFunc
	AssignBookingHandler gin.HandlerFunc
	CancelBookingHandler gin.HandlerFunc

	// Realtime endpoint.
	SubscribeHandler gin.HandlerFunc
}

// Package httptransport serves the entry points over HTTP with gin.
package httptransport

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/rockfordlhotka/calendar-mcp/internal/metrics"
	"github.com/rockfordlhotka/calendar-mcp/internal/service"
	"github.com/rockfordlhotka/calendar-mcp/internal/store"
)

// RouterDependencies holds what the router needs. Store and Metrics may
// be nil.
type RouterDependencies struct {
	Service *service.Service
	Store   store.Store
	Metrics *metrics.Metrics
	Logger  *zap.Logger
}

// Handler aggregates the HTTP handlers.
type Handler struct {
	svc   *service.Service
	store store.Store
	log   *zap.Logger
}

// NewRouter builds the gin engine with all routes registered.
func NewRouter(deps RouterDependencies) *gin.Engine {
	router := gin.New()
	router.Use(Recovery(deps.Logger))
	router.Use(RequestID())
	router.Use(RequestLogger(deps.Logger))

	h := &Handler{svc: deps.Service, store: deps.Store, log: deps.Logger}

	router.GET("/healthz", h.health)
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	api := router.Group("/api")
	{
		api.GET("/accounts", h.listAccounts)
		api.GET("/accounts/:id/emails/:emailId", h.getEmailDetail)
		api.PATCH("/accounts/:id/calendars/:calendarId/events/:eventId", h.updateEvent)
		api.DELETE("/accounts/:id/calendars/:calendarId/events/:eventId", h.deleteEvent)

		api.GET("/emails", h.getEmails)
		api.GET("/emails/search", h.searchEmails)
		api.POST("/emails", h.sendEmail)

		api.GET("/calendars", h.listCalendars)
		api.GET("/events", h.getEvents)
		api.POST("/events", h.createEvent)

		api.GET("/writes", h.listWrites)
	}

	router.NoRoute(func(c *gin.Context) {
		Error(c, http.StatusNotFound, "route not found", nil)
	})

	return router
}

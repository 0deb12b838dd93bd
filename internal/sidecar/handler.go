package sidecar

import (
	"net/http"
	"time"

	"codeberg.org/znoxx/sleepynas/internal/errors"
	"codeberg.org/znoxx/sleepynas/internal/logger"
	"github.com/gin-gonic/gin"
)

type handler struct {
	registry *Registry
}

// NewRouter exposes the registry over HTTP:
//
//	GET  /alive
//	GET  /go/:id
//	POST /status/sleep/:id, /status/wake/:id
//	GET  /status/get/:id
func NewRouter(registry *Registry) *gin.Engine {
	h := &handler{registry: registry}

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	router.GET("/alive", h.alive)
	router.GET("/go/:id", h.wake)
	router.POST("/status/:mode/:id", h.status)
	router.GET("/status/get/:id", h.get)
	router.NoRoute(notFound)

	return router
}

func (h *handler) alive(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "OK"})
}

func (h *handler) get(c *gin.Context) {
	server, err := h.registry.Get(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, server)
}

func (h *handler) status(c *gin.Context) {
	var status Status
	switch Status(c.Param("mode")) {
	case StatusSleep:
		status = StatusSleep
	case StatusWake:
		status = StatusWake
	default:
		notFound(c)
		return
	}

	server, err := h.registry.SetStatus(c.Param("id"), status)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, server)
}

func (h *handler) wake(c *gin.Context) {
	server, err := h.registry.Wake(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, server)
}

func respondError(c *gin.Context, err error) {
	switch {
	case errors.HasCode(err, errors.ErrServerNotFound):
		c.String(http.StatusNotFound, "server not found")
	case errors.HasCode(err, errors.ErrWakeFailed):
		logger.Error().Err(err).Msg("Wake failed")
		c.String(http.StatusInternalServerError, "failed to wake up")
	default:
		logger.Error().Err(err).Msg("Request failed")
		c.String(http.StatusInternalServerError, "internal server error")
	}
}

func notFound(c *gin.Context) {
	c.String(http.StatusNotFound, "not found")
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Str("client", c.ClientIP()).
			Msg("Request handled")
	}
}

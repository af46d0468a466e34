package router

import (
	"go-gin-trip-booking/internal/handler"
	"go-gin-trip-booking/internal/middleware"
	"go-gin-trip-booking/pkg/telemetry"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

type Handlers struct {
	Services  *handler.ServiceHandler
	Schedules *handler.ScheduleHandler
	Bookings  *handler.BookingHandler
	Files     *handler.FileHandler
}

type Options struct {
	AllowOrigins []string
	Tokens       middleware.TokenParser
}

// New 建立 gin engine 並註冊所有路由
func New(opts Options, h Handlers) *gin.Engine {
	r := gin.New()
	r.Use(
		gin.Recovery(),
		middleware.RequestID(),
		telemetry.TracingMiddleware(),
		middleware.RequestLogger(),
		cors.New(corsConfig(opts.AllowOrigins)),
	)

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
		})
	})

	authenticate := middleware.Auth(opts.Tokens)
	h.Services.RegisterRoutes(r, authenticate)
	h.Schedules.RegisterRoutes(r, authenticate)
	h.Bookings.RegisterRoutes(r, authenticate)
	h.Files.RegisterRoutes(r, authenticate)

	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders: []string{middleware.RequestIDHeader, "Content-Disposition"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
		cfg.AllowCredentials = true
	}
	return cfg
}

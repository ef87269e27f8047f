package http

import (
	"github.com/DavidPARK0417/marketlink-sub003/internal/adapter/config"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

type Router struct {
	*gin.Engine
}

func NewRouter(
	conf *config.HTTP,
	webhookHandler *WebhookHandler) (*Router, error) {

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(metricsMiddleware())

	// Swagger
	router.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	router.GET("/ping", func(ctx *gin.Context) {
		ctx.String(200, "pong")
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")
	{
		webhooks := api.Group("/webhooks")
		{
			webhooks.POST("/payments", webhookHandler.PaymentStatusChanged)
		}
	}

	return &Router{router}, nil
}

// Serve starts the HTTP server
func (r *Router) Serve(listenAddr string) error {
	return r.Run(listenAddr)
}

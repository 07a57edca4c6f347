package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/epigraph-ai/epigraph-backend/internal/http/handlers"
)

type RouterConfig struct {
	VocabularyHandler  *handlers.VocabularyHandler
	MaintenanceHandler *handlers.MaintenanceHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{
			"http://localhost:80",
			"http://localhost:3000",
			"http://localhost:5174",
		},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	router.GET("/healthz", handlers.HealthCheck)

	api := router.Group("/api")
	{
		api.GET("/vocabulary", cfg.VocabularyHandler.List)
		api.GET("/vocabulary/:name", cfg.VocabularyHandler.Get)
		api.POST("/vocabulary/resolve", cfg.VocabularyHandler.Resolve)

		api.POST("/maintenance/classify", cfg.MaintenanceHandler.RunClassifier)
		api.POST("/maintenance/validate", cfg.MaintenanceHandler.RunValidator)
	}

	return router
}

package server

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/meetscribe/meetscribe/internal/config"
	"github.com/meetscribe/meetscribe/internal/health"
	"github.com/meetscribe/meetscribe/internal/pipeline"
)

// NewRouter builds the HTTP API.
func NewRouter(cfg *config.Config, db *gorm.DB, orch *pipeline.Orchestrator) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	r.GET("/health", gin.WrapF(health.Handler))

	ledger := pipeline.NewGormLedger(db)

	api := r.Group("/api")
	{
		api.POST("/recordings/:id/process", StartProcessingHandler(orch))
		api.GET("/recordings/:id/status", StatusHandler(ledger))
		api.GET("/recordings/:id/tasks", ListTasksHandler(db))
	}

	return r
}

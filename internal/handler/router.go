package handler

import (
	"github.com/gin-gonic/gin"
)

type RouterDeps struct {
	Documents *DocumentHandler
	Answers   *AnswerHandler
	Vectors   *VectorHandler
	Stats     *StatsHandler
	// AnswerLimit throttles the generation endpoints when set.
	AnswerLimit gin.HandlerFunc
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	api.POST("/documents", deps.Documents.Ingest)
	api.GET("/documents", deps.Documents.List)
	api.GET("/documents/:id", deps.Documents.Get)
	api.DELETE("/documents/:id", deps.Documents.Delete)
	api.POST("/documents/:id/reindex", deps.Documents.Reindex)

	answers := api.Group("")
	if deps.AnswerLimit != nil {
		answers.Use(deps.AnswerLimit)
	}
	answers.POST("/answers", deps.Answers.Answer)
	answers.POST("/answers/stream", deps.Answers.AnswerStream)
	api.GET("/domains", deps.Answers.Domains)

	api.POST("/vectors/soft-delete", deps.Vectors.SoftDelete)
	api.POST("/vectors/restore", deps.Vectors.Restore)
	api.POST("/vectors/delete", deps.Vectors.Delete)
	api.GET("/vectors/stats", deps.Vectors.Stats)

	api.GET("/stats", deps.Stats.Stats)
	api.GET("/models", deps.Stats.Models)
}

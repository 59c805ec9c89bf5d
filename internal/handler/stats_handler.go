package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/unichat-ai/unichat/internal/ai"
	"github.com/unichat-ai/unichat/internal/pkg/response"
	"github.com/unichat-ai/unichat/internal/service"
)

type StatsHandler struct {
	stats   *service.StatsService
	manager *ai.Manager
}

func NewStatsHandler(stats *service.StatsService, manager *ai.Manager) *StatsHandler {
	return &StatsHandler{stats: stats, manager: manager}
}

func (h *StatsHandler) Stats(c *gin.Context) {
	stats, err := h.stats.Collect(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, stats)
}

func (h *StatsHandler) Models(c *gin.Context) {
	response.Success(c, gin.H{
		"chat_model":          h.manager.ChatModelName(),
		"embedding_model":     h.manager.EmbeddingModelName(),
		"embedding_provider":  h.manager.EmbeddingProviderName(),
		"embedding_dimension": h.manager.EmbeddingDimension(),
	})
}

package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/unichat-ai/unichat/internal/pkg/errcode"
	"github.com/unichat-ai/unichat/internal/pkg/response"
	"github.com/unichat-ai/unichat/internal/service"
)

type VectorHandler struct {
	vectors *service.VectorService
}

func NewVectorHandler(vectors *service.VectorService) *VectorHandler {
	return &VectorHandler{vectors: vectors}
}

type vectorIDsRequest struct {
	PointIDs []string `json:"point_ids"`
}

func (h *VectorHandler) SoftDelete(c *gin.Context) {
	var req vectorIDsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	if err := h.vectors.SoftDelete(c.Request.Context(), req.PointIDs); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"updated": len(req.PointIDs)})
}

func (h *VectorHandler) Restore(c *gin.Context) {
	var req vectorIDsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	if err := h.vectors.Restore(c.Request.Context(), req.PointIDs); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"updated": len(req.PointIDs)})
}

func (h *VectorHandler) Delete(c *gin.Context) {
	var req vectorIDsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	if err := h.vectors.Delete(c.Request.Context(), req.PointIDs); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"deleted": len(req.PointIDs)})
}

func (h *VectorHandler) Stats(c *gin.Context) {
	stats, err := h.vectors.Stats(c.Request.Context(), c.Query("namespace"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{
		"total":  stats.Total,
		"active": stats.Active,
	})
}

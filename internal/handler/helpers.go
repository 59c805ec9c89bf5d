package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/unichat-ai/unichat/internal/pkg/errcode"
	appErr "github.com/unichat-ai/unichat/internal/pkg/errors"
	"github.com/unichat-ai/unichat/internal/pkg/response"
)

func handleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	logutil.GetLogger(c.Request.Context()).Error("request failed",
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.Error(err),
	)
	switch {
	case errors.Is(err, appErr.ErrNotFound):
		response.Error(c, errcode.ErrNotFound, "not found")
	case errors.Is(err, appErr.ErrInvalid):
		response.Error(c, errcode.ErrInvalid, "invalid request")
	case errors.Is(err, appErr.ErrConflict):
		response.Error(c, errcode.ErrConflict, "conflict")
	case errors.Is(err, appErr.ErrRateLimited):
		response.Error(c, errcode.ErrTooMany, "rate limited")
	case errors.Is(err, appErr.ErrTimeout):
		response.Error(c, errcode.ErrTimeout, "timeout")
	case errors.Is(err, appErr.ErrUnavailable):
		response.Error(c, errcode.ErrUnavailable, "service unavailable")
	case errors.Is(err, appErr.ErrInconsistent):
		response.Error(c, errcode.ErrInconsistent, "index inconsistent, retry reindex")
	default:
		response.Error(c, errcode.ErrInternal, "internal error")
	}
}

func intQuery(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}


package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/timmy/vehicle-catalog/internal/logger"
	"github.com/timmy/vehicle-catalog/pkg/apierr"
)

// writeError writes err in the API error format. Server errors are logged
// with their cause; client errors at debug.
func writeError(c *gin.Context, err *apierr.Error) {
	ctx := c.Request.Context()
	if err.Status() >= 500 {
		logger.With(logger.Fields{logger.FieldStatus: err.Status()}).WithError(err).
			Error(ctx, "Request failed: code=%s", err.Code())
	} else {
		logger.CtxDebug(ctx, "Request rejected: code=%s, message=%s", err.Code(), err.Message())
	}
	c.AbortWithStatusJSON(err.Status(), err.Response())
}

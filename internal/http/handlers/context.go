package handlers

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
)

// requestContext bounds store and image host calls while keeping the
// request's trace and actor values.
func requestContext(ctx *gin.Context, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx.Request.Context(), d)
}

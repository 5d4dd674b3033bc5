package middlewares

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// MaxBodyBytes rejects bodies that declare more than max bytes and caps the
// rest while they are read. Multipart course writes get the upload limit plus
// room for the text fields; everything else gets the JSON limit.
func MaxBodyBytes(jsonMax, multipartMax int64) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		max := jsonMax
		if ctx.ContentType() == "multipart/form-data" {
			max = multipartMax
		}

		if ctx.Request.ContentLength > max {
			abort(ctx, http.StatusRequestEntityTooLarge, "payload_too_large", "Request body is too large")
			return
		}

		if ctx.Request.Body != nil {
			ctx.Request.Body = http.MaxBytesReader(ctx.Writer, ctx.Request.Body, max)
		}

		ctx.Next()
	}
}

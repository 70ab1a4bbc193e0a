package auth

import (
	"context"

	"github.com/gin-gonic/gin"
)

type ctxKey string

const (
	sellerIDKey ctxKey = "seller_id"
	userIDKey   ctxKey = "user_id"
)

// Middleware copies the seller and user identifiers from request headers into
// the request context. Upstream gateway authentication populates the headers.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if v := c.GetHeader("X-Seller-Id"); v != "" {
			ctx = context.WithValue(ctx, sellerIDKey, v)
		}
		if v := c.GetHeader("X-User-Id"); v != "" {
			ctx = context.WithValue(ctx, userIDKey, v)
		}
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func GetSellerID(ctx context.Context) string {
	if val, ok := ctx.Value(sellerIDKey).(string); ok {
		return val
	}
	return ""
}

func GetUserID(ctx context.Context) string {
	if val, ok := ctx.Value(userIDKey).(string); ok {
		return val
	}
	return ""
}

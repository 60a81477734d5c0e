package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// VisitStore appends one visit to the audit log.
type VisitStore interface {
	RecordVisit(ctx context.Context, accountID *uint) error
}

// VisitRecorder logs a visit for every successful listing or post read.
// It runs after the handler so failed requests are not counted.
func VisitRecorder(store VisitStore, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Request.Method != http.MethodGet {
			return
		}
		status := c.Writer.Status()
		if status < 200 || status >= 400 {
			return
		}
		path := c.FullPath()
		if path != "/api/v1/posts" && path != "/api/v1/posts/:id" {
			return
		}

		var accountID *uint
		if sess := SessionFrom(c); sess.Authenticated() {
			id := sess.AccountID
			accountID = &id
		}
		ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request.Context()), 2*time.Second)
		defer cancel()
		if err := store.RecordVisit(ctx, accountID); err != nil {
			logger.Warn("record visit failed", zap.String("path", path), zap.Error(err))
		}
	}
}

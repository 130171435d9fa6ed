package rest

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/JoeShih716/go-ledger-service/internal/app/core/usecase"
)

// NewRouter 建立 REST 路由。handler 只負責協定轉換，業務邏輯都在 usecase.Ledger
func NewRouter(ledger usecase.Ledger, log *slog.Logger) *gin.Engine {
	h := &Handler{ledger: ledger, log: log}

	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger(log))

	// 健康檢查 (liveness probe)
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.POST("/customers", h.CreateCustomer)
	r.POST("/accounts", h.OpenAccount)
	r.GET("/accounts/:id/balance", h.GetBalance)
	r.GET("/accounts/:id/transfers", h.GetTransferHistory)
	r.POST("/transfers", h.TransferFunds)

	return r
}

// RequestLogger 以 slog 記錄每個 HTTP 請求
func RequestLogger(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		level := slog.LevelInfo
		switch {
		case status >= http.StatusInternalServerError:
			level = slog.LevelError
		case status >= http.StatusBadRequest:
			level = slog.LevelWarn
		}
		log.LogAttrs(c.Request.Context(), level, "http request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.FullPath()),
			slog.Int("status", status),
			slog.Duration("duration", time.Since(start)),
		)
	}
}

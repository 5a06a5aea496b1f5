package handler

import (
	"net/http"

	"nexus/internal/metrics"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// RouterOptions 路由依赖
type RouterOptions struct {
	Mode         string
	RealtimePath string
	Realtime     http.Handler
}

// SetupRouter 配置路由
func SetupRouter(h *Handler, opts RouterOptions, log logrus.FieldLogger) *gin.Engine {
	if opts.Mode != "" {
		gin.SetMode(opts.Mode)
	}

	r := gin.New()

	r.Use(RecoveryMiddleware(log))
	r.Use(LoggerMiddleware(log))
	r.Use(CORSMiddleware())
	r.Use(MetricsMiddleware())

	r.GET("/stats", h.GetStats)

	user := r.Group("/user")
	{
		user.GET("/:id", h.GetUser)
		user.GET("/:id/transactions", h.GetUserTransactions)
	}

	r.POST("/game/reward", h.GameReward)
	r.GET("/chat/messages", h.ChatHistory)

	if opts.Realtime != nil {
		path := opts.RealtimePath
		if path == "" {
			path = "/ws"
		}
		r.GET(path, gin.WrapH(opts.Realtime))
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	return r
}

package server

import (
	"context"
	"net/http"
	"time"

	"ripplechat/internal/auth"
	"ripplechat/internal/config"
	"ripplechat/internal/metrics"
	"ripplechat/internal/mw"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

// SetupRouter 统一初始化 Gin 中间件、REST API 以及 WebSocket 端点。
// 限速器的后台清理随 ctx 结束而退出。
func SetupRouter(ctx context.Context, cfg config.Config, h *Handler, profiles auth.Bootstrapper, ws gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(metrics.GinMiddleware())
	r.Use(mw.CORS(cfg.Env, cfg.CORSOrigins))
	// 控制单个 IP+路由的速率。
	rps, burst, perMinute := orDefault(cfg.RateLimitRPS, 10), orDefault(cfg.RateLimitBurst, 20), orDefault(cfg.SendPerMinute, 30)
	ipLimiter := mw.NewRateLimiter(rate.Limit(rps), burst, 2*time.Minute).Start(ctx)
	r.Use(mw.RateLimit(ipLimiter, mw.ByIPAndRoute))

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 需要 Bearer Token 的业务接口。
	api := r.Group("/api/v1")
	api.Use(auth.AuthMiddleware(cfg.JWTSecret, profiles))

	api.GET("/me", h.Me)
	api.GET("/users/search", h.SearchUsers)
	api.POST("/conversations", h.StartConversation)
	api.GET("/conversations", h.ListConversations)
	api.GET("/conversations/:id/messages", h.ListMessages)

	sendLimiter := mw.NewRateLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute, 10*time.Minute).Start(ctx)
	api.POST("/conversations/:id/messages", mw.RateLimit(sendLimiter, mw.ByContextKey("uid")), h.SendMessage)

	if ws != nil {
		r.GET("/ws", ws)
	}
	return r
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

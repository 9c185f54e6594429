package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/xxxsen/chanlink/internal/limiter"
	"github.com/xxxsen/chanlink/internal/middleware"
)

type RouterDeps struct {
	Auth      *AuthHandler
	Channels  *ChannelHandler
	Telegram  *TelegramHandler
	JWTSecret []byte
	// BotAPIKey admits bots to the link confirm route. Empty closes it.
	BotAPIKey string
	// Limiter throttles the unauthenticated code routes per client ip. Nil
	// disables it.
	Limiter limiter.Limiter
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	api.POST("/auth/register", deps.Auth.Register)
	api.POST("/auth/login", deps.Auth.Login)

	codeGroup := api.Group("")
	if deps.Limiter != nil {
		codeGroup.Use(middleware.RateLimit(deps.Limiter))
	}
	codeGroup.POST("/channel/link/status", deps.Channels.Status)
	codeGroup.POST("/password/reset/request", deps.Channels.RequestReset)
	codeGroup.POST("/password/reset/confirm", deps.Channels.ConfirmReset)

	botGroup := codeGroup.Group("")
	botGroup.Use(middleware.BotAuth(deps.BotAPIKey))
	botGroup.POST("/channel/link/confirm", deps.Channels.ConfirmLink)

	if deps.Telegram != nil {
		api.POST("/channel/telegram/webhook", deps.Telegram.Webhook)
	}

	authGroup := api.Group("")
	authGroup.Use(middleware.JWTAuth(deps.JWTSecret))
	authGroup.GET("/channel/link", deps.Channels.MyStatus)
	authGroup.POST("/channel/link/request", deps.Channels.RequestLink)
}

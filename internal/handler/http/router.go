package http

import (
	"time"

	"github.com/didip/tollbooth/v7"
	"github.com/didip/tollbooth/v7/limiter"
	"github.com/didip/tollbooth_gin"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/mikiasgoitom/articulate-engage/internal/domain/entity"
	usecasecontract "github.com/mikiasgoitom/articulate-engage/internal/usecase/contract"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Router struct {
	interactionHandler *InteractionHandler
	listHandler        *ListHandler
	sessionHandler     *SessionHandler
	streamHandler      *StreamHandler
	allowedOrigins     []string
	ratePerSecond      float64
}

func NewRouter(interactionHandler *InteractionHandler, listHandler *ListHandler, sessionHandler *SessionHandler, streamHandler *StreamHandler, config usecasecontract.IConfigProvider) *Router {
	return &Router{
		interactionHandler: interactionHandler,
		listHandler:        listHandler,
		sessionHandler:     sessionHandler,
		streamHandler:      streamHandler,
		allowedOrigins:     config.GetAllowedOrigins(),
		ratePerSecond:      config.GetRateLimitPerSecond(),
	}
}

func (r *Router) SetupRoutes(router *gin.Engine) {
	router.Use(cors.New(cors.Config{
		AllowOrigins:     r.allowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/api/v1/metrics", gin.WrapH(promhttp.Handler()))

	// rate limiter configuration
	lmt := tollbooth.NewLimiter(r.ratePerSecond, &limiter.ExpirableOptions{DefaultExpirationTTL: time.Hour})
	lmt.SetIPLookups([]string{"RemoteAddr", "X-Forwarded-For", "X-Real-IP"})
	lmt.SetMessage("Too many requests, please try again later.")

	// API v1 routes
	v1 := router.Group("/api/v1")
	v1.Use(tollbooth_gin.LimitHandler(lmt))

	session := v1.Group("/session")
	{
		session.PUT("", r.sessionHandler.SetSessionHandler)
		session.DELETE("", r.sessionHandler.ClearSessionHandler)
	}

	subjects := v1.Group("/subjects/:subjectID")
	{
		subjects.GET("", r.interactionHandler.GetSubjectHandler)
		subjects.GET("/stream", r.streamHandler.ServeStream)

		// Engagement actions
		subjects.POST("/like", r.interactionHandler.ActionHandler(entity.ActionLike))
		subjects.POST("/dislike", r.interactionHandler.ActionHandler(entity.ActionDislike))
		subjects.POST("/save", r.interactionHandler.ActionHandler(entity.ActionSave))
		subjects.POST("/share", r.interactionHandler.ActionHandler(entity.ActionShare))
		subjects.POST("/report", r.interactionHandler.ReportHandler)
	}

	lists := v1.Group("/lists/:listKey")
	{
		lists.PUT("", r.listHandler.RegisterListPageHandler)
		lists.GET("", r.listHandler.GetListPageHandler)
		lists.DELETE("", r.listHandler.DeleteListPageHandler)
	}
}

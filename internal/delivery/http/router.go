package http

import (
	"github.com/glintdate/glint-backend/internal/delivery/http/handler"
	"github.com/glintdate/glint-backend/internal/delivery/http/middleware"
	"github.com/glintdate/glint-backend/internal/domain"
	"github.com/glintdate/glint-backend/internal/infrastructure/admission"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

type Router struct {
	queueHandler    *handler.QueueHandler
	matchHandler    *handler.MatchHandler
	matchingHandler *handler.MatchingHandler
	limiter         *admission.RateLimiter
	gate            *admission.Gate
	log             *zap.Logger
	env             string
}

func NewRouter(
	queueHandler *handler.QueueHandler,
	matchHandler *handler.MatchHandler,
	matchingHandler *handler.MatchingHandler,
	limiter *admission.RateLimiter,
	gate *admission.Gate,
	log *zap.Logger,
	env string,
) *Router {
	return &Router{
		queueHandler:    queueHandler,
		matchHandler:    matchHandler,
		matchingHandler: matchingHandler,
		limiter:         limiter,
		gate:            gate,
		log:             log,
		env:             env,
	}
}

func registerValidations() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterValidation("vote", func(fl validator.FieldLevel) bool {
			return domain.Vote(fl.Field().String()).Valid()
		})
	}
}

func (r *Router) Setup() *gin.Engine {
	if r.env != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	registerValidations()
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(r.log))

	// API v1: identity, then rate limit, then the admission gate — cheap
	// rejections happen before a store slot is taken.
	v1 := router.Group("/api/v1")
	v1.Use(middleware.Identity())
	v1.Use(middleware.RateLimit(r.limiter, r.log))
	v1.Use(middleware.Gate(r.gate, r.log))
	{
		queue := v1.Group("/queue")
		queue.Use(middleware.RequireUser())
		{
			queue.POST("/join", r.queueHandler.Join)
			queue.POST("/leave", r.queueHandler.Leave)
			queue.POST("/heartbeat", r.queueHandler.Heartbeat)
			queue.GET("/status", r.queueHandler.Status)
		}

		matches := v1.Group("/matches")
		matches.Use(middleware.RequireUser())
		{
			matches.GET("/active", r.matchHandler.Active)
			matches.POST("/:match_id/vote", r.matchHandler.Vote)
			matches.POST("/:match_id/end", r.matchHandler.End)
			matches.POST("/:match_id/date/join", r.matchHandler.JoinDate)
			matches.GET("/:match_id/date", r.matchHandler.GetDate)
		}

		// Operational trigger; no user identity required.
		v1.POST("/matching/run", r.matchingHandler.Run)
	}

	return router
}

package container

import (
	"fmt"

	"github.com/glintdate/glint-backend/internal/config"
	deliveryhttp "github.com/glintdate/glint-backend/internal/delivery/http"
	"github.com/glintdate/glint-backend/internal/delivery/http/handler"
	"github.com/glintdate/glint-backend/internal/infrastructure/admission"
	"github.com/glintdate/glint-backend/internal/infrastructure/cache"
	"github.com/glintdate/glint-backend/internal/infrastructure/database"
	"github.com/glintdate/glint-backend/internal/infrastructure/server"
	"github.com/glintdate/glint-backend/internal/infrastructure/videosession"
	"github.com/glintdate/glint-backend/internal/repository/postgres"
	"github.com/glintdate/glint-backend/internal/scheduler"
	"github.com/glintdate/glint-backend/internal/usecase/guardian"
	"github.com/glintdate/glint-backend/internal/usecase/lifecycle"
	"github.com/glintdate/glint-backend/internal/usecase/matchmaking"
	"github.com/glintdate/glint-backend/internal/usecase/queue"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Container wires the whole dependency graph.
type Container struct {
	Config    *config.Config
	DB        *sqlx.DB
	Redis     *redis.Client
	Server    *server.Server
	Scheduler *scheduler.Scheduler
	Log       *zap.Logger
}

func NewContainer(cfg *config.Config, log *zap.Logger) (*Container, error) {
	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	redisClient, err := database.NewRedisClient(&cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize redis: %w", err)
	}

	store := postgres.NewStore(db)
	readCache := cache.New(redisClient, cfg.Cache)

	video, err := videosession.New(cfg.VideoSession)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize video session service: %w", err)
	}

	// Use cases
	queueUseCase := queue.NewQueueUseCase(store, cfg.Matching, log)
	matchingUseCase := matchmaking.NewMatchingUseCase(store, readCache, cfg.Matching, log)
	lifecycleUseCase := lifecycle.NewLifecycleUseCase(store, readCache, video, cfg.Matching, log)
	guard := guardian.NewGuardian(store, lifecycleUseCase, cfg.Matching, log)

	// Admission layer
	limiter := admission.NewRateLimiter(redisClient, cfg.Admission)
	gate := admission.NewGate(cfg.Admission)
	controller := admission.NewController(gate, admission.NewSystemSampler(db), cfg.Admission, log)

	// Handlers
	queueHandler := handler.NewQueueHandler(queueUseCase, log)
	matchHandler := handler.NewMatchHandler(lifecycleUseCase, log)
	matchingHandler := handler.NewMatchingHandler(matchingUseCase, log)

	router := deliveryhttp.NewRouter(
		queueHandler,
		matchHandler,
		matchingHandler,
		limiter,
		gate,
		log,
		cfg.Server.Env,
	)

	srv := server.NewServer(&cfg.Server, router.Setup(), log)
	sched := scheduler.New(
		matchingUseCase,
		guard,
		controller,
		queueUseCase.Joined,
		cfg.Matching,
		cfg.Admission,
		log,
	)

	return &Container{
		Config:    cfg,
		DB:        db,
		Redis:     redisClient,
		Server:    srv,
		Scheduler: sched,
		Log:       log,
	}, nil
}

// Close closes all connections.
func (c *Container) Close() error {
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			c.Log.Warn("error closing redis", zap.Error(err))
		}
	}
	if c.DB != nil {
		if err := c.DB.Close(); err != nil {
			return fmt.Errorf("failed to close database: %w", err)
		}
	}
	return nil
}

package api

import (
	"context"
	"sessiongate/internal/config"
	"sessiongate/internal/models"
	"sessiongate/internal/sessions"
	"sessiongate/internal/websocket"

	gorillaws "github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// UserStore is the account lookup used by the login and profile handlers.
type UserStore interface {
	GetUserByEmail(ctx context.Context, email string) (*models.UserWithPlan, error)
	GetUserWithPlan(ctx context.Context, id int64) (*models.UserWithPlan, error)
	Ping(ctx context.Context) error
}

type Server struct {
	config   *config.Config
	store    UserStore
	engine   *sessions.Engine
	wsHub    *websocket.Hub
	upgrader gorillaws.Upgrader
	logger   *zap.Logger
}

func NewServer(cfg *config.Config, store UserStore, engine *sessions.Engine, wsHub *websocket.Hub, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		config:   cfg,
		store:    store,
		engine:   engine,
		wsHub:    wsHub,
		upgrader: websocket.NewUpgrader(cfg.CORS.AllowedOrigins),
		logger:   logger,
	}
}

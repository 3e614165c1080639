package di

import (
	"github.com/salonrush/queue-broker/internal/handler"
	"github.com/salonrush/queue-broker/internal/hub"
	"github.com/salonrush/queue-broker/internal/service"
	"github.com/salonrush/queue-broker/pkg/config"
	"github.com/salonrush/queue-broker/pkg/logger"
)

// Container holds all dependencies for the queue broker
type Container struct {
	// Infrastructure
	Hub            *hub.Hub
	EventPublisher service.EventPublisher
	TurnPasses     *service.TurnPassIssuer

	// Services
	QueueService *service.QueueService

	// Handlers
	WSHandler     *handler.WSHandler
	HealthHandler *handler.HealthHandler
}

// ContainerConfig contains configuration for building the container
type ContainerConfig struct {
	Config         *config.Config
	EventPublisher service.EventPublisher
	Logger         *logger.Logger
}

// NewContainer creates a new dependency injection container
func NewContainer(cfg *ContainerConfig) (*Container, error) {
	c := &Container{
		Hub:            hub.New(cfg.Logger),
		EventPublisher: cfg.EventPublisher,
	}

	passes, err := service.NewTurnPassIssuer(cfg.Config.TurnPass.Secret, cfg.Config.TurnPass.TTL)
	if err != nil {
		return nil, err
	}
	c.TurnPasses = passes

	// Initialize services
	c.QueueService = service.NewQueueService(
		service.Config{
			PerHeadMinutes:        cfg.Config.Queue.PerHeadMinutes,
			WalkInServiceName:     cfg.Config.Queue.WalkInServiceName,
			WalkInDurationMinutes: cfg.Config.Queue.WalkInDurationMinutes,
		},
		c.Hub,
		c.EventPublisher,
		c.TurnPasses,
		cfg.Logger,
	)

	// Initialize handlers
	c.WSHandler = handler.NewWSHandler(c.Hub, c.QueueService, cfg.Config.WebSocket, cfg.Logger)
	c.HealthHandler = handler.NewHealthHandler(c.Hub, c.QueueService, cfg.Config.App.Version)

	return c, nil
}

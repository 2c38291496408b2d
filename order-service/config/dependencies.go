package config

import (
	"context"
	"fmt"
	"log"

	"github.com/agrimarket/order-system/order-service/application"
	"github.com/agrimarket/order-system/order-service/handlers"
	"github.com/agrimarket/order-system/order-service/infrastructure"
	"github.com/agrimarket/order-system/order-service/workflow"
	sharedinfra "github.com/agrimarket/order-system/shared/infrastructure"
	"github.com/agrimarket/order-system/shared/telemetry"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
)

type Dependencies struct {
	// Database
	DB *sqlx.DB

	// Cache
	RedisClient *redis.Client

	// Repositories
	OrderRepository infrastructure.PostgresOrderRepository
	OrderCache      *infrastructure.RedisOrderCache

	// Collaborator clients
	Collaborators workflow.Collaborators

	// Use Cases
	CreateOrder           *application.CreateOrder
	GetOrder              *application.GetOrder
	ListOrders            *application.ListOrders
	UpdateOrderStatus     *application.UpdateOrderStatus
	CancelOrder           *application.CancelOrder
	GetOrderHistory       *application.GetOrderHistory
	ProcessShipmentUpdate *application.ProcessShipmentUpdate

	// HTTP Handlers
	OrderHandlers *handlers.OrderHandlers

	// Event Handlers
	OrderEventHandlers *handlers.OrderEventHandlers

	// Infrastructure
	EventPublisher  *sharedinfra.SNSPublisherAdapter
	EventSubscriber *sharedinfra.SQSSubscriberAdapter

	// Telemetry
	Telemetry         *telemetry.Telemetry
	TelemetryShutdown func()
}

func BuildDependencies(ctx context.Context, config *Config) (*Dependencies, error) {
	deps := &Dependencies{}

	// Initialize telemetry first
	if config.Telemetry.Enabled {
		telConfig := telemetry.OrderServiceConfig.WithOTLPEndpoint(config.Telemetry.OTLPEndpoint)
		tel, telemetryShutdown, err := telemetry.InitTelemetry(ctx, telConfig)
		if err != nil {
			log.Printf("Failed to initialize telemetry: %v", err)
			// Continue without telemetry rather than failing
		} else {
			deps.Telemetry = tel
			deps.TelemetryShutdown = telemetryShutdown
		}
	}

	// Initialize database
	db, err := sqlx.Connect("postgres", config.GetDatabaseURL())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	deps.DB = db

	// Initialize Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr:     config.Redis.Addr,
		Password: config.Redis.Password,
		DB:       config.Redis.DB,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	deps.RedisClient = redisClient

	// Initialize AWS infrastructure
	eventPublisher, err := sharedinfra.NewSNSPublisherAdapter(config.AWS.SNSTopicArn)
	if err != nil {
		return nil, fmt.Errorf("failed to create SNS publisher: %w", err)
	}
	deps.EventPublisher = eventPublisher

	eventSubscriber, err := sharedinfra.NewSQSSubscriberAdapter(config.AWS.SQSQueueURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create SQS subscriber: %w", err)
	}
	deps.EventSubscriber = eventSubscriber

	// Initialize repositories
	deps.OrderRepository = *infrastructure.NewPostgresOrderRepository(db)
	deps.OrderCache = infrastructure.NewRedisOrderCache(redisClient)

	// Initialize collaborator clients
	deps.Collaborators = workflow.Collaborators{
		Inventory:    infrastructure.NewHTTPInventoryClient(config.Collaborators.InventoryURL, config.Collaborators.Timeout),
		Payment:      infrastructure.NewHTTPPaymentClient(config.Collaborators.PaymentURL, config.Collaborators.Timeout),
		Notification: infrastructure.NewHTTPNotificationClient(config.Collaborators.NotificationURL, config.Collaborators.Timeout),
	}

	policies := workflow.DefaultPolicies()
	if config.Collaborators.LegacyPolicies {
		policies = workflow.LegacyPolicies()
	}

	// Initialize use cases
	deps.CreateOrder = application.NewCreateOrder(&deps.OrderRepository, deps.OrderCache, eventPublisher, deps.Collaborators, policies)
	deps.GetOrder = application.NewGetOrder(&deps.OrderRepository, deps.OrderCache)
	deps.ListOrders = application.NewListOrders(&deps.OrderRepository)
	deps.UpdateOrderStatus = application.NewUpdateOrderStatus(&deps.OrderRepository, deps.OrderCache, eventPublisher)
	deps.CancelOrder = application.NewCancelOrder(&deps.OrderRepository, deps.OrderCache, eventPublisher)
	deps.GetOrderHistory = application.NewGetOrderHistory(&deps.OrderRepository)
	deps.ProcessShipmentUpdate = application.NewProcessShipmentUpdate(deps.UpdateOrderStatus)

	// Initialize handlers
	deps.OrderHandlers = handlers.NewOrderHandlers(
		deps.CreateOrder,
		deps.GetOrder,
		deps.ListOrders,
		deps.UpdateOrderStatus,
		deps.CancelOrder,
		deps.GetOrderHistory,
	)
	deps.OrderEventHandlers = handlers.NewOrderEventHandlers(deps.ProcessShipmentUpdate)

	return deps, nil
}

// Close closes all dependencies
func (d *Dependencies) Close() error {
	var errs []error

	if d.DB != nil {
		if err := d.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		}
	}

	if d.RedisClient != nil {
		if err := d.RedisClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close redis client: %w", err))
		}
	}

	if d.EventPublisher != nil {
		if err := d.EventPublisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close event publisher: %w", err))
		}
	}

	if d.EventSubscriber != nil {
		if err := d.EventSubscriber.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close event subscriber: %w", err))
		}
	}

	if d.TelemetryShutdown != nil {
		d.TelemetryShutdown()
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors closing dependencies: %v", errs)
	}

	return nil
}

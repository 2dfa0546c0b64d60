package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/medbook/support-engine/internal/api/http"
	"github.com/medbook/support-engine/internal/api/http/handlers"
	"github.com/medbook/support-engine/internal/audit"
	"github.com/medbook/support-engine/internal/auth"
	"github.com/medbook/support-engine/internal/config"
	"github.com/medbook/support-engine/internal/events"
	"github.com/medbook/support-engine/internal/notify"
	"github.com/medbook/support-engine/internal/observability"
	"github.com/medbook/support-engine/internal/persistence"
	"github.com/medbook/support-engine/internal/repository"
	"github.com/medbook/support-engine/internal/scheduler"
	"github.com/medbook/support-engine/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	pool := pg.PoolHandle()
	ticketRepo := repository.NewTicketRepository(pool)
	messageRepo := repository.NewTicketMessageRepository(pool)
	userRepo := repository.NewUserRepository(pool)
	appointmentRepo := repository.NewAppointmentRepository(pool)
	subscriptionRepo := repository.NewSubscriptionRepository(pool)
	validationRepo := repository.NewValidationRepository(pool)

	auditSink := audit.NewSink(pool, logger)
	bus := events.NewInMemoryDispatcher()
	notifier := notify.NewRedisDispatcher(redis.Client, logger)
	service.NewNotificationService(notifier, logger).RegisterHandlers(bus)

	selector := service.NewAssignmentSelector(ticketRepo, userRepo, logger)
	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo:  ticketRepo,
		MessageRepo: messageRepo,
		UserRepo:    userRepo,
		Selector:    selector,
		Dispatcher:  bus,
		AuditSink:   auditSink,
		Logger:      logger,
	})
	escalationEngine := service.NewEscalationEngine(ticketRepo, messageRepo, bus, auditSink, logger)
	autoCloseSweeper := service.NewAutoCloseSweeper(ticketRepo, messageRepo, bus, auditSink, logger)
	reminderService := service.NewReminderService(appointmentRepo, subscriptionRepo, validationRepo, notifier, auditSink, logger)
	authService := service.NewAuthService(*cfg, userRepo)
	authMiddleware := auth.NewMiddleware(authService.TokenManager(), userRepo)

	metrics := observability.NewMetrics()

	jobs := scheduler.New(logger)
	jobs.Register("escalation", cfg.Scheduler.EscalationInterval(), func(ctx context.Context) error {
		result, err := escalationEngine.RunSweep(ctx, time.Now())
		metrics.RecordSweep("escalation", result.Escalated+result.Alerted, result.Errors)
		return err
	})
	jobs.Register("auto_close", cfg.Scheduler.AutoCloseInterval(), func(ctx context.Context) error {
		result, err := autoCloseSweeper.RunSweep(ctx, time.Now(), cfg.Scheduler.AutoCloseInactivity())
		metrics.RecordSweep("auto_close", result.Closed, result.Errors)
		return err
	})
	jobs.Register("appointment_reminders", cfg.Scheduler.ReminderInterval(), func(ctx context.Context) error {
		result, err := reminderService.RunAppointmentSweep(ctx, time.Now())
		metrics.RecordSweep("appointment_reminders", result.Notified, result.Errors)
		return err
	})
	jobs.Register("subscription_reminders", cfg.Scheduler.ReminderInterval(), func(ctx context.Context) error {
		result, err := reminderService.RunSubscriptionSweep(ctx, time.Now())
		metrics.RecordSweep("subscription_reminders", result.Notified, result.Errors)
		return err
	})
	jobs.Register("validation_reminders", cfg.Scheduler.ReminderInterval(), func(ctx context.Context) error {
		result, err := reminderService.RunValidationSweep(ctx, time.Now())
		metrics.RecordSweep("validation_reminders", result.Notified, result.Errors)
		return err
	})
	if cfg.Scheduler.Enabled {
		jobs.Start(ctx)
	}

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Auth:           handlers.NewAuthHandler(authService),
		Tickets:        handlers.NewTicketsHandler(ticketService),
		AdminTickets:   handlers.NewAdminTicketsHandler(ticketService, escalationEngine, autoCloseSweeper, metrics),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if cfg.Scheduler.Enabled {
		jobs.Stop()
	}
	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}

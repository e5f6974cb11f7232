package main

import (
	"context"
	"log"
	"os/signal"
	"strconv"
	"syscall"

	"go.uber.org/zap"

	"github.com/example/storefront/internal/config"
	"github.com/example/storefront/internal/notify"
	"github.com/example/storefront/pkg/mailer"
	"github.com/example/storefront/pkg/messagequeue"
)

// notifier consumes user events and sends welcome e-mails.
func main() {
	appConfig, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("CRITICAL_ERROR: Failed to load application configuration: %v", err)
	}
	zapLogger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("CRITICAL_ERROR: Failed to initialize Zap logger: %v", err)
	}
	defer zapLogger.Sync()

	if appConfig.RabbitMQURL == "" {
		zapLogger.Fatal("RABBITMQ_URL is required for the notifier")
	}

	m, err := mailer.New(mailer.Config{
		Host:     appConfig.SMTPHost,
		Port:     strconv.Itoa(appConfig.SMTPPort),
		Username: appConfig.SMTPUser,
		Password: appConfig.SMTPPassword,
		From:     appConfig.MailFrom,
	})
	if err != nil {
		zapLogger.Fatal("Invalid SMTP configuration", zap.Error(err))
	}

	mq, err := messagequeue.NewRabbitMQService(messagequeue.NewRabbitMQServiceConfig{URL: appConfig.RabbitMQURL}, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to connect to RabbitMQ", zap.Error(err))
	}
	defer mq.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	welcomer := notify.NewWelcomer(m, zapLogger)
	if err := mq.Consume(ctx, appConfig.EventsQueue, welcomer.Handle); err != nil {
		zapLogger.Error("Consumer stopped", zap.Error(err))
		return
	}
	zapLogger.Info("Notifier exiting gracefully.")
}

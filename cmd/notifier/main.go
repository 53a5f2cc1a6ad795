package main // Purchase notification worker

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/iliyamo/cinema-booking/internal/config"
	"github.com/iliyamo/cinema-booking/internal/logger"
	"github.com/iliyamo/cinema-booking/internal/notify"
)

func main() {
	log := logger.WithComponent("notifier")
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.WithError(err).Warn(".env not loaded")
	}

	path := os.Getenv("NOTIFICATIONS_LOG")
	if path == "" {
		path = "logs/notifications.log"
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.WithField("queue", notify.QueueName).WithField("path", path).Info("consuming")
	if err := notify.NewConsumer(config.RabbitURL(), path).Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Fatal("consumer stopped")
	}
}

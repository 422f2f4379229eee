package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"cipe-auth/internal/config"
	"cipe-auth/internal/email"

	"github.com/joho/godotenv"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// mailer consume los mensajes encolados por la API y los entrega por SMTP.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}
	if _, err := config.LoadSecrets(ctx); err != nil {
		log.Fatalf("load secrets: %v", err)
	}

	cfg, err := config.LoadMailerConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sender, err := email.NewSMTPSender(email.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUser,
		Password: cfg.SMTPPass,
		From:     cfg.SMTPFrom,
		FromName: cfg.SMTPFromName,
		UseTLS:   cfg.SMTPUseTLS,
	})
	if err != nil {
		logger.Fatal("smtp sender init", zap.Error(err))
	}

	conn, err := amqp.Dial(cfg.AMQPURL)
	if err != nil {
		logger.Fatal("amqp connect", zap.Error(err))
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		logger.Fatal("amqp channel", zap.Error(err))
	}
	defer ch.Close()

	if _, err := email.DeclareQueue(ch, cfg.AMQPQueue); err != nil {
		logger.Fatal("amqp queue", zap.Error(err))
	}

	logger.Info("mailer running", zap.String("queue", cfg.AMQPQueue))
	if err := email.NewConsumer(logger, sender).Run(ctx, ch, cfg.AMQPQueue); err != nil {
		logger.Fatal("consumer stopped", zap.Error(err))
	}
	logger.Info("mailer stopped")
}

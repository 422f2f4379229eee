package email

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
)

// Message es un correo ya renderizado.
type Message struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

func (m Message) validate() error {
	if strings.TrimSpace(m.To) == "" {
		return errors.New("to email is required")
	}
	if strings.TrimSpace(m.Subject) == "" {
		return errors.New("subject is required")
	}
	return nil
}

// Sender entrega un mensaje por algún transporte.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// logSender solo registra el envío; el cuerpo no se escribe porque lleva el código.
type logSender struct {
	logger *zap.Logger
}

func NewLogSender(logger *zap.Logger) Sender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &logSender{logger: logger}
}

func (s *logSender) Send(_ context.Context, msg Message) error {
	if err := msg.validate(); err != nil {
		return err
	}
	s.logger.Info("email delivery skipped (log transport)",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
	)
	return nil
}

package email

import (
	"context"
	"time"
)

// OTPNotifier renderiza el mensaje del desafío y lo encola para entrega.
type OTPNotifier struct {
	templates  *Templates
	dispatcher *Dispatcher
}

func NewOTPNotifier(templates *Templates, dispatcher *Dispatcher) *OTPNotifier {
	return &OTPNotifier{templates: templates, dispatcher: dispatcher}
}

func (n *OTPNotifier) SendOTP(_ context.Context, to, purpose, code string, expiresAt time.Time) error {
	msg, err := n.templates.RenderOTP(purpose, to, code, expiresAt)
	if err != nil {
		return err
	}
	return n.dispatcher.Enqueue(msg)
}

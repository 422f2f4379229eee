package email

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	ErrQueueFull        = errors.New("email queue full")
	ErrDispatcherClosed = errors.New("email dispatcher closed")
)

const defaultSendTimeout = 15 * time.Second

// DeliveryRecorder recibe el resultado de cada entrega.
type DeliveryRecorder interface {
	RecordDelivery(outcome string)
}

type nopDeliveryRecorder struct{}

func (nopDeliveryRecorder) RecordDelivery(string) {}

// Dispatcher desacopla la entrega del request: cola acotada y workers propios.
// Enqueue nunca bloquea.
type Dispatcher struct {
	logger      *zap.Logger
	sender      Sender
	recorder    DeliveryRecorder
	sendTimeout time.Duration

	mu     sync.RWMutex
	closed bool
	queue  chan Message
	wg     sync.WaitGroup
}

type DispatcherConfig struct {
	QueueSize   int
	Workers     int
	SendTimeout time.Duration
}

func NewDispatcher(logger *zap.Logger, sender Sender, recorder DeliveryRecorder, cfg DispatcherConfig) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if recorder == nil {
		recorder = nopDeliveryRecorder{}
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = defaultSendTimeout
	}
	d := &Dispatcher{
		logger:      logger,
		sender:      sender,
		recorder:    recorder,
		sendTimeout: cfg.SendTimeout,
		queue:       make(chan Message, cfg.QueueSize),
	}
	for i := 0; i < cfg.Workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	return d
}

func (d *Dispatcher) Enqueue(msg Message) error {
	if err := msg.validate(); err != nil {
		return err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrDispatcherClosed
	}
	select {
	case d.queue <- msg:
		return nil
	default:
		d.recorder.RecordDelivery("dropped")
		return ErrQueueFull
	}
}

// Close deja de aceptar mensajes y espera a que se vacíe la cola o venza ctx.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for msg := range d.queue {
		d.deliver(msg)
	}
}

func (d *Dispatcher) deliver(msg Message) {
	ctx, cancel := context.WithTimeout(context.Background(), d.sendTimeout)
	defer cancel()

	if err := d.sender.Send(ctx, msg); err != nil {
		d.recorder.RecordDelivery("failed")
		d.logger.Warn("email delivery failed",
			zap.Error(err),
			zap.String("to", msg.To),
			zap.String("subject", msg.Subject),
		)
		return
	}
	d.recorder.RecordDelivery("sent")
}

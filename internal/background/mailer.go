package background

import (
	"context"
	"log/slog"
	"time"
)

// OutboundEmail is a fully rendered message waiting for delivery.
type OutboundEmail struct {
	To      string
	Subject string
	Body    string
}

// Sender delivers a single rendered message.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Mailer drains a bounded queue on a worker goroutine. Enqueue never blocks
// and producers cannot observe delivery outcomes; failures are logged only.
type Mailer struct {
	sender      Sender
	logger      *slog.Logger
	queue       chan OutboundEmail
	stopCh      chan struct{}
	sendTimeout time.Duration
}

func NewMailer(sender Sender, logger *slog.Logger, queueSize int) *Mailer {
	if queueSize <= 0 {
		queueSize = 256
	}
	return &Mailer{
		sender:      sender,
		logger:      logger,
		queue:       make(chan OutboundEmail, queueSize),
		stopCh:      make(chan struct{}),
		sendTimeout: 30 * time.Second,
	}
}

// Enqueue hands a message to the worker. A full queue drops the message.
func (m *Mailer) Enqueue(msg OutboundEmail) {
	select {
	case m.queue <- msg:
	default:
		m.logger.Warn("mail queue full, dropping message",
			slog.String("subject", msg.Subject))
	}
}

// Start drains the queue until the context is cancelled or Stop is called.
func (m *Mailer) Start(ctx context.Context) {
	for {
		select {
		case msg := <-m.queue:
			m.deliver(ctx, msg)
		case <-m.stopCh:
			m.logger.Info("mailer stopped")
			return
		case <-ctx.Done():
			m.logger.Info("mailer context cancelled")
			return
		}
	}
}

func (m *Mailer) deliver(ctx context.Context, msg OutboundEmail) {
	sendCtx, cancel := context.WithTimeout(ctx, m.sendTimeout)
	defer cancel()

	if err := m.sender.Send(sendCtx, msg.To, msg.Subject, msg.Body); err != nil {
		m.logger.Error("failed to send email",
			slog.String("subject", msg.Subject),
			slog.Any("error", err))
	}
}

// Stop signals the worker to stop; queued messages are abandoned.
func (m *Mailer) Stop() {
	close(m.stopCh)
}

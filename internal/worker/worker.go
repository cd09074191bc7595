package worker

import (
	"context"
	"log"

	"github.com/ericogbekene/Bakery-projectBE/internal/broker"
	"github.com/ericogbekene/Bakery-projectBE/internal/mailer"
	"github.com/ericogbekene/Bakery-projectBE/internal/models"
	"github.com/ericogbekene/Bakery-projectBE/internal/util"

	"go.uber.org/zap"
)

// NotificationWorker consumes notification events and turns them into
// outbound emails. It runs off the request path so a slow or failing
// mail relay never blocks checkout or webhook processing.
type NotificationWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	sender       mailer.Sender
	logger       *zap.Logger
}

// NewNotificationWorker creates a new notification worker
func NewNotificationWorker(consumer *broker.Consumer, sender mailer.Sender) *NotificationWorker {
	w := &NotificationWorker{
		consumer: consumer,
		sender:   sender,
		logger:   util.GetLogger(),
	}

	eventHandler := broker.NewEventHandler()
	eventHandler.OnOrderCreated(w.handleOrderCreated)
	eventHandler.OnPaymentConfirmed(w.handlePaymentConfirmed)
	eventHandler.OnPaymentFailed(w.handlePaymentFailed)
	w.eventHandler = eventHandler

	return w
}

// Start starts the worker
func (w *NotificationWorker) Start(ctx context.Context) error {
	log.Println("Starting notification worker...")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *NotificationWorker) Stop() error {
	log.Println("Stopping notification worker...")
	return w.consumer.Close()
}

func (w *NotificationWorker) handleOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error {
	subject, body := mailer.OrderConfirmation(event.OrderNumber, event.TotalCost)
	if err := w.sender.Send(event.Email, subject, body); err != nil {
		w.logger.Error("Failed to send order confirmation",
			zap.Int64("order_id", event.OrderID),
			zap.Error(err))
		return err
	}
	util.EmailsSentTotal.WithLabelValues("order_confirmation").Inc()
	return nil
}

func (w *NotificationWorker) handlePaymentConfirmed(ctx context.Context, event *models.PaymentConfirmedEvent) error {
	subject, body := mailer.PaymentConfirmation(event.Reference, event.Amount)
	if err := w.sender.Send(event.Email, subject, body); err != nil {
		w.logger.Error("Failed to send payment confirmation",
			zap.String("reference", event.Reference),
			zap.Error(err))
		return err
	}
	util.EmailsSentTotal.WithLabelValues("payment_confirmation").Inc()
	return nil
}

func (w *NotificationWorker) handlePaymentFailed(ctx context.Context, event *models.PaymentFailedEvent) error {
	subject, body := mailer.PaymentFailure(event.Reference, event.Amount)
	if err := w.sender.Send(event.Email, subject, body); err != nil {
		w.logger.Error("Failed to send payment failure notice",
			zap.String("reference", event.Reference),
			zap.Error(err))
		return err
	}
	util.EmailsSentTotal.WithLabelValues("payment_failed").Inc()
	return nil
}

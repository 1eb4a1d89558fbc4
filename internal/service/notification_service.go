package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"custodian/internal/domain"
)

type NotificationType string

const (
	NotificationEmail NotificationType = "email"
	NotificationSMS   NotificationType = "sms"
)

// NotificationService delivers trade confirmations asynchronously through a
// worker pool. It is best-effort end to end: a full queue drops the message,
// a send failure is logged and swallowed. Nothing here can fail a committed
// financial mutation.
type NotificationService struct {
	emailService EmailService
	smsService   SMSService
	messageQueue chan NotificationMessage
	workers      int
	shutdownChan chan struct{}
	wg           sync.WaitGroup
	logger       *slog.Logger
}

type NotificationMessage struct {
	Type      NotificationType
	Recipient string
	Subject   string
	Message   string
	Metadata  map[string]string
	CreatedAt time.Time
}

type EmailService interface {
	SendEmail(to, subject, body string) error
}

type SMSService interface {
	SendSMS(to, message string) error
}

func NewNotificationService(
	emailService EmailService,
	smsService SMSService,
	workers int,
	logger *slog.Logger,
) *NotificationService {
	if logger == nil {
		logger = slog.Default()
	}

	service := &NotificationService{
		emailService: emailService,
		smsService:   smsService,
		messageQueue: make(chan NotificationMessage, 1000),
		workers:      workers,
		shutdownChan: make(chan struct{}),
		logger:       logger,
	}

	service.startWorkers()

	return service
}

// NotifyPurchase queues a purchase confirmation. Implements ledger.Notifier.
func (s *NotificationService) NotifyPurchase(account *domain.Account, symbol string, quantity, amount decimal.Decimal) {
	s.enqueue(NotificationMessage{
		Type:      NotificationEmail,
		Recipient: account.ID,
		Subject:   "Investment Purchase Confirmation",
		Message: fmt.Sprintf("You have successfully purchased %s units of %s for a total of $%s.",
			quantity.String(), symbol, amount.StringFixed(2)),
		Metadata: map[string]string{
			"account_id": account.ID,
			"symbol":     symbol,
		},
		CreatedAt: time.Now(),
	})
}

// NotifySale queues a sale confirmation carrying the realized profit or loss.
func (s *NotificationService) NotifySale(account *domain.Account, symbol string, quantity, profitOrLoss decimal.Decimal) {
	s.enqueue(NotificationMessage{
		Type:      NotificationEmail,
		Recipient: account.ID,
		Subject:   "Investment Sale Confirmation",
		Message: fmt.Sprintf("You have successfully sold %s units of %s. Total gain/loss: $%s.",
			quantity.String(), symbol, profitOrLoss.StringFixed(2)),
		Metadata: map[string]string{
			"account_id": account.ID,
			"symbol":     symbol,
		},
		CreatedAt: time.Now(),
	})
}

func (s *NotificationService) enqueue(msg NotificationMessage) {
	select {
	case s.messageQueue <- msg:
		s.logger.Info("Notification queued",
			slog.String("type", string(msg.Type)),
			slog.String("recipient", msg.Recipient),
			slog.String("subject", msg.Subject))
	default:
		s.logger.Warn("Notification queue full, dropping message",
			slog.String("recipient", msg.Recipient),
			slog.String("subject", msg.Subject))
	}
}

func (s *NotificationService) startWorkers() {
	for i := 0; i < s.workers; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}
}

func (s *NotificationService) worker(id int) {
	defer s.wg.Done()

	s.logger.Info("Notification worker started", slog.Int("worker_id", id))

	for {
		select {
		case msg := <-s.messageQueue:
			s.processNotification(msg, id)
		case <-s.shutdownChan:
			s.logger.Info("Notification worker stopping", slog.Int("worker_id", id))
			return
		}
	}
}

func (s *NotificationService) processNotification(msg NotificationMessage, workerID int) {
	startTime := time.Now()
	var err error

	switch msg.Type {
	case NotificationEmail:
		err = s.emailService.SendEmail(msg.Recipient, msg.Subject, msg.Message)
	case NotificationSMS:
		err = s.smsService.SendSMS(msg.Recipient, msg.Message)
	default:
		err = fmt.Errorf("unknown notification type: %s", msg.Type)
	}

	duration := time.Since(startTime)

	if err != nil {
		s.logger.Error("Failed to send notification",
			slog.String("type", string(msg.Type)),
			slog.String("recipient", msg.Recipient),
			slog.String("error", err.Error()),
			slog.Int("worker_id", workerID),
			slog.Duration("duration", duration))
	} else {
		s.logger.Info("Notification sent",
			slog.String("type", string(msg.Type)),
			slog.String("recipient", msg.Recipient),
			slog.Int("worker_id", workerID),
			slog.Duration("duration", duration))
	}
}

func (s *NotificationService) Shutdown(ctx context.Context) error {
	close(s.shutdownChan)

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Notification service shutdown complete")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type MockEmailService struct {
	mu         sync.Mutex
	SentEmails []struct {
		To      string
		Subject string
		Body    string
	}
}

func (m *MockEmailService) SendEmail(to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SentEmails = append(m.SentEmails, struct {
		To      string
		Subject string
		Body    string
	}{to, subject, body})
	return nil
}

func (m *MockEmailService) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.SentEmails)
}

type MockSMSService struct {
	mu      sync.Mutex
	SentSMS []struct {
		To      string
		Message string
	}
}

func (m *MockSMSService) SendSMS(to, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SentSMS = append(m.SentSMS, struct {
		To      string
		Message string
	}{to, message})
	return nil
}

// Package notify delivers reminder text to travelers and guides over SMS,
// Telegram, or the log in development.
package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/heritagelanka/ceylon360-backend/internal/models"
)

// ErrNoChannel is returned when a recipient cannot be reached on a channel
var ErrNoChannel = errors.New("recipient has no address for this channel")

// Notifier sends one text message to one recipient
type Notifier interface {
	Send(ctx context.Context, to models.Contact, text string) error
}

// SMSSender is the subset of the Dialog gateway used here
type SMSSender interface {
	SendMessage(ctx context.Context, phone, message string) (int64, error)
}

// SMSNotifier sends messages through an SMS gateway
type SMSNotifier struct {
	sender SMSSender
	logger *logrus.Logger
}

// NewSMSNotifier creates a new SMS notifier
func NewSMSNotifier(sender SMSSender, logger *logrus.Logger) *SMSNotifier {
	return &SMSNotifier{sender: sender, logger: logger}
}

// Send texts the recipient's phone
func (n *SMSNotifier) Send(ctx context.Context, to models.Contact, text string) error {
	if to.Phone == nil || *to.Phone == "" {
		return ErrNoChannel
	}
	txID, err := n.sender.SendMessage(ctx, *to.Phone, text)
	if err != nil {
		return fmt.Errorf("sms: %w", err)
	}
	n.logger.WithFields(logrus.Fields{
		"recipient":      to.Name,
		"transaction_id": txID,
	}).Debug("SMS sent")
	return nil
}

// TelegramSender is the subset of tgbotapi.BotAPI used here
type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier sends messages to a recipient's Telegram chat
type TelegramNotifier struct {
	bot TelegramSender
}

// telegramTimeout bounds every Bot API call, including the getMe check at startup
const telegramTimeout = 30 * time.Second

// NewTelegramNotifier creates a notifier backed by a bot token
func NewTelegramNotifier(token string) (*TelegramNotifier, error) {
	return newTelegramNotifier(token, tgbotapi.APIEndpoint, &http.Client{Timeout: telegramTimeout})
}

func newTelegramNotifier(token, endpoint string, client *http.Client) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPIWithClient(token, endpoint, client)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	return &TelegramNotifier{bot: bot}, nil
}

// NewTelegramNotifierWithSender wraps an existing sender
func NewTelegramNotifierWithSender(bot TelegramSender) *TelegramNotifier {
	return &TelegramNotifier{bot: bot}
}

// Send posts the text to the recipient's chat
func (n *TelegramNotifier) Send(ctx context.Context, to models.Contact, text string) error {
	if to.TelegramChatID == nil {
		return ErrNoChannel
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := n.bot.Send(tgbotapi.NewMessage(*to.TelegramChatID, text)); err != nil {
		return fmt.Errorf("telegram: %w", err)
	}
	return nil
}

// LogNotifier writes messages to the log instead of delivering them
type LogNotifier struct {
	logger *logrus.Logger
}

// NewLogNotifier creates a development notifier
func NewLogNotifier(logger *logrus.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Send logs the message
func (n *LogNotifier) Send(_ context.Context, to models.Contact, text string) error {
	n.logger.WithFields(logrus.Fields{
		"recipient": to.Name,
		"message":   text,
	}).Info("[DEV] Notification")
	return nil
}

// Multi tries each notifier in order and succeeds on the first delivery.
// Recipients without an address for a channel are skipped silently.
type Multi struct {
	notifiers []Notifier
}

// NewMulti combines notifiers in priority order
func NewMulti(notifiers ...Notifier) *Multi {
	return &Multi{notifiers: notifiers}
}

// Send delivers through the first channel that works
func (m *Multi) Send(ctx context.Context, to models.Contact, text string) error {
	var errs []error
	for _, n := range m.notifiers {
		err := n.Send(ctx, to, text)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrNoChannel) {
			errs = append(errs, err)
		}
	}
	if len(errs) == 0 {
		return ErrNoChannel
	}
	return errors.Join(errs...)
}

// Package receipt отправляет покупателю письмо о выданном ранге.
package receipt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/magabrotheeeer/rankshop/internal/lib/sl"
	"github.com/magabrotheeeer/rankshop/internal/lib/smtp"
	"github.com/magabrotheeeer/rankshop/internal/models"
	"github.com/magabrotheeeer/rankshop/internal/storage/repository"
)

// UserReader находит пользователя по id.
type UserReader interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
}

// RankNamer возвращает отображаемое имя ранга.
type RankNamer interface {
	RankName(id string) string
}

// Mailer обрабатывает очередь квитанций.
type Mailer struct {
	users     UserReader
	ranks     RankNamer
	transport smtp.TransportInterface
	log       *slog.Logger
}

// NewMailer создает Mailer. При transport == nil письма не отправляются.
func NewMailer(users UserReader, ranks RankNamer, transport smtp.TransportInterface, log *slog.Logger) *Mailer {
	return &Mailer{
		users:     users,
		ranks:     ranks,
		transport: transport,
		log:       log,
	}
}

// Handle отправляет квитанцию по событию выдачи ранга. Ошибка SMTP
// возвращает сообщение в очередь.
func (m *Mailer) Handle(ctx context.Context, body []byte) error {
	const op = "receipt.Handle"
	log := m.log.With(slog.String("op", op))

	var event models.RankSyncEvent
	if err := json.Unmarshal(body, &event); err != nil {
		log.Error("failed to unmarshal message body", sl.Err(err))
		return nil
	}
	log = log.With(slog.String("purchase_id", event.PurchaseID))

	if m.transport == nil {
		log.Debug("smtp is not configured, receipt skipped")
		return nil
	}

	user, err := m.users.GetUser(ctx, event.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			log.Warn("receipt for unknown user skipped", slog.String("user_id", event.UserID))
			return nil
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	if !user.EmailNotifications || user.Email == "" {
		log.Debug("email notifications disabled, receipt skipped")
		return nil
	}

	subject, text := m.compose(user, event)
	if err := m.sendEmail([]string{user.Email}, subject, text); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (m *Mailer) compose(user *models.User, event models.RankSyncEvent) (string, string) {
	granted := m.ranks.RankName(event.Grant)
	if event.Revoke != "" {
		return "Rank upgraded: " + granted, fmt.Sprintf(
			"Hello, %s!\n\nYour rank %s has been upgraded to %s.\n\nPurchase: %s",
			user.Username, m.ranks.RankName(event.Revoke), granted, event.PurchaseID)
	}
	return "Rank purchased: " + granted, fmt.Sprintf(
		"Hello, %s!\n\nThank you for purchasing the %s rank.\n\nPurchase: %s",
		user.Username, granted, event.PurchaseID)
}

func (m *Mailer) sendEmail(to []string, subject, bodyText string) error {
	msg := strings.Join([]string{
		"From: " + m.transport.GetSMTPUser(),
		"To: " + strings.Join(to, ";"),
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=\"UTF-8\"",
		"",
		bodyText,
	}, "\r\n")

	client, err := m.transport.Connect()
	if err != nil {
		m.log.Error("failed to connect to smtp server", sl.Err(err))
		return err
	}
	defer client.Close()

	if err := client.Mail(m.transport.GetSMTPUser()); err != nil {
		m.log.Error("failed to set MAIL FROM", slog.String("from", m.transport.GetSMTPUser()), sl.Err(err))
		return err
	}
	for _, addr := range to {
		if err := client.Rcpt(addr); err != nil {
			m.log.Error("failed to set RCPT TO", slog.String("recipient", addr), sl.Err(err))
			return err
		}
	}

	wc, err := client.Data()
	if err != nil {
		m.log.Error("failed to get data writer", sl.Err(err))
		return err
	}
	if _, err = wc.Write([]byte(msg)); err != nil {
		m.log.Error("failed to write email body", sl.Err(err))
		return err
	}
	if err = wc.Close(); err != nil {
		m.log.Error("failed to close data writer", sl.Err(err))
		return err
	}
	if err = client.Quit(); err != nil {
		m.log.Error("failed to quit smtp client", sl.Err(err))
		return err
	}

	m.log.Info("receipt sent", slog.Any("to", to))
	return nil
}

package notify

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/OldStager01/cloudpulse/internal/logger"
	"github.com/OldStager01/cloudpulse/pkg/models"
)

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Timeout  time.Duration
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPNotifier sends plain-text alerts through an SMTP relay.
type SMTPNotifier struct {
	config SMTPConfig
	send   sendFunc
}

func NewSMTPNotifier(cfg SMTPConfig) *SMTPNotifier {
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &SMTPNotifier{config: cfg, send: smtp.SendMail}
}

func (n *SMTPNotifier) NotifyAnomalies(ctx context.Context, recipients []string, anomalies []models.Anomaly) error {
	if len(anomalies) == 0 {
		return nil
	}
	if len(recipients) == 0 {
		return ErrNoRecipients
	}

	msg := Render(anomalies)
	payload := n.compose(recipients, msg)
	addr := net.JoinHostPort(n.config.Host, strconv.Itoa(n.config.Port))

	var auth smtp.Auth
	if n.config.Username != "" {
		auth = smtp.PlainAuth("", n.config.Username, n.config.Password, n.config.Host)
	}

	ctx, cancel := context.WithTimeout(ctx, n.config.Timeout)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- n.send(addr, auth, n.config.From, recipients, payload)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to send anomaly email: %w", err)
		}
	case <-ctx.Done():
		return fmt.Errorf("failed to send anomaly email: %w", ctx.Err())
	}

	logger.WithFields(map[string]interface{}{
		"recipients": len(recipients),
		"anomalies":  len(anomalies),
	}).Info("Anomaly email sent")
	return nil
}

func (n *SMTPNotifier) compose(recipients []string, msg Message) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", n.config.From)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(recipients, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n\r\n")
	b.WriteString(strings.ReplaceAll(msg.Body, "\n", "\r\n"))
	return []byte(b.String())
}

// LogNotifier writes alerts to the log instead of sending them.
type LogNotifier struct{}

func (LogNotifier) NotifyAnomalies(ctx context.Context, recipients []string, anomalies []models.Anomaly) error {
	if len(anomalies) == 0 {
		return nil
	}
	msg := Render(anomalies)
	logger.WithContext(ctx).WithFields(map[string]interface{}{
		"subject":    msg.Subject,
		"recipients": strings.Join(recipients, ","),
		"anomalies":  len(anomalies),
	}).Info("Anomaly notification (log only)")
	return nil
}

package notify

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OldStager01/cloudpulse/internal/resilience"
	"github.com/OldStager01/cloudpulse/pkg/models"
)

var sample = []models.Anomaly{
	{Timestamp: "2024-04-01 10:00", Service: "EC2", Severity: models.SeverityHigh, Description: "150.0% above normal usage"},
	{Timestamp: "2024-04-01 10:00", Service: "S3", Severity: models.SeverityLow, Description: "45.0% above normal usage"},
}

func TestRender(t *testing.T) {
	msg := Render(sample)

	assert.Equal(t, "[CloudPulse AI] Anomaly detected at 2024-04-01 10:00", msg.Subject)
	assert.Equal(t,
		"2024-04-01 10:00 | EC2 | HIGH\n150.0% above normal usage\n\n2024-04-01 10:00 | S3 | LOW\n45.0% above normal usage\n",
		msg.Body)
}

func TestRender_Empty(t *testing.T) {
	assert.Equal(t, Message{}, Render(nil))
}

func TestSMTPNotifier_Sends(t *testing.T) {
	n := NewSMTPNotifier(SMTPConfig{Host: "smtp.example.com", From: "alerts@example.com", Username: "u", Password: "p"})

	var gotAddr string
	var gotTo []string
	var gotMsg string
	n.send = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotTo, gotMsg = addr, to, string(msg)
		return nil
	}

	err := n.NotifyAnomalies(context.Background(), []string{"a@example.com", "b@example.com"}, sample)
	require.NoError(t, err)

	assert.Equal(t, "smtp.example.com:587", gotAddr)
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, gotTo)
	assert.Contains(t, gotMsg, "Subject: [CloudPulse AI] Anomaly detected at 2024-04-01 10:00\r\n")
	assert.Contains(t, gotMsg, "To: a@example.com, b@example.com\r\n")
	assert.True(t, strings.HasSuffix(gotMsg, "45.0% above normal usage\r\n"))
}

func TestSMTPNotifier_NoRecipients(t *testing.T) {
	n := NewSMTPNotifier(SMTPConfig{Host: "smtp.example.com"})
	err := n.NotifyAnomalies(context.Background(), nil, sample)
	assert.ErrorIs(t, err, ErrNoRecipients)

	assert.NoError(t, n.NotifyAnomalies(context.Background(), nil, nil))
}

func TestSMTPNotifier_SendError(t *testing.T) {
	n := NewSMTPNotifier(SMTPConfig{Host: "smtp.example.com"})
	boom := errors.New("connection refused")
	n.send = func(string, smtp.Auth, string, []string, []byte) error { return boom }

	err := n.NotifyAnomalies(context.Background(), []string{"a@example.com"}, sample)
	assert.ErrorIs(t, err, boom)
}

func TestSMTPNotifier_Timeout(t *testing.T) {
	n := NewSMTPNotifier(SMTPConfig{Host: "smtp.example.com", Timeout: 20 * time.Millisecond})
	release := make(chan struct{})
	defer close(release)
	n.send = func(string, smtp.Auth, string, []string, []byte) error {
		<-release
		return nil
	}

	err := n.NotifyAnomalies(context.Background(), []string{"a@example.com"}, sample)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLogNotifier(t *testing.T) {
	var n Notifier = LogNotifier{}
	assert.NoError(t, n.NotifyAnomalies(context.Background(), []string{"a@example.com"}, sample))
}

type flakyNotifier struct {
	failures int
	calls    int
}

func (f *flakyNotifier) NotifyAnomalies(context.Context, []string, []models.Anomaly) error {
	f.calls++
	if f.calls <= f.failures {
		return errors.New("451 try again later")
	}
	return nil
}

func TestResilientNotifier_RetriesUntilSuccess(t *testing.T) {
	inner := &flakyNotifier{failures: 2}
	n := NewResilientNotifier(ResilientConfig{Notifier: inner, RetryAttempts: 3, RetryDelay: time.Millisecond})

	require.NoError(t, n.NotifyAnomalies(context.Background(), []string{"ops@example.com"}, sample))
	assert.Equal(t, 3, inner.calls)
	assert.Equal(t, resilience.StateClosed, n.CircuitState())
}

func TestResilientNotifier_OpensCircuit(t *testing.T) {
	inner := &flakyNotifier{failures: 100}
	n := NewResilientNotifier(ResilientConfig{
		Notifier:      inner,
		MaxFailures:   2,
		CoolDown:      time.Hour,
		RetryAttempts: 1,
		RetryDelay:    time.Millisecond,
	})
	ctx := context.Background()

	assert.Error(t, n.NotifyAnomalies(ctx, []string{"ops@example.com"}, sample))
	assert.Error(t, n.NotifyAnomalies(ctx, []string{"ops@example.com"}, sample))
	assert.Equal(t, resilience.StateOpen, n.CircuitState())

	err := n.NotifyAnomalies(ctx, []string{"ops@example.com"}, sample)
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.Equal(t, 2, inner.calls)

	n.ResetCircuit()
	assert.Equal(t, resilience.StateClosed, n.CircuitState())
}

func TestResilientNotifier_NoRecipientsSkipsBreaker(t *testing.T) {
	inner := &flakyNotifier{}
	n := NewResilientNotifier(ResilientConfig{Notifier: inner, MaxFailures: 1})

	assert.ErrorIs(t, n.NotifyAnomalies(context.Background(), nil, sample), ErrNoRecipients)
	assert.Equal(t, 0, inner.calls)
	assert.Equal(t, resilience.StateClosed, n.CircuitState())
}

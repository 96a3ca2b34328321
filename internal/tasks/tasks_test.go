package tasks

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/At4lian/editra/internal/config"
	"github.com/At4lian/editra/internal/email"
)

type capturingSender struct {
	messages []*email.Message
	err      error
}

func (s *capturingSender) Send(ctx context.Context, msg *email.Message) error {
	s.messages = append(s.messages, msg)
	return s.err
}

func testPayloadTask(t *testing.T, payload InvoiceEmailPayload) *asynq.Task {
	t.Helper()
	task, err := NewInvoiceEmailTask(payload)
	require.NoError(t, err)
	return task
}

func TestHandleInvoiceEmailTask(t *testing.T) {
	sender := &capturingSender{}
	processor := NewTaskProcessor(&config.Config{}, sender)

	issue := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	task := testPayloadTask(t, InvoiceEmailPayload{
		To:            "billing@acme.example",
		Bcc:           "archive@editra.example",
		ClientName:    "Acme",
		InvoiceName:   "F2026-007_AC",
		InvoiceNumber: 7,
		Total:         1250.50,
		CurrencyCode:  "CZK",
		IssueDate:     issue,
		DueDate:       issue.AddDate(0, 0, 14),
		PDFBase64:     base64.StdEncoding.EncodeToString([]byte("%PDF-1.4 test")),
	})

	require.NoError(t, processor.HandleInvoiceEmailTask(context.Background(), task))
	require.Len(t, sender.messages, 1)

	msg := sender.messages[0]
	assert.Equal(t, []string{"billing@acme.example"}, msg.To)
	assert.Equal(t, []string{"archive@editra.example"}, msg.Bcc)
	assert.Equal(t, "Invoice F2026-007_AC", msg.Subject)
	assert.Contains(t, msg.Text, "Hello Acme")
	assert.Contains(t, msg.Text, "1250.50 CZK")
	assert.Contains(t, msg.Text, "01.03.2026")
	assert.Contains(t, msg.Text, "15.03.2026")
	assert.Contains(t, msg.Text, "Variable symbol: 7")

	require.Len(t, msg.Attachments, 1)
	assert.Equal(t, "F2026-007_AC.pdf", msg.Attachments[0].Filename)
	assert.Equal(t, []byte("%PDF-1.4 test"), msg.Attachments[0].Content)
}

func TestHandleInvoiceEmailTaskWithoutPDF(t *testing.T) {
	sender := &capturingSender{}
	processor := NewTaskProcessor(&config.Config{}, sender)

	task := testPayloadTask(t, InvoiceEmailPayload{
		To:          "billing@acme.example",
		ClientName:  "Acme",
		InvoiceName: "F2026-008_AC",
	})

	require.NoError(t, processor.HandleInvoiceEmailTask(context.Background(), task))
	require.Len(t, sender.messages, 1)
	assert.Empty(t, sender.messages[0].Attachments)
	assert.Empty(t, sender.messages[0].Bcc)
}

func TestMalformedPayloadIsDropped(t *testing.T) {
	sender := &capturingSender{}
	processor := NewTaskProcessor(&config.Config{}, sender)

	err := processor.HandleInvoiceEmailTask(context.Background(), asynq.NewTask(TypeInvoiceEmail, []byte("{not json")))
	require.Error(t, err)
	assert.True(t, errors.Is(err, asynq.SkipRetry), "malformed payloads must not be retried")
	assert.Empty(t, sender.messages)
}

func TestMissingRecipientIsDropped(t *testing.T) {
	sender := &capturingSender{}
	processor := NewTaskProcessor(&config.Config{}, sender)

	err := processor.HandleInvoiceEmailTask(context.Background(), testPayloadTask(t, InvoiceEmailPayload{InvoiceName: "F2026-009_AC"}))
	require.Error(t, err)
	assert.True(t, errors.Is(err, asynq.SkipRetry))
	assert.Empty(t, sender.messages)
}

func TestInvalidPDFDataIsDropped(t *testing.T) {
	sender := &capturingSender{}
	processor := NewTaskProcessor(&config.Config{}, sender)

	err := processor.HandleInvoiceEmailTask(context.Background(), testPayloadTask(t, InvoiceEmailPayload{
		To:        "billing@acme.example",
		PDFBase64: "not-base64!!!",
	}))
	require.Error(t, err)
	assert.True(t, errors.Is(err, asynq.SkipRetry))
	assert.Empty(t, sender.messages)
}

func TestDeliveryFailureIsRetriable(t *testing.T) {
	sender := &capturingSender{err: fmt.Errorf("provider timeout")}
	processor := NewTaskProcessor(&config.Config{}, sender)

	err := processor.HandleInvoiceEmailTask(context.Background(), testPayloadTask(t, InvoiceEmailPayload{To: "billing@acme.example"}))
	require.Error(t, err)
	assert.False(t, errors.Is(err, asynq.SkipRetry), "provider failures must stay retriable")
}

package tasks

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/At4lian/editra/internal/config"
	"github.com/At4lian/editra/internal/email"
	"github.com/At4lian/editra/internal/logger"
)

// TaskType defines the type of a background task.
const (
	TypeInvoiceEmail = "invoice:email"
)

// IEnqueuer is the slice of asynq.Client the invoice pipeline needs,
// kept small so tests can substitute a recorder.
type IEnqueuer interface {
	Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// NewClient creates an asynq client on the same Redis the rest of the
// process uses.
func NewClient(rdb *redis.Client) *asynq.Client {
	opt := rdb.Options()
	return asynq.NewClient(asynq.RedisClientOpt{
		Addr:     opt.Addr,
		Password: opt.Password,
		DB:       opt.DB,
	})
}

// InvoiceEmailPayload carries everything the worker needs to deliver an
// invoice email. The PDF travels base64-encoded inside the payload so
// the worker does not depend on any shared filesystem.
type InvoiceEmailPayload struct {
	To            string    `json:"to"`
	Bcc           string    `json:"bcc,omitempty"`
	ClientName    string    `json:"client_name"`
	InvoiceName   string    `json:"invoice_name"`
	InvoiceNumber int       `json:"invoice_number"`
	Total         float64   `json:"total"`
	CurrencyCode  string    `json:"currency_code"`
	IssueDate     time.Time `json:"issue_date"`
	DueDate       time.Time `json:"due_date"`
	PDFBase64     string    `json:"pdf_base64,omitempty"`
}

// NewInvoiceEmailTask builds the asynq task for an invoice email.
func NewInvoiceEmailTask(payload InvoiceEmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal invoice email payload: %w", err)
	}
	return asynq.NewTask(TypeInvoiceEmail, data), nil
}

// TaskProcessor handles the processing of tasks. It holds dependencies
// needed by task handlers.
type TaskProcessor struct {
	cfg         *config.Config
	emailSender email.Sender
}

// NewTaskProcessor creates a TaskProcessor.
func NewTaskProcessor(cfg *config.Config, emailSender email.Sender) *TaskProcessor {
	return &TaskProcessor{
		cfg:         cfg,
		emailSender: emailSender,
	}
}

// HandleInvoiceEmailTask delivers one invoice email with the rendered
// PDF attached. Malformed payloads are dropped rather than retried.
func (p *TaskProcessor) HandleInvoiceEmailTask(ctx context.Context, t *asynq.Task) error {
	var payload InvoiceEmailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal invoice email payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.To == "" {
		return fmt.Errorf("invoice email payload has no recipient: %w", asynq.SkipRetry)
	}

	msg := &email.Message{
		To:      []string{payload.To},
		Subject: fmt.Sprintf("Invoice %s", payload.InvoiceName),
		Text:    renderInvoiceEmailBody(&payload),
	}
	if payload.Bcc != "" {
		msg.Bcc = []string{payload.Bcc}
	}
	if payload.PDFBase64 != "" {
		pdfData, err := base64.StdEncoding.DecodeString(payload.PDFBase64)
		if err != nil {
			return fmt.Errorf("invalid PDF data in invoice email payload: %v: %w", err, asynq.SkipRetry)
		}
		msg.Attachments = append(msg.Attachments, email.Attachment{
			Filename: payload.InvoiceName + ".pdf",
			Content:  pdfData,
		})
	}

	if err := p.emailSender.Send(ctx, msg); err != nil {
		// Transient provider failures are retried by asynq.
		return fmt.Errorf("invoice email delivery failed: %w", err)
	}

	log := logger.WithComponent("tasks")
	log.Info().
		Str("invoice", payload.InvoiceName).
		Str("to", payload.To).
		Msg("Invoice email delivered")
	return nil
}

func renderInvoiceEmailBody(p *InvoiceEmailPayload) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Hello %s,\n\n", p.ClientName))
	sb.WriteString(fmt.Sprintf("please find attached invoice %s.\n\n", p.InvoiceName))
	sb.WriteString(fmt.Sprintf("Amount due: %.2f %s\n", p.Total, p.CurrencyCode))
	sb.WriteString(fmt.Sprintf("Issue date:  %s\n", p.IssueDate.Format("02.01.2006")))
	sb.WriteString(fmt.Sprintf("Due date:    %s\n", p.DueDate.Format("02.01.2006")))
	sb.WriteString(fmt.Sprintf("Variable symbol: %d\n\n", p.InvoiceNumber))
	sb.WriteString("Thank you.\n")
	return sb.String()
}

// SetupServer configures an asynq server and the mux with this
// processor's handlers. The caller runs srv.Run(mux).
func SetupServer(rdb *redis.Client, processor *TaskProcessor) (*asynq.Server, *asynq.ServeMux) {
	opt := rdb.Options()
	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     opt.Addr,
			Password: opt.Password,
			DB:       opt.DB,
		},
		asynq.Config{
			Concurrency: 4,
			Queues: map[string]int{
				"default": 5,
				"low":     1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				log := logger.WithComponent("tasks")
				log.Error().
					Err(err).
					Str("type", task.Type()).
					Msg("Task failed")
			}),
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeInvoiceEmail, processor.HandleInvoiceEmailTask)
	return srv, mux
}

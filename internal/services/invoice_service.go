package services

import (
	"context"
	"encoding/base64"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/At4lian/editra/internal/clickup"
	"github.com/At4lian/editra/internal/config"
	"github.com/At4lian/editra/internal/logger"
	"github.com/At4lian/editra/internal/models"
	"github.com/At4lian/editra/internal/money"
	"github.com/At4lian/editra/internal/pdf"
	"github.com/At4lian/editra/internal/storage"
	"github.com/At4lian/editra/internal/tasks"
)

// OutcomeState is the terminal state of one webhook delivery. Every
// state except an outright upstream failure answers HTTP 200.
type OutcomeState string

const (
	// OutcomeIgnored: nothing to do (no candidates).
	OutcomeIgnored OutcomeState = "ignored"
	// OutcomeSkipped: another delivery owns this batch.
	OutcomeSkipped OutcomeState = "skipped"
	// OutcomeAborted: a business rule stopped generation before any write.
	OutcomeAborted OutcomeState = "aborted"
	// OutcomeCreated: an invoice was generated and persisted.
	OutcomeCreated OutcomeState = "created"
)

// Outcome describes what one webhook delivery did.
type Outcome struct {
	State         OutcomeState
	Reason        string
	InvoiceName   string
	InvoiceNumber int
	InvoiceTaskID string
}

// IInvoiceService defines the invoice generation pipeline.
type IInvoiceService interface {
	// ProcessWebhookEvent runs the full pipeline for one webhook
	// delivery originating from the given Projects-list task. Business
	// non-matches come back as non-error Outcomes; an error means an
	// upstream or internal failure.
	ProcessWebhookEvent(ctx context.Context, triggerTaskID string) (*Outcome, error)
}

// invoiceService implements IInvoiceService.
type invoiceService struct {
	cfg        *config.Config
	api        clickup.IClickUpAPI
	renderer   pdf.IRenderer
	marker     IBatchMarker            // nil disables the batch marker
	taskClient tasks.IEnqueuer         // nil disables email dispatch
	archive    storage.IArchiveStorage // nil disables the PDF archive
	log        zerolog.Logger
}

// NewInvoiceService creates the invoice pipeline service.
func NewInvoiceService(
	cfg *config.Config,
	api clickup.IClickUpAPI,
	renderer pdf.IRenderer,
	marker IBatchMarker,
	taskClient tasks.IEnqueuer,
	archive storage.IArchiveStorage,
) IInvoiceService {
	return &invoiceService{
		cfg:        cfg,
		api:        api,
		renderer:   renderer,
		marker:     marker,
		taskClient: taskClient,
		archive:    archive,
		log:        logger.WithComponent("invoice"),
	}
}

func (s *invoiceService) ProcessWebhookEvent(ctx context.Context, triggerTaskID string) (*Outcome, error) {
	projectTasks, err := s.api.ListTasks(ctx, s.cfg.ProjectsListID)
	if err != nil {
		return nil, err
	}

	candidates := s.selectCandidates(projectTasks)
	if len(candidates) == 0 {
		s.log.Info().Str("trigger", triggerTaskID).Msg("No invoicing candidates")
		return &Outcome{State: OutcomeIgnored, Reason: "no candidates"}, nil
	}

	candidateIDs := make([]string, len(candidates))
	for i, t := range candidates {
		candidateIDs[i] = t.ID
	}

	// One delivery per batch: the lexicographically smallest candidate
	// id is the main trigger. ClickUp fires a webhook per modified
	// task, so every other delivery for the same batch bows out here.
	sort.Strings(candidateIDs)
	mainTriggerID := candidateIDs[0]
	if triggerTaskID != mainTriggerID {
		s.log.Info().
			Str("trigger", triggerTaskID).
			Str("main_trigger", mainTriggerID).
			Msg("Not the main trigger, skipping")
		return &Outcome{State: OutcomeSkipped, Reason: "not the main trigger"}, nil
	}

	if s.marker != nil {
		key := BatchKey(candidateIDs)
		acquired, err := s.marker.Acquire(ctx, key)
		if err != nil {
			// The marker hardens the leader check, it never blocks it.
			s.log.Warn().Err(err).Msg("Batch marker unavailable, proceeding on leader check alone")
		} else if !acquired {
			s.log.Info().Str("batch", key).Msg("Batch already claimed, skipping")
			return &Outcome{State: OutcomeSkipped, Reason: "batch already claimed"}, nil
		}
	}

	clientLabel, outcome, err := s.resolveClientLabel(ctx, candidates)
	if outcome != nil || err != nil {
		return outcome, err
	}

	client, err := s.findClientByName(ctx, clientLabel)
	if err != nil {
		return nil, err
	}
	if client == nil {
		s.log.Warn().Str("client", clientLabel).Msg("Client not found in Clients list")
		return &Outcome{State: OutcomeAborted, Reason: "client not found: " + clientLabel}, nil
	}

	items := s.buildLineItems(candidates)
	amounts := make([]float64, len(items))
	for i, item := range items {
		amounts[i] = item.TotalPrice
	}
	total := money.Sum2(amounts)
	if total <= 0 {
		s.log.Warn().Str("client", client.Name).Float64("total", total).Msg("Non-positive invoice total")
		return &Outcome{State: OutcomeAborted, Reason: "non-positive total"}, nil
	}

	number, err := s.nextInvoiceNumber(ctx)
	if err != nil {
		return nil, err
	}

	invoice := s.buildInvoice(client, items, total, number)

	pdfBytes, err := s.renderer.Render(invoice)
	if err != nil {
		return nil, fmt.Errorf("failed to render invoice %s: %w", invoice.Name, err)
	}

	created, err := s.persistInvoice(ctx, invoice)
	if err != nil {
		return nil, err
	}

	s.attachPDF(ctx, created.ID, invoice, pdfBytes)
	s.archivePDF(ctx, invoice, pdfBytes)
	s.updateSourceTasks(ctx, items, number)
	s.enqueueEmail(invoice, pdfBytes)

	s.log.Info().
		Str("invoice", invoice.Name).
		Int("number", number).
		Float64("total", total).
		Str("client", client.Name).
		Int("items", len(items)).
		Msg("Invoice created")

	return &Outcome{
		State:         OutcomeCreated,
		InvoiceName:   invoice.Name,
		InvoiceNumber: number,
		InvoiceTaskID: created.ID,
	}, nil
}

// selectCandidates filters the Projects list to tasks flagged ready for
// invoicing with no invoice number assigned yet.
func (s *invoiceService) selectCandidates(projectTasks []clickup.Task) []clickup.Task {
	var candidates []clickup.Task
	for _, t := range projectTasks {
		if !t.FieldBool(s.cfg.FieldProjectReady) {
			continue
		}
		if v, ok := t.Field(s.cfg.FieldProjectInvoiceNumber); ok {
			if str, isStr := v.(string); !isStr || str != "" {
				continue
			}
		}
		candidates = append(candidates, t)
	}
	return candidates
}

// resolveClientLabel resolves every candidate's client dropdown value
// and requires all of them to land on the same client. Resolution
// failures and multi-client batches abort generation (non-error
// outcomes); only the field-metadata fetch can fail hard.
func (s *invoiceService) resolveClientLabel(ctx context.Context, candidates []clickup.Task) (string, *Outcome, error) {
	fields, err := s.api.ListFields(ctx, s.cfg.ProjectsListID)
	if err != nil {
		return "", nil, err
	}
	var options *clickup.DropdownOptions
	for _, f := range fields {
		if f.ID == s.cfg.FieldProjectClient && f.TypeConfig != nil {
			options = clickup.NewDropdownOptions(f.TypeConfig.Options)
			break
		}
	}
	if options == nil {
		options = clickup.NewDropdownOptions(nil)
	}

	keys := make(map[string]string) // key -> label
	for _, t := range candidates {
		raw, ok := t.Field(s.cfg.FieldProjectClient)
		if !ok {
			s.log.Warn().Str("task", t.ID).Msg("Candidate has no client set")
			return "", &Outcome{State: OutcomeAborted, Reason: "candidate without client: " + t.ID}, nil
		}
		ref, err := clickup.ParseFieldRef(raw)
		if err != nil {
			s.log.Warn().Err(err).Str("task", t.ID).Msg("Unparseable client field value")
			return "", &Outcome{State: OutcomeAborted, Reason: "unresolvable client on task " + t.ID}, nil
		}
		key, label, err := options.Resolve(ref)
		if err != nil {
			s.log.Warn().Err(err).Str("task", t.ID).Str("kind", ref.Kind.String()).Msg("Client dropdown resolution failed")
			return "", &Outcome{State: OutcomeAborted, Reason: "unresolvable client on task " + t.ID}, nil
		}
		keys[key] = label
	}

	if len(keys) > 1 {
		labels := make([]string, 0, len(keys))
		for _, l := range keys {
			labels = append(labels, l)
		}
		sort.Strings(labels)
		s.log.Warn().Strs("clients", labels).Msg("Candidates span multiple clients, aborting")
		return "", &Outcome{State: OutcomeAborted, Reason: "candidates span multiple clients"}, nil
	}

	for _, label := range keys {
		return label, nil, nil
	}
	return "", &Outcome{State: OutcomeAborted, Reason: "no client resolved"}, nil
}

// findClientByName looks up the canonical client record by exact task
// name match in the Clients list. Returns nil when no client matches.
func (s *invoiceService) findClientByName(ctx context.Context, name string) (*models.Client, error) {
	clientTasks, err := s.api.ListTasks(ctx, s.cfg.ClientsListID)
	if err != nil {
		return nil, err
	}
	for i := range clientTasks {
		t := &clientTasks[i]
		if t.Name != name {
			continue
		}
		dueDays := s.cfg.DefaultDueDays
		if v, ok := t.FieldNumber(s.cfg.FieldClientDueDays); ok && v > 0 {
			dueDays = int(v)
		}
		return &models.Client{
			TaskID:          t.ID,
			Name:            t.Name,
			ShortCode:       t.FieldString(s.cfg.FieldClientShortCode, ""),
			Street:          t.FieldString(s.cfg.FieldClientStreet, ""),
			City:            t.FieldString(s.cfg.FieldClientCity, ""),
			Zip:             t.FieldString(s.cfg.FieldClientZip, ""),
			Country:         t.FieldString(s.cfg.FieldClientCountry, ""),
			CompanyID:       t.FieldString(s.cfg.FieldClientCompanyID, ""),
			TaxID:           t.FieldString(s.cfg.FieldClientTaxID, ""),
			Email:           t.FieldString(s.cfg.FieldClientEmail, ""),
			DefaultDueDays:  dueDays,
			ShowTrackedTime: t.FieldBool(s.cfg.FieldClientShowTracked),
		}, nil
	}
	return nil, nil
}

// buildLineItems derives one immutable line item per candidate task.
func (s *invoiceService) buildLineItems(candidates []clickup.Task) []models.InvoiceLineItem {
	items := make([]models.InvoiceLineItem, 0, len(candidates))
	for _, t := range candidates {
		hourlyRate, _ := t.FieldNumber(s.cfg.FieldProjectHourlyRate)
		totalPrice, _ := t.FieldNumber(s.cfg.FieldProjectTotalPrice)
		item := models.InvoiceLineItem{
			TaskID:      t.ID,
			Description: t.Name,
			HourlyRate:  money.Round2(hourlyRate),
			TotalPrice:  money.Round2(totalPrice),
		}
		if t.TimeSpent > 0 {
			item.TrackedHours = money.Round2(float64(t.TimeSpent) / (1000 * 60 * 60))
		}
		items = append(items, item)
	}
	return items
}

// nextInvoiceNumber computes max(existing invoice numbers)+1 from the
// Invoices list, starting at 1 when none exist. This read-then-write is
// not atomic; the leader check and batch marker keep racing deliveries
// from getting this far concurrently.
func (s *invoiceService) nextInvoiceNumber(ctx context.Context) (int, error) {
	invoiceTasks, err := s.api.ListTasks(ctx, s.cfg.InvoicesListID)
	if err != nil {
		return 0, err
	}
	max := 0
	for i := range invoiceTasks {
		if v, ok := invoiceTasks[i].FieldNumber(s.cfg.FieldInvoiceNumber); ok && int(v) > max {
			max = int(v)
		}
	}
	return max + 1, nil
}

// buildInvoice assembles the transient invoice value object.
func (s *invoiceService) buildInvoice(client *models.Client, items []models.InvoiceLineItem, total float64, number int) *models.Invoice {
	issueDate := time.Now().In(s.cfg.Location)
	dueDate := issueDate.AddDate(0, 0, client.DefaultDueDays)

	shortCode := client.ShortCode
	if shortCode == "" {
		shortCode = "CL"
	}
	name := fmt.Sprintf("F%d-%03d_%s", issueDate.Year(), number, shortCode)

	return &models.Invoice{
		Name:         name,
		Number:       number,
		IssueDate:    issueDate,
		DueDate:      dueDate,
		Client:       *client,
		Items:        items,
		Total:        total,
		CurrencyCode: s.cfg.CurrencyCode,
	}
}

// persistInvoice creates the Invoice record in the Invoices list.
func (s *invoiceService) persistInvoice(ctx context.Context, invoice *models.Invoice) (*clickup.Task, error) {
	var fields []clickup.FieldValue
	appendField := func(id string, value interface{}) {
		if id != "" {
			fields = append(fields, clickup.FieldValue{ID: id, Value: value})
		}
	}
	appendField(s.cfg.FieldInvoiceNumber, invoice.Number)
	appendField(s.cfg.FieldInvoiceClientName, invoice.Client.Name)
	appendField(s.cfg.FieldInvoiceTotal, invoice.Total)
	appendField(s.cfg.FieldInvoiceIssueDate, invoice.IssueDate.UnixMilli())
	appendField(s.cfg.FieldInvoiceDueDate, invoice.DueDate.UnixMilli())
	appendField(s.cfg.FieldInvoicePaid, false)

	return s.api.CreateTask(ctx, s.cfg.InvoicesListID, clickup.CreateTaskRequest{
		Name:         invoice.Name,
		CustomFields: fields,
	})
}

// attachPDF uploads the rendered PDF to the invoice record and writes
// the attachment URL into the pdf-link field. Failures here leave the
// invoice without a PDF link; that is logged, not rolled back.
func (s *invoiceService) attachPDF(ctx context.Context, invoiceTaskID string, invoice *models.Invoice, pdfBytes []byte) {
	att, err := s.api.UploadAttachment(ctx, invoiceTaskID, invoice.Name+".pdf", pdfBytes)
	if err != nil {
		s.log.Warn().Err(err).Str("invoice", invoice.Name).Msg("PDF attachment upload failed, invoice persisted without link")
		return
	}
	if s.cfg.FieldInvoicePDFLink == "" {
		return
	}
	err = s.api.UpdateTaskFields(ctx, invoiceTaskID, []clickup.FieldValue{
		{ID: s.cfg.FieldInvoicePDFLink, Value: att.URL},
	})
	if err != nil {
		s.log.Warn().Err(err).Str("invoice", invoice.Name).Msg("Failed to write PDF link onto invoice record")
	}
}

func (s *invoiceService) archivePDF(ctx context.Context, invoice *models.Invoice, pdfBytes []byte) {
	if s.archive == nil {
		return
	}
	key, err := s.archive.StoreInvoicePDF(ctx, invoice.IssueDate.Year(), invoice.Name, pdfBytes)
	if err != nil {
		s.log.Warn().Err(err).Str("invoice", invoice.Name).Msg("PDF archive upload failed")
		return
	}
	s.log.Info().Str("invoice", invoice.Name).Str("key", key).Msg("PDF archived")
}

// updateSourceTasks writes the invoice number onto every invoiced task
// and clears the ready flag so the tasks cannot be selected again.
// Individual failures are logged and skipped; the invoice already
// exists at this point.
func (s *invoiceService) updateSourceTasks(ctx context.Context, items []models.InvoiceLineItem, number int) {
	for _, item := range items {
		err := s.api.UpdateTaskFields(ctx, item.TaskID, []clickup.FieldValue{
			{ID: s.cfg.FieldProjectInvoiceNumber, Value: number},
			{ID: s.cfg.FieldProjectReady, Value: false},
		})
		if err != nil {
			s.log.Warn().Err(err).Str("task", item.TaskID).Msg("Failed to update invoiced task")
		}
	}
}

// enqueueEmail hands the invoice email off to the background worker.
func (s *invoiceService) enqueueEmail(invoice *models.Invoice, pdfBytes []byte) {
	if s.taskClient == nil {
		return
	}
	if invoice.Client.Email == "" {
		s.log.Info().Str("invoice", invoice.Name).Msg("Client has no email address, skipping notification")
		return
	}

	task, err := tasks.NewInvoiceEmailTask(tasks.InvoiceEmailPayload{
		To:            invoice.Client.Email,
		Bcc:           s.cfg.InvoiceBCCEmail,
		ClientName:    invoice.Client.Name,
		InvoiceName:   invoice.Name,
		InvoiceNumber: invoice.Number,
		Total:         invoice.Total,
		CurrencyCode:  invoice.CurrencyCode,
		IssueDate:     invoice.IssueDate,
		DueDate:       invoice.DueDate,
		PDFBase64:     base64.StdEncoding.EncodeToString(pdfBytes),
	})
	if err != nil {
		s.log.Warn().Err(err).Str("invoice", invoice.Name).Msg("Failed to build invoice email task")
		return
	}
	if _, err := s.taskClient.Enqueue(task); err != nil {
		s.log.Warn().Err(err).Str("invoice", invoice.Name).Msg("Failed to enqueue invoice email")
	}
}

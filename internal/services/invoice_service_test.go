package services

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/At4lian/editra/internal/clickup"
	"github.com/At4lian/editra/internal/config"
	"github.com/At4lian/editra/internal/models"
	"github.com/At4lian/editra/internal/tasks"
)

// mockClickUpAPI serves canned list contents and records every write.
type mockClickUpAPI struct {
	tasksByList  map[string][]clickup.Task
	fieldsByList map[string][]clickup.Field

	created []createCall
	updated []updateCall
	uploads []uploadCall
}

type createCall struct {
	listID string
	req    clickup.CreateTaskRequest
}

type updateCall struct {
	taskID string
	fields []clickup.FieldValue
}

type uploadCall struct {
	taskID   string
	filename string
	size     int
}

func (m *mockClickUpAPI) ListTasks(ctx context.Context, listID string) ([]clickup.Task, error) {
	return m.tasksByList[listID], nil
}

func (m *mockClickUpAPI) GetTask(ctx context.Context, taskID string) (*clickup.Task, error) {
	for _, ts := range m.tasksByList {
		for i := range ts {
			if ts[i].ID == taskID {
				return &ts[i], nil
			}
		}
	}
	return nil, &clickup.APIError{Status: 404, Path: "/task/" + taskID}
}

func (m *mockClickUpAPI) UpdateTaskFields(ctx context.Context, taskID string, fields []clickup.FieldValue) error {
	m.updated = append(m.updated, updateCall{taskID: taskID, fields: fields})
	return nil
}

func (m *mockClickUpAPI) CreateTask(ctx context.Context, listID string, req clickup.CreateTaskRequest) (*clickup.Task, error) {
	m.created = append(m.created, createCall{listID: listID, req: req})
	return &clickup.Task{ID: fmt.Sprintf("inv-%d", len(m.created)), Name: req.Name}, nil
}

func (m *mockClickUpAPI) UploadAttachment(ctx context.Context, taskID, filename string, data []byte) (*clickup.Attachment, error) {
	m.uploads = append(m.uploads, uploadCall{taskID: taskID, filename: filename, size: len(data)})
	return &clickup.Attachment{ID: "att-1", URL: "https://attachments.example/" + filename}, nil
}

func (m *mockClickUpAPI) ListFields(ctx context.Context, listID string) ([]clickup.Field, error) {
	return m.fieldsByList[listID], nil
}

func (m *mockClickUpAPI) writeCount() int {
	return len(m.created) + len(m.updated) + len(m.uploads)
}

// mockRenderer avoids real PDF generation in pipeline tests.
type mockRenderer struct {
	rendered []*models.Invoice
}

func (m *mockRenderer) Render(inv *models.Invoice) ([]byte, error) {
	m.rendered = append(m.rendered, inv)
	return []byte("%PDF-1.4 test"), nil
}

// mockBatchMarker controls marker acquisition.
type mockBatchMarker struct {
	acquired bool
	err      error
	keys     []string
}

func (m *mockBatchMarker) Acquire(ctx context.Context, key string) (bool, error) {
	m.keys = append(m.keys, key)
	return m.acquired, m.err
}

// mockEnqueuer records enqueued asynq tasks.
type mockEnqueuer struct {
	enqueued []*asynq.Task
}

func (m *mockEnqueuer) Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	m.enqueued = append(m.enqueued, task)
	return &asynq.TaskInfo{}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		ProjectsListID:            "projects",
		ClientsListID:             "clients",
		InvoicesListID:            "invoices",
		FieldProjectClient:        "cf-client",
		FieldProjectHourlyRate:    "cf-rate",
		FieldProjectTotalPrice:    "cf-price",
		FieldProjectReady:         "cf-ready",
		FieldProjectInvoiceNumber: "cf-proj-invnum",
		FieldClientShortCode:      "cf-code",
		FieldClientEmail:          "cf-email",
		FieldClientDueDays:        "cf-due",
		FieldInvoiceNumber:        "cf-inv-number",
		FieldInvoiceClientName:    "cf-inv-client",
		FieldInvoiceTotal:         "cf-inv-total",
		FieldInvoiceIssueDate:     "cf-inv-issue",
		FieldInvoiceDueDate:       "cf-inv-due",
		FieldInvoicePaid:          "cf-inv-paid",
		FieldInvoicePDFLink:       "cf-inv-pdf",
		CurrencyCode:              "CZK",
		DefaultDueDays:            14,
		Location:                  time.UTC,
	}
}

func candidateTask(id, name, client string, rate, price float64) clickup.Task {
	return clickup.Task{
		ID:   id,
		Name: name,
		CustomFields: []clickup.CustomField{
			{ID: "cf-ready", Value: true},
			{ID: "cf-client", Value: client},
			{ID: "cf-rate", Value: rate},
			{ID: "cf-price", Value: price},
		},
	}
}

func acmeClientTask() clickup.Task {
	return clickup.Task{
		ID:   "client-acme",
		Name: "Acme",
		CustomFields: []clickup.CustomField{
			{ID: "cf-code", Value: "AC"},
			{ID: "cf-email", Value: "billing@acme.example"},
			{ID: "cf-due", Value: float64(14)},
		},
	}
}

func newTestService(api *mockClickUpAPI) (IInvoiceService, *mockRenderer, *mockEnqueuer) {
	renderer := &mockRenderer{}
	enqueuer := &mockEnqueuer{}
	svc := NewInvoiceService(testConfig(), api, renderer, &mockBatchMarker{acquired: true}, enqueuer, nil)
	return svc, renderer, enqueuer
}

func fieldValue(t *testing.T, fields []clickup.FieldValue, id string) interface{} {
	t.Helper()
	for _, f := range fields {
		if f.ID == id {
			return f.Value
		}
	}
	t.Fatalf("field %s not present", id)
	return nil
}

func TestNoCandidatesIsNoOp(t *testing.T) {
	notReady := clickup.Task{ID: "t1", Name: "Edit", CustomFields: []clickup.CustomField{{ID: "cf-ready", Value: false}}}
	api := &mockClickUpAPI{tasksByList: map[string][]clickup.Task{"projects": {notReady}}}
	svc, _, _ := newTestService(api)

	outcome, err := svc.ProcessWebhookEvent(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeIgnored, outcome.State)
	assert.Zero(t, api.writeCount(), "no external writes for a no-op")
}

func TestAlreadyInvoicedTaskIsNotACandidate(t *testing.T) {
	invoiced := candidateTask("t1", "Edit", "Acme", 500, 1000)
	invoiced.CustomFields = append(invoiced.CustomFields, clickup.CustomField{ID: "cf-proj-invnum", Value: float64(3)})
	api := &mockClickUpAPI{tasksByList: map[string][]clickup.Task{"projects": {invoiced}}}
	svc, _, _ := newTestService(api)

	outcome, err := svc.ProcessWebhookEvent(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeIgnored, outcome.State)
}

func TestNonLeaderDeliverySkips(t *testing.T) {
	api := &mockClickUpAPI{tasksByList: map[string][]clickup.Task{
		"projects": {
			candidateTask("task-b", "Grading", "Acme", 500, 1000),
			candidateTask("task-a", "Editing", "Acme", 500, 500),
		},
		"clients": {acmeClientTask()},
	}}
	svc, _, _ := newTestService(api)

	// task-a is the lexicographically smallest id, so a delivery for
	// task-b must bow out, every time.
	for i := 0; i < 3; i++ {
		outcome, err := svc.ProcessWebhookEvent(context.Background(), "task-b")
		require.NoError(t, err)
		assert.Equal(t, OutcomeSkipped, outcome.State)
	}
	assert.Zero(t, api.writeCount())
}

func TestMultiClientBatchAborts(t *testing.T) {
	api := &mockClickUpAPI{tasksByList: map[string][]clickup.Task{
		"projects": {
			candidateTask("task-a", "Editing", "Acme", 500, 500),
			candidateTask("task-b", "Grading", "Globex", 500, 1000),
		},
		"clients": {acmeClientTask()},
	}}
	svc, _, _ := newTestService(api)

	outcome, err := svc.ProcessWebhookEvent(context.Background(), "task-a")
	require.NoError(t, err)
	assert.Equal(t, OutcomeAborted, outcome.State)
	assert.Zero(t, api.writeCount(), "aborts must not create anything")
}

func TestUnknownClientAborts(t *testing.T) {
	api := &mockClickUpAPI{tasksByList: map[string][]clickup.Task{
		"projects": {candidateTask("task-a", "Editing", "Phantom", 500, 500)},
		"clients":  {acmeClientTask()},
	}}
	svc, _, _ := newTestService(api)

	outcome, err := svc.ProcessWebhookEvent(context.Background(), "task-a")
	require.NoError(t, err)
	assert.Equal(t, OutcomeAborted, outcome.State)
	assert.Contains(t, outcome.Reason, "Phantom")
	assert.Zero(t, api.writeCount())
}

func TestNonPositiveTotalAborts(t *testing.T) {
	api := &mockClickUpAPI{tasksByList: map[string][]clickup.Task{
		"projects": {candidateTask("task-a", "Editing", "Acme", 500, 0)},
		"clients":  {acmeClientTask()},
	}}
	svc, _, _ := newTestService(api)

	outcome, err := svc.ProcessWebhookEvent(context.Background(), "task-a")
	require.NoError(t, err)
	assert.Equal(t, OutcomeAborted, outcome.State)
	assert.Zero(t, api.writeCount())
}

func TestHeldBatchMarkerSkips(t *testing.T) {
	api := &mockClickUpAPI{tasksByList: map[string][]clickup.Task{
		"projects": {candidateTask("task-a", "Editing", "Acme", 500, 1000)},
		"clients":  {acmeClientTask()},
	}}
	svc := NewInvoiceService(testConfig(), api, &mockRenderer{}, &mockBatchMarker{acquired: false}, &mockEnqueuer{}, nil)

	outcome, err := svc.ProcessWebhookEvent(context.Background(), "task-a")
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, outcome.State)
	assert.Zero(t, api.writeCount())
}

func TestMarkerFailureDoesNotBlock(t *testing.T) {
	api := &mockClickUpAPI{tasksByList: map[string][]clickup.Task{
		"projects": {candidateTask("task-a", "Editing", "Acme", 500, 1000)},
		"clients":  {acmeClientTask()},
	}}
	marker := &mockBatchMarker{acquired: false, err: fmt.Errorf("redis down")}
	svc := NewInvoiceService(testConfig(), api, &mockRenderer{}, marker, &mockEnqueuer{}, nil)

	outcome, err := svc.ProcessWebhookEvent(context.Background(), "task-a")
	require.NoError(t, err)
	assert.Equal(t, OutcomeCreated, outcome.State)
}

func TestNextInvoiceNumberSkipsGaps(t *testing.T) {
	invoiceWithNumber := func(id string, n float64) clickup.Task {
		return clickup.Task{ID: id, CustomFields: []clickup.CustomField{{ID: "cf-inv-number", Value: n}}}
	}
	api := &mockClickUpAPI{tasksByList: map[string][]clickup.Task{
		"projects": {candidateTask("task-a", "Editing", "Acme", 500, 1000)},
		"clients":  {acmeClientTask()},
		"invoices": {
			invoiceWithNumber("i1", 1),
			invoiceWithNumber("i3", 3),
			invoiceWithNumber("i5", 5),
		},
	}}
	svc, _, _ := newTestService(api)

	outcome, err := svc.ProcessWebhookEvent(context.Background(), "task-a")
	require.NoError(t, err)
	assert.Equal(t, OutcomeCreated, outcome.State)
	assert.Equal(t, 6, outcome.InvoiceNumber, "max(1,3,5)+1")

	require.Len(t, api.created, 1)
	assert.Equal(t, 6, fieldValue(t, api.created[0].req.CustomFields, "cf-inv-number"))
}

func TestEndToEndSingleCandidate(t *testing.T) {
	api := &mockClickUpAPI{tasksByList: map[string][]clickup.Task{
		"projects": {candidateTask("task-a", "Editing", "Acme", 500, 1000)},
		"clients":  {acmeClientTask()},
	}}
	svc, renderer, enqueuer := newTestService(api)

	outcome, err := svc.ProcessWebhookEvent(context.Background(), "task-a")
	require.NoError(t, err)
	require.Equal(t, OutcomeCreated, outcome.State)

	year := time.Now().UTC().Year()
	expectedName := fmt.Sprintf("F%d-001_AC", year)
	assert.Equal(t, expectedName, outcome.InvoiceName)
	assert.Equal(t, 1, outcome.InvoiceNumber)

	// Invoice record
	require.Len(t, api.created, 1)
	created := api.created[0]
	assert.Equal(t, "invoices", created.listID)
	assert.Equal(t, expectedName, created.req.Name)
	assert.Equal(t, 1000.0, fieldValue(t, created.req.CustomFields, "cf-inv-total"))
	assert.Equal(t, "Acme", fieldValue(t, created.req.CustomFields, "cf-inv-client"))
	assert.Equal(t, false, fieldValue(t, created.req.CustomFields, "cf-inv-paid"))

	issueMs := fieldValue(t, created.req.CustomFields, "cf-inv-issue").(int64)
	dueMs := fieldValue(t, created.req.CustomFields, "cf-inv-due").(int64)
	assert.Equal(t, int64(14*24*60*60*1000), dueMs-issueMs, "due = issue + 14 days")

	// PDF rendered once with the full snapshot
	require.Len(t, renderer.rendered, 1)
	assert.Equal(t, 1000.0, renderer.rendered[0].Total)
	assert.Equal(t, "Acme", renderer.rendered[0].Client.Name)

	// Attachment uploaded and linked onto the invoice record
	require.Len(t, api.uploads, 1)
	assert.Equal(t, "inv-1", api.uploads[0].taskID)
	assert.Equal(t, expectedName+".pdf", api.uploads[0].filename)

	var linkUpdates, sourceUpdates []updateCall
	for _, u := range api.updated {
		if u.taskID == "inv-1" {
			linkUpdates = append(linkUpdates, u)
		} else {
			sourceUpdates = append(sourceUpdates, u)
		}
	}
	require.Len(t, linkUpdates, 1)
	assert.Contains(t, fieldValue(t, linkUpdates[0].fields, "cf-inv-pdf"), expectedName+".pdf")

	// Source task writeback: invoice number set, ready flag cleared
	require.Len(t, sourceUpdates, 1)
	assert.Equal(t, "task-a", sourceUpdates[0].taskID)
	assert.Equal(t, 1, fieldValue(t, sourceUpdates[0].fields, "cf-proj-invnum"))
	assert.Equal(t, false, fieldValue(t, sourceUpdates[0].fields, "cf-ready"))

	// Email dispatched to the client's billing address
	require.Len(t, enqueuer.enqueued, 1)
	assert.Equal(t, tasks.TypeInvoiceEmail, enqueuer.enqueued[0].Type())
	var payload tasks.InvoiceEmailPayload
	require.NoError(t, json.Unmarshal(enqueuer.enqueued[0].Payload(), &payload))
	assert.Equal(t, "billing@acme.example", payload.To)
	assert.Equal(t, expectedName, payload.InvoiceName)
	assert.Equal(t, 1000.0, payload.Total)
	assert.NotEmpty(t, payload.PDFBase64)
}

func TestDropdownIndexResolution(t *testing.T) {
	task := clickup.Task{
		ID:   "task-a",
		Name: "Editing",
		CustomFields: []clickup.CustomField{
			{ID: "cf-ready", Value: true},
			{ID: "cf-client", Value: float64(0)}, // order index, not a label
			{ID: "cf-rate", Value: float64(500)},
			{ID: "cf-price", Value: float64(1000)},
		},
	}
	api := &mockClickUpAPI{
		tasksByList: map[string][]clickup.Task{
			"projects": {task},
			"clients":  {acmeClientTask()},
		},
		fieldsByList: map[string][]clickup.Field{
			"projects": {{
				ID:   "cf-client",
				Type: "drop_down",
				TypeConfig: &clickup.TypeConfig{Options: []clickup.DropdownOption{
					{ID: "f3b0c440-0001-4a39-8f2e-000000000001", Name: "Acme", OrderIndex: 0},
				}},
			}},
		},
	}
	svc, _, _ := newTestService(api)

	outcome, err := svc.ProcessWebhookEvent(context.Background(), "task-a")
	require.NoError(t, err)
	assert.Equal(t, OutcomeCreated, outcome.State)
	require.Len(t, api.created, 1)
	assert.Equal(t, "Acme", fieldValue(t, api.created[0].req.CustomFields, "cf-inv-client"))
}

func TestTotalsAreRoundedPerItem(t *testing.T) {
	api := &mockClickUpAPI{tasksByList: map[string][]clickup.Task{
		"projects": {
			candidateTask("task-a", "Editing", "Acme", 500, 19.005),
			candidateTask("task-b", "Grading", "Acme", 500, 0.004),
		},
		"clients": {acmeClientTask()},
	}}
	svc, _, _ := newTestService(api)

	outcome, err := svc.ProcessWebhookEvent(context.Background(), "task-a")
	require.NoError(t, err)
	require.Equal(t, OutcomeCreated, outcome.State)
	// 19.005 -> 19.01 (half-up), 0.004 -> 0.00
	assert.Equal(t, 19.01, fieldValue(t, api.created[0].req.CustomFields, "cf-inv-total"))
}
